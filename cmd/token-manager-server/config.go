package main

import (
	"crypto/ed25519"

	"github.com/mitchellh/mapstructure"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/code-payments/token-manager-server/pkg/app"
)

const (
	storeTypeMemory   = "memory"
	storeTypePostgres = "postgres"
)

type appConfig struct {
	// SolanaRpcEndpoint is the RPC URL, or a cluster name such as devnet, the
	// service submits to. When empty, an in-process runtime is started with
	// the token manager program installed.
	SolanaRpcEndpoint string `mapstructure:"solana_rpc_endpoint"`

	// PayerKeypairPath is a solana-keygen keypair file. A keypair is generated
	// at the path when the file doesn't exist.
	PayerKeypairPath string `mapstructure:"payer_keypair_path"`

	// LocalAirdropLamports funds the payer when running in-process
	LocalAirdropLamports uint64 `mapstructure:"local_airdrop_lamports"`

	StoreType string `mapstructure:"store_type"`

	PostgresUser               string `mapstructure:"postgres_user"`
	PostgresPassword           string `mapstructure:"postgres_password"`
	PostgresHost               string `mapstructure:"postgres_host"`
	PostgresPort               int    `mapstructure:"postgres_port"`
	PostgresDbName             string `mapstructure:"postgres_db_name"`
	PostgresUseAwsIam          bool   `mapstructure:"postgres_use_aws_iam"`
	PostgresMaxOpenConnections int    `mapstructure:"postgres_max_open_connections"`
	PostgresMaxIdleConnections int    `mapstructure:"postgres_max_idle_connections"`

	// ApiAuthPublicKey is a base58 ed25519 key. When set, API requests must
	// carry a JWT signed by its private key.
	ApiAuthPublicKey string `mapstructure:"api_auth_public_key"`

	// ReconcileSchedule is a cron spec. Reconciliation is disabled when empty.
	ReconcileSchedule string `mapstructure:"reconcile_schedule"`
}

var defaultAppConfig = appConfig{
	PayerKeypairPath:     "payer.json",
	LocalAirdropLamports: 1_000_000_000_000,

	StoreType: storeTypeMemory,

	PostgresPort: 5432,

	ReconcileSchedule: "@every 5m",
}

func parseAppConfig(config app.Config) (*appConfig, error) {
	parsed := defaultAppConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &parsed,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(config)); err != nil {
		return nil, errors.Wrap(err, "failed to decode app config")
	}

	switch parsed.StoreType {
	case storeTypeMemory:
	case storeTypePostgres:
		if len(parsed.PostgresHost) == 0 || len(parsed.PostgresUser) == 0 || len(parsed.PostgresDbName) == 0 {
			return nil, errors.New("postgres host, user and db name are required")
		}
	default:
		return nil, errors.Errorf("unsupported store type: %s", parsed.StoreType)
	}

	if len(parsed.PayerKeypairPath) == 0 {
		return nil, errors.New("payer keypair path is required")
	}

	if len(parsed.ApiAuthPublicKey) > 0 {
		if _, err := parsed.authPublicKey(); err != nil {
			return nil, err
		}
	}

	if len(parsed.ReconcileSchedule) > 0 {
		if _, err := cron.ParseStandard(parsed.ReconcileSchedule); err != nil {
			return nil, errors.Wrap(err, "invalid reconcile schedule")
		}
	}

	return &parsed, nil
}

func (c *appConfig) authPublicKey() (ed25519.PublicKey, error) {
	if len(c.ApiAuthPublicKey) == 0 {
		return nil, nil
	}

	decoded, err := base58.Decode(c.ApiAuthPublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid api auth public key")
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid api auth public key length: %d", len(decoded))
	}
	return decoded, nil
}
