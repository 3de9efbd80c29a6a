package tokenmanager

import (
	"time"

	"github.com/code-payments/token-manager-server/pkg/config"
	"github.com/code-payments/token-manager-server/pkg/config/env"
	"github.com/code-payments/token-manager-server/pkg/config/memory"
	"github.com/code-payments/token-manager-server/pkg/config/wrapper"
	tokenmanager_program "github.com/code-payments/token-manager-server/pkg/solana/tokenmanager"
)

const (
	envConfigPrefix = "TOKEN_MANAGER_SERVICE_"

	DefaultDecimalsConfigEnvName = envConfigPrefix + "DEFAULT_DECIMALS"
	defaultDefaultDecimals       = tokenmanager_program.DefaultDecimals

	DefaultMintAmountConfigEnvName = envConfigPrefix + "DEFAULT_MINT_AMOUNT"
	defaultDefaultMintAmount       = tokenmanager_program.DefaultMintAmount

	DefaultSeedSchemeConfigEnvName = envConfigPrefix + "DEFAULT_SEED_SCHEME"
	defaultDefaultSeedScheme       = "mint"

	MintRateLimitConfigEnvName = envConfigPrefix + "MINT_RATE_LIMIT"
	defaultMintRateLimit       = 5.0 // per recipient, per second

	SubmitAttemptsConfigEnvName = envConfigPrefix + "SUBMIT_ATTEMPTS"
	defaultSubmitAttempts       = 5

	SubmitBackoffConfigEnvName = envConfigPrefix + "SUBMIT_BACKOFF"
	defaultSubmitBackoff       = 100 * time.Millisecond

	ConfirmTimeoutConfigEnvName = envConfigPrefix + "CONFIRM_TIMEOUT"
	defaultConfirmTimeout       = 30 * time.Second

	ConfirmPollIntervalConfigEnvName = envConfigPrefix + "CONFIRM_POLL_INTERVAL"
	defaultConfirmPollInterval       = 250 * time.Millisecond

	ComputeUnitPriceConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_PRICE"
	defaultComputeUnitPrice       = 0

	ComputeUnitLimitConfigEnvName = envConfigPrefix + "COMPUTE_UNIT_LIMIT"
	defaultComputeUnitLimit       = 0

	StripedLockParallelizationConfigEnvName = envConfigPrefix + "STRIPED_LOCK_PARALLELIZATION"
	defaultStripedLockParallelization       = 1024

	CacheSizeConfigEnvName = envConfigPrefix + "CACHE_SIZE"
	defaultCacheSize       = 10_000

	ReconcileBatchSizeConfigEnvName = envConfigPrefix + "RECONCILE_BATCH_SIZE"
	defaultReconcileBatchSize       = 100

	ReconcileWorkersConfigEnvName = envConfigPrefix + "RECONCILE_WORKERS"
	defaultReconcileWorkers       = 8
)

type conf struct {
	defaultDecimals            config.Uint64
	defaultMintAmount          config.Uint64
	defaultSeedScheme          config.String
	mintRateLimit              config.Float64
	submitAttempts             config.Uint64
	submitBackoff              config.Duration
	confirmTimeout             config.Duration
	confirmPollInterval        config.Duration
	computeUnitPrice           config.Uint64
	computeUnitLimit           config.Uint64
	stripedLockParallelization config.Uint64
	cacheSize                  config.Uint64
	reconcileBatchSize         config.Uint64
	reconcileWorkers           config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			defaultDecimals:            env.NewUint64Config(DefaultDecimalsConfigEnvName, defaultDefaultDecimals),
			defaultMintAmount:          env.NewUint64Config(DefaultMintAmountConfigEnvName, defaultDefaultMintAmount),
			defaultSeedScheme:          env.NewStringConfig(DefaultSeedSchemeConfigEnvName, defaultDefaultSeedScheme),
			mintRateLimit:              env.NewFloat64Config(MintRateLimitConfigEnvName, defaultMintRateLimit),
			submitAttempts:             env.NewUint64Config(SubmitAttemptsConfigEnvName, defaultSubmitAttempts),
			submitBackoff:              env.NewDurationConfig(SubmitBackoffConfigEnvName, defaultSubmitBackoff),
			confirmTimeout:             env.NewDurationConfig(ConfirmTimeoutConfigEnvName, defaultConfirmTimeout),
			confirmPollInterval:        env.NewDurationConfig(ConfirmPollIntervalConfigEnvName, defaultConfirmPollInterval),
			computeUnitPrice:           env.NewUint64Config(ComputeUnitPriceConfigEnvName, defaultComputeUnitPrice),
			computeUnitLimit:           env.NewUint64Config(ComputeUnitLimitConfigEnvName, defaultComputeUnitLimit),
			stripedLockParallelization: env.NewUint64Config(StripedLockParallelizationConfigEnvName, defaultStripedLockParallelization),
			cacheSize:                  env.NewUint64Config(CacheSizeConfigEnvName, defaultCacheSize),
			reconcileBatchSize:         env.NewUint64Config(ReconcileBatchSizeConfigEnvName, defaultReconcileBatchSize),
			reconcileWorkers:           env.NewUint64Config(ReconcileWorkersConfigEnvName, defaultReconcileWorkers),
		}
	}
}

type testOverrides struct {
	defaultSeedScheme  string
	mintRateLimit      float64
	computeUnitPrice   uint64
	reconcileBatchSize uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		defaultSeedScheme := overrides.defaultSeedScheme
		if len(defaultSeedScheme) == 0 {
			defaultSeedScheme = defaultDefaultSeedScheme
		}

		mintRateLimit := overrides.mintRateLimit
		if mintRateLimit == 0 {
			mintRateLimit = 1000
		}

		reconcileBatchSize := overrides.reconcileBatchSize
		if reconcileBatchSize == 0 {
			reconcileBatchSize = defaultReconcileBatchSize
		}

		return &conf{
			defaultDecimals:            wrapper.NewUint64Config(memory.NewConfig(uint64(defaultDefaultDecimals)), defaultDefaultDecimals),
			defaultMintAmount:          wrapper.NewUint64Config(memory.NewConfig(uint64(defaultDefaultMintAmount)), defaultDefaultMintAmount),
			defaultSeedScheme:          wrapper.NewStringConfig(memory.NewConfig(defaultSeedScheme), defaultDefaultSeedScheme),
			mintRateLimit:              wrapper.NewFloat64Config(memory.NewConfig(mintRateLimit), defaultMintRateLimit),
			submitAttempts:             wrapper.NewUint64Config(memory.NewConfig(uint64(defaultSubmitAttempts)), defaultSubmitAttempts),
			submitBackoff:              wrapper.NewDurationConfig(memory.NewConfig(time.Millisecond), defaultSubmitBackoff),
			confirmTimeout:             wrapper.NewDurationConfig(memory.NewConfig(time.Second), defaultConfirmTimeout),
			confirmPollInterval:        wrapper.NewDurationConfig(memory.NewConfig(10*time.Millisecond), defaultConfirmPollInterval),
			computeUnitPrice:           wrapper.NewUint64Config(memory.NewConfig(overrides.computeUnitPrice), defaultComputeUnitPrice),
			computeUnitLimit:           wrapper.NewUint64Config(memory.NewConfig(uint64(defaultComputeUnitLimit)), defaultComputeUnitLimit),
			stripedLockParallelization: wrapper.NewUint64Config(memory.NewConfig(uint64(defaultStripedLockParallelization)), defaultStripedLockParallelization),
			cacheSize:                  wrapper.NewUint64Config(memory.NewConfig(uint64(defaultCacheSize)), defaultCacheSize),
			reconcileBatchSize:         wrapper.NewUint64Config(memory.NewConfig(reconcileBatchSize), defaultReconcileBatchSize),
			reconcileWorkers:           wrapper.NewUint64Config(memory.NewConfig(uint64(defaultReconcileWorkers)), defaultReconcileWorkers),
		}
	}
}
