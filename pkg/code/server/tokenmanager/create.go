package tokenmanager

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-manager-server/pkg/metrics"
	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/token"
	tokenmanager_program "github.com/code-payments/token-manager-server/pkg/solana/tokenmanager"
)

type CreateManagerRequest struct {
	// MintKeypair is the keypair of a fresh mint created alongside the
	// manager. One is generated when neither it nor ExistingMint is set.
	MintKeypair ed25519.PrivateKey

	// ExistingMint is a mint whose mint and freeze authority is the service
	// payer. Both authorities are handed over to the manager.
	ExistingMint ed25519.PublicKey

	// SeedScheme is optional and defaults to the configured scheme
	SeedScheme *tokenmanager_program.SeedScheme

	// Authority is required for delegated managers and ignored otherwise
	Authority ed25519.PublicKey

	// Decimals is optional and defaults to the configured value. It is ignored
	// for existing mints.
	Decimals *uint8

	// MintAmount is the per-call amount, in quarks. Zero uses the configured
	// default.
	MintAmount uint64

	// InitialSupply is minted to the payer at creation. It does not count
	// towards the manager's mint counter.
	InitialSupply uint64
}

type CreateManagerResponse struct {
	Manager   *Manager
	Signature solana.Signature

	// PayerTokenAccount holds the initial supply
	PayerTokenAccount ed25519.PublicKey
}

// CreateManager creates a token manager and makes it both the mint and freeze
// authority of its mint.
func (s *Service) CreateManager(ctx context.Context, req *CreateManagerRequest) (*CreateManagerResponse, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "CreateManager")
	defer tracer.End()

	resp, err := s.createManager(ctx, req)
	tracer.OnError(err)
	return resp, err
}

func (s *Service) createManager(ctx context.Context, req *CreateManagerRequest) (*CreateManagerResponse, error) {
	log := s.log.WithField("method", "CreateManager")

	if req.MintKeypair != nil && req.ExistingMint != nil {
		return nil, errors.Wrap(ErrInvalidRequest, "mint keypair and existing mint are mutually exclusive")
	}

	scheme, err := s.seedScheme(ctx, req.SeedScheme)
	if err != nil {
		return nil, err
	}

	var delegate ed25519.PublicKey
	if scheme.IsDelegated() {
		if len(req.Authority) != ed25519.PublicKeySize {
			return nil, errors.Wrap(ErrInvalidRequest, "delegated managers require an authority")
		}
		delegate = req.Authority
	}

	decimals := uint8(s.conf.defaultDecimals.Get(ctx))
	if req.Decimals != nil {
		decimals = *req.Decimals
	}

	mintAmount := req.MintAmount
	if mintAmount == 0 {
		mintAmount = s.conf.defaultMintAmount.Get(ctx)
	}

	var signers []ed25519.PrivateKey
	mint := req.ExistingMint
	freshMint := mint == nil
	if freshMint {
		mintKeypair := req.MintKeypair
		if mintKeypair == nil {
			_, mintKeypair, err = ed25519.GenerateKey(nil)
			if err != nil {
				return nil, errors.Wrap(err, "failed to generate mint keypair")
			}
		}
		mint = mintKeypair.Public().(ed25519.PublicKey)
		signers = append(signers, mintKeypair)
	}

	log = log.WithFields(logrus.Fields{
		"mint":        base58.Encode(mint),
		"seed_scheme": scheme.String(),
		"fresh_mint":  freshMint,
	})

	address, bump, err := tokenmanager_program.GetTokenManagerAddress(&tokenmanager_program.GetTokenManagerAddressArgs{
		Scheme:    scheme,
		Mint:      mint,
		Authority: delegate,
	})
	if err != nil {
		log.WithError(err).Warn("failure deriving token manager address")
		return nil, err
	}

	payerTokenAccount, err := token.GetAssociatedAccount(s.payerKey, mint)
	if err != nil {
		return nil, err
	}

	ix := tokenmanager_program.NewCreateTokenManagerInstruction(
		&tokenmanager_program.CreateTokenManagerInstructionAccounts{
			Payer:             s.payerKey,
			Mint:              mint,
			TokenManager:      address,
			PayerTokenAccount: payerTokenAccount,
			FreshMint:         freshMint,
		},
		&tokenmanager_program.CreateTokenManagerInstructionArgs{
			SeedScheme:    scheme,
			Authority:     delegate,
			Decimals:      decimals,
			MintAmount:    mintAmount,
			InitialSupply: req.InitialSupply,
		},
	)

	sig, err := s.submit(ctx, "create_manager", signers, ix)
	if err != nil {
		log.WithError(err).Info("failure creating token manager")
		return nil, err
	}

	log = log.WithField("signature", sig.ToBase58())

	// The manager exists on chain from here on, so the call succeeds even
	// when the index can't be updated. Reconciliation catches it up.
	manager, err := s.refresh(ctx, address)
	if err != nil {
		log.WithError(err).Warn("failure loading created token manager")

		authority := delegate
		if !scheme.IsDelegated() {
			authority = s.payerKey
		}
		manager = &Manager{
			Address:    address,
			Bump:       bump,
			Mint:       mint,
			Authority:  authority,
			SeedScheme: scheme,
			Decimals:   decimals,
			MintAmount: mintAmount,
		}
	}

	log.WithField("address", base58.Encode(address)).Info("token manager created")
	recordManagerCreatedEvent(ctx, manager, req.InitialSupply)

	return &CreateManagerResponse{
		Manager:           manager,
		Signature:         sig,
		PayerTokenAccount: payerTokenAccount,
	}, nil
}

func (s *Service) seedScheme(ctx context.Context, requested *tokenmanager_program.SeedScheme) (tokenmanager_program.SeedScheme, error) {
	if requested != nil {
		if !requested.IsValid() {
			return 0, errors.Wrap(ErrInvalidRequest, "invalid seed scheme")
		}
		return *requested, nil
	}

	scheme, err := tokenmanager_program.ParseSeedScheme(s.conf.defaultSeedScheme.Get(ctx))
	if err != nil {
		return 0, errors.Wrap(err, "invalid default seed scheme")
	}
	return scheme, nil
}
