package tokenmanager

import (
	"bytes"
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

type MintSupplyRequest struct {
	Mint      ed25519.PublicKey
	Recipient ed25519.PublicKey

	// Authority signs for managers with a delegated keypair authority
	Authority ed25519.PrivateKey
}

type MintSupplyResponse struct {
	Manager   *Manager
	Signature solana.Signature

	// TokenAccount is the recipient's associated token account
	TokenAccount ed25519.PublicKey

	// Balance is read after the mint commits, so it may include concurrent
	// mints to the same recipient. It is zero when the account could not be
	// read back.
	Balance uint64
}

// MintSupply mints the manager's fixed amount to the recipient's associated
// token account, creating the account when it doesn't exist. Every call mints.
func (s *Service) MintSupply(ctx context.Context, req *MintSupplyRequest) (*MintSupplyResponse, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "MintSupply")
	defer tracer.End()

	resp, err := s.mintSupply(ctx, req)
	tracer.OnError(err)
	return resp, err
}

func (s *Service) mintSupply(ctx context.Context, req *MintSupplyRequest) (*MintSupplyResponse, error) {
	if len(req.Mint) != ed25519.PublicKeySize || len(req.Recipient) != ed25519.PublicKeySize {
		return nil, errors.Wrap(ErrInvalidRequest, "mint and recipient are required")
	}

	recipient := base58.Encode(req.Recipient)
	log := s.log.WithFields(logrus.Fields{
		"method":    "MintSupply",
		"mint":      base58.Encode(req.Mint),
		"recipient": recipient,
	})

	allowed, err := s.mintLimiter.Allow(recipient)
	if err != nil {
		log.WithError(err).Warn("failure checking rate limit")
	} else if !allowed {
		return nil, ErrRateLimited
	}

	manager, err := s.GetManager(ctx, req.Mint)
	if err != nil {
		return nil, err
	}

	var signers []ed25519.PrivateKey
	if manager.SeedScheme.IsDelegated() {
		if req.Authority == nil {
			return nil, errors.Wrap(ErrUnauthorized, "authority signature required")
		}
		if !bytes.Equal(req.Authority.Public().(ed25519.PublicKey), manager.Authority) {
			return nil, errors.Wrap(ErrUnauthorized, "authority does not match the token manager")
		}
		signers = append(signers, req.Authority)
	}

	tokenAccount, err := token.GetAssociatedAccount(req.Recipient, req.Mint)
	if err != nil {
		return nil, err
	}

	ix := tokenmanager_program.NewMintTokenSupplyInstruction(&tokenmanager_program.MintTokenSupplyInstructionAccounts{
		Payer:                 s.payerKey,
		Recipient:             req.Recipient,
		RecipientTokenAccount: tokenAccount,
		Mint:                  req.Mint,
		TokenManager:          manager.Address,
		Authority:             manager.Authority,
		AuthoritySigns:        manager.SeedScheme.IsDelegated(),
	})

	// One in-flight mint per manager
	unlock := s.mintLocks.Lock(req.Mint)
	sig, err := s.submit(ctx, "mint_supply", signers, ix)
	unlock()
	if err != nil {
		log.WithError(err).Info("failure minting supply")
		if err == ErrDerivationMismatch || err == ErrMintMismatch {
			s.managers.Delete(cacheKey(req.Mint))
		}
		return nil, err
	}

	log = log.WithField("signature", sig.ToBase58())

	// The mint has committed, so failures reading it back are logged rather
	// than returned. A caller retrying after an error would mint again.
	balance, err := s.waitForTokenBalance(ctx, tokenAccount)
	if err != nil {
		log.WithError(err).Warn("failure reading recipient balance")
	}

	updated, err := s.refresh(ctx, manager.Address)
	if err != nil {
		log.WithError(err).Warn("failure refreshing token manager")

		fallback := manager.clone()
		fallback.TotalMintCount++
		updated = &fallback
	}

	log.WithField("total_mint_count", updated.TotalMintCount).Debug("supply minted")
	recordSupplyMintedEvent(ctx, updated, recipient)

	return &MintSupplyResponse{
		Manager:      updated,
		Signature:    sig,
		TokenAccount: tokenAccount,
		Balance:      balance,
	}, nil
}
