package tokenmanager

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-manager-server/pkg/retry"
	"github.com/code-payments/token-manager-server/pkg/retry/backoff"
	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/computebudget"
	"github.com/code-payments/token-manager-server/pkg/solana/memo"
	"github.com/code-payments/token-manager-server/pkg/solana/token"
)

const (
	memoPrefix = "token-manager:"

	maxSubmitBackoff = 5 * time.Second
)

var errNotConfirmed = errors.New("transaction not confirmed")

// submit signs a transaction paid for by the service payer and submits it.
// Rejections that leave no trace on chain, such as account lock contention or
// an expired blockhash, are resubmitted against a fresh blockhash.
func (s *Service) submit(ctx context.Context, operation string, signers []ed25519.PrivateKey, instructions ...solana.Instruction) (solana.Signature, error) {
	log := s.log.WithFields(logrus.Fields{
		"method":    "submit",
		"operation": operation,
	})

	instructions = append(s.budgetInstructions(ctx), instructions...)
	instructions = append(instructions, memo.Instruction(memoPrefix+operation))

	allSigners := append([]ed25519.PrivateKey{s.payer}, signers...)

	var sig solana.Signature
	attempts, err := retry.RetryContext(
		ctx,
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			blockhash, err := s.sc.GetLatestBlockhash()
			if err != nil {
				return err
			}

			txn := solana.NewTransaction(s.payerKey, instructions...)
			txn.SetBlockhash(blockhash)
			if err := txn.Sign(allSigners...); err != nil {
				return errors.Wrap(err, "failed to sign transaction")
			}

			sig, err = s.sc.SubmitTransaction(txn, solana.CommitmentConfirmed)
			return err
		},
		retry.Limit(uint(s.conf.submitAttempts.Get(ctx))),
		retry.RetriableIf(isTransient),
		retry.Backoff(backoff.BinaryExponential(s.conf.submitBackoff.Get(ctx)), maxSubmitBackoff),
	)
	if attempts > 1 {
		recordSubmitRetriedEvent(ctx, operation, attempts, err)
	}
	if err != nil {
		log.WithError(err).WithField("attempts", attempts).Debug("transaction rejected")
		if isTransient(err) {
			return sig, ErrTransientUnavailable
		}
		return sig, toServiceError(err)
	}

	log = log.WithField("signature", sig.ToBase58())
	if err := s.confirm(ctx, sig); err != nil {
		log.WithError(err).Warn("transaction not confirmed")
		return sig, err
	}

	log.Debug("transaction confirmed")
	return sig, nil
}

// budgetInstructions returns the configured compute budget settings, if any.
func (s *Service) budgetInstructions(ctx context.Context) []solana.Instruction {
	var res []solana.Instruction
	if limit := s.conf.computeUnitLimit.Get(ctx); limit > 0 {
		res = append(res, computebudget.SetComputeUnitLimit(uint32(limit)))
	}
	if price := s.conf.computeUnitPrice.Get(ctx); price > 0 {
		res = append(res, computebudget.SetComputeUnitPrice(price))
	}
	return res
}

// confirm polls a submitted transaction's status until it is confirmed.
func (s *Service) confirm(ctx context.Context, sig solana.Signature) error {
	start := time.Now()

	pollInterval := s.conf.confirmPollInterval.Get(ctx)
	maxAttempts := uint(s.conf.confirmTimeout.Get(ctx)/pollInterval) + 1

	_, err := retry.RetryContext(
		ctx,
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			status, err := s.sc.GetSignatureStatus(sig, solana.CommitmentConfirmed)
			if err != nil {
				return err
			}
			if status.ErrorResult != nil {
				return status.ErrorResult
			}
			if !status.Confirmed() {
				return errNotConfirmed
			}
			return nil
		},
		retry.Limit(maxAttempts),
		retry.RetriableErrors(errNotConfirmed, solana.ErrSignatureNotFound, solana.ErrServiceUnavailable, solana.ErrRateLimited),
		retry.Backoff(backoff.Constant(pollInterval), pollInterval),
	)
	switch {
	case err == nil:
		recordConfirmLatency(ctx, time.Since(start))
		return nil
	case errors.Is(err, errNotConfirmed), isTransient(err), errors.Is(err, solana.ErrSignatureNotFound):
		return ErrTransientUnavailable
	default:
		return toServiceError(err)
	}
}

// waitForTokenBalance polls a token account until it becomes visible and
// returns its balance.
func (s *Service) waitForTokenBalance(ctx context.Context, account ed25519.PublicKey) (uint64, error) {
	pollInterval := s.conf.confirmPollInterval.Get(ctx)
	maxAttempts := uint(s.conf.confirmTimeout.Get(ctx)/pollInterval) + 1

	var balance uint64
	_, err := retry.RetryContext(
		ctx,
		func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			var err error
			balance, _, err = s.sc.GetTokenAccountBalance(account)
			return err
		},
		retry.Limit(maxAttempts),
		retry.RetriableErrors(solana.ErrNoBalance, solana.ErrServiceUnavailable, solana.ErrRateLimited),
		retry.Backoff(backoff.Constant(pollInterval), pollInterval),
	)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"method":  "waitForTokenBalance",
			"account": base58.Encode(account),
		}).Warn("token account not visible")

		if errors.Is(err, solana.ErrNoBalance) || isTransient(err) {
			return 0, ErrTransientUnavailable
		}
		return 0, err
	}
	return balance, nil
}

func getMint(sc solana.Client, mint ed25519.PublicKey) (*token.Mint, error) {
	account, err := token.NewClient(sc, mint).GetMint(solana.CommitmentConfirmed)
	switch err {
	case nil:
		return account, nil
	case token.ErrAccountNotFound, token.ErrInvalidMint:
		return nil, ErrManagerNotFound
	default:
		return nil, err
	}
}
