package tokenmanager

import (
	"errors"

	"github.com/code-payments/token-manager-server/pkg/solana"
	tokenmanager_program "github.com/code-payments/token-manager-server/pkg/solana/tokenmanager"
)

var (
	ErrDerivationMismatch   = errors.New("token manager address does not match its derivation")
	ErrAlreadyInitialized   = errors.New("token manager already initialized")
	ErrUnauthorized         = errors.New("signer is not authorized for the token manager or mint")
	ErrOwnershipConstraint  = errors.New("token account is owned by another principal")
	ErrMintMismatch         = errors.New("mint does not match the token manager")
	ErrTransientUnavailable = errors.New("blockchain state is temporarily unavailable")
	ErrRateLimited          = errors.New("too many mint requests")
	ErrManagerNotFound      = errors.New("token manager not found")
	ErrInvalidRequest       = errors.New("invalid request")
)

// toServiceError maps a failed transaction onto the service's error set.
// Errors without a mapping are returned as is.
func toServiceError(err error) error {
	var txErr *solana.TransactionError
	if !errors.As(err, &txErr) {
		return err
	}

	switch {
	case txErr.Is(tokenmanager_program.ErrorDerivationMismatch):
		return ErrDerivationMismatch
	case txErr.Is(tokenmanager_program.ErrorMintMismatch):
		return ErrMintMismatch
	case txErr.Is(tokenmanager_program.ErrorUnauthorizedAuthority),
		txErr.Is(solana.InstructionErrorMissingRequiredSignature),
		txErr.Is(solana.InstructionErrorPrivilegeEscalation):
		return ErrUnauthorized
	case txErr.Is(tokenmanager_program.ErrorTokenAccountOwnerMismatch),
		txErr.Is(tokenmanager_program.ErrorAssociatedAddressMismatch),
		txErr.Is(solana.InstructionErrorIllegalOwner):
		return ErrOwnershipConstraint
	case txErr.Is(solana.InstructionErrorAccountAlreadyInitialized):
		return ErrAlreadyInitialized
	case txErr.Is(tokenmanager_program.ErrorInvalidSeedScheme),
		txErr.Is(tokenmanager_program.ErrorInvalidMintAmount):
		return ErrInvalidRequest
	case isTransient(txErr):
		return ErrTransientUnavailable
	}
	return err
}

// isTransient reports whether a rejected transaction may succeed when
// resubmitted unchanged against a fresh blockhash.
func isTransient(err error) bool {
	var txErr *solana.TransactionError
	if !errors.As(err, &txErr) {
		return errors.Is(err, solana.ErrServiceUnavailable) || errors.Is(err, solana.ErrRateLimited)
	}

	return txErr.Is(solana.TransactionErrorAccountInUse) ||
		txErr.Is(solana.TransactionErrorBlockhashNotFound)
}
