package tokenmanager

import (
	"crypto/ed25519"
	"errors"

	"github.com/code-payments/token-manager-server/pkg/solana"
)

// ProgramKey is the address of the token manager program.
//
// Current key: 9T7y6YzHKFfHjpueENveMTidXcLmME1DK6TEjqQ753jc
var ProgramKey = ed25519.PublicKey{125, 142, 121, 104, 84, 85, 143, 157, 24, 241, 231, 39, 110, 227, 83, 242, 15, 115, 233, 133, 57, 143, 129, 70, 22, 204, 183, 45, 42, 212, 166, 79}

// SeedPrefix is the first seed of every token manager address.
var SeedPrefix = []byte("dapp-token-manager")

const (
	DefaultDecimals      = 9
	DefaultQuarksPerUnit = 1_000_000_000
	DefaultMintAmount    = 100 * DefaultQuarksPerUnit // 100 tokens with 9 decimals
)

var (
	ErrInvalidProgram         = errors.New("invalid program id")
	ErrInvalidAccountData     = errors.New("unexpected account data")
	ErrInvalidInstructionData = errors.New("unexpected instruction data")
	ErrInvalidSeedScheme      = errors.New("invalid seed scheme")
)

// Custom program errors. Codes start at 6000 so they don't collide with the
// framework range.
const (
	ErrorDerivationMismatch solana.CustomError = 6000 + iota
	ErrorMintMismatch
	ErrorUnauthorizedAuthority
	ErrorTokenAccountOwnerMismatch
	ErrorAssociatedAddressMismatch
	ErrorCounterOverflow
	ErrorInvalidSeedScheme
	ErrorInvalidMintAmount
	ErrorInvalidAccountData
)
