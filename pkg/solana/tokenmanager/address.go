package tokenmanager

import (
	"crypto/ed25519"

	"github.com/code-payments/token-manager-server/pkg/solana"
)

type GetTokenManagerAddressArgs struct {
	Scheme    SeedScheme
	Mint      ed25519.PublicKey
	Authority ed25519.PublicKey
}

// GetTokenManagerAddress returns the manager address and its canonical bump.
func GetTokenManagerAddress(args *GetTokenManagerAddressArgs) (ed25519.PublicKey, uint8, error) {
	seeds, err := args.Scheme.Seeds(args.Mint, args.Authority)
	if err != nil {
		return nil, 0, err
	}

	return solana.FindProgramAddressAndBump(
		ProgramKey,
		seeds...,
	)
}

// SignerSeeds returns the full seed list, bump included, the program replays
// to sign as the manager.
func (obj *TokenManagerAccount) SignerSeeds() ([][]byte, error) {
	seeds, err := obj.SeedScheme.Seeds(obj.Mint, obj.Authority)
	if err != nil {
		return nil, err
	}
	return append(seeds, []byte{obj.Bump}), nil
}

// Address re-derives the manager's address from its stored seeds and bump.
func (obj *TokenManagerAccount) Address() (ed25519.PublicKey, error) {
	seeds, err := obj.SignerSeeds()
	if err != nil {
		return nil, err
	}
	return solana.CreateProgramAddress(ProgramKey, seeds...)
}
