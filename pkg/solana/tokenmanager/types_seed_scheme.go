package tokenmanager

import "crypto/ed25519"

// SeedScheme selects the seeds a token manager address is derived from, and
// with them who may request new supply.
type SeedScheme uint8

const (
	// SeedSchemeMint derives from [prefix, mint]. The manager is self-managed:
	// the stored authority is the creating payer and minting is permissionless.
	SeedSchemeMint SeedScheme = iota

	// SeedSchemeMintAndAuthority derives from [prefix, mint, authority]. The
	// authority, a keypair or another program's address, must sign every mint.
	SeedSchemeMintAndAuthority
)

func (s SeedScheme) IsValid() bool {
	switch s {
	case SeedSchemeMint, SeedSchemeMintAndAuthority:
		return true
	}
	return false
}

// IsDelegated reports whether mints require the stored authority's signature.
func (s SeedScheme) IsDelegated() bool {
	return s == SeedSchemeMintAndAuthority
}

// Seeds returns the seeds, without the bump, for a manager of mint.
func (s SeedScheme) Seeds(mint, authority ed25519.PublicKey) ([][]byte, error) {
	switch s {
	case SeedSchemeMint:
		return [][]byte{SeedPrefix, mint}, nil
	case SeedSchemeMintAndAuthority:
		if len(authority) != ed25519.PublicKeySize {
			return nil, ErrInvalidSeedScheme
		}
		return [][]byte{SeedPrefix, mint, authority}, nil
	default:
		return nil, ErrInvalidSeedScheme
	}
}

func (s SeedScheme) String() string {
	switch s {
	case SeedSchemeMint:
		return "mint"
	case SeedSchemeMintAndAuthority:
		return "mint_and_authority"
	default:
		return "unknown"
	}
}

// ParseSeedScheme is the inverse of SeedScheme.String.
func ParseSeedScheme(value string) (SeedScheme, error) {
	switch value {
	case "mint":
		return SeedSchemeMint, nil
	case "mint_and_authority":
		return SeedSchemeMintAndAuthority, nil
	default:
		return 0, ErrInvalidSeedScheme
	}
}
