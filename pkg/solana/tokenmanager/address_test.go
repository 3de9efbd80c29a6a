package tokenmanager

import (
	"bytes"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/testutil"
)

func TestProgramKey(t *testing.T) {
	assert.Equal(t, "9T7y6YzHKFfHjpueENveMTidXcLmME1DK6TEjqQ753jc", base58.Encode(ProgramKey))
}

func TestGetTokenManagerAddress_Uniqueness(t *testing.T) {
	mints := testutil.GenerateSolanaKeys(t, 32)
	authorities := testutil.GenerateSolanaKeys(t, 2)

	seen := make(map[string]struct{})
	for _, mint := range mints {
		for _, args := range []*GetTokenManagerAddressArgs{
			{Scheme: SeedSchemeMint, Mint: mint},
			{Scheme: SeedSchemeMintAndAuthority, Mint: mint, Authority: authorities[0]},
			{Scheme: SeedSchemeMintAndAuthority, Mint: mint, Authority: authorities[1]},
		} {
			address, bump, err := GetTokenManagerAddress(args)
			require.NoError(t, err)
			assert.False(t, solana.IsOnCurve(address))

			_, ok := seen[string(address)]
			assert.False(t, ok)
			seen[string(address)] = struct{}{}

			// Deterministic
			again, againBump, err := GetTokenManagerAddress(args)
			require.NoError(t, err)
			assert.Equal(t, address, again)
			assert.Equal(t, bump, againBump)
		}
	}
}

func TestGetTokenManagerAddress_Seeds(t *testing.T) {
	mint := testutil.GenerateSolanaKeys(t, 1)[0]

	// The self-managed scheme ignores the authority
	a, _, err := GetTokenManagerAddress(&GetTokenManagerAddressArgs{Scheme: SeedSchemeMint, Mint: mint})
	require.NoError(t, err)
	b, _, err := GetTokenManagerAddress(&GetTokenManagerAddressArgs{Scheme: SeedSchemeMint, Mint: mint, Authority: testutil.GenerateSolanaKeys(t, 1)[0]})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	expected, err := solana.FindProgramAddress(ProgramKey, []byte("dapp-token-manager"), mint)
	require.NoError(t, err)
	assert.Equal(t, expected, a)

	_, _, err = GetTokenManagerAddress(&GetTokenManagerAddressArgs{Scheme: SeedSchemeMintAndAuthority, Mint: mint})
	assert.Equal(t, ErrInvalidSeedScheme, err)

	_, _, err = GetTokenManagerAddress(&GetTokenManagerAddressArgs{Scheme: SeedScheme(2), Mint: mint})
	assert.Equal(t, ErrInvalidSeedScheme, err)

	// Textual keys exceed the seed length limit, the binary form must be used
	_, err = solana.FindProgramAddress(ProgramKey, SeedPrefix, []byte(base58.Encode(mint)))
	assert.Equal(t, solana.ErrMaxSeedLengthExceeded, err)
}

func TestTokenManagerAccount_Address(t *testing.T) {
	keys := testutil.GenerateSolanaKeys(t, 2)
	mint, authority := keys[0], keys[1]

	for _, scheme := range []SeedScheme{SeedSchemeMint, SeedSchemeMintAndAuthority} {
		address, bump, err := GetTokenManagerAddress(&GetTokenManagerAddressArgs{Scheme: scheme, Mint: mint, Authority: authority})
		require.NoError(t, err)

		account := &TokenManagerAccount{
			Mint:       mint,
			Authority:  authority,
			Bump:       bump,
			SeedScheme: scheme,
		}

		actual, err := account.Address()
		require.NoError(t, err)
		assert.Equal(t, address, actual)

		seeds, err := account.SignerSeeds()
		require.NoError(t, err)
		assert.Equal(t, []byte{bump}, seeds[len(seeds)-1])

		// Any other bump derives a different address, or none at all
		account.Bump = bump - 1
		other, err := account.Address()
		if err == nil {
			assert.False(t, bytes.Equal(address, other))
		} else {
			assert.Equal(t, solana.ErrInvalidPublicKey, err)
		}
	}
}

func TestSeedScheme(t *testing.T) {
	for _, scheme := range []SeedScheme{SeedSchemeMint, SeedSchemeMintAndAuthority} {
		assert.True(t, scheme.IsValid())

		parsed, err := ParseSeedScheme(scheme.String())
		require.NoError(t, err)
		assert.Equal(t, scheme, parsed)
	}

	assert.False(t, SeedSchemeMint.IsDelegated())
	assert.True(t, SeedSchemeMintAndAuthority.IsDelegated())
	assert.False(t, SeedScheme(7).IsValid())

	_, err := ParseSeedScheme("v3")
	assert.Equal(t, ErrInvalidSeedScheme, err)
}
