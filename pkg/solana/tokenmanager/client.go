package tokenmanager

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/token-manager-server/pkg/solana"
)

// ErrTokenManagerNotFound indicates there is no token manager at an address.
var ErrTokenManagerNotFound = errors.New("token manager not found")

// GetTokenManagerAccount loads and decodes the token manager at address.
func GetTokenManagerAccount(sc solana.Client, address ed25519.PublicKey, commitment solana.Commitment) (*TokenManagerAccount, error) {
	info, err := sc.GetAccountInfo(address, commitment)
	if err == solana.ErrNoAccountInfo {
		return nil, ErrTokenManagerNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to get account info")
	}

	if !bytes.Equal(info.Owner, ProgramKey) {
		return nil, ErrTokenManagerNotFound
	}

	var account TokenManagerAccount
	if err := account.Unmarshal(info.Data); err != nil {
		return nil, errors.Wrapf(err, "invalid token manager at %s", base58.Encode(address))
	}
	return &account, nil
}

// GetTokenManagerAddressesByMint returns the addresses of every token manager
// governing mint. There is at most one per seed scheme and authority.
func GetTokenManagerAddressesByMint(sc solana.Client, mint ed25519.PublicKey) ([]ed25519.PublicKey, error) {
	encoded, _, err := sc.GetFilteredProgramAccounts(ProgramKey, TokenManagerMintOffset, mint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get program accounts")
	}

	res := make([]ed25519.PublicKey, 0, len(encoded))
	for _, v := range encoded {
		decoded, err := base58.Decode(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid address %s", v)
		}
		res = append(res, decoded)
	}
	return res, nil
}
