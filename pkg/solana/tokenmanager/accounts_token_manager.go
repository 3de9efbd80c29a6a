package tokenmanager

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/code-payments/token-manager-server/pkg/solana/binary"
)

const (
	TokenManagerAccountSize = (8 + // discriminator
		32 + // mint
		32 + // authority
		8 + // mint_amount
		8 + // total_mint_count
		1 + // bump
		1 + // seed_scheme
		1 + // decimals
		5) // padding

	// Offsets usable as account filters
	TokenManagerMintOffset      = 8
	TokenManagerAuthorityOffset = 8 + 32
)

var TokenManagerAccountDiscriminator = accountDiscriminator("TokenManager")

type TokenManagerAccount struct {
	Mint           ed25519.PublicKey
	Authority      ed25519.PublicKey
	MintAmount     uint64
	TotalMintCount uint64
	Bump           uint8
	SeedScheme     SeedScheme
	Decimals       uint8
}

func (obj *TokenManagerAccount) Marshal() []byte {
	data := make([]byte, TokenManagerAccountSize)

	var offset int
	copy(data, TokenManagerAccountDiscriminator)
	offset += len(TokenManagerAccountDiscriminator)

	binary.PutKey32(data[offset:], obj.Mint, &offset)
	binary.PutKey32(data[offset:], obj.Authority, &offset)
	binary.PutUint64(data[offset:], obj.MintAmount, &offset)
	binary.PutUint64(data[offset:], obj.TotalMintCount, &offset)
	binary.PutUint8(data[offset:], obj.Bump, &offset)
	binary.PutUint8(data[offset:], uint8(obj.SeedScheme), &offset)
	binary.PutUint8(data[offset:], obj.Decimals, &offset)

	return data
}

func (obj *TokenManagerAccount) Unmarshal(data []byte) error {
	if len(data) < TokenManagerAccountSize {
		return ErrInvalidAccountData
	}
	if !bytes.Equal(data[:len(TokenManagerAccountDiscriminator)], TokenManagerAccountDiscriminator) {
		return ErrInvalidAccountData
	}

	offset := len(TokenManagerAccountDiscriminator)

	var scheme uint8
	binary.GetKey32(data[offset:], &obj.Mint, &offset)
	binary.GetKey32(data[offset:], &obj.Authority, &offset)
	binary.GetUint64(data[offset:], &obj.MintAmount, &offset)
	binary.GetUint64(data[offset:], &obj.TotalMintCount, &offset)
	binary.GetUint8(data[offset:], &obj.Bump, &offset)
	binary.GetUint8(data[offset:], &scheme, &offset)
	binary.GetUint8(data[offset:], &obj.Decimals, &offset)

	obj.SeedScheme = SeedScheme(scheme)
	if !obj.SeedScheme.IsValid() {
		return ErrInvalidAccountData
	}

	return nil
}

func (obj *TokenManagerAccount) String() string {
	return fmt.Sprintf(
		"TokenManager{mint=%s,authority=%s,mint_amount=%d,total_mint_count=%d,bump=%d,seed_scheme=%s,decimals=%d}",
		base58.Encode(obj.Mint),
		base58.Encode(obj.Authority),
		obj.MintAmount,
		obj.TotalMintCount,
		obj.Bump,
		obj.SeedScheme,
		obj.Decimals,
	)
}

// accountDiscriminator is the first 8 bytes of sha256("account:<name>").
func accountDiscriminator(name string) []byte {
	h := sha256.Sum256([]byte("account:" + name))
	return h[:8]
}
