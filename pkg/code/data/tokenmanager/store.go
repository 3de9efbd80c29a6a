package tokenmanager

import (
	"context"
	"errors"
	"time"

	"github.com/code-payments/token-manager-server/pkg/database/query"
	tokenmanager_program "github.com/code-payments/token-manager-server/pkg/solana/tokenmanager"
)

var (
	ErrManagerNotFound    = errors.New("token manager record not found")
	ErrStaleManagerState  = errors.New("token manager state is stale")
	ErrMintAlreadyIndexed = errors.New("another token manager is indexed for the mint")
)

// Record is the off-chain index of an on-chain token manager account
type Record struct {
	Id uint64

	Address string
	Bump    uint8

	Mint       string
	Authority  string
	SeedScheme tokenmanager_program.SeedScheme
	Decimals   uint8

	MintAmount     uint64
	TotalMintCount uint64

	// Slot is the slot at which the on-chain state was observed
	Slot uint64

	CreatedAt     time.Time
	LastUpdatedAt time.Time
}

type Store interface {
	// Save creates or updates a token manager record. Updates observed at an
	// older slot, or with a lower mint count, than the stored state fail with
	// ErrStaleManagerState. A new record whose mint is already indexed under
	// another address fails with ErrMintAlreadyIndexed.
	Save(ctx context.Context, record *Record) error

	// GetByAddress gets a token manager record by its derived address
	GetByAddress(ctx context.Context, address string) (*Record, error)

	// GetByMint gets the token manager record controlling the provided mint
	GetByMint(ctx context.Context, mint string) (*Record, error)

	// GetAll pages through every indexed token manager
	GetAll(ctx context.Context, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// Count returns the number of indexed token managers
	Count(ctx context.Context) (uint64, error)
}

func (r *Record) Validate() error {
	if len(r.Address) == 0 {
		return errors.New("address is required")
	}

	if len(r.Mint) == 0 {
		return errors.New("mint is required")
	}

	if len(r.Authority) == 0 {
		return errors.New("authority is required")
	}

	if !r.SeedScheme.IsValid() {
		return errors.New("seed scheme is invalid")
	}

	if r.MintAmount == 0 {
		return errors.New("mint amount is required")
	}

	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Id: r.Id,

		Address: r.Address,
		Bump:    r.Bump,

		Mint:       r.Mint,
		Authority:  r.Authority,
		SeedScheme: r.SeedScheme,
		Decimals:   r.Decimals,

		MintAmount:     r.MintAmount,
		TotalMintCount: r.TotalMintCount,

		Slot: r.Slot,

		CreatedAt:     r.CreatedAt,
		LastUpdatedAt: r.LastUpdatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.Address = r.Address
	dst.Bump = r.Bump

	dst.Mint = r.Mint
	dst.Authority = r.Authority
	dst.SeedScheme = r.SeedScheme
	dst.Decimals = r.Decimals

	dst.MintAmount = r.MintAmount
	dst.TotalMintCount = r.TotalMintCount

	dst.Slot = r.Slot

	dst.CreatedAt = r.CreatedAt
	dst.LastUpdatedAt = r.LastUpdatedAt
}
