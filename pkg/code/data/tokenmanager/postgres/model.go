package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/token-manager-server/pkg/code/data/tokenmanager"
	pgutil "github.com/code-payments/token-manager-server/pkg/database/postgres"
	q "github.com/code-payments/token-manager-server/pkg/database/query"
	tokenmanager_program "github.com/code-payments/token-manager-server/pkg/solana/tokenmanager"
)

const (
	tableName = "tokenmanager__core_manager"

	allFields = `id, address, bump, mint, authority, seed_scheme, decimals, mint_amount, total_mint_count, slot, created_at, last_updated_at`
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Address string `db:"address"`
	Bump    uint   `db:"bump"`

	Mint       string `db:"mint"`
	Authority  string `db:"authority"`
	SeedScheme uint   `db:"seed_scheme"`
	Decimals   uint   `db:"decimals"`

	MintAmount     uint64 `db:"mint_amount"`
	TotalMintCount uint64 `db:"total_mint_count"`

	Slot uint64 `db:"slot"`

	CreatedAt     time.Time `db:"created_at"`
	LastUpdatedAt time.Time `db:"last_updated_at"`
}

func toModel(obj *tokenmanager.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		Address: obj.Address,
		Bump:    uint(obj.Bump),

		Mint:       obj.Mint,
		Authority:  obj.Authority,
		SeedScheme: uint(obj.SeedScheme),
		Decimals:   uint(obj.Decimals),

		MintAmount:     obj.MintAmount,
		TotalMintCount: obj.TotalMintCount,

		Slot: obj.Slot,

		CreatedAt:     obj.CreatedAt,
		LastUpdatedAt: obj.LastUpdatedAt,
	}, nil
}

func fromModel(obj *model) *tokenmanager.Record {
	return &tokenmanager.Record{
		Id: uint64(obj.Id.Int64),

		Address: obj.Address,
		Bump:    uint8(obj.Bump),

		Mint:       obj.Mint,
		Authority:  obj.Authority,
		SeedScheme: tokenmanager_program.SeedScheme(obj.SeedScheme),
		Decimals:   uint8(obj.Decimals),

		MintAmount:     obj.MintAmount,
		TotalMintCount: obj.TotalMintCount,

		Slot: obj.Slot,

		CreatedAt:     obj.CreatedAt.UTC(),
		LastUpdatedAt: obj.LastUpdatedAt.UTC(),
	}
}

func (m *model) dbSave(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(address, bump, mint, authority, seed_scheme, decimals, mint_amount, total_mint_count, slot, created_at, last_updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)

			ON CONFLICT (address)
			DO UPDATE
				SET authority = $4, decimals = $6, mint_amount = $7, total_mint_count = $8, slot = $9, last_updated_at = $11
				WHERE ` + tableName + `.address = $1 AND ` + tableName + `.mint = $3 AND ` + tableName + `.slot <= $9 AND ` + tableName + `.total_mint_count <= $8

			RETURNING ` + allFields

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		m.LastUpdatedAt = time.Now()

		err := tx.QueryRowxContext(
			ctx,
			query,

			m.Address,
			m.Bump,

			m.Mint,
			m.Authority,
			m.SeedScheme,
			m.Decimals,

			m.MintAmount,
			m.TotalMintCount,

			m.Slot,

			m.CreatedAt.UTC(),
			m.LastUpdatedAt.UTC(),
		).StructScan(m)

		if pgutil.IsUniqueViolation(err) {
			return tokenmanager.ErrMintAlreadyIndexed
		}
		return pgutil.CheckNoRows(err, tokenmanager.ErrStaleManagerState)
	})
}

func dbGetByAddress(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	res := &model{}

	query := `SELECT ` + allFields + `
		FROM ` + tableName + `
		WHERE address = $1
		LIMIT 1`

	err := db.GetContext(ctx, res, query, address)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, tokenmanager.ErrManagerNotFound)
	}
	return res, nil
}

func dbGetByMint(ctx context.Context, db *sqlx.DB, mint string) (*model, error) {
	res := &model{}

	query := `SELECT ` + allFields + `
		FROM ` + tableName + `
		WHERE mint = $1
		LIMIT 1`

	err := db.GetContext(ctx, res, query, mint)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, tokenmanager.ErrManagerNotFound)
	}
	return res, nil
}

func dbGetAll(ctx context.Context, db *sqlx.DB, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allFields + `
		FROM ` + tableName + `
		WHERE (TRUE)
	`

	opts := []interface{}{}
	query, opts = q.PaginateQuery(query, opts, cursor, limit, direction)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, tokenmanager.ErrManagerNotFound)
	}

	if len(res) == 0 {
		return nil, tokenmanager.ErrManagerNotFound
	}
	return res, nil
}

func dbGetCount(ctx context.Context, db *sqlx.DB) (uint64, error) {
	var res uint64

	query := `SELECT COUNT(*) FROM ` + tableName
	err := db.GetContext(ctx, &res, query)
	if err != nil {
		return 0, err
	}
	return res, nil
}
