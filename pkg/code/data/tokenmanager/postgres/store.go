package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/token-manager-server/pkg/code/data/tokenmanager"
	"github.com/code-payments/token-manager-server/pkg/database/query"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed tokenmanager.Store
func New(db *sql.DB) tokenmanager.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Save implements tokenmanager.Store.Save
func (s *store) Save(ctx context.Context, record *tokenmanager.Record) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	err = obj.dbSave(ctx, s.db)
	if err != nil {
		return err
	}

	res := fromModel(obj)
	res.CopyTo(record)

	return nil
}

// GetByAddress implements tokenmanager.Store.GetByAddress
func (s *store) GetByAddress(ctx context.Context, address string) (*tokenmanager.Record, error) {
	model, err := dbGetByAddress(ctx, s.db, address)
	if err != nil {
		return nil, err
	}
	return fromModel(model), nil
}

// GetByMint implements tokenmanager.Store.GetByMint
func (s *store) GetByMint(ctx context.Context, mint string) (*tokenmanager.Record, error) {
	model, err := dbGetByMint(ctx, s.db, mint)
	if err != nil {
		return nil, err
	}
	return fromModel(model), nil
}

// GetAll implements tokenmanager.Store.GetAll
func (s *store) GetAll(ctx context.Context, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*tokenmanager.Record, error) {
	models, err := dbGetAll(ctx, s.db, cursor, limit, direction)
	if err != nil {
		return nil, err
	}

	res := make([]*tokenmanager.Record, len(models))
	for i, model := range models {
		res[i] = fromModel(model)
	}
	return res, nil
}

// Count implements tokenmanager.Store.Count
func (s *store) Count(ctx context.Context) (uint64, error) {
	return dbGetCount(ctx, s.db)
}
