package pg

import (
	"database/sql"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"
)

// CheckNoRows translates sql.ErrNoRows into outErr
func CheckNoRows(inErr, outErr error) error {
	if IsNoRows(inErr) {
		return outErr
	}
	return inErr
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsUniqueViolation reports whether a write conflicted with a unique index
func IsUniqueViolation(err error) bool {
	return hasErrorCode(err, pgerrcode.UniqueViolation)
}

// IsSerializationFailure reports whether a transaction lost a concurrent
// update race and can be rerun
func IsSerializationFailure(err error) bool {
	return hasErrorCode(err, pgerrcode.SerializationFailure) || hasErrorCode(err, pgerrcode.DeadlockDetected)
}

func hasErrorCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
