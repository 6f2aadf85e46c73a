package ledger

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/joherrer/stocks/internal/types"
	"github.com/mattn/go-sqlite3"
)

// Postgres SQLSTATEs worth one retry
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func storageError(op string, err error) error {
	return &types.StorageError{Op: op, Err: err, Transient: isConflict(err)}
}

// isConflict reports lock contention from either supported driver
func isConflict(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}
