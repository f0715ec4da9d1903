package repository

import (
	"database/sql"
	"errors"

	"marketplace-svc/apperrors"

	"github.com/lib/pq"
)

// Store is the Postgres implementation of every storage port used by the
// checkout, ledger, confirmation and reconciliation services.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return apperrors.ErrDuplicate
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}
