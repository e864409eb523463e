// Package store is the persistence layer for payments, generation locks, receipts and
// their side records. A Store wraps a request-scoped *gorm.DB; it holds no state of its
// own and is built once per request.
package store

import (
	"errors"
	"strings"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres unique_violation.
const uniqueViolationCode = "23505"

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// IsUniqueViolation reports whether err came from a unique index rejecting an insert.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.Wrap(op, errs.ErrNotFound, err)
	}
	return errs.Wrap(op, errs.ErrUnavailable, err)
}
