// Package postgres implements the repositories on database/sql with lib/pq.
package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/roryk/backend/internal/repository"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Accounts() repository.AccountRepository {
	return &AccountRepository{db: s.db}
}

func (s *Store) Transactions() repository.TransactionRepository {
	return &TransactionRepository{db: s.db}
}

func (s *Store) Ledger() repository.LedgerStore {
	return &LedgerStore{db: s.db}
}

func (s *Store) PasswordResets() repository.PasswordResetRepository {
	return &PasswordResetRepository{db: s.db}
}

func isUniqueViolation(err error) bool {
	_, ok := uniqueConstraint(err)
	return ok
}

// uniqueConstraint reports the constraint named by a unique violation.
func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return "", false
	}
	if pqErr.Constraint == "" {
		return "unique constraint", true
	}
	return pqErr.Constraint, true
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
