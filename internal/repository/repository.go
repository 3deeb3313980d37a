package repository

import (
	"context"
	"errors"
	"time"

	"github.com/roryk/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
	ErrConflict  = errors.New("concurrent modification")
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	ListByStatus(ctx context.Context, status models.AccountStatus) ([]*models.Account, error)
	UpdateStatus(ctx context.Context, id string, change models.StatusChange) (*models.Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	// Delete removes the account together with its transactions and reset tokens.
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// TransactionFilter narrows the administrative transaction listing.
type TransactionFilter struct {
	Type        models.Direction
	ServiceType models.ServiceType
	Page        int
	Limit       int
}

// Offset returns the zero-based row offset of the page.
func (f TransactionFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

type TransactionRepository interface {
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	GetByPaymentReference(ctx context.Context, reference string) (*models.Transaction, error)
	// ListByAccount returns the account's records newest-first.
	ListByAccount(ctx context.Context, accountID string) ([]*models.Transaction, error)
	// ListServiceByAccount returns only debits carrying a service type, newest-first.
	ListServiceByAccount(ctx context.Context, accountID string) ([]*models.Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]*models.Transaction, int, error)
}

// BalanceMutation computes the record to append from the locked account snapshot.
// Returning an error aborts the unit of work without any write.
type BalanceMutation func(account *models.Account) (*models.Transaction, error)

// LedgerStore applies a balance change and its record as one atomic unit.
type LedgerStore interface {
	ApplyBalanceChange(ctx context.Context, accountID string, fn BalanceMutation) (*models.Account, *models.Transaction, error)
}

type PasswordResetRepository interface {
	Create(ctx context.Context, reset *models.PasswordReset) error
	FindValid(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordReset, error)
	// MarkUsed claims an unused reset. A missing or already used reset
	// returns ErrNotFound.
	MarkUsed(ctx context.Context, id string) error
	CountRecent(ctx context.Context, accountID string, since time.Time) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store bundles every repository a running service needs.
type Store interface {
	Accounts() AccountRepository
	Transactions() TransactionRepository
	Ledger() LedgerStore
	PasswordResets() PasswordResetRepository
}
