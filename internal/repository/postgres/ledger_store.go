package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
)

// LedgerStore writes the balance and its ledger record in one database
// transaction. The account row is locked with SELECT ... FOR UPDATE and the
// balance update is guarded by the version column.
type LedgerStore struct {
	db *sql.DB
}

func (s *LedgerStore) ApplyBalanceChange(ctx context.Context, accountID string, fn repository.BalanceMutation) (*models.Account, *models.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	account, err := s.lockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, nil, err
	}

	record, err := fn(account.Clone())
	if err != nil {
		return nil, nil, err
	}
	if record.PreviousBalance != account.Balance || !record.Consistent() {
		return nil, nil, fmt.Errorf("%w: record does not match balance of account %s", repository.ErrConflict, accountID)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.AccountID = accountID

	if err := s.insertTransaction(ctx, tx, record); err != nil {
		return nil, nil, err
	}

	updatedAt := time.Now()
	if err := s.updateAccountBalance(ctx, tx, accountID, record.NewBalance, account.Version, updatedAt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit ledger change: %w", err)
	}

	account.Balance = record.NewBalance
	account.Version++
	account.UpdatedAt = updatedAt
	return account, record, nil
}

func (s *LedgerStore) lockAccount(ctx context.Context, tx *sql.Tx, accountID string) (*models.Account, error) {
	account, err := scanAccount(tx.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}
	return account, nil
}

func (s *LedgerStore) insertTransaction(ctx context.Context, tx *sql.Tx, t *models.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_transactions (id, account_id, type, amount, previous_balance, new_balance,
			description, performed_by, service_type, check_data, vehicle_identifier, payment_reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.AccountID, t.Type, t.Amount, t.PreviousBalance, t.NewBalance, t.Description,
		t.PerformedBy, t.ServiceType, t.CheckData, t.VehicleIdentifier, t.PaymentReference, t.CreatedAt)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			return fmt.Errorf("%w: ledger transaction violates %s", repository.ErrDuplicate, constraint)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *LedgerStore) updateAccountBalance(ctx context.Context, tx *sql.Tx, accountID string, newBalance models.Money, version int, at time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, at, accountID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: optimistic lock failed for account %s", repository.ErrConflict, accountID)
	}

	return nil
}
