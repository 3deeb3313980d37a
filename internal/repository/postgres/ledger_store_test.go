package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountColumnNames = []string{"id", "username", "email", "password_hash", "first_name", "last_name",
	"company", "phone", "role", "status", "balance", "version", "approved_at", "approved_by",
	"rejected_at", "rejected_by", "rejection_reason", "last_login", "created_at", "updated_at"}

func accountRow(id string, status models.AccountStatus, balance int64, version int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(accountColumnNames).AddRow(id, "alice", "alice@example.com", "hash", nil, nil,
		nil, nil, "user", string(status), balance, version, nil, nil, nil, nil, nil, nil, now, now)
}

func debitBy(amount models.Money) repository.BalanceMutation {
	return func(account *models.Account) (*models.Transaction, error) {
		if account.Balance < amount {
			return nil, errors.New("insufficient funds")
		}
		return &models.Transaction{
			Type:            models.DirectionDebit,
			Amount:          amount,
			PreviousBalance: account.Balance,
			NewBalance:      account.Balance - amount,
			Description:     "VIN check",
			PerformedBy:     models.PerformedBySystem,
		}, nil
	}
}

func TestLedgerStore_ApplyBalanceChange(t *testing.T) {
	ctx := context.Background()

	t.Run("successful debit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		store := &LedgerStore{db: db}

		mock.ExpectBegin()
		mock.ExpectQuery("FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs("account1").
			WillReturnRows(accountRow("account1", models.StatusApproved, 10000, 3))
		mock.ExpectExec("INSERT INTO ledger_transactions").
			WithArgs(sqlmock.AnyArg(), "account1", "debit", 100, 10000, 9900, "VIN check", "system",
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE id = \\$3 AND version = \\$4").
			WithArgs(9900, sqlmock.AnyArg(), "account1", 3).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		account, record, err := store.ApplyBalanceChange(ctx, "account1", debitBy(100))
		require.NoError(t, err)
		assert.Equal(t, models.Money(9900), account.Balance)
		assert.Equal(t, 4, account.Version)
		assert.Equal(t, "account1", record.AccountID)
		assert.NotEmpty(t, record.ID)
		assert.False(t, record.CreatedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mutation error rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		store := &LedgerStore{db: db}

		mock.ExpectBegin()
		mock.ExpectQuery("FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs("account1").
			WillReturnRows(accountRow("account1", models.StatusApproved, 50, 1))
		mock.ExpectRollback()

		_, _, err = store.ApplyBalanceChange(ctx, "account1", debitBy(100))
		assert.EqualError(t, err, "insufficient funds")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		store := &LedgerStore{db: db}

		mock.ExpectBegin()
		mock.ExpectQuery("FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(accountColumnNames))
		mock.ExpectRollback()

		_, _, err = store.ApplyBalanceChange(ctx, "ghost", debitBy(100))
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inconsistent record is rejected", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		store := &LedgerStore{db: db}

		mock.ExpectBegin()
		mock.ExpectQuery("FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs("account1").
			WillReturnRows(accountRow("account1", models.StatusApproved, 10000, 1))
		mock.ExpectRollback()

		_, _, err = store.ApplyBalanceChange(ctx, "account1", func(a *models.Account) (*models.Transaction, error) {
			return &models.Transaction{Type: models.DirectionCredit, Amount: 100, PreviousBalance: 5000, NewBalance: 5100}, nil
		})
		assert.ErrorIs(t, err, repository.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate payment reference", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		store := &LedgerStore{db: db}

		mock.ExpectBegin()
		mock.ExpectQuery("FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs("account1").
			WillReturnRows(accountRow("account1", models.StatusApproved, 10000, 1))
		mock.ExpectExec("INSERT INTO ledger_transactions").
			WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "ledger_transactions_payment_reference_key"})
		mock.ExpectRollback()

		_, _, err = store.ApplyBalanceChange(ctx, "account1", debitBy(100))
		assert.ErrorIs(t, err, repository.ErrDuplicate)
		assert.Contains(t, err.Error(), "ledger_transactions_payment_reference_key")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerStore_updateAccountBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := &LedgerStore{db: db}
	ctx := context.Background()

	t.Run("successful update", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE id = \\$3 AND version = \\$4").
			WithArgs(4000, sqlmock.AnyArg(), "account1", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := store.updateAccountBalance(ctx, tx, "account1", 4000, 1, time.Now())
		assert.NoError(t, err)
	})

	t.Run("optimistic lock failure", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE id = \\$3 AND version = \\$4").
			WithArgs(4000, sqlmock.AnyArg(), "account1", 1).
			WillReturnResult(sqlmock.NewResult(1, 0)) // No rows affected

		err := store.updateAccountBalance(ctx, tx, "account1", 4000, 1, time.Now())
		assert.ErrorIs(t, err, repository.ErrConflict)
		assert.Contains(t, err.Error(), "optimistic lock failed")
	})
}
