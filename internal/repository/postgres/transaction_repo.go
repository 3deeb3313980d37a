package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
)

const transactionColumns = `id, account_id, type, amount, previous_balance, new_balance, description,
	performed_by, service_type, check_data, vehicle_identifier, payment_reference, created_at`

type TransactionRepository struct {
	db *sql.DB
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.PreviousBalance, &t.NewBalance,
		&t.Description, &t.PerformedBy, &t.ServiceType, &t.CheckData, &t.VehicleIdentifier,
		&t.PaymentReference, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) getBy(ctx context.Context, column, value string) (*models.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM ledger_transactions WHERE `+column+` = $1`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s=%s", repository.ErrNotFound, column, value)
	}
	if err != nil {
		return nil, fmt.Errorf("select transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	return r.getBy(ctx, "id", id)
}

func (r *TransactionRepository) GetByPaymentReference(ctx context.Context, reference string) (*models.Transaction, error) {
	return r.getBy(ctx, "payment_reference", reference)
}

func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	return r.query(ctx, `SELECT `+transactionColumns+` FROM ledger_transactions
		WHERE account_id = $1 ORDER BY created_at DESC, seq DESC`, accountID)
}

func (r *TransactionRepository) ListServiceByAccount(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	return r.query(ctx, `SELECT `+transactionColumns+` FROM ledger_transactions
		WHERE account_id = $1 AND type = 'debit' AND service_type IS NOT NULL
		ORDER BY created_at DESC, seq DESC`, accountID)
}

func (r *TransactionRepository) List(ctx context.Context, filter repository.TransactionFilter) ([]*models.Transaction, int, error) {
	var where []string
	var args []any
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.ServiceType != "" {
		args = append(args, filter.ServiceType)
		where = append(where, fmt.Sprintf("service_type = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_transactions`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions` + clause + ` ORDER BY created_at DESC, seq DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	txs, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

func (r *TransactionRepository) query(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []*models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
