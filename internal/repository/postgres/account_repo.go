package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
)

const accountColumns = `id, username, email, password_hash, first_name, last_name, company, phone,
	role, status, balance, version, approved_at, approved_by, rejected_at, rejected_by,
	rejection_reason, last_login, created_at, updated_at`

type AccountRepository struct {
	db *sql.DB
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName,
		&a.Company, &a.Phone, &a.Role, &a.Status, &a.Balance, &a.Version, &a.ApprovedAt,
		&a.ApprovedBy, &a.RejectedAt, &a.RejectedBy, &a.RejectionReason, &a.LastLogin,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	if account.Version == 0 {
		account.Version = 1
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, username, email, password_hash, first_name, last_name, company, phone,
			role, status, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		account.ID, account.Username, account.Email, account.PasswordHash, account.FirstName,
		account.LastName, account.Company, account.Phone, account.Role, account.Status,
		account.Balance, account.Version, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: account %s", repository.ErrDuplicate, account.Username)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) getBy(ctx context.Context, column, value string) (*models.Account, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+column+` = $1`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s=%s", repository.ErrNotFound, column, value)
	}
	if err != nil {
		return nil, fmt.Errorf("select account: %w", err)
	}
	return account, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.getBy(ctx, "id", id)
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.getBy(ctx, "username", username)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getBy(ctx, "email", strings.ToLower(email))
}

func (r *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC, id DESC`)
}

func (r *AccountRepository) ListByStatus(ctx context.Context, status models.AccountStatus) ([]*models.Account, error) {
	return r.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE status = $1 ORDER BY created_at DESC, id DESC`, status)
}

func (r *AccountRepository) query(ctx context.Context, query string, args ...any) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []*models.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, change models.StatusChange) (*models.Account, error) {
	var query string
	args := []any{change.Status, change.ChangedAt, change.Actor, id}
	switch change.Status {
	case models.StatusApproved:
		query = `UPDATE accounts SET status = $1, approved_at = $2, approved_by = $3, updated_at = NOW()
			WHERE id = $4 RETURNING ` + accountColumns
	case models.StatusRejected:
		query = `UPDATE accounts SET status = $1, rejected_at = $2, rejected_by = $3, rejection_reason = $5, updated_at = NOW()
			WHERE id = $4 RETURNING ` + accountColumns
		args = append(args, change.Reason)
	default:
		query = `UPDATE accounts SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + accountColumns
		args = []any{change.Status, id}
	}

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update account status: %w", err)
	}
	return account, nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.execOne(ctx, `UPDATE accounts SET password_hash = $1, updated_at = NOW() WHERE id = $2`, id, passwordHash, id)
}

func (r *AccountRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, `UPDATE accounts SET last_login = $1 WHERE id = $2`, id, at, id)
}

// Delete relies on ON DELETE CASCADE for ledger_transactions and password_resets.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM accounts WHERE id = $1`, id, id)
}

func (r *AccountRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

func (r *AccountRepository) execOne(ctx context.Context, query, id string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	return nil
}
