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

type PasswordResetRepository struct {
	db *sql.DB
}

func (r *PasswordResetRepository) Create(ctx context.Context, reset *models.PasswordReset) error {
	if reset.ID == "" {
		reset.ID = uuid.NewString()
	}
	if reset.CreatedAt.IsZero() {
		reset.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO password_resets (id, account_id, email, token_hash, expires_at, used, created_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		reset.ID, reset.AccountID, reset.Email, reset.TokenHash, reset.ExpiresAt, reset.Used,
		reset.CreatedAt, reset.IPAddress, reset.UserAgent)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: reset token", repository.ErrDuplicate)
		}
		return fmt.Errorf("insert password reset: %w", err)
	}
	return nil
}

func (r *PasswordResetRepository) FindValid(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordReset, error) {
	var p models.PasswordReset
	err := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, email, token_hash, expires_at, used, created_at, ip_address, user_agent
		FROM password_resets
		WHERE token_hash = $1 AND used = FALSE AND expires_at > $2`, tokenHash, now).
		Scan(&p.ID, &p.AccountID, &p.Email, &p.TokenHash, &p.ExpiresAt, &p.Used, &p.CreatedAt, &p.IPAddress, &p.UserAgent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: reset token", repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select password reset: %w", err)
	}
	return &p, nil
}

func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE password_resets SET used = TRUE WHERE id = $1 AND used = FALSE`, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: reset %s", repository.ErrNotFound, id)
	}
	return nil
}

func (r *PasswordResetRepository) CountRecent(ctx context.Context, accountID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM password_resets WHERE account_id = $1 AND created_at > $2`, accountID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count password resets: %w", err)
	}
	return n, nil
}

func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE used = TRUE OR expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired password resets: %w", err)
	}
	return result.RowsAffected()
}
