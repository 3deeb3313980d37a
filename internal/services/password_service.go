package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/roryk/backend/internal/config"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
	"go.uber.org/zap"
)

const resetTokenBytes = 32

// ResetRequest carries the request metadata stored with a reset token.
type ResetRequest struct {
	Email     string
	IPAddress string
	UserAgent string
}

type PasswordService struct {
	accounts repository.AccountRepository
	resets   repository.PasswordResetRepository
	hasher   *PasswordHasher
	email    EmailSender
	cfg      config.PasswordConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewPasswordService(store repository.Store, hasher *PasswordHasher, email EmailSender, cfg config.PasswordConfig, logger *zap.Logger) *PasswordService {
	return &PasswordService{
		accounts: store.Accounts(),
		resets:   store.PasswordResets(),
		hasher:   hasher,
		email:    email,
		cfg:      cfg,
		logger:   logger.Named("password"),
		now:      time.Now,
	}
}

// RequestReset issues a reset token and mails the link. Unknown addresses
// succeed silently so callers cannot probe for registered emails.
func (s *PasswordService) RequestReset(ctx context.Context, req ResetRequest) error {
	account, err := s.accounts.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Info("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	now := s.now()
	recent, err := s.resets.CountRecent(ctx, account.ID, now.Add(-s.cfg.ResetWindow))
	if err != nil {
		return err
	}
	if recent >= s.cfg.MaxResetRequests {
		s.logger.Warn("password reset limit reached", zap.String("account_id", account.ID), zap.Int("recent", recent))
		return ErrTooManyResetRequests
	}

	token, err := newResetToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	reset := &models.PasswordReset{
		AccountID: account.ID,
		Email:     *account.Email,
		TokenHash: hashResetToken(token),
		ExpiresAt: now.Add(s.cfg.ResetTTL),
		CreatedAt: now,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return err
	}

	link := s.cfg.ResetURL + "?token=" + url.QueryEscape(token)
	if err := s.email.SendPasswordReset(ctx, reset.Email, link, reset.ExpiresAt); err != nil {
		s.logger.Warn("password reset email not delivered", zap.String("account_id", account.ID), zap.Error(err))
	}

	s.logger.Info("password reset issued", zap.String("account_id", account.ID), zap.Time("expires_at", reset.ExpiresAt))
	return nil
}

// ValidateToken returns the pending reset for token if it is unused and unexpired.
func (s *PasswordService) ValidateToken(ctx context.Context, token string) (*models.PasswordReset, error) {
	reset, err := s.resets.FindValid(ctx, hashResetToken(token), s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidResetToken
	}
	return reset, err
}

func (s *PasswordService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.checkLength(newPassword); err != nil {
		return err
	}

	reset, err := s.ValidateToken(ctx, token)
	if err != nil {
		return err
	}

	account, err := s.accounts.GetByID(ctx, reset.AccountID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}

	// Claim the token first so concurrent redemptions cannot both succeed.
	if err := s.resets.MarkUsed(ctx, reset.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if err := s.setPassword(ctx, account.ID, newPassword); err != nil {
		return err
	}

	s.notifyChanged(ctx, account)
	s.logger.Info("password reset completed", zap.String("account_id", account.ID))
	return nil
}

func (s *PasswordService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return translateAccountError(accountID, err)
	}
	if !s.hasher.Verify(currentPassword, account.PasswordHash) {
		return ErrInvalidCredentials
	}
	if currentPassword == newPassword {
		return ErrPasswordUnchanged
	}
	if err := s.checkLength(newPassword); err != nil {
		return err
	}

	if err := s.setPassword(ctx, accountID, newPassword); err != nil {
		return err
	}

	s.notifyChanged(ctx, account)
	s.logger.Info("password changed", zap.String("account_id", accountID))
	return nil
}

// CleanupExpired removes used and expired reset tokens.
func (s *PasswordService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.resets.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.logger.Info("password reset tokens cleaned up", zap.Int64("deleted", n))
	return n, nil
}

func (s *PasswordService) checkLength(password string) error {
	if len(password) < s.cfg.MinLength {
		return fmt.Errorf("%w: minimum is %d characters", ErrWeakPassword, s.cfg.MinLength)
	}
	return nil
}

func (s *PasswordService) setPassword(ctx context.Context, accountID, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return translateAccountError(accountID, s.accounts.UpdatePassword(ctx, accountID, hash))
}

func (s *PasswordService) notifyChanged(ctx context.Context, account *models.Account) {
	if account.Email == nil {
		return
	}
	if err := s.email.SendPasswordChanged(ctx, *account.Email, account.Username); err != nil {
		s.logger.Warn("password change email not delivered", zap.String("account_id", account.ID), zap.Error(err))
	}
}

func newResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
