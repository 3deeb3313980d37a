package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roryk/backend/internal/audit"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
	"go.uber.org/zap"
)

// RegisterInput carries the profile a new user submits.
type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	Company   string
	Phone     string
}

// CreateAccountInput is an administrator-created account. It starts approved.
type CreateAccountInput struct {
	RegisterInput
	Role models.Role
}

type AccountService struct {
	accounts          repository.AccountRepository
	hasher            *PasswordHasher
	audit             *audit.Logger
	logger            *zap.Logger
	minPasswordLength int
	now               func() time.Time
}

func NewAccountService(accounts repository.AccountRepository, hasher *PasswordHasher, minPasswordLength int, auditLogger *audit.Logger, logger *zap.Logger) *AccountService {
	return &AccountService{
		accounts:          accounts,
		hasher:            hasher,
		audit:             auditLogger,
		logger:            logger.Named("accounts"),
		minPasswordLength: minPasswordLength,
		now:               time.Now,
	}
}

// Register creates a pending user account with a zero balance.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*models.Account, error) {
	account, err := s.create(ctx, input, models.RoleUser, models.StatusPending, "")
	if err != nil {
		return nil, err
	}
	s.logger.Info("account registered", zap.String("account_id", account.ID), zap.String("username", account.Username))
	return account, nil
}

// CreateAccount creates an approved account on behalf of an administrator.
// Only a superadmin may create admins; superadmins are never created here.
func (s *AccountService) CreateAccount(ctx context.Context, input CreateAccountInput, actorID string, actorRole models.Role) (*models.Account, error) {
	role := input.Role
	if role == "" {
		role = models.RoleUser
	}
	switch {
	case role == models.RoleSuperadmin, !role.Valid():
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	case role == models.RoleAdmin && actorRole != models.RoleSuperadmin:
		return nil, fmt.Errorf("%w: only a superadmin may create admins", ErrInvalidRole)
	}

	account, err := s.create(ctx, input.RegisterInput, role, models.StatusApproved, actorID)
	if err != nil {
		return nil, err
	}
	s.audit.LogOperation(audit.EventApprove, account.ID, actorID, "created by administrator")
	s.logger.Info("account created", zap.String("account_id", account.ID), zap.String("role", string(role)), zap.String("actor", actorID))
	return account, nil
}

// CreateSuperadmin creates an approved superadmin account.
func (s *AccountService) CreateSuperadmin(ctx context.Context, input RegisterInput) (*models.Account, error) {
	account, err := s.create(ctx, input, models.RoleSuperadmin, models.StatusApproved, models.PerformedBySystem)
	if err != nil {
		return nil, err
	}
	s.logger.Info("superadmin created", zap.String("account_id", account.ID), zap.String("username", account.Username))
	return account, nil
}

// EnsureSuperadmin bootstraps a superadmin when the store holds no accounts.
// It reports whether an account was created.
func (s *AccountService) EnsureSuperadmin(ctx context.Context, input RegisterInput) (bool, error) {
	n, err := s.accounts.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if input.Password == "" {
		return false, errors.New("bootstrap superadmin password is not set")
	}
	if _, err := s.CreateSuperadmin(ctx, input); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AccountService) create(ctx context.Context, input RegisterInput, role models.Role, status models.AccountStatus, approvedBy string) (*models.Account, error) {
	username := strings.TrimSpace(input.Username)
	if len(input.Password) < s.minPasswordLength {
		return nil, fmt.Errorf("%w: minimum is %d characters", ErrWeakPassword, s.minPasswordLength)
	}

	if _, err := s.accounts.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	email := optional(strings.ToLower(input.Email))
	if email != nil {
		if _, err := s.accounts.GetByEmail(ctx, *email); err == nil {
			return nil, ErrEmailTaken
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &models.Account{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    optional(input.FirstName),
		LastName:     optional(input.LastName),
		Company:      optional(input.Company),
		Phone:        optional(input.Phone),
		Role:         role,
		Status:       status,
	}
	if status == models.StatusApproved {
		now := s.now()
		account.ApprovedAt = &now
		account.ApprovedBy = &approvedBy
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return account, nil
}

// Approve moves a pending account to approved. Approving an approved
// account is a no-op; approving a rejected one is refused.
func (s *AccountService) Approve(ctx context.Context, id, actorID string) (*models.Account, error) {
	return s.transition(ctx, id, models.StatusChange{Status: models.StatusApproved, Actor: actorID}, audit.EventApprove)
}

// Reject moves a pending account to rejected. Rejecting a rejected account
// is a no-op; rejecting an approved one is refused.
func (s *AccountService) Reject(ctx context.Context, id, actorID, reason string) (*models.Account, error) {
	return s.transition(ctx, id, models.StatusChange{Status: models.StatusRejected, Actor: actorID, Reason: reason}, audit.EventReject)
}

func (s *AccountService) transition(ctx context.Context, id string, change models.StatusChange, event string) (*models.Account, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch account.Status {
	case change.Status:
		return account, nil
	case models.StatusPending:
	default:
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, account.Status, change.Status)
	}

	change.ChangedAt = s.now()
	updated, err := s.accounts.UpdateStatus(ctx, id, change)
	if err != nil {
		return nil, translateAccountError(id, err)
	}

	s.audit.LogOperation(event, id, change.Actor, change.Reason)
	s.logger.Info("account status changed",
		zap.String("account_id", id),
		zap.String("status", string(change.Status)),
		zap.String("actor", change.Actor),
	)
	return updated, nil
}

// Delete removes an account and its ledger history.
func (s *AccountService) Delete(ctx context.Context, id, actorID string) error {
	if id == actorID {
		return ErrSelfDelete
	}
	account, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, id); err != nil {
		return translateAccountError(id, err)
	}

	s.audit.LogOperation(audit.EventDelete, id, actorID, account.Username)
	s.logger.Info("account deleted", zap.String("account_id", id), zap.String("actor", actorID))
	return nil
}

func (s *AccountService) Get(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	return account, translateAccountError(id, err)
}

func (s *AccountService) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	account, err := s.accounts.GetByUsername(ctx, username)
	return account, translateAccountError(username, err)
}

func (s *AccountService) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, strings.ToLower(email))
	return account, translateAccountError(email, err)
}

func (s *AccountService) List(ctx context.Context) ([]*models.Account, error) {
	return s.accounts.List(ctx)
}

func (s *AccountService) ListByStatus(ctx context.Context, status models.AccountStatus) ([]*models.Account, error) {
	return s.accounts.ListByStatus(ctx, status)
}

func translateAccountError(key string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	return err
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
