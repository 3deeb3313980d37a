package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
	"go.uber.org/zap"
)

const blacklistPrefix = "blacklist:"

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	User      *models.Account `json:"user"`
}

// AuthService authenticates accounts and manages token revocation. Revocation
// needs redis; without it Logout is accepted but tokens stay valid until expiry.
type AuthService struct {
	accounts repository.AccountRepository
	hasher   *PasswordHasher
	tokens   *TokenManager
	redis    *redis.Client
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthService(accounts repository.AccountRepository, hasher *PasswordHasher, tokens *TokenManager, redisClient *redis.Client, logger *zap.Logger) *AuthService {
	return &AuthService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		redis:    redisClient,
		logger:   logger.Named("auth"),
		now:      time.Now,
	}
}

// Login accepts a username or an email address as identifier.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)

	var account *models.Account
	var err error
	if strings.Contains(identifier, "@") {
		account, err = s.accounts.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		account, err = s.accounts.GetByUsername(ctx, identifier)
	}
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Info("login failed, unknown user", zap.String("identifier", identifier))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.logger.Info("login failed, bad password", zap.String("account_id", account.ID))
		return nil, ErrInvalidCredentials
	}

	switch account.Status {
	case models.StatusPending:
		return nil, ErrAccountPending
	case models.StatusRejected:
		return nil, ErrAccountRejected
	}

	token, expiresAt, err := s.tokens.Generate(account)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	now := s.now()
	if err := s.accounts.TouchLastLogin(ctx, account.ID, now); err != nil {
		s.logger.Warn("failed to record last login", zap.String("account_id", account.ID), zap.Error(err))
	} else {
		account.LastLogin = &now
	}

	s.logger.Info("login successful", zap.String("account_id", account.ID))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: account}, nil
}

// Logout blacklists the token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	if s.redis == nil {
		return nil
	}

	ttl := s.tokens.Remaining(claims)
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, blacklistPrefix+token, "1", ttl).Err(); err != nil {
		s.logger.Error("failed to blacklist token", zap.String("account_id", claims.UserID), zap.Error(err))
		return err
	}
	return nil
}

// Authenticate parses the token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	if s.redis == nil {
		return claims, nil
	}

	err = s.redis.Get(ctx, blacklistPrefix+token).Err()
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: token revoked", ErrInvalidToken)
	case errors.Is(err, redis.Nil):
		return claims, nil
	default:
		s.logger.Warn("blacklist lookup failed, accepting token", zap.Error(err))
		return claims, nil
	}
}
