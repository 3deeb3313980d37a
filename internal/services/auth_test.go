package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/roryk/backend/internal/audit"
	"github.com/roryk/backend/internal/config"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testHasher() *PasswordHasher {
	return NewPasswordHasher(config.Argon2Config{
		Time:       1,
		Memory:     8 * 1024,
		Threads:    1,
		KeyLength:  32,
		SaltLength: 16,
	})
}

type authFixture struct {
	auth     *AuthService
	accounts *AccountService
	tokens   *TokenManager
	store    *memory.Store
}

func newAuthFixture(t *testing.T, redisClient *redis.Client) *authFixture {
	t.Helper()
	store := memory.New()
	hasher := testHasher()
	tokens := NewTokenManager("test-secret", time.Hour)
	now := time.Now().Truncate(time.Second)
	tokens.now = func() time.Time { return now }
	logger := zap.NewNop()
	return &authFixture{
		auth:     NewAuthService(store.Accounts(), hasher, tokens, redisClient, logger),
		accounts: NewAccountService(store.Accounts(), hasher, 6, audit.NewLogger(logger), logger),
		tokens:   tokens,
		store:    store,
	}
}

func TestPasswordHasher(t *testing.T) {
	hasher := testHasher()

	hash, err := hasher.Hash("password123")
	require.NoError(t, err)
	assert.NotContains(t, hash, "password123")
	assert.True(t, hasher.Verify("password123", hash))
	assert.False(t, hasher.Verify("password124", hash))
	assert.False(t, hasher.Verify("password123", "not-a-hash"))
	assert.False(t, hasher.Verify("password123", "!!$!!"))

	other, err := hasher.Hash("password123")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts must differ")
}

func TestTokenManager(t *testing.T) {
	tokens := NewTokenManager("test-secret", time.Hour)
	account := &models.Account{ID: "acc-1", Username: "alice", Role: models.RoleAdmin}

	t.Run("round trip", func(t *testing.T) {
		token, expiresAt, err := tokens.Generate(account)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

		claims, err := tokens.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, "acc-1", claims.UserID)
		assert.Equal(t, "alice", claims.Username)
		assert.Equal(t, models.RoleAdmin, claims.Role)
		assert.InDelta(t, time.Hour.Seconds(), tokens.Remaining(claims).Seconds(), 5)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := NewTokenManager("other-secret", time.Hour).Generate(account)
		require.NoError(t, err)
		_, err = tokens.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewTokenManager("test-secret", time.Hour)
		expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := expired.Generate(account)
		require.NoError(t, err)
		_, err = tokens.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestAuthService_Login(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	approved, err := f.accounts.CreateAccount(ctx, CreateAccountInput{RegisterInput: RegisterInput{
		Username: "alice", Password: "password123", Email: "Alice@Example.com",
	}}, "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	_, err = f.accounts.Register(ctx, RegisterInput{Username: "bob", Password: "password123"})
	require.NoError(t, err)
	carol, err := f.accounts.Register(ctx, RegisterInput{Username: "carol", Password: "password123"})
	require.NoError(t, err)
	_, err = f.accounts.Reject(ctx, carol.ID, "admin-1", "incomplete")
	require.NoError(t, err)

	t.Run("by username", func(t *testing.T) {
		result, err := f.auth.Login(ctx, "alice", "password123")
		require.NoError(t, err)
		assert.NotEmpty(t, result.Token)
		assert.Equal(t, approved.ID, result.User.ID)
		assert.NotNil(t, result.User.LastLogin)

		claims, err := f.auth.Authenticate(ctx, result.Token)
		require.NoError(t, err)
		assert.Equal(t, approved.ID, claims.UserID)
	})

	t.Run("by email", func(t *testing.T) {
		result, err := f.auth.Login(ctx, "ALICE@example.com", "password123")
		require.NoError(t, err)
		assert.Equal(t, approved.ID, result.User.ID)
	})

	tests := []struct {
		name       string
		identifier string
		password   string
		wantErr    error
	}{
		{"unknown user", "nobody", "password123", ErrInvalidCredentials},
		{"wrong password", "alice", "wrong-password", ErrInvalidCredentials},
		{"pending", "bob", "password123", ErrAccountPending},
		{"rejected", "carol", "password123", ErrAccountRejected},
		{"pending with wrong password", "bob", "wrong-password", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.Login(ctx, tt.identifier, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthService_LogoutBlacklistsToken(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	f := newAuthFixture(t, redisClient)
	ctx := context.Background()

	token, _, err := f.tokens.Generate(&models.Account{ID: "acc-1", Username: "alice", Role: models.RoleUser})
	require.NoError(t, err)
	key := blacklistPrefix + token

	redisMock.ExpectSet(key, "1", time.Hour).SetVal("OK")
	require.NoError(t, f.auth.Logout(ctx, token))

	redisMock.ExpectGet(key).SetVal("1")
	_, err = f.auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestAuthService_Authenticate(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	f := newAuthFixture(t, redisClient)
	ctx := context.Background()

	token, _, err := f.tokens.Generate(&models.Account{ID: "acc-1", Username: "alice", Role: models.RoleUser})
	require.NoError(t, err)
	key := blacklistPrefix + token

	t.Run("not revoked", func(t *testing.T) {
		redisMock.ExpectGet(key).RedisNil()
		claims, err := f.auth.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "acc-1", claims.UserID)
	})

	t.Run("redis unavailable", func(t *testing.T) {
		redisMock.ExpectGet(key).SetErr(errors.New("connection refused"))
		claims, err := f.auth.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "acc-1", claims.UserID)
	})

	t.Run("invalid token skips redis", func(t *testing.T) {
		_, err := f.auth.Authenticate(ctx, "garbage")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestAuthService_LogoutWithoutRedis(t *testing.T) {
	f := newAuthFixture(t, nil)
	token, _, err := f.tokens.Generate(&models.Account{ID: "acc-1", Username: "alice", Role: models.RoleUser})
	require.NoError(t, err)

	assert.NoError(t, f.auth.Logout(context.Background(), token))
	assert.ErrorIs(t, f.auth.Logout(context.Background(), "garbage"), ErrInvalidToken)
}
