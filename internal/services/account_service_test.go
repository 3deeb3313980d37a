package services

import (
	"context"
	"testing"

	"github.com/roryk/backend/internal/audit"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAccountFixture(t *testing.T) (*AccountService, *memory.Store) {
	t.Helper()
	store := memory.New()
	logger := zap.NewNop()
	return NewAccountService(store.Accounts(), testHasher(), 6, audit.NewLogger(logger), logger), store
}

func TestAccountService_Register(t *testing.T) {
	svc, _ := newAccountFixture(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, RegisterInput{
		Username:  " alice ",
		Password:  "password123",
		Email:     "Alice@Example.com",
		FirstName: "Alice",
		Company:   " ",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)
	assert.Equal(t, models.StatusPending, account.Status)
	assert.Equal(t, models.RoleUser, account.Role)
	assert.Equal(t, models.Money(0), account.Balance)
	require.NotNil(t, account.Email)
	assert.Equal(t, "alice@example.com", *account.Email)
	assert.Nil(t, account.Company)
	assert.Nil(t, account.ApprovedAt)
	assert.NotEqual(t, "password123", account.PasswordHash)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "password123"})
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterInput{Username: "alice2", Password: "password123", Email: "ALICE@example.com"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterInput{Username: "bob", Password: "12345"})
		assert.ErrorIs(t, err, ErrWeakPassword)
	})
}

func TestAccountService_CreateAccount(t *testing.T) {
	svc, _ := newAccountFixture(t)
	ctx := context.Background()

	user, err := svc.CreateAccount(ctx, CreateAccountInput{
		RegisterInput: RegisterInput{Username: "alice", Password: "password123"},
	}, "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, models.StatusApproved, user.Status)
	require.NotNil(t, user.ApprovedBy)
	assert.Equal(t, "admin-1", *user.ApprovedBy)
	assert.NotNil(t, user.ApprovedAt)

	admin, err := svc.CreateAccount(ctx, CreateAccountInput{
		RegisterInput: RegisterInput{Username: "admin2", Password: "password123"},
		Role:          models.RoleAdmin,
	}, "root", models.RoleSuperadmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	tests := []struct {
		name      string
		role      models.Role
		actorRole models.Role
	}{
		{"admin cannot create admin", models.RoleAdmin, models.RoleAdmin},
		{"superadmin is never created", models.RoleSuperadmin, models.RoleSuperadmin},
		{"unknown role", "owner", models.RoleSuperadmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAccount(ctx, CreateAccountInput{
				RegisterInput: RegisterInput{Username: "new-" + string(tt.role), Password: "password123"},
				Role:          tt.role,
			}, "actor", tt.actorRole)
			assert.ErrorIs(t, err, ErrInvalidRole)
		})
	}
}

func TestAccountService_StatusTransitions(t *testing.T) {
	svc, _ := newAccountFixture(t)
	ctx := context.Background()

	alice, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "password123"})
	require.NoError(t, err)
	bob, err := svc.Register(ctx, RegisterInput{Username: "bob", Password: "password123"})
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, alice.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "admin-1", *approved.ApprovedBy)

	again, err := svc.Approve(ctx, alice.ID, "admin-2")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", *again.ApprovedBy, "repeat approval is a no-op")

	_, err = svc.Reject(ctx, alice.ID, "admin-1", "changed my mind")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	rejected, err := svc.Reject(ctx, bob.ID, "admin-1", "incomplete profile")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "incomplete profile", *rejected.RejectionReason)

	_, err = svc.Approve(ctx, bob.ID, "admin-1")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = svc.Approve(ctx, "missing", "admin-1")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	pending, err := svc.ListByStatus(ctx, models.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAccountService_Delete(t *testing.T) {
	svc, _ := newAccountFixture(t)
	ctx := context.Background()

	alice, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "password123"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, alice.ID, alice.ID), ErrSelfDelete)
	require.NoError(t, svc.Delete(ctx, alice.ID, "root"))

	_, err = svc.Get(ctx, alice.ID)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, alice.ID, "root"), ErrAccountNotFound)
}

func TestAccountService_Lookup(t *testing.T) {
	svc, _ := newAccountFixture(t)
	ctx := context.Background()

	alice, err := svc.Register(ctx, RegisterInput{Username: "alice", Password: "password123", Email: "alice@example.com"})
	require.NoError(t, err)

	byName, err := svc.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	byEmail, err := svc.GetByEmail(ctx, "ALICE@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	_, err = svc.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountService_EnsureSuperadmin(t *testing.T) {
	svc, _ := newAccountFixture(t)
	ctx := context.Background()

	_, err := svc.EnsureSuperadmin(ctx, RegisterInput{Username: "root"})
	assert.Error(t, err)

	created, err := svc.EnsureSuperadmin(ctx, RegisterInput{Username: "root", Password: "password123"})
	require.NoError(t, err)
	assert.True(t, created)

	root, err := svc.GetByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperadmin, root.Role)
	assert.Equal(t, models.StatusApproved, root.Status)

	created, err = svc.EnsureSuperadmin(ctx, RegisterInput{Username: "root2", Password: "password123"})
	require.NoError(t, err)
	assert.False(t, created)
}
