package services

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/roryk/backend/internal/config"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		ServiceCost: models.MustParseMoney("1.00"),
		TopUpMin:    models.MustParseMoney("5.00"),
		TopUpMax:    models.MustParseMoney("500.00"),
		Currency:    "eur",
	}
}

type paymentFixture struct {
	service  *PaymentService
	provider *MockPaymentProvider
	ledger   *LedgerService
	store    *memory.Store
}

func newPaymentFixture(t *testing.T, redisClient *redis.Client) *paymentFixture {
	t.Helper()
	ledger, store := newLedgerFixture(t)
	provider := &MockPaymentProvider{}
	service := NewPaymentService(provider, ledger, store, redisClient, testLedgerConfig(), nil, zap.NewNop())
	return &paymentFixture{service: service, provider: provider, ledger: ledger, store: store}
}

func succeededIntent(accountID string) *PaymentIntent {
	return &PaymentIntent{
		ID:        "pi_123",
		Status:    paymentStatusSucceeded,
		Amount:    models.MustParseMoney("20.00"),
		Currency:  "eur",
		AccountID: accountID,
	}
}

func TestPaymentService_CreateTopUp(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()
	account := seedAccount(t, f.store, "alice", models.StatusApproved)

	f.provider.On("CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(p PaymentIntentParams) bool {
		return p.AccountID == account.ID && p.Amount == models.MustParseMoney("20.00") && p.Currency == "eur"
	})).Return(&PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret", Status: "requires_payment_method"}, nil).Once()

	intent, err := f.service.CreateTopUp(ctx, account.ID, models.MustParseMoney("20.00"))
	require.NoError(t, err)
	assert.Equal(t, "pi_123_secret", intent.ClientSecret)
	assert.Equal(t, account.ID, intent.AccountID)
	f.provider.AssertExpectations(t)
}

func TestPaymentService_CreateTopUpRejected(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()
	approved := seedAccount(t, f.store, "alice", models.StatusApproved)
	pending := seedAccount(t, f.store, "bob", models.StatusPending)

	tests := []struct {
		name      string
		accountID string
		amount    string
		wantErr   error
	}{
		{"below minimum", approved.ID, "4.99", ErrInvalidAmount},
		{"above maximum", approved.ID, "500.01", ErrInvalidAmount},
		{"pending account", pending.ID, "10.00", ErrAccountNotTransactable},
		{"unknown account", "missing", "10.00", ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CreateTopUp(ctx, tt.accountID, models.MustParseMoney(tt.amount))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	f.provider.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything)
}

func TestPaymentService_NotConfigured(t *testing.T) {
	ledger, store := newLedgerFixture(t)
	service := NewPaymentService(nil, ledger, store, nil, testLedgerConfig(), nil, zap.NewNop())

	_, err := service.CreateTopUp(context.Background(), "any", models.MustParseMoney("10.00"))
	assert.ErrorIs(t, err, ErrPaymentsNotConfigured)
	_, err = service.ConfirmTopUp(context.Background(), "any", "pi_1")
	assert.ErrorIs(t, err, ErrPaymentsNotConfigured)
	assert.ErrorIs(t, service.HandleWebhook(context.Background(), nil, ""), ErrPaymentsNotConfigured)
}

func TestPaymentService_ConfirmTopUpCreditsOnce(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	f := newPaymentFixture(t, redisClient)
	ctx := context.Background()
	account := seedAccount(t, f.store, "alice", models.StatusApproved)

	f.provider.On("GetPaymentIntent", mock.Anything, "pi_123").Return(succeededIntent(account.ID), nil)
	redisMock.ExpectSetNX(paymentLockPrefix+"pi_123", "1", paymentLockTTL).SetVal(true)
	redisMock.ExpectDel(paymentLockPrefix + "pi_123").SetVal(1)

	first, err := f.service.ConfirmTopUp(ctx, account.ID, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, "20.00", first.Account.Balance.String())
	assert.Equal(t, models.DirectionCredit, first.Transaction.Type)
	assert.Equal(t, "pi_123", first.Transaction.PerformedBy)
	require.NotNil(t, first.Transaction.PaymentReference)
	assert.Equal(t, "pi_123", *first.Transaction.PaymentReference)

	second, err := f.service.ConfirmTopUp(ctx, account.ID, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, "20.00", second.Account.Balance.String())

	txs, err := f.ledger.ListTransactions(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestPaymentService_ConfirmTopUpInProgress(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	f := newPaymentFixture(t, redisClient)
	account := seedAccount(t, f.store, "alice", models.StatusApproved)

	f.provider.On("GetPaymentIntent", mock.Anything, "pi_123").Return(succeededIntent(account.ID), nil)
	redisMock.ExpectSetNX(paymentLockPrefix+"pi_123", "1", paymentLockTTL).SetVal(false)

	_, err := f.service.ConfirmTopUp(context.Background(), account.ID, "pi_123")
	assert.ErrorIs(t, err, ErrPaymentInProgress)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestPaymentService_ConfirmTopUpRedisDown(t *testing.T) {
	redisClient, redisMock := redismock.NewClientMock()
	f := newPaymentFixture(t, redisClient)
	account := seedAccount(t, f.store, "alice", models.StatusApproved)

	f.provider.On("GetPaymentIntent", mock.Anything, "pi_123").Return(succeededIntent(account.ID), nil)
	redisMock.ExpectSetNX(paymentLockPrefix+"pi_123", "1", paymentLockTTL).SetErr(errors.New("connection refused"))

	result, err := f.service.ConfirmTopUp(context.Background(), account.ID, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, "20.00", result.Account.Balance.String())
}

func TestPaymentService_ConfirmTopUpRejected(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()
	alice := seedAccount(t, f.store, "alice", models.StatusApproved)
	bob := seedAccount(t, f.store, "bob", models.StatusApproved)

	pending := succeededIntent(alice.ID)
	pending.ID = "pi_pending"
	pending.Status = "requires_payment_method"
	usd := succeededIntent(alice.ID)
	usd.ID = "pi_usd"
	usd.Currency = "usd"

	f.provider.On("GetPaymentIntent", mock.Anything, "pi_123").Return(succeededIntent(alice.ID), nil)
	f.provider.On("GetPaymentIntent", mock.Anything, "pi_pending").Return(pending, nil)
	f.provider.On("GetPaymentIntent", mock.Anything, "pi_usd").Return(usd, nil)

	_, err := f.service.ConfirmTopUp(ctx, bob.ID, "pi_123")
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	_, err = f.service.ConfirmTopUp(ctx, alice.ID, "pi_pending")
	assert.ErrorIs(t, err, ErrPaymentNotSucceeded)

	_, err = f.service.ConfirmTopUp(ctx, alice.ID, "pi_usd")
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	account, err := f.store.Accounts().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Money(0), account.Balance)
}

func TestPaymentService_HandleWebhook(t *testing.T) {
	f := newPaymentFixture(t, nil)
	ctx := context.Background()
	account := seedAccount(t, f.store, "alice", models.StatusApproved)
	payload := []byte(`{"id":"evt_1"}`)

	f.provider.On("ParseWebhook", payload, "sig").Return(&WebhookEvent{
		ID:     "evt_1",
		Type:   eventPaymentIntentSucceeded,
		Intent: succeededIntent(account.ID),
	}, nil)

	require.NoError(t, f.service.HandleWebhook(ctx, payload, "sig"))
	require.NoError(t, f.service.HandleWebhook(ctx, payload, "sig"))

	updated, err := f.store.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "20.00", updated.Balance.String())
}

func TestPaymentService_HandleWebhookIgnoresOtherEvents(t *testing.T) {
	f := newPaymentFixture(t, nil)
	payload := []byte(`{}`)
	f.provider.On("ParseWebhook", payload, "sig").Return(&WebhookEvent{ID: "evt_2", Type: "payment_intent.created"}, nil)

	assert.NoError(t, f.service.HandleWebhook(context.Background(), payload, "sig"))
}

func TestPaymentService_HandleWebhookBadSignature(t *testing.T) {
	f := newPaymentFixture(t, nil)
	payload := []byte(`{}`)
	f.provider.On("ParseWebhook", payload, "bad").Return(nil, errors.New("no valid signature"))

	err := f.service.HandleWebhook(context.Background(), payload, "bad")
	assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
}

func TestPaymentService_HandleWebhookWithoutAccount(t *testing.T) {
	f := newPaymentFixture(t, nil)
	payload := []byte(`{}`)
	intent := succeededIntent("")
	f.provider.On("ParseWebhook", payload, "sig").Return(&WebhookEvent{ID: "evt_3", Type: eventPaymentIntentSucceeded, Intent: intent}, nil)

	err := f.service.HandleWebhook(context.Background(), payload, "sig")
	assert.ErrorIs(t, err, ErrPaymentMismatch)
}
