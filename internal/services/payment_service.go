package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/roryk/backend/internal/config"
	"github.com/roryk/backend/internal/metrics"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
	"go.uber.org/zap"
)

const (
	paymentLockPrefix = "payment:lock:"
	paymentLockTTL    = 30 * time.Second

	topUpDescription = "Balance top-up via card payment"
)

// PaymentService turns successful card payments into ledger credits. Each
// payment intent is credited at most once, whether it arrives through
// ConfirmTopUp or the webhook.
type PaymentService struct {
	provider PaymentProvider
	ledger   *LedgerService
	store    repository.Store
	redis    *redis.Client
	cfg      config.LedgerConfig
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func NewPaymentService(provider PaymentProvider, ledger *LedgerService, store repository.Store, redisClient *redis.Client, cfg config.LedgerConfig, collector *metrics.Collector, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		provider: provider,
		ledger:   ledger,
		store:    store,
		redis:    redisClient,
		cfg:      cfg,
		metrics:  collector,
		logger:   logger.Named("payments"),
	}
}

// CreateTopUp opens a payment intent for amount on behalf of accountID.
func (s *PaymentService) CreateTopUp(ctx context.Context, accountID string, amount models.Money) (*PaymentIntent, error) {
	if s.provider == nil {
		return nil, ErrPaymentsNotConfigured
	}
	if amount < s.cfg.TopUpMin || amount > s.cfg.TopUpMax {
		return nil, fmt.Errorf("%w: top-up must be between %s and %s", ErrInvalidAmount, s.cfg.TopUpMin, s.cfg.TopUpMax)
	}

	account, err := s.store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, translateAccountError(accountID, err)
	}
	if !account.CanTransact() {
		return nil, fmt.Errorf("%w: status is %s", ErrAccountNotTransactable, account.Status)
	}

	intent, err := s.provider.CreatePaymentIntent(ctx, PaymentIntentParams{
		AccountID:   accountID,
		Amount:      amount,
		Currency:    s.cfg.Currency,
		Description: fmt.Sprintf("Balance top-up for %s", account.Username),
	})
	if err != nil {
		return nil, err
	}
	intent.AccountID = accountID

	s.logger.Info("top-up created",
		zap.String("account_id", accountID),
		zap.String("payment_intent_id", intent.ID),
		zap.Stringer("amount", amount),
	)
	return intent, nil
}

// ConfirmTopUp credits the caller once the payment intent has succeeded.
func (s *PaymentService) ConfirmTopUp(ctx context.Context, accountID, intentID string) (*LedgerResult, error) {
	if s.provider == nil {
		return nil, ErrPaymentsNotConfigured
	}

	intent, err := s.provider.GetPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.AccountID != accountID {
		return nil, fmt.Errorf("%w: payment intent %s belongs to another account", ErrPaymentMismatch, intentID)
	}
	if intent.Status != paymentStatusSucceeded {
		return nil, fmt.Errorf("%w: status is %s", ErrPaymentNotSucceeded, intent.Status)
	}

	result, err := s.creditIntent(ctx, intent)
	s.metrics.RecordTopUp(err)
	return result, err
}

// HandleWebhook verifies and applies a provider event. Events other than a
// succeeded payment intent are acknowledged and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.provider == nil {
		return ErrPaymentsNotConfigured
	}

	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.Warn("rejected webhook", zap.Error(err))
		if errors.Is(err, ErrInvalidWebhookSignature) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}

	logger := s.logger.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))
	if event.Type != eventPaymentIntentSucceeded || event.Intent == nil {
		logger.Debug("ignoring webhook event")
		return nil
	}
	if event.Intent.AccountID == "" {
		logger.Error("payment intent has no account metadata", zap.String("payment_intent_id", event.Intent.ID))
		return fmt.Errorf("%w: payment intent %s has no account", ErrPaymentMismatch, event.Intent.ID)
	}

	_, err = s.creditIntent(ctx, event.Intent)
	s.metrics.RecordTopUp(err)
	if err != nil {
		logger.Error("failed to credit payment", zap.String("payment_intent_id", event.Intent.ID), zap.Error(err))
		return err
	}
	return nil
}

func (s *PaymentService) creditIntent(ctx context.Context, intent *PaymentIntent) (*LedgerResult, error) {
	if !strings.EqualFold(intent.Currency, s.cfg.Currency) {
		return nil, fmt.Errorf("%w: currency %s", ErrPaymentMismatch, intent.Currency)
	}

	if result, err := s.existingCredit(ctx, intent.ID); err != nil || result != nil {
		return result, err
	}

	release, err := s.lock(ctx, intent.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	reference := intent.ID
	result, err := s.ledger.ApplyBalanceChange(ctx, BalanceChange{
		AccountID:        intent.AccountID,
		Amount:           intent.Amount,
		Direction:        models.DirectionCredit,
		Description:      topUpDescription,
		PerformedBy:      intent.ID,
		PaymentReference: &reference,
	})
	if errors.Is(err, ErrPaymentAlreadyApplied) {
		return s.existingCredit(ctx, intent.ID)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("top-up credited",
		zap.String("account_id", intent.AccountID),
		zap.String("payment_intent_id", intent.ID),
		zap.Stringer("amount", intent.Amount),
	)
	return result, nil
}

// existingCredit returns the record already written for a payment intent,
// or nil when there is none.
func (s *PaymentService) existingCredit(ctx context.Context, intentID string) (*LedgerResult, error) {
	tx, err := s.store.Transactions().GetByPaymentReference(ctx, intentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	account, err := s.store.Accounts().GetByID(ctx, tx.AccountID)
	if err != nil {
		return nil, translateAccountError(tx.AccountID, err)
	}
	s.logger.Info("payment already credited", zap.String("payment_intent_id", intentID), zap.String("transaction_id", tx.ID))
	return &LedgerResult{Account: account, Transaction: tx}, nil
}

// lock marks a payment intent as in flight so concurrent confirm and webhook
// calls do not race. The unique payment reference still guards the ledger
// when redis is unavailable.
func (s *PaymentService) lock(ctx context.Context, intentID string) (func(), error) {
	noop := func() {}
	if s.redis == nil {
		return noop, nil
	}

	key := paymentLockPrefix + intentID
	acquired, err := s.redis.SetNX(ctx, key, "1", paymentLockTTL).Result()
	if err != nil {
		s.logger.Warn("payment lock unavailable", zap.String("payment_intent_id", intentID), zap.Error(err))
		return noop, nil
	}
	if !acquired {
		return nil, ErrPaymentInProgress
	}

	return func() {
		if err := s.redis.Del(context.Background(), key).Err(); err != nil {
			s.logger.Warn("failed to release payment lock", zap.String("payment_intent_id", intentID), zap.Error(err))
		}
	}, nil
}
