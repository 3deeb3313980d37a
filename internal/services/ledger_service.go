package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roryk/backend/internal/audit"
	"github.com/roryk/backend/internal/metrics"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
	"go.uber.org/zap"
)

const (
	opSetBalance    = "set_balance"
	opAdjust        = "adjust"
	opServiceCharge = "service_charge"
)

// BalanceChange describes one ledger mutation. Exactly one form must be set:
// TargetBalance, or Amount together with Direction.
type BalanceChange struct {
	AccountID        string
	TargetBalance    *models.Money
	Amount           models.Money
	Direction        models.Direction
	Description      string
	PerformedBy      string
	PaymentReference *string
}

// ServiceCharge is a debit paying for one vehicle check.
type ServiceCharge struct {
	AccountID         string
	Cost              models.Money
	Description       string
	ServiceType       models.ServiceType
	CheckData         json.RawMessage
	VehicleIdentifier string
}

// LedgerResult pairs the updated account with the record that explains the change.
type LedgerResult struct {
	Account     *models.Account     `json:"user"`
	Transaction *models.Transaction `json:"transaction"`
}

// LedgerService owns every balance mutation. Each mutation is applied through
// repository.LedgerStore so the balance and its record are written together.
type LedgerService struct {
	store   repository.Store
	audit   *audit.Logger
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewLedgerService(store repository.Store, auditLogger *audit.Logger, collector *metrics.Collector, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		store:   store,
		audit:   auditLogger,
		metrics: collector,
		logger:  logger.Named("ledger"),
	}
}

func (s *LedgerService) ApplyBalanceChange(ctx context.Context, change BalanceChange) (*LedgerResult, error) {
	operation := opAdjust
	if change.TargetBalance != nil {
		operation = opSetBalance
	}

	if err := validateBalanceChange(change); err != nil {
		s.fail(operation, change.AccountID, change.PerformedBy, err)
		return nil, err
	}

	return s.apply(ctx, operation, change.AccountID, change.PerformedBy, func(account *models.Account) (*models.Transaction, error) {
		direction, amount := change.Direction, change.Amount
		if change.TargetBalance != nil {
			delta := *change.TargetBalance - account.Balance
			if delta == 0 {
				return nil, fmt.Errorf("%w: balance is already %s", ErrInvalidAmount, account.Balance)
			}
			direction = models.DirectionCredit
			if delta < 0 {
				direction = models.DirectionDebit
			}
			amount = delta.Abs()
		}

		record, err := buildRecord(account, direction, amount)
		if err != nil {
			return nil, err
		}
		record.Description = change.Description
		if record.Description == "" {
			record.Description = defaultDescription(direction)
		}
		record.PerformedBy = change.PerformedBy
		record.PaymentReference = change.PaymentReference
		return record, nil
	})
}

// SetBalance moves the balance to target, recording the difference.
func (s *LedgerService) SetBalance(ctx context.Context, accountID string, target models.Money, description, performedBy string) (*LedgerResult, error) {
	return s.ApplyBalanceChange(ctx, BalanceChange{
		AccountID:     accountID,
		TargetBalance: &target,
		Description:   description,
		PerformedBy:   performedBy,
	})
}

func (s *LedgerService) Credit(ctx context.Context, accountID string, amount models.Money, description, performedBy string) (*LedgerResult, error) {
	return s.ApplyBalanceChange(ctx, BalanceChange{
		AccountID:   accountID,
		Amount:      amount,
		Direction:   models.DirectionCredit,
		Description: description,
		PerformedBy: performedBy,
	})
}

func (s *LedgerService) Debit(ctx context.Context, accountID string, amount models.Money, description, performedBy string) (*LedgerResult, error) {
	return s.ApplyBalanceChange(ctx, BalanceChange{
		AccountID:   accountID,
		Amount:      amount,
		Direction:   models.DirectionDebit,
		Description: description,
		PerformedBy: performedBy,
	})
}

// ChargeForService debits the fixed cost of a vehicle check and keeps the
// check result on the record. Callers invoke it only after the upstream
// lookup succeeded.
func (s *LedgerService) ChargeForService(ctx context.Context, charge ServiceCharge) (*LedgerResult, error) {
	var err error
	switch {
	case !charge.ServiceType.Valid():
		err = fmt.Errorf("%w: %q", ErrInvalidServiceType, charge.ServiceType)
	case charge.Cost <= 0:
		err = fmt.Errorf("%w: service cost must be positive", ErrInvalidAmount)
	}
	if err != nil {
		s.fail(opServiceCharge, charge.AccountID, models.PerformedBySystem, err)
		return nil, err
	}

	return s.apply(ctx, opServiceCharge, charge.AccountID, models.PerformedBySystem, func(account *models.Account) (*models.Transaction, error) {
		record, err := buildRecord(account, models.DirectionDebit, charge.Cost)
		if err != nil {
			return nil, err
		}
		serviceType := charge.ServiceType
		record.Description = charge.Description
		record.PerformedBy = models.PerformedBySystem
		record.ServiceType = &serviceType
		record.CheckData = models.CheckData(charge.CheckData)
		if charge.VehicleIdentifier != "" {
			identifier := charge.VehicleIdentifier
			record.VehicleIdentifier = &identifier
		}
		return record, nil
	})
}

func (s *LedgerService) apply(ctx context.Context, operation, accountID, actor string, fn repository.BalanceMutation) (*LedgerResult, error) {
	start := time.Now()
	account, record, err := s.store.Ledger().ApplyBalanceChange(ctx, accountID, fn)
	if err != nil {
		err = translateLedgerError(accountID, err)
		s.metrics.RecordLedgerOperation(operation, "", 0, time.Since(start), err)
		s.fail(operation, accountID, actor, err)
		return nil, err
	}

	s.metrics.RecordLedgerOperation(operation, string(record.Type), int64(record.Amount), time.Since(start), nil)
	s.audit.LogTransaction(record)
	s.logger.Info("balance changed",
		zap.String("operation", operation),
		zap.String("account_id", accountID),
		zap.String("transaction_id", record.ID),
		zap.String("direction", string(record.Type)),
		zap.Stringer("amount", record.Amount),
		zap.Stringer("new_balance", record.NewBalance),
	)
	return &LedgerResult{Account: account, Transaction: record}, nil
}

func (s *LedgerService) fail(operation, accountID, actor string, err error) {
	s.audit.LogError(operation, accountID, actor, err)
	s.logger.Warn("balance change rejected",
		zap.String("operation", operation),
		zap.String("account_id", accountID),
		zap.Error(err),
	)
}

func (s *LedgerService) ListTransactions(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	if err := s.ensureAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.Transactions().ListByAccount(ctx, accountID)
}

// ListServiceTransactions returns the account's paid vehicle checks, newest first.
func (s *LedgerService) ListServiceTransactions(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	if err := s.ensureAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.Transactions().ListServiceByAccount(ctx, accountID)
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := s.store.Transactions().GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	return tx, err
}

func (s *LedgerService) ListAllTransactions(ctx context.Context, filter repository.TransactionFilter) ([]*models.Transaction, int, error) {
	return s.store.Transactions().List(ctx, filter)
}

func (s *LedgerService) ensureAccount(ctx context.Context, accountID string) error {
	_, err := s.store.Accounts().GetByID(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return err
}

func validateBalanceChange(change BalanceChange) error {
	if change.TargetBalance != nil {
		if change.Amount != 0 || change.Direction != "" {
			return fmt.Errorf("%w: give either a target balance or an amount with direction", ErrInvalidAmount)
		}
		if *change.TargetBalance < 0 {
			return fmt.Errorf("%w: target balance cannot be negative", ErrInvalidAmount)
		}
		return nil
	}
	if change.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	if !change.Direction.Valid() {
		return fmt.Errorf("%w: direction must be credit or debit", ErrInvalidAmount)
	}
	return nil
}

// buildRecord checks the account may transact and computes the balance
// snapshots. It never lets the balance go negative.
func buildRecord(account *models.Account, direction models.Direction, amount models.Money) (*models.Transaction, error) {
	if !account.CanTransact() {
		return nil, fmt.Errorf("%w: status is %s", ErrAccountNotTransactable, account.Status)
	}

	newBalance := account.Balance + amount
	if direction == models.DirectionDebit {
		if amount > account.Balance {
			return nil, fmt.Errorf("%w: balance %s, required %s", ErrInsufficientFunds, account.Balance, amount)
		}
		newBalance = account.Balance - amount
	} else if newBalance < account.Balance {
		return nil, fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
	}

	return &models.Transaction{
		Type:            direction,
		Amount:          amount,
		PreviousBalance: account.Balance,
		NewBalance:      newBalance,
	}, nil
}

func translateLedgerError(accountID string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrPaymentAlreadyApplied, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	}
	return err
}

func defaultDescription(direction models.Direction) string {
	if direction == models.DirectionDebit {
		return "Balance deducted by administrator"
	}
	return "Balance added by administrator"
}
