package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/roryk/backend/internal/config"
	"github.com/roryk/backend/internal/metrics"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
	"go.uber.org/zap"
)

var (
	irishRegPattern = regexp.MustCompile(`^\d{2,3}-[A-Z]{1,2}-\d{1,6}$`)
	vinPattern      = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
)

// CheckRequest asks for one paid vehicle lookup. Odometer and ValidNCT only
// apply to valuations.
type CheckRequest struct {
	ServiceType     models.ServiceType `json:"-"`
	Identifier      string             `json:"identifier"`
	Odometer        *int               `json:"odometer,omitempty"`
	OdometerUnknown bool               `json:"odometerUnknown,omitempty"`
	ValidNCT        *bool              `json:"validNCT,omitempty"`
}

type CheckResult struct {
	Data        json.RawMessage     `json:"data"`
	Transaction *models.Transaction `json:"transaction"`
	Balance     models.Money        `json:"balance"`
}

// VehicleService runs paid vehicle checks. The account is charged only after
// the upstream lookup succeeded.
type VehicleService struct {
	provider VehicleDataProvider
	ledger   *LedgerService
	accounts repository.AccountRepository
	cost     models.Money
	metrics  *metrics.Collector
	logger   *zap.Logger
}

func NewVehicleService(provider VehicleDataProvider, ledger *LedgerService, accounts repository.AccountRepository, cfg config.LedgerConfig, collector *metrics.Collector, logger *zap.Logger) *VehicleService {
	return &VehicleService{
		provider: provider,
		ledger:   ledger,
		accounts: accounts,
		cost:     cfg.ServiceCost,
		metrics:  collector,
		logger:   logger.Named("vehicle"),
	}
}

func (s *VehicleService) RunCheck(ctx context.Context, accountID string, req CheckRequest) (*CheckResult, error) {
	req, err := normalizeCheckRequest(req)
	if err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, ErrVehicleChecksDisabled
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, translateAccountError(accountID, err)
	}
	if !account.CanTransact() {
		return nil, fmt.Errorf("%w: status is %s", ErrAccountNotTransactable, account.Status)
	}
	if account.Balance < s.cost {
		return nil, fmt.Errorf("%w: balance %s, required %s", ErrInsufficientFunds, account.Balance, s.cost)
	}

	data, err := s.provider.Lookup(ctx, req)
	if err != nil {
		s.metrics.RecordVehicleCheck(string(req.ServiceType), err)
		s.logger.Warn("vehicle lookup failed",
			zap.String("account_id", accountID),
			zap.String("service_type", string(req.ServiceType)),
			zap.Error(err),
		)
		return nil, err
	}

	result, err := s.ledger.ChargeForService(ctx, ServiceCharge{
		AccountID:         accountID,
		Cost:              s.cost,
		Description:       checkDescription(req),
		ServiceType:       req.ServiceType,
		CheckData:         data,
		VehicleIdentifier: req.Identifier,
	})
	s.metrics.RecordVehicleCheck(string(req.ServiceType), err)
	if err != nil {
		s.logger.Warn("vehicle check not charged",
			zap.String("account_id", accountID),
			zap.String("service_type", string(req.ServiceType)),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("vehicle check completed",
		zap.String("account_id", accountID),
		zap.String("service_type", string(req.ServiceType)),
		zap.String("transaction_id", result.Transaction.ID),
	)
	return &CheckResult{Data: data, Transaction: result.Transaction, Balance: result.Account.Balance}, nil
}

// GetCheck returns a stored paid check by its transaction id.
func (s *VehicleService) GetCheck(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.ledger.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !tx.IsServiceCharge() {
		return nil, fmt.Errorf("%w: %s is not a vehicle check", ErrTransactionNotFound, transactionID)
	}
	return tx, nil
}

func normalizeCheckRequest(req CheckRequest) (CheckRequest, error) {
	if !req.ServiceType.Valid() {
		return req, fmt.Errorf("%w: %q", ErrInvalidServiceType, req.ServiceType)
	}
	req.Identifier = strings.ToUpper(strings.TrimSpace(req.Identifier))

	switch req.ServiceType {
	case models.ServiceVIN:
		if !vinPattern.MatchString(req.Identifier) {
			return req, fmt.Errorf("%w: VIN must be 17 characters excluding I, O and Q", ErrInvalidVehicleIdentifier)
		}
		req.Odometer, req.OdometerUnknown, req.ValidNCT = nil, false, nil
	case models.ServiceHistory:
		if !irishRegPattern.MatchString(req.Identifier) {
			return req, fmt.Errorf("%w: registration must look like 12-D-12345", ErrInvalidVehicleIdentifier)
		}
		req.Odometer, req.OdometerUnknown, req.ValidNCT = nil, false, nil
	case models.ServiceValuation:
		if !irishRegPattern.MatchString(req.Identifier) {
			return req, fmt.Errorf("%w: registration must look like 12-D-12345", ErrInvalidVehicleIdentifier)
		}
		if req.OdometerUnknown {
			req.Odometer = nil
		}
		if req.Odometer != nil && *req.Odometer < 0 {
			return req, fmt.Errorf("%w: odometer cannot be negative", ErrInvalidVehicleIdentifier)
		}
	}
	return req, nil
}

func checkDescription(req CheckRequest) string {
	switch req.ServiceType {
	case models.ServiceHistory:
		return "Irish History Check - " + req.Identifier
	case models.ServiceValuation:
		return "Vehicle Valuation - " + req.Identifier
	default:
		return "VIN Check - " + req.Identifier
	}
}
