// Package audit records ledger and administrative events as structured log lines.
package audit

import (
	"time"

	"github.com/roryk/backend/internal/models"
	"go.uber.org/zap"
)

const (
	EventBalanceChange = "BALANCE_CHANGE"
	EventServiceCharge = "SERVICE_CHARGE"
	EventError         = "ERROR"
	EventApprove       = "APPROVE"
	EventReject        = "REJECT"
	EventDelete        = "DELETE"
)

type Event struct {
	Timestamp     time.Time
	EventType     string
	TransactionID string
	AccountID     string
	Actor         string
	Amount        int64
	Status        string
	Details       map[string]string
}

type Logger struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger.Named("audit"), now: time.Now}
}

// LogTransaction records an applied ledger record.
func (a *Logger) LogTransaction(tx *models.Transaction) {
	event := Event{
		EventType:     EventBalanceChange,
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		Actor:         tx.PerformedBy,
		Amount:        int64(tx.Amount),
		Status:        "SUCCESS",
		Details: map[string]string{
			"direction":        string(tx.Type),
			"previous_balance": tx.PreviousBalance.String(),
			"new_balance":      tx.NewBalance.String(),
		},
	}
	if tx.IsServiceCharge() {
		event.EventType = EventServiceCharge
		event.Details["service_type"] = string(*tx.ServiceType)
	}
	a.log(event)
}

func (a *Logger) LogError(operation, accountID, actor string, err error) {
	a.log(Event{
		EventType: EventError,
		AccountID: accountID,
		Actor:     actor,
		Status:    "FAILED",
		Details:   map[string]string{"operation": operation, "error": err.Error()},
	})
}

// LogOperation records an administrative action such as APPROVE or DELETE.
func (a *Logger) LogOperation(eventType, accountID, actor, details string) {
	event := Event{
		EventType: eventType,
		AccountID: accountID,
		Actor:     actor,
		Status:    "SUCCESS",
	}
	if details != "" {
		event.Details = map[string]string{"details": details}
	}
	a.log(event)
}

func (a *Logger) log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = a.now()
	}
	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.String("event_type", event.EventType),
		zap.String("account_id", event.AccountID),
		zap.String("status", event.Status),
	}
	if event.TransactionID != "" {
		fields = append(fields, zap.String("transaction_id", event.TransactionID))
	}
	if event.Actor != "" {
		fields = append(fields, zap.String("actor", event.Actor))
	}
	if event.Amount != 0 {
		fields = append(fields, zap.Int64("amount", event.Amount))
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}
	a.logger.Info("audit", fields...)
}
