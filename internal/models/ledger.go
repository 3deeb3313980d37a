package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

type ServiceType string

const (
	ServiceHistory   ServiceType = "history"
	ServiceValuation ServiceType = "valuation"
	ServiceVIN       ServiceType = "vin"
)

func (s ServiceType) Valid() bool {
	switch s {
	case ServiceHistory, ServiceValuation, ServiceVIN:
		return true
	}
	return false
}

// PerformedBySystem marks mutations performed by the platform itself.
const PerformedBySystem = "system"

// Transaction is an immutable ledger record of one balance mutation.
type Transaction struct {
	ID                string       `json:"id" db:"id"`
	AccountID         string       `json:"userId" db:"account_id"`
	Type              Direction    `json:"type" db:"type"`
	Amount            Money        `json:"amount" db:"amount"`
	PreviousBalance   Money        `json:"previousBalance" db:"previous_balance"`
	NewBalance        Money        `json:"newBalance" db:"new_balance"`
	Description       string       `json:"description" db:"description"`
	PerformedBy       string       `json:"performedBy" db:"performed_by"`
	ServiceType       *ServiceType `json:"serviceType" db:"service_type"`
	CheckData         CheckData    `json:"checkData" db:"check_data"`
	VehicleIdentifier *string      `json:"vehicleIdentifier" db:"vehicle_identifier"`
	PaymentReference  *string      `json:"paymentReference,omitempty" db:"payment_reference"`
	CreatedAt         time.Time    `json:"createdAt" db:"created_at"`
}

// IsServiceCharge reports whether the record represents a paid vehicle check.
func (t *Transaction) IsServiceCharge() bool {
	return t.Type == DirectionDebit && t.ServiceType != nil
}

// Consistent reports whether the balance snapshots agree with amount and direction.
func (t *Transaction) Consistent() bool {
	if t.Amount <= 0 || t.PreviousBalance < 0 || t.NewBalance < 0 {
		return false
	}
	switch t.Type {
	case DirectionCredit:
		return t.NewBalance == t.PreviousBalance+t.Amount
	case DirectionDebit:
		return t.NewBalance == t.PreviousBalance-t.Amount
	}
	return false
}

// Clone returns a deep copy so stored records cannot be altered through callers.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.ServiceType != nil {
		st := *t.ServiceType
		c.ServiceType = &st
	}
	if t.VehicleIdentifier != nil {
		v := *t.VehicleIdentifier
		c.VehicleIdentifier = &v
	}
	if t.PaymentReference != nil {
		p := *t.PaymentReference
		c.PaymentReference = &p
	}
	if t.CheckData != nil {
		c.CheckData = append(CheckData(nil), t.CheckData...)
	}
	return &c
}

// CheckData is the opaque upstream result kept on a service charge (JSONB).
type CheckData json.RawMessage

func (c CheckData) MarshalJSON() ([]byte, error) {
	if len(c) == 0 {
		return []byte("null"), nil
	}
	return c, nil
}

func (c *CheckData) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = nil
		return nil
	}
	*c = append((*c)[0:0], data...)
	return nil
}

// Value implements driver.Valuer for CheckData
func (c CheckData) Value() (driver.Value, error) {
	if len(c) == 0 {
		return nil, nil
	}
	return []byte(c), nil
}

// Scan implements sql.Scanner for CheckData
func (c *CheckData) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*c = nil
	case []byte:
		*c = append(CheckData(nil), v...)
	case string:
		*c = CheckData(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return nil
}
