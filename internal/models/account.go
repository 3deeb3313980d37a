package models

import "time"

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// IsAdmin reports whether the role carries administrative privileges.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

func (r Role) Valid() bool {
	return r == RoleUser || r.IsAdmin()
}

type AccountStatus string

const (
	StatusPending  AccountStatus = "pending"
	StatusApproved AccountStatus = "approved"
	StatusRejected AccountStatus = "rejected"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Account is a registered user together with its credit balance.
type Account struct {
	ID              string        `json:"id" db:"id"`
	Username        string        `json:"username" db:"username"`
	Email           *string       `json:"email" db:"email"`
	PasswordHash    string        `json:"-" db:"password_hash"`
	FirstName       *string       `json:"firstName" db:"first_name"`
	LastName        *string       `json:"lastName" db:"last_name"`
	Company         *string       `json:"company" db:"company"`
	Phone           *string       `json:"phone" db:"phone"`
	Role            Role          `json:"role" db:"role"`
	Status          AccountStatus `json:"status" db:"status"`
	Balance         Money         `json:"balance" db:"balance"`
	Version         int           `json:"-" db:"version"` // for optimistic locking
	ApprovedAt      *time.Time    `json:"approvedAt,omitempty" db:"approved_at"`
	ApprovedBy      *string       `json:"approvedBy,omitempty" db:"approved_by"`
	RejectedAt      *time.Time    `json:"rejectedAt,omitempty" db:"rejected_at"`
	RejectedBy      *string       `json:"rejectedBy,omitempty" db:"rejected_by"`
	RejectionReason *string       `json:"rejectionReason,omitempty" db:"rejection_reason"`
	LastLogin       *time.Time    `json:"lastLogin,omitempty" db:"last_login"`
	CreatedAt       time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time     `json:"updatedAt" db:"updated_at"`
}

// CanTransact reports whether the account may have its balance changed.
func (a *Account) CanTransact() bool {
	return a.Status == StatusApproved
}

func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// StatusChange describes an administrative status transition.
type StatusChange struct {
	Status    AccountStatus
	Actor     string
	Reason    string
	ChangedAt time.Time
}

// PasswordReset is a single-use password reset token. Only the token hash is stored.
type PasswordReset struct {
	ID        string    `json:"id" db:"id"`
	AccountID string    `json:"userId" db:"account_id"`
	Email     string    `json:"email" db:"email"`
	TokenHash string    `json:"-" db:"token_hash"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
	Used      bool      `json:"used" db:"used"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	IPAddress string    `json:"-" db:"ip_address"`
	UserAgent string    `json:"-" db:"user_agent"`
}

// Valid reports whether the token can still be redeemed at now.
func (p *PasswordReset) Valid(now time.Time) bool {
	return !p.Used && now.Before(p.ExpiresAt)
}
