package services

import "errors"

var (
	ErrAccountNotFound         = errors.New("account not found")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrAccountNotTransactable  = errors.New("account is not approved for transactions")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrConcurrentUpdate        = errors.New("account was modified concurrently, retry the request")

	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidRole        = errors.New("role not permitted")
	ErrSelfDelete         = errors.New("cannot delete your own account")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrAccountPending     = errors.New("account is pending approval")
	ErrAccountRejected    = errors.New("account has been rejected")

	ErrWeakPassword         = errors.New("password is too short")
	ErrPasswordUnchanged    = errors.New("new password must differ from the current password")
	ErrInvalidResetToken    = errors.New("invalid or expired reset token")
	ErrTooManyResetRequests = errors.New("too many password reset requests, try again later")

	ErrPaymentsNotConfigured   = errors.New("payments are not configured")
	ErrPaymentNotSucceeded     = errors.New("payment has not succeeded")
	ErrPaymentMismatch         = errors.New("payment does not belong to this account")
	ErrPaymentInProgress       = errors.New("payment is already being processed")
	ErrPaymentAlreadyApplied   = errors.New("payment already applied")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

	ErrInvalidServiceType       = errors.New("invalid service type")
	ErrInvalidVehicleIdentifier = errors.New("invalid vehicle identifier")
	ErrVehicleNotFound          = errors.New("vehicle not found")
	ErrUpstreamUnavailable      = errors.New("vehicle data provider unavailable")
	ErrVehicleChecksDisabled    = errors.New("vehicle data provider is not configured")
)
