package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/roryk/backend/internal/services"
	"go.uber.org/zap"
)

const maxBodyBytes = 1_048_576

const internalErrorMessage = "Internal server error"

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// MessageResponse is returned by endpoints that only acknowledge a request.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

func SendJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// decodeAndValidate reads a single JSON object into dst and validates it.
// It writes the error response itself and reports whether decoding succeeded.
func (vh *ValidationHelper) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	if err := vh.ValidateStruct(dst); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

// statusForError maps service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrVehicleNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidServiceType),
		errors.Is(err, services.ErrInvalidVehicleIdentifier),
		errors.Is(err, services.ErrWeakPassword),
		errors.Is(err, services.ErrPasswordUnchanged),
		errors.Is(err, services.ErrInvalidResetToken),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrSelfDelete),
		errors.Is(err, services.ErrPaymentNotSucceeded),
		errors.Is(err, services.ErrInvalidWebhookSignature):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrAccountNotTransactable),
		errors.Is(err, services.ErrAccountPending),
		errors.Is(err, services.ErrAccountRejected),
		errors.Is(err, services.ErrPaymentMismatch):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidStatusTransition),
		errors.Is(err, services.ErrUsernameTaken),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrConcurrentUpdate),
		errors.Is(err, services.ErrPaymentInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrTooManyResetRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrPaymentsNotConfigured),
		errors.Is(err, services.ErrVehicleChecksDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// sendServiceError writes err with its mapped status. Unexpected errors are
// logged and hidden behind a generic message.
func sendServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		SendErrorResponse(w, internalErrorMessage, status, nil)
		return
	}
	SendErrorResponse(w, err.Error(), status, nil)
}
