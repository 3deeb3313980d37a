package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/services"
	"go.uber.org/zap"
)

const maxWebhookBytes = 65536

type CreatePaymentIntentRequest struct {
	Amount models.Money `json:"amount" validate:"gt=0"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
}

type PaymentIntentResponse struct {
	Success bool `json:"success"`
	*services.PaymentIntent
}

type PaymentHandler struct {
	payments  *services.PaymentService
	validator *ValidationHelper
	logger    *zap.Logger
}

func NewPaymentHandler(payments *services.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, validator: NewValidationHelper(), logger: logger.Named("payment_handler")}
}

// CreateIntent starts a card top-up
// @Summary Create top-up payment intent
// @Description Returns the client secret used by the payment form to collect card details
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreatePaymentIntentRequest true "Top-up amount"
// @Success 201 {object} PaymentIntentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /payments/intents [post]
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	var req CreatePaymentIntentRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	intent, err := h.payments.CreateTopUp(r.Context(), claims.UserID, req.Amount)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusCreated, PaymentIntentResponse{Success: true, PaymentIntent: intent})
}

// Confirm credits a succeeded top-up
// @Summary Confirm top-up
// @Description Credits the caller once the payment intent has succeeded. Repeated calls return the same transaction.
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ConfirmPaymentRequest true "Payment intent"
// @Success 200 {object} BalanceResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /payments/confirm [post]
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	var req ConfirmPaymentRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.payments.ConfirmTopUp(r.Context(), claims.UserID, req.PaymentIntentID)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, BalanceResponse{Success: true, LedgerResult: result})
}

// Webhook receives payment provider events
// @Summary Payment webhook
// @Description Signed provider callback. A failed credit answers 500 so the provider retries.
// @Tags Payments
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Webhook signature"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	err = h.payments.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		SendJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "received"})
	case errors.Is(err, services.ErrInvalidWebhookSignature):
		SendErrorResponse(w, "Invalid signature", http.StatusBadRequest, nil)
	case errors.Is(err, services.ErrPaymentsNotConfigured):
		SendErrorResponse(w, err.Error(), http.StatusServiceUnavailable, nil)
	default:
		h.logger.Error("webhook processing failed", zap.Error(err))
		SendErrorResponse(w, internalErrorMessage, http.StatusInternalServerError, nil)
	}
}
