package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
	"github.com/roryk/backend/internal/services"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

type TransactionsResponse struct {
	Success      bool                  `json:"success"`
	Transactions []*models.Transaction `json:"transactions"`
	Count        int                   `json:"count"`
}

type TransactionPageResponse struct {
	Success      bool                  `json:"success"`
	Transactions []*models.Transaction `json:"transactions"`
	Total        int                   `json:"total"`
	Page         int                   `json:"page"`
	Limit        int                   `json:"limit"`
}

type TransactionResponse struct {
	Success     bool                `json:"success"`
	Transaction *models.Transaction `json:"transaction"`
}

type CheckDataResponse struct {
	Success           bool               `json:"success"`
	TransactionID     string             `json:"transactionId"`
	ServiceType       models.ServiceType `json:"serviceType"`
	VehicleIdentifier *string            `json:"vehicleIdentifier"`
	CheckData         json.RawMessage    `json:"checkData"`
}

type TransactionHandler struct {
	ledger  *services.LedgerService
	vehicle *services.VehicleService
	logger  *zap.Logger
}

func NewTransactionHandler(ledger *services.LedgerService, vehicle *services.VehicleService, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, vehicle: vehicle, logger: logger.Named("transaction_handler")}
}

// ListByUser returns an account's ledger, newest first
// @Summary List user transactions
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Account ID"
// @Success 200 {object} TransactionsResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions/user/{userId} [get]
func (h *TransactionHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	h.listForUser(w, r, h.ledger.ListTransactions)
}

// ListServicesByUser returns an account's paid vehicle checks, newest first
// @Summary List user vehicle checks
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Account ID"
// @Success 200 {object} TransactionsResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions/user/{userId}/services [get]
func (h *TransactionHandler) ListServicesByUser(w http.ResponseWriter, r *http.Request) {
	h.listForUser(w, r, h.ledger.ListServiceTransactions)
}

func (h *TransactionHandler) listForUser(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, accountID string) ([]*models.Transaction, error)) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userId")
	if !canAccess(claims, userID) {
		SendErrorResponse(w, "Access denied", http.StatusForbidden, nil)
		return
	}

	txs, err := list(r.Context(), userID)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, TransactionsResponse{Success: true, Transactions: txs, Count: len(txs)})
}

// Get returns one transaction
// @Summary Get transaction
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param transactionId path string true "Transaction ID"
// @Success 200 {object} TransactionResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{transactionId} [get]
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	tx, err := h.ledger.GetTransaction(r.Context(), chi.URLParam(r, "transactionId"))
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	// Other users' records are reported as missing.
	if !canAccess(claims, tx.AccountID) {
		SendErrorResponse(w, services.ErrTransactionNotFound.Error(), http.StatusNotFound, nil)
		return
	}
	SendJSON(w, http.StatusOK, TransactionResponse{Success: true, Transaction: tx})
}

// GetCheck returns the stored result of a paid vehicle check
// @Summary Get vehicle check result
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param transactionId path string true "Transaction ID"
// @Success 200 {object} CheckDataResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{transactionId}/check [get]
func (h *TransactionHandler) GetCheck(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	tx, err := h.vehicle.GetCheck(r.Context(), chi.URLParam(r, "transactionId"))
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	if !canAccess(claims, tx.AccountID) {
		SendErrorResponse(w, services.ErrTransactionNotFound.Error(), http.StatusNotFound, nil)
		return
	}
	SendJSON(w, http.StatusOK, CheckDataResponse{
		Success:           true,
		TransactionID:     tx.ID,
		ServiceType:       *tx.ServiceType,
		VehicleIdentifier: tx.VehicleIdentifier,
		CheckData:         json.RawMessage(tx.CheckData),
	})
}

// ListAll returns the whole ledger, filtered and paginated
// @Summary List all transactions
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param type query string false "credit or debit"
// @Param serviceType query string false "history, valuation or vin"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(50)
// @Success 200 {object} TransactionPageResponse
// @Failure 400 {object} ErrorResponse
// @Router /transactions [get]
func (h *TransactionHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	txs, total, err := h.ledger.ListAllTransactions(r.Context(), filter)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, TransactionPageResponse{
		Success:      true,
		Transactions: txs,
		Total:        total,
		Page:         filter.Page,
		Limit:        filter.Limit,
	})
}

func parseTransactionFilter(r *http.Request) (repository.TransactionFilter, error) {
	q := r.URL.Query()
	filter := repository.TransactionFilter{Page: 1, Limit: defaultPageLimit}

	if v := q.Get("type"); v != "" {
		direction := models.Direction(v)
		if !direction.Valid() {
			return filter, errors.New("type must be credit or debit")
		}
		filter.Type = direction
	}
	if v := q.Get("serviceType"); v != "" {
		serviceType := models.ServiceType(v)
		if !serviceType.Valid() {
			return filter, errors.New("serviceType must be history, valuation or vin")
		}
		filter.ServiceType = serviceType
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return filter, errors.New("page must be a positive integer")
		}
		filter.Page = page
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return filter, fmt.Errorf("limit must be between 1 and %d", maxPageLimit)
		}
		filter.Limit = limit
	}
	return filter, nil
}
