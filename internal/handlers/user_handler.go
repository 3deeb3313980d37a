package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/services"
	"go.uber.org/zap"
)

type CreateUserRequest struct {
	RegisterRequest
	Role models.Role `json:"role" validate:"omitempty,oneof=user admin"`
}

// SetBalanceRequest moves the balance to an absolute target.
type SetBalanceRequest struct {
	Balance     *models.Money `json:"balance" validate:"required,gte=0"`
	Description string        `json:"description" validate:"max=500"`
}

// AdjustBalanceRequest credits or debits a positive amount.
type AdjustBalanceRequest struct {
	Amount      models.Money     `json:"amount" validate:"gt=0"`
	Type        models.Direction `json:"type" validate:"required,oneof=credit debit"`
	Description string           `json:"description" validate:"max=500"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type UsersResponse struct {
	Success bool              `json:"success"`
	Users   []*models.Account `json:"users"`
	Count   int               `json:"count"`
}

type BalanceResponse struct {
	Success bool `json:"success"`
	*services.LedgerResult
}

// UserHandler serves the administrative account endpoints.
type UserHandler struct {
	accounts  *services.AccountService
	ledger    *services.LedgerService
	validator *ValidationHelper
	logger    *zap.Logger
}

func NewUserHandler(accounts *services.AccountService, ledger *services.LedgerService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		accounts:  accounts,
		ledger:    ledger,
		validator: NewValidationHelper(),
		logger:    logger.Named("user_handler"),
	}
}

// List returns every account
// @Summary List users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UsersResponse
// @Failure 403 {object} ErrorResponse
// @Router /users [get]
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, UsersResponse{Success: true, Users: accounts, Count: len(accounts)})
}

// ListPending returns accounts awaiting approval
// @Summary List pending users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UsersResponse
// @Router /users/pending [get]
func (h *UserHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListByStatus(r.Context(), models.StatusPending)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, UsersResponse{Success: true, Users: accounts, Count: len(accounts)})
}

// Get returns one account
// @Summary Get user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Account ID"
// @Success 200 {object} AccountResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{userId} [get]
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.Get(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, AccountResponse{Success: true, User: account})
}

// Lookup finds an account by username or email
// @Summary Look up user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param username query string false "Username"
// @Param email query string false "Email"
// @Success 200 {object} AccountResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/lookup [get]
func (h *UserHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var (
		account *models.Account
		err     error
	)
	switch q := r.URL.Query(); {
	case q.Get("username") != "":
		account, err = h.accounts.GetByUsername(r.Context(), q.Get("username"))
	case q.Get("email") != "":
		account, err = h.accounts.GetByEmail(r.Context(), q.Get("email"))
	default:
		SendErrorResponse(w, "username or email query parameter required", http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, AccountResponse{Success: true, User: account})
}

// Create creates an approved account
// @Summary Create user
// @Description Create an approved account. Only a superadmin may create admins.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "Account details"
// @Success 201 {object} AccountResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /users [post]
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	var req CreateUserRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), services.CreateAccountInput{
		RegisterInput: req.input(),
		Role:          req.Role,
	}, claims.UserID, claims.Role)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusCreated, AccountResponse{Success: true, User: account})
}

// SetBalance sets an account balance
// @Summary Set balance
// @Description Set the balance to an absolute amount. The difference is recorded as a credit or debit.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Account ID"
// @Param request body SetBalanceRequest true "Target balance"
// @Success 200 {object} BalanceResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{userId}/balance [put]
func (h *UserHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	var req SetBalanceRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.ledger.SetBalance(r.Context(), chi.URLParam(r, "userId"), *req.Balance, req.Description, claims.UserID)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, BalanceResponse{Success: true, LedgerResult: result})
}

// Adjust credits or debits an account
// @Summary Adjust balance
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Account ID"
// @Param request body AdjustBalanceRequest true "Adjustment"
// @Success 200 {object} BalanceResponse
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{userId}/adjust [post]
func (h *UserHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	var req AdjustBalanceRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.ledger.ApplyBalanceChange(r.Context(), services.BalanceChange{
		AccountID:   chi.URLParam(r, "userId"),
		Amount:      req.Amount,
		Direction:   req.Type,
		Description: req.Description,
		PerformedBy: claims.UserID,
	})
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, BalanceResponse{Success: true, LedgerResult: result})
}

// Approve approves a pending account
// @Summary Approve user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Account ID"
// @Success 200 {object} AccountResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /users/{userId}/approve [put]
func (h *UserHandler) Approve(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	account, err := h.accounts.Approve(r.Context(), chi.URLParam(r, "userId"), claims.UserID)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, AccountResponse{Success: true, User: account})
}

// Reject rejects a pending account
// @Summary Reject user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Account ID"
// @Param request body RejectRequest false "Reason"
// @Success 200 {object} AccountResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /users/{userId}/reject [put]
func (h *UserHandler) Reject(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	var req RejectRequest
	if r.ContentLength != 0 && !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.accounts.Reject(r.Context(), chi.URLParam(r, "userId"), claims.UserID, req.Reason)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, AccountResponse{Success: true, User: account})
}

// Delete removes an account and its ledger
// @Summary Delete user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Account ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{userId} [delete]
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	if err := h.accounts.Delete(r.Context(), chi.URLParam(r, "userId"), claims.UserID); err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "User deleted"})
}
