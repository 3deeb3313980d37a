package handlers

import (
	"net/http"

	"github.com/roryk/backend/internal/middleware"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/services"
	"go.uber.org/zap"
)

type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Password  string `json:"password" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Company   string `json:"company" validate:"max=200"`
	Phone     string `json:"phone" validate:"max=50"`
}

func (r RegisterRequest) input() services.RegisterInput {
	return services.RegisterInput{
		Username:  r.Username,
		Password:  r.Password,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Company:   r.Company,
		Phone:     r.Phone,
	}
}

// LoginRequest accepts a username or an email address in Username.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AccountResponse struct {
	Success bool            `json:"success"`
	User    *models.Account `json:"user"`
}

type LoginResponse struct {
	Success bool `json:"success"`
	*services.LoginResult
}

type AuthHandler struct {
	auth      *services.AuthService
	accounts  *services.AccountService
	validator *ValidationHelper
	logger    *zap.Logger
}

func NewAuthHandler(auth *services.AuthService, accounts *services.AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		accounts:  accounts,
		validator: NewValidationHelper(),
		logger:    logger.Named("auth_handler"),
	}
}

// Register creates a pending account
// @Summary Register
// @Description Register a new account. The account must be approved by an administrator before it can log in.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration details"
// @Success 201 {object} AccountResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.accounts.Register(r.Context(), req.input())
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusCreated, AccountResponse{Success: true, User: account})
}

// Login authenticates an approved account
// @Summary Login
// @Description Exchange a username or email and password for a bearer token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, LoginResponse{Success: true, LoginResult: result})
}

// Logout revokes the bearer token
// @Summary Logout
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
		return
	}
	if err := h.auth.Logout(r.Context(), token); err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Logged out"})
}

// Me returns the caller's account
// @Summary Current account
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} AccountResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	account, err := h.accounts.Get(r.Context(), claims.UserID)
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, AccountResponse{Success: true, User: account})
}

func callerClaims(w http.ResponseWriter, r *http.Request) (*services.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return nil, false
	}
	return claims, true
}

// canAccess reports whether the caller may read data belonging to accountID.
func canAccess(claims *services.Claims, accountID string) bool {
	return claims.UserID == accountID || claims.Role.IsAdmin()
}
