package handlers

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/roryk/backend/internal/services"
	"go.uber.org/zap"
)

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

type TokenValidationResponse struct {
	Success   bool      `json:"success"`
	Valid     bool      `json:"valid"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type CleanupResponse struct {
	Success bool  `json:"success"`
	Deleted int64 `json:"deleted"`
}

const resetRequestedMessage = "If an account exists for that email, a reset link has been sent"

type PasswordHandler struct {
	passwords *services.PasswordService
	validator *ValidationHelper
	logger    *zap.Logger
}

func NewPasswordHandler(passwords *services.PasswordService, logger *zap.Logger) *PasswordHandler {
	return &PasswordHandler{passwords: passwords, validator: NewValidationHelper(), logger: logger.Named("password_handler")}
}

// Forgot requests a password reset email
// @Summary Request password reset
// @Description Always answers with the same message so registered emails cannot be discovered
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Account email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /password/forgot [post]
func (h *PasswordHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	err := h.passwords.RequestReset(r.Context(), services.ResetRequest{
		Email:     req.Email,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, MessageResponse{Success: true, Message: resetRequestedMessage})
}

// Reset sets a new password with a reset token
// @Summary Reset password
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Token and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Router /password/reset [post]
func (h *PasswordHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.passwords.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Password has been reset"})
}

// ValidateToken checks a reset token before the new password is submitted
// @Summary Validate reset token
// @Tags Password
// @Produce json
// @Param token path string true "Reset token"
// @Success 200 {object} TokenValidationResponse
// @Failure 400 {object} ErrorResponse
// @Router /password/validate-token/{token} [get]
func (h *PasswordHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	reset, err := h.passwords.ValidateToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, TokenValidationResponse{Success: true, Valid: true, Email: reset.Email, ExpiresAt: reset.ExpiresAt})
}

// Change changes the caller's password
// @Summary Change password
// @Tags Password
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Current and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /password/change [post]
func (h *PasswordHandler) Change(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.passwords.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Password changed"})
}

// Cleanup deletes used and expired reset tokens
// @Summary Clean up reset tokens
// @Tags Password
// @Produce json
// @Security BearerAuth
// @Success 200 {object} CleanupResponse
// @Router /password/cleanup [delete]
func (h *PasswordHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	n, err := h.passwords.CleanupExpired(r.Context())
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, CleanupResponse{Success: true, Deleted: n})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
