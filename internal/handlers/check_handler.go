package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/services"
	"go.uber.org/zap"
)

type RunCheckRequest struct {
	Identifier      string `json:"identifier" validate:"required,max=32"`
	Odometer        *int   `json:"odometer" validate:"omitempty,gte=0"`
	OdometerUnknown bool   `json:"odometerUnknown"`
	ValidNCT        *bool  `json:"validNCT"`
}

type CheckResponse struct {
	Success bool `json:"success"`
	*services.CheckResult
}

type CheckHandler struct {
	vehicle   *services.VehicleService
	validator *ValidationHelper
	logger    *zap.Logger
}

func NewCheckHandler(vehicle *services.VehicleService, logger *zap.Logger) *CheckHandler {
	return &CheckHandler{vehicle: vehicle, validator: NewValidationHelper(), logger: logger.Named("check_handler")}
}

// Run performs a paid vehicle check
// @Summary Run vehicle check
// @Description Looks up the vehicle and charges the fixed service cost only when the lookup succeeds
// @Tags Checks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param serviceType path string true "history, valuation or vin"
// @Param request body RunCheckRequest true "Vehicle identifier"
// @Success 200 {object} CheckResponse
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /checks/{serviceType} [post]
func (h *CheckHandler) Run(w http.ResponseWriter, r *http.Request) {
	claims, ok := callerClaims(w, r)
	if !ok {
		return
	}
	var req RunCheckRequest
	if !h.validator.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.vehicle.RunCheck(r.Context(), claims.UserID, services.CheckRequest{
		ServiceType:     models.ServiceType(chi.URLParam(r, "serviceType")),
		Identifier:      req.Identifier,
		Odometer:        req.Odometer,
		OdometerUnknown: req.OdometerUnknown,
		ValidNCT:        req.ValidNCT,
	})
	if err != nil {
		sendServiceError(w, h.logger, err)
		return
	}
	SendJSON(w, http.StatusOK, CheckResponse{Success: true, CheckResult: result})
}
