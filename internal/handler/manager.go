package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/insider-one/local-notifications/internal/service"
)

// ManagerHandler exposes the manager's enabled flag and status
type ManagerHandler struct {
	manager  *service.NotificationManager
	validate *validator.Validate
}

// NewManagerHandler creates a new ManagerHandler
func NewManagerHandler(manager *service.NotificationManager) *ManagerHandler {
	return &ManagerHandler{
		manager:  manager,
		validate: validator.New(),
	}
}

// RegisterRoutes registers manager routes
func (h *ManagerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Status)
	r.Put("/enabled", h.SetEnabled)
}

// SetEnabledRequest toggles the manager
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required" example:"true"`
}

// Status returns the manager status
// @Summary Manager status
// @Description Get the enabled flag, the permission state and the pending count
// @Tags manager
// @Produce json
// @Success 200 {object} Response{data=domain.ManagerStatus}
// @Router /api/v1/manager [get]
func (h *ManagerHandler) Status(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.manager.Status())
}

// SetEnabled enables or disables scheduling
// @Summary Enable or disable the manager
// @Description Disabling rejects new schedules. Pending notifications are kept.
// @Tags manager
// @Accept json
// @Produce json
// @Param request body SetEnabledRequest true "Enabled flag"
// @Success 200 {object} Response{data=domain.ManagerStatus}
// @Failure 400 {object} Response
// @Router /api/v1/manager/enabled [put]
func (h *ManagerHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	var req SetEnabledRequest
	if err := DecodeJSON(r, &req); err != nil {
		HandleError(w, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	h.manager.SetEnabled(*req.Enabled)
	JSON(w, http.StatusOK, h.manager.Status())
}
