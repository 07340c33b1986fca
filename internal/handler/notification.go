package handler

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/insider-one/local-notifications/internal/domain"
	"github.com/insider-one/local-notifications/internal/service"
)

// NotificationHandler handles notification HTTP requests
type NotificationHandler struct {
	manager  *service.NotificationManager
	validate *validator.Validate
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(manager *service.NotificationManager) *NotificationHandler {
	return &NotificationHandler{
		manager:  manager,
		validate: validator.New(),
	}
}

// RegisterRoutes registers notification routes
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Schedule)
	r.Get("/", h.List)
	r.Delete("/", h.CancelAll)
	r.Delete("/{id}", h.Cancel)
}

// ScheduleNotificationRequest represents a request to schedule a local notification
// @Description Request to schedule a notification. Exactly one of fire_at and delay_seconds is required.
type ScheduleNotificationRequest struct {
	ID                    string            `json:"id,omitempty" validate:"omitempty,max=255" example:"standup-reminder"`
	Title                 string            `json:"title" validate:"max=256" example:"Stand-up"`
	Body                  string            `json:"body" validate:"max=4096" example:"Daily stand-up starts in 5 minutes"`
	Sound                 string            `json:"sound,omitempty" example:"default"`
	Badge                 *int              `json:"badge,omitempty" validate:"omitempty,min=0" example:"1"`
	Data                  map[string]string `json:"data,omitempty"`
	FireAt                *time.Time        `json:"fire_at,omitempty" validate:"required_without=DelaySeconds,excluded_with=DelaySeconds"`
	DelaySeconds          *int              `json:"delay_seconds,omitempty" validate:"omitempty,min=0" example:"300"`
	RepeatIntervalSeconds int               `json:"repeat_interval_seconds,omitempty" validate:"omitempty,min=60" example:"86400"`
}

func (req ScheduleNotificationRequest) toDomain() domain.NotificationRequest {
	fire := domain.FireAfter(0)
	if req.FireAt != nil {
		fire = domain.FireAt(*req.FireAt)
	} else if req.DelaySeconds != nil {
		fire = domain.FireAfter(time.Duration(*req.DelaySeconds) * time.Second)
	}

	n := domain.NewNotificationRequest(req.ID, fire, domain.Payload{
		Title: req.Title,
		Body:  req.Body,
		Sound: req.Sound,
		Badge: req.Badge,
		Data:  req.Data,
	})
	if req.RepeatIntervalSeconds > 0 {
		n = n.WithRepeat(time.Duration(req.RepeatIntervalSeconds) * time.Second)
	}
	return n
}

// Schedule schedules a single notification
// @Summary Schedule notification
// @Description Schedule a local notification. Rejected with 409 when the manager is disabled or permission is not granted.
// @Tags notifications
// @Accept json
// @Produce json
// @Param notification body ScheduleNotificationRequest true "Notification request"
// @Success 201 {object} Response{data=domain.ScheduleResult}
// @Success 200 {object} Response{data=domain.ScheduleResult} "Replaced a pending notification"
// @Failure 400 {object} Response
// @Failure 409 {object} Response{error=Error{details=domain.ScheduleResult}}
// @Failure 500 {object} Response
// @Router /api/v1/notifications [post]
func (h *NotificationHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleNotificationRequest
	if err := DecodeJSON(r, &req); err != nil {
		HandleError(w, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	result, err := h.manager.Schedule(r.Context(), req.toDomain())
	if err != nil {
		HandleError(w, err)
		return
	}

	if !result.Accepted {
		JSONError(w, http.StatusConflict, strings.ToUpper(string(result.Reason)), result.Err().Error(), result)
		return
	}

	status := http.StatusCreated
	if result.Replaced {
		status = http.StatusOK
	}
	JSON(w, status, result)
}

// List lists pending notifications
// @Summary List pending notifications
// @Description List every notification the manager accepted that has not fired or been cancelled
// @Tags notifications
// @Produce json
// @Success 200 {object} Response{data=[]domain.NotificationRequest}
// @Router /api/v1/notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	pending := slices.SortedFunc(h.manager.Pending(), func(a, b domain.NotificationRequest) int {
		return strings.Compare(a.ID, b.ID)
	})
	if pending == nil {
		pending = []domain.NotificationRequest{}
	}
	JSON(w, http.StatusOK, pending)
}

// CancelAllResponse reports how many notifications were cleared
type CancelAllResponse struct {
	Cleared int `json:"cleared"`
}

// CancelAll cancels every pending notification
// @Summary Cancel all notifications
// @Description Cancel every pending notification. Allowed regardless of the enabled flag or permission.
// @Tags notifications
// @Produce json
// @Success 200 {object} Response{data=CancelAllResponse}
// @Failure 502 {object} Response
// @Router /api/v1/notifications [delete]
func (h *NotificationHandler) CancelAll(w http.ResponseWriter, r *http.Request) {
	before := h.manager.Status().Pending

	if err := h.manager.CancelAll(r.Context()); err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, CancelAllResponse{Cleared: before})
}

// Cancel cancels a single notification
// @Summary Cancel notification
// @Description Cancel a pending notification by identifier. Unknown identifiers are a no-op.
// @Tags notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 502 {object} Response
// @Router /api/v1/notifications/{id} [delete]
func (h *NotificationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		HandleError(w, domain.NewValidationError("id", "identifier is required"))
		return
	}

	if err := h.manager.Cancel(r.Context(), id); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
