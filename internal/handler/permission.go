package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/insider-one/local-notifications/internal/domain"
	"github.com/insider-one/local-notifications/internal/service"
)

// PromptDecider answers an open authorization prompt
type PromptDecider interface {
	Decide(granted bool) error
}

// AuthorizationResetter forgets the host decision, like clearing it in
// system settings
type AuthorizationResetter interface {
	Reset()
}

// PermissionHandler handles notification permission requests
type PermissionHandler struct {
	manager  *service.NotificationManager
	decider  PromptDecider
	resetter AuthorizationResetter
	validate *validator.Validate
}

// NewPermissionHandler creates a new PermissionHandler. decider is nil unless
// authorization is answered interactively; resetter is nil when the
// authorizer cannot forget its decision.
func NewPermissionHandler(manager *service.NotificationManager, decider PromptDecider, resetter AuthorizationResetter) *PermissionHandler {
	return &PermissionHandler{
		manager:  manager,
		decider:  decider,
		resetter: resetter,
		validate: validator.New(),
	}
}

// RegisterRoutes registers permission routes
func (h *PermissionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Reset)
	r.Post("/register", h.Register)
	r.Post("/refresh", h.Refresh)
	r.Post("/decision", h.Decide)
}

// PermissionResponse reports the permission state
type PermissionResponse struct {
	State domain.PermissionState `json:"state" example:"granted"`
}

// DecisionRequest answers an open authorization prompt
type DecisionRequest struct {
	Granted *bool `json:"granted" validate:"required" example:"true"`
}

// Get returns the current permission state
// @Summary Permission state
// @Tags permission
// @Produce json
// @Success 200 {object} Response{data=PermissionResponse}
// @Router /api/v1/permission [get]
func (h *PermissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, PermissionResponse{State: h.manager.PermissionState()})
}

// Register requests notification permission
// @Summary Register for notifications
// @Description Ask for notification permission. Concurrent calls share one prompt. Without wait the call returns 202 immediately.
// @Tags permission
// @Produce json
// @Param wait query bool false "Block until the prompt resolves"
// @Success 200 {object} Response{data=PermissionResponse}
// @Success 202 {object} Response{data=PermissionResponse}
// @Failure 500 {object} Response
// @Router /api/v1/permission/register [post]
func (h *PermissionHandler) Register(w http.ResponseWriter, r *http.Request) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	result := h.manager.Register(r.Context())
	if !wait {
		// a terminal state resolves synchronously
		select {
		case res := <-result:
			h.writeResult(w, res)
		default:
			JSON(w, http.StatusAccepted, PermissionResponse{State: h.manager.PermissionState()})
		}
		return
	}

	select {
	case res := <-result:
		h.writeResult(w, res)
	case <-r.Context().Done():
		HandleError(w, r.Context().Err())
	}
}

func (h *PermissionHandler) writeResult(w http.ResponseWriter, res domain.AuthorizationResult) {
	if res.Err != nil {
		JSONError(w, http.StatusInternalServerError, "AUTHORIZATION_FAILED", res.Err.Error(), PermissionResponse{State: res.State})
		return
	}
	JSON(w, http.StatusOK, PermissionResponse{State: res.State})
}

// Refresh re-reads the host decision
// @Summary Refresh permission
// @Description Re-read the host's decision to pick up revocations and resets
// @Tags permission
// @Produce json
// @Success 200 {object} Response{data=PermissionResponse}
// @Failure 500 {object} Response
// @Router /api/v1/permission/refresh [post]
func (h *PermissionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	state, err := h.manager.RefreshPermission(r.Context())
	if err != nil {
		HandleError(w, err)
		return
	}
	JSON(w, http.StatusOK, PermissionResponse{State: state})
}

// Reset clears the host decision
// @Summary Reset permission
// @Description Forget the host's decision and refresh. The next registration prompts again.
// @Tags permission
// @Produce json
// @Success 200 {object} Response{data=PermissionResponse}
// @Failure 500 {object} Response
// @Failure 501 {object} Response
// @Router /api/v1/permission [delete]
func (h *PermissionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if h.resetter == nil {
		JSONError(w, http.StatusNotImplemented, "NOT_SUPPORTED", "Authorizer cannot be reset", nil)
		return
	}

	h.resetter.Reset()

	state, err := h.manager.RefreshPermission(r.Context())
	if err != nil {
		HandleError(w, err)
		return
	}
	JSON(w, http.StatusOK, PermissionResponse{State: state})
}

// Decide answers the open authorization prompt
// @Summary Answer permission prompt
// @Description Grant or deny the open authorization prompt
// @Tags permission
// @Accept json
// @Param decision body DecisionRequest true "Decision"
// @Success 204
// @Failure 400 {object} Response
// @Failure 409 {object} Response
// @Router /api/v1/permission/decision [post]
func (h *PermissionHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := DecodeJSON(r, &req); err != nil {
		HandleError(w, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	if h.decider == nil {
		HandleError(w, domain.ErrNoPendingPrompt)
		return
	}

	if err := h.decider.Decide(*req.Granted); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
