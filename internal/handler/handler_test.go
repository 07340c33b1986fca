package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insider-one/local-notifications/internal/domain"
	"github.com/insider-one/local-notifications/internal/engine"
	"github.com/insider-one/local-notifications/internal/permission"
	"github.com/insider-one/local-notifications/internal/provider"
	"github.com/insider-one/local-notifications/internal/service"
)

type testEnv struct {
	router  chi.Router
	manager *service.NotificationManager
	engine  *engine.Memory
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, authorizer domain.Authorizer, decider PromptDecider) *testEnv {
	t.Helper()
	logger := testLogger()

	eng := engine.NewMemory(provider.NewLogProvider(logger), logger)
	t.Cleanup(eng.Stop)

	gate := permission.NewGate(authorizer, logger)
	manager := service.NewNotificationManager(gate, eng, logger)

	metrics := NewMetrics(prometheus.NewRegistry())
	manager.SetRecorder(metrics)

	resetter, _ := authorizer.(AuthorizationResetter)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/notifications", NewNotificationHandler(manager).RegisterRoutes)
		r.Route("/manager", NewManagerHandler(manager).RegisterRoutes)
		r.Route("/permission", NewPermissionHandler(manager, decider, resetter).RegisterRoutes)
	})
	metricsHandler := NewMetricsHandler(metrics, manager, eng)
	r.Get("/metrics/realtime", metricsHandler.Realtime)
	r.Handle("/metrics", metricsHandler.Handler())

	return &testEnv{router: r, manager: manager, engine: eng}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp Response
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func (e *testEnv) grant(t *testing.T) {
	t.Helper()
	rec, resp := e.do(t, http.MethodPost, "/api/v1/permission/register?wait=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"state": "granted"}, resp.Data)
}

func scheduleBody(id string) map[string]any {
	return map[string]any{
		"id":            id,
		"title":         "Stand-up",
		"delay_seconds": 3600,
	}
}

func TestNotificationHandler_RejectedBeforeRegistration(t *testing.T) {
	env := newTestEnv(t, permission.NewPolicyAuthorizer(true, 0), nil)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/notifications", scheduleBody("a"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PERMISSION_DENIED", resp.Error.Code)
	assert.Zero(t, env.engine.Len())
}

func TestNotificationHandler_Lifecycle(t *testing.T) {
	env := newTestEnv(t, permission.NewPolicyAuthorizer(true, 0), nil)
	env.grant(t)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/notifications", scheduleBody("a"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, resp.Data.(map[string]any)["accepted"])

	rec, _ = env.do(t, http.MethodPost, "/api/v1/notifications", scheduleBody("a"))
	assert.Equal(t, http.StatusOK, rec.Code, "same id replaces")

	rec, _ = env.do(t, http.MethodPost, "/api/v1/notifications", scheduleBody("b"))
	require.Equal(t, http.StatusCreated, rec.Code)

	_, resp = env.do(t, http.MethodGet, "/api/v1/notifications", nil)
	list := resp.Data.([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].(map[string]any)["id"])
	assert.Equal(t, 2, env.engine.Len())

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/notifications/a", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/notifications/unknown", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, resp = env.do(t, http.MethodDelete, "/api/v1/notifications", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"cleared": float64(1)}, resp.Data)

	_, resp = env.do(t, http.MethodGet, "/api/v1/notifications", nil)
	assert.Empty(t, resp.Data)
	assert.Zero(t, env.engine.Len())
}

func TestNotificationHandler_Validation(t *testing.T) {
	env := newTestEnv(t, permission.NewPolicyAuthorizer(true, 0), nil)
	env.grant(t)

	tests := []struct {
		name string
		body any
	}{
		{"no fire time", map[string]any{"title": "x"}},
		{"both fire times", map[string]any{"fire_at": time.Now().Add(time.Hour), "delay_seconds": 5}},
		{"negative delay", map[string]any{"delay_seconds": -1}},
		{"repeat below one minute", map[string]any{"delay_seconds": 5, "repeat_interval_seconds": 30}},
		{"negative badge", map[string]any{"delay_seconds": 5, "badge": -1}},
		{"unknown field", map[string]any{"delay_seconds": 5, "channel": "sms"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := env.do(t, http.MethodPost, "/api/v1/notifications", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		})
	}
	assert.Zero(t, env.engine.Len())
}

func TestNotificationHandler_PastFireTimeIsAccepted(t *testing.T) {
	env := newTestEnv(t, permission.NewPolicyAuthorizer(true, 0), nil)
	env.grant(t)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/notifications", map[string]any{
		"id":      "late",
		"fire_at": time.Now().Add(-time.Hour),
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestManagerHandler(t *testing.T) {
	env := newTestEnv(t, permission.NewPolicyAuthorizer(true, 0), nil)
	env.grant(t)

	_, resp := env.do(t, http.MethodGet, "/api/v1/manager", nil)
	assert.Equal(t, map[string]any{"enabled": true, "permission": "granted", "pending": float64(0)}, resp.Data)

	rec, _ := env.do(t, http.MethodPut, "/api/v1/manager/enabled", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = env.do(t, http.MethodPut, "/api/v1/manager/enabled", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, resp.Data.(map[string]any)["enabled"])

	rec, resp = env.do(t, http.MethodPost, "/api/v1/notifications", scheduleBody("a"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "MANAGER_DISABLED", resp.Error.Code)

	// cancelling is allowed while disabled
	rec, _ = env.do(t, http.MethodDelete, "/api/v1/notifications", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPermissionHandler_Denied(t *testing.T) {
	env := newTestEnv(t, permission.NewPolicyAuthorizer(false, 0), nil)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/permission/register?wait=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"state": "denied"}, resp.Data)

	_, resp = env.do(t, http.MethodGet, "/api/v1/permission", nil)
	assert.Equal(t, map[string]any{"state": "denied"}, resp.Data)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/notifications", scheduleBody("a"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPermissionHandler_DecisionWithoutPrompt(t *testing.T) {
	env := newTestEnv(t, permission.NewPolicyAuthorizer(true, 0), nil)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/permission/decision", map[string]any{"granted": true})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NO_PENDING_PROMPT", resp.Error.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/permission/decision", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPermissionHandler_InteractivePrompt(t *testing.T) {
	prompt := permission.NewPromptAuthorizer(testLogger())
	env := newTestEnv(t, prompt, prompt)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/permission/register", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, map[string]any{"state": "requested"}, resp.Data)

	require.Eventually(t, prompt.Awaiting, time.Second, 5*time.Millisecond)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/permission/decision", map[string]any{"granted": true})
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.Eventually(t, func() bool {
		return env.manager.PermissionState() == domain.PermissionGranted
	}, time.Second, 5*time.Millisecond)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/notifications", scheduleBody("a"))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPermissionHandler_Refresh(t *testing.T) {
	authorizer := permission.NewPolicyAuthorizer(true, 0)
	env := newTestEnv(t, authorizer, nil)
	env.grant(t)

	authorizer.Reset()

	rec, resp := env.do(t, http.MethodPost, "/api/v1/permission/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"state": "unknown"}, resp.Data)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/notifications", scheduleBody("a"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPermissionHandler_RegisterAfterResolution(t *testing.T) {
	env := newTestEnv(t, permission.NewPolicyAuthorizer(true, 0), nil)
	env.grant(t)

	rec, resp := env.do(t, http.MethodPost, "/api/v1/permission/register", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"state": "granted"}, resp.Data)
}

func TestPermissionHandler_Reset(t *testing.T) {
	authorizer := permission.NewPolicyAuthorizer(true, 0)
	env := newTestEnv(t, authorizer, nil)
	env.grant(t)

	rec, resp := env.do(t, http.MethodDelete, "/api/v1/permission", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"state": "unknown"}, resp.Data)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/notifications", scheduleBody("a"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// registering again prompts again
	env.grant(t)
	assert.Equal(t, 2, authorizer.Prompts())
}

func TestPermissionHandler_ResetUnsupported(t *testing.T) {
	env := newTestEnv(t, permission.NewPolicyAuthorizer(true, 0), nil)

	r := chi.NewRouter()
	r.Route("/permission", NewPermissionHandler(env.manager, nil, nil).RegisterRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/permission", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_SUPPORTED")
}

func TestMetricsHandler_Realtime(t *testing.T) {
	env := newTestEnv(t, permission.NewPolicyAuthorizer(true, 0), nil)
	env.grant(t)
	env.do(t, http.MethodPost, "/api/v1/notifications", scheduleBody("a"))

	rec, resp := env.do(t, http.MethodGet, "/metrics/realtime", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["pending"])
	assert.Equal(t, float64(1), data["engine_depth"])

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `notification_schedules_total{outcome="accepted"} 1`)
	assert.Contains(t, rec.Body.String(), "notifications_pending 1")
}

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler()
	h.AddChecker("ok", HealthCheckFunc(func(ctx context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h.AddChecker("redis", HealthCheckFunc(func(ctx context.Context) error { return errors.New("connection refused") }))

	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{domain.ErrManagerDisabled, http.StatusConflict, "MANAGER_DISABLED"},
		{domain.ErrPermissionDenied, http.StatusConflict, "PERMISSION_DENIED"},
		{domain.ErrNoPendingPrompt, http.StatusConflict, "NO_PENDING_PROMPT"},
		{fmt.Errorf("%w: %w", domain.ErrCancellationFailed, errors.New("engine down")), http.StatusBadGateway, "CANCELLATION_FAILED"},
		{domain.NewValidationError("id", "identifier is required"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{domain.ValidationErrors{Errors: []domain.ValidationError{{Field: "a", Message: "b"}}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.wantErr, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(rec, tt.err)

			assert.Equal(t, tt.wantCode, rec.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantErr, resp.Error.Code)
		})
	}
}
