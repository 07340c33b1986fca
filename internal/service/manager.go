package service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/insider-one/local-notifications/internal/domain"
	"github.com/insider-one/local-notifications/internal/registry"
)

// Schedule outcomes reported to the Recorder
const (
	OutcomeAccepted         = "accepted"
	OutcomeManagerDisabled  = string(domain.RejectionManagerDisabled)
	OutcomePermissionDenied = string(domain.RejectionPermissionDenied)
	OutcomeEngineFailure    = "engine_failure"
)

// PermissionGate tracks and requests notification authorization
type PermissionGate interface {
	RequestAuthorization(ctx context.Context) <-chan domain.AuthorizationResult
	CurrentState() domain.PermissionState
	Refresh(ctx context.Context) (domain.PermissionState, error)
}

// Recorder receives manager metrics
type Recorder interface {
	RecordSchedule(outcome string)
	RecordCancelled(count int)
	RecordAuthorization(state domain.PermissionState)
	SetPending(count int)
}

type nopRecorder struct{}

func (nopRecorder) RecordSchedule(string)                      {}
func (nopRecorder) RecordCancelled(int)                        {}
func (nopRecorder) RecordAuthorization(domain.PermissionState) {}
func (nopRecorder) SetPending(int)                             {}

// NotificationManager is the entry point for enabling, authorizing,
// scheduling and cancelling local notifications. It owns the enabled flag and
// the pending set; the engine only ever sees requests the manager accepted.
type NotificationManager struct {
	gate     PermissionGate
	engine   domain.NotificationEngine
	logger   *slog.Logger
	recorder Recorder
	publish  domain.EventPublisher

	mu         sync.Mutex
	enabled    bool
	permission domain.PermissionState
	pending    *registry.Registry
	// handles holds the engine handle of the accepted occurrence per id.
	// Restored requests have none.
	handles map[string]domain.EngineHandle
}

// NewNotificationManager creates a new NotificationManager. It starts enabled
// with no pending requests.
func NewNotificationManager(
	gate PermissionGate,
	engine domain.NotificationEngine,
	logger *slog.Logger,
) *NotificationManager {
	return &NotificationManager{
		gate:       gate,
		engine:     engine,
		logger:     logger,
		recorder:   nopRecorder{},
		enabled:    true,
		permission: gate.CurrentState(),
		pending:    registry.New(),
		handles:    make(map[string]domain.EngineHandle),
	}
}

// SetEventBroadcast sets the function to broadcast manager events
func (m *NotificationManager) SetEventBroadcast(fn domain.EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publish = fn
}

// SetRecorder sets the metrics recorder
func (m *NotificationManager) SetRecorder(r Recorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorder = r
}

// SetEnabled flips the flag evaluated by Schedule. Already accepted requests
// are left alone.
func (m *NotificationManager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enabled == enabled {
		return
	}
	m.enabled = enabled
	m.logger.Info("notification manager toggled", "enabled", enabled)
}

func (m *NotificationManager) IsEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// PermissionState returns the gate's current state
func (m *NotificationManager) PermissionState() domain.PermissionState {
	return m.gate.CurrentState()
}

// Register asks for authorization without blocking. Calls made while a prompt
// is open share it; calls made after resolution get the cached state.
func (m *NotificationManager) Register(ctx context.Context) <-chan domain.AuthorizationResult {
	ch := m.gate.RequestAuthorization(ctx)
	out := make(chan domain.AuthorizationResult, 1)

	// A resolved gate answers at once; keep that visible to callers that
	// only peek at the channel.
	select {
	case res := <-ch:
		m.settleRegistration(res)
		out <- res
		return out
	default:
	}

	go func() {
		res := <-ch
		m.settleRegistration(res)
		out <- res
	}()

	return out
}

func (m *NotificationManager) settleRegistration(res domain.AuthorizationResult) {
	if res.Err != nil {
		m.logger.Error("failed to register for notifications", "error", res.Err)
		return
	}
	m.storePermission(res.State)
}

// RefreshPermission re-reads the host decision, picking up external resets.
func (m *NotificationManager) RefreshPermission(ctx context.Context) (domain.PermissionState, error) {
	state, err := m.gate.Refresh(ctx)
	if err != nil {
		return state, fmt.Errorf("failed to refresh permission: %w", err)
	}
	m.storePermission(state)
	return state, nil
}

func (m *NotificationManager) storePermission(state domain.PermissionState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.permission == state {
		return
	}
	m.permission = state
	m.recorder.RecordAuthorization(state)

	event := domain.NewEvent(domain.EventPermissionChanged)
	event.Permission = state
	m.emit(event)
}

// Schedule hands req to the engine if the manager is enabled and notification
// permission is granted. Otherwise the result is a rejection and nothing
// changes. Only validation and engine failures are returned as errors.
func (m *NotificationManager) Schedule(ctx context.Context, req domain.NotificationRequest) (domain.ScheduleResult, error) {
	if err := req.Validate(); err != nil {
		return domain.ScheduleResult{}, err
	}

	req = req.Clone()
	result := domain.ScheduleResult{Notification: req}
	logger := m.logger.With("notification_id", req.ID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return m.reject(result, domain.RejectionManagerDisabled, logger), nil
	}
	if state := m.gate.CurrentState(); state != domain.PermissionGranted {
		logger = logger.With("permission_state", state)
		return m.reject(result, domain.RejectionPermissionDenied, logger), nil
	}

	handle, err := m.engine.Schedule(ctx, req)
	if err != nil {
		m.recorder.RecordSchedule(OutcomeEngineFailure)
		return result, fmt.Errorf("failed to schedule notification: %w", err)
	}

	result.Accepted = true
	result.Handle = handle
	result.Replaced = m.pending.Add(req)
	m.handles[req.ID] = handle

	m.recorder.RecordSchedule(OutcomeAccepted)
	m.recorder.SetPending(m.pending.Len())

	logger.Info("notification scheduled",
		"handle", handle,
		"replaced", result.Replaced,
		"repeat_interval", req.RepeatInterval,
	)

	event := domain.NewEvent(domain.EventNotificationScheduled)
	event.Notification = &req
	m.emit(event)

	return result, nil
}

func (m *NotificationManager) reject(result domain.ScheduleResult, reason domain.RejectionReason, logger *slog.Logger) domain.ScheduleResult {
	result.Reason = reason
	m.recorder.RecordSchedule(string(reason))
	logger.Warn("notification rejected", "reason", reason)
	return result
}

// CancelAll removes every pending request from the engine and then from the
// pending set. It is allowed in every state and never touches permission.
// An engine failure is returned wrapped in ErrCancellationFailed and the
// pending set is kept so the call can simply be repeated.
func (m *NotificationManager) CancelAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.engine.CancelAll(ctx); err != nil {
		m.logger.Error("failed to cancel notifications", "error", err)
		return fmt.Errorf("%w: %w", domain.ErrCancellationFailed, err)
	}

	cleared := m.pending.Clear()
	clear(m.handles)
	m.recorder.RecordCancelled(cleared)
	m.recorder.SetPending(0)

	m.logger.Info("all notifications cancelled", "count", cleared)

	event := domain.NewEvent(domain.EventNotificationsCleared)
	event.Cleared = cleared
	m.emit(event)

	return nil
}

// Cancel removes a single request. Unknown identifiers are a no-op.
func (m *NotificationManager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.engine.Cancel(ctx, id); err != nil {
		m.logger.Error("failed to cancel notification", "notification_id", id, "error", err)
		return fmt.Errorf("%w: %w", domain.ErrCancellationFailed, err)
	}

	req, ok := m.pending.Get(id)
	if !ok {
		return nil
	}
	m.pending.Remove(id)
	delete(m.handles, id)
	m.recorder.RecordCancelled(1)
	m.recorder.SetPending(m.pending.Len())

	m.logger.Info("notification cancelled", "notification_id", id)

	event := domain.NewEvent(domain.EventNotificationCancelled)
	event.Notification = &req
	m.emit(event)

	return nil
}

// Pending returns a snapshot of the pending set.
func (m *NotificationManager) Pending() iter.Seq[domain.NotificationRequest] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.List()
}

// Status returns the current manager state
func (m *NotificationManager) Status() domain.ManagerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return domain.ManagerStatus{
		Enabled:    m.enabled,
		Permission: m.gate.CurrentState(),
		Pending:    m.pending.Len(),
	}
}

// HandleFired is called by engines after delivering a request. One-shot
// requests leave the pending set, repeating ones stay. A request replaced
// while the old occurrence was being delivered is kept: removal only
// happens when handle still names the pending occurrence.
func (m *NotificationManager) HandleFired(ctx context.Context, handle domain.EngineHandle, req domain.NotificationRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !req.Repeats() && m.firedCurrent(req.ID, handle) {
		m.pending.Remove(req.ID)
		delete(m.handles, req.ID)
		m.recorder.SetPending(m.pending.Len())
	}

	m.logger.Debug("notification fired", "notification_id", req.ID, "repeats", req.Repeats())

	fired := req.Clone()
	event := domain.NewEvent(domain.EventNotificationFired)
	event.Notification = &fired
	m.emit(event)
}

// firedCurrent must be called with m.mu held.
func (m *NotificationManager) firedCurrent(id string, handle domain.EngineHandle) bool {
	current, ok := m.handles[id]
	if !ok || current == "" || handle == "" {
		return true
	}
	return current == handle
}

// Restore loads requests a durable engine still holds into the pending set.
// Engines without persistence are skipped.
func (m *NotificationManager) Restore(ctx context.Context) (int, error) {
	lister, ok := m.engine.(domain.PendingLister)
	if !ok {
		return 0, nil
	}

	requests, err := lister.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to restore pending notifications: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, req := range requests {
		m.pending.Add(req)
	}
	m.recorder.SetPending(m.pending.Len())

	m.logger.Info("pending notifications restored", "count", len(requests))
	return len(requests), nil
}

// emit must be called with m.mu held.
func (m *NotificationManager) emit(event domain.Event) {
	if m.publish != nil {
		m.publish(event)
	}
}
