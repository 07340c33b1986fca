// Package engine contains the in-process notification engine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/insider-one/local-notifications/internal/domain"
)

const defaultDeliveryTimeout = 30 * time.Second

type scheduledJob struct {
	job        *gocron.Job
	req        domain.NotificationRequest
	generation uint64
}

// Memory fires notifications from an in-process gocron scheduler. Nothing
// survives a restart.
type Memory struct {
	scheduler *gocron.Scheduler
	provider  domain.DeliveryProvider
	logger    *slog.Logger
	timeout   time.Duration
	onFired   domain.FiredHandler
	recorder  domain.DeliveryRecorder

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	jobs       map[string]*scheduledJob
	generation uint64
}

// NewMemory creates a new in-process engine
func NewMemory(provider domain.DeliveryProvider, logger *slog.Logger) *Memory {
	ctx, cancel := context.WithCancel(context.Background())

	return &Memory{
		scheduler: gocron.NewScheduler(time.UTC),
		provider:  provider,
		logger:    logger,
		timeout:   defaultDeliveryTimeout,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*scheduledJob),
	}
}

// SetFiredHandler sets the function called after every delivery
func (m *Memory) SetFiredHandler(fn domain.FiredHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFired = fn
}

// SetRecorder sets the delivery metrics recorder
func (m *Memory) SetRecorder(recorder domain.DeliveryRecorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorder = recorder
}

// SetDeliveryTimeout bounds each provider call
func (m *Memory) SetDeliveryTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.timeout = d
	}
}

// Start starts the scheduler
func (m *Memory) Start() {
	m.logger.Info("starting in-process notification engine")
	m.scheduler.StartAsync()
}

// Stop stops the scheduler
func (m *Memory) Stop() {
	m.cancel()
	m.scheduler.Stop()
	m.logger.Info("in-process notification engine stopped")
}

// Schedule registers a gocron job for req, replacing any job with the same
// identifier. Fire times that already passed run immediately.
func (m *Memory) Schedule(ctx context.Context, req domain.NotificationRequest) (domain.EngineHandle, error) {
	now := time.Now().UTC()
	fireAt := req.Fire.Resolve(now)

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.jobs[req.ID]; ok {
		m.scheduler.RemoveByReference(existing.job)
		delete(m.jobs, req.ID)
	}

	m.generation++
	generation := m.generation

	var s *gocron.Scheduler
	if req.Repeats() {
		s = m.scheduler.Every(req.RepeatInterval)
	} else {
		s = m.scheduler.Every(1).LimitRunsTo(1)
	}
	if fireAt.After(now) {
		s = s.StartAt(fireAt)
	} else {
		s = s.StartImmediately()
	}

	job, err := s.Do(m.fire, req.ID, generation)
	if err != nil {
		return "", fmt.Errorf("failed to schedule job for notification %s: %w", req.ID, err)
	}

	m.jobs[req.ID] = &scheduledJob{job: job, req: req.Clone(), generation: generation}

	m.logger.Debug("notification job scheduled",
		"notification_id", req.ID,
		"fire_at", fireAt.Format(time.RFC3339),
	)

	return memoryHandle(req.ID, generation), nil
}

// Cancel removes the job for id, if any.
func (m *Memory) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.jobs[id]
	if !ok {
		return nil
	}
	m.scheduler.RemoveByReference(existing.job)
	delete(m.jobs, id)
	return nil
}

// CancelAll removes every job.
func (m *Memory) CancelAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scheduler.Clear()
	clear(m.jobs)
	return nil
}

// Len returns the number of live jobs
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Depth returns the number of live jobs
func (m *Memory) Depth(ctx context.Context) (int64, error) {
	return int64(m.Len()), nil
}

// fire runs on a gocron goroutine. A job that was replaced or cancelled
// after being picked up is skipped.
func (m *Memory) fire(id string, generation uint64) {
	m.mu.Lock()
	entry, ok := m.jobs[id]
	if !ok || entry.generation != generation {
		m.mu.Unlock()
		return
	}
	req := entry.req.Clone()
	if !req.Repeats() {
		m.scheduler.RemoveByReference(entry.job)
		delete(m.jobs, id)
	}
	onFired := m.onFired
	recorder := m.recorder
	timeout := m.timeout
	m.mu.Unlock()

	logger := m.logger.With("notification_id", id)

	ctx, cancel := context.WithTimeout(m.ctx, timeout)
	defer cancel()

	start := time.Now()
	receipt, err := m.provider.Send(ctx, domain.NewDelivery(req, start))
	duration := time.Since(start)

	status := domain.DeliveryDelivered
	if err != nil {
		status = domain.DeliveryFailed
		logger.Error("failed to deliver notification", "provider", m.provider.Name(), "error", err)
	} else {
		logger.Info("notification delivered", "provider", m.provider.Name(), "message_id", receipt.MessageID)
	}
	if recorder != nil {
		recorder.RecordDelivery(m.provider.Name(), status, duration)
	}

	if onFired != nil {
		onFired(ctx, memoryHandle(id, generation), req)
	}
}

func memoryHandle(id string, generation uint64) domain.EngineHandle {
	return domain.EngineHandle(fmt.Sprintf("memory:%s:%d", id, generation))
}
