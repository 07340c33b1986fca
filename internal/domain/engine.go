package domain

import (
	"context"
	"time"
)

// EngineHandle is an opaque reference returned by an engine for a scheduled request.
type EngineHandle string

// NotificationEngine is the delivery engine that actually fires notifications.
// Schedule must treat an identifier it already holds as a replacement, and
// CancelAll must remove everything previously passed to Schedule.
type NotificationEngine interface {
	Schedule(ctx context.Context, req NotificationRequest) (EngineHandle, error)
	Cancel(ctx context.Context, id string) error
	CancelAll(ctx context.Context) error
}

// PendingLister is implemented by engines that persist requests across restarts.
type PendingLister interface {
	ListPending(ctx context.Context) ([]NotificationRequest, error)
}

// DueNotification is a stored request whose fire time has passed. Revision
// changes whenever the stored entry is rewritten, so acknowledging a request
// that was replaced in the meantime is a no-op. Handle is the one Schedule
// returned and stays the same across retries and occurrences.
type DueNotification struct {
	Request  NotificationRequest `json:"request"`
	Handle   EngineHandle        `json:"handle"`
	FireAt   time.Time           `json:"fire_at"`
	Attempts int                 `json:"attempts"`
	Revision string              `json:"revision"`
}

// DueStore is the polling side of a durable engine, drained by the dispatcher.
type DueStore interface {
	// Due returns up to limit requests whose fire time is not after now.
	Due(ctx context.Context, now time.Time, limit int) ([]DueNotification, error)

	// Acknowledge records that a due request fired. Repeating requests are
	// moved to their next occurrence, one-shot requests are dropped. A request
	// cancelled in the meantime stays cancelled.
	Acknowledge(ctx context.Context, due DueNotification, firedAt time.Time) error

	// Defer pushes a due request back to retry after a failed delivery.
	Defer(ctx context.Context, due DueNotification, until time.Time) error
}

// FiredHandler is notified whenever an engine delivers a request. handle
// identifies the scheduling that fired, so a handler can tell it apart from a
// later replacement with the same identifier.
type FiredHandler func(ctx context.Context, handle EngineHandle, req NotificationRequest)

// RateLimiter defines the interface for rate limiting deliveries
type RateLimiter interface {
	// Allow checks if a delivery is allowed under the rate limit
	Allow(ctx context.Context, key string) (bool, error)

	// Wait blocks until a delivery is allowed
	Wait(ctx context.Context, key string) error
}
