package permission

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/insider-one/local-notifications/internal/domain"
)

// ErrPromptTimeout is returned when nobody answers a prompt in time.
var ErrPromptTimeout = errors.New("authorization prompt timed out")

// PromptAuthorizer asks a connected operator for consent. The prompt is
// announced through the event publisher and stays open until Decide is called
// or the timeout passes.
type PromptAuthorizer struct {
	logger  *slog.Logger
	publish domain.EventPublisher
	timeout time.Duration

	mu      sync.Mutex
	decided domain.PermissionState
	open    chan struct{}
}

// NewPromptAuthorizer creates a new PromptAuthorizer
func NewPromptAuthorizer(logger *slog.Logger) *PromptAuthorizer {
	return &PromptAuthorizer{
		logger:  logger,
		decided: domain.PermissionUnknown,
	}
}

// SetPromptBroadcast sets the function used to announce prompts
func (a *PromptAuthorizer) SetPromptBroadcast(fn domain.EventPublisher) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.publish = fn
}

// SetTimeout bounds how long a prompt stays open. Zero waits forever.
func (a *PromptAuthorizer) SetTimeout(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timeout = d
}

func (a *PromptAuthorizer) AuthorizationStatus(ctx context.Context) (domain.PermissionState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.decided, nil
}

func (a *PromptAuthorizer) RequestAuthorization(ctx context.Context) (domain.PermissionState, error) {
	a.mu.Lock()
	if a.decided.IsTerminal() {
		state := a.decided
		a.mu.Unlock()
		return state, nil
	}
	if a.open == nil {
		a.open = make(chan struct{})
	}
	open := a.open
	publish := a.publish
	timeout := a.timeout
	a.mu.Unlock()

	if publish != nil {
		publish(domain.NewEvent(domain.EventPermissionPrompt))
	}
	a.logger.Info("waiting for notification consent")

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-ctx.Done():
		return domain.PermissionUnknown, ctx.Err()
	case <-expired:
		a.expire(open)
		return domain.PermissionUnknown, ErrPromptTimeout
	case <-open:
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.decided, nil
}

// expire closes open if it is still the current prompt. A decision that
// raced the timer wins.
func (a *PromptAuthorizer) expire(open chan struct{}) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.open != open {
		return
	}
	close(a.open)
	a.open = nil
	a.logger.Warn("notification consent prompt expired")
}

// Decide answers the open prompt.
func (a *PromptAuthorizer) Decide(granted bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.open == nil {
		return domain.ErrNoPendingPrompt
	}

	a.decided = domain.PermissionDenied
	if granted {
		a.decided = domain.PermissionGranted
	}
	close(a.open)
	a.open = nil

	a.logger.Info("notification consent decided", "permission_state", a.decided)
	return nil
}

// Awaiting reports whether a prompt is waiting for a decision.
func (a *PromptAuthorizer) Awaiting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open != nil
}

// Reset forgets the decision, as if the user cleared it in system settings.
func (a *PromptAuthorizer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decided = domain.PermissionUnknown
}
