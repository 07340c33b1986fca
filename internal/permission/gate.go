package permission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/insider-one/local-notifications/internal/domain"
)

const authorizationKey = "authorization"

// Gate caches the host authorization and makes sure only one prompt is ever
// outstanding. Callers attaching while a prompt is open share its result.
type Gate struct {
	authorizer domain.Authorizer
	logger     *slog.Logger
	group      singleflight.Group

	mu    sync.RWMutex
	state domain.PermissionState
}

// NewGate creates a new Gate in the unknown state
func NewGate(authorizer domain.Authorizer, logger *slog.Logger) *Gate {
	return &Gate{
		authorizer: authorizer,
		logger:     logger,
		state:      domain.PermissionUnknown,
	}
}

// CurrentState returns the cached state without touching the authorizer.
func (g *Gate) CurrentState() domain.PermissionState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// RequestAuthorization starts (or joins) a prompt and returns immediately. The
// returned channel receives exactly one result and is never closed early.
// The prompt itself is detached from ctx cancellation.
func (g *Gate) RequestAuthorization(ctx context.Context) <-chan domain.AuthorizationResult {
	out := make(chan domain.AuthorizationResult, 1)

	// Check and join under the lock so a prompt finishing concurrently cannot
	// make us start a second one.
	g.mu.Lock()
	if g.state.IsTerminal() {
		out <- domain.AuthorizationResult{State: g.state}
		g.mu.Unlock()
		return out
	}
	g.state = domain.PermissionRequested
	ch := g.group.DoChan(authorizationKey, func() (any, error) {
		return g.authorize(context.WithoutCancel(ctx))
	})
	g.mu.Unlock()

	go func() {
		res := <-ch
		if res.Err != nil {
			out <- domain.AuthorizationResult{State: domain.PermissionUnknown, Err: res.Err}
			return
		}
		out <- domain.AuthorizationResult{State: res.Val.(domain.PermissionState)}
	}()

	return out
}

// authorize runs once per outstanding prompt.
func (g *Gate) authorize(ctx context.Context) (domain.PermissionState, error) {
	state, err := g.authorizer.AuthorizationStatus(ctx)
	if err == nil && !state.IsTerminal() {
		g.logger.Info("prompting for notification authorization")
		state, err = g.authorizer.RequestAuthorization(ctx)
	}

	// The finished call leaves the group before the state is visible, so a
	// caller that sees the new state starts a fresh prompt instead of joining
	// this one.
	g.mu.Lock()
	defer g.mu.Unlock()
	defer g.group.Forget(authorizationKey)

	if err != nil {
		g.state = domain.PermissionUnknown
		g.logger.Error("notification authorization failed", "error", err)
		return domain.PermissionUnknown, fmt.Errorf("failed to request authorization: %w", err)
	}

	if !state.IsTerminal() {
		g.state = domain.PermissionUnknown
		return domain.PermissionUnknown, fmt.Errorf("failed to request authorization: authorizer returned %q", state)
	}

	g.state = state
	g.logger.Info("notification authorization resolved", "permission_state", state)
	return state, nil
}

// Refresh re-reads the host decision. It picks up authorization that was
// revoked or reset outside the application and never prompts.
func (g *Gate) Refresh(ctx context.Context) (domain.PermissionState, error) {
	state, err := g.authorizer.AuthorizationStatus(ctx)
	if err != nil {
		return g.CurrentState(), fmt.Errorf("failed to query authorization status: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// A prompt in flight owns the transition out of requested.
	if g.state == domain.PermissionRequested && !state.IsTerminal() {
		return g.state, nil
	}

	if state != g.state {
		g.logger.Info("notification authorization changed externally",
			"previous", g.state,
			"permission_state", state,
		)
		g.state = state
	}
	return g.state, nil
}
