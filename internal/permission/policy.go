package permission

import (
	"context"
	"sync"
	"time"

	"github.com/insider-one/local-notifications/internal/domain"
)

// PolicyAuthorizer answers prompts with a fixed decision, optionally after a
// delay that stands in for the user reading the dialog.
type PolicyAuthorizer struct {
	decision domain.PermissionState
	delay    time.Duration

	mu       sync.Mutex
	decided  domain.PermissionState
	prompted int
}

// NewPolicyAuthorizer creates an authorizer that always grants or always denies
func NewPolicyAuthorizer(grant bool, delay time.Duration) *PolicyAuthorizer {
	decision := domain.PermissionDenied
	if grant {
		decision = domain.PermissionGranted
	}
	return &PolicyAuthorizer{
		decision: decision,
		delay:    delay,
		decided:  domain.PermissionUnknown,
	}
}

func (a *PolicyAuthorizer) AuthorizationStatus(ctx context.Context) (domain.PermissionState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.decided, nil
}

func (a *PolicyAuthorizer) RequestAuthorization(ctx context.Context) (domain.PermissionState, error) {
	a.mu.Lock()
	a.prompted++
	a.mu.Unlock()

	if a.delay > 0 {
		select {
		case <-ctx.Done():
			return domain.PermissionUnknown, ctx.Err()
		case <-time.After(a.delay):
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.decided = a.decision
	return a.decided, nil
}

// Reset forgets the decision, as if the user cleared it in system settings.
func (a *PolicyAuthorizer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decided = domain.PermissionUnknown
}

// Prompts returns how many times the user was asked.
func (a *PolicyAuthorizer) Prompts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prompted
}
