package domain

import "context"

// PermissionState is the authorization the host granted for delivering notifications.
type PermissionState string

const (
	PermissionUnknown   PermissionState = "unknown"
	PermissionRequested PermissionState = "requested"
	PermissionGranted   PermissionState = "granted"
	PermissionDenied    PermissionState = "denied"
)

func (s PermissionState) IsValid() bool {
	switch s {
	case PermissionUnknown, PermissionRequested, PermissionGranted, PermissionDenied:
		return true
	}
	return false
}

// IsTerminal reports whether the state only changes through an external reset.
func (s PermissionState) IsTerminal() bool {
	return s == PermissionGranted || s == PermissionDenied
}

// AuthorizationResult is delivered once a permission request resolves.
type AuthorizationResult struct {
	State PermissionState `json:"state"`
	Err   error           `json:"-"`
}

// Authorizer is the host-side authority that owns notification consent.
type Authorizer interface {
	// AuthorizationStatus returns the host's current decision without prompting.
	// PermissionUnknown means the user was never asked (or the decision was reset).
	AuthorizationStatus(ctx context.Context) (PermissionState, error)

	// RequestAuthorization prompts the user and blocks until they answer.
	RequestAuthorization(ctx context.Context) (PermissionState, error)
}
