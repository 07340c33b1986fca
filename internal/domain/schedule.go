package domain

// RejectionReason explains why the manager refused to schedule a request.
type RejectionReason string

const (
	RejectionNone             RejectionReason = ""
	RejectionManagerDisabled  RejectionReason = "manager_disabled"
	RejectionPermissionDenied RejectionReason = "permission_denied"
)

// ScheduleResult reports the outcome of a schedule call. A rejection is a
// normal outcome, not an error.
type ScheduleResult struct {
	Accepted     bool                `json:"accepted"`
	Reason       RejectionReason     `json:"reason,omitempty"`
	Notification NotificationRequest `json:"notification"`
	Handle       EngineHandle        `json:"handle,omitempty"`
	Replaced     bool                `json:"replaced"`
}

// Err maps a rejection onto its sentinel error so callers can use errors.Is.
func (r ScheduleResult) Err() error {
	switch r.Reason {
	case RejectionManagerDisabled:
		return ErrManagerDisabled
	case RejectionPermissionDenied:
		return ErrPermissionDenied
	}
	return nil
}

// ManagerStatus is a point-in-time view of the manager.
type ManagerStatus struct {
	Enabled    bool            `json:"enabled"`
	Permission PermissionState `json:"permission"`
	Pending    int             `json:"pending"`
}
