package domain

import "time"

type EventType string

const (
	EventPermissionPrompt      EventType = "permission_prompt"
	EventPermissionChanged     EventType = "permission_changed"
	EventNotificationScheduled EventType = "notification_scheduled"
	EventNotificationCancelled EventType = "notification_cancelled"
	EventNotificationsCleared  EventType = "notifications_cleared"
	EventNotificationFired     EventType = "notification_fired"
)

// Event is published to subscribers whenever manager state changes.
type Event struct {
	Type         EventType            `json:"type"`
	Notification *NotificationRequest `json:"notification,omitempty"`
	Permission   PermissionState      `json:"permission,omitempty"`
	Cleared      int                  `json:"cleared,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

func NewEvent(t EventType) Event {
	return Event{Type: t, Timestamp: time.Now().UTC()}
}

// EventPublisher receives manager events. Implementations must not block.
type EventPublisher func(Event)
