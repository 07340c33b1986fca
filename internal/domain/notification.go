package domain

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MinRepeatInterval is the shortest period a repeating notification may use.
	MinRepeatInterval = time.Minute

	maxIdentifierLength = 255
	maxTitleLength      = 256
	maxBodyLength       = 4096
)

// FireTime is either an absolute instant or a delay relative to when the
// engine receives the request.
type FireTime struct {
	At    *time.Time    `json:"at,omitempty"`
	Delay time.Duration `json:"delay,omitempty"`
}

func FireAt(t time.Time) FireTime {
	at := t.UTC()
	return FireTime{At: &at}
}

func FireAfter(d time.Duration) FireTime {
	return FireTime{Delay: d}
}

// Resolve returns the absolute instant the notification should fire at, given
// the moment it was handed to the engine.
func (f FireTime) Resolve(now time.Time) time.Time {
	if f.At != nil {
		return *f.At
	}
	return now.Add(f.Delay).UTC()
}

// Payload is the content shown to the user. The manager never inspects it.
type Payload struct {
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body,omitempty"`
	Sound string            `json:"sound,omitempty"`
	Badge *int              `json:"badge,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// NotificationRequest describes a single local notification. Values are
// immutable once created: pass them by value and use Clone when handing them
// to something that outlives the call.
type NotificationRequest struct {
	ID             string        `json:"id"`
	Fire           FireTime      `json:"fire"`
	RepeatInterval time.Duration `json:"repeat_interval,omitempty"`
	Payload        Payload       `json:"payload"`
	CreatedAt      time.Time     `json:"created_at"`
}

// NewNotificationRequest builds a request, generating an identifier when id is empty.
func NewNotificationRequest(id string, fire FireTime, payload Payload) NotificationRequest {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.New().String()
	}

	req := NotificationRequest{
		ID:        id,
		Fire:      fire,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	return req.Clone()
}

// WithRepeat returns a copy of the request that repeats every interval.
func (r NotificationRequest) WithRepeat(interval time.Duration) NotificationRequest {
	c := r.Clone()
	c.RepeatInterval = interval
	return c
}

func (r NotificationRequest) Repeats() bool {
	return r.RepeatInterval > 0
}

// Clone returns a deep copy so no pointer or map is shared with the receiver.
func (r NotificationRequest) Clone() NotificationRequest {
	c := r
	if r.Fire.At != nil {
		at := *r.Fire.At
		c.Fire.At = &at
	}
	if r.Payload.Badge != nil {
		badge := *r.Payload.Badge
		c.Payload.Badge = &badge
	}
	if r.Payload.Data != nil {
		c.Payload.Data = maps.Clone(r.Payload.Data)
	}
	return c
}

// Validate checks the structural rules of a request. Fire times in the past
// are valid: the engine decides what to do with them.
func (r NotificationRequest) Validate() error {
	var errs []ValidationError

	if strings.TrimSpace(r.ID) == "" {
		errs = append(errs, NewValidationError("id", "identifier is required"))
	} else if len(r.ID) > maxIdentifierLength {
		errs = append(errs, NewValidationError("id", "identifier exceeds 255 characters"))
	}

	if r.Fire.At == nil && r.Fire.Delay < 0 {
		errs = append(errs, NewValidationError("fire.delay", "delay must not be negative"))
	}

	if r.RepeatInterval < 0 {
		errs = append(errs, NewValidationError("repeat_interval", "repeat interval must not be negative"))
	} else if r.RepeatInterval > 0 && r.RepeatInterval < MinRepeatInterval {
		errs = append(errs, NewValidationError("repeat_interval", "repeat interval must be at least 1m"))
	}

	if len(r.Payload.Title) > maxTitleLength {
		errs = append(errs, NewValidationError("payload.title", "title exceeds 256 characters"))
	}
	if len(r.Payload.Body) > maxBodyLength {
		errs = append(errs, NewValidationError("payload.body", "body exceeds 4096 characters"))
	}
	if r.Payload.Badge != nil && *r.Payload.Badge < 0 {
		errs = append(errs, NewValidationError("payload.badge", "badge must not be negative"))
	}

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return ValidationErrors{Errors: errs}
}

// NextFire returns the first occurrence of a repeating request strictly after
// now, counting from last. It returns false for one-shot requests.
func (r NotificationRequest) NextFire(last, now time.Time) (time.Time, bool) {
	if !r.Repeats() {
		return time.Time{}, false
	}
	next := last.Add(r.RepeatInterval)
	if !next.After(now) {
		missed := now.Sub(last) / r.RepeatInterval
		next = last.Add((missed + 1) * r.RepeatInterval)
	}
	return next.UTC(), true
}
