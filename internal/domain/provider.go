package domain

import (
	"context"
	"time"
)

// Delivery outcomes reported to a DeliveryRecorder
const (
	DeliveryDelivered = "delivered"
	DeliveryRetried   = "retried"
	DeliveryFailed    = "failed"
)

// Delivery is what a provider receives when a notification fires
type Delivery struct {
	NotificationID string            `json:"notification_id"`
	Title          string            `json:"title,omitempty"`
	Body           string            `json:"body,omitempty"`
	Sound          string            `json:"sound,omitempty"`
	Badge          *int              `json:"badge,omitempty"`
	Data           map[string]string `json:"data,omitempty"`
	FiredAt        time.Time         `json:"fired_at"`
}

func NewDelivery(req NotificationRequest, firedAt time.Time) *Delivery {
	c := req.Clone()
	return &Delivery{
		NotificationID: c.ID,
		Title:          c.Payload.Title,
		Body:           c.Payload.Body,
		Sound:          c.Payload.Sound,
		Badge:          c.Payload.Badge,
		Data:           c.Payload.Data,
		FiredAt:        firedAt.UTC(),
	}
}

// DeliveryReceipt represents a response from the delivery provider
type DeliveryReceipt struct {
	MessageID string    `json:"messageId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// DeliveryProvider defines the interface for presenting fired notifications
type DeliveryProvider interface {
	// Name identifies the provider in logs, metrics and rate limit keys
	Name() string

	// Send hands a fired notification to the provider
	Send(ctx context.Context, d *Delivery) (*DeliveryReceipt, error)
}

// DeliveryRecorder receives the outcome of every delivery attempt
type DeliveryRecorder interface {
	RecordDelivery(provider, status string, duration time.Duration)
}
