package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/insider-one/local-notifications/internal/config"
	"github.com/insider-one/local-notifications/internal/domain"
)

// LogProvider presents deliveries by logging them
type LogProvider struct {
	logger *slog.Logger
}

func NewLogProvider(logger *slog.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Name() string {
	return config.ProviderLog
}

func (p *LogProvider) Send(ctx context.Context, d *domain.Delivery) (*domain.DeliveryReceipt, error) {
	receipt := &domain.DeliveryReceipt{
		MessageID: uuid.New().String(),
		Status:    "logged",
		Timestamp: time.Now().UTC(),
	}

	p.logger.InfoContext(ctx, "notification fired",
		"notification_id", d.NotificationID,
		"title", d.Title,
		"body", d.Body,
		"fired_at", d.FiredAt.Format(time.RFC3339),
		"message_id", receipt.MessageID,
	)

	return receipt, nil
}
