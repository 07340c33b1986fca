package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/insider-one/local-notifications/internal/config"
	"github.com/insider-one/local-notifications/internal/domain"
)

// BotAPI is the part of tgbotapi.BotAPI the provider needs
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramProvider implements domain.DeliveryProvider by messaging a Telegram chat
type TelegramProvider struct {
	bot    BotAPI
	chatID int64
}

// NewTelegramProvider creates a new TelegramProvider
func NewTelegramProvider(bot BotAPI, chatID int64) *TelegramProvider {
	return &TelegramProvider{bot: bot, chatID: chatID}
}

// NewTelegramBot connects to the Bot API with the configured token
func NewTelegramBot(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, nil
}

func (p *TelegramProvider) Name() string {
	return config.ProviderTelegram
}

// Send posts the delivery to the configured chat. The Bot API call does not
// take a context, so a cancelled context is only checked up front.
func (p *TelegramProvider) Send(ctx context.Context, d *domain.Delivery) (*domain.DeliveryReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg := tgbotapi.NewMessage(p.chatID, formatDelivery(d))
	msg.DisableNotification = d.Sound == ""

	sent, err := p.bot.Send(msg)
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			retryable := apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
			return nil, domain.NewProviderError(apiErr.Code, apiErr.Message, retryable)
		}
		return nil, domain.NewProviderError(0, fmt.Sprintf("request failed: %v", err), true)
	}

	return &domain.DeliveryReceipt{
		MessageID: strconv.Itoa(sent.MessageID),
		Status:    "sent",
		Timestamp: time.Now().UTC(),
	}, nil
}

func formatDelivery(d *domain.Delivery) string {
	var b strings.Builder
	if d.Title != "" {
		b.WriteString(d.Title)
	}
	if d.Body != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(d.Body)
	}
	if len(d.Data) > 0 {
		keys := make([]string, 0, len(d.Data))
		for k := range d.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if b.Len() > 0 {
			b.WriteString("\n")
		}
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s: %s", k, d.Data[k])
		}
	}
	if b.Len() == 0 {
		b.WriteString("Notification " + d.NotificationID)
	}
	return b.String()
}
