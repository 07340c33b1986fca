// Package provider contains the delivery providers fired notifications are
// handed to.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/insider-one/local-notifications/internal/config"
	"github.com/insider-one/local-notifications/internal/domain"
)

// WebhookProvider implements domain.DeliveryProvider by posting deliveries as JSON
type WebhookProvider struct {
	client  *http.Client
	baseURL string
}

// NewWebhookProvider creates a new WebhookProvider
func NewWebhookProvider(cfg config.WebhookConfig) *WebhookProvider {
	return &WebhookProvider{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.URL,
	}
}

func (p *WebhookProvider) Name() string {
	return config.ProviderWebhook
}

// Send posts a delivery to the webhook
func (p *WebhookProvider) Send(ctx context.Context, d *domain.Delivery) (*domain.DeliveryReceipt, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal delivery: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, domain.NewProviderError(0, fmt.Sprintf("request failed: %v", err), true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, domain.NewProviderError(resp.StatusCode, string(respBody), retryable)
	}

	var receipt domain.DeliveryReceipt
	if err := json.Unmarshal(respBody, &receipt); err != nil || receipt.MessageID == "" {
		// the webhook does not have to answer with a receipt
		receipt = domain.DeliveryReceipt{
			MessageID: fmt.Sprintf("msg-%d", time.Now().UnixNano()),
			Status:    "accepted",
			Timestamp: time.Now().UTC(),
		}
	}

	return &receipt, nil
}
