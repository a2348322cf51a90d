package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	maxErrorBodyLength    = 256
)

// Sender delivers a run summary to one webhook.
type Sender interface {
	Send(ctx context.Context, webhookURL string, summary RunSummary) error
}

// WebhookSender posts run summaries as JSON.
type WebhookSender struct {
	client *resty.Client
}

var _ Sender = (*WebhookSender)(nil)

func NewWebhookSender() *WebhookSender {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	sender, _ := NewWebhookSenderWithClient(client)
	return sender
}

func NewWebhookSenderWithClient(client *resty.Client) (*WebhookSender, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookSender{client: client}, nil
}

func (s *WebhookSender) Send(ctx context.Context, webhookURL string, summary RunSummary) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("webhook sender is not initialized")
	}
	endpoint, err := domain.ParseWebhookURL(webhookURL)
	if err != nil {
		return err
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(summary).
		Post(endpoint)
	if err != nil {
		return &DeliveryError{
			Message:   "webhook request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return &DeliveryError{
			Message:   "webhook returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return &DeliveryError{
		StatusCode: statusCode,
		Message:    deliveryErrorMessage(statusCode, strings.TrimSpace(response.String())),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func deliveryErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("webhook returned status %d", statusCode)
	if body == "" {
		return base
	}
	if len(body) > maxErrorBodyLength {
		body = body[:maxErrorBodyLength] + "..."
	}
	return fmt.Sprintf("%s: %s", base, body)
}
