package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// NotificationChannel is a webhook endpoint that receives run summaries.
type NotificationChannel struct {
	ID         string
	WebhookURL string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func ParseWebhookURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: webhook url is required", ErrValidation)
	}
	parsed, err := url.ParseRequestURI(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: invalid webhook url: %v", ErrValidation, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: webhook url must be http or https", ErrValidation)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: webhook url host is required", ErrValidation)
	}
	return trimmed, nil
}
