package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/repository"
	"go.uber.org/zap"
)

// ChannelService manages the webhooks that receive run summaries.
type ChannelService struct {
	channels repository.ChannelRepository
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

func NewChannelService(channels repository.ChannelRepository, logger *zap.Logger) (*ChannelService, error) {
	if channels == nil {
		return nil, fmt.Errorf("channel repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ChannelService{
		channels: channels,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// Add registers webhookURL. Registering the same URL twice is a conflict.
func (s *ChannelService) Add(ctx context.Context, webhookURL string) (*domain.NotificationChannel, error) {
	normalized, err := domain.ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	channel := &domain.NotificationChannel{
		ID:         s.newID(),
		WebhookURL: normalized,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.channels.Create(ctx, channel); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: webhook already registered", domain.ErrConflict)
		}
		return nil, persistenceError("create channel", err)
	}

	s.logger.Info("notification channel added", zap.String("channelId", channel.ID))
	return channel, nil
}

func (s *ChannelService) Remove(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	if err := s.channels.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return persistenceError("delete channel", err)
	}

	s.logger.Info("notification channel removed", zap.String("channelId", id))
	return nil
}

func (s *ChannelService) List(ctx context.Context) ([]domain.NotificationChannel, error) {
	channels, err := s.channels.List(ctx)
	if err != nil {
		return nil, persistenceError("list channels", err)
	}
	return channels, nil
}
