package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"gorm.io/gorm"
)

type ChannelRepository interface {
	Create(ctx context.Context, channel *domain.NotificationChannel) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.NotificationChannel, error)
}

type GormChannelRepo struct {
	db *gorm.DB
}

func NewGormChannelRepo(db *gorm.DB) *GormChannelRepo {
	return &GormChannelRepo{db: db}
}

// Create fails with domain.ErrConflict when the webhook is already registered.
// It relies on gorm.Config.TranslateError being enabled.
func (r *GormChannelRepo) Create(ctx context.Context, channel *domain.NotificationChannel) error {
	model := channelModelFromDomain(channel)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	if channel != nil {
		*channel = *channelModelToDomain(model)
	}
	return nil
}

func (r *GormChannelRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&ChannelModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormChannelRepo) List(ctx context.Context) ([]domain.NotificationChannel, error) {
	var models []ChannelModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	channels := make([]domain.NotificationChannel, 0, len(models))
	for i := range models {
		channels = append(channels, *channelModelToDomain(&models[i]))
	}
	return channels, nil
}
