package repository

import (
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

// IssuedCodeModel is the persistence model for the issued_codes table.
type IssuedCodeModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	Code      string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_issued_codes_code"`
	Used      bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null"`
}

func (IssuedCodeModel) TableName() string {
	return "issued_codes"
}

// RunModel is the persistence model for acquisition_runs.
type RunModel struct {
	ID              string           `gorm:"type:uuid;primaryKey"`
	Status          domain.RunStatus `gorm:"type:varchar(20);not null"`
	CredentialCount int              `gorm:"not null;default:0"`
	BatchCount      int              `gorm:"not null;default:0"`
	AcquiredCount   int              `gorm:"not null;default:0"`
	FailedCount     int              `gorm:"not null;default:0"`
	Error           *string          `gorm:"type:text"`
	StartedAt       time.Time        `gorm:"type:timestamptz;not null"`
	FinishedAt      *time.Time       `gorm:"type:timestamptz"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (RunModel) TableName() string {
	return "acquisition_runs"
}

// ChannelModel is the persistence model for notification_channels.
type ChannelModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	WebhookURL string `gorm:"type:varchar(2048);not null;uniqueIndex:idx_notification_channels_webhook_url"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ChannelModel) TableName() string {
	return "notification_channels"
}

func issuedCodeModelToDomain(m *IssuedCodeModel) *domain.IssuedCode {
	if m == nil {
		return nil
	}

	return &domain.IssuedCode{
		ID:        m.ID,
		Code:      m.Code,
		Used:      m.Used,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func runModelFromDomain(r *domain.Run) *RunModel {
	if r == nil {
		return nil
	}

	return &RunModel{
		ID:              r.ID,
		Status:          r.Status,
		CredentialCount: r.CredentialCount,
		BatchCount:      r.BatchCount,
		AcquiredCount:   r.AcquiredCount,
		FailedCount:     r.FailedCount,
		Error:           r.Error,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func runModelToDomain(m *RunModel) *domain.Run {
	if m == nil {
		return nil
	}

	return &domain.Run{
		ID:              m.ID,
		Status:          m.Status,
		CredentialCount: m.CredentialCount,
		BatchCount:      m.BatchCount,
		AcquiredCount:   m.AcquiredCount,
		FailedCount:     m.FailedCount,
		Error:           m.Error,
		StartedAt:       m.StartedAt,
		FinishedAt:      m.FinishedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func channelModelFromDomain(c *domain.NotificationChannel) *ChannelModel {
	if c == nil {
		return nil
	}

	return &ChannelModel{
		ID:         c.ID,
		WebhookURL: c.WebhookURL,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func channelModelToDomain(m *ChannelModel) *domain.NotificationChannel {
	if m == nil {
		return nil
	}

	return &domain.NotificationChannel{
		ID:         m.ID,
		WebhookURL: m.WebhookURL,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
