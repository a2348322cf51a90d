package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"gorm.io/gorm"
)

const (
	defaultRunListLimit = 20
	maxRunListLimit     = 100
)

type RunRepository interface {
	Create(ctx context.Context, run *domain.Run) error
	Finish(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Run, error)
}

type GormRunRepo struct {
	db *gorm.DB
}

func NewGormRunRepo(db *gorm.DB) *GormRunRepo {
	return &GormRunRepo{db: db}
}

func (r *GormRunRepo) Create(ctx context.Context, run *domain.Run) error {
	model := runModelFromDomain(run)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if run != nil {
		*run = *runModelToDomain(model)
	}
	return nil
}

// Finish writes the terminal status and counts of a run that is still PROCESSING.
func (r *GormRunRepo) Finish(ctx context.Context, run *domain.Run) error {
	if run == nil {
		return domain.ErrNotFound
	}

	result := r.db.WithContext(ctx).
		Model(&RunModel{}).
		Where("id = ? AND status = ?", run.ID, domain.RunStatusProcessing).
		Updates(map[string]any{
			"status":           run.Status,
			"credential_count": run.CredentialCount,
			"batch_count":      run.BatchCount,
			"acquired_count":   run.AcquiredCount,
			"failed_count":     run.FailedCount,
			"error":            run.Error,
			"finished_at":      run.FinishedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormRunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	var model RunModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return runModelToDomain(&model), nil
}

func (r *GormRunRepo) ListRecent(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit < 1 {
		limit = defaultRunListLimit
	}
	limit = min(limit, maxRunListLimit)

	var models []RunModel
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	runs := make([]domain.Run, 0, len(models))
	for i := range models {
		runs = append(runs, *runModelToDomain(&models[i]))
	}
	return runs, nil
}
