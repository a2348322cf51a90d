package repository

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const storeChunkSize = 100

// dispenseSQL selects and marks in one statement. SKIP LOCKED lets concurrent
// callers claim disjoint rows instead of blocking on each other.
const dispenseSQL = `UPDATE issued_codes
SET used = TRUE, updated_at = ?
WHERE used = FALSE AND id IN (
	SELECT id FROM issued_codes
	WHERE used = FALSE
	ORDER BY created_at ASC, id ASC
	LIMIT ?
	FOR UPDATE SKIP LOCKED
)
RETURNING id, code, used, created_at, updated_at`

type CodeRepository interface {
	Store(ctx context.Context, codes []string) error
	Dispense(ctx context.Context, n int) ([]domain.IssuedCode, error)
	CountUnused(ctx context.Context) (int64, error)
}

type GormCodeRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormCodeRepo(db *gorm.DB) *GormCodeRepo {
	return &GormCodeRepo{db: db, now: time.Now}
}

// Store upserts codes by value. A code that already exists only has its
// updated_at refreshed, so a re-store never flips used back to false.
func (r *GormCodeRepo) Store(ctx context.Context, codes []string) error {
	unique := uniqueCodes(codes)
	if len(unique) == 0 {
		return nil
	}

	now := r.now().UTC()
	models := make([]IssuedCodeModel, 0, len(unique))
	for _, code := range unique {
		models = append(models, IssuedCodeModel{
			ID:        uuid.NewString(),
			Code:      code,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).
		CreateInBatches(&models, storeChunkSize).Error
}

func (r *GormCodeRepo) Dispense(ctx context.Context, n int) ([]domain.IssuedCode, error) {
	if n <= 0 {
		return []domain.IssuedCode{}, nil
	}

	var models []IssuedCodeModel
	if err := r.db.WithContext(ctx).Raw(dispenseSQL, r.now().UTC(), n).Scan(&models).Error; err != nil {
		return nil, err
	}

	// RETURNING order is unspecified.
	slices.SortFunc(models, func(a, b IssuedCodeModel) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	codes := make([]domain.IssuedCode, 0, len(models))
	for i := range models {
		codes = append(codes, *issuedCodeModelToDomain(&models[i]))
	}
	return codes, nil
}

func (r *GormCodeRepo) CountUnused(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&IssuedCodeModel{}).
		Where("used = ?", false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// uniqueCodes normalizes and deduplicates codes keeping first-seen order. Postgres
// rejects an ON CONFLICT DO UPDATE statement that touches one key twice.
func uniqueCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	unique := make([]string, 0, len(codes))
	for _, raw := range codes {
		code, err := domain.NormalizeCode(raw)
		if err != nil {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		unique = append(unique, code)
	}
	return unique
}
