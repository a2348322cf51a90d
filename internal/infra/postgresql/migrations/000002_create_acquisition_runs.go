package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/issuance-engine/internal/repository"
	"gorm.io/gorm"
)

func createAcquisitionRunsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_acquisition_runs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.RunModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_acquisition_runs_started_at ON acquisition_runs (started_at DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.RunModel{})
		},
	}
}
