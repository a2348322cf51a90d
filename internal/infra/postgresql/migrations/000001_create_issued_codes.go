package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/issuance-engine/internal/repository"
	"gorm.io/gorm"
)

func createIssuedCodesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_issued_codes",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.IssuedCodeModel{}); err != nil {
				return err
			}
			// Dispense scans unused rows oldest-first.
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_issued_codes_unused_created ON issued_codes (created_at, id) WHERE used = FALSE`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.IssuedCodeModel{})
		},
	}
}
