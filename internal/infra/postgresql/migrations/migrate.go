package migrations

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func all() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		createIssuedCodesTable(),
		createAcquisitionRunsTable(),
		createNotificationChannelsTable(),
	}
}

func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("migrate: nil database")
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, all())
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
