package database

import (
	"errors"
	"time"

	"github.com/ngx-workshop/user-metadata-api/internal/usermeta"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillDescriptionSentinel = "2026-05-19_backfill_description_sentinel"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillDescriptionSentinel, apply: backfillDescriptionSentinel},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}

	return nil
}

// backfillDescriptionSentinel repairs rows imported before the description
// column carried its sentinel default.
func backfillDescriptionSentinel(db *gorm.DB) error {
	return db.Exec(
		"UPDATE user_metadata SET description = ? WHERE description IS NULL OR description = '';",
		usermeta.DefaultDescription,
	).Error
}
