package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationLowercaseUserEmails        = "2026-09-18_lowercase_user_emails"
	migrationBackfillExternalIdentities = "2026-09-30_backfill_workspace_external_identities"
)

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
		{name: migrationLowercaseUserEmails, apply: lowercaseUserEmails},
		{name: migrationBackfillExternalIdentities, apply: backfillExternalIdentities},
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
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// lowercaseUserEmails normalizes emails written before lookups became
// case-insensitive.
func lowercaseUserEmails(db *gorm.DB) error {
	return db.Exec("UPDATE users SET email = LOWER(TRIM(email)) WHERE email <> LOWER(TRIM(email))").Error
}

// backfillExternalIdentities gives every workspace lacking one its ws_<id>
// mapping.
func backfillExternalIdentities(db *gorm.DB) error {
	return db.Exec(`INSERT INTO workspace_external_identities (workspace_id, virtual_user_id, created_at)
SELECT w.id, 'ws_' || w.id, CURRENT_TIMESTAMP
FROM workspaces w
LEFT JOIN workspace_external_identities e ON e.workspace_id = w.id
WHERE e.workspace_id IS NULL`).Error
}
