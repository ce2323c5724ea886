package model

import (
	"fmt"

	"gorm.io/gorm"
)

// Extra indexes GORM tags cannot express. Both statements are valid on
// PostgreSQL and SQLite.
var customIndexes = []struct{ name, ddl string }{
	// Emails are unique regardless of case, tombstoned rows included.
	{"idx_users_email_lower", "CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email))"},
	// Public catalogue: live approved listings, newest first.
	{"idx_cars_public_feed", "CREATE INDEX IF NOT EXISTS idx_cars_public_feed ON cars (status, published_at DESC) WHERE deleted_at IS NULL"},
}

// AutoMigrate creates or updates the marketplace tables and their custom indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Permission{},
		&Role{},
		&User{},
		&AccessToken{},
		&Car{},
		&CarImage{},
	); err != nil {
		return err
	}

	for _, idx := range customIndexes {
		if err := db.Exec(idx.ddl).Error; err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
