package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

//go:embed sql/pre_automigrate.sql
var preAutoMigrateSQL string

//go:embed sql/post_automigrate.sql
var postAutoMigrateSQL string

// migrationLockKey is the advisory lock that serializes schema migration
// between a running server and CLI commands started next to it.
const migrationLockKey int64 = 0x66656564736966 // "feedsif"

// autoMigrate creates the schema, the visibility enum, the feed tables, and
// their indexes in one transaction.
func (p *Pool) autoMigrate(ctx context.Context) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	return p.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrationLockKey).Error; err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		if err := executeMigrationSQL(tx, "pre-auto-migrate", preAutoMigrateSQL); err != nil {
			return err
		}
		if err := tx.AutoMigrate(autoMigrateModels()...); err != nil {
			return fmt.Errorf("gorm auto-migrate models: %w", err)
		}
		return executeMigrationSQL(tx, "post-auto-migrate", postAutoMigrateSQL)
	})
}

func executeMigrationSQL(tx *gorm.DB, label, sqlText string) error {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return nil
	}
	if err := tx.Exec(trimmed).Error; err != nil {
		return fmt.Errorf("execute %s SQL: %w", label, err)
	}
	return nil
}
