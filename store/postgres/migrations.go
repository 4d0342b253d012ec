package postgres

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrations holds the goose SQL migrations of the tuition schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// VersionTable is the goose bookkeeping table, kept apart from the host's.
const VersionTable = "tuition_goose_db_version"

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// Migrate applies every pending migration.
func (s *Store) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	db := stdlib.OpenDBFromPool(s.pool)
	defer func() { _ = db.Close() }()

	goose.SetBaseFS(Migrations)
	goose.SetTableName(VersionTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("tuition/postgres: set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("tuition/postgres: migration failed: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("tuition/postgres: read schema version: %w", err)
	}
	s.logger.Info("tuition schema migrated", "version", version)
	return nil
}
