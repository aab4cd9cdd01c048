package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/arkadianet/worldserver/internal/db/migrations"
)

// migrationTable namespaces the goose version table so the combat
// schema can share a database with other services.
const migrationTable = "worldserver_goose_version"

// Migrate brings the schema up to date from the embedded migration
// files, reusing the pool's connection config instead of opening a
// second DSN. Closing the database/sql handle does not close the pool.
func (d *DB) Migrate(ctx context.Context) error {
	sqlDB := stdlib.OpenDBFromPool(d.pool)
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	goose.SetTableName(migrationTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
