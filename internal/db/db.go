// Package db persists detection runs and their reports in SQLite.
package db

import (
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/astana-data/hotspot.report/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the database at path, applies the
// connection pragmas, and runs pending migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{sqlDB}
	if err := db.applyPragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	db.logSchemaVersion()
	return db, nil
}

// applyPragmas sets the pragmas every connection relies on. WAL keeps
// readers unblocked while a run is being saved.
func (db *DB) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return nil
}

// logSchemaVersion reports the migration state at startup.
func (db *DB) logSchemaVersion() {
	version, dirty, err := db.MigrateVersion()
	if err != nil {
		monitoring.Logf("db: could not read schema version: %v", err)
		return
	}
	monitoring.Logf("db: schema version %d (dirty=%v)", version, dirty)
}
