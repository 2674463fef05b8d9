// Package dbsql opens the squawk relational store: a single SQLite
// database in WAL journal mode, migrated with goose, accessed through
// sqlx. Every component package takes a *sqlx.DB at construction time
// rather than reaching for a process-wide singleton.
package dbsql

import (
	"context"
	"embed"
	"fmt"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var memoryDBCounter int64

// Open opens (creating if necessary) the SQLite database at path, sets
// WAL journal mode plus a busy timeout so concurrent single-writer
// transactions (eventstore's per-stream append, lockmgr's acquire) block
// briefly instead of failing with SQLITE_BUSY, and runs pending goose
// migrations.
//
// path may be ":memory:" for tests; WAL mode is skipped in that case
// since SQLite requires a real file for WAL. Each call with
// path == ":memory:" gets its own isolated named in-memory database, so
// concurrent tests never share state through SQLite's shared-cache mode.
func Open(path string) (*sqlx.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", path)
	} else {
		name := atomic.AddInt64(&memoryDBCounter, 1)
		dsn = fmt.Sprintf("file:squawk_mem_%d?mode=memory&cache=shared&_foreign_keys=on&_txlock=immediate", name)
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// WAL requires a single physical connection pool member writing at a
	// time to avoid SQLITE_BUSY storms under the driver's own connection
	// pooling; readers still proceed concurrently under WAL semantics.
	db.SetMaxOpenConns(1)

	if err := MigrateDB(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// MigrateDB applies pending migrations against an already-open *sqlx.DB.
// Exposed separately from Open so tests that build their own in-memory
// connection can still run migrations.
func MigrateDB(ctx context.Context, db *sqlx.DB) error {
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
