// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. A gym's
// check-in desk is a single-server workload, and tests can use ":memory:".
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code, so no C compiler is needed.
//
// SCHEMA MIGRATIONS:
// The schema lives in migrations/*.sql, embedded into the binary with
// go:embed and applied by golang-migrate on every start. golang-migrate
// records the applied version in a schema_migrations table, so re-running
// is a no-op.
//
// TIMESTAMPS:
// Every time.Time is converted to UTC before it is written. The driver
// stores times as text, and range queries (check-ins "today") compare that
// text, which only orders correctly when every row shares one offset.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// BLANK IMPORT:
	// The sqlite package's init() registers itself with database/sql as a
	// driver named "sqlite". After this import, sql.Open("sqlite", ...) works.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sql.DB connection pool and implements the user, activity and
// check-in repositories from repository.go.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and migrates it to the latest schema.
//
// dbPath examples:
//   - "data/checkfit.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests)
//
// IN-MEMORY DATABASES AND THE POOL:
// Each connection to ":memory:" gets its own, separate, empty database.
// database/sql is a pool, so we pin it to a single connection for
// ":memory:"; otherwise a query could land on a connection that never saw
// the migrations.
func New(dbPath string) (*DB, error) {
	// busy_timeout makes a writer wait for a competing write lock instead of
	// failing immediately with SQLITE_BUSY.
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL (Write-Ahead Logging) mode allows concurrent reads while a write
	// is in progress. It is a property of the database file, so one
	// statement is enough. In-memory databases silently keep "memory" mode.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate applies every embedded migration that has not run yet.
//
// We hand golang-migrate our existing *sql.DB (WithInstance) instead of a
// URL so that ":memory:" databases are migrated on the same connection the
// repositories use. m.Close() is never called: the sqlite migrate driver's
// Close closes the *sql.DB it was given, which we still own.
func (db *DB) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db.conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}

// utc normalises a time before it is stored or used as a query bound.
func utc(t time.Time) time.Time {
	return t.UTC()
}
