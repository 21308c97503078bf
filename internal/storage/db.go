// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DriverName is the database/sql driver registered by modernc.org/sqlite.
	DriverName = "sqlite"

	// MigrationsTable records the applied schema version.
	MigrationsTable = "schema_migrations"

	// timeLayout is how timestamps are stored in TEXT columns.
	timeLayout = time.RFC3339Nano
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// ERRORS
// =============================================================================

// Error represents a storage lookup failure.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target carries the same message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	// ErrChatNotFound is returned when a chat id has no chat_main row.
	ErrChatNotFound = &Error{Message: "chat not found"}

	// ErrPromptNotFound is returned when a prompt id has no prompt row.
	ErrPromptNotFound = &Error{Message: "prompt not found"}

	// ErrInvalidChatType is returned for a detail that is neither HUMAN nor AI.
	ErrInvalidChatType = &Error{Message: "invalid chat type"}
)

// =============================================================================
// DB
// =============================================================================

// DB is the chat history database.
type DB struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens (creating if needed) the SQLite database at path and applies
// pending migrations.
func Open(ctx context.Context, path string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and keeps the pragmas in effect.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrateUp(sqlDB, logger); err != nil {
		sqlDB.Close()
		return nil, err
	}

	logger.Debug("chat database ready", zap.String("path", path))
	return &DB{db: sqlDB, path: path, logger: logger}, nil
}

// New wraps an already-migrated connection.
func New(db *sql.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{db: db, logger: logger}
}

// migrateUp applies the embedded migrations. The migrate instance is not
// closed because the sqlite driver would close the shared *sql.DB with it.
func migrateUp(db *sql.DB, logger *zap.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	drv, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return fmt.Errorf("init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, DriverName, drv)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	if version, dirty, err := m.Version(); err == nil {
		logger.Debug("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return nil
}

// Path returns the database file path, empty for wrapped connections.
func (d *DB) Path() string {
	return d.path
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// affected maps a zero-row update or delete to notFound.
func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
