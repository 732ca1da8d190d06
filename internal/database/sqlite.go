package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"imagepacks/internal/config"
)

const (
	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"

	busyTimeoutMS   = 5000
	connMaxLifetime = 5 * time.Minute
)

// OpenSQLite opens the database at cfg.Path. An in-memory database lives
// inside a single connection, so the pool is pinned to one connection and
// the connection is never recycled.
func OpenSQLite(ctx context.Context, cfg config.SQLiteConfig) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen < 1 || cfg.Path == MemoryPath {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	if cfg.Path == MemoryPath {
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetConnMaxLifetime(connMaxLifetime)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	if cfg.Path != MemoryPath {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL;")
	}
	for _, stmt := range pragmas {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", stmt, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}
