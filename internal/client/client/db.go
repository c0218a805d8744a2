package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/toukan/toukan/internal/client/migrations"

	_ "modernc.org/sqlite"
)

// RunMigrations brings the local schema up to date.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrations.Up(ctx, db)
}

// InitDatabase opens the SQLite file at dsn as a single-writer handle and
// applies migrations.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
