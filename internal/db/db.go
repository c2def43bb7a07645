// Package db provides PostgreSQL database access for Weekly Wrapped.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Ping verifies the connection is still alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Credentials returns a CredentialRepository.
func (db *DB) Credentials() *CredentialRepository {
	return &CredentialRepository{pool: db.pool}
}

// Plays returns a PlayEventRepository.
func (db *DB) Plays() *PlayEventRepository {
	return &PlayEventRepository{pool: db.pool}
}

// Reports returns a WeeklyReportRepository.
func (db *DB) Reports() *WeeklyReportRepository {
	return &WeeklyReportRepository{pool: db.pool}
}
