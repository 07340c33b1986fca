package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insider-one/local-notifications/internal/config"
)

// Pool is the subset of *pgxpool.Pool the store needs
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// DB holds the connection pool backing the notification store
type DB struct {
	Pool Pool
}

// New connects to the notifications database. Sessions run in UTC so fire
// times read back exactly as they were written.
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxLifetime / 2
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "local-notifications"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	db := NewFromPool(pool)
	if err := db.Health(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return db, nil
}

// NewFromPool wraps an existing pool
func NewFromPool(pool Pool) *DB {
	return &DB{Pool: pool}
}

// Close closes the connection pool
func (db *DB) Close() {
	db.Pool.Close()
}

// Health pings the database and checks the notifications table exists.
func (db *DB) Health(ctx context.Context) error {
	if err := db.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	var migrated bool
	if err := db.Pool.QueryRow(ctx, schemaCheckQuery, tableName).Scan(&migrated); err != nil {
		return fmt.Errorf("failed to check schema: %w", err)
	}
	if !migrated {
		return fmt.Errorf("table %s does not exist, run migrations first", tableName)
	}
	return nil
}

const schemaCheckQuery = "SELECT to_regclass($1) IS NOT NULL"
