// Package postgres provides the PostgreSQL-backed persistence adapters: a
// JSONB document store per collection and the credit-event ledger.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewDB creates a new database connection pool from a connection string.
func NewDB(connectionString string, pool PoolConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return &DB{DB: db, logger: logger}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}
	return nil
}

// InitSchema initializes the tables the adapters write to.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- One row per document; each collection gets its own logical space.
		CREATE TABLE IF NOT EXISTS documents (
			collection VARCHAR(100) NOT NULL,
			id VARCHAR(100) NOT NULL,
			doc JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS idx_documents_tenant
			ON documents (collection, (doc->>'tenantId'));

		-- Credit ledger events, append-only.
		CREATE TABLE IF NOT EXISTS credit_events (
			id UUID PRIMARY KEY,
			action_name VARCHAR(255) NOT NULL,
			owner_id VARCHAR(100) NOT NULL,
			owner_type VARCHAR(100),
			credit BIGINT NOT NULL,
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_credit_events_owner
			ON credit_events (owner_id, timestamp DESC);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	db.logger.Info("database schema initialized")
	return nil
}
