package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations contains all database migrations in order.
// Each migration has a version key and SQL to execute.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_users",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id            UUID         PRIMARY KEY,
				name          VARCHAR(100) NOT NULL,
				email         VARCHAR(255) NOT NULL UNIQUE,
				role          VARCHAR(16)  NOT NULL DEFAULT 'user',
				is_active     BOOLEAN      NOT NULL DEFAULT TRUE,
				storage_used  BIGINT       NOT NULL DEFAULT 0 CHECK (storage_used >= 0),
				max_storage   BIGINT       NOT NULL CHECK (max_storage > 0),
				created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				updated_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
		`,
	},
	{
		Version: "000002_create_files",
		SQL: `
			CREATE TABLE IF NOT EXISTS files (
				id                 UUID         PRIMARY KEY,
				share_id           UUID         NOT NULL UNIQUE,
				original_name      VARCHAR(255) NOT NULL,
				filename           VARCHAR(255) NOT NULL,
				mimetype           VARCHAR(255) NOT NULL,
				size               BIGINT       NOT NULL CHECK (size >= 0),
				owner_id           UUID         NOT NULL REFERENCES users(id),
				folder_id          UUID,
				is_public          BOOLEAN      NOT NULL DEFAULT FALSE,
				password_hash      TEXT,
				expires_at         TIMESTAMPTZ,
				download_count     INTEGER      NOT NULL DEFAULT 0,
				view_count         INTEGER      NOT NULL DEFAULT 0,
				last_downloaded_at TIMESTAMPTZ,
				description        VARCHAR(500) NOT NULL DEFAULT '',
				tags               TEXT[]       NOT NULL DEFAULT '{}',
				is_active          BOOLEAN      NOT NULL DEFAULT TRUE,
				deleted_at         TIMESTAMPTZ,
				deleted_by         UUID,
				quota_reclaimed    BOOLEAN      NOT NULL DEFAULT FALSE,
				created_at         TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				updated_at         TIMESTAMPTZ  NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_files_owner_created ON files(owner_id, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_files_owner_folder ON files(owner_id, folder_id);
			CREATE INDEX IF NOT EXISTS idx_files_expires_at ON files(expires_at);
			CREATE INDEX IF NOT EXISTS idx_files_is_active ON files(is_active);
		`,
	},
}

// DB wraps a pgxpool connection pool and provides health checks and migrations.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("connected to database")
	return &DB{Pool: pool}, nil
}

// RunMigrations applies all pending database migrations in order.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", m.Version, err)
		}
		if exists {
			continue
		}

		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}

		slog.Info("applied migration", "version", m.Version)
	}

	return nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
