package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS blog_categories (
		id          BIGSERIAL PRIMARY KEY,
		name        VARCHAR(100) NOT NULL UNIQUE,
		slug        VARCHAR(100) NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS blog_posts (
		id           BIGSERIAL PRIMARY KEY,
		title        TEXT NOT NULL,
		slug         VARCHAR(255) NOT NULL UNIQUE,
		excerpt      TEXT NOT NULL DEFAULT '',
		content      TEXT NOT NULL,
		image_url    TEXT NOT NULL DEFAULT '',
		image_hint   TEXT NOT NULL DEFAULT '',
		category_id  BIGINT REFERENCES blog_categories(id) ON DELETE SET NULL,
		published_at TIMESTAMPTZ,
		read_time    INTEGER NOT NULL DEFAULT 5,
		is_featured  BOOLEAN NOT NULL DEFAULT false,
		topic        TEXT NOT NULL DEFAULT '',
		status       VARCHAR(20) NOT NULL DEFAULT 'draft',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_blog_posts_status_published ON blog_posts (status, published_at DESC)`,
	`CREATE TABLE IF NOT EXISTS blog_quality_checks (
		id                    BIGSERIAL PRIMARY KEY,
		post_id               BIGINT NOT NULL REFERENCES blog_posts(id) ON DELETE CASCADE,
		readability_score     INTEGER NOT NULL,
		keyword_density_score INTEGER NOT NULL,
		is_high_quality       BOOLEAN NOT NULL,
		suggestions           JSONB NOT NULL DEFAULT '[]',
		checked_at            TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS blog_visitors (
		id         TEXT PRIMARY KEY,
		ip_hash    VARCHAR(64) NOT NULL,
		path       TEXT NOT NULL,
		post_id    BIGINT REFERENCES blog_posts(id) ON DELETE SET NULL,
		user_agent TEXT NOT NULL DEFAULT '',
		referrer   TEXT NOT NULL DEFAULT '',
		country    VARCHAR(100) NOT NULL DEFAULT '',
		city       VARCHAR(100) NOT NULL DEFAULT '',
		visited_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_blog_visitors_visited_at ON blog_visitors (visited_at)`,
	`CREATE INDEX IF NOT EXISTS idx_blog_visitors_post_ip ON blog_visitors (post_id, ip_hash, visited_at)`,
	`CREATE TABLE IF NOT EXISTS blog_post_metrics (
		post_id         BIGINT PRIMARY KEY REFERENCES blog_posts(id) ON DELETE CASCADE,
		total_views     BIGINT NOT NULL DEFAULT 0,
		unique_visitors BIGINT NOT NULL DEFAULT 0,
		last_viewed_at  TIMESTAMPTZ,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS blog_api_keys (
		id             BIGSERIAL PRIMARY KEY,
		key_name       VARCHAR(50) NOT NULL UNIQUE,
		key_value      TEXT NOT NULL,
		usage_count    BIGINT NOT NULL DEFAULT 0 CHECK (usage_count >= 0),
		quota_exceeded BOOLEAN NOT NULL DEFAULT false,
		last_used_at   TIMESTAMPTZ,
		reset_at       TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS blog_job_runs (
		name          VARCHAR(64) PRIMARY KEY,
		last_run_at   TIMESTAMPTZ NOT NULL,
		last_status   VARCHAR(20) NOT NULL,
		last_error    TEXT NOT NULL DEFAULT '',
		last_duration_ms BIGINT NOT NULL DEFAULT 0,
		run_count     BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS rate_limit_buckets (
		bucket_key  TEXT PRIMARY KEY,
		capacity    BIGINT NOT NULL,
		refill_rate DOUBLE PRECISION NOT NULL,
		tokens      DOUBLE PRECISION NOT NULL,
		last_refill TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates the tables the service needs when they are missing.
// Every statement is idempotent.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("op=postgres.EnsureSchema: statement %d: %w", i, err)
		}
	}
	slog.Info("database schema ensured", slog.Int("statements", len(schemaStatements)))
	return nil
}
