package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// CleanupService handles visitor data retention.
type CleanupService struct {
	Pool          PgxPool
	RetentionDays int
	now           func() time.Time
}

// NewCleanupService creates a new cleanup service
func NewCleanupService(pool PgxPool, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CleanupService{Pool: pool, RetentionDays: retentionDays, now: time.Now}
}

// CleanupOldData removes visits older than the retention period and rate
// limit mirrors that have not been touched for as long. It returns the
// number of visitor rows removed.
func (s *CleanupService) CleanupOldData(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.RetentionDays)

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("op=cleanup.begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	visits, err := tx.Exec(ctx, `DELETE FROM blog_visitors WHERE visited_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=cleanup.visitors: %w", err)
	}
	buckets, err := tx.Exec(ctx, `DELETE FROM rate_limit_buckets WHERE last_refill < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("op=cleanup.rate_limit_buckets: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("op=cleanup.commit: %w", err)
	}

	slog.Info("data cleanup completed",
		slog.Int64("deleted_visitors", visits.RowsAffected()),
		slog.Int64("deleted_rate_limit_buckets", buckets.RowsAffected()),
		slog.Time("cutoff", cutoff),
	)
	return visits.RowsAffected(), nil
}
