package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// VisitorRepo records page visits and serves traffic aggregates.
type VisitorRepo struct{ Pool PgxPool }

// NewVisitorRepo constructs a VisitorRepo with the given pool.
func NewVisitorRepo(p PgxPool) *VisitorRepo { return &VisitorRepo{Pool: p} }

func (r *VisitorRepo) Insert(ctx domain.Context, v domain.Visitor) error {
	ctx, span := startSpan(ctx, "repo.visitors", "visitors.Insert", "INSERT", "blog_visitors")
	defer span.End()
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.VisitedAt.IsZero() {
		v.VisitedAt = time.Now().UTC()
	}
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO blog_visitors (id, ip_hash, path, post_id, user_agent, referrer, country, city, visited_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		v.ID, v.IPHash, v.Path, v.PostID, v.UserAgent, v.Referrer, v.Country, v.City, v.VisitedAt)
	if err != nil {
		return mapError("visitor.insert", err)
	}
	return nil
}

// IncrementViews bumps the per-post counters, creating the row on first view.
func (r *VisitorRepo) IncrementViews(ctx domain.Context, postID int64, unique bool, at time.Time) error {
	ctx, span := startSpan(ctx, "repo.visitors", "visitors.IncrementViews", "UPSERT", "blog_post_metrics")
	defer span.End()
	uniqueInc := 0
	if unique {
		uniqueInc = 1
	}
	_, err := r.Pool.Exec(ctx,
		`INSERT INTO blog_post_metrics (post_id, total_views, unique_visitors, last_viewed_at, updated_at)
		 VALUES ($1, 1, $2, $3, $3)
		 ON CONFLICT (post_id) DO UPDATE SET
		   total_views = blog_post_metrics.total_views + 1,
		   unique_visitors = blog_post_metrics.unique_visitors + EXCLUDED.unique_visitors,
		   last_viewed_at = EXCLUDED.last_viewed_at,
		   updated_at = EXCLUDED.updated_at`,
		postID, uniqueInc, at.UTC())
	if err != nil {
		return mapError("visitor.increment_views", err)
	}
	return nil
}

// SeenToday reports whether ipHash already viewed postID on day's UTC date.
func (r *VisitorRepo) SeenToday(ctx domain.Context, postID int64, ipHash string, day time.Time) (bool, error) {
	ctx, span := startSpan(ctx, "repo.visitors", "visitors.SeenToday", "SELECT", "blog_visitors")
	defer span.End()
	start := startOfDay(day)
	var seen bool
	err := r.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blog_visitors WHERE post_id=$1 AND ip_hash=$2 AND visited_at >= $3 AND visited_at < $4)`,
		postID, ipHash, start, start.Add(24*time.Hour)).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("op=visitor.seen_today: %w", err)
	}
	return seen, nil
}

func (r *VisitorRepo) Stats(ctx domain.Context, now time.Time) (domain.VisitorStats, error) {
	ctx, span := startSpan(ctx, "repo.visitors", "visitors.Stats", "SELECT", "blog_visitors")
	defer span.End()
	var s domain.VisitorStats
	err := r.Pool.QueryRow(ctx,
		`SELECT count(*), count(DISTINCT ip_hash), count(*) FILTER (WHERE visited_at >= $1) FROM blog_visitors`,
		startOfDay(now)).Scan(&s.Total, &s.Unique, &s.Today)
	if err != nil {
		return domain.VisitorStats{}, fmt.Errorf("op=visitor.stats: %w", err)
	}
	return s, nil
}

func (r *VisitorRepo) ByCountry(ctx domain.Context, limit int) ([]domain.CountryCount, error) {
	ctx, span := startSpan(ctx, "repo.visitors", "visitors.ByCountry", "SELECT", "blog_visitors")
	defer span.End()
	rows, err := r.Pool.Query(ctx,
		`SELECT COALESCE(NULLIF(country, ''), 'Unknown') AS c, count(*) AS n FROM blog_visitors GROUP BY c ORDER BY n DESC, c LIMIT $1`,
		clampLimit(limit, 10))
	if err != nil {
		return nil, fmt.Errorf("op=visitor.by_country: %w", err)
	}
	defer rows.Close()
	out := []domain.CountryCount{}
	for rows.Next() {
		var c domain.CountryCount
		if err := rows.Scan(&c.Country, &c.Count); err != nil {
			return nil, fmt.Errorf("op=visitor.by_country: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *VisitorRepo) TopPosts(ctx domain.Context, limit int) ([]domain.PostMetrics, error) {
	ctx, span := startSpan(ctx, "repo.visitors", "visitors.TopPosts", "SELECT", "blog_post_metrics")
	defer span.End()
	rows, err := r.Pool.Query(ctx,
		`SELECT m.post_id, p.title, p.slug, m.total_views, m.unique_visitors, m.last_viewed_at
		 FROM blog_post_metrics m JOIN blog_posts p ON p.id = m.post_id
		 ORDER BY m.total_views DESC, m.post_id LIMIT $1`,
		clampLimit(limit, 10))
	if err != nil {
		return nil, fmt.Errorf("op=visitor.top_posts: %w", err)
	}
	defer rows.Close()
	out := []domain.PostMetrics{}
	for rows.Next() {
		var m domain.PostMetrics
		if err := rows.Scan(&m.PostID, &m.Title, &m.Slug, &m.Views, &m.UniqueViews, &m.LastViewedAt); err != nil {
			return nil, fmt.Errorf("op=visitor.top_posts: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *VisitorRepo) DailyTrend(ctx domain.Context, since time.Time) ([]domain.DailyCount, error) {
	ctx, span := startSpan(ctx, "repo.visitors", "visitors.DailyTrend", "SELECT", "blog_visitors")
	defer span.End()
	rows, err := r.Pool.Query(ctx,
		`SELECT date_trunc('day', visited_at) AS d, count(*) FROM blog_visitors WHERE visited_at >= $1 GROUP BY d ORDER BY d`,
		startOfDay(since))
	if err != nil {
		return nil, fmt.Errorf("op=visitor.daily_trend: %w", err)
	}
	defer rows.Close()
	out := []domain.DailyCount{}
	for rows.Next() {
		var d domain.DailyCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, fmt.Errorf("op=visitor.daily_trend: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clampLimit(limit, def int) int {
	if limit <= 0 || limit > 100 {
		return def
	}
	return limit
}
