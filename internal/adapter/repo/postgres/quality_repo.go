package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// QualityRepo stores quality check results of generated posts.
type QualityRepo struct{ Pool PgxPool }

// NewQualityRepo constructs a QualityRepo with the given pool.
func NewQualityRepo(p PgxPool) *QualityRepo { return &QualityRepo{Pool: p} }

func (r *QualityRepo) Create(ctx domain.Context, q domain.QualityCheck) (int64, error) {
	ctx, span := startSpan(ctx, "repo.quality", "quality.Create", "INSERT", "blog_quality_checks")
	defer span.End()
	suggestions := q.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	raw, err := json.Marshal(suggestions)
	if err != nil {
		return 0, fmt.Errorf("op=quality.create: %w", err)
	}
	checkedAt := q.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now().UTC()
	}
	var id int64
	err = r.Pool.QueryRow(ctx,
		`INSERT INTO blog_quality_checks (post_id, readability_score, keyword_density_score, is_high_quality, suggestions, checked_at)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		q.PostID, q.ReadabilityScore, q.KeywordDensityScore, q.IsHighQuality, string(raw), checkedAt,
	).Scan(&id)
	if err != nil {
		return 0, mapError("quality.create", err)
	}
	return id, nil
}

func (r *QualityRepo) LatestForPost(ctx domain.Context, postID int64) (domain.QualityCheck, error) {
	ctx, span := startSpan(ctx, "repo.quality", "quality.LatestForPost", "SELECT", "blog_quality_checks")
	defer span.End()
	var q domain.QualityCheck
	var raw string
	err := r.Pool.QueryRow(ctx,
		`SELECT id, post_id, readability_score, keyword_density_score, is_high_quality, suggestions::text, checked_at
		 FROM blog_quality_checks WHERE post_id=$1 ORDER BY checked_at DESC, id DESC LIMIT 1`, postID,
	).Scan(&q.ID, &q.PostID, &q.ReadabilityScore, &q.KeywordDensityScore, &q.IsHighQuality, &raw, &q.CheckedAt)
	if err != nil {
		return domain.QualityCheck{}, mapError("quality.latest", err)
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &q.Suggestions); err != nil {
			return domain.QualityCheck{}, fmt.Errorf("op=quality.latest: suggestions: %w", err)
		}
	}
	return q, nil
}
