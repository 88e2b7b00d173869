package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

var postCols = []string{"id", "title", "slug", "content", "excerpt", "category_id", "status", "read_time", "topic", "image_url", "image_hint", "is_featured", "published_at", "created_at", "updated_at"}

func TestPostRepo_Create(t *testing.T) {
	m := newMock(t)
	cat := int64(3)
	m.ExpectQuery("INSERT INTO blog_posts").
		WithArgs("Title", "title-abcde", "body", "excerpt", &cat, "draft", 2, "topic", "", "", false, (*time.Time)(nil), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

	id, err := postgres.NewPostRepo(m).Create(context.Background(), domain.Post{
		Title: "Title", Slug: "title-abcde", Content: "body", Excerpt: "excerpt",
		CategoryID: &cat, ReadTime: 2, Topic: "topic",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestPostRepo_Create_SlugConflict(t *testing.T) {
	m := newMock(t)
	m.ExpectQuery("INSERT INTO blog_posts").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "blog_posts_slug_key"})

	_, err := postgres.NewPostRepo(m).Create(context.Background(), domain.Post{Title: "t", Slug: "t"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestPostRepo_GetBySlug(t *testing.T) {
	now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		m := newMock(t)
		m.ExpectQuery("SELECT id, title, slug").
			WithArgs("hello-world").
			WillReturnRows(pgxmock.NewRows(postCols).
				AddRow(int64(1), "Hello", "hello-world", "content", "ex", nil, "published", 3, "", "", "", true, &now, now, now))
		p, err := postgres.NewPostRepo(m).GetBySlug(context.Background(), "hello-world")
		require.NoError(t, err)
		assert.Equal(t, domain.PostPublished, p.Status)
		assert.True(t, p.IsFeatured)
		assert.Nil(t, p.CategoryID)
		require.NotNil(t, p.PublishedAt)
		require.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		m := newMock(t)
		m.ExpectQuery("SELECT id, title, slug").WithArgs("nope").WillReturnError(pgx.ErrNoRows)
		_, err := postgres.NewPostRepo(m).GetBySlug(context.Background(), "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPostRepo_List_Filters(t *testing.T) {
	m := newMock(t)
	now := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	cat := int64(4)
	m.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM blog_posts WHERE status=$1 AND category_id=$2`)).
		WithArgs("published", int64(4)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(21)))
	m.ExpectQuery(regexp.QuoteMeta(`WHERE status=$1 AND category_id=$2 ORDER BY COALESCE(published_at, created_at) DESC, id DESC LIMIT $3 OFFSET $4`)).
		WithArgs("published", int64(4), 10, 20).
		WillReturnRows(pgxmock.NewRows(postCols).
			AddRow(int64(5), "T", "t", "c", "e", &cat, "published", 1, "", "", "", false, &now, now, now))

	posts, total, err := postgres.NewPostRepo(m).List(context.Background(), domain.PostFilter{
		Status: domain.PostPublished, CategoryID: &cat, Offset: 20, Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(21), total)
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].CategoryID)
	assert.Equal(t, int64(4), *posts[0].CategoryID)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestPostRepo_UpdateAndDelete_NotFound(t *testing.T) {
	m := newMock(t)
	m.ExpectExec("UPDATE blog_posts").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	m.ExpectExec("DELETE FROM blog_posts").WithArgs(int64(9)).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := postgres.NewPostRepo(m)
	assert.ErrorIs(t, repo.Update(context.Background(), domain.Post{ID: 9, Status: domain.PostDraft}), domain.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(context.Background(), 9), domain.ErrNotFound)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestCategoryRepo(t *testing.T) {
	m := newMock(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.ExpectQuery("INSERT INTO blog_categories").
		WithArgs("AI News", "ai-news", "", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	m.ExpectQuery(regexp.QuoteMeta("WHERE lower(name)=lower($1)")).
		WithArgs("ai news").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "slug", "description", "created_at"}).
			AddRow(int64(1), "AI News", "ai-news", "", now))
	m.ExpectQuery("SELECT id, name, slug, description, created_at FROM blog_categories ORDER BY name").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "slug", "description", "created_at"}).
			AddRow(int64(1), "AI News", "ai-news", "", now).
			AddRow(int64(2), "DevOps", "devops", "", now))
	m.ExpectExec("DELETE FROM blog_categories").WithArgs(int64(2)).WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := postgres.NewCategoryRepo(m)
	ctx := context.Background()
	id, err := repo.Create(ctx, domain.Category{Name: "AI News", Slug: "ai-news"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	c, err := repo.GetByName(ctx, "ai news")
	require.NoError(t, err)
	assert.Equal(t, "ai-news", c.Slug)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, repo.Delete(ctx, 2))
	require.NoError(t, m.ExpectationsWereMet())
}

func TestQualityRepo_RoundTripsSuggestions(t *testing.T) {
	m := newMock(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.ExpectQuery("INSERT INTO blog_quality_checks").
		WithArgs(int64(5), 80, 75, true, `["shorter intro","add links"]`, now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(9)))
	m.ExpectQuery("FROM blog_quality_checks WHERE post_id").
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "post_id", "readability_score", "keyword_density_score", "is_high_quality", "suggestions", "checked_at"}).
			AddRow(int64(9), int64(5), 80, 75, true, `["shorter intro","add links"]`, now))

	repo := postgres.NewQualityRepo(m)
	id, err := repo.Create(context.Background(), domain.QualityCheck{
		PostID: 5, ReadabilityScore: 80, KeywordDensityScore: 75, IsHighQuality: true,
		Suggestions: []string{"shorter intro", "add links"}, CheckedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	q, err := repo.LatestForPost(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"shorter intro", "add links"}, q.Suggestions)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestVisitorRepo(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 6, 15, 30, 0, 0, time.UTC)
	day := time.Date(2026, 5, 6, 0, 0, 0, 0, time.UTC)
	post := int64(3)

	t.Run("insert generates id", func(t *testing.T) {
		m := newMock(t)
		m.ExpectExec("INSERT INTO blog_visitors").
			WithArgs(pgxmock.AnyArg(), "hash", "/posts/x", &post, "ua", "", "", "", now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		err := postgres.NewVisitorRepo(m).Insert(ctx, domain.Visitor{IPHash: "hash", Path: "/posts/x", PostID: &post, UserAgent: "ua", VisitedAt: now})
		require.NoError(t, err)
		require.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("increment views upserts", func(t *testing.T) {
		m := newMock(t)
		m.ExpectExec("INSERT INTO blog_post_metrics").
			WithArgs(int64(3), 1, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		require.NoError(t, postgres.NewVisitorRepo(m).IncrementViews(ctx, 3, true, now))
		require.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("seen today bounds the utc day", func(t *testing.T) {
		m := newMock(t)
		m.ExpectQuery("SELECT EXISTS").
			WithArgs(int64(3), "hash", day, day.Add(24*time.Hour)).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		seen, err := postgres.NewVisitorRepo(m).SeenToday(ctx, 3, "hash", now)
		require.NoError(t, err)
		assert.True(t, seen)
		require.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("stats", func(t *testing.T) {
		m := newMock(t)
		m.ExpectQuery(regexp.QuoteMeta("SELECT count(*), count(DISTINCT ip_hash)")).
			WithArgs(day).
			WillReturnRows(pgxmock.NewRows([]string{"total", "unique", "today"}).AddRow(int64(100), int64(40), int64(7)))
		s, err := postgres.NewVisitorRepo(m).Stats(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, domain.VisitorStats{Total: 100, Unique: 40, Today: 7}, s)
	})

	t.Run("aggregates", func(t *testing.T) {
		m := newMock(t)
		m.ExpectQuery("GROUP BY c").WithArgs(10).
			WillReturnRows(pgxmock.NewRows([]string{"c", "n"}).AddRow("ID", int64(5)).AddRow("Unknown", int64(2)))
		m.ExpectQuery("FROM blog_post_metrics m JOIN blog_posts").WithArgs(5).
			WillReturnRows(pgxmock.NewRows([]string{"post_id", "title", "slug", "total_views", "unique_visitors", "last_viewed_at"}).
				AddRow(int64(3), "T", "t", int64(50), int64(20), &now))
		m.ExpectQuery("date_trunc").WithArgs(day).
			WillReturnRows(pgxmock.NewRows([]string{"d", "count"}).AddRow(day, int64(12)))

		repo := postgres.NewVisitorRepo(m)
		countries, err := repo.ByCountry(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, "ID", countries[0].Country)

		top, err := repo.TopPosts(ctx, 5)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, int64(50), top[0].Views)

		trend, err := repo.DailyTrend(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, []domain.DailyCount{{Day: day, Count: 12}}, trend)
		require.NoError(t, m.ExpectationsWereMet())
	})
}

func TestJobRunRepo(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 4, 0, 0, 0, time.UTC)
	cols := []string{"name", "last_run_at", "last_status", "last_error", "last_duration_ms", "run_count"}

	m := newMock(t)
	m.ExpectExec("INSERT INTO blog_job_runs").
		WithArgs("content-generation", at, "success", "", int64(1500)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	m.ExpectQuery("FROM blog_job_runs WHERE name").
		WithArgs("content-generation").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("content-generation", at, "success", "", int64(1500), int64(4)))
	m.ExpectQuery("FROM blog_job_runs WHERE name").
		WithArgs("api-key-reset").
		WillReturnError(pgx.ErrNoRows)
	m.ExpectQuery("FROM blog_job_runs ORDER BY name").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("content-generation", at, "success", "", int64(1500), int64(4)))

	repo := postgres.NewJobRunRepo(m)
	require.NoError(t, repo.Record(ctx, domain.JobRun{Name: "content-generation", LastRunAt: at, LastStatus: "success", LastDuration: 1500 * time.Millisecond}))

	run, err := repo.Get(ctx, "content-generation")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, run.LastDuration)
	assert.Equal(t, int64(4), run.RunCount)

	_, err = repo.Get(ctx, "api-key-reset")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	runs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	m := newMock(t)
	m.MatchExpectationsInOrder(false)
	for i := 0; i < 11; i++ {
		m.ExpectExec("CREATE (TABLE|INDEX) IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	require.NoError(t, postgres.EnsureSchema(context.Background(), m))
	require.NoError(t, m.ExpectationsWereMet())

	failing := newMock(t)
	failing.ExpectExec("CREATE TABLE IF NOT EXISTS blog_categories").WillReturnError(assert.AnError)
	err := postgres.EnsureSchema(context.Background(), failing)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestCleanupService(t *testing.T) {
	t.Run("deletes in one transaction", func(t *testing.T) {
		m := newMock(t)
		m.ExpectBegin()
		m.ExpectExec("DELETE FROM blog_visitors WHERE visited_at").WillReturnResult(pgxmock.NewResult("DELETE", 12))
		m.ExpectExec("DELETE FROM rate_limit_buckets").WillReturnResult(pgxmock.NewResult("DELETE", 1))
		m.ExpectCommit()

		n, err := postgres.NewCleanupService(m, 30).CleanupOldData(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(12), n)
		require.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("begin error", func(t *testing.T) {
		m := newMock(t)
		m.ExpectBegin().WillReturnError(assert.AnError)
		_, err := postgres.NewCleanupService(m, 0).CleanupOldData(context.Background())
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("delete error rolls back", func(t *testing.T) {
		m := newMock(t)
		m.ExpectBegin()
		m.ExpectExec("DELETE FROM blog_visitors").WillReturnError(assert.AnError)
		m.ExpectRollback()
		_, err := postgres.NewCleanupService(m, 1).CleanupOldData(context.Background())
		assert.ErrorIs(t, err, assert.AnError)
		require.NoError(t, m.ExpectationsWereMet())
	})
}
