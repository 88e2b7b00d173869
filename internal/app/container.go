package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-blog-cms/internal/config"
	"github.com/fairyhunter13/ai-blog-cms/internal/service/keypool"
	"github.com/fairyhunter13/ai-blog-cms/internal/service/ratelimiter"
	"github.com/fairyhunter13/ai-blog-cms/internal/usecase"
)

// Container holds the wired process dependencies shared by the server and
// the blogctl commands.
type Container struct {
	Cfg   config.Config
	Pool  *pgxpool.Pool
	Redis *redis.Client // nil when REDIS_URL is unset

	Keys       *keypool.Manager
	Executor   *gemini.Executor
	Flows      *usecase.Flows
	Posts      usecase.PostService
	Categories usecase.CategoryService
	Pipeline   *usecase.ContentPipeline
	Tracking   usecase.TrackingService
	Analytics  usecase.AnalyticsService
	KeyAdmin   usecase.KeyService
	Cleanup    *postgres.CleanupService
	Scheduler  *Scheduler
}

// NewContainer connects to Postgres (and Redis when configured), ensures
// the schema, seeds the key pool from the environment and wires every
// service. Close releases the connections.
func NewContainer(ctx context.Context, cfg config.Config) (*Container, error) {
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("op=app.NewContainer: db connect: %w", err)
	}
	c := &Container{Cfg: cfg, Pool: pool}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		c.Close()
		return nil, fmt.Errorf("op=app.NewContainer: %w", err)
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("op=app.NewContainer: redis url: %w", err)
		}
		c.Redis = redis.NewClient(opts)
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable at startup, continuing", slog.Any("error", err))
		}
	}

	c.Keys = keypool.NewManager(postgres.NewCredentialRepo(pool))
	seeded, err := c.Keys.SeedFromConfig(ctx, cfg.GeminiAPIKeys, cfg.PurposeKeys())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("op=app.NewContainer: seed keys: %w", err)
	}
	if seeded > 0 {
		slog.Info("api keys seeded from environment", slog.Int("added", seeded))
	}

	exCfg := cfg.GetExecutorConfig()
	var exOpts []gemini.Option
	if p := c.newPacer(ctx, exCfg.RequestsPerMin); p != nil {
		exOpts = append(exOpts, gemini.WithPacer(p))
	}
	c.Executor = gemini.New(exCfg, c.Keys, exOpts...)

	postRepo := postgres.NewPostRepo(pool)
	catRepo := postgres.NewCategoryRepo(pool)
	visitorRepo := postgres.NewVisitorRepo(pool)

	c.Flows = usecase.NewFlows(c.Executor)
	c.Posts = usecase.NewPostService(postRepo, catRepo)
	c.Categories = usecase.NewCategoryService(catRepo)
	c.Pipeline = usecase.NewContentPipeline(c.Flows, c.Posts, c.Categories, postgres.NewQualityRepo(pool), usecase.PipelineSettings{
		Niche:          cfg.BlogNiche,
		ArticlesPerRun: cfg.ArticlesPerRun,
		MinReadability: cfg.MinReadability,
		MinSEO:         cfg.MinKeywordDensity,
		AutoPublish:    cfg.AutoPublish,
	})
	var dedup usecase.VisitDeduper
	if c.Redis != nil {
		dedup = c.Redis
	}
	c.Tracking = usecase.NewTrackingService(visitorRepo, postRepo, dedup, cfg.VisitorSalt)
	c.Analytics = usecase.NewAnalyticsService(visitorRepo, c.Flows)
	c.KeyAdmin = usecase.NewKeyService(c.Keys)
	c.Cleanup = postgres.NewCleanupService(pool, cfg.VisitorRetentionDays)

	opts := []SchedulerOption{WithTick(cfg.SchedulerTick)}
	if c.Redis != nil {
		opts = append(opts, WithLock(c.Redis, 0))
	}
	c.Scheduler = NewScheduler(postgres.NewJobRunRepo(pool), BuildJobs(cfg, c.Pipeline, c.Keys, c.Cleanup), opts...)
	return c, nil
}

// newPacer prefers the shared Redis bucket and falls back to an in-process one.
func (c *Container) newPacer(ctx context.Context, perMinute int) *ratelimiter.Pacer {
	bucket := ratelimiter.NewBucketConfigFromPerMinute(perMinute)
	if !bucket.Enabled() {
		return nil
	}
	if c.Redis != nil {
		lim := ratelimiter.NewRedisLuaLimiter(c.Redis, c.Pool, bucket)
		if err := lim.WarmFromPostgres(ctx); err != nil {
			slog.Warn("rate limit warmup failed", slog.Any("error", err))
		}
		return ratelimiter.NewPacer(lim)
	}
	return ratelimiter.NewPacer(ratelimiter.NewLocalLimiter(bucket))
}

// Server builds the HTTP server over the container's services.
func (c *Container) Server() *httpserver.Server {
	var rdb RedisClient
	if c.Redis != nil {
		rdb = c.Redis
	}
	dbCheck, redisCheck := BuildReadinessChecks(c.Pool, rdb)
	return httpserver.NewServer(c.Cfg, c.Posts, c.Categories, c.Pipeline, c.Tracking, c.Analytics, c.KeyAdmin, c.Scheduler, dbCheck, redisCheck)
}

// Close releases Redis and the database pool.
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			slog.Warn("redis close failed", slog.Any("error", err))
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
