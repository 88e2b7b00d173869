package httpserver

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-blog-cms/internal/config"
	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
	"github.com/fairyhunter13/ai-blog-cms/internal/usecase"
)

// PostManager is the post surface used by public and admin handlers.
type PostManager interface {
	Create(ctx context.Context, in usecase.PostInput) (domain.Post, error)
	Update(ctx context.Context, id int64, in usecase.PostInput) (domain.Post, error)
	Publish(ctx context.Context, id int64) (domain.Post, error)
	SetFeatured(ctx context.Context, id int64, featured bool) (domain.Post, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (domain.Post, error)
	GetPublished(ctx context.Context, slug string) (domain.Post, error)
	List(ctx context.Context, f domain.PostFilter) ([]domain.Post, int64, error)
}

type CategoryManager interface {
	Create(ctx context.Context, in usecase.CategoryInput) (domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
	Delete(ctx context.Context, id int64) error
}

// ContentGenerator runs the AI content flows for the admin API.
type ContentGenerator interface {
	GenerateAndProcess(ctx context.Context, topic string) (usecase.GenerateResult, error)
	PreviewOutline(ctx context.Context, topic string) (usecase.Outline, bool, error)
	TrendingTopics(ctx context.Context) []usecase.TrendingTopic
	Enhance(ctx context.Context, postID int64) (usecase.Enhancement, error)
}

type VisitTracker interface {
	Track(ctx context.Context, v usecase.Visit) (usecase.TrackResult, error)
}

type AnalyticsReader interface {
	Dashboard(ctx context.Context) (usecase.Dashboard, error)
	AnalyzeTraffic(ctx context.Context) (usecase.InsightsResult, error)
}

type KeyManager interface {
	List(ctx context.Context) ([]usecase.KeyView, error)
	Add(ctx context.Context, in usecase.KeyInput) (usecase.KeyView, error)
	Remove(ctx context.Context, name string) error
	Reset(ctx context.Context) (int64, error)
}

// JobRunner is the scheduler surface for the cron endpoint and admin status.
type JobRunner interface {
	RunAll(ctx context.Context, force bool) ([]domain.JobResult, error)
	RunJob(ctx context.Context, name string) (domain.JobResult, error)
	Status(ctx context.Context) ([]domain.JobStatus, error)
}

// Server aggregates handlers dependencies.
type Server struct {
	Cfg        config.Config
	Posts      PostManager
	Categories CategoryManager
	Content    ContentGenerator
	Tracker    VisitTracker
	Analytics  AnalyticsReader
	Keys       KeyManager
	Jobs       JobRunner
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, posts PostManager, cats CategoryManager, content ContentGenerator, tracker VisitTracker, analytics AnalyticsReader, keys KeyManager, jobs JobRunner, dbCheck, redisCheck func(context.Context) error) *Server {
	return &Server{
		Cfg:        cfg,
		Posts:      posts,
		Categories: cats,
		Content:    content,
		Tracker:    tracker,
		Analytics:  analytics,
		Keys:       keys,
		Jobs:       jobs,
		DBCheck:    dbCheck,
		RedisCheck: redisCheck,
	}
}

// Healthz reports liveness.
func (s *Server) Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Readyz runs the dependency checks with a short deadline and answers 503
// when any fails.
func (s *Server) Readyz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := []usecase.ReadinessCheck{
			runCheck(ctx, "db", s.DBCheck),
			runCheck(ctx, "redis", s.RedisCheck),
		}
		status := http.StatusOK
		for _, c := range checks {
			if !c.OK {
				status = http.StatusServiceUnavailable
				LoggerFrom(r).Warn("readiness check failed", "check", c.Name, "details", c.Details)
			}
		}
		writeJSON(w, status, map[string]any{"checks": checks})
	}
}

func runCheck(ctx context.Context, name string, fn func(context.Context) error) usecase.ReadinessCheck {
	if fn == nil {
		return usecase.ReadinessCheck{Name: name, OK: true, Details: "not configured"}
	}
	if err := fn(ctx); err != nil {
		return usecase.ReadinessCheck{Name: name, OK: false, Details: err.Error()}
	}
	return usecase.ReadinessCheck{Name: name, OK: true}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// geoFromHeaders reads the country and city set by the CDN edge, if any.
func geoFromHeaders(r *http.Request) (country, city string) {
	country = r.Header.Get("CF-IPCountry")
	if country == "" {
		country = r.Header.Get("X-Vercel-IP-Country")
	}
	if strings.EqualFold(country, "XX") {
		country = ""
	}
	return strings.ToUpper(country), r.Header.Get("X-Vercel-IP-City")
}
