package usecase

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

const (
	trendDays    = 7
	topCountries = 10
	topPosts     = 10
)

// Dashboard aggregates visitor analytics for the admin UI.
type Dashboard struct {
	Stats     domain.VisitorStats   `json:"stats"`
	Countries []domain.CountryCount `json:"countries"`
	TopPosts  []domain.PostMetrics  `json:"topPosts"`
	Trend     []domain.DailyCount   `json:"trend"`
}

// InsightsResult carries model insights and whether they are the fallback.
type InsightsResult struct {
	TrafficInsights
	Fallback bool `json:"fallback"`
}

type AnalyticsService struct {
	Visitors domain.VisitorRepository
	Flows    *Flows

	now func() time.Time
}

func NewAnalyticsService(v domain.VisitorRepository, f *Flows) AnalyticsService {
	return AnalyticsService{Visitors: v, Flows: f, now: time.Now}
}

func (s AnalyticsService) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

// Dashboard gathers all aggregates concurrently.
func (s AnalyticsService) Dashboard(ctx domain.Context) (Dashboard, error) {
	now := s.clock()
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Stats, err = s.Visitors.Stats(gctx, now)
		return err
	})
	g.Go(func() (err error) {
		d.Countries, err = s.Visitors.ByCountry(gctx, topCountries)
		return err
	})
	g.Go(func() (err error) {
		d.TopPosts, err = s.Visitors.TopPosts(gctx, topPosts)
		return err
	})
	g.Go(func() (err error) {
		d.Trend, err = s.Visitors.DailyTrend(gctx, now.AddDate(0, 0, -(trendDays-1)))
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("op=usecase.Dashboard: %w", err)
	}
	return d, nil
}

// AnalyzeTraffic asks the model to interpret the dashboard. Any model
// failure yields the static fallback insights; only aggregate query
// failures are returned as errors.
func (s AnalyticsService) AnalyzeTraffic(ctx domain.Context) (InsightsResult, error) {
	d, err := s.Dashboard(ctx)
	if err != nil {
		return InsightsResult{}, fmt.Errorf("op=usecase.AnalyzeTraffic: %w", err)
	}
	ins, err := s.Flows.AnalyzeTraffic(ctx, digest(d))
	if err != nil {
		noteFallback(ctx, "traffic", err)
		return InsightsResult{TrafficInsights: fallbackInsights(), Fallback: true}, nil
	}
	return InsightsResult{TrafficInsights: ins}, nil
}

// digest renders the dashboard as plain text for the prompt.
func digest(d Dashboard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Visitors: %d total, %d unique, %d today.\n", d.Stats.Total, d.Stats.Unique, d.Stats.Today)
	b.WriteString("Top posts:\n")
	if len(d.TopPosts) == 0 {
		b.WriteString("- none yet\n")
	}
	for _, p := range d.TopPosts {
		fmt.Fprintf(&b, "- %q: %d views, %d unique\n", p.Title, p.Views, p.UniqueViews)
	}
	b.WriteString("Visitors by country:\n")
	if len(d.Countries) == 0 {
		b.WriteString("- none yet\n")
	}
	for _, c := range d.Countries {
		fmt.Fprintf(&b, "- %s: %d\n", c.Country, c.Count)
	}
	fmt.Fprintf(&b, "Daily visitors, last %d days:\n", trendDays)
	for _, day := range d.Trend {
		fmt.Fprintf(&b, "- %s: %d\n", day.Day.Format("2006-01-02"), day.Count)
	}
	return b.String()
}
