package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/ai"
	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/observability"
	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// Flows are the single-purpose generation steps. Each builds a prompt, runs
// it through the Completer and decodes a validated artifact. Flows never
// substitute fallbacks; callers decide.
type Flows struct {
	AI  domain.Completer
	now func() time.Time
}

// NewFlows constructs Flows over a Completer.
func NewFlows(c domain.Completer) *Flows {
	return &Flows{AI: c, now: time.Now}
}

func run[T any](ctx domain.Context, f *Flows, op, prompt string, purpose domain.Purpose) (T, error) {
	var zero T
	if f == nil || f.AI == nil {
		return zero, fmt.Errorf("op=usecase.%s: %w: no completer configured", op, domain.ErrInternal)
	}
	text, err := f.AI.Complete(ctx, prompt, purpose)
	if err != nil {
		return zero, fmt.Errorf("op=usecase.%s: %w", op, err)
	}
	out, err := ai.Decode[T](text)
	if err != nil {
		return zero, fmt.Errorf("op=usecase.%s: %w", op, err)
	}
	return out, nil
}

func requireText(op, field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("op=usecase.%s: %w: %s required", op, domain.ErrInvalidArgument, field)
	}
	return nil
}

// GenerateOutline asks for an article outline on topic.
func (f *Flows) GenerateOutline(ctx domain.Context, topic string) (Outline, error) {
	if err := requireText("GenerateOutline", "topic", topic); err != nil {
		return Outline{}, err
	}
	return run[Outline](ctx, f, "GenerateOutline", outlinePrompt(topic), domain.PurposeContent)
}

// GenerateArticle writes the article for topic following outline.
func (f *Flows) GenerateArticle(ctx domain.Context, topic, outline string) (Article, error) {
	if err := requireText("GenerateArticle", "topic", topic); err != nil {
		return Article{}, err
	}
	if err := requireText("GenerateArticle", "outline", outline); err != nil {
		return Article{}, err
	}
	return run[Article](ctx, f, "GenerateArticle", articlePrompt(topic, outline), domain.PurposeContent)
}

// CheckQuality scores content against the target keywords.
func (f *Flows) CheckQuality(ctx domain.Context, content, keywords string) (QualityReport, error) {
	if err := requireText("CheckQuality", "content", content); err != nil {
		return QualityReport{}, err
	}
	return run[QualityReport](ctx, f, "CheckQuality", qualityPrompt(content, keywords), domain.PurposeContent)
}

// FetchTrendingTopics asks for current topics in niche.
func (f *Flows) FetchTrendingTopics(ctx domain.Context, niche string) ([]TrendingTopic, error) {
	if err := requireText("FetchTrendingTopics", "niche", niche); err != nil {
		return nil, err
	}
	out, err := run[TrendingTopics](ctx, f, "FetchTrendingTopics", trendingPrompt(niche, f.now()), domain.PurposeContent)
	if err != nil {
		return nil, err
	}
	return out.Topics, nil
}

// FindSource summarises a representative recent article on the topic.
func (f *Flows) FindSource(ctx domain.Context, topic TrendingTopic) (SourceArticle, error) {
	if err := requireText("FindSource", "topic", topic.Topic); err != nil {
		return SourceArticle{}, err
	}
	return run[SourceArticle](ctx, f, "FindSource", sourcePrompt(topic), domain.PurposeContent)
}

// RewriteArticle produces an original article from source notes.
func (f *Flows) RewriteArticle(ctx domain.Context, topic TrendingTopic, src SourceArticle) (RewrittenArticle, error) {
	if err := requireText("RewriteArticle", "summary", src.Summary); err != nil {
		return RewrittenArticle{}, err
	}
	return run[RewrittenArticle](ctx, f, "RewriteArticle", rewritePrompt(topic, src), domain.PurposeContent)
}

// EnhanceArticle suggests quotes and takeaways for existing content.
func (f *Flows) EnhanceArticle(ctx domain.Context, content, category string) (Enhancement, error) {
	if err := requireText("EnhanceArticle", "content", content); err != nil {
		return Enhancement{}, err
	}
	if category == "" {
		category = OtherCategory
	}
	return run[Enhancement](ctx, f, "EnhanceArticle", enhancePrompt(content, category), domain.PurposeContent)
}

// CategorizeTopics maps every topic to one of TopicCategories with one call
// per topic. Topics whose call fails, or whose answer is not a known
// category, map to OtherCategory; the joined failures are returned
// alongside the complete map.
func (f *Flows) CategorizeTopics(ctx domain.Context, topics []string) (map[string]string, error) {
	out := make(map[string]string, len(topics))
	var errs []error
	for _, topic := range topics {
		if _, done := out[topic]; done {
			continue
		}
		if err := ctx.Err(); err != nil {
			out[topic] = OtherCategory
			errs = append(errs, fmt.Errorf("op=usecase.CategorizeTopics: %w", err))
			continue
		}
		res, err := run[TopicCategory](ctx, f, "CategorizeTopics", categorizePrompt(topic), domain.PurposeContent)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn("categorize topic failed", "topic", topic, "error", err)
			out[topic] = OtherCategory
			errs = append(errs, err)
			continue
		}
		out[topic] = knownCategory(res.Category)
	}
	return out, errors.Join(errs...)
}

func knownCategory(name string) string {
	for _, c := range TopicCategories {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c.Name
		}
	}
	return OtherCategory
}

// AnalyzeTraffic reads an analytics digest and returns insights. It runs
// under the analytics purpose so a reserved key can serve it.
func (f *Flows) AnalyzeTraffic(ctx domain.Context, digest string) (TrafficInsights, error) {
	if err := requireText("AnalyzeTraffic", "digest", digest); err != nil {
		return TrafficInsights{}, err
	}
	return run[TrafficInsights](ctx, f, "AnalyzeTraffic", trafficPrompt(digest), domain.PurposeAnalytics)
}
