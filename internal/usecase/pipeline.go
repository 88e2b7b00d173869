package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/observability"
	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// PipelineSettings controls automated generation and publishing.
type PipelineSettings struct {
	Niche          string
	ArticlesPerRun int
	MinReadability int
	MinSEO         int
	AutoPublish    bool
}

// GenerateResult describes one post produced by the pipeline.
type GenerateResult struct {
	Post     domain.Post   `json:"post"`
	Category string        `json:"category"`
	Quality  QualityReport `json:"quality"`
	Fallback bool          `json:"fallback"`
}

// RunReport summarises one automated run.
type RunReport struct {
	Generated int      `json:"generated"`
	Published int      `json:"published"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Success reports whether every attempted article was stored.
func (r RunReport) Success() bool { return r.Failed == 0 }

// ContentPipeline chains the flows into stored posts.
type ContentPipeline struct {
	Flows      *Flows
	Posts      PostService
	Categories CategoryService
	Quality    domain.QualityRepository
	Settings   PipelineSettings

	now func() time.Time
}

func NewContentPipeline(f *Flows, posts PostService, cats CategoryService, q domain.QualityRepository, st PipelineSettings) *ContentPipeline {
	if st.ArticlesPerRun <= 0 {
		st.ArticlesPerRun = 1
	}
	if st.Niche == "" {
		st.Niche = "technology"
	}
	return &ContentPipeline{Flows: f, Posts: posts, Categories: cats, Quality: q, Settings: st, now: time.Now}
}

// GenerateAndProcess writes one article on topic: categorize, outline,
// article, quality check, then store the post and its quality record.
// Model failures degrade to fallbacks; only storage failures abort.
func (p *ContentPipeline) GenerateAndProcess(ctx domain.Context, topic string) (GenerateResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return GenerateResult{}, fmt.Errorf("op=usecase.GenerateAndProcess: %w: topic required", domain.ErrInvalidArgument)
	}
	lg := observability.LoggerFromContext(ctx).With("topic", topic)

	category := DefaultCategory
	if cats, err := p.Flows.CategorizeTopics(ctx, []string{topic}); err != nil {
		noteFallback(ctx, "categorize", err)
	} else if c := cats[topic]; c != "" {
		category = c
	}

	fallback := false
	outline, err := p.Flows.GenerateOutline(ctx, topic)
	if err != nil {
		noteFallback(ctx, "outline", err)
		outline = fallbackOutline(topic)
	}
	article, err := p.Flows.GenerateArticle(ctx, topic, outline.Outline)
	if err != nil {
		noteFallback(ctx, "article", err)
		article = fallbackArticle(topic, outline.Outline)
		fallback = true
	}
	quality, err := p.Flows.CheckQuality(ctx, article.Content, topic)
	if err != nil {
		noteFallback(ctx, "quality", err)
		quality = fallbackQuality()
	}

	res, err := p.store(ctx, draft{
		title:    article.Title,
		content:  article.Content,
		topic:    topic,
		category: category,
		quality:  quality,
		fallback: fallback,
	})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("op=usecase.GenerateAndProcess: %w", err)
	}
	lg.Info("article generated", "post_id", res.Post.ID, "status", res.Post.Status, "category", category, "fallback", fallback)
	return res, nil
}

type draft struct {
	title, content, excerpt, imageHint, topic string
	category                                  string
	quality                                   QualityReport
	fallback                                  bool
}

// store persists a generated post. Fallback articles are never published.
func (p *ContentPipeline) store(ctx domain.Context, d draft) (GenerateResult, error) {
	cat, err := p.Categories.EnsureByName(ctx, d.category)
	if err != nil {
		return GenerateResult{}, err
	}
	status := domain.PostDraft
	if p.Settings.AutoPublish && !d.fallback && d.quality.HighQuality(p.Settings.MinReadability, p.Settings.MinSEO) {
		status = domain.PostPublished
	}
	catID := cat.ID
	post, err := p.Posts.Create(ctx, PostInput{
		Title:      d.title,
		Content:    d.content,
		Excerpt:    d.excerpt,
		CategoryID: &catID,
		Status:     status,
		Topic:      d.topic,
		ImageHint:  d.imageHint,
	})
	if err != nil {
		return GenerateResult{}, err
	}
	observability.ObserveGenerated(string(post.Status))

	if p.Quality != nil {
		_, qerr := p.Quality.Create(ctx, domain.QualityCheck{
			PostID:              post.ID,
			ReadabilityScore:    d.quality.Readability(),
			KeywordDensityScore: d.quality.SEO(),
			IsHighQuality:       d.quality.HighQuality(p.Settings.MinReadability, p.Settings.MinSEO),
			Suggestions:         d.quality.Suggestions,
			CheckedAt:           p.now().UTC(),
		})
		if qerr != nil {
			observability.LoggerFromContext(ctx).Warn("store quality check failed", "post_id", post.ID, "error", qerr)
		}
	}
	return GenerateResult{Post: post, Category: cat.Name, Quality: d.quality, Fallback: d.fallback}, nil
}

// TrendingTopics returns current topics for the configured niche, or the
// static fallback list when the model cannot answer.
func (p *ContentPipeline) TrendingTopics(ctx domain.Context) []TrendingTopic {
	topics, err := p.Flows.FetchTrendingTopics(ctx, p.Settings.Niche)
	if err != nil || len(topics) == 0 {
		if err == nil {
			err = errors.New("no topics returned")
		}
		noteFallback(ctx, "trending", err)
		return fallbackTopics()
	}
	return topics
}

// RunAutomated finds trending topics and turns up to ArticlesPerRun of them
// into posts, one after another: source, rewrite, quality, store. A failed
// topic is recorded and the run moves on.
func (p *ContentPipeline) RunAutomated(ctx domain.Context) (RunReport, error) {
	lg := observability.LoggerFromContext(ctx)
	topics := p.TrendingTopics(ctx)
	n := p.Settings.ArticlesPerRun
	if n > len(topics) {
		n = len(topics)
	}

	var rep RunReport
	for _, topic := range topics[:n] {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("op=usecase.RunAutomated: %w", err)
		}
		res, err := p.processTopic(ctx, topic)
		if err != nil {
			rep.Failed++
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", topic.Topic, err))
			lg.Error("automated article failed", "topic", topic.Topic, "error", err)
			continue
		}
		rep.Generated++
		if res.Post.Status == domain.PostPublished {
			rep.Published++
		}
	}
	lg.Info("automated run finished", "generated", rep.Generated, "published", rep.Published, "failed", rep.Failed)
	return rep, nil
}

func (p *ContentPipeline) processTopic(ctx domain.Context, topic TrendingTopic) (GenerateResult, error) {
	src, err := p.Flows.FindSource(ctx, topic)
	if err != nil {
		return GenerateResult{}, err
	}
	art, err := p.Flows.RewriteArticle(ctx, topic, src)
	if err != nil {
		return GenerateResult{}, err
	}
	keywords := art.Keywords
	if keywords == "" {
		keywords = topic.Topic
	}
	quality, err := p.Flows.CheckQuality(ctx, art.Content, keywords)
	if err != nil {
		noteFallback(ctx, "quality", err)
		quality = fallbackQuality()
	}
	return p.store(ctx, draft{
		title:     art.Title,
		content:   art.Content,
		excerpt:   art.Excerpt,
		imageHint: art.ImageHint,
		topic:     topic.Topic,
		category:  topic.Category,
		quality:   quality,
	})
}

// PreviewOutline returns an outline for topic without storing anything.
// The bool reports whether the fallback outline was substituted.
func (p *ContentPipeline) PreviewOutline(ctx domain.Context, topic string) (Outline, bool, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Outline{}, false, fmt.Errorf("op=usecase.PreviewOutline: %w: topic required", domain.ErrInvalidArgument)
	}
	out, err := p.Flows.GenerateOutline(ctx, topic)
	if err != nil {
		noteFallback(ctx, "outline", err)
		return fallbackOutline(topic), true, nil
	}
	return out, false, nil
}

// Enhance suggests an improved body, quotes and takeaways for a stored post.
// The post itself is left untouched.
func (p *ContentPipeline) Enhance(ctx domain.Context, postID int64) (Enhancement, error) {
	post, err := p.Posts.Get(ctx, postID)
	if err != nil {
		return Enhancement{}, fmt.Errorf("op=usecase.Enhance: %w", err)
	}
	category := DefaultCategory
	if post.CategoryID != nil && p.Categories.Categories != nil {
		if c, cerr := p.Categories.Categories.Get(ctx, *post.CategoryID); cerr == nil {
			category = c.Name
		}
	}
	return p.Flows.EnhanceArticle(ctx, post.Content, category)
}
