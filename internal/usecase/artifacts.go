package usecase

import "math"

// Outline is the model's article outline as one formatted string.
type Outline struct {
	Outline string `json:"outline" validate:"required"`
}

// Article is a generated article body in HTML.
type Article struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// QualityReport scores an article. Scores are 0..100; models sometimes answer
// with fractions so they decode as floats.
type QualityReport struct {
	ReadabilityScore float64  `json:"readabilityScore" validate:"gte=0,lte=100"`
	SEOScore         float64  `json:"seoScore" validate:"gte=0,lte=100"`
	IsPlagiarized    bool     `json:"isPlagiarized"`
	Suggestions      []string `json:"suggestions,omitempty"`
}

// Readability returns the rounded readability score.
func (q QualityReport) Readability() int { return int(math.Round(q.ReadabilityScore)) }

// SEO returns the rounded SEO score.
func (q QualityReport) SEO() int { return int(math.Round(q.SEOScore)) }

// HighQuality reports whether both scores reach min and the text is original.
func (q QualityReport) HighQuality(minReadability, minSEO int) bool {
	return !q.IsPlagiarized && q.Readability() >= minReadability && q.SEO() >= minSEO
}

type TrendingTopic struct {
	Topic        string  `json:"topic" validate:"required"`
	Category     string  `json:"category" validate:"required"`
	SearchVolume float64 `json:"searchVolume,omitempty"`
}

type TrendingTopics struct {
	Topics []TrendingTopic `json:"topics" validate:"required,min=1,dive"`
}

// SourceArticle is the model's summary of a recent source post on a topic.
type SourceArticle struct {
	OriginalTitle string   `json:"originalTitle" validate:"required"`
	SourceURL     string   `json:"sourceUrl,omitempty"`
	KeyPoints     []string `json:"keyPoints" validate:"required,min=1"`
	Summary       string   `json:"summary" validate:"required"`
	Tone          string   `json:"tone"`
}

// RewrittenArticle is an original article produced from a SourceArticle.
type RewrittenArticle struct {
	Title     string `json:"title" validate:"required"`
	Content   string `json:"content" validate:"required"`
	Excerpt   string `json:"excerpt"`
	ImageHint string `json:"imageHint"`
	Keywords  string `json:"keywords"`
}

type TopicCategory struct {
	Category string `json:"category" validate:"required"`
}

// Enhancement carries suggested quotes and takeaways for an existing article.
type Enhancement struct {
	EnhancedContent    string   `json:"enhancedContent" validate:"required"`
	SuggestedQuotes    []string `json:"suggestedQuotes"`
	SuggestedTakeaways []string `json:"suggestedTakeaways"`
}

// TrafficInsights is the model's reading of recent visitor analytics.
type TrafficInsights struct {
	Summary         string   `json:"summary" validate:"required"`
	Recommendations []string `json:"recommendations"`
	TrendingTopics  []string `json:"trendingTopics"`
}
