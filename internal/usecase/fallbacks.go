package usecase

import (
	"fmt"
	"html"

	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/observability"
	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// FallbackPrefix marks titles of substituted artifacts.
const FallbackPrefix = "Fallback: "

func fallbackOutline(topic string) Outline {
	return Outline{Outline: fmt.Sprintf("- Introduction: what %s is and why it matters\n- Key aspect 1\n- Key aspect 2\n- Conclusion", topic)}
}

func fallbackArticle(topic, outline string) Article {
	return Article{
		Title: FallbackPrefix + topic,
		Content: "<p>Error generating article. Please try again.</p><p>Outline used:</p><pre>" +
			html.EscapeString(outline) + "</pre>",
	}
}

func fallbackQuality() QualityReport {
	return QualityReport{ReadabilityScore: 50, SEOScore: 50}
}

func fallbackTopics() []TrendingTopic {
	return []TrendingTopic{
		{Topic: FallbackPrefix + "Latest developments in Large Language Models", Category: "AI News", SearchVolume: 90},
		{Topic: FallbackPrefix + "Next.js 15 Features and Updates", Category: "Web Development", SearchVolume: 85},
	}
}

func fallbackInsights() TrafficInsights {
	return TrafficInsights{
		Summary: "AI analysis is unavailable right now. Try again later or check the provider key quotas.",
		Recommendations: []string{
			"Keep publishing in the categories that already draw readers",
			"Review traffic patterns weekly",
			"Check provider key quotas",
		},
		TrendingTopics: []string{"General Tech", "Web Development", "AI"},
	}
}

// noteFallback logs and counts a substituted result.
func noteFallback(ctx domain.Context, flow string, err error) {
	observability.LoggerFromContext(ctx).Warn("using fallback result", "flow", flow, "error", err)
	observability.ObserveFallback(flow)
}
