package usecase

import (
	"fmt"
	"strings"
	"time"
)

// TrendingCategories are the categories trending topics are drawn from.
var TrendingCategories = []string{
	"AI News", "Machine Learning", "Web Development", "Programming",
	"Tech Reviews", "Tutorials", "DevOps",
}

// TopicCategories are the buckets CategorizeTopics sorts topics into.
var TopicCategories = []struct {
	Name  string
	Scope string
}{
	{"AI News", "model releases, research results and announcements from AI labs"},
	{"Open Source", "new open-source projects, major releases and project security news"},
	{"Web Dev", "web frameworks, browser platform changes, tooling and tutorials"},
	{"DevOps", "infrastructure, CI/CD, observability and platform tooling"},
	{"Cybersecurity", "vulnerabilities, incidents and defensive tooling"},
}

// OtherCategory is assigned when no TopicCategories entry fits.
const OtherCategory = "Other"

// DefaultCategory is used for generated posts whose topic could not be categorized.
const DefaultCategory = "AI News"

func outlinePrompt(topic string) string {
	return fmt.Sprintf(`You write outlines for a technology blog.
Produce a detailed, logically ordered outline for an article on the topic below.

Topic: %q

Answer with one JSON object whose "outline" key holds the whole outline as a single string, for example:
{"outline": "1. Introduction\n  - Context\n2. First point\n  - Detail"}`, topic)
}

func articlePrompt(topic, outline string) string {
	return fmt.Sprintf(`You are a senior technology writer. Write a long-form, SEO friendly article.

Topic: %q

Outline to follow:
---
%s
---

Rules:
- Give the article a specific, compelling title.
- At least 1500 words.
- Format the body as semantic HTML using h2, h3, p, ul, li, strong, code and pre. No h1, html, head or body tags.

Answer with one JSON object with the keys "title" and "content".`, topic, outline)
}

func qualityPrompt(content, keywords string) string {
	return fmt.Sprintf(`Review the article below for a technology blog editor.

Article:
---
%s
---

Target keywords: %q

Score readability from 0 to 100 and SEO from 0 to 100 (keyword density and placement), decide whether the text looks copied, and list up to five concrete improvements.
Answer with one JSON object with the keys "readabilityScore", "seoScore", "isPlagiarized" and "suggestions", for example:
{"readabilityScore": 82, "seoScore": 74, "isPlagiarized": false, "suggestions": ["Shorten the introduction"]}`, content, keywords)
}

func trendingPrompt(niche string, now time.Time) string {
	return fmt.Sprintf(`You track technology trends. Today is %s.
List 3 topics trending right now in the %q niche. Each topic must belong to one of: %s.
Be specific ("What changed in React 19 server actions", not "JavaScript") and estimate a search volume from 1 to 100.

Answer with one JSON object with a "topics" array, for example:
{"topics": [{"topic": "Example topic", "category": "AI News", "searchVolume": 88}]}`,
		now.Format("Monday, 2 January 2006"), niche, strings.Join(TrendingCategories, ", "))
}

func sourcePrompt(t TrendingTopic) string {
	return fmt.Sprintf(`You are a research assistant for a technology blog.
Topic: %q (category %q).

Describe the most useful recent article a leading technology publication would run on this topic, reconstructed from what you know.
Answer with one JSON object with the keys "originalTitle", "sourceUrl" (omit when unknown), "keyPoints" (array of strings), "summary" and "tone".`, t.Topic, t.Category)
}

func rewritePrompt(t TrendingTopic, src SourceArticle) string {
	return fmt.Sprintf(`You are a senior technology writer. Turn the research notes below into a new, original article.

Topic: %q
Summary: %s
Key points:
- %s

Rules:
- New, compelling title.
- At least 1500 words of clean HTML (h2, p, ul, li, code).
- Add insight, examples and structure the notes lack.
- Provide a short excerpt, an image hint for an illustration and comma separated SEO keywords.

Answer with one JSON object with the keys "title", "content", "excerpt", "imageHint" and "keywords".`,
		t.Topic, src.Summary, strings.Join(src.KeyPoints, "\n- "))
}

func categorizePrompt(topic string) string {
	var b strings.Builder
	for _, c := range TopicCategories {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Scope)
	}
	return fmt.Sprintf(`Pick the category that best fits the trending topic %q.

Categories:
%s
Answer with one JSON object such as {"category": "AI News"}. When nothing fits answer {"category": %q}.`,
		topic, b.String(), OtherCategory)
}

func enhancePrompt(content, category string) string {
	return fmt.Sprintf(`You improve published technology articles.

Category: %s
Article:
---
%s
---

Suggest quotes and key takeaways that would make the article more useful, and return the article with them worked in.
Answer with one JSON object with the keys "enhancedContent", "suggestedQuotes" and "suggestedTakeaways".`, category, content)
}

func trafficPrompt(analytics string) string {
	return fmt.Sprintf(`You are a content strategist for a technology blog. Read the analytics below.

%s

Summarise how the blog is performing, give three to five concrete content recommendations and name the topics that are gaining traction.
Answer with one JSON object with the keys "summary", "recommendations" (array of strings) and "trendingTopics" (array of strings).`, analytics)
}
