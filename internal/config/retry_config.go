package config

import (
	"time"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// ExecutorConfig groups the settings of the rate-limited call executor.
type ExecutorConfig struct {
	BaseURL         string
	Model           string
	Policy          domain.RetryPolicy
	HTTPTimeout     time.Duration
	RequestsPerMin  int
	PromptMaxTokens int
}

// GetExecutorConfig returns executor settings for the current environment.
// In test environments the backoff bases shrink so retry paths run fast.
func (c Config) GetExecutorConfig() ExecutorConfig {
	policy := domain.RetryPolicy{
		MaxRetries:    c.ExecutorMaxRetries,
		RateLimitBase: c.ExecutorRateLimitBackoff,
		NetworkBase:   c.ExecutorNetworkBackoff,
	}
	if c.IsTest() {
		policy.RateLimitBase = 15 * time.Millisecond
		policy.NetworkBase = 2 * time.Millisecond
	}
	return ExecutorConfig{
		BaseURL:         c.GeminiBaseURL,
		Model:           c.GeminiModel,
		Policy:          policy.Normalize(),
		HTTPTimeout:     c.ExecutorHTTPTimeout,
		RequestsPerMin:  c.ProviderRequestsPerMin,
		PromptMaxTokens: c.PromptMaxTokens,
	}
}

// PurposeKeys maps purposes to reserved credential values from the environment.
func (c Config) PurposeKeys() map[domain.Purpose]string {
	out := map[domain.Purpose]string{}
	if c.ContentAPIKey != "" {
		out[domain.PurposeContent] = c.ContentAPIKey
	}
	if c.AnalyticsAPIKey != "" {
		out[domain.PurposeAnalytics] = c.AnalyticsAPIKey
	}
	return out
}
