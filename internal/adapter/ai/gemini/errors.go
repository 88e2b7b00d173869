package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// ProviderError is a non-2xx answer from the provider.
type ProviderError struct {
	Status  int
	Code    string
	Message string
	// RetryInfo is set when the provider attached a google.rpc.RetryInfo detail.
	RetryInfo bool
	// QuotaIDs lists the quotaId (or quotaMetric) of each QuotaFailure violation.
	QuotaIDs []string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("provider status %d: %s", e.Status, e.Message)
}

type quotaWindow int

const (
	windowUnknown quotaWindow = iota
	windowShort
	windowDaily
)

var (
	dailyMarkers = []string{"perday", "per_day", "per day", "daily"}
	shortMarkers = []string{"perminute", "per_minute", "per minute", "persecond", "per second"}
)

func windowOf(s string) quotaWindow {
	s = strings.ToLower(s)
	for _, m := range dailyMarkers {
		if strings.Contains(s, m) {
			return windowDaily
		}
	}
	for _, m := range shortMarkers {
		if strings.Contains(s, m) {
			return windowShort
		}
	}
	return windowUnknown
}

// QuotaSignal reports whether the provider said the credential's daily quota
// or billing allowance is spent, as opposed to a short throttling window.
//
// A 403 counts when it mentions billing. A 429 counts only for a daily quota:
// a QuotaFailure violation naming a per-day window, or, without structured
// details, a RESOURCE_EXHAUSTED message naming one. Per-minute violations and
// RetryInfo mark a throttle, even though Gemini's throttle message also says
// "quota" and "billing".
func (e *ProviderError) QuotaSignal() bool {
	if e == nil {
		return false
	}
	switch e.Status {
	case 403:
		return strings.Contains(strings.ToLower(e.Message), "billing")
	case 429:
	default:
		return false
	}
	short := false
	for _, id := range e.QuotaIDs {
		switch windowOf(id) {
		case windowDaily:
			return true
		case windowShort:
			short = true
		}
	}
	if short || e.RetryInfo || len(e.QuotaIDs) > 0 {
		return false
	}
	return e.Code == "RESOURCE_EXHAUSTED" && windowOf(e.Message) == windowDaily
}

// RetryError ends a chain that ran out of attempts.
type RetryError struct {
	Attempts   int
	MaxRetries int
	Last       error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("gave up after %d attempts (max_retries=%d): %v", e.Attempts, e.MaxRetries, e.Last)
}

// Unwrap exposes domain.ErrMaxRetriesExceeded and the last attempt error.
func (e *RetryError) Unwrap() []error { return []error{domain.ErrMaxRetriesExceeded, e.Last} }

// errorBody is the google.rpc.Status envelope of failed calls.
type errorBody struct {
	Error struct {
		Code    int           `json:"code"`
		Message string        `json:"message"`
		Status  string        `json:"status"`
		Details []errorDetail `json:"details"`
	} `json:"error"`
}

// errorDetail covers the QuotaFailure and RetryInfo detail shapes.
type errorDetail struct {
	Type       string `json:"@type"`
	RetryDelay string `json:"retryDelay"`
	Violations []struct {
		QuotaMetric string `json:"quotaMetric"`
		QuotaID     string `json:"quotaId"`
	} `json:"violations"`
}

const (
	retryInfoType    = "type.googleapis.com/google.rpc.RetryInfo"
	quotaFailureType = "type.googleapis.com/google.rpc.QuotaFailure"
)

const maxSnippet = 512

func newProviderError(status int, body []byte) *ProviderError {
	pe := &ProviderError{Status: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && (eb.Error.Message != "" || eb.Error.Status != "") {
		pe.Code = eb.Error.Status
		pe.Message = eb.Error.Message
		for _, d := range eb.Error.Details {
			switch d.Type {
			case retryInfoType:
				pe.RetryInfo = true
			case quotaFailureType:
				for _, v := range d.Violations {
					id := v.QuotaID
					if id == "" {
						id = v.QuotaMetric
					}
					if id != "" {
						pe.QuotaIDs = append(pe.QuotaIDs, id)
					}
				}
			}
		}
		return pe
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}
	pe.Message = snippet
	return pe
}

// classify maps an HTTP status and body to an attempt outcome.
func classify(status int, body []byte) (domain.AttemptOutcome, *ProviderError) {
	if status >= 200 && status < 300 {
		return domain.OutcomeSuccess, nil
	}
	pe := newProviderError(status, body)
	switch {
	case pe.QuotaSignal():
		return domain.OutcomeQuota, pe
	case status == 429:
		return domain.OutcomeThrottled, pe
	default:
		return domain.OutcomePermanent, pe
	}
}
