// Package domain defines the entities, ports and error taxonomy of the blog core.
package domain

import (
	"time"
)

// AttemptOutcome classifies a single network attempt of a logical request.
type AttemptOutcome string

const (
	// OutcomeSuccess means the provider answered 2xx with locatable text.
	OutcomeSuccess AttemptOutcome = "success"
	// OutcomeThrottled is an HTTP 429 without an explicit quota signal.
	OutcomeThrottled AttemptOutcome = "throttled"
	// OutcomeNetwork is a connection or transport level failure.
	OutcomeNetwork AttemptOutcome = "network"
	// OutcomeQuota means the provider reported the credential's quota as spent.
	OutcomeQuota AttemptOutcome = "quota"
	// OutcomePermanent is any other failure; the chain stops.
	OutcomePermanent AttemptOutcome = "permanent"
)

// Transient reports whether the outcome is retried after a backoff wait.
func (o AttemptOutcome) Transient() bool {
	return o == OutcomeThrottled || o == OutcomeNetwork
}

// Attempt records one network call of a retry chain. It is never persisted.
type Attempt struct {
	Index      int
	Credential string
	Outcome    AttemptOutcome
	Status     int
	Wait       time.Duration
	Duration   time.Duration
	Err        error
}

// AttemptLog is the ordered attempt history of one logical request.
type AttemptLog []Attempt

// Calls returns the number of network calls made.
func (l AttemptLog) Calls() int { return len(l) }

// Waits returns the backoff waits inserted between attempts.
func (l AttemptLog) Waits() []time.Duration {
	out := make([]time.Duration, 0, len(l))
	for _, a := range l {
		if a.Wait > 0 {
			out = append(out, a.Wait)
		}
	}
	return out
}

// RetryPolicy bounds a retry chain and scales waits by attempt index.
type RetryPolicy struct {
	// MaxRetries caps the number of network calls for one logical request.
	MaxRetries int
	// RateLimitBase is multiplied by (attempt+1) after a throttled attempt.
	RateLimitBase time.Duration
	// NetworkBase is multiplied by (attempt+1) after a network failure.
	NetworkBase time.Duration
}

// DefaultRetryPolicy returns the provider defaults: 3 calls, 15s/2s bases.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		RateLimitBase: 15 * time.Second,
		NetworkBase:   2 * time.Second,
	}
}

// Normalize fills zero fields with defaults.
func (p RetryPolicy) Normalize() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxRetries <= 0 {
		p.MaxRetries = d.MaxRetries
	}
	if p.RateLimitBase <= 0 {
		p.RateLimitBase = d.RateLimitBase
	}
	if p.NetworkBase <= 0 {
		p.NetworkBase = d.NetworkBase
	}
	return p
}

// Wait returns the delay before the attempt following attemptIndex.
// Non-transient outcomes never wait.
func (p RetryPolicy) Wait(outcome AttemptOutcome, attemptIndex int) time.Duration {
	if attemptIndex < 0 {
		attemptIndex = 0
	}
	switch outcome {
	case OutcomeThrottled:
		return p.RateLimitBase * time.Duration(attemptIndex+1)
	case OutcomeNetwork:
		return p.NetworkBase * time.Duration(attemptIndex+1)
	default:
		return 0
	}
}

// Exhausted reports whether the chain must stop after attemptIndex.
func (p RetryPolicy) Exhausted(attemptIndex int) bool {
	return attemptIndex+1 >= p.MaxRetries
}
