// Package ratelimiter paces outbound provider calls per credential. The
// Redis token bucket shares budgets across replicas; the local limiter is
// the single-process fallback when Redis is not configured.
package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

// Limiter decides whether cost tokens may be spent on key now. When denied,
// retryAfter estimates when enough tokens will have refilled.
type Limiter interface {
	Allow(ctx context.Context, key string, cost int64) (allowed bool, retryAfter time.Duration, err error)
}

// BucketConfig describes a token bucket.
type BucketConfig struct {
	Capacity   int64
	RefillRate float64 // tokens per second
}

// Enabled reports whether the bucket limits anything.
func (b BucketConfig) Enabled() bool { return b.Capacity > 0 && b.RefillRate > 0 }

// NewBucketConfigFromPerMinute builds a bucket allowing perMinute calls with a
// burst of the same size.
func NewBucketConfigFromPerMinute(perMinute int) BucketConfig {
	if perMinute <= 0 {
		return BucketConfig{}
	}
	return BucketConfig{
		Capacity:   int64(perMinute),
		RefillRate: float64(perMinute) / 60.0,
	}
}

// Pacer blocks until a limiter admits a call.
type Pacer struct {
	Limiter Limiter
	// MaxWait caps the total time spent waiting for one call.
	MaxWait time.Duration
	// Sleep waits for d or until ctx is done; injectable for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer returns a Pacer over l with a one minute wait cap.
func NewPacer(l Limiter) *Pacer {
	return &Pacer{Limiter: l, MaxWait: time.Minute, Sleep: sleepCtx}
}

// Wait returns once key may spend one token. Limiter errors fail open.
func (p *Pacer) Wait(ctx context.Context, key string) error {
	if p == nil || p.Limiter == nil {
		return nil
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var waited time.Duration
	for {
		allowed, retryAfter, err := p.Limiter.Allow(ctx, key, 1)
		if err != nil || allowed {
			return nil
		}
		if retryAfter <= 0 {
			retryAfter = 100 * time.Millisecond
		}
		if p.MaxWait > 0 && waited+retryAfter > p.MaxWait {
			return fmt.Errorf("op=ratelimiter.Wait: %w: %s would wait more than %s", domain.ErrRateLimited, key, p.MaxWait)
		}
		if err := sleep(ctx, retryAfter); err != nil {
			return fmt.Errorf("op=ratelimiter.Wait: %w", err)
		}
		waited += retryAfter
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
