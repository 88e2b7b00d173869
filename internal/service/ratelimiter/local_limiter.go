package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter keeps one in-process token bucket per key.
type LocalLimiter struct {
	cfg BucketConfig
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewLocalLimiter returns a limiter applying cfg to every key.
func NewLocalLimiter(cfg BucketConfig) *LocalLimiter {
	return &LocalLimiter{cfg: cfg, now: time.Now, buckets: map[string]*rate.Limiter{}}
}

func (l *LocalLimiter) Allow(_ context.Context, key string, cost int64) (bool, time.Duration, error) {
	if l == nil || !l.cfg.Enabled() {
		return true, 0, nil
	}
	if cost <= 0 {
		cost = 1
	}
	l.mu.Lock()
	lim, ok := l.buckets[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.cfg.RefillRate), int(l.cfg.Capacity))
		l.buckets[key] = lim
	}
	l.mu.Unlock()

	now := l.now()
	r := lim.ReserveN(now, int(cost))
	if !r.OK() {
		return false, 0, nil
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d, nil
	}
	return true, 0, nil
}
