package gemini

import (
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// attemptBackOff hands backoff.Retry the wait chosen by the last failed
// attempt. The chain decides the wait from the failure kind and attempt
// index, so the schedule is not a fixed curve.
type attemptBackOff struct {
	next  time.Duration
	armed bool
}

func (b *attemptBackOff) arm(d time.Duration) {
	b.next = d
	b.armed = true
}

func (b *attemptBackOff) NextBackOff() time.Duration {
	if !b.armed {
		return backoff.Stop
	}
	b.armed = false
	return b.next
}

func (b *attemptBackOff) Reset() {
	b.next = 0
	b.armed = false
}
