package usecase

import "time"

// Test hooks for the unexported clocks and slug suffix source.

func (s PostService) WithClock(now func() time.Time, suffix func() string) PostService {
	s.now, s.suffix = now, suffix
	return s
}

func (s TrackingService) WithClock(now func() time.Time) TrackingService {
	s.now = now
	return s
}

func (s AnalyticsService) WithClock(now func() time.Time) AnalyticsService {
	s.now = now
	return s
}

func (f *Flows) WithClock(now func() time.Time) *Flows {
	f.now = now
	return f
}

func (p *ContentPipeline) WithClock(now func() time.Time) *ContentPipeline {
	p.now = now
	return p
}

var Digest = digest
