package data

import "time"

// TimeProvider abstracts the clock. Repositories and services take one
// so tests can pin timestamps instead of sleeping.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider is the production clock.
type RealTimeProvider struct{}

// Now returns the system time.
func (RealTimeProvider) Now() time.Time { return time.Now() }

// FixedTimeProvider is a hand-advanced clock for tests.
type FixedTimeProvider struct {
	now time.Time
}

// NewFixedTimeProvider pins the clock to t.
func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{now: t}
}

// Now returns the pinned time.
func (f *FixedTimeProvider) Now() time.Time { return f.now }

// AddTime advances the pinned time by d.
func (f *FixedTimeProvider) AddTime(d time.Duration) { f.now = f.now.Add(d) }
