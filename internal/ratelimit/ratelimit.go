// Package ratelimit implements a per-key sliding-window request limiter for
// the pipeline's own entry points.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultSweepInterval = 5 * time.Minute

// LimitError is returned when a key has exhausted its window.
type LimitError struct {
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d requests per %s (retry after %s)", e.Limit, e.Window, e.RetryAfter)
}

// Limiter tracks request timestamps per client key. Entries older than the
// window are pruned lazily on each check; idle keys are evicted by Run.
type Limiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
	sweep  time.Duration
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock injects a time source, used by tests to advance the window.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithSweepInterval overrides how often Run evicts idle keys.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.sweep = d
		}
	}
}

// New creates a Limiter allowing limit requests per window for each key.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
		sweep:  defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one request for key if the key is under the limit, otherwise
// it returns a LimitError carrying a retry hint equal to the window length.
func (l *Limiter) Check(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.hits[key] = recent
		return &LimitError{Limit: l.limit, Window: l.window, RetryAfter: l.window}
	}

	l.hits[key] = append(recent, now)
	return nil
}

// Run periodically evicts keys with no activity inside the window, so the key
// set does not grow without bound. It blocks until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := l.Evict(); evicted > 0 {
				zap.L().Debug("rate limiter evicted idle keys", zap.Int("keys", evicted))
			}
		}
	}
}

// Evict removes keys whose every timestamp has aged out of the window and
// returns how many keys were removed.
func (l *Limiter) Evict() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	evicted := 0
	for key, stamps := range l.hits {
		active := false
		for _, t := range stamps {
			if t.After(cutoff) {
				active = true
				break
			}
		}
		if !active {
			delete(l.hits, key)
			evicted++
		}
	}
	return evicted
}

// Keys returns the number of tracked client keys.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}
