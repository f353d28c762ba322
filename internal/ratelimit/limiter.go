// Package ratelimit implements per-client fixed-window request counting.
package ratelimit

import (
	"sync"
	"time"

	"github.com/don-licenciao/MapyChat-web/internal/model"
	"github.com/don-licenciao/MapyChat-web/internal/storage"
)

// evictBatch bounds the lazy cleanup done on each admission.
const evictBatch = 64

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed           bool
	Limit             int
	Remaining         int
	RetryAfterSeconds int
	ResetSeconds      int
}

func (d Decision) Info() model.RateLimitInfo {
	return model.RateLimitInfo{
		Limit:        d.Limit,
		Remaining:    d.Remaining,
		ResetSeconds: d.ResetSeconds,
	}
}

type Limiter struct {
	store storage.Storage
	now   func() time.Time

	mu     sync.RWMutex
	limit  int
	window time.Duration
}

type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func New(store storage.Storage, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		now:    time.Now,
		limit:  limit,
		window: window,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reconfigure swaps the limit and window. Live entries keep their resetAt.
func (l *Limiter) Reconfigure(limit int, window time.Duration) {
	if limit <= 0 || window <= 0 {
		return
	}
	l.mu.Lock()
	l.limit = limit
	l.window = window
	l.mu.Unlock()
}

func (l *Limiter) Settings() (int, time.Duration) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limit, l.window
}

// Admit counts one request for clientID. The check and the increment happen
// inside a single store critical section, so concurrent requests from one
// client never observe the same pre-increment count.
func (l *Limiter) Admit(clientID string) Decision {
	now := l.now()
	limit, window := l.Settings()

	l.store.Evict(now, evictBatch)

	var d Decision
	l.store.Mutate(clientID, func(e *model.RateEntry) *model.RateEntry {
		if e == nil || e.Expired(now) {
			e = &model.RateEntry{Count: 1, ResetAt: now.Add(window)}
			d = Decision{
				Allowed:      true,
				Limit:        limit,
				Remaining:    max(0, limit-1),
				ResetSeconds: ceilSeconds(window),
			}
			return e
		}

		reset := ceilSeconds(e.ResetAt.Sub(now))
		if e.Count >= limit {
			d = Decision{
				Allowed:           false,
				Limit:             limit,
				RetryAfterSeconds: reset,
				ResetSeconds:      reset,
			}
			return e
		}

		e.Count++
		d = Decision{
			Allowed:      true,
			Limit:        limit,
			Remaining:    limit - e.Count,
			ResetSeconds: reset,
		}
		return e
	})
	return d
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
