package ratelimit

import (
	"sync"
	"time"
)

type window struct {
	hits []time.Time
}

// Limiter is a keyed sliding-window request budget.
type Limiter struct {
	mu     sync.Mutex
	m      map[string]*window
	limit  int
	period time.Duration
	now    func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter admitting limit requests per period and key.
func New(limit int, period time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		m:      make(map[string]*window),
		limit:  limit,
		period: period,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records one request for key if the window has room.
// When it does not, resetAt is the moment the oldest hit leaves the window.
func (l *Limiter) Allow(key string) (ok bool, resetAt time.Time) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.m[key]
	if !exists {
		w = &window{}
		l.m[key] = w
	}

	cutoff := now.Add(-l.period)
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	w.hits = w.hits[i:]

	if len(w.hits) >= l.limit {
		return false, w.hits[0].Add(l.period)
	}
	w.hits = append(w.hits, now)
	return true, time.Time{}
}

// Limit returns the number of requests admitted per period and key.
func (l *Limiter) Limit() int { return l.limit }

// Remaining returns how many requests key may still make in the current window.
func (l *Limiter) Remaining(key string) int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.m[key]
	if !ok {
		return l.limit
	}
	cutoff := now.Add(-l.period)
	n := 0
	for _, h := range w.hits {
		if h.After(cutoff) {
			n++
		}
	}
	return l.limit - n
}
