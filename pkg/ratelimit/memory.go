package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemorySlidingWindow is a per-process limiter for single-instance setups
// and for running without Redis.
type MemorySlidingWindow struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemorySlidingWindow constructs an in-process limiter.
func NewMemorySlidingWindow(limit int, window time.Duration) *MemorySlidingWindow {
	limit, window = normalize(limit, window)
	return &MemorySlidingWindow{limit: limit, window: window, hits: make(map[string][]time.Time), now: time.Now}
}

// Allow records the request and reports whether it is within the limit.
func (l *MemorySlidingWindow) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) > l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	hits := prune(l.hits[key], cutoff)
	if len(hits) >= l.limit {
		l.hits[key] = hits
		return Result{Allowed: false, Limit: l.limit, RetryAfter: hits[0].Add(l.window).Sub(now)}, nil
	}
	hits = append(hits, now)
	l.hits[key] = hits
	return Result{Allowed: true, Limit: l.limit, Remaining: l.limit - len(hits)}, nil
}

func (l *MemorySlidingWindow) sweep(cutoff time.Time) {
	for key, hits := range l.hits {
		if kept := prune(hits, cutoff); len(kept) == 0 {
			delete(l.hits, key)
		} else {
			l.hits[key] = kept
		}
	}
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
