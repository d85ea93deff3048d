// Package ratelimit throttles calls to upstream market data APIs with
// per-source token buckets.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

func (b *bucket) refill(now time.Time, capacity, perSec float64) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * perSec
	if b.tokens > capacity {
		b.tokens = capacity
	}
	b.last = now
}

// Limiter tracks one token bucket per source name. Capacity and refill
// rate are supplied on each call so every source can carry its own quota.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Allow consumes one token for the named source. A false return means the
// caller should skip this poll cycle rather than queue it.
func (l *Limiter) Allow(name string, capacity, refillPerSec float64) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[name]
	if !ok {
		b = &bucket{tokens: capacity, last: now}
		l.buckets[name] = b
	}
	b.refill(now, capacity, refillPerSec)

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
