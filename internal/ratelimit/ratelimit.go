// Package ratelimit provides per-tenant token buckets for the lead-search
// API. Buckets are created lazily on first use and live for the process
// lifetime; a burst allowance absorbs short spikes.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter hands out per-key token buckets.
type Limiter struct {
	perMinute int
	burst     int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// New creates a limiter allowing perMinute requests per key with the given
// burst. Non-positive values fall back to 30/min with burst 10.
func New(perMinute, burst int) *Limiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 10
	}
	return &Limiter{
		perMinute: perMinute,
		burst:     burst,
		buckets:   make(map[string]*rate.Limiter),
		nowFunc:   time.Now,
	}
}

// Allow consumes one token for key. When the bucket is empty it reports
// false and the time at which the next token becomes available, so callers
// can surface a Retry-After.
func (l *Limiter) Allow(key string) (bool, time.Time) {
	bucket := l.bucket(key)
	now := l.nowFunc()

	r := bucket.ReserveN(now, 1)
	if !r.OK() {
		return false, now.Add(time.Minute)
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		// Not allowed now; give the token back.
		r.CancelAt(now)
		return false, now.Add(delay)
	}
	return true, time.Time{}
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.burst)
		l.buckets[key] = b
	}
	return b
}
