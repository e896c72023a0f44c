// ABOUTME: Per-client token bucket rate limiting for API requests
// ABOUTME: Buckets refill at a configured requests-per-minute rate

package auth

import (
	"sync"
	"time"
)

// bucket tracks remaining capacity for a single client.
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter bounds request rates per client using token buckets. A
// client may burst up to Burst requests, then sustain PerMinute
// requests per minute.
type RateLimiter struct {
	perMinute float64
	burst     float64

	mu      sync.Mutex
	buckets map[string]*bucket

	// now is swappable for tests.
	now func() time.Time
}

// NewRateLimiter creates a limiter allowing perMinute sustained requests
// with a burst ceiling. A non-positive perMinute disables limiting.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		perMinute: float64(perMinute),
		burst:     float64(burst),
		buckets:   make(map[string]*bucket),
		now:       time.Now,
	}
}

// Allow reports whether the client may make another request now.
func (rl *RateLimiter) Allow(clientID string) bool {
	if rl.perMinute <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[clientID]
	if !ok {
		b = &bucket{tokens: rl.burst, lastSeen: now}
		rl.buckets[clientID] = b
	}

	elapsed := now.Sub(b.lastSeen).Minutes()
	b.tokens += elapsed * rl.perMinute
	if b.tokens > rl.burst {
		b.tokens = rl.burst
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Prune drops buckets idle longer than maxAge to bound memory.
func (rl *RateLimiter) Prune(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxAge)
	for id, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, id)
		}
	}
}
