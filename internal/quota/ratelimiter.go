// Package quota limits how fast each client may call the metadata endpoints.
package quota

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter implements per-client token bucket rate limiting.
type RateLimiter struct {
	mu      sync.Mutex
	rpm     int
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rpm requests per minute per
// client, with bursts up to rpm. rpm=0 means unlimited.
func NewRateLimiter(rpm int) *RateLimiter {
	return &RateLimiter{
		rpm:     rpm,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether a request from client may proceed.
func (rl *RateLimiter) Allow(client string) bool {
	if rl.rpm <= 0 {
		return true // Unlimited
	}
	rl.mu.Lock()
	b := rl.bucket(client)
	rl.mu.Unlock()
	return b.limiter.Allow()
}

// RetryAfter returns the number of seconds until client has a token again.
func (rl *RateLimiter) RetryAfter(client string) int {
	if rl.rpm <= 0 {
		return 0
	}
	rl.mu.Lock()
	b, ok := rl.buckets[client]
	rl.mu.Unlock()
	if !ok {
		return 0
	}

	tokens := b.limiter.Tokens()
	if tokens >= 1 {
		return 0
	}
	seconds := (1 - tokens) / float64(b.limiter.Limit())
	return int(math.Ceil(seconds))
}

// Cleanup removes buckets for clients that haven't been seen recently.
func (rl *RateLimiter) Cleanup(maxAge time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for client, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, client)
			removed++
		}
	}
	return removed
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// bucket returns the client's bucket, creating it full. Callers hold rl.mu.
func (rl *RateLimiter) bucket(client string) *bucket {
	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Limit(float64(rl.rpm)/60.0), rl.rpm),
		}
		rl.buckets[client] = b
	}
	b.lastSeen = time.Now()
	return b
}
