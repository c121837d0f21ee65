package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter throttles login attempts per IP+identifier pair: 5 attempts,
// refilling one every 3 minutes, which works out to the historical 5 tries
// per 15 minutes. Idle entries are evicted so the map does not grow without
// bound.
type LoginLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	idle    time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter creates a limiter allowing burst attempts per key with one
// attempt refilling every interval.
func NewLoginLimiter(interval time.Duration, burst int) *LoginLimiter {
	return &LoginLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Every(interval),
		burst:   burst,
		idle:    time.Duration(burst) * interval,
	}
}

// NewDefaultLoginLimiter returns the production configuration: 5 attempts
// per 15 minutes.
func NewDefaultLoginLimiter() *LoginLimiter {
	return NewLoginLimiter(3*time.Minute, 5)
}

// Allow consumes one attempt for the key and reports whether it was within
// the limit.
func (ll *LoginLimiter) Allow(key string) bool {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	now := time.Now()
	ll.evictLocked(now)

	e, ok := ll.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(ll.limit, ll.burst)}
		ll.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}

// Reset clears the counter for a key after a successful login.
func (ll *LoginLimiter) Reset(key string) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	delete(ll.entries, key)
}

func (ll *LoginLimiter) evictLocked(now time.Time) {
	for key, e := range ll.entries {
		if now.Sub(e.lastSeen) > ll.idle {
			delete(ll.entries, key)
		}
	}
}
