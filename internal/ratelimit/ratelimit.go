// Package ratelimit implements per-key token-bucket rate limiting for
// the /token and /login endpoints, per spec §5 ("Per-IP and per-client
// counters with token-bucket semantics... excess requests return 429
// without leaking validity of credentials").
//
// Grounded on internal/middleware/ratelimit.go's map+mutex+cleanup-
// goroutine pattern, generalized from a gin-coupled per-IP/per-user
// limiter to a transport-agnostic per-key limiter; internal/httpapi
// supplies the key (client IP for /login, client_id for /token).
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/uitsmijter/uitsmijter/internal/middleware"
)

type entry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Limiter rate-limits arbitrary string keys using a token bucket per key.
type Limiter struct {
	limiters map[string]*entry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// New creates a Limiter allowing requestsPerSecond sustained with the
// given burst, per key. A background goroutine periodically evicts
// entries idle longer than middleware.CleanupThreshold, mirroring the
// teacher's cleanupRoutine but by actual idle age rather than a blunt
// map-size reset.
func New(requestsPerSecond float64, burst int) *Limiter {
	l := &Limiter{
		limiters: make(map[string]*entry),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
	go l.cleanupLoop(middleware.CleanupInterval, middleware.CleanupThreshold)
	return l
}

func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.limiters[key]
	if exists {
		e.lastUsed = time.Now()
		return e.limiter
	}

	e = &entry{limiter: rate.NewLimiter(l.rate, l.burst), lastUsed: time.Now()}
	l.limiters[key] = e
	return e.limiter
}

// Allow reports whether a request keyed by key is permitted right now.
func (l *Limiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

func (l *Limiter) cleanupLoop(interval, idleThreshold time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for now := range ticker.C {
		l.mu.Lock()
		for key, e := range l.limiters {
			if now.Sub(e.lastUsed) > idleThreshold {
				delete(l.limiters, key)
			}
		}
		l.mu.Unlock()
	}
}
