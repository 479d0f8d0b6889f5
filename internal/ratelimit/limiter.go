// Package ratelimit enforces a per-caller request budget. Each caller gets
// its own token bucket; buckets idle past the TTL are evicted so the map
// does not grow with every caller ever seen.
package ratelimit

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

type Config struct {
	PerMinute int
	Burst     int
	IdleTTL   time.Duration
}

type Limiter struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	callers map[string]*callerBucket
}

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func New(cfg Config, clock clockwork.Clock) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	perMinute := cfg.PerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = perMinute
	}
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &Limiter{
		clock:   clock,
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		idleTTL: idleTTL,
		callers: make(map[string]*callerBucket),
	}
}

// Allow reports whether the caller may proceed and consumes a token when so.
func (l *Limiter) Allow(caller string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.evictStaleLocked(now)

	bucket, ok := l.callers[caller]
	if !ok {
		bucket = &callerBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.callers[caller] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.Allow()
}

// Size reports the number of tracked callers, for tests and introspection.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.callers)
}

func (l *Limiter) evictStaleLocked(now time.Time) {
	for caller, bucket := range l.callers {
		if now.Sub(bucket.lastSeen) > l.idleTTL {
			delete(l.callers, caller)
		}
	}
}
