package rate

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultMaxTrackedKeys = 100_000

// Limiter limits operations per key
type Limiter interface {
	Allow(key string) (bool, error)
}

// localRateLimiter keeps a token bucket per key in memory. Buckets that have
// fully refilled are indistinguishable from new ones, so they are dropped once
// the tracked key count reaches its cap.
type localRateLimiter struct {
	limit   rate.Limit
	burst   int
	maxKeys int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLocalRateLimiter returns an in memory limiter allowing perSecond
// operations per key, with bursts of up to one second's worth.
func NewLocalRateLimiter(perSecond float64) Limiter {
	return newLocalRateLimiter(perSecond, defaultMaxTrackedKeys)
}

func newLocalRateLimiter(perSecond float64, maxKeys int) *localRateLimiter {
	return &localRateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    int(math.Max(1, math.Ceil(perSecond))),
		maxKeys:  maxKeys,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow implements Limiter.Allow
func (l *localRateLimiter) Allow(key string) (bool, error) {
	return l.allowAt(key, time.Now()), nil
}

func (l *localRateLimiter) allowAt(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= l.maxKeys {
			l.pruneLocked(now)
		}

		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}

	return limiter.AllowN(now, 1)
}

func (l *localRateLimiter) pruneLocked(now time.Time) {
	for key, limiter := range l.limiters {
		if limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.limiters, key)
		}
	}
}

// NoLimiter never limits operations
type NoLimiter struct {
}

// Allow implements Limiter.Allow
func (n *NoLimiter) Allow(_ string) (bool, error) {
	return true, nil
}
