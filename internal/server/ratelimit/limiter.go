// Package ratelimit throttles HTTP requests with per-key token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleAfter is how long an idle, full bucket is kept.
const staleAfter = 10 * time.Minute

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int           // requests per window
	Remaining  int           // requests left in current window
	ResetAt    time.Time     // when the bucket will be full again
	RetryAfter time.Duration // how long to wait before retrying (0 if allowed)
}

// Limiter manages one token bucket per key.
type Limiter struct {
	requests int
	limit    rate.Limit
	burst    int

	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a limiter allowing requests per window with burst
// capacity. Call Close to stop the background cleanup.
func NewLimiter(requests int, window time.Duration, burst int) *Limiter {
	l := &Limiter{
		requests: requests,
		limit:    rate.Limit(float64(requests) / window.Seconds()),
		burst:    burst,
		buckets:  make(map[string]*bucket),
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow consumes one token for key if available.
func (l *Limiter) Allow(key string) Result {
	now := time.Now()
	lim := l.get(key, now)

	res := lim.ReserveN(now, 1)
	allowed := res.OK() && res.DelayFrom(now) == 0
	if !allowed && res.OK() {
		res.CancelAt(now)
	}

	tokens := lim.TokensAt(now)
	r := Result{
		Allowed:   allowed,
		Limit:     l.requests,
		Remaining: max(int(tokens), 0),
		ResetAt:   now.Add(time.Duration((float64(l.burst) - tokens) / float64(l.limit) * float64(time.Second))),
	}
	if !allowed {
		r.RetryAfter = max(time.Duration(float64(time.Second)/float64(l.limit)), time.Second)
	}
	return r
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.buckets[key]
	if b == nil {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(staleAfter)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			l.cleanup(now)
		case <-l.stop:
			return
		}
	}
}

// cleanup drops buckets that are idle and full; a new bucket is equivalent.
func (l *Limiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > staleAfter && b.limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, key)
		}
	}
}
