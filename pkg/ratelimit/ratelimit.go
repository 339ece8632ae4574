// Package ratelimit provides the per-source-address admission limiter
// used by the HTTP surface: 20 POSTs/min to /research, 60 requests/min to
// the /history routes.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter admits requests from a key (typically a client address) against
// a shared rate, allocating one token-bucket limiter per key on first
// use and reusing it afterward.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	ratePerMinute int
	burst         int
}

// New constructs a Limiter whose per-key token bucket holds ratePerMinute
// tokens and refills one token every minute/ratePerMinute. A burst of
// ratePerMinute requests is admitted at once; it is not a strict rolling
// window, so a key can be admitted up to about twice ratePerMinute
// requests within one minute (the full burst plus the refill).
func New(ratePerMinute int) *Limiter {
	return &Limiter{
		limiters:      make(map[string]*rate.Limiter),
		ratePerMinute: ratePerMinute,
		burst:         ratePerMinute,
	}
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.ratePerMinute)), l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Allow reports whether a request from key may proceed now. When it
// returns false, retryAfter is the caller's suggested wait before
// retrying.
func (l *Limiter) Allow(key string) (allowed bool, retryAfter time.Duration) {
	lim := l.limiterFor(key)
	res := lim.ReserveN(time.Now(), 1)
	if !res.OK() {
		return false, time.Minute
	}
	delay := res.Delay()
	if delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}
