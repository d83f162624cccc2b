package runtime

import (
	"sync"
	"time"
)

// RateLimiter gates a worker's ticks to no more often than UpdatePeriod,
// measured against monotonic time. It is the Go counterpart of the
// original implementation's last-monotonic-time RateLimiter, centralized
// here as a single reusable value each worker owns rather than reimplemented
// ad hoc per collector.
type RateLimiter struct {
	mu         sync.Mutex
	period     time.Duration
	lastUpdate time.Time
	nowFunc    func() time.Time
}

// NewRateLimiter creates a limiter that permits a tick at most once per
// period. The first call to Ready always succeeds.
func NewRateLimiter(period time.Duration) *RateLimiter {
	return &RateLimiter{period: period, nowFunc: time.Now}
}

// Ready reports whether enough time has elapsed since the last permitted
// tick, and if so atomically marks the clock as having advanced.
func (r *RateLimiter) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowFunc()
	if !r.lastUpdate.IsZero() && now.Sub(r.lastUpdate) < r.period {
		return false
	}
	r.lastUpdate = now
	return true
}
