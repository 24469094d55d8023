package signal

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/dkeye/camrelay/internal/domain"
)

// ConnRateLimiter keeps one token bucket per connection. A non-positive
// rate disables limiting.
type ConnRateLimiter struct {
	mu       sync.Mutex
	limiters map[domain.ConnID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewConnRateLimiter(perSecond float64, burst int) *ConnRateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &ConnRateLimiter{
		limiters: make(map[domain.ConnID]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (rl *ConnRateLimiter) Allow(id domain.ConnID) bool {
	rl.mu.Lock()
	lim, ok := rl.limiters[id]
	if !ok {
		lim = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[id] = lim
	}
	rl.mu.Unlock()
	return lim.Allow()
}

func (rl *ConnRateLimiter) Forget(id domain.ConnID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, id)
}
