package giveaway

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pruneThreshold bounds the limiter map; idle limiters are dropped past it.
const pruneThreshold = 4096

// cooldown is a best-effort per-user join throttle shared by all giveaways.
// State lives in memory only and is lost on restart.
type cooldown struct {
	mu       sync.Mutex
	window   time.Duration
	limiters map[string]*rate.Limiter
}

func newCooldown(window time.Duration) *cooldown {
	return &cooldown{
		window:   window,
		limiters: make(map[string]*rate.Limiter),
	}
}

// allow consumes the user's token at now. When the token is not yet
// available it returns false and the remaining wait.
func (c *cooldown) allow(userID string, now time.Time) (bool, time.Duration) {
	if c == nil || c.window <= 0 {
		return true, 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lim, ok := c.limiters[userID]
	if !ok {
		if len(c.limiters) >= pruneThreshold {
			c.prune(now)
		}
		lim = rate.NewLimiter(rate.Every(c.window), 1)
		c.limiters[userID] = lim
	}

	r := lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// prune drops limiters that are full again, i.e. users idle for a whole window.
func (c *cooldown) prune(now time.Time) {
	for id, lim := range c.limiters {
		if lim.TokensAt(now) >= 1 {
			delete(c.limiters, id)
		}
	}
}
