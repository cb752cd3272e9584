package cache

import (
	"strconv"
	"time"
)

// Guard remembers that a remote endpoint asked us to slow down, so the
// next run fails fast instead of hitting it again while blocked.
type Guard struct {
	svc   CacheService
	key   string
	block time.Duration
	now   func() time.Time
}

// NewGuard creates a guard storing its state under key.
// A nil svc yields a guard that never blocks.
func NewGuard(svc CacheService, key string, block time.Duration) *Guard {
	return &Guard{svc: svc, key: key, block: block, now: time.Now}
}

// Blocked reports whether the endpoint is blocked and for how much longer
func (g *Guard) Blocked() (bool, time.Duration) {
	if g == nil || g.svc == nil {
		return false, 0
	}
	value, err := g.svc.Get(g.key)
	if err != nil {
		return false, 0
	}
	until, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return true, g.block
	}
	remaining := time.Unix(until, 0).Sub(g.now())
	if remaining <= 0 {
		return false, 0
	}
	return true, remaining
}

// Block marks the endpoint as blocked. A positive retryAfter from the
// server overrides the configured block time.
func (g *Guard) Block(retryAfter time.Duration) error {
	if g == nil || g.svc == nil {
		return nil
	}
	d := g.block
	if retryAfter > 0 {
		d = retryAfter
	}
	until := g.now().Add(d).Unix()
	return g.svc.Set(g.key, []byte(strconv.FormatInt(until, 10)), d)
}
