package slack

import (
	"context"
	"sync"
	"time"
)

// rateClock общий дедлайн "retry after": после rate limited ждут все вызовы шлюза.
type rateClock struct {
	mu    sync.Mutex
	until time.Time
}

func newRateClock() *rateClock {
	return &rateClock{}
}

// extend сдвигает дедлайн, но никогда не приближает его.
func (c *rateClock) extend(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if next := time.Now().Add(d); next.After(c.until) {
		c.until = next
	}
}

func (c *rateClock) deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.until
}

func (c *rateClock) wait(ctx context.Context) error {
	for {
		d := time.Until(c.deadline())
		if d <= 0 {
			return nil
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
