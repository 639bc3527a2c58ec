package moderation

import (
	"sync"
	"time"
)

// CooldownStore remembers when each moderator last muted someone.
type CooldownStore interface {
	Last(moderatorID string) (time.Time, bool)
	Set(moderatorID string, at time.Time)
	Clear(moderatorID string)
}

type MemoryCooldowns struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryCooldowns() *MemoryCooldowns {
	return &MemoryCooldowns{last: make(map[string]time.Time)}
}

func (c *MemoryCooldowns) Last(moderatorID string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.last[moderatorID]
	return at, ok
}

func (c *MemoryCooldowns) Set(moderatorID string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[moderatorID] = at
}

func (c *MemoryCooldowns) Clear(moderatorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, moderatorID)
}

// remaining is how long moderatorID still has to wait, or zero.
func remaining(store CooldownStore, moderatorID string, window time.Duration, now time.Time) time.Duration {
	last, ok := store.Last(moderatorID)
	if !ok {
		return 0
	}
	if left := last.Add(window).Sub(now); left > 0 {
		return left
	}
	return 0
}
