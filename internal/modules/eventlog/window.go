package eventlog

import (
	"sync"
	"time"
)

// joinWindow counts hits inside a trailing window.
type joinWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func newJoinWindow(window time.Duration) *joinWindow {
	return &joinWindow{window: window}
}

// Add records a hit at now and returns the hits still inside the window.
func (w *joinWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.expireLocked(now)
	w.hits = append(w.hits, now)
	return len(w.hits)
}

func (w *joinWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.expireLocked(now)
	return len(w.hits)
}

func (w *joinWindow) expireLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for idx < len(w.hits) && !w.hits[idx].After(cutoff) {
		idx++
	}
	w.hits = w.hits[idx:]
}
