package api

import (
	"sync"
	"time"
)

type limiterEntry struct {
	count       int
	windowStart time.Time
}

// attemptLimiter is a fixed-window counter per key.
type attemptLimiter struct {
	mu      sync.Mutex
	entries map[string]limiterEntry
	limit   int
	window  time.Duration
	now     func() time.Time
}

func newAttemptLimiter(limit int, window time.Duration) *attemptLimiter {
	return &attemptLimiter{
		entries: make(map[string]limiterEntry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *attemptLimiter) allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > 4096 {
		for k, e := range l.entries {
			if now.Sub(e.windowStart) >= l.window {
				delete(l.entries, k)
			}
		}
	}

	entry, exists := l.entries[key]
	if !exists || now.Sub(entry.windowStart) >= l.window {
		l.entries[key] = limiterEntry{count: 1, windowStart: now}
		return true
	}
	if entry.count >= l.limit {
		return false
	}
	entry.count++
	l.entries[key] = entry
	return true
}
