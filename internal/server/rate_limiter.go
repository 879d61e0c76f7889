package server

import (
	"sync"
	"time"
)

// rateLimiter throttles batch submissions per user with a fixed window.
// Batches are expensive against the remote provider, so the window is
// deliberately coarse.
type rateLimiter struct {
	limit  int
	window time.Duration
	mu     sync.Mutex
	items  map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	windowStart time.Time
	count       int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		items:  make(map[string]*rateLimitEntry),
	}
}

func (r *rateLimiter) Allow(userID string) bool {
	if userID == "" {
		return false
	}

	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.items[userID]
	if entry == nil || now.Sub(entry.windowStart) > r.window {
		entry = &rateLimitEntry{windowStart: now}
		r.items[userID] = entry
	}

	if entry.count >= r.limit {
		return false
	}

	entry.count++
	return true
}
