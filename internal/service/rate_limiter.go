package service

import (
	"sync"
	"time"
)

// RateLimiter limita la frecuencia de operaciones por clave (email, user id).
type RateLimiter interface {
	Allow(key string) bool
}

// Pruner libera entradas vencidas de stores en memoria.
type Pruner interface {
	Prune(now time.Time) int
}

type memoryRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
	now    func() time.Time
}

// NewMemoryRateLimiter crea un rate limiter de ventana deslizante en memoria.
func NewMemoryRateLimiter(window time.Duration, max int) RateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryRateLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *memoryRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	kept := l.recent(key, now)
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

func (l *memoryRateLimiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key := range l.hits {
		kept := l.recent(key, now)
		if len(kept) == 0 {
			delete(l.hits, key)
			removed++
			continue
		}
		l.hits[key] = kept
	}
	return removed
}

func (l *memoryRateLimiter) recent(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
