package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ResetLimiter caps forgot-password attempts per email.
type ResetLimiter interface {
	// Allow reports whether another attempt is permitted for the email.
	Allow(ctx context.Context, email string) (bool, error)
}

// MemoryResetLimiter is a per-process sliding-window limiter. It is only a
// soft guard: each process instance counts independently, so a horizontally
// scaled deployment multiplies the effective limit. Use the redis-backed
// limiter when that matters.
type MemoryResetLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
}

// NewMemoryResetLimiter constructs an in-process limiter.
func NewMemoryResetLimiter(max int, window time.Duration) *MemoryResetLimiter {
	if max <= 0 {
		max = 3
	}
	if window <= 0 {
		window = time.Hour
	}
	return &MemoryResetLimiter{attempts: make(map[string][]time.Time), max: max, window: window}
}

// Allow records an attempt and reports whether it was within the limit.
func (l *MemoryResetLimiter) Allow(_ context.Context, email string) (bool, error) {
	key := strings.ToLower(email)
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.attempts[key][:0]
	for _, ts := range l.attempts[key] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.max {
		l.attempts[key] = recent
		return false, nil
	}

	l.attempts[key] = append(recent, now)
	return true, nil
}
