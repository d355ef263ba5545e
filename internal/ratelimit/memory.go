package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowCounter struct {
	window int64
	count  int
}

// MemoryLimiter implements a fixed-window in-memory rate limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*windowCounter
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*windowCounter),
	}
}

// Allow checks whether the request fits within the current second's window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	sec := now.Unix()
	reset := time.Unix(sec+1, 0).UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	counter := l.windows[key]
	if counter == nil {
		counter = &windowCounter{window: sec}
		l.windows[key] = counter
	}
	if counter.window != sec {
		counter.window = sec
		counter.count = 0
	}
	if counter.count >= limit {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	counter.count++
	return Result{Allowed: true, Remaining: limit - counter.count, Reset: reset}, nil
}
