// Package ratelimit provides a fixed-window rate limiter for a single
// client, used to police websocket feed subscribers.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a fixed-window rate limiter for a single entity.
type Limiter struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
	rate        int
	window      time.Duration
}

// New creates a Limiter that allows rate requests per window.
func New(rate int, window time.Duration) *Limiter {
	return &Limiter{
		rate:        rate,
		window:      window,
		windowStart: time.Now(),
	}
}

// Allow returns true if the request is within the rate limit.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(time.Now())
	l.count++
	return l.count <= l.rate
}

// Remaining returns how many requests are left in the current window.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(time.Now())
	if l.count >= l.rate {
		return 0
	}
	return l.rate - l.count
}

// roll resets the window if it has elapsed. Caller holds the lock.
func (l *Limiter) roll(now time.Time) {
	if now.Sub(l.windowStart) > l.window {
		l.count = 0
		l.windowStart = now
	}
}
