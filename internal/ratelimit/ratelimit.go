// Package ratelimit provides a sliding-window rate limiter used to slow
// down credential-guessing on the login endpoint.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks request timestamps per key inside a sliding window.
// It is safe for concurrent use.
type Limiter struct {
	requests map[string][]time.Time
	window   time.Duration
	limit    int
	mutex    sync.Mutex

	now func() time.Time
}

// New constructs a Limiter allowing limit events per window for each key.
func New(window time.Duration, limit int) *Limiter {
	return &Limiter{
		requests: make(map[string][]time.Time),
		window:   window,
		limit:    limit,
		now:      time.Now,
	}
}

// Allow records an attempt for key and reports whether it is within the
// configured limit. Attempts older than the window are discarded.
func (l *Limiter) Allow(key string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	valid := l.requests[key][:0]
	for _, at := range l.requests[key] {
		if at.After(windowStart) {
			valid = append(valid, at)
		}
	}

	if len(valid) >= l.limit {
		l.requests[key] = valid
		return false
	}

	l.requests[key] = append(valid, now)
	return true
}

// Cleanup drops keys whose attempts have all aged out of the window.
// Call it periodically if the key space is unbounded.
func (l *Limiter) Cleanup() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	cutoff := l.now().Add(-l.window)
	for key, attempts := range l.requests {
		valid := attempts[:0]
		for _, at := range attempts {
			if at.After(cutoff) {
				valid = append(valid, at)
			}
		}
		if len(valid) == 0 {
			delete(l.requests, key)
		} else {
			l.requests[key] = valid
		}
	}
}
