// Package ratelimit implements per-caller admission control over a trailing
// time window.
package ratelimit

import (
	"sync"
	"time"

	"github.com/i474232898/city-env-alerts/internal/common"
)

// Limiter admits at most max calls per identity within window. Old timestamps
// are pruned on each check; there is no background sweep.
type Limiter struct {
	mu     sync.Mutex
	calls  map[string][]time.Time // identity -> admitted call timestamps, oldest first
	max    int
	window time.Duration
	now    common.Clock
}

// New creates a Limiter. A nil clock uses the wall clock.
func New(max int, window time.Duration, clock common.Clock) *Limiter {
	if clock == nil {
		clock = common.SystemClock
	}
	return &Limiter{
		calls:  make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    clock,
	}
}

// Allow reports whether identity may make another call now. Admitted calls are
// recorded; denied calls are not.
func (l *Limiter) Allow(identity string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(identity, now)
	if len(recent) >= l.max {
		return false
	}

	l.calls[identity] = append(recent, now)
	return true
}

// RetryAfter returns how long identity must wait until a slot frees up. It is
// zero when a call would be admitted now.
func (l *Limiter) RetryAfter(identity string) time.Duration {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(identity, now)
	if len(recent) < l.max || len(recent) == 0 {
		return 0
	}

	wait := recent[0].Add(l.window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Remaining returns how many calls identity may still make in the current window.
func (l *Limiter) Remaining(identity string) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	remaining := l.max - len(l.prune(identity, now))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Limit returns the configured per-window maximum.
func (l *Limiter) Limit() int {
	return l.max
}

// prune drops timestamps that fell out of the window. Must hold l.mu.
func (l *Limiter) prune(identity string, now time.Time) []time.Time {
	timestamps, ok := l.calls[identity]
	if !ok {
		return nil
	}

	cutoff := now.Add(-l.window)
	i := 0
	for ; i < len(timestamps); i++ {
		if timestamps[i].After(cutoff) {
			break
		}
	}

	if i == len(timestamps) {
		delete(l.calls, identity)
		return nil
	}
	if i > 0 {
		timestamps = append(timestamps[:0:0], timestamps[i:]...)
		l.calls[identity] = timestamps
	}
	return timestamps
}
