package safety

import (
	"fmt"
	"sync"
	"time"
)

// Clock provides the time the rate limiter measures windows against.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

const (
	minuteWindow = time.Minute
	secondWindow = time.Second
)

// RateLimiter bounds how many events per key may occur within the trailing
// second and the trailing minute.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	perSecond int
	clock     Clock
	windows   map[string][]time.Time
}

// NewRateLimiter creates a limiter. Both caps must be positive. A nil clock
// uses wall time.
func NewRateLimiter(perMinute, perSecond int, clock Clock) (*RateLimiter, error) {
	if perMinute <= 0 || perSecond <= 0 {
		return nil, fmt.Errorf("%w: rate caps must be positive (per minute %d, per second %d)",
			ErrInvalidConfig, perMinute, perSecond)
	}
	if clock == nil {
		clock = wallClock{}
	}
	return &RateLimiter{
		perMinute: perMinute,
		perSecond: perSecond,
		clock:     clock,
		windows:   make(map[string][]time.Time),
	}, nil
}

// Allow reports whether another event for key fits both windows and, if so,
// records it. A rejected call leaves the window unchanged.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	window := r.prune(key, now)

	recent := 0
	for i := len(window) - 1; i >= 0; i-- {
		if now.Sub(window[i]) >= secondWindow {
			break
		}
		recent++
	}
	if recent >= r.perSecond || len(window) >= r.perMinute {
		return false
	}

	r.windows[key] = append(window, now)
	return true
}

// Count returns the number of events for key within the trailing minute.
func (r *RateLimiter) Count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prune(key, r.clock.Now()))
}

// Reset forgets every recorded event.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.windows = make(map[string][]time.Time)
}

// prune drops timestamps that have left the minute window. Timestamps are
// appended in clock order so the expired ones are a prefix. Caller holds mu.
func (r *RateLimiter) prune(key string, now time.Time) []time.Time {
	window := r.windows[key]
	cut := 0
	for cut < len(window) && now.Sub(window[cut]) >= minuteWindow {
		cut++
	}
	if cut > 0 {
		window = append(window[:0], window[cut:]...)
		if len(window) == 0 {
			delete(r.windows, key)
			return nil
		}
		r.windows[key] = window
	}
	return window
}
