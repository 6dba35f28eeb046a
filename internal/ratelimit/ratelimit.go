// Package ratelimit holds per-client counters in memory: a fixed window
// request limiter and a failed-login lockout. Nothing survives a restart.
package ratelimit

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type window struct {
	start time.Time
	count int
}

// Limiter allows max requests per key in each fixed window.
type Limiter struct {
	mu      sync.Mutex
	buckets *cache.Cache
	max     int
	period  time.Duration
	now     func() time.Time
}

func NewLimiter(max int, period time.Duration) *Limiter {
	return &Limiter{
		buckets: cache.New(period, 2*period),
		max:     max,
		period:  period,
		now:     time.Now,
	}
}

// Allow counts a request for key. When the window is exhausted it returns
// false and the time left until the window resets.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.get(key)
	if !ok || !now.Before(w.start.Add(l.period)) {
		w = window{start: now}
	}
	if w.count >= l.max {
		return false, w.start.Add(l.period).Sub(now)
	}
	w.count++
	l.buckets.Set(key, w, w.start.Add(l.period).Sub(now))
	return true, 0
}

func (l *Limiter) get(key string) (window, bool) {
	v, ok := l.buckets.Get(key)
	if !ok {
		return window{}, false
	}
	return v.(window), true
}

type attempts struct {
	first       time.Time
	failures    int
	lockedUntil time.Time
}

// Lockout locks a key after max consecutive failures inside the cooldown
// window, for the length of the cooldown.
type Lockout struct {
	mu       sync.Mutex
	entries  *cache.Cache
	max      int
	cooldown time.Duration
	now      func() time.Time
}

func NewLockout(max int, cooldown time.Duration) *Lockout {
	return &Lockout{
		entries:  cache.New(cooldown, cooldown),
		max:      max,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Locked reports whether key is locked and for how much longer.
func (l *Lockout) Locked(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.get(key)
	if !ok {
		return false, 0
	}
	now := l.now()
	if now.Before(a.lockedUntil) {
		return true, a.lockedUntil.Sub(now)
	}
	if !a.lockedUntil.IsZero() {
		// Lock elapsed; the client starts over.
		l.entries.Delete(key)
	}
	return false, 0
}

// Fail records a failed attempt and reports whether it locked the key.
func (l *Lockout) Fail(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	a, ok := l.get(key)
	if !ok || !now.Before(a.first.Add(l.cooldown)) || (!a.lockedUntil.IsZero() && !now.Before(a.lockedUntil)) {
		a = attempts{first: now}
	}
	if now.Before(a.lockedUntil) {
		return true
	}
	a.failures++
	ttl := a.first.Add(l.cooldown).Sub(now)
	if a.failures >= l.max {
		a.lockedUntil = now.Add(l.cooldown)
		ttl = l.cooldown
	}
	l.entries.Set(key, a, ttl)
	return !a.lockedUntil.IsZero()
}

// Remaining returns how many failures key may still make before locking.
func (l *Lockout) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.get(key)
	if !ok || !l.now().Before(a.first.Add(l.cooldown)) {
		return l.max
	}
	if r := l.max - a.failures; r > 0 {
		return r
	}
	return 0
}

// Reset clears the failure count after a successful login.
func (l *Lockout) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries.Delete(key)
}

func (l *Lockout) get(key string) (attempts, bool) {
	v, ok := l.entries.Get(key)
	if !ok {
		return attempts{}, false
	}
	return v.(attempts), true
}
