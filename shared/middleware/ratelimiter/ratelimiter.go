// Package ratelimiter keeps one token bucket per key.
package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter *rate.Limiter
	timer   *time.Timer
}

// KeyedLimiter keeps one bucket per key. A bucket unused for expiration is dropped.
type KeyedLimiter struct {
	mu         sync.Mutex
	entries    map[string]*entry
	rate       rate.Limit
	burst      int
	expiration time.Duration
	now        func() time.Time
}

// New creates a limiter refilling r tokens per second up to burst.
func New(r rate.Limit, burst int, expiration time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		entries:    make(map[string]*entry),
		rate:       r,
		burst:      burst,
		expiration: expiration,
		now:        time.Now,
	}
}

// Allow takes one token from key's bucket.
func (l *KeyedLimiter) Allow(key string) bool {
	return l.limiter(key).AllowN(l.now(), 1)
}

func (l *KeyedLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.entries[key] = e
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(l.expiration, func() { l.forget(key, e) })
	return e.limiter
}

func (l *KeyedLimiter) forget(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// the key may have been recreated since the timer fired
	if l.entries[key] == e {
		delete(l.entries, key)
	}
}

// Len is the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Stop cancels pending expirations.
func (l *KeyedLimiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
}
