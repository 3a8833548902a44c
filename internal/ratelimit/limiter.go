// Package ratelimit provides sliding window admission control for
// public submission endpoints.
package ratelimit

import (
	"sync"
	"time"
)

// sweepEvery determines after how many admissions the limiter scans
// for idle keys so memory stays bounded.
const sweepEvery = 1024

// Limiter admits requests based on a sliding window per key. A sliding
// window is used instead of fixed buckets because fixed buckets allow
// double the limit in a burst across a bucket edge.
//
// Limiter state is advisory. It only weakens abuse protection when
// lost, it is never required for correctness, so a cold limiter starts
// out admitting everything.
//
// Limiter is safe for concurrent use.
type Limiter struct {
	mutex   sync.Mutex
	entries map[string]*entry
	admits  int

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

type entry struct {
	// stamps are the admission instants inside the trailing window,
	// ordered oldest first.
	stamps []time.Time
	// window as provided on the last admission attempt, used to decide
	// when the whole entry has gone idle.
	window time.Duration
}

// NewLimiter creates an empty limiter.
func NewLimiter() *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		NowFunc: time.Now,
	}
}

// Admit reports whether a request for key is admitted given at most
// limit admissions per trailing window. Admitted requests are recorded,
// rejected requests are not and therefore don't extend the window.
//
// Different route classes should use their own key namespace, for
// example "contact|192.0.2.1".
func (l *Limiter) Admit(key string, limit int, window time.Duration) bool {
	now := l.NowFunc()

	l.mutex.Lock()
	defer l.mutex.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}

	e.window = window
	e.prune(now)

	if len(e.stamps) >= limit {
		return false
	}

	e.stamps = append(e.stamps, now)

	l.admits++
	if l.admits >= sweepEvery {
		l.admits = 0
		l.sweep(now)
	}

	return true
}

// prune drops stamps that have fallen outside the trailing window.
func (e *entry) prune(now time.Time) {
	cutoff := now.Add(-e.window)

	i := 0
	for i < len(e.stamps) && !e.stamps[i].After(cutoff) {
		i++
	}

	if i > 0 {
		e.stamps = append(e.stamps[:0], e.stamps[i:]...)
	}
}

// sweep removes keys that have been idle for at least their window.
// The caller must hold the mutex.
func (l *Limiter) sweep(now time.Time) {
	for key, e := range l.entries {
		e.prune(now)
		if len(e.stamps) == 0 {
			delete(l.entries, key)
		}
	}
}
