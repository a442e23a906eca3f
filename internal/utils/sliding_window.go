package utils

import (
	"sync"
	"time"
)

type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	w.hits = append(w.hits, now)
	return len(w.hits)
}

// AddIfUnder records a hit only while fewer than limit hits are in the
// window.
func (w *SlidingWindow) AddIfUnder(now time.Time, limit int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	if len(w.hits) >= limit {
		return false
	}
	w.hits = append(w.hits, now)
	return true
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now)
	return len(w.hits)
}

func (w *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
}

// KeyedLimiter allows at most limit events per key inside the window.
type KeyedLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*SlidingWindow
}

func NewKeyedLimiter(limit int, window time.Duration) *KeyedLimiter {
	return &KeyedLimiter{limit: limit, window: window, windows: make(map[string]*SlidingWindow)}
}

// Allow records the event when it fits under the limit. A non-positive
// limit disables throttling.
func (l *KeyedLimiter) Allow(key string, now time.Time) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok {
		w = NewSlidingWindow(l.window)
		l.windows[key] = w
	}
	return w.AddIfUnder(now, l.limit)
}

// Prune forgets keys with no hits left in the window.
func (l *KeyedLimiter) Prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if w.Count(now) == 0 {
			delete(l.windows, key)
		}
	}
}

func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
