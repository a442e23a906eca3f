package prompt

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	prompt  Prompt
	expires time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

func (s *MemoryStore) WithClock(now func() time.Time) {
	s.now = now
}

func (s *MemoryStore) Put(_ context.Context, p Prompt, ttl time.Duration) (string, error) {
	id := newID()
	s.mu.Lock()
	s.entries[id] = entry{prompt: p, expires: s.now().Add(ttl)}
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) Take(_ context.Context, id string) (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return Prompt{}, ErrExpired
	}
	delete(s.entries, id)
	if !s.now().Before(e.expires) {
		return Prompt{}, ErrExpired
	}
	return e.prompt, nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
