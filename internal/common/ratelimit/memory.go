package ratelimit

import (
	"context"
	"sync"
	"time"

	"assistant-workers/internal/models"
)

const sweepEvery = 1024

// MemoryStore keeps windows in process. Suitable for a single worker replica.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]models.RateLimitWindow
	hits    int
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]models.RateLimitWindow),
		now:     time.Now,
	}
}

func (s *MemoryStore) Hit(_ context.Context, actorID string, window time.Duration) (models.RateLimitWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[actorID]
	if !ok || w.Expired(now) {
		w = models.RateLimitWindow{ResetTime: now.Add(window)}
	}
	w.Count++
	s.windows[actorID] = w

	s.hits++
	if s.hits%sweepEvery == 0 {
		for id, win := range s.windows {
			if win.Expired(now) {
				delete(s.windows, id)
			}
		}
	}
	return w, nil
}
