package limiter

import (
	"context"
	"sync"
	"time"
)

// memoryStore implements Store using an in-memory map. Inbound posting
// happens on the host side of a single process, so process-local state is
// sufficient.
type memoryStore struct {
	mu    sync.Mutex
	state map[string]limiterState
}

// NewMemoryStore creates a new in-memory rate limit store.
func NewMemoryStore() Store {
	return &memoryStore{
		state: make(map[string]limiterState),
	}
}

// Allow implements the Store interface for memory storage.
func (s *memoryStore) Allow(ctx context.Context, key string, rate float64, period float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	current, exists := s.state[key]

	if !exists {
		// first event for this key, consume one token now
		s.state[key] = limiterState{
			allowance: rate - 1.0,
			lastCheck: now,
		}
		return true, nil
	}

	timePassed := now.Sub(current.lastCheck).Seconds()
	current.lastCheck = now
	current.allowance += timePassed * (rate / period)
	if current.allowance > rate {
		current.allowance = rate // clamp to burst size
	}

	allowed := current.allowance >= 1.0
	if allowed {
		current.allowance -= 1.0
	}

	s.state[key] = current
	return allowed, nil
}
