package limiter

import (
	"context"
	"time"
)

// Store holds and updates rate-limit state.
type Store interface {
	// Allow checks whether one more event for key is allowed under a token
	// bucket of `rate` tokens regenerating fully every `period` seconds,
	// consuming a token when it is. The update must be atomic per key.
	Allow(ctx context.Context, key string, rate float64, period float64) (bool, error)
}

// limiterState holds the bucket state for a single key in the memory store.
type limiterState struct {
	allowance float64   // current number of tokens
	lastCheck time.Time // timestamp of the last check
}
