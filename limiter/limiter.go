// Package limiter rate-limits inbound extension calls with a token bucket
// per (scope, extension) key, protecting a runner's queue from a page
// script flooding it.
package limiter

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrLimited is returned by hosts when an inbound message is dropped
// because its runner's rate limit was exceeded.
var ErrLimited = errors.New("limiter: message rate limit exceeded")

// Rule limits calls into a single extension. Rate events are allowed per
// Period seconds, per scope.
type Rule struct {
	Extension string  // extension name, "" matches every extension
	Rate      float64 // number of allowed calls (tokens)
	Period    float64 // time window in seconds
}

// RateLimiter checks inbound extension calls against configured rules.
type RateLimiter struct {
	rules []Rule
	store Store
}

// NewRateLimiter creates a RateLimiter using the given store. Rules are
// matched in order; the first rule whose Extension matches applies.
func NewRateLimiter(store Store, rules ...Rule) (*RateLimiter, error) {
	if store == nil {
		return nil, errors.New("limiter: store is required")
	}
	for _, rule := range rules {
		if rule.Rate <= 0 || rule.Period <= 0 {
			return nil, fmt.Errorf("limiter: rule for %q must have positive rate and period", rule.Extension)
		}
	}
	return &RateLimiter{rules: rules, store: store}, nil
}

// Limit reports whether a call into extName for scopeID must be dropped.
// Store failures fail closed for the single event and are logged; they do
// not disable the limiter.
func (rl *RateLimiter) Limit(ctx context.Context, scopeID int64, extName string) bool {
	for _, rule := range rl.rules {
		if rule.Extension != "" && rule.Extension != extName {
			continue
		}

		key := fmt.Sprintf("extcall:%s:%d", extName, scopeID)
		allowed, err := rl.store.Allow(ctx, key, rule.Rate, rule.Period)
		if err != nil {
			log.Error().Err(err).Str("extension", extName).Int64("scope_id", scopeID).Msg("rate limit check failed, dropping message")
			return true
		}
		if !allowed {
			log.Warn().Str("extension", extName).Int64("scope_id", scopeID).Float64("rate", rule.Rate).Float64("period", rule.Period).Msg("rate limit triggered for inbound extension call")
			return true
		}
		return false
	}
	return false
}
