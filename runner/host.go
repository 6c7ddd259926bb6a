package runner

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hostview/extview/extension"
	"github.com/hostview/extview/limiter"
)

// MainScopeID is the scope identifier of a frame's top-level content;
// sub-frames get their own identifiers from the embedding host.
const MainScopeID int64 = 0

// ErrNoSuchRunner is returned when an inbound message addresses a
// (scope, extension) pair with no live runner. The message is dropped.
var ErrNoSuchRunner = errors.New("runner: no runner for scope and extension")

// Host owns every runner of one content frame, keyed by scope and
// extension name. It is created when a frame first needs extensions
// attached and follows the frame's lifecycle: when the frame goes away the
// host is torn down and all of its runners are joined.
type Host struct {
	frame Frame

	mu      sync.Mutex
	runners map[int64]map[string]*Runner

	rateLimiter *limiter.RateLimiter
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithRateLimiter drops inbound messages exceeding the limiter's rules
// before they reach a runner's queue.
func WithRateLimiter(rl *limiter.RateLimiter) HostOption {
	return func(h *Host) {
		h.rateLimiter = rl
	}
}

// NewHost creates the runner host for frame.
func NewHost(frame Frame, opts ...HostOption) *Host {
	if frame == nil {
		panic("runner: host frame cannot be nil")
	}
	h := &Host{
		frame:   frame,
		runners: make(map[int64]map[string]*Runner),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Frame returns the content frame this host belongs to.
func (h *Host) Frame() Frame { return h.frame }

// AttachExtensions creates one runner per extension for scopeID.
// Attachment is idempotent per scope: a (scope, name) pair that already
// has a runner is skipped with a log line, never duplicated.
func (h *Host) AttachExtensions(scopeID int64, exts []extension.Extension) {
	h.mu.Lock()
	defer h.mu.Unlock()

	scope, ok := h.runners[scopeID]
	if !ok {
		scope = make(map[string]*Runner, len(exts))
		h.runners[scopeID] = scope
	}

	for _, ext := range exts {
		name := ext.Name()
		if _, exists := scope[name]; exists {
			log.Debug().
				Str("frame_id", h.frame.ID()).
				Int64("scope_id", scopeID).
				Str("extension", name).
				Msg("runner already attached for scope, skipping")
			continue
		}
		scope[name] = newRunner(h.frame, scopeID, ext)
	}
}

// Post routes an inbound message to the runner keyed by the message's
// (scope, extension) pair. The enqueue never blocks. Messages without a
// live runner are dropped with a warning and ErrNoSuchRunner; messages
// over the configured rate limit are dropped with limiter.ErrLimited.
func (h *Host) Post(ctx context.Context, msg *extension.InboundMessage) error {
	if h.rateLimiter != nil && h.rateLimiter.Limit(ctx, msg.ScopeID, msg.Extension) {
		return limiter.ErrLimited
	}

	h.mu.Lock()
	var r *Runner
	if scope, ok := h.runners[msg.ScopeID]; ok {
		r = scope[msg.Extension]
	}
	h.mu.Unlock()

	if r == nil {
		log.Warn().
			Str("frame_id", h.frame.ID()).
			Int64("scope_id", msg.ScopeID).
			Str("extension", msg.Extension).
			Msg("dropping inbound message: no runner for scope and extension")
		return ErrNoSuchRunner
	}
	return r.Post(msg)
}

// Runner returns the live runner for (scopeID, name), if any.
func (h *Host) Runner(scopeID int64, name string) (*Runner, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	scope, ok := h.runners[scopeID]
	if !ok {
		return nil, false
	}
	r, ok := scope[name]
	return r, ok
}

// RunnerCount returns the number of live runners for scopeID.
func (h *Host) RunnerCount(scopeID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.runners[scopeID])
}

// Teardown destroys all runners of one scope, joining each execution
// context before returning. Tearing down a scope that never attached is a
// no-op.
func (h *Host) Teardown(scopeID int64) {
	h.mu.Lock()
	scope, ok := h.runners[scopeID]
	delete(h.runners, scopeID)
	h.mu.Unlock()

	if !ok {
		log.Debug().Str("frame_id", h.frame.ID()).Int64("scope_id", scopeID).Msg("teardown for unattached scope, nothing to do")
		return
	}
	h.stopRunners(scope)
	log.Debug().Str("frame_id", h.frame.ID()).Int64("scope_id", scopeID).Msg("scope torn down")
}

// TeardownAll destroys every runner of every scope; called when the whole
// frame is destroyed.
func (h *Host) TeardownAll() {
	h.mu.Lock()
	scopes := h.runners
	h.runners = make(map[int64]map[string]*Runner)
	h.mu.Unlock()

	for _, scope := range scopes {
		h.stopRunners(scope)
	}
	log.Debug().Str("frame_id", h.frame.ID()).Int("scopes", len(scopes)).Msg("runner host torn down")
}

// stopRunners stops a scope's runners concurrently and waits for all of
// them. Runs outside the host lock: Stop joins the runner goroutine and an
// in-flight message may take arbitrarily long.
func (h *Host) stopRunners(scope map[string]*Runner) {
	var wg sync.WaitGroup
	wg.Add(len(scope))
	for _, r := range scope {
		go func(r *Runner) {
			defer wg.Done()
			r.Stop()
		}(r)
	}
	wg.Wait()
}
