// Package runner gives every (frame-scope, extension) pair an independent,
// serialized execution context. Each Runner drains its own FIFO queue on
// its own goroutine, so one slow or blocked extension instance can never
// stall another extension or the frame that owns it.
package runner

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hostview/extview/extension"
	"github.com/hostview/extview/meta"
)

// ErrShuttingDown is returned by Post once teardown of the runner has
// begun; the message is dropped and will not be delivered.
var ErrShuttingDown = errors.New("runner: shutting down, message dropped")

// Frame is the slice of a content frame a runner needs: identity for
// logging and the outbound channel for extension -> script messages.
// framereg.Frame satisfies it.
type Frame interface {
	ID() string
	Deliver(msg *extension.OutboundMessage)
}

// Runner binds one extension instance to one frame scope. All inbound
// messages for the pair are processed strictly in arrival order on the
// runner's own goroutine; the extension's entry point is never invoked
// from a caller's goroutine.
type Runner struct {
	id      string
	ext     extension.Extension
	frame   Frame
	scopeID int64

	mu       sync.Mutex
	queue    []*extension.InboundMessage
	stopping bool

	wake     chan struct{} // buffered(1), pokes the loop after a Post or Stop
	done     chan struct{} // closed when the loop goroutine has exited
	stopOnce sync.Once
}

// newRunner creates the runner and starts its execution context.
func newRunner(frame Frame, scopeID int64, ext extension.Extension) *Runner {
	r := &Runner{
		id:      uuid.NewString(),
		ext:     ext,
		frame:   frame,
		scopeID: scopeID,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go r.loop()

	log.Debug().
		Str("runner_id", r.id).
		Str("frame_id", frame.ID()).
		Int64("scope_id", scopeID).
		Str("extension", ext.Name()).
		Msg("runner started")
	return r
}

// ID returns the runner's unique identifier, used in logs.
func (r *Runner) ID() string { return r.id }

// Extension returns the extension this runner serves.
func (r *Runner) Extension() extension.Extension { return r.ext }

// Post enqueues an inbound message. It never blocks: the queue is
// unbounded and the actual work happens on the runner's goroutine.
// Returns ErrShuttingDown if teardown has already begun.
func (r *Runner) Post(msg *extension.InboundMessage) error {
	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		return ErrShuttingDown
	}
	r.queue = append(r.queue, msg)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default: // loop is already scheduled to drain
	}
	return nil
}

// Stop begins teardown: no further messages are accepted, the message
// currently in flight (if any) finishes, remaining queued messages are
// discarded, and the execution context is joined before Stop returns.
// After Stop returns the extension's entry point is guaranteed not to be
// running for this scope. Idempotent.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopping = true
		dropped := len(r.queue)
		r.queue = nil
		r.mu.Unlock()

		if dropped > 0 {
			log.Warn().
				Str("runner_id", r.id).
				Str("extension", r.ext.Name()).
				Int("dropped", dropped).
				Msg("discarding queued messages on runner teardown")
		}

		select {
		case r.wake <- struct{}{}:
		default:
		}
		<-r.done

		log.Debug().
			Str("runner_id", r.id).
			Str("frame_id", r.frame.ID()).
			Int64("scope_id", r.scopeID).
			Str("extension", r.ext.Name()).
			Msg("runner stopped")
	})
}

// loop is the runner's execution context. It drains the queue one message
// at a time and exits once teardown has begun and the queue is empty
// (Stop empties it, so at most the in-flight message completes).
func (r *Runner) loop() {
	defer close(r.done)

	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			if r.stopping {
				r.mu.Unlock()
				return
			}
			r.mu.Unlock()
			<-r.wake
			continue
		}
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		r.process(msg)
	}
}

// process invokes the extension's entry point for one message and pushes
// the result to the frame's outbound channel. Panics inside extension code
// are recovered and reported as a failed outbound message rather than
// killing the runner.
func (r *Runner) process(msg *extension.InboundMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("runner_id", r.id).
				Str("extension", r.ext.Name()).
				Any("panic_value", rec).
				Msg("panic recovered during extension message handling")
			r.frame.Deliver(&extension.OutboundMessage{
				ScopeID:   r.scopeID,
				Extension: r.ext.Name(),
				Error:     "extension panicked while handling message",
			})
		}
	}()

	md := meta.New()
	md.Set(meta.KeyFrameID, r.frame.ID())
	md.Set(meta.KeyScopeID, r.scopeID)
	md.Set(meta.KeyExtension, r.ext.Name())
	md.Set(meta.KeyRunnerID, r.id)
	ctx := md.WithContext(context.Background())

	result, err := r.ext.HandleMessage(ctx, msg.Payload)

	out := &extension.OutboundMessage{
		ScopeID:   r.scopeID,
		Extension: r.ext.Name(),
		Payload:   result,
	}
	if err != nil {
		out.Error = err.Error()
	}
	r.frame.Deliver(out)
}
