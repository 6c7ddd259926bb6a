// Package framereg tracks the live content frames of a rendering surface
// and notifies observers as frames appear and disappear. The embedding
// host adds a frame when it creates one and removes it on destruction; the
// extension service observes the stream to attach and tear down runner
// hosts.
package framereg

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hostview/extview/extension"
)

// Frame is one addressable unit of rendered content (a tab, window or
// embedded surface). Deliver is the frame's outbound channel: runners use
// it to push extension messages back toward the scripts of this frame.
type Frame interface {
	// ID uniquely identifies the frame for the lifetime of the surface.
	ID() string

	// Deliver hands an outbound extension message to the frame. It is
	// called from runner goroutines and must not block indefinitely.
	Deliver(msg *extension.OutboundMessage)
}

// Observer receives frame lifecycle notifications. Callbacks run on the
// goroutine that mutated the registry, which is expected to be the host's
// single coordinating context.
type Observer interface {
	OnFrameAdded(frame Frame)
	OnFrameRemoved(frame Frame)
}

// Registry is the frame-lifecycle source. The zero value is not usable;
// call New.
type Registry struct {
	mu        sync.RWMutex
	frames    map[string]Frame
	order     []string // insertion order, keeps retroactive attachment deterministic
	observers []Observer
}

// New creates an empty frame registry.
func New() *Registry {
	return &Registry{
		frames: make(map[string]Frame),
	}
}

// AddObserver subscribes o to lifecycle notifications.
func (r *Registry) AddObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// RemoveObserver unsubscribes o. Unknown observers are ignored.
func (r *Registry) RemoveObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.observers {
		if existing == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

// Add registers a live frame and notifies observers. Re-adding an ID is
// ignored with a warning.
func (r *Registry) Add(frame Frame) {
	id := frame.ID()

	r.mu.Lock()
	if _, exists := r.frames[id]; exists {
		r.mu.Unlock()
		log.Warn().Str("frame_id", id).Msg("frame already registered, ignoring")
		return
	}
	r.frames[id] = frame
	r.order = append(r.order, id)
	observers := append([]Observer(nil), r.observers...)
	r.mu.Unlock()

	log.Debug().Str("frame_id", id).Msg("frame added")
	for _, o := range observers {
		o.OnFrameAdded(frame)
	}
}

// Remove unregisters a frame and notifies observers. Unknown IDs are
// ignored with a warning.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	frame, exists := r.frames[id]
	if !exists {
		r.mu.Unlock()
		log.Warn().Str("frame_id", id).Msg("attempted to remove unknown frame")
		return
	}
	delete(r.frames, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	observers := append([]Observer(nil), r.observers...)
	r.mu.Unlock()

	log.Debug().Str("frame_id", id).Msg("frame removed")
	for _, o := range observers {
		o.OnFrameRemoved(frame)
	}
}

// Frames returns the live frames in the order they were added.
func (r *Registry) Frames() []Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	frames := make([]Frame, 0, len(r.order))
	for _, id := range r.order {
		frames = append(frames, r.frames[id])
	}
	return frames
}

// Lookup returns the frame registered under id, if any.
func (r *Registry) Lookup(id string) (Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	frame, ok := r.frames[id]
	return frame, ok
}
