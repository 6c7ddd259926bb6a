package extension

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry owns the set of registered extensions, keyed by unique name and
// ordered by registration. Once a content process has attached, the registry
// is frozen and rejects further registrations: an already-announced process
// cannot learn about new binding surfaces retroactively.
//
// Registration, freezing and enumeration are expected to happen on the
// host's single coordinating context; the internal lock only guards reads
// performed by runners and transports.
type Registry struct {
	mu         sync.RWMutex
	extensions map[string]Extension
	order      []string // registration order, drives announcement order
	frozen     bool
}

// NewRegistry creates an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		extensions: make(map[string]Extension),
	}
}

// Register adds an extension to the registry.
//
// Failure precedence is fixed: a frozen registry rejects everything with
// ErrAlreadyAttached regardless of the name, then the name grammar is
// checked (ErrInvalidName), then uniqueness (ErrDuplicateName). On any
// failure the registry is left unchanged.
func (r *Registry) Register(ext Extension) error {
	name := ext.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		log.Warn().Str("extension", name).Msg("rejecting registration: a content process is already attached")
		return ErrAlreadyAttached
	}
	if !ValidateName(name) {
		log.Warn().Str("extension", name).Msg("ignoring extension with invalid name")
		return ErrInvalidName
	}
	if _, exists := r.extensions[name]; exists {
		log.Warn().Str("extension", name).Msg("attempted to register duplicate extension")
		return ErrDuplicateName
	}

	r.extensions[name] = ext
	r.order = append(r.order, name)
	log.Info().Str("extension", name).Msg("extension registered")
	return nil
}

// Lookup returns the extension registered under name, if any.
func (r *Registry) Lookup(name string) (Extension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext, ok := r.extensions[name]
	return ext, ok
}

// All returns the registered extensions in registration order. The result
// is a fresh slice; callers may keep or mutate it freely. The order is
// stable across calls, so announcements and per-scope runner creation see
// the same sequence.
func (r *Registry) All() []Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]Extension, 0, len(r.order))
	for _, name := range r.order {
		exts = append(exts, r.extensions[name])
	}
	return exts
}

// Len returns the number of registered extensions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Freeze transitions the registry to its frozen state. Idempotent. Called
// when the first content process attaches.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return
	}
	r.frozen = true
	log.Debug().Int("extensions", len(r.order)).Msg("extension registry frozen")
}

// Frozen reports whether the registry still accepts registrations.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}
