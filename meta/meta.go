// Package meta carries call-scoped metadata through a context.Context.
// Runners attach the identity of the calling frame, scope and extension
// before invoking a native entry point, so extension code can observe who
// called it without widening the entry-point signature.
package meta

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Well-known keys set by the runner for every native entry-point call.
const (
	KeyFrameID   = "X-Ext-Frame"
	KeyScopeID   = "X-Ext-Scope"
	KeyExtension = "X-Ext-Name"
	KeyRunnerID  = "X-Ext-Runner"
)

// metadataKey is the private context key type; a private type prevents
// collisions with other context keys.
type metadataKey struct{}

// Metadata holds the key-value pairs.
type Metadata struct {
	mu   sync.RWMutex
	data map[string]any
}

// New creates a new, empty Metadata store.
func New() *Metadata {
	return &Metadata{data: make(map[string]any)}
}

// Set adds or updates a key-value pair in the metadata store.
func (m *Metadata) Set(key string, value any) {
	if m == nil {
		log.Error().Str("key", key).Msg("attempted to set metadata on nil *metadata instance")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		m.data = make(map[string]any)
	}
	m.data[key] = value
}

// Get retrieves a value by key, reporting whether the key was present.
func (m *Metadata) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	return value, ok
}

// WithContext returns a context derived from ctx carrying m.
func (m *Metadata) WithContext(ctx context.Context) context.Context {
	if m == nil {
		return ctx
	}
	if ctx == nil {
		log.Error().Msg("attempted to attach metadata to a nil context, using background context")
		ctx = context.Background()
	}
	return context.WithValue(ctx, metadataKey{}, m)
}

// FromContext extracts the *Metadata store from ctx. A nil context or a
// context without metadata yields a fresh empty store, so callers never
// need to nil-check the result.
func FromContext(ctx context.Context) *Metadata {
	if ctx == nil {
		return New()
	}

	value := ctx.Value(metadataKey{})
	if value == nil {
		return New()
	}

	if md, ok := value.(*Metadata); ok {
		return md
	}

	log.Error().Str("value_type", fmt.Sprintf("%T", value)).Msg("metadata key found in context but value has wrong type, returning empty metadata")
	return New()
}

// Get retrieves the value for key from the metadata stored in ctx and
// asserts it to T. It returns an error if the key is absent or holds a
// different type.
func Get[T any](ctx context.Context, key string) (t T, err error) {
	md := FromContext(ctx)

	rawValue, ok := md.Get(key)
	if !ok {
		err = fmt.Errorf("meta: key %q not found in context metadata", key)
		return
	}

	typedValue, ok := rawValue.(T)
	if !ok {
		err = fmt.Errorf("meta: value for key %q has type %T, but type %T was requested", key, rawValue, *new(T))
		return
	}

	t = typedValue
	return
}

// MustGet is like Get but panics if the key is absent or mistyped.
func MustGet[T any](ctx context.Context, key string) T {
	t, err := Get[T](ctx, key)
	if err != nil {
		panic(err)
	}
	return t
}
