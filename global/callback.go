// Package global holds process-wide state with an explicit lifecycle. Its
// only resident is the register-extensions callback used by test harnesses
// to inject registrations into a service before any content process
// appears.
package global

import (
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/hostview/extview/extension"
)

// Registrar is the registration surface a service exposes to the
// callback; the service itself satisfies it.
type Registrar interface {
	Register(ext extension.Extension) error
}

// RegisterExtensionsCallback is invoked once per service construction,
// before the service starts observing lifecycle events.
type RegisterExtensionsCallback func(r Registrar)

// ErrCallbackAlreadySet is returned when a second callback is installed
// without clearing the first; a leaked callback from a previous test would
// otherwise silently register extensions into unrelated services.
var ErrCallbackAlreadySet = errors.New("global: register extensions callback already set")

var registerExtensionsCallback atomic.Pointer[RegisterExtensionsCallback]

// SetRegisterExtensionsCallback installs cb. It must be cleared before it
// can be set again.
func SetRegisterExtensionsCallback(cb RegisterExtensionsCallback) error {
	if cb == nil {
		return errors.New("global: register extensions callback cannot be nil")
	}
	if !registerExtensionsCallback.CompareAndSwap(nil, &cb) {
		log.Error().Msg("register extensions callback already set, clear it between tests")
		return ErrCallbackAlreadySet
	}
	return nil
}

// ClearRegisterExtensionsCallback removes the installed callback, if any.
func ClearRegisterExtensionsCallback() {
	registerExtensionsCallback.Store(nil)
}

// GetRegisterExtensionsCallback returns the installed callback, or nil.
func GetRegisterExtensionsCallback() RegisterExtensionsCallback {
	cb := registerExtensionsCallback.Load()
	if cb == nil {
		return nil
	}
	return *cb
}
