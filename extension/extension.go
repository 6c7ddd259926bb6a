// Package extension defines the contract native extensions implement to be
// exposed to web content, along with the registry that owns them.
package extension

import (
	"context"
	"errors"
)

// Extension is a named unit of native functionality exposed to page scripts.
// Implementations must be safe for concurrent use: one instance is shared by
// every runner created for it across all frames and scopes.
type Extension interface {
	// Name returns the unique, dotted identifier of the extension
	// (e.g. "com.example.device"). It must satisfy ValidateName.
	Name() string

	// JavaScriptAPI returns the script injected into content processes to
	// install the extension's binding surface before page scripts run.
	JavaScriptAPI() string

	// HandleMessage is the native entry point invoked for each inbound call
	// from script. It is only ever called from the runner's own goroutine,
	// one message at a time. The returned value (or error) is forwarded to
	// script as a regular outbound message.
	HandleMessage(ctx context.Context, payload any) (any, error)
}

// Predefined errors for registration failures.
var (
	ErrInvalidName     = errors.New("extension name does not match the dotted identifier grammar")
	ErrDuplicateName   = errors.New("extension name is already registered")
	ErrAlreadyAttached = errors.New("registry is frozen: a content process has already attached")
)

// HandlerFunc adapts a plain function to an extension entry point.
type HandlerFunc func(ctx context.Context, payload any) (any, error)

type funcExtension struct {
	name    string
	jsAPI   string
	handler HandlerFunc
}

// New builds an Extension from a name, a JS binding surface and a handler
// function. It performs no validation; Registry.Register does.
func New(name, jsAPI string, handler HandlerFunc) Extension {
	return &funcExtension{name: name, jsAPI: jsAPI, handler: handler}
}

func (e *funcExtension) Name() string          { return e.name }
func (e *funcExtension) JavaScriptAPI() string { return e.jsAPI }

func (e *funcExtension) HandleMessage(ctx context.Context, payload any) (any, error) {
	if e.handler == nil {
		return nil, nil
	}
	return e.handler(ctx, payload)
}
