// Package service coordinates the extension container: it owns the
// extension registry, observes frame and content-process lifecycle, and
// wires runner hosts to frames once the process knows which binding
// surfaces exist.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hostview/extview/extension"
	"github.com/hostview/extview/framereg"
	"github.com/hostview/extview/global"
	"github.com/hostview/extview/runner"
	"github.com/hostview/extview/transport"
)

// ErrNoFrameHost is returned when an inbound message targets a frame that
// has no runner host (unknown frame, or no process attached yet).
var ErrNoFrameHost = errors.New("service: no runner host for frame")

// Service is the top-level coordinator. Registration, attachment and
// teardown calls must be serialized by the host's single coordinating
// context; only message posting and lookups are safe from anywhere.
type Service struct {
	registry *extension.Registry
	frames   *framereg.Registry

	mu      sync.Mutex
	process transport.Process       // nil until the first process attaches
	hosts   map[string]*runner.Host // frame id -> host
	closed  bool

	hostOptions []runner.HostOption
}

// Option configures a Service.
type Option func(*Service)

// WithHostOptions passes options (e.g. a rate limiter) to every runner
// host the service creates.
func WithHostOptions(opts ...runner.HostOption) Option {
	return func(s *Service) {
		s.hostOptions = append(s.hostOptions, opts...)
	}
}

// WithRegisterCallback runs cb against the service during construction,
// before any lifecycle event can arrive. This is the injectable form of
// the process-wide hook in package global.
func WithRegisterCallback(cb global.RegisterExtensionsCallback) Option {
	return func(s *Service) {
		if cb != nil {
			cb(s)
		}
	}
}

// New creates a service observing the given frame registry. If a
// register-extensions callback is installed in package global it runs
// before the service subscribes to lifecycle events, so harness-provided
// extensions are in place before the first process can attach.
func New(frames *framereg.Registry, opts ...Option) *Service {
	if frames == nil {
		panic("service: frame registry cannot be nil")
	}
	s := &Service{
		registry: extension.NewRegistry(),
		frames:   frames,
		hosts:    make(map[string]*runner.Host),
	}

	if cb := global.GetRegisterExtensionsCallback(); cb != nil {
		cb(s)
	}
	for _, opt := range opts {
		opt(s)
	}

	frames.AddObserver(s)
	log.Info().Msg("extension service created")
	return s
}

// Register adds an extension. Fails once a content process has attached;
// see extension.Registry for the error taxonomy.
func (s *Service) Register(ext extension.Extension) error {
	return s.registry.Register(ext)
}

// Lookup returns the registered extension with the given name, if any.
func (s *Service) Lookup(name string) (extension.Extension, bool) {
	return s.registry.Lookup(name)
}

// Extensions returns the registered extensions in registration order.
func (s *Service) Extensions() []extension.Extension {
	return s.registry.All()
}

// Attached reports whether a content process has been observed.
func (s *Service) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.process != nil
}

// OnProcessCreated handles a content-process-created event. The first
// process freezes the registry, receives one announcement per registered
// extension in registration order, and then every already-live frame gets
// a runner host. Announcing before attaching guarantees the binding
// surfaces are installed remotely before any runner can dispatch script
// calls. Only one process is supported: later events are ignored.
func (s *Service) OnProcessCreated(p transport.Process) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.process != nil {
		s.mu.Unlock()
		log.Warn().Msg("ignoring additional content process: only one process is supported")
		return
	}
	s.process = p
	s.mu.Unlock()

	s.registry.Freeze()

	exts := s.registry.All()
	ctx := context.Background()
	for _, ext := range exts {
		if err := p.Announce(ctx, extension.NewAnnouncement(ext)); err != nil {
			// Fire-and-forget: a failed announcement must not abort the rest.
			log.Error().Err(err).Str("extension", ext.Name()).Msg("failed to announce extension to content process")
		}
	}
	log.Info().Int("extensions", len(exts)).Msg("announced extensions to content process")

	for _, frame := range s.frames.Frames() {
		s.attachHost(frame)
	}
}

// OnFrameAdded implements framereg.Observer. Frames created before the
// first process are deferred; OnProcessCreated attaches them retroactively.
func (s *Service) OnFrameAdded(frame framereg.Frame) {
	s.mu.Lock()
	attached := s.process != nil
	s.mu.Unlock()

	if !attached {
		log.Debug().Str("frame_id", frame.ID()).Msg("no content process yet, deferring extension attachment")
		return
	}
	s.attachHost(frame)
}

// OnFrameRemoved implements framereg.Observer. The frame's runner host is
// torn down with it: every runner finishes its in-flight message, drops
// the rest and is joined.
func (s *Service) OnFrameRemoved(frame framereg.Frame) {
	s.mu.Lock()
	host := s.hosts[frame.ID()]
	delete(s.hosts, frame.ID())
	s.mu.Unlock()

	if host != nil {
		host.TeardownAll()
		log.Debug().Str("frame_id", frame.ID()).Msg("runner host removed with frame")
	}
}

// attachHost creates the frame's runner host (once) and attaches every
// registered extension to the frame's main scope.
func (s *Service) attachHost(frame framereg.Frame) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, exists := s.hosts[frame.ID()]; exists {
		s.mu.Unlock()
		return
	}
	host := runner.NewHost(frame, s.hostOptions...)
	s.hosts[frame.ID()] = host
	s.mu.Unlock()

	host.AttachExtensions(runner.MainScopeID, s.registry.All())
	log.Info().Str("frame_id", frame.ID()).Int("extensions", s.registry.Len()).Msg("extensions attached to frame")
}

// Host returns the runner host of frameID, if one exists.
func (s *Service) Host(frameID string) (*runner.Host, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	host, ok := s.hosts[frameID]
	return host, ok
}

// AttachScope attaches every registered extension to a sub-frame scope of
// frameID. Idempotent per scope.
func (s *Service) AttachScope(frameID string, scopeID int64) error {
	host, ok := s.Host(frameID)
	if !ok {
		return ErrNoFrameHost
	}
	host.AttachExtensions(scopeID, s.registry.All())
	return nil
}

// TeardownScope destroys the runners of one sub-frame scope of frameID.
func (s *Service) TeardownScope(frameID string, scopeID int64) error {
	host, ok := s.Host(frameID)
	if !ok {
		return ErrNoFrameHost
	}
	host.Teardown(scopeID)
	return nil
}

// Dispatch routes an inbound script call to the addressed runner of
// frameID. Unroutable messages are dropped with a warning.
func (s *Service) Dispatch(ctx context.Context, frameID string, msg *extension.InboundMessage) error {
	host, ok := s.Host(frameID)
	if !ok {
		log.Warn().Str("frame_id", frameID).Str("extension", msg.Extension).Msg("dropping inbound message: no runner host for frame")
		return ErrNoFrameHost
	}
	return host.Post(ctx, msg)
}

// Close unsubscribes from frame lifecycle, stops producing attachments and
// tears down any hosts still owned by the service. Idempotent.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	hosts := s.hosts
	s.hosts = make(map[string]*runner.Host)
	s.mu.Unlock()

	s.frames.RemoveObserver(s)
	for _, host := range hosts {
		host.TeardownAll()
	}
	log.Info().Msg("extension service closed")
}
