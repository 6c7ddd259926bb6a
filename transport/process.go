// Package transport carries messages from the host to a content process.
// The service only needs a handle it can push announcements and outbound
// extension messages through; three backends are provided: in-memory for
// same-process content environments, Redis lists for out-of-process
// surfaces, and gRPC for remote ones.
package transport

import (
	"context"

	"github.com/hostview/extview/extension"
)

// Process is the sending side of the channel to one content process. All
// sends are fire-and-forget from the caller's point of view: no reply is
// expected, and delivery failures are reported as errors for logging only.
type Process interface {
	// Announce tells the process that an extension exists and which script
	// installs its binding surface. Called once per registered extension,
	// in registration order, before any runner dispatches for the process.
	Announce(ctx context.Context, ann *extension.Announcement) error

	// Deliver forwards an outbound extension message to the process for
	// the given frame.
	Deliver(ctx context.Context, frameID string, msg *extension.OutboundMessage) error
}

// Handler is the receiving side, implemented by the content process
// environment. Receivers (Redis, gRPC server) decode wire envelopes and
// invoke it.
type Handler interface {
	// HandleAnnouncement installs an extension's binding surface.
	HandleAnnouncement(ann *extension.Announcement)

	// HandleMessage delivers an outbound extension message to the scripts
	// of the given frame.
	HandleMessage(frameID string, msg *extension.OutboundMessage)
}
