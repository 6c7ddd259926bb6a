package extension

// KindRegisterExtension identifies announcement messages on the wire.
const KindRegisterExtension = "register_extension"

// Announcement informs a newly created content process that an extension
// exists and which script installs its binding surface. One announcement is
// sent per registered extension, in registration order, with no reply.
type Announcement struct {
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	JavaScriptAPI string `json:"js_api"`
}

// NewAnnouncement builds the announcement for ext.
func NewAnnouncement(ext Extension) *Announcement {
	return &Announcement{
		Kind:          KindRegisterExtension,
		Name:          ext.Name(),
		JavaScriptAPI: ext.JavaScriptAPI(),
	}
}

// InboundMessage is a call from script into an extension, addressed to the
// runner keyed by (ScopeID, Extension) within one frame.
type InboundMessage struct {
	ScopeID   int64  `json:"scope_id"`
	Extension string `json:"extension"`
	Payload   any    `json:"payload"`
}

// OutboundMessage is a message from an extension back to script. Error
// carries the extension's failure report as part of the payload contract;
// it is not a transport-level fault.
type OutboundMessage struct {
	ScopeID   int64  `json:"scope_id"`
	Extension string `json:"extension"`
	Payload   any    `json:"payload"`
	Error     string `json:"error,omitempty"`
}
