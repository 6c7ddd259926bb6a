package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/hostview/extview/extension"
)

var errMemoryProcessClosed = errors.New("transport: memory process is closed")

// MemoryProcess is an in-process content environment. Announcements and
// messages are handed straight to an optional Handler and recorded, which
// makes it the natural handle for embedded script engines and for tests
// asserting on announcement order.
type MemoryProcess struct {
	mu            sync.Mutex
	closed        bool
	handler       Handler
	announcements []*extension.Announcement
}

// NewMemoryProcess creates an in-memory process handle. handler may be nil
// when only the recorded announcements matter.
func NewMemoryProcess(handler Handler) *MemoryProcess {
	return &MemoryProcess{handler: handler}
}

// Announce implements Process.
func (m *MemoryProcess) Announce(ctx context.Context, ann *extension.Announcement) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errMemoryProcessClosed
	}
	m.announcements = append(m.announcements, ann)
	handler := m.handler
	m.mu.Unlock()

	if handler != nil {
		handler.HandleAnnouncement(ann)
	}
	return nil
}

// Deliver implements Process.
func (m *MemoryProcess) Deliver(ctx context.Context, frameID string, msg *extension.OutboundMessage) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errMemoryProcessClosed
	}
	handler := m.handler
	m.mu.Unlock()

	if handler != nil {
		handler.HandleMessage(frameID, msg)
	}
	return nil
}

// Announcements returns a snapshot of every announcement received so far,
// in arrival order.
func (m *MemoryProcess) Announcements() []*extension.Announcement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*extension.Announcement(nil), m.announcements...)
}

// Close stops accepting sends. Idempotent.
func (m *MemoryProcess) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

var _ Process = (*MemoryProcess)(nil)
