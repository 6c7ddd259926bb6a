package framereg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hostview/extview/extension"
)

type stubFrame struct {
	id string
}

func (f *stubFrame) ID() string                              { return f.id }
func (f *stubFrame) Deliver(msg *extension.OutboundMessage) {}

type recordingObserver struct {
	added   []string
	removed []string
}

func (o *recordingObserver) OnFrameAdded(frame Frame)   { o.added = append(o.added, frame.ID()) }
func (o *recordingObserver) OnFrameRemoved(frame Frame) { o.removed = append(o.removed, frame.ID()) }

func TestRegistryAddRemoveLookup(t *testing.T) {
	r := New()

	f1 := &stubFrame{id: "tab-1"}
	f2 := &stubFrame{id: "tab-2"}
	r.Add(f1)
	r.Add(f2)
	r.Add(&stubFrame{id: "tab-1"}) // duplicate id, ignored

	frames := r.Frames()
	require.Len(t, frames, 2)
	require.Equal(t, "tab-1", frames[0].ID())
	require.Equal(t, "tab-2", frames[1].ID())

	got, ok := r.Lookup("tab-1")
	require.True(t, ok)
	require.Same(t, Frame(f1), got)

	r.Remove("tab-1")
	r.Remove("tab-1") // unknown now, ignored
	_, ok = r.Lookup("tab-1")
	require.False(t, ok)
	require.Len(t, r.Frames(), 1)
}

func TestRegistryNotifiesObservers(t *testing.T) {
	r := New()
	obs := &recordingObserver{}
	r.AddObserver(obs)

	r.Add(&stubFrame{id: "tab-1"})
	r.Add(&stubFrame{id: "tab-2"})
	r.Remove("tab-1")

	require.Equal(t, []string{"tab-1", "tab-2"}, obs.added)
	require.Equal(t, []string{"tab-1"}, obs.removed)

	r.RemoveObserver(obs)
	r.Add(&stubFrame{id: "tab-3"})
	require.Len(t, obs.added, 2)
}
