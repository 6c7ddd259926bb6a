package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hostview/extview/extension"
	"github.com/hostview/extview/framereg"
	"github.com/hostview/extview/global"
	"github.com/hostview/extview/runner"
	"github.com/hostview/extview/transport"
)

type testFrame struct {
	id        string
	mu        sync.Mutex
	out       []*extension.OutboundMessage
	delivered chan *extension.OutboundMessage
}

func newTestFrame(id string) *testFrame {
	return &testFrame{id: id, delivered: make(chan *extension.OutboundMessage, 256)}
}

func (f *testFrame) ID() string { return f.id }

func (f *testFrame) Deliver(msg *extension.OutboundMessage) {
	f.mu.Lock()
	f.out = append(f.out, msg)
	f.mu.Unlock()
	f.delivered <- msg
}

func echoExt(name string) extension.Extension {
	return extension.New(name, "exports."+name+" = {};", func(ctx context.Context, payload any) (any, error) {
		return payload, nil
	})
}

func TestServiceAnnouncesAndAttachesRetroactively(t *testing.T) {
	frames := framereg.New()
	s := New(frames)
	defer s.Close()

	require.NoError(t, s.Register(echoExt("com.example.a")))
	require.NoError(t, s.Register(echoExt("com.example.b")))

	// Frame exists before any content process: attachment is deferred.
	frame := newTestFrame("tab-1")
	frames.Add(frame)
	_, ok := s.Host(frame.ID())
	require.False(t, ok)

	process := transport.NewMemoryProcess(nil)
	s.OnProcessCreated(process)
	require.True(t, s.Attached())

	// Announcements follow registration order exactly.
	anns := process.Announcements()
	require.Len(t, anns, 2)
	require.Equal(t, "com.example.a", anns[0].Name)
	require.Equal(t, "com.example.b", anns[1].Name)
	require.Equal(t, extension.KindRegisterExtension, anns[0].Kind)
	require.Equal(t, "exports.com.example.a = {};", anns[0].JavaScriptAPI)

	// The pre-existing frame now has one runner per extension.
	host, ok := s.Host(frame.ID())
	require.True(t, ok)
	require.Equal(t, 2, host.RunnerCount(runner.MainScopeID))
}

func TestServiceRejectsRegistrationAfterAttach(t *testing.T) {
	frames := framereg.New()
	s := New(frames)
	defer s.Close()

	require.NoError(t, s.Register(echoExt("com.example.a")))
	s.OnProcessCreated(transport.NewMemoryProcess(nil))

	err := s.Register(echoExt("com.example.late"))
	require.ErrorIs(t, err, extension.ErrAlreadyAttached)
}

func TestServiceIgnoresSecondProcess(t *testing.T) {
	frames := framereg.New()
	s := New(frames)
	defer s.Close()

	require.NoError(t, s.Register(echoExt("com.example.a")))

	first := transport.NewMemoryProcess(nil)
	second := transport.NewMemoryProcess(nil)
	s.OnProcessCreated(first)
	s.OnProcessCreated(second)

	require.Len(t, first.Announcements(), 1)
	require.Empty(t, second.Announcements())
}

func TestServiceAttachesFramesCreatedAfterProcess(t *testing.T) {
	frames := framereg.New()
	s := New(frames)
	defer s.Close()

	require.NoError(t, s.Register(echoExt("com.example.a")))
	s.OnProcessCreated(transport.NewMemoryProcess(nil))

	frame := newTestFrame("tab-late")
	frames.Add(frame)

	host, ok := s.Host(frame.ID())
	require.True(t, ok)
	require.Equal(t, 1, host.RunnerCount(runner.MainScopeID))
}

func TestServiceDispatchRoundTrip(t *testing.T) {
	frames := framereg.New()
	s := New(frames)
	defer s.Close()

	require.NoError(t, s.Register(echoExt("com.example.echo")))
	s.OnProcessCreated(transport.NewMemoryProcess(nil))

	frame := newTestFrame("tab-1")
	frames.Add(frame)

	require.NoError(t, s.Dispatch(context.Background(), frame.ID(), &extension.InboundMessage{
		ScopeID:   runner.MainScopeID,
		Extension: "com.example.echo",
		Payload:   "ping",
	}))

	select {
	case msg := <-frame.delivered:
		require.Equal(t, "ping", msg.Payload)
		require.Empty(t, msg.Error)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outbound message")
	}

	err := s.Dispatch(context.Background(), "no-such-frame", &extension.InboundMessage{Extension: "com.example.echo"})
	require.ErrorIs(t, err, ErrNoFrameHost)
}

func TestServiceSubFrameScopes(t *testing.T) {
	frames := framereg.New()
	s := New(frames)
	defer s.Close()

	require.NoError(t, s.Register(echoExt("com.example.a")))
	s.OnProcessCreated(transport.NewMemoryProcess(nil))

	frame := newTestFrame("tab-1")
	frames.Add(frame)

	require.NoError(t, s.AttachScope(frame.ID(), 4))
	require.NoError(t, s.AttachScope(frame.ID(), 4)) // idempotent

	host, _ := s.Host(frame.ID())
	require.Equal(t, 1, host.RunnerCount(4))

	require.NoError(t, s.TeardownScope(frame.ID(), 4))
	require.Equal(t, 0, host.RunnerCount(4))
	require.Equal(t, 1, host.RunnerCount(runner.MainScopeID))

	require.ErrorIs(t, s.AttachScope("ghost", 1), ErrNoFrameHost)
}

func TestServiceTearsDownHostWithFrame(t *testing.T) {
	frames := framereg.New()
	s := New(frames)
	defer s.Close()

	require.NoError(t, s.Register(echoExt("com.example.a")))
	s.OnProcessCreated(transport.NewMemoryProcess(nil))

	frame := newTestFrame("tab-1")
	frames.Add(frame)
	_, ok := s.Host(frame.ID())
	require.True(t, ok)

	frames.Remove(frame.ID())
	_, ok = s.Host(frame.ID())
	require.False(t, ok)
}

func TestServiceLookupPassthrough(t *testing.T) {
	frames := framereg.New()
	s := New(frames)
	defer s.Close()

	require.NoError(t, s.Register(echoExt("com.example.a")))

	ext, ok := s.Lookup("com.example.a")
	require.True(t, ok)
	require.Equal(t, "com.example.a", ext.Name())

	_, ok = s.Lookup("com.example.ghost")
	require.False(t, ok)
}

func TestServiceRunsGlobalRegisterCallback(t *testing.T) {
	require.NoError(t, global.SetRegisterExtensionsCallback(func(r global.Registrar) {
		require.NoError(t, r.Register(echoExt("com.example.injected")))
	}))
	defer global.ClearRegisterExtensionsCallback()

	s := New(framereg.New())
	defer s.Close()

	_, ok := s.Lookup("com.example.injected")
	require.True(t, ok)
}

func TestServiceRegisterCallbackOption(t *testing.T) {
	s := New(framereg.New(), WithRegisterCallback(func(r global.Registrar) {
		_ = r.Register(echoExt("com.example.option"))
	}))
	defer s.Close()

	_, ok := s.Lookup("com.example.option")
	require.True(t, ok)
	require.Equal(t, 1, len(s.Extensions()))
}
