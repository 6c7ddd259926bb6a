package transport

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/hostview/extview/extension"
)

type recordingHandler struct {
	mu            sync.Mutex
	announcements []*extension.Announcement
	frameIDs      []string
	messages      []*extension.OutboundMessage
}

func (h *recordingHandler) HandleAnnouncement(ann *extension.Announcement) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.announcements = append(h.announcements, ann)
}

func (h *recordingHandler) HandleMessage(frameID string, msg *extension.OutboundMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frameIDs = append(h.frameIDs, frameID)
	h.messages = append(h.messages, msg)
}

func TestGRPCProcessRoundTrip(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)
	handler := &recordingHandler{}

	server := grpc.NewServer()
	RegisterProcessServer(server, NewProcessServer(handler))
	go func() { _ = server.Serve(lis) }()
	defer server.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	p, err := NewGRPCProcess(conn)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, p.Announce(ctx, &extension.Announcement{
		Kind:          extension.KindRegisterExtension,
		Name:          "com.example.echo",
		JavaScriptAPI: "exports.echo = function(v) { return v; };",
	}))
	require.NoError(t, p.Deliver(ctx, "tab-1", &extension.OutboundMessage{
		ScopeID:   0,
		Extension: "com.example.echo",
		Payload:   "pong",
	}))

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.announcements, 1)
	require.Equal(t, "com.example.echo", handler.announcements[0].Name)
	require.Equal(t, extension.KindRegisterExtension, handler.announcements[0].Kind)
	require.Equal(t, "exports.echo = function(v) { return v; };", handler.announcements[0].JavaScriptAPI)

	require.Equal(t, []string{"tab-1"}, handler.frameIDs)
	require.Len(t, handler.messages, 1)
	require.Equal(t, "com.example.echo", handler.messages[0].Extension)
	require.Equal(t, "pong", handler.messages[0].Payload)
	require.Empty(t, handler.messages[0].Error)
}

func TestNewGRPCProcessRequiresConnection(t *testing.T) {
	_, err := NewGRPCProcess(nil)
	require.Error(t, err)
}
