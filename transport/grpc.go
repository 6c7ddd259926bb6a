package transport

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/hostview/extview/extension"
)

// The process channel service is declared by hand rather than generated:
// the payloads are plain JSON envelopes, so a registered JSON codec plus a
// grpc.ServiceDesc is all that is needed, with no protobuf involved.
const (
	grpcServiceName    = "extview.Process"
	grpcAnnounceMethod = "/extview.Process/Announce"
	grpcDeliverMethod  = "/extview.Process/Deliver"

	jsonCodecName = "extview-json"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements grpc's encoding.Codec over encoding/json.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)    { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                     { return jsonCodecName }

// deliverRequest is the wire request of the Deliver method.
type deliverRequest struct {
	FrameID string                     `json:"frame_id"`
	Message *extension.OutboundMessage `json:"message"`
}

// ack is the empty response of both methods; the channel is
// fire-and-forget, no payload travels back.
type ack struct{}

// GRPCProcess sends to a content process over a gRPC connection dialed by
// the caller.
type GRPCProcess struct {
	cc grpc.ClientConnInterface
}

// NewGRPCProcess wraps an established client connection.
func NewGRPCProcess(cc grpc.ClientConnInterface) (*GRPCProcess, error) {
	if cc == nil {
		return nil, errors.New("transport: grpc client connection is required")
	}
	return &GRPCProcess{cc: cc}, nil
}

// Announce implements Process.
func (p *GRPCProcess) Announce(ctx context.Context, ann *extension.Announcement) error {
	var resp ack
	return p.cc.Invoke(ctx, grpcAnnounceMethod, ann, &resp, grpc.CallContentSubtype(jsonCodecName))
}

// Deliver implements Process.
func (p *GRPCProcess) Deliver(ctx context.Context, frameID string, msg *extension.OutboundMessage) error {
	var resp ack
	req := &deliverRequest{FrameID: frameID, Message: msg}
	return p.cc.Invoke(ctx, grpcDeliverMethod, req, &resp, grpc.CallContentSubtype(jsonCodecName))
}

var _ Process = (*GRPCProcess)(nil)

// ProcessServer is implemented by the content-process side of the gRPC
// channel.
type ProcessServer interface {
	Announce(ctx context.Context, ann *extension.Announcement) error
	Deliver(ctx context.Context, frameID string, msg *extension.OutboundMessage) error
}

// NewProcessServer adapts a Handler into a ProcessServer.
func NewProcessServer(h Handler) ProcessServer {
	return &handlerServer{h: h}
}

type handlerServer struct {
	h Handler
}

func (s *handlerServer) Announce(ctx context.Context, ann *extension.Announcement) error {
	s.h.HandleAnnouncement(ann)
	return nil
}

func (s *handlerServer) Deliver(ctx context.Context, frameID string, msg *extension.OutboundMessage) error {
	s.h.HandleMessage(frameID, msg)
	return nil
}

// RegisterProcessServer registers srv with a gRPC server (or any other
// grpc.ServiceRegistrar, e.g. an in-process channel).
func RegisterProcessServer(s grpc.ServiceRegistrar, srv ProcessServer) {
	s.RegisterService(&processServiceDesc, srv)
}

func announceHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(extension.Announcement)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return &ack{}, srv.(ProcessServer).Announce(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: grpcAnnounceMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return &ack{}, srv.(ProcessServer).Announce(ctx, req.(*extension.Announcement))
	}
	return interceptor(ctx, in, info, handler)
}

func deliverHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(deliverRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return &ack{}, srv.(ProcessServer).Deliver(ctx, in.FrameID, in.Message)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: grpcDeliverMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		r := req.(*deliverRequest)
		return &ack{}, srv.(ProcessServer).Deliver(ctx, r.FrameID, r.Message)
	}
	return interceptor(ctx, in, info, handler)
}

var processServiceDesc = grpc.ServiceDesc{
	ServiceName: grpcServiceName,
	HandlerType: (*ProcessServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Announce", Handler: announceHandler},
		{MethodName: "Deliver", Handler: deliverHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "extview/transport",
}
