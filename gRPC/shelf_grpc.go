package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

const (
	ShelfService_Analyze_FullMethodName     = "/shelf.ShelfService/Analyze"
	ShelfService_UploadImage_FullMethodName = "/shelf.ShelfService/UploadImage"
	ShelfService_Ask_FullMethodName         = "/shelf.ShelfService/Ask"
	ShelfService_Health_FullMethodName      = "/shelf.ShelfService/Health"
)

type ShelfServiceServer interface {
	Analyze(context.Context, *AnalyzeRequest) (*AnalyzeResponse, error)
	UploadImage(ShelfService_UploadImageServer) error
	Ask(context.Context, *AskRequest) (*AskResponse, error)
	Health(context.Context, *emptypb.Empty) (*HealthResponse, error)
}

// UnimplementedShelfServiceServer can be embedded to stay forward compatible.
type UnimplementedShelfServiceServer struct{}

func (UnimplementedShelfServiceServer) Analyze(context.Context, *AnalyzeRequest) (*AnalyzeResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Analyze not implemented")
}
func (UnimplementedShelfServiceServer) UploadImage(ShelfService_UploadImageServer) error {
	return status.Errorf(codes.Unimplemented, "method UploadImage not implemented")
}
func (UnimplementedShelfServiceServer) Ask(context.Context, *AskRequest) (*AskResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Ask not implemented")
}
func (UnimplementedShelfServiceServer) Health(context.Context, *emptypb.Empty) (*HealthResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Health not implemented")
}

func RegisterShelfServiceServer(s grpc.ServiceRegistrar, srv ShelfServiceServer) {
	s.RegisterService(&ShelfService_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](fullMethod string, call func(ShelfServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ShelfServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ShelfServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type ShelfService_UploadImageServer interface {
	SendAndClose(*AnalyzeResponse) error
	Recv() (*UploadImageRequest, error)
	grpc.ServerStream
}

type shelfServiceUploadImageServer struct {
	grpc.ServerStream
}

func (x *shelfServiceUploadImageServer) SendAndClose(m *AnalyzeResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *shelfServiceUploadImageServer) Recv() (*UploadImageRequest, error) {
	m := new(UploadImageRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func uploadImageHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ShelfServiceServer).UploadImage(&shelfServiceUploadImageServer{stream})
}

var ShelfService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "shelf.ShelfService",
	HandlerType: (*ShelfServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Analyze",
			Handler:    unaryHandler(ShelfService_Analyze_FullMethodName, ShelfServiceServer.Analyze),
		},
		{
			MethodName: "Ask",
			Handler:    unaryHandler(ShelfService_Ask_FullMethodName, ShelfServiceServer.Ask),
		},
		{
			MethodName: "Health",
			Handler:    unaryHandler(ShelfService_Health_FullMethodName, ShelfServiceServer.Health),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "UploadImage",
			Handler:       uploadImageHandler,
			ClientStreams: true,
		},
	},
	Metadata: "shelf.proto",
}

type ShelfServiceClient interface {
	Analyze(ctx context.Context, in *AnalyzeRequest, opts ...grpc.CallOption) (*AnalyzeResponse, error)
	UploadImage(ctx context.Context, opts ...grpc.CallOption) (ShelfService_UploadImageClient, error)
	Ask(ctx context.Context, in *AskRequest, opts ...grpc.CallOption) (*AskResponse, error)
	Health(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*HealthResponse, error)
}

type shelfServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewShelfServiceClient returns a client that always requests the JSON codec.
func NewShelfServiceClient(cc grpc.ClientConnInterface) ShelfServiceClient {
	return &shelfServiceClient{cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *shelfServiceClient) Analyze(ctx context.Context, in *AnalyzeRequest, opts ...grpc.CallOption) (*AnalyzeResponse, error) {
	out := new(AnalyzeResponse)
	if err := c.cc.Invoke(ctx, ShelfService_Analyze_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *shelfServiceClient) Ask(ctx context.Context, in *AskRequest, opts ...grpc.CallOption) (*AskResponse, error) {
	out := new(AskResponse)
	if err := c.cc.Invoke(ctx, ShelfService_Ask_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *shelfServiceClient) Health(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*HealthResponse, error) {
	out := new(HealthResponse)
	if err := c.cc.Invoke(ctx, ShelfService_Health_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

type ShelfService_UploadImageClient interface {
	Send(*UploadImageRequest) error
	CloseAndRecv() (*AnalyzeResponse, error)
	grpc.ClientStream
}

type shelfServiceUploadImageClient struct {
	grpc.ClientStream
}

func (c *shelfServiceClient) UploadImage(ctx context.Context, opts ...grpc.CallOption) (ShelfService_UploadImageClient, error) {
	stream, err := c.cc.NewStream(ctx, &ShelfService_ServiceDesc.Streams[0], ShelfService_UploadImage_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return &shelfServiceUploadImageClient{stream}, nil
}

func (x *shelfServiceUploadImageClient) Send(m *UploadImageRequest) error {
	return x.ClientStream.SendMsg(m)
}

func (x *shelfServiceUploadImageClient) CloseAndRecv() (*AnalyzeResponse, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(AnalyzeResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
