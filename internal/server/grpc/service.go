package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The service uses protobuf well-known types for its messages, so the
// descriptor below is maintained by hand instead of generated.
const (
	ServiceName = "authkeeper.v1.AuthService"

	LoginMethod        = "/" + ServiceName + "/Login"
	RefreshTokenMethod = "/" + ServiceName + "/RefreshToken"
	LogoutMethod       = "/" + ServiceName + "/Logout"
	CurrentUserMethod  = "/" + ServiceName + "/CurrentUser"
)

// AuthServiceServer is implemented by GRPCServer.
type AuthServiceServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshToken(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Logout(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	CurrentUser(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func unaryHandler[Req any, PReq interface {
	*Req
	proto.Message
}, Resp proto.Message](fullMethod string, call func(AuthServiceServer, context.Context, PReq) (Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServiceServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Login",
			Handler:    unaryHandler(LoginMethod, AuthServiceServer.Login),
		},
		{
			MethodName: "RefreshToken",
			Handler:    unaryHandler(RefreshTokenMethod, AuthServiceServer.RefreshToken),
		},
		{
			MethodName: "Logout",
			Handler:    unaryHandler(LogoutMethod, AuthServiceServer.Logout),
		},
		{
			MethodName: "CurrentUser",
			Handler:    unaryHandler(CurrentUserMethod, AuthServiceServer.CurrentUser),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authkeeper/v1/auth.proto",
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

// AuthServiceClient is a thin client over a connection to AuthService.
type AuthServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthServiceClient(cc grpc.ClientConnInterface) *AuthServiceClient {
	return &AuthServiceClient{cc: cc}
}

func (c *AuthServiceClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, LoginMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthServiceClient) RefreshToken(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RefreshTokenMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthServiceClient) Logout(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, LogoutMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AuthServiceClient) CurrentUser(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CurrentUserMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
