// Package storeapi is the wire contract between the client and the store
// service. There is no generated code: every request and response is a
// google.protobuf.Struct, and the service descriptor is declared by hand.
package storeapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "lifedash.store.v1.Store"

const (
	MethodPing         = "Ping"
	MethodSignUp       = "SignUp"
	MethodSignIn       = "SignIn"
	MethodRefreshToken = "RefreshToken"
	MethodSignOut      = "SignOut"
	MethodGetUser      = "GetUser"
	MethodListUsers    = "ListUsers"
	MethodSelect       = "Select"
	MethodInsert       = "Insert"
	MethodUpdate       = "Update"
	MethodUpsert       = "Upsert"
)

// FullMethod returns the path gRPC uses for method, e.g.
// "/lifedash.store.v1.Store/Select".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// StoreServer is implemented by the store service.
type StoreServer interface {
	Ping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	SignUp(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	SignIn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	RefreshToken(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	SignOut(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListUsers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Select(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Insert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Upsert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv StoreServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func methodDesc(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StoreServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(StoreServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the store service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StoreServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc(MethodPing, StoreServer.Ping),
		methodDesc(MethodSignUp, StoreServer.SignUp),
		methodDesc(MethodSignIn, StoreServer.SignIn),
		methodDesc(MethodRefreshToken, StoreServer.RefreshToken),
		methodDesc(MethodSignOut, StoreServer.SignOut),
		methodDesc(MethodGetUser, StoreServer.GetUser),
		methodDesc(MethodListUsers, StoreServer.ListUsers),
		methodDesc(MethodSelect, StoreServer.Select),
		methodDesc(MethodInsert, StoreServer.Insert),
		methodDesc(MethodUpdate, StoreServer.Update),
		methodDesc(MethodUpsert, StoreServer.Upsert),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lifedash/store/v1",
}

func RegisterStoreServer(s grpc.ServiceRegistrar, srv StoreServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls store methods over a connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
