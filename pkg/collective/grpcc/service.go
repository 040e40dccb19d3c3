package grpcc

import (
	"context"

	"google.golang.org/grpc"
)

// CollectiveServer is implemented by the coordinator: one method per
// collective, plus the two point-to-point primitives.
type CollectiveServer interface {
	Broadcast(context.Context, *BroadcastRequest) (*BroadcastReply, error)
	ReduceSum(context.Context, *ReduceRequest) (*ReduceReply, error)
	AllReduceSum(context.Context, *AllReduceRequest) (*AllReduceReply, error)
	Send(context.Context, *SendRequest) (*SendReply, error)
	Recv(context.Context, *RecvRequest) (*RecvReply, error)
}

// RegisterCollectiveServer registers impl on s using the hand-rolled
// ServiceDesc below (the manual equivalent of a protoc-gen-go-grpc
// _grpc.pb.go file).
func RegisterCollectiveServer(s *grpc.Server, impl CollectiveServer) {
	s.RegisterService(&serviceDesc, impl)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "cabinets.collective.Collective",
	HandlerType: (*CollectiveServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Broadcast", Handler: broadcastHandler},
		{MethodName: "ReduceSum", Handler: reduceSumHandler},
		{MethodName: "AllReduceSum", Handler: allReduceSumHandler},
		{MethodName: "Send", Handler: sendHandler},
		{MethodName: "Recv", Handler: recvHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cabinets/collective.proto",
}

func broadcastHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(BroadcastRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectiveServer).Broadcast(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/cabinets.collective.Collective/Broadcast"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CollectiveServer).Broadcast(ctx, req.(*BroadcastRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func reduceSumHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ReduceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectiveServer).ReduceSum(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/cabinets.collective.Collective/ReduceSum"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CollectiveServer).ReduceSum(ctx, req.(*ReduceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func allReduceSumHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AllReduceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectiveServer).AllReduceSum(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/cabinets.collective.Collective/AllReduceSum"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CollectiveServer).AllReduceSum(ctx, req.(*AllReduceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func sendHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SendRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectiveServer).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/cabinets.collective.Collective/Send"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CollectiveServer).Send(ctx, req.(*SendRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func recvHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RecvRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CollectiveServer).Recv(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/cabinets.collective.Collective/Recv"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CollectiveServer).Recv(ctx, req.(*RecvRequest))
	}
	return interceptor(ctx, in, info, handler)
}
