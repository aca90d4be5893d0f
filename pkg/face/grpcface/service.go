package grpcface

import (
    "context"

    "google.golang.org/grpc"

    "github.com/carlossantillana/ndn-drop/pkg/face"
)

const expressMethod = "/ndn.v1.Forwarder/Express"

type expressRequest struct {
    Interest face.Interest `json:"interest"`
}

type expressReply struct {
    Kind   face.ResultKind `json:"kind"`
    Data   face.Data       `json:"data"`
    Reason face.NackReason `json:"reason,omitempty"`
}

func (r expressReply) result() face.Result { return face.Result{Kind: r.Kind, Data: r.Data, Reason: r.Reason} }

type forwarderServer interface {
    Express(ctx context.Context, in *expressRequest) (*expressReply, error)
}

// Hand-written descriptor; there is no .proto for this service.
var _Forwarder_serviceDesc = grpc.ServiceDesc{
    ServiceName: "ndn.v1.Forwarder",
    HandlerType: (*forwarderServer)(nil),
    Methods: []grpc.MethodDesc{
        {MethodName: "Express", Handler: _Forwarder_Express_Handler},
    },
}

func _Forwarder_Express_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
    in := new(expressRequest)
    if err := dec(in); err != nil { return nil, err }
    if interceptor == nil { return srv.(forwarderServer).Express(ctx, in) }
    info := &grpc.UnaryServerInfo{Server: srv, FullMethod: expressMethod}
    handler := func(ctx context.Context, req any) (any, error) {
        return srv.(forwarderServer).Express(ctx, req.(*expressRequest))
    }
    return interceptor(ctx, in, info, handler)
}
