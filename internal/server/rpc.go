package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amityadav/clipping/internal/core"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// IngestServiceName is the fully qualified gRPC service name.
const IngestServiceName = "clipping.IngestService"

// LockReleasedMessage is the reply of a successful lock release.
const LockReleasedMessage = "lock released"

// IngestServiceServer is the gRPC surface. Requests and responses are
// google.protobuf.Struct so reports keep their JSON shape.
type IngestServiceServer interface {
	Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	FixAll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	FixOne(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	LockStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ReleaseLock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// IngestServer implements IngestServiceServer on top of Services.
type IngestServer struct {
	services Services
}

var _ IngestServiceServer = (*IngestServer)(nil)

func NewIngestServer(services Services) *IngestServer {
	return &IngestServer{services: services}
}

func (s *IngestServer) Run(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := s.services.jobContext(ctx)
	defer cancel()
	report, err := s.services.Ingest.Run(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(report)
}

func (s *IngestServer) FixAll(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := s.services.jobContext(ctx)
	defer cancel()
	report, err := s.services.Fix.FixAll(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(report)
}

func (s *IngestServer) FixOne(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenant := req.GetFields()["tenant"].GetStringValue()
	if tenant == "" {
		return nil, status.Error(codes.InvalidArgument, "tenant is required")
	}
	ctx, cancel := s.services.jobContext(ctx)
	defer cancel()
	report, err := s.services.Fix.FixOne(ctx, tenant)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(report)
}

func (s *IngestServer) LockStatus(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st, err := s.services.Fix.LockStatus(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(st)
}

func (s *IngestServer) ReleaseLock(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.services.Fix.ReleaseLock(ctx); err != nil {
		return nil, grpcError(err)
	}
	return structpb.NewStruct(map[string]interface{}{"message": LockReleasedMessage})
}

// RegisterIngestService registers the service on a gRPC server.
func RegisterIngestService(r grpc.ServiceRegistrar, srv IngestServiceServer) {
	r.RegisterService(&ingestServiceDesc, srv)
}

var ingestServiceDesc = grpc.ServiceDesc{
	ServiceName: IngestServiceName,
	HandlerType: (*IngestServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Run", IngestServiceServer.Run),
		unaryMethod("FixAll", IngestServiceServer.FixAll),
		unaryMethod("FixOne", IngestServiceServer.FixOne),
		unaryMethod("LockStatus", IngestServiceServer.LockStatus),
		unaryMethod("ReleaseLock", IngestServiceServer.ReleaseLock),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clipping/ingest.proto",
}

type structMethod func(IngestServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call structMethod) grpc.MethodDesc {
	fullMethod := "/" + IngestServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(IngestServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(IngestServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, core.ErrLockConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, core.ErrConfigMissing):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct round-trips through JSON so field names match the REST payloads.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("failed to encode response: %v", err))
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("failed to encode response: %v", err))
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("failed to encode response: %v", err))
	}
	return out, nil
}
