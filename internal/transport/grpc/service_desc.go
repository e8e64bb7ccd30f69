package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "schedula.availability.v1.AvailabilityService"

const (
	listAvailabilityMethod = "/" + ServiceName + "/ListAvailability"
	upsertBatchMethod      = "/" + ServiceName + "/UpsertBatch"
	upsertMethod           = "/" + ServiceName + "/Upsert"
)

type Record struct {
	Date      string `json:"date"`
	SlotStart string `json:"slotStart"`
	IsOpen    bool   `json:"isOpen"`
}

type ListAvailabilityRequest struct {
	RangeStart string `json:"rangeStart"`
	RangeEnd   string `json:"rangeEnd"`
}

type ListAvailabilityResponse struct {
	Records []Record `json:"records"`
}

type UpsertBatchRequest struct {
	Records []Record `json:"records"`
}

type UpsertBatchResponse struct {
	Applied int `json:"applied"`
}

type UpsertRequest struct {
	Record *Record `json:"record"`
}

type UpsertResponse struct {
	Record Record `json:"record"`
}

type AvailabilityServiceServer interface {
	ListAvailability(ctx context.Context, req *ListAvailabilityRequest) (*ListAvailabilityResponse, error)
	UpsertBatch(ctx context.Context, req *UpsertBatchRequest) (*UpsertBatchResponse, error)
	Upsert(ctx context.Context, req *UpsertRequest) (*UpsertResponse, error)
}

func RegisterAvailabilityServiceServer(s grpc.ServiceRegistrar, srv AvailabilityServiceServer) {
	s.RegisterService(&availabilityServiceDesc, srv)
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListAvailability", Handler: listAvailabilityHandler},
		{MethodName: "UpsertBatch", Handler: upsertBatchHandler},
		{MethodName: "Upsert", Handler: upsertHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func listAvailabilityHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListAvailabilityRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServiceServer).ListAvailability(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listAvailabilityMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServiceServer).ListAvailability(ctx, req.(*ListAvailabilityRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func upsertBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UpsertBatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServiceServer).UpsertBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: upsertBatchMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServiceServer).UpsertBatch(ctx, req.(*UpsertBatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func upsertHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(UpsertRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityServiceServer).Upsert(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: upsertMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityServiceServer).Upsert(ctx, req.(*UpsertRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// AvailabilityServiceClient calls the service with the JSON codec.
type AvailabilityServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAvailabilityServiceClient(cc grpc.ClientConnInterface) *AvailabilityServiceClient {
	return &AvailabilityServiceClient{cc: cc}
}

func (c *AvailabilityServiceClient) ListAvailability(ctx context.Context, in *ListAvailabilityRequest, opts ...grpc.CallOption) (*ListAvailabilityResponse, error) {
	out := new(ListAvailabilityResponse)
	if err := c.cc.Invoke(ctx, listAvailabilityMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AvailabilityServiceClient) UpsertBatch(ctx context.Context, in *UpsertBatchRequest, opts ...grpc.CallOption) (*UpsertBatchResponse, error) {
	out := new(UpsertBatchResponse)
	if err := c.cc.Invoke(ctx, upsertBatchMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AvailabilityServiceClient) Upsert(ctx context.Context, in *UpsertRequest, opts ...grpc.CallOption) (*UpsertResponse, error) {
	out := new(UpsertResponse)
	if err := c.cc.Invoke(ctx, upsertMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
