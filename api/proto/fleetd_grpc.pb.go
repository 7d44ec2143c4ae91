package fleetv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	FleetAPI_CreateLab_FullMethodName     = "/fleet.v1.FleetAPI/CreateLab"
	FleetAPI_GetLab_FullMethodName        = "/fleet.v1.FleetAPI/GetLab"
	FleetAPI_ListLabs_FullMethodName      = "/fleet.v1.FleetAPI/ListLabs"
	FleetAPI_DeleteLab_FullMethodName     = "/fleet.v1.FleetAPI/DeleteLab"
	FleetAPI_DeployLab_FullMethodName     = "/fleet.v1.FleetAPI/DeployLab"
	FleetAPI_DestroyLab_FullMethodName    = "/fleet.v1.FleetAPI/DestroyLab"
	FleetAPI_StartNode_FullMethodName     = "/fleet.v1.FleetAPI/StartNode"
	FleetAPI_StopNode_FullMethodName      = "/fleet.v1.FleetAPI/StopNode"
	FleetAPI_GetJob_FullMethodName        = "/fleet.v1.FleetAPI/GetJob"
	FleetAPI_ListJobs_FullMethodName      = "/fleet.v1.FleetAPI/ListJobs"
	FleetAPI_CancelJob_FullMethodName     = "/fleet.v1.FleetAPI/CancelJob"
	FleetAPI_RegisterHost_FullMethodName  = "/fleet.v1.FleetAPI/RegisterHost"
	FleetAPI_Heartbeat_FullMethodName     = "/fleet.v1.FleetAPI/Heartbeat"
	FleetAPI_ListHosts_FullMethodName     = "/fleet.v1.FleetAPI/ListHosts"
	FleetAPI_StreamEvents_FullMethodName  = "/fleet.v1.FleetAPI/StreamEvents"
	FleetAPI_GenerateJoinToken_FullMethodName   = "/fleet.v1.FleetAPI/GenerateJoinToken"
	FleetAPI_RequestCertificate_FullMethodName  = "/fleet.v1.FleetAPI/RequestCertificate"
)

// FleetAPIServer is the server API for the FleetAPI service.
type FleetAPIServer interface {
	CreateLab(context.Context, *CreateLabRequest) (*CreateLabResponse, error)
	GetLab(context.Context, *GetLabRequest) (*GetLabResponse, error)
	ListLabs(context.Context, *ListLabsRequest) (*ListLabsResponse, error)
	DeleteLab(context.Context, *DeleteLabRequest) (*DeleteLabResponse, error)
	DeployLab(context.Context, *DeployLabRequest) (*DeployLabResponse, error)
	DestroyLab(context.Context, *DestroyLabRequest) (*DestroyLabResponse, error)
	StartNode(context.Context, *StartNodeRequest) (*StartNodeResponse, error)
	StopNode(context.Context, *StopNodeRequest) (*StopNodeResponse, error)
	GetJob(context.Context, *GetJobRequest) (*GetJobResponse, error)
	ListJobs(context.Context, *ListJobsRequest) (*ListJobsResponse, error)
	CancelJob(context.Context, *CancelJobRequest) (*CancelJobResponse, error)
	RegisterHost(context.Context, *RegisterHostRequest) (*RegisterHostResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	ListHosts(context.Context, *ListHostsRequest) (*ListHostsResponse, error)
	StreamEvents(*StreamEventsRequest, FleetAPI_StreamEventsServer) error
	GenerateJoinToken(context.Context, *GenerateJoinTokenRequest) (*GenerateJoinTokenResponse, error)
	RequestCertificate(context.Context, *RequestCertificateRequest) (*RequestCertificateResponse, error)
}

// UnimplementedFleetAPIServer must be embedded by server implementations for
// forward compatibility: new RPCs added here won't break existing servers.
type UnimplementedFleetAPIServer struct{}

func (UnimplementedFleetAPIServer) CreateLab(context.Context, *CreateLabRequest) (*CreateLabResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateLab not implemented")
}
func (UnimplementedFleetAPIServer) GetLab(context.Context, *GetLabRequest) (*GetLabResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetLab not implemented")
}
func (UnimplementedFleetAPIServer) ListLabs(context.Context, *ListLabsRequest) (*ListLabsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListLabs not implemented")
}
func (UnimplementedFleetAPIServer) DeleteLab(context.Context, *DeleteLabRequest) (*DeleteLabResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteLab not implemented")
}
func (UnimplementedFleetAPIServer) DeployLab(context.Context, *DeployLabRequest) (*DeployLabResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeployLab not implemented")
}
func (UnimplementedFleetAPIServer) DestroyLab(context.Context, *DestroyLabRequest) (*DestroyLabResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DestroyLab not implemented")
}
func (UnimplementedFleetAPIServer) StartNode(context.Context, *StartNodeRequest) (*StartNodeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method StartNode not implemented")
}
func (UnimplementedFleetAPIServer) StopNode(context.Context, *StopNodeRequest) (*StopNodeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method StopNode not implemented")
}
func (UnimplementedFleetAPIServer) GetJob(context.Context, *GetJobRequest) (*GetJobResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetJob not implemented")
}
func (UnimplementedFleetAPIServer) ListJobs(context.Context, *ListJobsRequest) (*ListJobsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListJobs not implemented")
}
func (UnimplementedFleetAPIServer) CancelJob(context.Context, *CancelJobRequest) (*CancelJobResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CancelJob not implemented")
}
func (UnimplementedFleetAPIServer) RegisterHost(context.Context, *RegisterHostRequest) (*RegisterHostResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterHost not implemented")
}
func (UnimplementedFleetAPIServer) Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Heartbeat not implemented")
}
func (UnimplementedFleetAPIServer) ListHosts(context.Context, *ListHostsRequest) (*ListHostsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListHosts not implemented")
}
func (UnimplementedFleetAPIServer) StreamEvents(*StreamEventsRequest, FleetAPI_StreamEventsServer) error {
	return status.Error(codes.Unimplemented, "method StreamEvents not implemented")
}
func (UnimplementedFleetAPIServer) GenerateJoinToken(context.Context, *GenerateJoinTokenRequest) (*GenerateJoinTokenResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GenerateJoinToken not implemented")
}
func (UnimplementedFleetAPIServer) RequestCertificate(context.Context, *RequestCertificateRequest) (*RequestCertificateResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RequestCertificate not implemented")
}

// FleetAPI_StreamEventsServer is the server-side stream for StreamEvents.
type FleetAPI_StreamEventsServer interface {
	Send(*Event) error
	grpc.ServerStream
}

type fleetAPIStreamEventsServer struct {
	grpc.ServerStream
}

func (x *fleetAPIStreamEventsServer) Send(e *Event) error {
	return x.ServerStream.SendMsg(e)
}

// RegisterFleetAPIServer registers srv with s under the FleetAPI service
// descriptor.
func RegisterFleetAPIServer(s grpc.ServiceRegistrar, srv FleetAPIServer) {
	s.RegisterService(&FleetAPI_ServiceDesc, srv)
}

func _FleetAPI_CreateLab_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CreateLabRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).CreateLab(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_CreateLab_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).CreateLab(ctx, req.(*CreateLabRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_GetLab_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetLabRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).GetLab(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_GetLab_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).GetLab(ctx, req.(*GetLabRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_ListLabs_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListLabsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).ListLabs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_ListLabs_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).ListLabs(ctx, req.(*ListLabsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_DeleteLab_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeleteLabRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).DeleteLab(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_DeleteLab_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).DeleteLab(ctx, req.(*DeleteLabRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_DeployLab_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeployLabRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).DeployLab(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_DeployLab_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).DeployLab(ctx, req.(*DeployLabRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_DestroyLab_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DestroyLabRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).DestroyLab(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_DestroyLab_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).DestroyLab(ctx, req.(*DestroyLabRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_StartNode_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StartNodeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).StartNode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_StartNode_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).StartNode(ctx, req.(*StartNodeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_StopNode_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StopNodeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).StopNode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_StopNode_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).StopNode(ctx, req.(*StopNodeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_GetJob_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetJobRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).GetJob(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_GetJob_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).GetJob(ctx, req.(*GetJobRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_ListJobs_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListJobsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).ListJobs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_ListJobs_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).ListJobs(ctx, req.(*ListJobsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_CancelJob_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CancelJobRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).CancelJob(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_CancelJob_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).CancelJob(ctx, req.(*CancelJobRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_RegisterHost_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RegisterHostRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).RegisterHost(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_RegisterHost_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).RegisterHost(ctx, req.(*RegisterHostRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_Heartbeat_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HeartbeatRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).Heartbeat(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_Heartbeat_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).Heartbeat(ctx, req.(*HeartbeatRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_ListHosts_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListHostsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).ListHosts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_ListHosts_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).ListHosts(ctx, req.(*ListHostsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_GenerateJoinToken_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GenerateJoinTokenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).GenerateJoinToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_GenerateJoinToken_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).GenerateJoinToken(ctx, req.(*GenerateJoinTokenRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_RequestCertificate_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RequestCertificateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FleetAPIServer).RequestCertificate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FleetAPI_RequestCertificate_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FleetAPIServer).RequestCertificate(ctx, req.(*RequestCertificateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _FleetAPI_StreamEvents_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(StreamEventsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(FleetAPIServer).StreamEvents(m, &fleetAPIStreamEventsServer{stream})
}

// FleetAPI_ServiceDesc is the grpc.ServiceDesc for FleetAPI.
var FleetAPI_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "fleet.v1.FleetAPI",
	HandlerType: (*FleetAPIServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateLab", Handler: _FleetAPI_CreateLab_Handler},
		{MethodName: "GetLab", Handler: _FleetAPI_GetLab_Handler},
		{MethodName: "ListLabs", Handler: _FleetAPI_ListLabs_Handler},
		{MethodName: "DeleteLab", Handler: _FleetAPI_DeleteLab_Handler},
		{MethodName: "DeployLab", Handler: _FleetAPI_DeployLab_Handler},
		{MethodName: "DestroyLab", Handler: _FleetAPI_DestroyLab_Handler},
		{MethodName: "StartNode", Handler: _FleetAPI_StartNode_Handler},
		{MethodName: "StopNode", Handler: _FleetAPI_StopNode_Handler},
		{MethodName: "GetJob", Handler: _FleetAPI_GetJob_Handler},
		{MethodName: "ListJobs", Handler: _FleetAPI_ListJobs_Handler},
		{MethodName: "CancelJob", Handler: _FleetAPI_CancelJob_Handler},
		{MethodName: "RegisterHost", Handler: _FleetAPI_RegisterHost_Handler},
		{MethodName: "Heartbeat", Handler: _FleetAPI_Heartbeat_Handler},
		{MethodName: "ListHosts", Handler: _FleetAPI_ListHosts_Handler},
		{MethodName: "GenerateJoinToken", Handler: _FleetAPI_GenerateJoinToken_Handler},
		{MethodName: "RequestCertificate", Handler: _FleetAPI_RequestCertificate_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamEvents",
			Handler:       _FleetAPI_StreamEvents_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "fleetd.proto",
}

// FleetAPIClient is the client API for the FleetAPI service.
type FleetAPIClient interface {
	CreateLab(ctx context.Context, in *CreateLabRequest, opts ...grpc.CallOption) (*CreateLabResponse, error)
	GetLab(ctx context.Context, in *GetLabRequest, opts ...grpc.CallOption) (*GetLabResponse, error)
	ListLabs(ctx context.Context, in *ListLabsRequest, opts ...grpc.CallOption) (*ListLabsResponse, error)
	DeleteLab(ctx context.Context, in *DeleteLabRequest, opts ...grpc.CallOption) (*DeleteLabResponse, error)
	DeployLab(ctx context.Context, in *DeployLabRequest, opts ...grpc.CallOption) (*DeployLabResponse, error)
	DestroyLab(ctx context.Context, in *DestroyLabRequest, opts ...grpc.CallOption) (*DestroyLabResponse, error)
	StartNode(ctx context.Context, in *StartNodeRequest, opts ...grpc.CallOption) (*StartNodeResponse, error)
	StopNode(ctx context.Context, in *StopNodeRequest, opts ...grpc.CallOption) (*StopNodeResponse, error)
	GetJob(ctx context.Context, in *GetJobRequest, opts ...grpc.CallOption) (*GetJobResponse, error)
	ListJobs(ctx context.Context, in *ListJobsRequest, opts ...grpc.CallOption) (*ListJobsResponse, error)
	CancelJob(ctx context.Context, in *CancelJobRequest, opts ...grpc.CallOption) (*CancelJobResponse, error)
	RegisterHost(ctx context.Context, in *RegisterHostRequest, opts ...grpc.CallOption) (*RegisterHostResponse, error)
	Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error)
	ListHosts(ctx context.Context, in *ListHostsRequest, opts ...grpc.CallOption) (*ListHostsResponse, error)
	StreamEvents(ctx context.Context, in *StreamEventsRequest, opts ...grpc.CallOption) (FleetAPI_StreamEventsClient, error)
	GenerateJoinToken(ctx context.Context, in *GenerateJoinTokenRequest, opts ...grpc.CallOption) (*GenerateJoinTokenResponse, error)
	RequestCertificate(ctx context.Context, in *RequestCertificateRequest, opts ...grpc.CallOption) (*RequestCertificateResponse, error)
}

type fleetAPIClient struct {
	cc grpc.ClientConnInterface
}

func NewFleetAPIClient(cc grpc.ClientConnInterface) FleetAPIClient {
	return &fleetAPIClient{cc}
}

func (c *fleetAPIClient) CreateLab(ctx context.Context, in *CreateLabRequest, opts ...grpc.CallOption) (*CreateLabResponse, error) {
	out := new(CreateLabResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_CreateLab_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) GetLab(ctx context.Context, in *GetLabRequest, opts ...grpc.CallOption) (*GetLabResponse, error) {
	out := new(GetLabResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_GetLab_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) ListLabs(ctx context.Context, in *ListLabsRequest, opts ...grpc.CallOption) (*ListLabsResponse, error) {
	out := new(ListLabsResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_ListLabs_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) DeleteLab(ctx context.Context, in *DeleteLabRequest, opts ...grpc.CallOption) (*DeleteLabResponse, error) {
	out := new(DeleteLabResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_DeleteLab_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) DeployLab(ctx context.Context, in *DeployLabRequest, opts ...grpc.CallOption) (*DeployLabResponse, error) {
	out := new(DeployLabResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_DeployLab_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) DestroyLab(ctx context.Context, in *DestroyLabRequest, opts ...grpc.CallOption) (*DestroyLabResponse, error) {
	out := new(DestroyLabResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_DestroyLab_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) StartNode(ctx context.Context, in *StartNodeRequest, opts ...grpc.CallOption) (*StartNodeResponse, error) {
	out := new(StartNodeResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_StartNode_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) StopNode(ctx context.Context, in *StopNodeRequest, opts ...grpc.CallOption) (*StopNodeResponse, error) {
	out := new(StopNodeResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_StopNode_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) GetJob(ctx context.Context, in *GetJobRequest, opts ...grpc.CallOption) (*GetJobResponse, error) {
	out := new(GetJobResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_GetJob_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) ListJobs(ctx context.Context, in *ListJobsRequest, opts ...grpc.CallOption) (*ListJobsResponse, error) {
	out := new(ListJobsResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_ListJobs_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) CancelJob(ctx context.Context, in *CancelJobRequest, opts ...grpc.CallOption) (*CancelJobResponse, error) {
	out := new(CancelJobResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_CancelJob_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) RegisterHost(ctx context.Context, in *RegisterHostRequest, opts ...grpc.CallOption) (*RegisterHostResponse, error) {
	out := new(RegisterHostResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_RegisterHost_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_Heartbeat_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) ListHosts(ctx context.Context, in *ListHostsRequest, opts ...grpc.CallOption) (*ListHostsResponse, error) {
	out := new(ListHostsResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_ListHosts_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) StreamEvents(ctx context.Context, in *StreamEventsRequest, opts ...grpc.CallOption) (FleetAPI_StreamEventsClient, error) {
	stream, err := c.cc.NewStream(ctx, &FleetAPI_ServiceDesc.Streams[0], FleetAPI_StreamEvents_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &fleetAPIStreamEventsClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *fleetAPIClient) GenerateJoinToken(ctx context.Context, in *GenerateJoinTokenRequest, opts ...grpc.CallOption) (*GenerateJoinTokenResponse, error) {
	out := new(GenerateJoinTokenResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_GenerateJoinToken_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fleetAPIClient) RequestCertificate(ctx context.Context, in *RequestCertificateRequest, opts ...grpc.CallOption) (*RequestCertificateResponse, error) {
	out := new(RequestCertificateResponse)
	if err := c.cc.Invoke(ctx, FleetAPI_RequestCertificate_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// FleetAPI_StreamEventsClient is the client-side stream for StreamEvents.
type FleetAPI_StreamEventsClient interface {
	Recv() (*Event, error)
	grpc.ClientStream
}

type fleetAPIStreamEventsClient struct {
	grpc.ClientStream
}

func (x *fleetAPIStreamEventsClient) Recv() (*Event, error) {
	m := new(Event)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
