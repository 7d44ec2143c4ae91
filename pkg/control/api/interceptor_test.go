package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsReadOnlyMethodAllowsListGetInspectWatchDescribeShow(t *testing.T) {
	cases := []string{
		"/fleet.v1.FleetAPI/ListLabs",
		"/fleet.v1.FleetAPI/GetLab",
		"/fleet.v1.FleetAPI/InspectNode",
		"/fleet.v1.FleetAPI/WatchEvents",
		"/fleet.v1.FleetAPI/DescribeHost",
		"/fleet.v1.FleetAPI/ShowTopology",
		"/fleet.v1.FleetAPI/StreamEvents",
	}
	for _, method := range cases {
		require.True(t, isReadOnlyMethod(method), method)
	}
}

func TestIsReadOnlyMethodBlocksWrites(t *testing.T) {
	cases := []string{
		"/fleet.v1.FleetAPI/CreateLab",
		"/fleet.v1.FleetAPI/DeleteLab",
		"/fleet.v1.FleetAPI/DeployLab",
		"/fleet.v1.FleetAPI/StartNode",
	}
	for _, method := range cases {
		require.False(t, isReadOnlyMethod(method), method)
	}
}

func TestIsReadOnlyMethodRejectsMalformedMethodString(t *testing.T) {
	require.False(t, isReadOnlyMethod("NoSlashesHere"))
}

func TestReadOnlyInterceptorAllowsReadCall(t *testing.T) {
	interceptor := ReadOnlyInterceptor()
	called := false
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		called = true
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/fleet.v1.FleetAPI/ListLabs"}

	resp, err := interceptor(context.Background(), nil, info, handler)
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, "ok", resp)
}

func TestReadOnlyInterceptorBlocksWriteCall(t *testing.T) {
	interceptor := ReadOnlyInterceptor()
	called := false
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		called = true
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/fleet.v1.FleetAPI/DeleteLab"}

	_, err := interceptor(context.Background(), nil, info, handler)
	require.Error(t, err)
	require.False(t, called)
	require.Equal(t, codes.PermissionDenied, status.Code(err))
}
