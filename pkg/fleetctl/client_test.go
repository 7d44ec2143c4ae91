package fleetctl

import (
	"context"
	"errors"
	"testing"

	fleetv1 "github.com/cuemby/fleetd/api/proto"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

// fakeFleetAPIClient implements fleetv1.FleetAPIClient in-process so Client's
// request-building and response-unwrapping can be exercised without a real
// gRPC connection or the mTLS certificate New requires.
type fakeFleetAPIClient struct {
	lastCreateLab *fleetv1.CreateLabRequest
	lastDeployLab *fleetv1.DeployLabRequest
	err           error
}

func (f *fakeFleetAPIClient) CreateLab(ctx context.Context, in *fleetv1.CreateLabRequest, opts ...grpc.CallOption) (*fleetv1.CreateLabResponse, error) {
	f.lastCreateLab = in
	if f.err != nil {
		return nil, f.err
	}
	return &fleetv1.CreateLabResponse{Lab: &fleetv1.Lab{Id: "lab-1", Owner: in.Owner}}, nil
}
func (f *fakeFleetAPIClient) GetLab(ctx context.Context, in *fleetv1.GetLabRequest, opts ...grpc.CallOption) (*fleetv1.GetLabResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fleetv1.GetLabResponse{Lab: &fleetv1.Lab{Id: in.Id}}, nil
}
func (f *fakeFleetAPIClient) ListLabs(ctx context.Context, in *fleetv1.ListLabsRequest, opts ...grpc.CallOption) (*fleetv1.ListLabsResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fleetv1.ListLabsResponse{Labs: []*fleetv1.Lab{{Id: "lab-1", Owner: in.OwnerFilter}}}, nil
}
func (f *fakeFleetAPIClient) DeleteLab(ctx context.Context, in *fleetv1.DeleteLabRequest, opts ...grpc.CallOption) (*fleetv1.DeleteLabResponse, error) {
	return &fleetv1.DeleteLabResponse{}, f.err
}
func (f *fakeFleetAPIClient) DeployLab(ctx context.Context, in *fleetv1.DeployLabRequest, opts ...grpc.CallOption) (*fleetv1.DeployLabResponse, error) {
	f.lastDeployLab = in
	if f.err != nil {
		return nil, f.err
	}
	return &fleetv1.DeployLabResponse{Job: &fleetv1.Job{Id: "job-1", LabId: in.LabId}}, nil
}
func (f *fakeFleetAPIClient) DestroyLab(ctx context.Context, in *fleetv1.DestroyLabRequest, opts ...grpc.CallOption) (*fleetv1.DestroyLabResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fleetv1.DestroyLabResponse{Job: &fleetv1.Job{Id: "job-2", LabId: in.LabId}}, nil
}
func (f *fakeFleetAPIClient) StartNode(ctx context.Context, in *fleetv1.StartNodeRequest, opts ...grpc.CallOption) (*fleetv1.StartNodeResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fleetv1.StartNodeResponse{Job: &fleetv1.Job{Id: "job-3", LabId: in.LabId}}, nil
}
func (f *fakeFleetAPIClient) StopNode(ctx context.Context, in *fleetv1.StopNodeRequest, opts ...grpc.CallOption) (*fleetv1.StopNodeResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fleetv1.StopNodeResponse{Job: &fleetv1.Job{Id: "job-4", LabId: in.LabId}}, nil
}
func (f *fakeFleetAPIClient) GetJob(ctx context.Context, in *fleetv1.GetJobRequest, opts ...grpc.CallOption) (*fleetv1.GetJobResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fleetv1.GetJobResponse{Job: &fleetv1.Job{Id: in.Id}}, nil
}
func (f *fakeFleetAPIClient) ListJobs(ctx context.Context, in *fleetv1.ListJobsRequest, opts ...grpc.CallOption) (*fleetv1.ListJobsResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fleetv1.ListJobsResponse{Jobs: []*fleetv1.Job{{Id: "job-1", LabId: in.LabId}}}, nil
}
func (f *fakeFleetAPIClient) CancelJob(ctx context.Context, in *fleetv1.CancelJobRequest, opts ...grpc.CallOption) (*fleetv1.CancelJobResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fleetv1.CancelJobResponse{Job: &fleetv1.Job{Id: in.Id, Status: "cancelled"}}, nil
}
func (f *fakeFleetAPIClient) RegisterHost(ctx context.Context, in *fleetv1.RegisterHostRequest, opts ...grpc.CallOption) (*fleetv1.RegisterHostResponse, error) {
	return &fleetv1.RegisterHostResponse{Host: &fleetv1.Host{Name: in.Name}}, f.err
}
func (f *fakeFleetAPIClient) Heartbeat(ctx context.Context, in *fleetv1.HeartbeatRequest, opts ...grpc.CallOption) (*fleetv1.HeartbeatResponse, error) {
	return &fleetv1.HeartbeatResponse{Status: "ok"}, f.err
}
func (f *fakeFleetAPIClient) ListHosts(ctx context.Context, in *fleetv1.ListHostsRequest, opts ...grpc.CallOption) (*fleetv1.ListHostsResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fleetv1.ListHostsResponse{Hosts: []*fleetv1.Host{{Id: "host-1"}}}, nil
}
func (f *fakeFleetAPIClient) StreamEvents(ctx context.Context, in *fleetv1.StreamEventsRequest, opts ...grpc.CallOption) (fleetv1.FleetAPI_StreamEventsClient, error) {
	return nil, f.err
}

func newTestClient(fake *fakeFleetAPIClient) *Client {
	return &Client{client: fake}
}

func TestCreateLabBuildsRequestAndUnwrapsResponse(t *testing.T) {
	fake := &fakeFleetAPIClient{}
	c := newTestClient(fake)

	lab, err := c.CreateLab(context.Background(), "alice", "container", "frr")
	require.NoError(t, err)
	require.Equal(t, "lab-1", lab.Id)
	require.Equal(t, "alice", fake.lastCreateLab.Owner)
	require.Equal(t, "container", fake.lastCreateLab.Provider)
	require.Equal(t, "frr", fake.lastCreateLab.DefaultAgent)
}

func TestCreateLabPropagatesRPCError(t *testing.T) {
	fake := &fakeFleetAPIClient{err: errors.New("unavailable")}
	c := newTestClient(fake)

	_, err := c.CreateLab(context.Background(), "alice", "", "")
	require.Error(t, err)
}

func TestGetListDeleteLab(t *testing.T) {
	fake := &fakeFleetAPIClient{}
	c := newTestClient(fake)

	lab, err := c.GetLab(context.Background(), "lab-1")
	require.NoError(t, err)
	require.Equal(t, "lab-1", lab.Id)

	labs, err := c.ListLabs(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, labs, 1)

	require.NoError(t, c.DeleteLab(context.Background(), "lab-1"))
}

func TestDeployAndDestroyLabPassHostFilter(t *testing.T) {
	fake := &fakeFleetAPIClient{}
	c := newTestClient(fake)

	job, err := c.DeployLab(context.Background(), "lab-1", "host-a")
	require.NoError(t, err)
	require.Equal(t, "lab-1", job.LabId)
	require.Equal(t, "host-a", fake.lastDeployLab.HostFilter)

	_, err = c.DestroyLab(context.Background(), "lab-1", "")
	require.NoError(t, err)
}

func TestStartAndStopNode(t *testing.T) {
	fake := &fakeFleetAPIClient{}
	c := newTestClient(fake)

	job, err := c.StartNode(context.Background(), "lab-1", "r1")
	require.NoError(t, err)
	require.Equal(t, "lab-1", job.LabId)

	job, err = c.StopNode(context.Background(), "lab-1", "r1")
	require.NoError(t, err)
	require.Equal(t, "lab-1", job.LabId)
}

func TestGetListCancelJob(t *testing.T) {
	fake := &fakeFleetAPIClient{}
	c := newTestClient(fake)

	job, err := c.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, "job-1", job.Id)

	jobs, err := c.ListJobs(context.Background(), "lab-1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	job, err = c.CancelJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, "cancelled", job.Status)
}

func TestListHosts(t *testing.T) {
	fake := &fakeFleetAPIClient{}
	c := newTestClient(fake)

	hosts, err := c.ListHosts(context.Background())
	require.NoError(t, err)
	require.Len(t, hosts, 1)
}

func TestWatchEventsPropagatesStreamError(t *testing.T) {
	fake := &fakeFleetAPIClient{err: errors.New("stream setup failed")}
	c := newTestClient(fake)

	err := c.WatchEvents(context.Background(), "lab-1", func(*fleetv1.Event) {})
	require.Error(t, err)
}
