package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"testing"
	"time"

	fleetv1 "github.com/cuemby/fleetd/api/proto"
	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/clock"
	"github.com/cuemby/fleetd/pkg/control"
	"github.com/cuemby/fleetd/pkg/security"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// newTestServer builds a Server directly (bypassing NewServer's mTLS cert
// loading, which needs security.GetCertDir material this package doesn't
// provision in tests) on top of a bootstrapped single-node cluster. jobs is
// left nil: every method exercised here either never reaches s.jobs.Submit
// or is expected to fail the leadership guard before it would.
func newTestServer(t *testing.T, cluster *control.Cluster, broker *broadcast.Broker) *Server {
	t.Helper()
	return &Server{
		cluster: cluster,
		broker:  broker,
		clock:   clock.Real{},
	}
}

// newTestCA builds an initialized CertAuthority backed by its own temp
// BoltStore, for the tests below that call GenerateJoinToken/
// RequestCertificate.
func newTestCA(t *testing.T) *security.CertAuthority {
	t.Helper()
	key := security.DeriveKeyFromClusterID("test-cluster")
	require.NoError(t, security.SetClusterEncryptionKey(key))

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ca := security.NewCertAuthority(store)
	require.NoError(t, ca.Initialize())
	return ca
}

func TestCreateGetListDeleteLab(t *testing.T) {
	cluster := newBootstrappedCluster(t)
	s := newTestServer(t, cluster, nil)

	createResp, err := s.CreateLab(context.Background(), &fleetv1.CreateLabRequest{Owner: "alice", Provider: "container"})
	require.NoError(t, err)
	require.NotEmpty(t, createResp.Lab.Id)
	require.Equal(t, "alice", createResp.Lab.Owner)

	getResp, err := s.GetLab(context.Background(), &fleetv1.GetLabRequest{Id: createResp.Lab.Id})
	require.NoError(t, err)
	require.Equal(t, createResp.Lab.Id, getResp.Lab.Id)

	listResp, err := s.ListLabs(context.Background(), &fleetv1.ListLabsRequest{})
	require.NoError(t, err)
	require.Len(t, listResp.Labs, 1)

	listResp, err = s.ListLabs(context.Background(), &fleetv1.ListLabsRequest{OwnerFilter: "bob"})
	require.NoError(t, err)
	require.Empty(t, listResp.Labs)

	_, err = s.DeleteLab(context.Background(), &fleetv1.DeleteLabRequest{Id: createResp.Lab.Id})
	require.NoError(t, err)
	_, err = s.GetLab(context.Background(), &fleetv1.GetLabRequest{Id: createResp.Lab.Id})
	require.Error(t, err)
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestRegisterHostAndHeartbeat(t *testing.T) {
	cluster := newBootstrappedCluster(t)
	s := newTestServer(t, cluster, nil)

	reg, err := s.RegisterHost(context.Background(), &fleetv1.RegisterHostRequest{Name: "host-a", Address: "10.0.0.1:7000", Version: "1.0.0"})
	require.NoError(t, err)
	require.NotEmpty(t, reg.Host.Id)

	hb, err := s.Heartbeat(context.Background(), &fleetv1.HeartbeatRequest{HostId: reg.Host.Id, MemoryTotalBytes: 1024, CpuCount: 4, CpuPercent: 12.5})
	require.NoError(t, err)
	require.Equal(t, "ok", hb.Status)

	got, err := cluster.GetHost(reg.Host.Id)
	require.NoError(t, err)
	require.NotNil(t, got.Resources)
	require.Equal(t, int64(1024), got.Resources.MemoryTotalBytes)

	listResp, err := s.ListHosts(context.Background(), &fleetv1.ListHostsRequest{})
	require.NoError(t, err)
	require.Len(t, listResp.Hosts, 1)
}

func TestHeartbeatUnknownHostReturnsNotFound(t *testing.T) {
	cluster := newBootstrappedCluster(t)
	s := newTestServer(t, cluster, nil)

	_, err := s.Heartbeat(context.Background(), &fleetv1.HeartbeatRequest{HostId: "no-such-host"})
	require.Error(t, err)
	require.Equal(t, codes.NotFound, status.Code(err))
}

func TestGetListCancelJob(t *testing.T) {
	cluster := newBootstrappedCluster(t)
	s := newTestServer(t, cluster, nil)

	require.NoError(t, cluster.CreateLab(&types.Lab{ID: "lab-1"}))
	require.NoError(t, cluster.CreateJob(&types.Job{ID: "job-1", LabID: "lab-1", Status: types.JobQueued}))

	getResp, err := s.GetJob(context.Background(), &fleetv1.GetJobRequest{Id: "job-1"})
	require.NoError(t, err)
	require.Equal(t, "job-1", getResp.Job.Id)

	listResp, err := s.ListJobs(context.Background(), &fleetv1.ListJobsRequest{LabId: "lab-1"})
	require.NoError(t, err)
	require.Len(t, listResp.Jobs, 1)

	cancelResp, err := s.CancelJob(context.Background(), &fleetv1.CancelJobRequest{Id: "job-1"})
	require.NoError(t, err)
	require.Equal(t, string(types.JobCancelled), cancelResp.Job.Status)

	cancelAgain, err := s.CancelJob(context.Background(), &fleetv1.CancelJobRequest{Id: "job-1"})
	require.NoError(t, err)
	require.Equal(t, string(types.JobCancelled), cancelAgain.Job.Status)
}

func TestWritesRejectedWhenNotLeader(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	cluster, err := control.New(&control.Config{NodeID: "node-2", BindAddr: "127.0.0.1:0", DataDir: t.TempDir()}, store)
	require.NoError(t, err)
	require.NoError(t, cluster.JoinExisting())
	t.Cleanup(func() { cluster.Shutdown() })

	s := newTestServer(t, cluster, nil)

	_, err = s.CreateLab(context.Background(), &fleetv1.CreateLabRequest{Owner: "alice"})
	require.Error(t, err)
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = s.DeployLab(context.Background(), &fleetv1.DeployLabRequest{LabId: "lab-1"})
	require.Error(t, err)
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestStreamEventsWithoutBrokerIsUnavailable(t *testing.T) {
	cluster := newBootstrappedCluster(t)
	s := newTestServer(t, cluster, nil)

	err := s.StreamEvents(&fleetv1.StreamEventsRequest{}, nil)
	require.Error(t, err)
	require.Equal(t, codes.Unavailable, status.Code(err))
}

type fakeStreamEventsServer struct {
	fleetv1.FleetAPI_StreamEventsServer
	ctx  context.Context
	sent []*fleetv1.Event
}

func (f *fakeStreamEventsServer) Context() context.Context { return f.ctx }
func (f *fakeStreamEventsServer) Send(e *fleetv1.Event) error {
	f.sent = append(f.sent, e)
	return nil
}

func TestStreamEventsFiltersByLabAndStopsOnContextCancel(t *testing.T) {
	cluster := newBootstrappedCluster(t)
	broker := broadcast.NewBroker()
	broker.Start()
	defer broker.Stop()
	s := newTestServer(t, cluster, broker)

	ctx, cancel := context.WithCancel(context.Background())
	stream := &fakeStreamEventsServer{ctx: ctx}

	done := make(chan error, 1)
	go func() { done <- s.StreamEvents(&fleetv1.StreamEventsRequest{LabId: "lab-1"}, stream) }()

	require.Eventually(t, func() bool { return broker.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	broker.Publish(&broadcast.Event{Type: broadcast.EventNodeStateChanged, LabID: "lab-1", EntityID: "r1"})
	broker.Publish(&broadcast.Event{Type: broadcast.EventNodeStateChanged, LabID: "lab-2", EntityID: "r2"})

	require.Eventually(t, func() bool { return len(stream.sent) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "lab-1", stream.sent[0].LabId)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("StreamEvents did not return after context cancellation")
	}
}

func TestGenerateJoinTokenAndRequestCertificate(t *testing.T) {
	cluster := newBootstrappedCluster(t)
	s := newTestServer(t, cluster, nil)
	s.ca = newTestCA(t)
	s.tokens = security.NewTokenManager()

	tokenResp, err := s.GenerateJoinToken(context.Background(), &fleetv1.GenerateJoinTokenRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, tokenResp.Token)
	require.Equal(t, "cli", tokenResp.Role)

	certResp, err := s.RequestCertificate(context.Background(), &fleetv1.RequestCertificateRequest{Token: tokenResp.Token})
	require.NoError(t, err)
	require.NotEmpty(t, certResp.CertPem)
	require.NotEmpty(t, certResp.KeyPem)
	require.NotEmpty(t, certResp.CaCertPem)

	tlsCert, err := tls.X509KeyPair(certResp.CertPem, certResp.KeyPem)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(tlsCert.Certificate[0])
	require.NoError(t, err)
	require.Contains(t, leaf.Subject.CommonName, "cli-")

	// The token was consumed: redeeming it again must fail.
	_, err = s.RequestCertificate(context.Background(), &fleetv1.RequestCertificateRequest{Token: tokenResp.Token})
	require.Error(t, err)
	require.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestGenerateJoinTokenRequiresLeader(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	cluster, err := control.New(&control.Config{NodeID: "node-3", BindAddr: "127.0.0.1:0", DataDir: t.TempDir()}, store)
	require.NoError(t, err)
	require.NoError(t, cluster.JoinExisting())
	t.Cleanup(func() { cluster.Shutdown() })

	s := newTestServer(t, cluster, nil)
	s.ca = newTestCA(t)
	s.tokens = security.NewTokenManager()

	_, err = s.GenerateJoinToken(context.Background(), &fleetv1.GenerateJoinTokenRequest{})
	require.Error(t, err)
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestRequestCertificateWithoutTokensConfiguredIsUnavailable(t *testing.T) {
	cluster := newBootstrappedCluster(t)
	s := newTestServer(t, cluster, nil)

	_, err := s.RequestCertificate(context.Background(), &fleetv1.RequestCertificateRequest{Token: "bogus"})
	require.Error(t, err)
	require.Equal(t, codes.Unavailable, status.Code(err))
}
