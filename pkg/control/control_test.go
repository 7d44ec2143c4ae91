package control

import (
	"testing"
	"time"

	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/stretchr/testify/require"
)

// newBootstrappedCluster stands up a single-replica Raft cluster and waits
// for it to self-elect leader, matching the teacher's single-node
// integration-test shape (no multi-replica join exercised here; AddVoter
// and RemoveServer are covered by the leadership-guard tests only, since
// standing up a second transport-reachable replica per test is not worth
// the wall-clock on every run).
func newBootstrappedCluster(t *testing.T) *Cluster {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)

	c, err := New(&Config{
		NodeID:   "node-1",
		BindAddr: "127.0.0.1:0",
		DataDir:  t.TempDir(),
	}, store)
	require.NoError(t, err)

	require.NoError(t, c.Bootstrap())
	t.Cleanup(func() { c.Shutdown() })

	require.Eventually(t, c.IsLeader, 5*time.Second, 10*time.Millisecond, "cluster never elected itself leader")
	return c
}

func TestBootstrapElectsSelfLeader(t *testing.T) {
	c := newBootstrappedCluster(t)
	require.True(t, c.IsLeader())
	require.Equal(t, "node-1", c.NodeID())
}

func TestApplyCreateHostCommitsToStore(t *testing.T) {
	c := newBootstrappedCluster(t)

	require.NoError(t, c.CreateHost(&types.Host{ID: "host-1", Name: "host-a"}))

	got, err := c.GetHost("host-1")
	require.NoError(t, err)
	require.Equal(t, "host-a", got.Name)

	hosts, err := c.ListHosts()
	require.NoError(t, err)
	require.Len(t, hosts, 1)
}

func TestApplyUpdateAndDeleteHostRoundTrip(t *testing.T) {
	c := newBootstrappedCluster(t)

	require.NoError(t, c.CreateHost(&types.Host{ID: "host-1", Name: "host-a"}))
	require.NoError(t, c.UpdateHost(&types.Host{ID: "host-1", Name: "host-a-renamed"}))

	got, err := c.GetHost("host-1")
	require.NoError(t, err)
	require.Equal(t, "host-a-renamed", got.Name)

	require.NoError(t, c.DeleteHost("host-1"))
	_, err = c.GetHost("host-1")
	require.Error(t, err)
}

func TestApplyLabAndJobFlow(t *testing.T) {
	c := newBootstrappedCluster(t)

	require.NoError(t, c.CreateLab(&types.Lab{ID: "lab-1", Owner: "alice"}))
	labs, err := c.ListLabs()
	require.NoError(t, err)
	require.Len(t, labs, 1)

	require.NoError(t, c.CreateJob(&types.Job{ID: "job-1", LabID: "lab-1", Status: types.JobRunning}))
	active, err := c.ListActiveJobs()
	require.NoError(t, err)
	require.Len(t, active, 1)

	job, err := c.GetJob("job-1")
	require.NoError(t, err)
	job.Status = types.JobCompleted
	require.NoError(t, c.UpdateJob(job))

	active, err = c.ListActiveJobs()
	require.NoError(t, err)
	require.Empty(t, active)

	require.NoError(t, c.DeleteLab("lab-1"))
	_, err = c.GetLab("lab-1")
	require.Error(t, err)
}

func TestApplyNodeLinkAndTunnelCommands(t *testing.T) {
	c := newBootstrappedCluster(t)
	require.NoError(t, c.CreateLab(&types.Lab{ID: "lab-1"}))

	require.NoError(t, c.CreateNode(&types.Node{ID: "node-1", LabID: "lab-1", UserVisibleID: "r1"}))
	require.NoError(t, c.UpsertNodeState(&types.NodeState{LabID: "lab-1", NodeID: "node-1", DesiredState: types.NodeDesiredRunning}))
	require.NoError(t, c.UpsertNodePlacement(&types.NodePlacement{LabID: "lab-1", NodeName: "r1", HostID: "host-a"}))

	require.NoError(t, c.CreateLink(&types.Link{ID: "link-1", LabID: "lab-1", SourceNode: "r1", TargetNode: "r2"}))
	require.NoError(t, c.UpsertLinkState(&types.LinkState{LabID: "lab-1", LinkID: "link-1", DesiredState: types.LinkDesiredUp}))

	require.NoError(t, c.UpsertVxlanTunnel(&types.VxlanTunnel{ID: "lab-1:link-1", VNI: 1000}))

	require.NoError(t, c.DeleteNodeState("lab-1", "node-1"))
	require.NoError(t, c.DeleteLinkState("lab-1", "link-1"))
	require.NoError(t, c.DeleteNodePlacement("lab-1", "r1"))
	require.NoError(t, c.DeleteVxlanTunnel("lab-1:link-1"))

	require.NoError(t, c.DeleteNodesByLab("lab-1"))
	require.NoError(t, c.DeleteLinksByLab("lab-1"))
}

func TestApplyImageAndAgentUpdateCommands(t *testing.T) {
	c := newBootstrappedCluster(t)

	require.NoError(t, c.UpsertImageHost(&types.ImageHost{Image: "frr:latest", HostID: "host-a", Available: true}))
	require.NoError(t, c.UpsertImageSyncJob(&types.ImageSyncJob{ID: "sync-1", Image: "frr:latest", HostID: "host-a", Status: types.ImageSyncJobPending}))
	require.NoError(t, c.UpsertAgentUpdateJob(&types.AgentUpdateJob{ID: "update-1", HostID: "host-a", Status: types.AgentUpdateDownloading}))
}

func TestAddVoterAndRemoveServerRequireLeadership(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	c, err := New(&Config{NodeID: "node-2", BindAddr: "127.0.0.1:0", DataDir: t.TempDir()}, store)
	require.NoError(t, err)
	require.NoError(t, c.JoinExisting())
	t.Cleanup(func() { c.Shutdown() })

	require.False(t, c.IsLeader())
	require.Empty(t, c.LeaderAddr())

	err = c.AddVoter("node-3", "127.0.0.1:1")
	require.Error(t, err)

	err = c.RemoveServer("node-3")
	require.Error(t, err)
}

func TestStatsReflectsLeaderState(t *testing.T) {
	c := newBootstrappedCluster(t)

	stats := c.Stats()
	require.Equal(t, "Leader", stats["state"])
	require.Contains(t, stats, "applied_index")
	require.Contains(t, stats, "peers")
}

func TestStatsNilBeforeRaftStarted(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	c, err := New(&Config{NodeID: "node-4", BindAddr: "127.0.0.1:0", DataDir: t.TempDir()}, store)
	require.NoError(t, err)

	require.Nil(t, c.Stats())
	require.False(t, c.IsLeader())
}
