package linkorch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/fleetd/pkg/agentclient"
	"github.com/cuemby/fleetd/pkg/clock"
	"github.com/cuemby/fleetd/pkg/coordination"
	"github.com/cuemby/fleetd/pkg/overlay"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestNormalizeForWireKnownAliases(t *testing.T) {
	require.Equal(t, "eth0", normalizeForWire("Ethernet0"))
	require.Equal(t, "eth1", normalizeForWire("GigabitEthernet0/1"))
	require.Equal(t, "custom0", normalizeForWire("custom0"))
}

func TestTunnelKeyIsDeterministic(t *testing.T) {
	require.Equal(t, "lab-1:link-1", tunnelKey("lab-1", "link-1"))
}

func TestDataPlaneAddressPrefersDedicatedAddress(t *testing.T) {
	require.Equal(t, "10.0.0.1", dataPlaneAddress(&types.Host{Address: "1.2.3.4", DataPlaneAddress: "10.0.0.1"}))
	require.Equal(t, "1.2.3.4", dataPlaneAddress(&types.Host{Address: "1.2.3.4"}))
}

func newTestOrchestrator(t *testing.T, resolve AgentResolver) (*Orchestrator, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	allocator, err := overlay.NewAllocator(t.TempDir(), 1000, 2000)
	require.NoError(t, err)

	coord := coordination.New("127.0.0.1:6379", "", 15)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := coord.Ping(ctx); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(store, nil, allocator, coord, resolve, clk), store
}

func TestConnectLinkSameHostSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(agentclient.LinkResponse{VLANTag: 3042})
	}))
	defer srv.Close()

	resolve := func(hostID string) (*agentclient.Client, error) { return agentclient.New(srv.URL, ""), nil }
	o, store := newTestOrchestrator(t, resolve)

	link := &types.Link{ID: "link-1", LabID: "lab-1", SourceNode: "r1", TargetNode: "r2", SourceIface: "Ethernet0", TargetIface: "Ethernet1"}
	require.NoError(t, store.CreateLink(link))
	state := &types.LinkState{LabID: "lab-1", LinkID: "link-1", SourceHostID: "host-a", TargetHostID: "host-a", IsCrossHost: false}
	require.NoError(t, store.UpsertLinkState(state))

	require.NoError(t, o.ConnectLink(context.Background(), "lab-1", "link-1"))

	updated, err := store.GetLinkState("lab-1", "link-1")
	require.NoError(t, err)
	require.Equal(t, types.LinkActualUp, updated.ActualState)
	require.Equal(t, 3042, updated.VLANTag)
}

func TestConnectLinkSameHostAgentFailureRecordsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	resolve := func(hostID string) (*agentclient.Client, error) { return agentclient.New(srv.URL, ""), nil }
	o, store := newTestOrchestrator(t, resolve)

	link := &types.Link{ID: "link-1", LabID: "lab-1", SourceNode: "r1", TargetNode: "r2"}
	require.NoError(t, store.CreateLink(link))
	state := &types.LinkState{LabID: "lab-1", LinkID: "link-1", SourceHostID: "host-a", TargetHostID: "host-a"}
	require.NoError(t, store.UpsertLinkState(state))

	err := o.ConnectLink(context.Background(), "lab-1", "link-1")
	require.NoError(t, err, "agent failure is recorded on the link state, not propagated as a call error")

	updated, getErr := store.GetLinkState("lab-1", "link-1")
	require.NoError(t, getErr)
	require.Equal(t, types.LinkActualError, updated.ActualState)
	require.NotEmpty(t, updated.ErrorMessage)
}

func TestTeardownLinkRemovesState(t *testing.T) {
	o, store := newTestOrchestrator(t, nil)

	state := &types.LinkState{LabID: "lab-1", LinkID: "link-1"}
	require.NoError(t, store.UpsertLinkState(state))

	require.NoError(t, o.TeardownLink(context.Background(), "lab-1", "link-1"))

	_, err := store.GetLinkState("lab-1", "link-1")
	require.Error(t, err)
}

func TestCreateDeploymentLinksSkipsAlreadyUpLinks(t *testing.T) {
	o, store := newTestOrchestrator(t, nil)

	state := &types.LinkState{LabID: "lab-1", LinkID: "link-1", DesiredState: types.LinkDesiredUp, ActualState: types.LinkActualUp}
	require.NoError(t, store.UpsertLinkState(state))

	require.NoError(t, o.CreateDeploymentLinks(context.Background(), "lab-1"))
}
