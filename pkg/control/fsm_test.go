package control

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"
)

func newTestFSM(t *testing.T) (*FSM, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewFSM(store), store
}

func apply(t *testing.T, f *FSM, op string, data interface{}) interface{} {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	cmd, err := json.Marshal(Command{Op: op, Data: raw})
	require.NoError(t, err)
	return f.Apply(&raft.Log{Data: cmd})
}

func TestApplyCreateUpdateDeleteHost(t *testing.T) {
	f, store := newTestFSM(t)

	res := apply(t, f, opCreateHost, types.Host{ID: "host-1", Name: "host-a"})
	require.Nil(t, res)

	got, err := store.GetHost("host-1")
	require.NoError(t, err)
	require.Equal(t, "host-a", got.Name)

	res = apply(t, f, opUpdateHost, types.Host{ID: "host-1", Name: "host-a-renamed"})
	require.Nil(t, res)
	got, err = store.GetHost("host-1")
	require.NoError(t, err)
	require.Equal(t, "host-a-renamed", got.Name)

	res = apply(t, f, opDeleteHost, "host-1")
	require.Nil(t, res)
	_, err = store.GetHost("host-1")
	require.Error(t, err)
}

func TestApplyNodeStateAndLinkStateCompositeKeys(t *testing.T) {
	f, store := newTestFSM(t)

	res := apply(t, f, opUpsertNodeState, types.NodeState{LabID: "lab-1", NodeID: "node-1", DesiredState: types.NodeDesiredRunning})
	require.Nil(t, res)
	_, err := store.GetNodeState("lab-1", "node-1")
	require.NoError(t, err)

	res = apply(t, f, opDeleteNodeState, deleteNodeStateArgs{LabID: "lab-1", NodeID: "node-1"})
	require.Nil(t, res)
	_, err = store.GetNodeState("lab-1", "node-1")
	require.Error(t, err)

	res = apply(t, f, opUpsertLinkState, types.LinkState{LabID: "lab-1", LinkID: "link-1"})
	require.Nil(t, res)
	res = apply(t, f, opDeleteLinkState, deleteLinkStateArgs{LabID: "lab-1", LinkID: "link-1"})
	require.Nil(t, res)
	_, err = store.GetLinkState("lab-1", "link-1")
	require.Error(t, err)
}

func TestApplyUnknownOpReturnsError(t *testing.T) {
	f, _ := newTestFSM(t)
	res := apply(t, f, "not_a_real_op", struct{}{})
	err, ok := res.(error)
	require.True(t, ok)
	require.Error(t, err)
}

func TestApplyMalformedCommandReturnsError(t *testing.T) {
	f, _ := newTestFSM(t)
	res := f.Apply(&raft.Log{Data: []byte("not json")})
	err, ok := res.(error)
	require.True(t, ok)
	require.Error(t, err)
}

func TestSnapshotAndRestoreRoundTrip(t *testing.T) {
	f, store := newTestFSM(t)
	require.NoError(t, store.CreateHost(&types.Host{ID: "host-1"}))
	require.NoError(t, store.CreateLab(&types.Lab{ID: "lab-1"}))
	require.NoError(t, store.CreateNode(&types.Node{ID: "node-1", LabID: "lab-1", UserVisibleID: "r1"}))
	require.NoError(t, store.UpsertNodeState(&types.NodeState{LabID: "lab-1", NodeID: "node-1"}))
	require.NoError(t, store.CreateLink(&types.Link{ID: "link-1", LabID: "lab-1"}))
	require.NoError(t, store.UpsertLinkState(&types.LinkState{LabID: "lab-1", LinkID: "link-1"}))
	require.NoError(t, store.UpsertNodePlacement(&types.NodePlacement{LabID: "lab-1", NodeName: "r1", HostID: "host-1"}))
	require.NoError(t, store.CreateJob(&types.Job{ID: "job-1", LabID: "lab-1"}))
	require.NoError(t, store.UpsertVxlanTunnel(&types.VxlanTunnel{ID: "lab-1:link-1"}))

	snap, err := f.Snapshot()
	require.NoError(t, err)

	fsmSnap := snap.(*Snapshot)
	require.Len(t, fsmSnap.Hosts, 1)
	require.Len(t, fsmSnap.Labs, 1)
	require.Len(t, fsmSnap.Nodes, 1)
	require.Len(t, fsmSnap.NodeStates, 1)
	require.Len(t, fsmSnap.Links, 1)
	require.Len(t, fsmSnap.LinkStates, 1)
	require.Len(t, fsmSnap.NodePlacements, 1)
	require.Len(t, fsmSnap.Jobs, 1)
	require.Len(t, fsmSnap.VxlanTunnels, 1)

	f2, store2 := newTestFSM(t)
	require.NoError(t, f2.Restore(asReadCloser(t, fsmSnap)))

	got, err := store2.GetHost("host-1")
	require.NoError(t, err)
	require.Equal(t, "host-1", got.ID)

	_, err = store2.GetNodeState("lab-1", "node-1")
	require.NoError(t, err)
}

func asReadCloser(t *testing.T, snap *Snapshot) io.ReadCloser {
	t.Helper()
	pr, pw := io.Pipe()
	go func() {
		err := json.NewEncoder(pw).Encode(snap)
		pw.CloseWithError(err)
	}()
	return pr
}
