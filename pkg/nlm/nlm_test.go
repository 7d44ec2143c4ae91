package nlm

import (
	"testing"
	"time"

	"github.com/cuemby/fleetd/pkg/clock"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestNLM(t *testing.T) (*NLM, storage.Store, *clock.Fake) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return &NLM{store: store, clock: clk, cfg: DefaultConfig(), logger: zerolog.Nop()}, store, clk
}

func cn(desired types.NodeDesiredState, actual types.NodeActualState) *convergenceNode {
	return &convergenceNode{state: &types.NodeState{DesiredState: desired, ActualState: actual}}
}

func TestCategorizeDeploysUndeployedAndPending(t *testing.T) {
	n, _, _ := newTestNLM(t)
	undeployed := cn(types.NodeDesiredRunning, types.NodeActualUndeployed)
	pending := cn(types.NodeDesiredRunning, types.NodeActualPending)

	deploy, start, stop := n.categorize([]*convergenceNode{undeployed, pending})
	require.ElementsMatch(t, []*convergenceNode{undeployed, pending}, deploy)
	require.Empty(t, start)
	require.Empty(t, stop)
}

func TestCategorizeStartsStoppedAndErrored(t *testing.T) {
	n, _, _ := newTestNLM(t)
	stopped := cn(types.NodeDesiredRunning, types.NodeActualStopped)
	errored := cn(types.NodeDesiredRunning, types.NodeActualError)

	_, start, _ := n.categorize([]*convergenceNode{stopped, errored})
	require.ElementsMatch(t, []*convergenceNode{stopped, errored}, start)
}

func TestCategorizeStopsRunning(t *testing.T) {
	n, _, _ := newTestNLM(t)
	running := cn(types.NodeDesiredStopped, types.NodeActualRunning)

	_, _, stop := n.categorize([]*convergenceNode{running})
	require.Equal(t, []*convergenceNode{running}, stop)
}

func TestCategorizeExcludesSkippedNodes(t *testing.T) {
	n, _, _ := newTestNLM(t)
	skipped := cn(types.NodeDesiredRunning, types.NodeActualUndeployed)
	skipped.skipReason = "no host available"

	deploy, start, stop := n.categorize([]*convergenceNode{skipped})
	require.Empty(t, deploy)
	require.Empty(t, start)
	require.Empty(t, stop)
}

func TestSetTransitionalStatesCommitsPendingAndClearsError(t *testing.T) {
	n, store, clk := newTestNLM(t)
	state := &types.NodeState{LabID: "lab-1", NodeID: "node-1", DesiredState: types.NodeDesiredRunning, ActualState: types.NodeActualUndeployed, ErrorMessage: "stale error"}
	require.NoError(t, store.UpsertNodeState(state))

	n.setTransitionalStates([]*convergenceNode{{state: state}})

	require.Equal(t, types.NodeActualPending, state.ActualState)
	require.Empty(t, state.ErrorMessage)

	persisted, err := store.GetNodeState("lab-1", "node-1")
	require.NoError(t, err)
	require.Equal(t, types.NodeActualPending, persisted.ActualState)
	_ = clk
}

func TestSetTransitionalStatesStartingStampsTimestamp(t *testing.T) {
	n, store, clk := newTestNLM(t)
	state := &types.NodeState{LabID: "lab-1", NodeID: "node-1", DesiredState: types.NodeDesiredRunning, ActualState: types.NodeActualStopped}
	require.NoError(t, store.UpsertNodeState(state))

	n.setTransitionalStates([]*convergenceNode{{state: state}})

	require.Equal(t, types.NodeActualStarting, state.ActualState)
	require.Equal(t, clk.Now(), state.StartingStartedAt)
}

func TestFinalizeAllOKReturnsCompleted(t *testing.T) {
	n, _, _ := newTestNLM(t)
	nodes := []*convergenceNode{cn(types.NodeDesiredRunning, types.NodeActualRunning)}
	require.Equal(t, types.JobCompleted, n.finalize(nodes))
}

func TestFinalizeAllErroredReturnsFailed(t *testing.T) {
	n, _, _ := newTestNLM(t)
	nodes := []*convergenceNode{cn(types.NodeDesiredRunning, types.NodeActualError)}
	require.Equal(t, types.JobFailed, n.finalize(nodes))
}

func TestFinalizeMixedReturnsCompletedWithWarnings(t *testing.T) {
	n, _, _ := newTestNLM(t)
	nodes := []*convergenceNode{
		cn(types.NodeDesiredRunning, types.NodeActualRunning),
		cn(types.NodeDesiredRunning, types.NodeActualError),
	}
	require.Equal(t, types.JobCompletedWithWarnings, n.finalize(nodes))
}
