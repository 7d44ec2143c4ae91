package enforcement

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/fleetd/pkg/coordination"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDesiredMatchesActual(t *testing.T) {
	cases := []struct {
		name  string
		state *types.NodeState
		want  bool
	}{
		{"running matches running", &types.NodeState{DesiredState: types.NodeDesiredRunning, ActualState: types.NodeActualRunning}, true},
		{"running does not match exited", &types.NodeState{DesiredState: types.NodeDesiredRunning, ActualState: types.NodeActualExited}, false},
		{"stopped matches stopped", &types.NodeState{DesiredState: types.NodeDesiredStopped, ActualState: types.NodeActualStopped}, true},
		{"stopped matches undeployed", &types.NodeState{DesiredState: types.NodeDesiredStopped, ActualState: types.NodeActualUndeployed}, true},
		{"stopped does not match running", &types.NodeState{DesiredState: types.NodeDesiredStopped, ActualState: types.NodeActualRunning}, false},
		{"unknown desired always matches", &types.NodeState{DesiredState: "", ActualState: types.NodeActualError}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, desiredMatchesActual(c.state))
		})
	}
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	base := 10 * time.Second
	max := 5 * time.Minute

	require.Equal(t, base, backoffDelay(base, max, 1))
	require.Equal(t, 2*base, backoffDelay(base, max, 2))
	require.Equal(t, 4*base, backoffDelay(base, max, 3))
	require.Equal(t, max, backoffDelay(base, max, 20), "backoff must never exceed the ceiling")
}

func TestGroupByLab(t *testing.T) {
	states := []*types.NodeState{
		{LabID: "lab-1", NodeID: "n1"},
		{LabID: "lab-2", NodeID: "n2"},
		{LabID: "lab-1", NodeID: "n3"},
	}
	grouped := groupByLab(states)
	require.Len(t, grouped["lab-1"], 2)
	require.Len(t, grouped["lab-2"], 1)
}

func newTestEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return &Enforcer{
		store:  store,
		coord:  coordination.New("127.0.0.1:1", "", 0),
		cfg:    DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

func TestEligibleRejectsErrorStateWithoutAutoRestart(t *testing.T) {
	e := newTestEnforcer(t)
	e.cfg.AutoRestartOnError = false
	s := &types.NodeState{NodeID: "n1", ActualState: types.NodeActualError}

	require.False(t, e.eligible(context.Background(), "lab-1", s, nil, time.Now()))
}

func TestEligibleRejectsWhenRetriesExhausted(t *testing.T) {
	e := newTestEnforcer(t)
	e.cfg.MaxRetries = 3
	now := time.Now()
	s := &types.NodeState{NodeID: "n1", EnforcementAttempts: 3}

	require.False(t, e.eligible(context.Background(), "lab-1", s, nil, now))
}

func TestEligibleRejectsDuringCrashCooldown(t *testing.T) {
	e := newTestEnforcer(t)
	now := time.Now()
	s := &types.NodeState{NodeID: "n1", EnforcementFailedAt: now.Add(-time.Second)}

	require.False(t, e.eligible(context.Background(), "lab-1", s, nil, now))
}

func TestEligibleRejectsDuringBackoffWindow(t *testing.T) {
	e := newTestEnforcer(t)
	now := time.Now()
	s := &types.NodeState{NodeID: "n1", EnforcementAttempts: 1, LastEnforcementAt: now.Add(-time.Second)}

	require.False(t, e.eligible(context.Background(), "lab-1", s, nil, now))
}

func TestEligibleRejectsNodeWithActiveJob(t *testing.T) {
	e := newTestEnforcer(t)
	now := time.Now()
	s := &types.NodeState{NodeID: "n1"}
	jobs := []*types.Job{{Action: "restart:n1", Status: types.JobQueued}}

	require.False(t, e.eligible(context.Background(), "lab-1", s, jobs, now))
}

func TestEligibleAllowsFreshDriftedNode(t *testing.T) {
	e := newTestEnforcer(t)
	s := &types.NodeState{NodeID: "n1", ActualState: types.NodeActualExited}

	require.True(t, e.eligible(context.Background(), "lab-1", s, nil, time.Now()))
}
