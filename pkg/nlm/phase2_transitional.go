package nlm

import (
	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/types"
)

// setTransitionalStates is Phase 2: commit the user-visible transitional
// actual state before any agent call is made, so a slow or failing agent
// call never leaves the UI showing a stale state. Load-bearing ordering
// requirement — every change here is broadcast immediately.
func (n *NLM) setTransitionalStates(nodes []*convergenceNode) {
	now := n.clock.Now()
	for _, cn := range nodes {
		s := cn.state
		s.ErrorMessage = ""

		switch {
		case s.DesiredState == types.NodeDesiredRunning && s.ActualState == types.NodeActualUndeployed:
			s.ActualState = types.NodeActualPending
		case s.DesiredState == types.NodeDesiredRunning && (s.ActualState == types.NodeActualStopped || s.ActualState == types.NodeActualExited):
			s.ActualState = types.NodeActualStarting
			s.StartingStartedAt = now
		case s.DesiredState == types.NodeDesiredRunning && s.ActualState == types.NodeActualError:
			s.ActualState = types.NodeActualPending
		case s.DesiredState == types.NodeDesiredStopped && s.ActualState == types.NodeActualRunning:
			s.ActualState = types.NodeActualStopping
			s.StoppingStartedAt = now
		default:
			// no defined transitional state for this pair; leave actual as-is
			// and let Phase 6 categorize it directly (e.g. already starting).
		}

		if err := n.store.UpsertNodeState(s); err != nil {
			n.logger.Error().Err(err).Str("node_id", s.NodeID).Msg("failed to commit transitional state")
			continue
		}
		n.publish(broadcast.EventNodeStateChanged, s.LabID, s.NodeID, "transitional: "+string(s.ActualState))
	}
}
