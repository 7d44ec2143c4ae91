package nlm

import (
	"github.com/cuemby/fleetd/pkg/types"
)

// finalize is Phase 8: tally per-node outcomes into the job's terminal
// status. A node in the error state (resource exhaustion, permanent agent
// failure) makes the job completed_with_warnings rather than outright
// failed — the other nodes in the batch may well have converged fine.
func (n *NLM) finalize(nodes []*convergenceNode) types.JobStatus {
	var errored, transient, ok int
	for _, cn := range nodes {
		switch {
		case cn.skipReason != "":
			errored++
		case cn.state.ActualState == types.NodeActualError:
			errored++
		case cn.state.ErrorMessage != "":
			transient++
		default:
			ok++
		}
	}

	n.logger.Info().Int("ok", ok).Int("errored", errored).Int("transient", transient).Msg("convergence finalized")

	switch {
	case errored == 0 && transient == 0:
		return types.JobCompleted
	case ok == 0 && transient == 0:
		return types.JobFailed
	default:
		return types.JobCompletedWithWarnings
	}
}
