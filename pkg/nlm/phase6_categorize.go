package nlm

import "github.com/cuemby/fleetd/pkg/types"

// categorize is Phase 6: partition the surviving nodes into deploy/start/
// stop sets. Nodes already marked error (resource exhaustion, offline
// host) in an earlier phase are excluded from all three.
func (n *NLM) categorize(nodes []*convergenceNode) (deploy, start, stop []*convergenceNode) {
	for _, cn := range nodes {
		if cn.skipReason != "" {
			continue
		}
		s := cn.state
		switch {
		case (s.ActualState == types.NodeActualUndeployed || s.ActualState == types.NodeActualPending) && s.DesiredState == types.NodeDesiredRunning:
			deploy = append(deploy, cn)
		case (s.ActualState == types.NodeActualStopped || s.ActualState == types.NodeActualExited || s.ActualState == types.NodeActualError || s.ActualState == types.NodeActualStarting) && s.DesiredState == types.NodeDesiredRunning:
			start = append(start, cn)
		case (s.ActualState == types.NodeActualRunning || s.ActualState == types.NodeActualStarting || s.ActualState == types.NodeActualStopping) && s.DesiredState == types.NodeDesiredStopped:
			stop = append(stop, cn)
		}
	}
	return deploy, start, stop
}
