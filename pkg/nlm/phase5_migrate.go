package nlm

import (
	"context"
)

// handleMigrations is Phase 5: for any node whose resolved target host
// differs from its last-known placement, stop the container on the old
// host (best-effort) and delete the stale NodePlacement row so Phase 7's
// deploy recreates it fresh on the new host.
func (n *NLM) handleMigrations(ctx context.Context, nodes []*convergenceNode) error {
	var firstErr error
	for _, cn := range nodes {
		if cn.skipReason != "" || cn.oldHost == "" || cn.oldHost == cn.targetHost {
			continue
		}

		if client, err := n.resolveClient(cn.oldHost); err == nil {
			_, stopErr := client.ContainerAction(ctx, cn.state.LabID, cn.state.NodeName, "stop")
			if stopErr != nil {
				n.logger.Warn().Err(stopErr).Str("node_id", cn.state.NodeID).Str("old_host", cn.oldHost).Msg("best-effort stop on old host failed")
			}
		}

		if err := n.store.DeleteNodePlacement(cn.state.LabID, cn.state.NodeName); err != nil && firstErr == nil {
			firstErr = err
		}
		cn.placement = nil
	}
	return firstErr
}
