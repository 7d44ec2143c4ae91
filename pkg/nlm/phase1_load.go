package nlm

import (
	"fmt"

	"github.com/cuemby/fleetd/pkg/types"
)

// loadAndValidate is Phase 1: pull NodeState rows for the given ids,
// batch-load Node definitions and NodePlacements, repair any NodeState
// whose node_name placeholder was left as the node_id by an earlier code
// path, and drop nodes that are already converged (actual == desired).
func (n *NLM) loadAndValidate(labID string, nodeIDs []string) ([]*convergenceNode, error) {
	placements, err := n.store.ListNodePlacementsByLab(labID)
	if err != nil {
		return nil, fmt.Errorf("list placements: %w", err)
	}
	placementByNode := make(map[string]*types.NodePlacement, len(placements))
	for _, p := range placements {
		placementByNode[p.NodeName] = p
	}

	var result []*convergenceNode
	for _, nodeID := range nodeIDs {
		node, err := n.store.GetNode(nodeID)
		if err != nil {
			return nil, fmt.Errorf("get node %s: %w", nodeID, err)
		}
		state, err := n.store.GetNodeState(labID, nodeID)
		if err != nil {
			return nil, fmt.Errorf("get node state %s: %w", nodeID, err)
		}

		if state.NodeName == state.NodeID {
			state.NodeName = node.ContainerName
		}

		if string(state.DesiredState) == string(state.ActualState) {
			continue
		}

		cn := &convergenceNode{node: node, state: state}
		if p, ok := placementByNode[state.NodeName]; ok {
			cn.placement = p
			cn.oldHost = p.HostID
		}
		result = append(result, cn)
	}

	return result, nil
}
