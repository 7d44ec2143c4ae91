package nlm

import (
	"context"
	"fmt"

	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/google/uuid"
)

// resolveAgents is Phase 3: pick each node's target host by priority
// (explicit placement, prior-deploy affinity, lab default, any healthy
// agent with the required provider). This job keeps only the nodes for the
// host of the first resolved node; nodes resolving to any other host are
// split off into per-host child jobs.
func (n *NLM) resolveAgents(ctx context.Context, job *types.Job, nodes []*convergenceNode) ([]*convergenceNode, []string, error) {
	lab, err := n.store.GetLab(job.LabID)
	if err != nil {
		return nil, nil, fmt.Errorf("get lab: %w", err)
	}
	hosts, err := n.store.ListHosts()
	if err != nil {
		return nil, nil, fmt.Errorf("list hosts: %w", err)
	}
	hostByID := make(map[string]*types.Host, len(hosts))
	for _, h := range hosts {
		hostByID[h.ID] = h
	}

	var remaining []*convergenceNode
	byOtherHost := make(map[string][]*convergenceNode)

	for _, cn := range nodes {
		host, explicit := n.chooseHost(cn, lab, hostByID)
		if host == "" {
			if explicit != "" {
				cn.state.ActualState = types.NodeActualError
				cn.state.ErrorMessage = fmt.Sprintf("explicit host %s offline", explicit)
			} else {
				cn.state.ActualState = types.NodeActualError
				cn.state.ErrorMessage = "No agent available"
			}
			_ = n.store.UpsertNodeState(cn.state)
			n.publish(broadcast.EventNodeStateChanged, cn.state.LabID, cn.state.NodeID, cn.state.ErrorMessage)
			continue
		}
		cn.targetHost = host
		remaining = append(remaining, cn)
	}

	if len(remaining) == 0 {
		return nil, nil, nil
	}

	primaryHost := remaining[0].targetHost
	var kept []*convergenceNode
	for _, cn := range remaining {
		if cn.targetHost == primaryHost {
			kept = append(kept, cn)
		} else {
			byOtherHost[cn.targetHost] = append(byOtherHost[cn.targetHost], cn)
		}
	}

	var childHosts []string
	for host, group := range byOtherHost {
		ids := make([]string, 0, len(group))
		for _, cn := range group {
			ids = append(ids, cn.state.NodeID)
		}
		child := &types.Job{
			ID:          uuid.New().String(),
			LabID:       job.LabID,
			Action:      job.Action,
			Status:      types.JobQueued,
			ParentJobID: job.ID,
			CreatedAt:   n.clock.Now(),
			AgentID:     host,
		}
		if err := n.store.CreateJob(child); err != nil {
			n.logger.Error().Err(err).Str("host_id", host).Msg("failed to spawn child job")
			continue
		}
		childHosts = append(childHosts, host)
	}

	return kept, childHosts, nil
}

// chooseHost implements the four-level priority. The second return value
// is the explicit host name when priority 1 applied but failed, so the
// caller can format "explicit host <name> offline" without recomputing it.
func (n *NLM) chooseHost(cn *convergenceNode, lab *types.Lab, hostByID map[string]*types.Host) (string, string) {
	if cn.node.HostID != "" {
		if h, ok := hostByID[cn.node.HostID]; ok && h.Status == types.HostStatusOnline {
			return h.ID, ""
		}
		return "", cn.node.HostID
	}

	if cn.placement != nil && cn.placement.HostID != "" {
		if h, ok := hostByID[cn.placement.HostID]; ok && h.Status == types.HostStatusOnline {
			return h.ID, ""
		}
	}

	if lab.DefaultAgent != "" {
		if h, ok := hostByID[lab.DefaultAgent]; ok && h.Status == types.HostStatusOnline {
			return h.ID, ""
		}
	}

	for _, h := range hostByID {
		if h.Status == types.HostStatusOnline && h.Capabilities.HasProvider(lab.Provider) {
			return h.ID, ""
		}
	}

	return "", ""
}
