package reconciler

import (
	"context"
	"strings"

	"github.com/cuemby/fleetd/pkg/agentclient"
	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/google/uuid"
)

// hostStatusResult is the merged view of get_lab_status calls across every
// host involved in a lab: which nodes each host reported, which host
// reported which node (for misplaced-container detection), and which
// hosts failed to respond at all (so their nodes' prior state is
// preserved rather than concluded "undeployed").
type hostStatusResult struct {
	nodesByName map[string]agentclient.NodeStatus
	hostOfNode  map[string]string
	failed      map[string]bool
}

// step 1: ensure every Link has a LinkState row, idempotently, tagging
// cross-host links from the current placement analysis.
func (r *Reconciler) ensureLinkStates(labID string) error {
	links, err := r.store.ListLinksByLab(labID)
	if err != nil {
		return err
	}
	placements, err := r.topo.AnalyzePlacements(labID)
	if err != nil {
		return err
	}
	crossHostByLink := make(map[string]bool, len(placements.CrossHostLinks))
	hostAByLink := make(map[string]string, len(placements.CrossHostLinks))
	hostBByLink := make(map[string]string, len(placements.CrossHostLinks))
	for _, lp := range placements.CrossHostLinks {
		crossHostByLink[lp.LinkID] = true
		hostAByLink[lp.LinkID] = lp.HostA
		hostBByLink[lp.LinkID] = lp.HostB
	}

	for _, link := range links {
		if _, err := r.store.GetLinkState(labID, link.ID); err == nil {
			continue
		}
		state := &types.LinkState{
			LabID:           labID,
			LinkID:          link.ID,
			DesiredState:    types.LinkDesiredUp,
			ActualState:     types.LinkActualUnknown,
			SourceOperState: types.OperUnknown,
			TargetOperState: types.OperUnknown,
		}
		if crossHostByLink[link.ID] {
			state.IsCrossHost = true
			state.SourceHostID = hostAByLink[link.ID]
			state.TargetHostID = hostBByLink[link.ID]
		}
		if err := r.store.UpsertLinkState(state); err != nil {
			return err
		}
	}
	return nil
}

// step 2: backfill NodePlacement.NodeDefinitionID for rows created before
// the node definition existed, or whose definition id was never recorded.
func (r *Reconciler) backfillPlacements(labID string) error {
	placements, err := r.store.ListNodePlacementsByLab(labID)
	if err != nil {
		return err
	}
	nodes, err := r.topo.GetNodes(labID)
	if err != nil {
		return err
	}
	nodeByVisible := make(map[string]*types.Node, len(nodes))
	for _, n := range nodes {
		nodeByVisible[n.UserVisibleID] = n
	}

	for _, p := range placements {
		if p.NodeDefinitionID != "" {
			continue
		}
		if n, ok := nodeByVisible[p.NodeName]; ok {
			p.NodeDefinitionID = n.ID
			if err := r.store.UpsertNodePlacement(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// step 3: the set of hosts this lab currently touches, from placements
// plus the lab's default agent.
func (r *Reconciler) involvedHosts(labID string) ([]string, error) {
	lab, err := r.store.GetLab(labID)
	if err != nil {
		return nil, err
	}
	placements, err := r.store.ListNodePlacementsByLab(labID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var hosts []string
	for _, p := range placements {
		if p.HostID == "" || seen[p.HostID] {
			continue
		}
		seen[p.HostID] = true
		hosts = append(hosts, p.HostID)
	}
	if lab.DefaultAgent != "" && !seen[lab.DefaultAgent] {
		hosts = append(hosts, lab.DefaultAgent)
	}
	return hosts, nil
}

// step 4: call get_lab_status on every involved host. A host that fails
// to respond keeps its last_error set and is excluded from the merge, so
// nodes expected there are never downgraded to undeployed just because
// the host didn't answer this cycle.
func (r *Reconciler) pollHosts(ctx context.Context, labID string, hostIDs []string) *hostStatusResult {
	result := &hostStatusResult{
		nodesByName: make(map[string]agentclient.NodeStatus),
		hostOfNode:  make(map[string]string),
		failed:      make(map[string]bool),
	}

	for _, hostID := range hostIDs {
		host, err := r.store.GetHost(hostID)
		if err != nil {
			result.failed[hostID] = true
			continue
		}

		client, err := r.resolve(hostID)
		if err != nil {
			result.failed[hostID] = true
			r.setHostError(host, err.Error())
			continue
		}

		status, err := client.GetLabStatus(ctx, labID)
		if err != nil {
			result.failed[hostID] = true
			r.setHostError(host, err.Error())
			continue
		}

		r.clearHostError(host)
		for _, ns := range status.Nodes {
			result.nodesByName[ns.Name] = ns
			result.hostOfNode[ns.Name] = hostID
		}
	}
	return result
}

func (r *Reconciler) setHostError(host *types.Host, msg string) {
	if host.LastError == msg {
		return
	}
	host.LastError = msg
	host.ErrorSince = r.clock.Now()
	_ = r.store.UpdateHost(host)
}

func (r *Reconciler) clearHostError(host *types.Host) {
	if host.LastError == "" {
		return
	}
	host.LastError = ""
	_ = r.store.UpdateHost(host)
}

// step 5: merge polled container statuses into NodeState, skipping nodes
// under the permanent-failure guard or a recent stop/start transition,
// and polling readiness for newly-running-but-not-ready nodes.
func (r *Reconciler) mergeNodeStates(ctx context.Context, labID string, placements map[string]*types.NodePlacement, polled *hostStatusResult) error {
	states, err := r.store.ListNodeStatesByLab(labID)
	if err != nil {
		return err
	}
	now := r.clock.Now()

	for _, s := range states {
		if !s.EnforcementFailedAt.IsZero() {
			continue
		}
		if s.ActualState == types.NodeActualStopping && now.Sub(s.StoppingStartedAt) < transitionalRecent {
			continue
		}
		if s.ActualState == types.NodeActualStarting && now.Sub(s.StartingStartedAt) < transitionalRecent {
			continue
		}

		var expectedHost string
		if p := placements[s.NodeName]; p != nil {
			expectedHost = p.HostID
		}
		if expectedHost != "" && polled.failed[expectedHost] {
			continue
		}

		changed := false
		agentStatus, found := polled.nodesByName[s.NodeName]
		if !found {
			if s.ActualState != types.NodeActualUndeployed {
				s.ActualState = types.NodeActualUndeployed
				s.IsReady = false
				changed = true
			}
		} else {
			mapped := mapContainerStatus(agentStatus.Status)
			if mapped != s.ActualState {
				s.ActualState = mapped
				changed = true
			}
			if len(agentStatus.IPAddresses) > 0 {
				s.IPAddresses = agentStatus.IPAddresses
				changed = true
			}
			if mapped == types.NodeActualRunning && !s.IsReady {
				host := polled.hostOfNode[s.NodeName]
				if client, err := r.resolve(host); err == nil {
					if ready, _ := client.CheckNodeReadiness(ctx, labID, s.NodeName); ready != s.IsReady {
						s.IsReady = ready
						changed = true
					}
				}
			}
		}

		if changed {
			if err := r.store.UpsertNodeState(s); err != nil {
				return err
			}
			r.publish(broadcast.EventNodeStateChanged, labID, s.NodeID, string(s.ActualState))
		}
	}
	return nil
}

func mapContainerStatus(status string) types.NodeActualState {
	switch status {
	case "running":
		return types.NodeActualRunning
	case "stopped", "exited":
		return types.NodeActualStopped
	case "error", "dead":
		return types.NodeActualError
	default:
		return types.NodeActualUndeployed
	}
}

// step 6: move NodePlacement to match where a running container actually
// is. A container found on a host that disagrees with the node's explicit
// Node.HostID is logged and left alone rather than perpetuating the
// misplacement by recording it as authoritative.
func (r *Reconciler) updatePlacements(labID string, polled *hostStatusResult) error {
	nodes, err := r.topo.GetNodes(labID)
	if err != nil {
		return err
	}
	nodeByVisible := make(map[string]*types.Node, len(nodes))
	for _, n := range nodes {
		nodeByVisible[n.UserVisibleID] = n
	}

	for name, reportedHost := range polled.hostOfNode {
		status := polled.nodesByName[name]
		if mapContainerStatus(status.Status) != types.NodeActualRunning {
			continue
		}

		node := nodeByVisible[name]
		if node != nil && node.HostID != "" && node.HostID != reportedHost {
			r.logger.Warn().Str("lab_id", labID).Str("node_name", name).
				Str("expected_host", node.HostID).Str("actual_host", reportedHost).
				Msg("misplaced container, refusing to update placement")
			continue
		}

		existing, err := r.store.GetNodePlacement(labID, name)
		if err == nil && existing.HostID == reportedHost {
			continue
		}

		nodeDefID := ""
		if node != nil {
			nodeDefID = node.ID
		}
		if err := r.store.UpsertNodePlacement(&types.NodePlacement{
			LabID:            labID,
			NodeName:         name,
			NodeDefinitionID: nodeDefID,
			HostID:           reportedHost,
			Status:           types.PlacementDeployed,
		}); err != nil {
			return err
		}
	}
	return nil
}

// step 7: recompute Lab.State from the aggregated NodeState counts.
func (r *Reconciler) recomputeLabState(labID string) error {
	states, err := r.store.ListNodeStatesByLab(labID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return nil
	}
	lab, err := r.store.GetLab(labID)
	if err != nil {
		return err
	}

	var running, stoppedLike, undeployed, errored int
	stopping, starting := false, false
	for _, s := range states {
		switch s.ActualState {
		case types.NodeActualRunning:
			running++
		case types.NodeActualStopped, types.NodeActualExited:
			stoppedLike++
		case types.NodeActualUndeployed:
			undeployed++
		case types.NodeActualError:
			errored++
		case types.NodeActualStopping:
			stopping = true
		case types.NodeActualStarting, types.NodeActualPending:
			starting = true
		}
	}

	var next types.LabState
	switch {
	case errored > 0:
		next = types.LabStateError
	case stopping:
		next = types.LabStateStopping
	case starting:
		next = types.LabStateStarting
	case running == len(states):
		next = types.LabStateRunning
	case undeployed == len(states):
		next = types.LabStateUndeployed
	case stoppedLike+undeployed == len(states) && stoppedLike > 0:
		next = types.LabStateStopped
	default:
		next = types.LabStateUnknown
	}

	if lab.State != next {
		lab.State = next
		lab.StateSince = r.clock.Now()
		if next != types.LabStateError {
			lab.StateError = ""
		}
		if err := r.store.UpdateLab(lab); err != nil {
			return err
		}
		r.publish(broadcast.EventLabStateChanged, labID, labID, string(next))
	}
	return nil
}

// step 8: recompute each LinkState's actual_state from its endpoints'
// readiness and tunnel status, broadcasting anything that changed.
func (r *Reconciler) recomputeLinkStates(labID string) error {
	linkStates, err := r.store.ListLinkStatesByLab(labID)
	if err != nil {
		return err
	}
	links, err := r.store.ListLinksByLab(labID)
	if err != nil {
		return err
	}
	linkByID := make(map[string]*types.Link, len(links))
	for _, l := range links {
		linkByID[l.ID] = l
	}
	readyByName, err := r.readyNodesByName(labID)
	if err != nil {
		return err
	}

	for _, ls := range linkStates {
		if ls.DesiredState == types.LinkDesiredDeleted {
			continue
		}
		link := linkByID[ls.LinkID]
		if link == nil {
			continue
		}
		endpointsReady := readyByName[link.SourceNode] && readyByName[link.TargetNode]

		var computed types.LinkActualState
		switch {
		case !endpointsReady:
			computed = types.LinkActualPending
		case ls.IsCrossHost:
			tunnel, err := r.store.GetVxlanTunnel(tunnelKey(labID, ls.LinkID))
			if err == nil && tunnel.Status == types.TunnelActive {
				computed = types.LinkActualUp
			} else {
				computed = types.LinkActualDown
			}
		case ls.SourceOperState == types.OperUp && ls.TargetOperState == types.OperUp:
			computed = types.LinkActualUp
		default:
			computed = ls.ActualState
		}

		if computed != "" && computed != ls.ActualState {
			ls.ActualState = computed
			if err := r.store.UpsertLinkState(ls); err != nil {
				return err
			}
			r.publish(broadcast.EventLinkStateChanged, labID, ls.LinkID, string(computed))
		}
	}
	return nil
}

func (r *Reconciler) readyNodesByName(labID string) (map[string]bool, error) {
	states, err := r.store.ListNodeStatesByLab(labID)
	if err != nil {
		return nil, err
	}
	ready := make(map[string]bool, len(states))
	for _, s := range states {
		ready[s.NodeName] = s.ActualState == types.NodeActualRunning && s.IsReady
	}
	return ready, nil
}

func tunnelKey(labID, linkID string) string { return labID + ":" + linkID }

// step 9: for links desired up whose endpoints are now both ready but
// whose actual state isn't, call link orchestration under its own
// link-ops lock.
func (r *Reconciler) autoConnectLinks(ctx context.Context, labID string) error {
	linkStates, err := r.store.ListLinkStatesByLab(labID)
	if err != nil {
		return err
	}
	links, err := r.store.ListLinksByLab(labID)
	if err != nil {
		return err
	}
	linkByID := make(map[string]*types.Link, len(links))
	for _, l := range links {
		linkByID[l.ID] = l
	}
	readyByName, err := r.readyNodesByName(labID)
	if err != nil {
		return err
	}

	var firstErr error
	for _, ls := range linkStates {
		if ls.DesiredState != types.LinkDesiredUp {
			continue
		}
		switch ls.ActualState {
		case types.LinkActualUnknown, types.LinkActualPending, types.LinkActualDown, types.LinkActualError:
		default:
			continue
		}
		link := linkByID[ls.LinkID]
		if link == nil || !readyByName[link.SourceNode] || !readyByName[link.TargetNode] {
			continue
		}
		if r.linkorch == nil {
			continue
		}
		if err := r.linkorch.ConnectLink(ctx, labID, ls.LinkID); err != nil {
			r.logger.Warn().Err(err).Str("lab_id", labID).Str("link_id", ls.LinkID).Msg("auto-connect failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// step 10: drop LinkState rows whose desired state is deleted.
func (r *Reconciler) deleteDeletedLinkStates(labID string) error {
	linkStates, err := r.store.ListLinkStatesByLab(labID)
	if err != nil {
		return err
	}
	for _, ls := range linkStates {
		if ls.DesiredState != types.LinkDesiredDeleted {
			continue
		}
		if err := r.store.DeleteLinkState(labID, ls.LinkID); err != nil {
			return err
		}
	}
	return nil
}

// step 11: if any node is out of sync and no active job already covers
// this lab, create a single enforcement job for the NLM to run.
func (r *Reconciler) triggerEnforcement(labID string) {
	states, err := r.store.ListNodeStatesByLab(labID)
	if err != nil {
		return
	}
	var outOfSync []string
	for _, s := range states {
		if string(s.ActualState) != string(s.DesiredState) {
			outOfSync = append(outOfSync, s.NodeID)
		}
	}
	if len(outOfSync) == 0 {
		return
	}

	jobs, err := r.store.ListJobsByLab(labID)
	if err == nil {
		for _, j := range jobs {
			if j.Status.Active() {
				return
			}
		}
	}

	job := &types.Job{
		ID:        uuid.New().String(),
		LabID:     labID,
		Action:    "reconcile:enforce:" + strings.Join(outOfSync, ","),
		Status:    types.JobQueued,
		CreatedAt: r.clock.Now(),
	}
	if err := r.store.CreateJob(job); err != nil {
		r.logger.Error().Err(err).Str("lab_id", labID).Msg("failed to create enforcement job")
		return
	}
	r.publish(broadcast.EventJobCreated, labID, job.ID, job.Action)
}
