package nlm

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/convergeerr"
	"github.com/cuemby/fleetd/pkg/types"
)

// gateImages runs the image-sync pre-deploy check for one host's deploy
// candidates and strips out (marking ImageMissing) any node whose image
// could not be confirmed available in time.
func (n *NLM) gateImages(ctx context.Context, labID, hostID string, group []*convergenceNode) []*convergenceNode {
	if n.imagesync == nil {
		return group
	}
	images := make([]string, 0, len(group))
	for _, cn := range group {
		if cn.node.Image != "" {
			images = append(images, cn.node.Image)
		}
	}
	missing, err := n.imagesync.EnsureForDeployment(ctx, labID, hostID, images)
	if err != nil || len(missing) == 0 {
		return group
	}
	missingSet := make(map[string]bool, len(missing))
	for _, ref := range missing {
		missingSet[ref] = true
	}

	kept := group[:0]
	for _, cn := range group {
		if missingSet[cn.node.Image] {
			n.failDeploy(cn, convergeerr.New(convergeerr.KindImageMissing, "gateImages", fmt.Errorf("image %s not available on host %s", cn.node.Image, hostID)))
			continue
		}
		kept = append(kept, cn)
	}
	return kept
}

// executeStop is part of Phase 7: the stop category. Each node resolves
// its current host from placement (not the job's target host — a node
// being stopped should be stopped wherever it actually lives).
func (n *NLM) executeStop(ctx context.Context, nodes []*convergenceNode) {
	for _, cn := range nodes {
		host := cn.targetHost
		if cn.placement != nil && cn.placement.HostID != "" {
			host = cn.placement.HostID
		}

		client, err := n.resolveClient(host)
		if err != nil {
			n.markTransient(cn, err)
			continue
		}

		_, err = client.ContainerAction(ctx, cn.state.LabID, cn.state.NodeName, "stop")
		switch {
		case err == nil:
			cn.state.ActualState = types.NodeActualStopped
			cn.state.IsReady = false
			cn.state.StartingStartedAt = time.Time{}
			cn.state.StoppingStartedAt = time.Time{}
			cn.state.ErrorMessage = ""
		case isTransient(err):
			cn.state.ActualState = types.NodeActualRunning
			cn.state.ErrorMessage = "transient: " + err.Error()
		default:
			cn.state.ActualState = types.NodeActualError
			cn.state.ErrorMessage = err.Error()
		}
		_ = n.store.UpsertNodeState(cn.state)
		n.publish(broadcast.EventNodeStateChanged, cn.state.LabID, cn.state.NodeID, string(cn.state.ActualState))
	}
}

// executeStart is part of Phase 7: the start category.
func (n *NLM) executeStart(ctx context.Context, nodes []*convergenceNode) {
	for _, cn := range nodes {
		client, err := n.resolveClient(cn.targetHost)
		if err != nil {
			n.markTransient(cn, err)
			continue
		}

		if _, err := client.StartNode(ctx, cn.state.LabID, cn.node); err != nil {
			n.failDeploy(cn, err)
			continue
		}
		n.markDeployed(cn, cn.targetHost)
	}
}

// executeDeploy is part of Phase 7: the deploy category, in either
// topology mode (default) or per-node mode, grouped by target host.
func (n *NLM) executeDeploy(ctx context.Context, labID string, nodes []*convergenceNode) {
	byHost := make(map[string][]*convergenceNode)
	for _, cn := range nodes {
		byHost[cn.targetHost] = append(byHost[cn.targetHost], cn)
	}

	for hostID, group := range byHost {
		group = n.gateImages(ctx, labID, hostID, group)
		if len(group) == 0 {
			continue
		}
		if n.cfg.DeployMode == DeployModePerNode {
			n.deployPerNode(ctx, labID, hostID, group)
		} else {
			n.deployTopologyMode(ctx, labID, hostID, group)
		}
	}
}

func (n *NLM) deployPerNode(ctx context.Context, labID, hostID string, group []*convergenceNode) {
	client, err := n.resolveClient(hostID)
	if err != nil {
		for _, cn := range group {
			n.markTransient(cn, err)
		}
		return
	}

	for _, cn := range group {
		if _, err := client.CreateNode(ctx, labID, cn.node); err != nil {
			n.failDeploy(cn, err)
			continue
		}
		if _, err := client.StartNode(ctx, labID, cn.node); err != nil {
			n.failDeploy(cn, err)
			continue
		}
		n.markDeployed(cn, hostID)
	}
}

func (n *NLM) deployTopologyMode(ctx context.Context, labID, hostID string, group []*convergenceNode) {
	var locks []*lockedNode
	for _, cn := range group {
		token := fmt.Sprintf("%d", n.clock.Now().UnixNano())
		lock, ok := n.coord.AcquireDeployLock(ctx, labID+":"+cn.node.ID, token, deployLockTTL)
		if !ok {
			n.markTransient(cn, fmt.Errorf("deploy lock held for node %s", cn.node.ID))
			continue
		}
		locks = append(locks, &lockedNode{cn: cn, lock: lock})
	}
	defer func() {
		for _, ln := range locks {
			ln.lock.Unlock(ctx)
		}
	}()
	if len(locks) == 0 {
		return
	}

	client, err := n.resolveClient(hostID)
	if err != nil {
		for _, ln := range locks {
			n.markTransient(ln.cn, err)
		}
		return
	}

	nodeIDs := make(map[string]bool, len(locks))
	for _, ln := range locks {
		nodeIDs[ln.cn.node.ID] = true
	}

	var filtered interface{}
	if n.topo != nil {
		full, err := n.topo.BuildDeployTopology(labID, hostID)
		if err == nil {
			filtered = full.FilterToNodeIDs(nodeIDs)
		}
	}

	if _, err := client.DeployLab(ctx, labID+":"+hostID, labID, filtered, ""); err != nil {
		for _, ln := range locks {
			n.failDeploy(ln.cn, err)
		}
		return
	}

	for _, ln := range locks {
		cn := ln.cn
		n.markDeployed(cn, hostID)
		if cn.oldHost != "" && cn.oldHost != hostID {
			if oldClient, err := n.resolveClient(cn.oldHost); err == nil {
				_, _ = oldClient.ContainerAction(ctx, labID, cn.state.NodeName, "remove")
			}
		}
	}
}

type lockedNode struct {
	cn   *convergenceNode
	lock interface{ Unlock(context.Context) error }
}

func (n *NLM) markDeployed(cn *convergenceNode, hostID string) {
	cn.state.ActualState = types.NodeActualRunning
	cn.state.BootStartedAt = n.clock.Now()
	cn.state.ErrorMessage = ""
	_ = n.store.UpsertNodeState(cn.state)
	_ = n.store.UpsertNodePlacement(&types.NodePlacement{
		LabID: cn.state.LabID, NodeName: cn.state.NodeName, NodeDefinitionID: cn.node.ID,
		HostID: hostID, Status: types.PlacementDeployed,
	})
	n.publish(broadcast.EventNodeStateChanged, cn.state.LabID, cn.state.NodeID, "running")
}

func (n *NLM) failDeploy(cn *convergenceNode, err error) {
	if isTransient(err) {
		cn.state.ErrorMessage = "transient: " + err.Error()
	} else {
		cn.state.ActualState = types.NodeActualError
		cn.state.ErrorMessage = err.Error()
	}
	_ = n.store.UpsertNodeState(cn.state)
	n.publish(broadcast.EventNodeStateChanged, cn.state.LabID, cn.state.NodeID, cn.state.ErrorMessage)
}

func (n *NLM) markTransient(cn *convergenceNode, err error) {
	cn.state.ErrorMessage = "transient: " + err.Error()
	_ = n.store.UpsertNodeState(cn.state)
	n.publish(broadcast.EventNodeStateChanged, cn.state.LabID, cn.state.NodeID, cn.state.ErrorMessage)
}

func isTransient(err error) bool {
	kind, ok := convergeerr.KindOf(err)
	return ok && kind.Retryable()
}
