// Package linkorch creates and tears down a lab's links: same-host OVS
// hot-connect and cross-host VXLAN tunnels. It is invoked both from the
// NLM (after deploy/start) and from reconciliation's auto-connect path.
// ConnectLink and TeardownLink run under the coordination store's link-ops
// lock; TeardownDeploymentLinks takes no lock.
package linkorch

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/fleetd/pkg/agentclient"
	"github.com/cuemby/fleetd/pkg/clock"
	"github.com/cuemby/fleetd/pkg/convergeerr"
	"github.com/cuemby/fleetd/pkg/coordination"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/cuemby/fleetd/pkg/overlay"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/topology"
	"github.com/cuemby/fleetd/pkg/types"
)

const linkOpsLockTTL = 30 * time.Second

// AgentResolver returns the client to reach a given host's agent.
type AgentResolver func(hostID string) (*agentclient.Client, error)

// Orchestrator drives link convergence for a lab.
type Orchestrator struct {
	store     storage.Store
	topology  *topology.Service
	allocator *overlay.Allocator
	coord     *coordination.Store
	resolve   AgentResolver
	clock     clock.Clock
}

// New builds an Orchestrator.
func New(store storage.Store, topo *topology.Service, allocator *overlay.Allocator, coord *coordination.Store, resolve AgentResolver, clk clock.Clock) *Orchestrator {
	return &Orchestrator{store: store, topology: topo, allocator: allocator, coord: coord, resolve: resolve, clock: clk}
}

// ConnectLink converges a single LinkState toward desired=up, dispatching to
// the same-host or cross-host path depending on IsCrossHost.
func (o *Orchestrator) ConnectLink(ctx context.Context, labID, linkID string) error {
	token := fmt.Sprintf("%d", o.clock.Now().UnixNano())
	lock, ok := o.coord.AcquireLinkOpsLock(ctx, labID, linkID, token, linkOpsLockTTL)
	if !ok {
		return convergeerr.New(convergeerr.KindLockConflict, "ConnectLink", fmt.Errorf("link ops lock held for %s:%s", labID, linkID))
	}
	defer lock.Unlock(ctx)

	state, err := o.store.GetLinkState(labID, linkID)
	if err != nil {
		return err
	}
	link, err := o.store.GetLink(linkID)
	if err != nil {
		return err
	}

	if state.IsCrossHost {
		return o.connectCrossHost(ctx, link, state)
	}
	return o.connectSameHost(ctx, link, state)
}

func (o *Orchestrator) connectSameHost(ctx context.Context, link *types.Link, state *types.LinkState) error {
	normalizedSrc := normalizeForWire(link.SourceIface)
	normalizedDst := normalizeForWire(link.TargetIface)

	client, err := o.resolve(state.SourceHostID)
	if err != nil {
		return convergeerr.New(convergeerr.KindTransientAgent, "connectSameHost", err)
	}

	resp, err := client.CreateLinkOnAgent(ctx, agentclient.LinkRequest{
		LabID:      link.LabID,
		ContainerA: link.SourceNode,
		InterfaceA: normalizedSrc,
		ContainerB: link.TargetNode,
		InterfaceB: normalizedDst,
		VLANTag:    link.VLAN,
	})
	if err != nil {
		state.ActualState = types.LinkActualError
		state.ErrorMessage = err.Error()
		return o.store.UpsertLinkState(state)
	}

	state.ActualState = types.LinkActualUp
	state.VLANTag = resp.VLANTag
	state.SourceOperState = types.OperUp
	state.TargetOperState = types.OperUp
	state.ErrorMessage = ""
	return o.store.UpsertLinkState(state)
}

func (o *Orchestrator) connectCrossHost(ctx context.Context, link *types.Link, state *types.LinkState) error {
	hostA, err := o.store.GetHost(state.SourceHostID)
	if err != nil {
		return err
	}
	hostB, err := o.store.GetHost(state.TargetHostID)
	if err != nil {
		return err
	}
	dataIPA := dataPlaneAddress(hostA)
	dataIPB := dataPlaneAddress(hostB)

	existing, err := o.store.GetVxlanTunnel(tunnelKey(link.LabID, link.ID))
	needNewVNI := true
	vni := state.VNI
	if err == nil && existing.Status == types.TunnelActive {
		if existing.SourceHostID == state.SourceHostID && existing.TargetHostID == state.TargetHostID {
			needNewVNI = false
			vni = existing.VNI
		}
	}
	if needNewVNI {
		vni, err = o.allocator.Allocate(link.LabID, link.ID)
		if err != nil {
			state.ActualState = types.LinkActualError
			state.ErrorMessage = err.Error()
			return o.store.UpsertLinkState(state)
		}
	}
	vlan := overlay.VLANForVNI(vni)

	clientA, err := o.resolve(state.SourceHostID)
	if err != nil {
		return convergeerr.New(convergeerr.KindTransientAgent, "connectCrossHost", err)
	}
	clientB, err := o.resolve(state.TargetHostID)
	if err != nil {
		return convergeerr.New(convergeerr.KindTransientAgent, "connectCrossHost", err)
	}

	req := agentclient.CrossHostLinkRequest{
		LabID:      link.LabID,
		LinkID:     link.ID,
		HostA:      state.SourceHostID,
		HostB:      state.TargetHostID,
		InterfaceA: normalizeForWire(link.SourceIface),
		InterfaceB: normalizeForWire(link.TargetIface),
		VNI:        vni,
		VLANTag:    vlan,
	}
	_, errA := clientA.SetupCrossHostLinkV2(ctx, req)
	_, errB := clientB.SetupCrossHostLinkV2(ctx, req)
	if errA != nil || errB != nil {
		state.ActualState = types.LinkActualError
		if errA != nil {
			state.ErrorMessage = errA.Error()
		} else {
			state.ErrorMessage = errB.Error()
		}
		return o.store.UpsertLinkState(state)
	}

	tunnel := &types.VxlanTunnel{
		ID:           tunnelKey(link.LabID, link.ID),
		LinkStateID:  tunnelKey(link.LabID, link.ID),
		LabID:        link.LabID,
		LinkID:       link.ID,
		VNI:          vni,
		VLANTag:      vlan,
		SourceHostID: state.SourceHostID,
		TargetHostID: state.TargetHostID,
		SourceDataIP: dataIPA,
		TargetDataIP: dataIPB,
		Status:       types.TunnelActive,
	}
	if err := o.store.UpsertVxlanTunnel(tunnel); err != nil {
		return err
	}

	state.VNI = vni
	state.VLANTag = vlan
	state.ActualState = types.LinkActualUp
	state.SourceCarrierState = types.CarrierOn
	state.TargetCarrierState = types.CarrierOn
	state.SourceOperState = types.OperUp
	state.TargetOperState = types.OperUp
	state.ErrorMessage = ""
	return o.store.UpsertLinkState(state)
}

// TeardownLink removes a link's overlay resources and deletes its state.
func (o *Orchestrator) TeardownLink(ctx context.Context, labID, linkID string) error {
	token := fmt.Sprintf("%d", o.clock.Now().UnixNano())
	lock, ok := o.coord.AcquireLinkOpsLock(ctx, labID, linkID, token, linkOpsLockTTL)
	if !ok {
		return convergeerr.New(convergeerr.KindLockConflict, "TeardownLink", fmt.Errorf("link ops lock held for %s:%s", labID, linkID))
	}
	defer lock.Unlock(ctx)

	if err := o.allocator.Release(labID, linkID); err != nil {
		log.Logger.Warn().Err(err).Str("lab_id", labID).Str("link_id", linkID).Msg("failed to release vni")
	}
	if err := o.store.DeleteVxlanTunnel(tunnelKey(labID, linkID)); err != nil {
		log.Logger.Warn().Err(err).Msg("failed to delete vxlan tunnel row")
	}
	return o.store.DeleteLinkState(labID, linkID)
}

// CreateDeploymentLinks connects every link in a lab whose endpoints are now
// ready, invoked after the NLM's deploy/start categories complete.
func (o *Orchestrator) CreateDeploymentLinks(ctx context.Context, labID string) error {
	states, err := o.store.ListLinkStatesByLab(labID)
	if err != nil {
		return err
	}
	var firstErr error
	for _, state := range states {
		if state.DesiredState != types.LinkDesiredUp {
			continue
		}
		if state.ActualState == types.LinkActualUp {
			continue
		}
		if err := o.ConnectLink(ctx, labID, state.LinkID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// TeardownDeploymentLinks calls cleanup_overlay on every involved agent and
// removes the lab's link-state, tunnel and link rows, invoked during lab
// destroy.
func (o *Orchestrator) TeardownDeploymentLinks(ctx context.Context, labID string, hostIDs []string) error {
	var firstErr error
	for _, hostID := range hostIDs {
		client, err := o.resolve(hostID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if _, err := client.CleanupOverlay(ctx, labID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := o.allocator.ReleaseLab(labID); err != nil && firstErr == nil {
		firstErr = err
	}
	states, err := o.store.ListLinkStatesByLab(labID)
	if err != nil && firstErr == nil {
		firstErr = err
	}
	for _, s := range states {
		if err := o.store.DeleteVxlanTunnel(tunnelKey(labID, s.LinkID)); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := o.store.DeleteLinkState(labID, s.LinkID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := o.store.DeleteLinksByLab(labID); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func tunnelKey(labID, linkID string) string { return labID + ":" + linkID }

func dataPlaneAddress(h *types.Host) string {
	if h.DataPlaneAddress != "" {
		return h.DataPlaneAddress
	}
	return h.Address
}

// normalizeForWire repeats topology's interface alias table for the calls
// the orchestrator makes directly, since that table is unexported.
func normalizeForWire(name string) string {
	switch name {
	case "Ethernet0":
		return "eth0"
	case "Ethernet1":
		return "eth1"
	case "Ethernet2":
		return "eth2"
	case "Ethernet3":
		return "eth3"
	case "GigabitEthernet0/0":
		return "eth0"
	case "GigabitEthernet0/1":
		return "eth1"
	case "GigabitEthernet0/2":
		return "eth2"
	case "GigabitEthernet0/3":
		return "eth3"
	default:
		return name
	}
}
