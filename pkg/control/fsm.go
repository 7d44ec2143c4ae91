package control

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/hashicorp/raft"
)

// FSM implements the Raft finite state machine for fleetd's cluster state:
// hosts, labs, nodes/node states, links/link states, placements, jobs,
// vxlan tunnels, and image-sync bookkeeping. Same Command envelope and
// per-op switch shape as any Raft-backed FSM over a pluggable store.
type FSM struct {
	mu    sync.RWMutex
	store storage.Store
}

// NewFSM creates an FSM instance backed by store.
func NewFSM(store storage.Store) *FSM {
	return &FSM{store: store}
}

// Command is one entry in the Raft log.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opCreateHost          = "create_host"
	opUpdateHost          = "update_host"
	opDeleteHost          = "delete_host"
	opCreateLab           = "create_lab"
	opUpdateLab           = "update_lab"
	opDeleteLab           = "delete_lab"
	opCreateNode          = "create_node"
	opUpdateNode          = "update_node"
	opDeleteNode          = "delete_node"
	opDeleteNodesByLab    = "delete_nodes_by_lab"
	opUpsertNodeState     = "upsert_node_state"
	opDeleteNodeState     = "delete_node_state"
	opCreateLink          = "create_link"
	opDeleteLink          = "delete_link"
	opDeleteLinksByLab    = "delete_links_by_lab"
	opUpsertLinkState     = "upsert_link_state"
	opDeleteLinkState     = "delete_link_state"
	opUpsertPlacement     = "upsert_node_placement"
	opDeletePlacement     = "delete_node_placement"
	opCreateJob           = "create_job"
	opUpdateJob           = "update_job"
	opUpsertTunnel        = "upsert_vxlan_tunnel"
	opDeleteTunnel        = "delete_vxlan_tunnel"
	opUpsertImageHost     = "upsert_image_host"
	opUpsertImageSyncJob  = "upsert_image_sync_job"
	opUpsertAgentUpdateJob = "upsert_agent_update_job"
)

type deleteNodeStateArgs struct {
	LabID  string `json:"lab_id"`
	NodeID string `json:"node_id"`
}

type deleteLinkStateArgs struct {
	LabID  string `json:"lab_id"`
	LinkID string `json:"link_id"`
}

type deletePlacementArgs struct {
	LabID    string `json:"lab_id"`
	NodeName string `json:"node_name"`
}

// Apply applies one committed Raft log entry to the store.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opCreateHost:
		var v types.Host
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.CreateHost(&v)
	case opUpdateHost:
		var v types.Host
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.UpdateHost(&v)
	case opDeleteHost:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteHost(id)

	case opCreateLab:
		var v types.Lab
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.CreateLab(&v)
	case opUpdateLab:
		var v types.Lab
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.UpdateLab(&v)
	case opDeleteLab:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteLab(id)

	case opCreateNode:
		var v types.Node
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.CreateNode(&v)
	case opUpdateNode:
		var v types.Node
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.UpdateNode(&v)
	case opDeleteNode:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteNode(id)
	case opDeleteNodesByLab:
		var labID string
		if err := json.Unmarshal(cmd.Data, &labID); err != nil {
			return err
		}
		return f.store.DeleteNodesByLab(labID)

	case opUpsertNodeState:
		var v types.NodeState
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.UpsertNodeState(&v)
	case opDeleteNodeState:
		var args deleteNodeStateArgs
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		return f.store.DeleteNodeState(args.LabID, args.NodeID)

	case opCreateLink:
		var v types.Link
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.CreateLink(&v)
	case opDeleteLink:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteLink(id)
	case opDeleteLinksByLab:
		var labID string
		if err := json.Unmarshal(cmd.Data, &labID); err != nil {
			return err
		}
		return f.store.DeleteLinksByLab(labID)

	case opUpsertLinkState:
		var v types.LinkState
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.UpsertLinkState(&v)
	case opDeleteLinkState:
		var args deleteLinkStateArgs
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		return f.store.DeleteLinkState(args.LabID, args.LinkID)

	case opUpsertPlacement:
		var v types.NodePlacement
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.UpsertNodePlacement(&v)
	case opDeletePlacement:
		var args deletePlacementArgs
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		return f.store.DeleteNodePlacement(args.LabID, args.NodeName)

	case opCreateJob:
		var v types.Job
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.CreateJob(&v)
	case opUpdateJob:
		var v types.Job
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.UpdateJob(&v)

	case opUpsertTunnel:
		var v types.VxlanTunnel
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.UpsertVxlanTunnel(&v)
	case opDeleteTunnel:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteVxlanTunnel(id)

	case opUpsertImageHost:
		var v types.ImageHost
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.UpsertImageHost(&v)
	case opUpsertImageSyncJob:
		var v types.ImageSyncJob
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.UpsertImageSyncJob(&v)
	case opUpsertAgentUpdateJob:
		var v types.AgentUpdateJob
		if err := json.Unmarshal(cmd.Data, &v); err != nil {
			return err
		}
		return f.store.UpsertAgentUpdateJob(&v)

	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

// Snapshot captures the full state for Raft log compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	hosts, err := f.store.ListHosts()
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	labs, err := f.store.ListLabs()
	if err != nil {
		return nil, fmt.Errorf("list labs: %w", err)
	}
	jobs, err := f.store.ListJobs()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	tunnels, err := f.store.ListVxlanTunnels()
	if err != nil {
		return nil, fmt.Errorf("list vxlan tunnels: %w", err)
	}

	var nodes []*types.Node
	var links []*types.Link
	var nodeStates []*types.NodeState
	var linkStates []*types.LinkState
	var placements []*types.NodePlacement
	for _, lab := range labs {
		ln, err := f.store.ListNodesByLab(lab.ID)
		if err != nil {
			return nil, fmt.Errorf("list nodes for lab %s: %w", lab.ID, err)
		}
		nodes = append(nodes, ln...)

		ll, err := f.store.ListLinksByLab(lab.ID)
		if err != nil {
			return nil, fmt.Errorf("list links for lab %s: %w", lab.ID, err)
		}
		links = append(links, ll...)

		lns, err := f.store.ListNodeStatesByLab(lab.ID)
		if err != nil {
			return nil, fmt.Errorf("list node states for lab %s: %w", lab.ID, err)
		}
		nodeStates = append(nodeStates, lns...)

		lls, err := f.store.ListLinkStatesByLab(lab.ID)
		if err != nil {
			return nil, fmt.Errorf("list link states for lab %s: %w", lab.ID, err)
		}
		linkStates = append(linkStates, lls...)

		lp, err := f.store.ListNodePlacementsByLab(lab.ID)
		if err != nil {
			return nil, fmt.Errorf("list placements for lab %s: %w", lab.ID, err)
		}
		placements = append(placements, lp...)
	}

	return &Snapshot{
		Hosts:          hosts,
		Labs:           labs,
		Nodes:          nodes,
		NodeStates:     nodeStates,
		Links:          links,
		LinkStates:     linkStates,
		NodePlacements: placements,
		Jobs:           jobs,
		VxlanTunnels:   tunnels,
	}, nil
}

// Restore rebuilds the store from a snapshot, on join or restart.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, h := range snap.Hosts {
		if err := f.store.CreateHost(h); err != nil {
			return fmt.Errorf("restore host %s: %w", h.ID, err)
		}
	}
	for _, l := range snap.Labs {
		if err := f.store.CreateLab(l); err != nil {
			return fmt.Errorf("restore lab %s: %w", l.ID, err)
		}
	}
	for _, n := range snap.Nodes {
		if err := f.store.CreateNode(n); err != nil {
			return fmt.Errorf("restore node %s: %w", n.ID, err)
		}
	}
	for _, ns := range snap.NodeStates {
		if err := f.store.UpsertNodeState(ns); err != nil {
			return fmt.Errorf("restore node state %s:%s: %w", ns.LabID, ns.NodeID, err)
		}
	}
	for _, l := range snap.Links {
		if err := f.store.CreateLink(l); err != nil {
			return fmt.Errorf("restore link %s: %w", l.ID, err)
		}
	}
	for _, ls := range snap.LinkStates {
		if err := f.store.UpsertLinkState(ls); err != nil {
			return fmt.Errorf("restore link state %s:%s: %w", ls.LabID, ls.LinkID, err)
		}
	}
	for _, p := range snap.NodePlacements {
		if err := f.store.UpsertNodePlacement(p); err != nil {
			return fmt.Errorf("restore placement %s:%s: %w", p.LabID, p.NodeName, err)
		}
	}
	for _, j := range snap.Jobs {
		if err := f.store.CreateJob(j); err != nil {
			return fmt.Errorf("restore job %s: %w", j.ID, err)
		}
	}
	for _, t := range snap.VxlanTunnels {
		if err := f.store.UpsertVxlanTunnel(t); err != nil {
			return fmt.Errorf("restore vxlan tunnel %s: %w", t.ID, err)
		}
	}

	return nil
}

// Snapshot is a point-in-time copy of every replicated entity.
type Snapshot struct {
	Hosts          []*types.Host
	Labs           []*types.Lab
	Nodes          []*types.Node
	NodeStates     []*types.NodeState
	Links          []*types.Link
	LinkStates     []*types.LinkState
	NodePlacements []*types.NodePlacement
	Jobs           []*types.Job
	VxlanTunnels   []*types.VxlanTunnel
}

// Persist writes the snapshot to Raft's sink as JSON.
func (s *Snapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release is a noop; the snapshot holds no external resources.
func (s *Snapshot) Release() {}
