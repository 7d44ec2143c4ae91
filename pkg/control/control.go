// Package control is fleetd's replicated control plane: Raft consensus over
// an FSM (fsm.go) applying committed commands to a storage.Store. Every
// mutation to cluster state — hosts, labs, nodes, links, jobs, tunnels —
// goes through Apply so every manager replica converges on the same log,
// realizing a linearizable store in place of a single relational database.
// Built on a Bootstrap/Join/Apply shape: one node bootstraps the Raft
// group, the rest join it, and every write goes through Apply rather than
// a direct store mutation.
package control

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/fleetd/pkg/metrics"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Config configures a new Cluster.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Cluster wraps the Raft instance and FSM for one manager replica.
type Cluster struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft  *raft.Raft
	fsm   *FSM
	store storage.Store
}

// New creates a Cluster that applies commands to store, creating
// cfg.DataDir for the Raft log and snapshots. Bootstrap or JoinExisting
// must be called once before Apply is usable.
func New(cfg *Config, store storage.Store) (*Cluster, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Cluster{
		nodeID:   cfg.NodeID,
		bindAddr: cfg.BindAddr,
		dataDir:  cfg.DataDir,
		fsm:      NewFSM(store),
		store:    store,
	}, nil
}

// raftConfig tunes Raft for LAN-grade failover (<10s), matching the
// teacher's reasoning: defaults assume WAN deployments and are too
// conservative for an edge/lab network of a handful of manager replicas.
func (c *Cluster) raftConfig() *raft.Config {
	cfg := raft.DefaultConfig()
	cfg.LocalID = raft.ServerID(c.nodeID)
	cfg.HeartbeatTimeout = 500 * time.Millisecond
	cfg.ElectionTimeout = 500 * time.Millisecond
	cfg.CommitTimeout = 50 * time.Millisecond
	cfg.LeaderLeaseTimeout = 250 * time.Millisecond
	return cfg
}

func (c *Cluster) newRaft() (*raft.Raft, *raft.NetworkTransport, error) {
	addr, err := net.ResolveTCPAddr("tcp", c.bindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(c.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("create raft transport: %w", err)
	}
	snapshotStore, err := raft.NewFileSnapshotStore(c.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("create snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(c.dataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("create raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(c.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("create raft stable store: %w", err)
	}
	r, err := raft.NewRaft(c.raftConfig(), c.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, nil, fmt.Errorf("create raft instance: %w", err)
	}
	return r, transport, nil
}

// Bootstrap initializes a brand-new single-replica cluster.
func (c *Cluster) Bootstrap() error {
	r, transport, err := c.newRaft()
	if err != nil {
		return err
	}
	c.raft = r

	configuration := raft.Configuration{
		Servers: []raft.Server{
			{ID: raft.ServerID(c.nodeID), Address: transport.LocalAddr()},
		},
	}
	future := r.BootstrapCluster(configuration)
	if err := future.Error(); err != nil {
		return fmt.Errorf("bootstrap cluster: %w", err)
	}
	return nil
}

// JoinExisting starts Raft for a replica that will be added to an existing
// cluster via AddVoter on the current leader (called on the leader's
// Cluster once this replica's transport is reachable; the management API
// has no RPC for it).
func (c *Cluster) JoinExisting() error {
	r, _, err := c.newRaft()
	if err != nil {
		return err
	}
	c.raft = r
	return nil
}

// AddVoter adds a new manager replica to the Raft configuration. Must be
// called on the current leader.
func (c *Cluster) AddVoter(nodeID, address string) error {
	if c.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !c.IsLeader() {
		return fmt.Errorf("not the leader, current leader: %s", c.LeaderAddr())
	}
	future := c.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	return future.Error()
}

// RemoveServer removes a manager replica from the Raft configuration.
func (c *Cluster) RemoveServer(nodeID string) error {
	if c.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !c.IsLeader() {
		return fmt.Errorf("not the leader")
	}
	future := c.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	return future.Error()
}

// IsLeader reports whether this replica currently holds Raft leadership.
func (c *Cluster) IsLeader() bool {
	return c.raft != nil && c.raft.State() == raft.Leader
}

// LeaderAddr returns the Raft transport address of the current leader.
func (c *Cluster) LeaderAddr() string {
	if c.raft == nil {
		return ""
	}
	return string(c.raft.Leader())
}

// Stats reports a snapshot of Raft health for the metrics/status surface.
func (c *Cluster) Stats() map[string]interface{} {
	if c.raft == nil {
		return nil
	}
	stats := map[string]interface{}{
		"state":        c.raft.State().String(),
		"last_log_index": c.raft.LastIndex(),
		"applied_index":  c.raft.AppliedIndex(),
		"leader":         string(c.raft.Leader()),
	}
	if future := c.raft.GetConfiguration(); future.Error() == nil {
		stats["peers"] = uint64(len(future.Configuration().Servers))
	}
	return stats
}

// Apply proposes a command and blocks until it is committed (or times out).
func (c *Cluster) Apply(cmd Command) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RaftCommitDuration)

	if c.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	future := c.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("apply command: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops Raft and closes the underlying store.
func (c *Cluster) Shutdown() error {
	if c.raft != nil {
		if err := c.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("shutdown raft: %w", err)
		}
	}
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// NodeID returns this replica's Raft node ID.
func (c *Cluster) NodeID() string { return c.nodeID }

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("control: marshal command payload: %v", err))
	}
	return data
}

// --- Typed command helpers, one per mutating entity operation ---

func (c *Cluster) CreateHost(h *types.Host) error {
	return c.Apply(Command{Op: opCreateHost, Data: mustMarshal(h)})
}
func (c *Cluster) UpdateHost(h *types.Host) error {
	return c.Apply(Command{Op: opUpdateHost, Data: mustMarshal(h)})
}
func (c *Cluster) DeleteHost(id string) error {
	return c.Apply(Command{Op: opDeleteHost, Data: mustMarshal(id)})
}

func (c *Cluster) CreateLab(l *types.Lab) error {
	return c.Apply(Command{Op: opCreateLab, Data: mustMarshal(l)})
}
func (c *Cluster) UpdateLab(l *types.Lab) error {
	return c.Apply(Command{Op: opUpdateLab, Data: mustMarshal(l)})
}
func (c *Cluster) DeleteLab(id string) error {
	return c.Apply(Command{Op: opDeleteLab, Data: mustMarshal(id)})
}

func (c *Cluster) CreateNode(n *types.Node) error {
	return c.Apply(Command{Op: opCreateNode, Data: mustMarshal(n)})
}
func (c *Cluster) UpdateNode(n *types.Node) error {
	return c.Apply(Command{Op: opUpdateNode, Data: mustMarshal(n)})
}
func (c *Cluster) DeleteNode(id string) error {
	return c.Apply(Command{Op: opDeleteNode, Data: mustMarshal(id)})
}
func (c *Cluster) DeleteNodesByLab(labID string) error {
	return c.Apply(Command{Op: opDeleteNodesByLab, Data: mustMarshal(labID)})
}

func (c *Cluster) UpsertNodeState(s *types.NodeState) error {
	return c.Apply(Command{Op: opUpsertNodeState, Data: mustMarshal(s)})
}
func (c *Cluster) DeleteNodeState(labID, nodeID string) error {
	return c.Apply(Command{Op: opDeleteNodeState, Data: mustMarshal(deleteNodeStateArgs{LabID: labID, NodeID: nodeID})})
}

func (c *Cluster) CreateLink(l *types.Link) error {
	return c.Apply(Command{Op: opCreateLink, Data: mustMarshal(l)})
}
func (c *Cluster) DeleteLink(id string) error {
	return c.Apply(Command{Op: opDeleteLink, Data: mustMarshal(id)})
}
func (c *Cluster) DeleteLinksByLab(labID string) error {
	return c.Apply(Command{Op: opDeleteLinksByLab, Data: mustMarshal(labID)})
}

func (c *Cluster) UpsertLinkState(s *types.LinkState) error {
	return c.Apply(Command{Op: opUpsertLinkState, Data: mustMarshal(s)})
}
func (c *Cluster) DeleteLinkState(labID, linkID string) error {
	return c.Apply(Command{Op: opDeleteLinkState, Data: mustMarshal(deleteLinkStateArgs{LabID: labID, LinkID: linkID})})
}

func (c *Cluster) UpsertNodePlacement(p *types.NodePlacement) error {
	return c.Apply(Command{Op: opUpsertPlacement, Data: mustMarshal(p)})
}
func (c *Cluster) DeleteNodePlacement(labID, nodeName string) error {
	return c.Apply(Command{Op: opDeletePlacement, Data: mustMarshal(deletePlacementArgs{LabID: labID, NodeName: nodeName})})
}

func (c *Cluster) CreateJob(j *types.Job) error {
	return c.Apply(Command{Op: opCreateJob, Data: mustMarshal(j)})
}
func (c *Cluster) UpdateJob(j *types.Job) error {
	return c.Apply(Command{Op: opUpdateJob, Data: mustMarshal(j)})
}

func (c *Cluster) UpsertVxlanTunnel(t *types.VxlanTunnel) error {
	return c.Apply(Command{Op: opUpsertTunnel, Data: mustMarshal(t)})
}
func (c *Cluster) DeleteVxlanTunnel(id string) error {
	return c.Apply(Command{Op: opDeleteTunnel, Data: mustMarshal(id)})
}

func (c *Cluster) UpsertImageHost(ih *types.ImageHost) error {
	return c.Apply(Command{Op: opUpsertImageHost, Data: mustMarshal(ih)})
}
func (c *Cluster) UpsertImageSyncJob(j *types.ImageSyncJob) error {
	return c.Apply(Command{Op: opUpsertImageSyncJob, Data: mustMarshal(j)})
}
func (c *Cluster) UpsertAgentUpdateJob(j *types.AgentUpdateJob) error {
	return c.Apply(Command{Op: opUpsertAgentUpdateJob, Data: mustMarshal(j)})
}

// --- Read accessors (served from the local store, no Raft round trip) ---

func (c *Cluster) GetHost(id string) (*types.Host, error)  { return c.store.GetHost(id) }
func (c *Cluster) ListHosts() ([]*types.Host, error)       { return c.store.ListHosts() }
func (c *Cluster) GetLab(id string) (*types.Lab, error)     { return c.store.GetLab(id) }
func (c *Cluster) ListLabs() ([]*types.Lab, error)          { return c.store.ListLabs() }
func (c *Cluster) GetJob(id string) (*types.Job, error)     { return c.store.GetJob(id) }
func (c *Cluster) ListActiveJobs() ([]*types.Job, error)    { return c.store.ListActiveJobs() }
func (c *Cluster) ListNodesByLab(labID string) ([]*types.Node, error) {
	return c.store.ListNodesByLab(labID)
}
