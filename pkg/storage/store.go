package storage

import (
	"github.com/cuemby/fleetd/pkg/types"
)

// Store defines the interface for the manager's replicated state.
// All mutation goes through the Raft FSM (pkg/control), which applies
// committed commands to a Store implementation on every manager node.
type Store interface {
	// Hosts
	CreateHost(host *types.Host) error
	GetHost(id string) (*types.Host, error)
	ListHosts() ([]*types.Host, error)
	UpdateHost(host *types.Host) error
	DeleteHost(id string) error

	// Labs
	CreateLab(lab *types.Lab) error
	GetLab(id string) (*types.Lab, error)
	ListLabs() ([]*types.Lab, error)
	ListLabsByOwner(owner string) ([]*types.Lab, error)
	UpdateLab(lab *types.Lab) error
	DeleteLab(id string) error

	// Nodes (static topology definition)
	CreateNode(node *types.Node) error
	GetNode(id string) (*types.Node, error)
	ListNodesByLab(labID string) ([]*types.Node, error)
	UpdateNode(node *types.Node) error
	DeleteNode(id string) error
	DeleteNodesByLab(labID string) error

	// NodeStates (convergence unit, one per Node per Lab)
	UpsertNodeState(state *types.NodeState) error
	GetNodeState(labID, nodeID string) (*types.NodeState, error)
	ListNodeStatesByLab(labID string) ([]*types.NodeState, error)
	DeleteNodeState(labID, nodeID string) error

	// Links (static topology definition)
	CreateLink(link *types.Link) error
	GetLink(id string) (*types.Link, error)
	ListLinksByLab(labID string) ([]*types.Link, error)
	DeleteLink(id string) error
	DeleteLinksByLab(labID string) error

	// LinkStates (convergence unit, one per Link per Lab)
	UpsertLinkState(state *types.LinkState) error
	GetLinkState(labID, linkID string) (*types.LinkState, error)
	ListLinkStatesByLab(labID string) ([]*types.LinkState, error)
	DeleteLinkState(labID, linkID string) error

	// NodePlacements
	UpsertNodePlacement(p *types.NodePlacement) error
	GetNodePlacement(labID, nodeName string) (*types.NodePlacement, error)
	ListNodePlacementsByLab(labID string) ([]*types.NodePlacement, error)
	DeleteNodePlacement(labID, nodeName string) error

	// Jobs
	CreateJob(job *types.Job) error
	GetJob(id string) (*types.Job, error)
	ListJobs() ([]*types.Job, error)
	ListJobsByLab(labID string) ([]*types.Job, error)
	ListActiveJobs() ([]*types.Job, error)
	UpdateJob(job *types.Job) error

	// VxlanTunnels
	UpsertVxlanTunnel(t *types.VxlanTunnel) error
	GetVxlanTunnel(linkStateID string) (*types.VxlanTunnel, error)
	ListVxlanTunnels() ([]*types.VxlanTunnel, error)
	ListVxlanTunnelsByHost(hostID string) ([]*types.VxlanTunnel, error)
	DeleteVxlanTunnel(linkStateID string) error

	// ImageHosts
	UpsertImageHost(ih *types.ImageHost) error
	GetImageHost(image, hostID string) (*types.ImageHost, error)
	ListImageHostsByImage(image string) ([]*types.ImageHost, error)

	// ImageSyncJobs
	UpsertImageSyncJob(j *types.ImageSyncJob) error
	GetImageSyncJob(image, hostID string) (*types.ImageSyncJob, error)
	ListActiveImageSyncJobs() ([]*types.ImageSyncJob, error)

	// AgentUpdateJobs
	UpsertAgentUpdateJob(j *types.AgentUpdateJob) error
	GetAgentUpdateJob(hostID string) (*types.AgentUpdateJob, error)
	ListActiveAgentUpdateJobs() ([]*types.AgentUpdateJob, error)

	// Certificate Authority (mTLS bootstrap material)
	SaveCA(data []byte) error
	GetCA() ([]byte, error)

	// Utility
	Close() error
}
