package types

import "time"

// Host is a worker machine capable of running agent-managed containers/VMs.
type Host struct {
	ID               string
	Name             string
	Address          string // management address (host:port)
	DataPlaneAddress string // IP used for VXLAN underlay traffic, if set
	Status           HostStatus
	LastHeartbeat    time.Time
	Capabilities     HostCapabilities
	Resources        *HostResources
	Version          string
	ProcessStartedAt time.Time
	LastError        string
	ErrorSince       time.Time
	CreatedAt        time.Time
}

// HostStatus is the liveness state of a worker host.
type HostStatus string

const (
	HostStatusOnline  HostStatus = "online"
	HostStatusOffline HostStatus = "offline"
)

// HostCapabilities describes what an agent on this host can run.
type HostCapabilities struct {
	Providers []Provider
}

// HasProvider reports whether the host advertises the given provider.
func (c HostCapabilities) HasProvider(p Provider) bool {
	for _, existing := range c.Providers {
		if existing == p {
			return true
		}
	}
	return false
}

// Provider is the runtime backing a node (container engine or hypervisor).
type Provider string

const (
	ProviderContainer Provider = "container"
	ProviderVM        Provider = "vm"
)

// HostResources is the most recent resource snapshot reported on heartbeat.
type HostResources struct {
	MemoryTotalBytes int64
	MemoryUsedBytes  int64
	CPUCount         int
	CPUPercent       float64
	DiskTotalBytes   int64
	DiskUsedBytes    int64
}

// Lab is a user-owned deployment unit: a topology of Nodes and Links.
type Lab struct {
	ID           string
	Owner        string
	Provider     Provider
	State        LabState
	DefaultAgent string // default host ID for nodes with no explicit placement
	StateError   string
	StateSince   time.Time
	CreatedAt    time.Time
}

// LabState is the derived, always-recomputable rollup of a lab's NodeStates.
type LabState string

const (
	LabStateUndeployed LabState = "undeployed"
	LabStateStarting   LabState = "starting"
	LabStateRunning    LabState = "running"
	LabStateStopping   LabState = "stopping"
	LabStateStopped    LabState = "stopped"
	LabStateError      LabState = "error"
	LabStateUnknown    LabState = "unknown"
)

// Node is one entity (router, switch, VM, host) in a lab's topology.
type Node struct {
	ID            string
	LabID         string
	UserVisibleID string
	ContainerName string
	DeviceKind    string
	Image         string
	HostID        string // explicit placement; empty means "free placement"
	MemoryMB      int64
	CPUCores      float64
}

// NodeState is the per-node convergence unit: one row per Node per Lab.
type NodeState struct {
	LabID    string
	NodeID   string
	NodeName string

	DesiredState NodeDesiredState
	ActualState  NodeActualState
	IsReady      bool

	StartingStartedAt time.Time
	StoppingStartedAt time.Time
	BootStartedAt     time.Time

	ErrorMessage string

	ImageSyncStatus  ImageSyncStatus
	ImageSyncMessage string

	EnforcementAttempts int
	LastEnforcementAt   time.Time
	EnforcementFailedAt time.Time

	ManagementIP string
	IPAddresses  []string
}

// NodeDesiredState is the user's intent for a node.
type NodeDesiredState string

const (
	NodeDesiredRunning NodeDesiredState = "running"
	NodeDesiredStopped NodeDesiredState = "stopped"
)

// NodeActualState is the last-observed (or last-commanded) reality for a node.
type NodeActualState string

const (
	NodeActualUndeployed NodeActualState = "undeployed"
	NodeActualPending    NodeActualState = "pending"
	NodeActualStarting   NodeActualState = "starting"
	NodeActualRunning    NodeActualState = "running"
	NodeActualStopping   NodeActualState = "stopping"
	NodeActualStopped    NodeActualState = "stopped"
	NodeActualExited     NodeActualState = "exited"
	NodeActualError      NodeActualState = "error"
)

// ImageSyncStatus is the side-channel image-availability signal on a NodeState.
type ImageSyncStatus string

const (
	ImageSyncNone     ImageSyncStatus = ""
	ImageSyncChecking ImageSyncStatus = "checking"
	ImageSyncSyncing  ImageSyncStatus = "syncing"
	ImageSyncFailed   ImageSyncStatus = "failed"
)

// Link is a static edge in a lab's topology.
type Link struct {
	ID          string
	LabID       string
	SourceNode  string
	TargetNode  string
	SourceIface string
	TargetIface string
	VLAN        int // optional explicit VLAN; 0 means unset
}

// LinkState is the per-edge convergence unit.
type LinkState struct {
	LabID  string
	LinkID string

	DesiredState LinkDesiredState
	ActualState  LinkActualState
	IsCrossHost  bool

	SourceHostID string
	TargetHostID string

	VNI     int
	VLANTag int

	SourceCarrierState CarrierState
	TargetCarrierState CarrierState

	SourceOperState  OperState
	TargetOperState  OperState
	SourceOperReason string
	TargetOperReason string
	OperEpoch        int64

	ErrorMessage string
}

// LinkDesiredState is the user's intent for a link.
type LinkDesiredState string

const (
	LinkDesiredUp      LinkDesiredState = "up"
	LinkDesiredDown    LinkDesiredState = "down"
	LinkDesiredDeleted LinkDesiredState = "deleted"
)

// LinkActualState is the last-computed reality for a link.
type LinkActualState string

const (
	LinkActualUnknown LinkActualState = "unknown"
	LinkActualPending LinkActualState = "pending"
	LinkActualUp      LinkActualState = "up"
	LinkActualDown    LinkActualState = "down"
	LinkActualError   LinkActualState = "error"
)

// CarrierState is the user-settable administrative state of a link endpoint.
type CarrierState string

const (
	CarrierOn  CarrierState = "on"
	CarrierOff CarrierState = "off"
)

// OperState is the observed operational state of a link endpoint.
type OperState string

const (
	OperUp      OperState = "up"
	OperDown    OperState = "down"
	OperUnknown OperState = "unknown"
)

// NodePlacement records where a lab's node is currently deployed.
type NodePlacement struct {
	LabID            string
	NodeName         string
	NodeDefinitionID string // backfilled lazily from Node
	HostID           string
	Status           PlacementStatus
}

// PlacementStatus is the lifecycle state of a NodePlacement.
type PlacementStatus string

const (
	PlacementStarting PlacementStatus = "starting"
	PlacementDeployed PlacementStatus = "deployed"
)

// Job is a unit of work executed by the NLM or a periodic monitor.
type Job struct {
	ID             string
	LabID          string
	UserID         string // empty for system-initiated jobs
	Action         string
	Status         JobStatus
	RetryCount     int
	ParentJobID    string
	SupersededByID string
	CreatedAt      time.Time
	StartedAt      time.Time
	FinishedAt     time.Time
	LastHeartbeat  time.Time
	LogPath        string
	AgentID        string
}

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobQueued               JobStatus = "queued"
	JobRunning              JobStatus = "running"
	JobCompleted            JobStatus = "completed"
	JobCompletedWithWarnings JobStatus = "completed_with_warnings"
	JobFailed               JobStatus = "failed"
	JobCancelled            JobStatus = "cancelled"
)

// Active reports whether the job is still being worked (not terminal).
func (s JobStatus) Active() bool {
	return s == JobQueued || s == JobRunning
}

// Terminal reports whether the job has reached a final status.
func (s JobStatus) Terminal() bool {
	return !s.Active()
}

// VxlanTunnel is the cross-host overlay realization of one LinkState.
type VxlanTunnel struct {
	ID           string
	LinkStateID  string // "<lab_id>:<link_id>"
	LabID        string
	LinkID       string
	VNI          int
	VLANTag      int
	SourceHostID string
	TargetHostID string
	SourceDataIP string
	TargetDataIP string
	Status       TunnelStatus
	ErrorMessage string
}

// TunnelStatus is the health of a VxlanTunnel.
type TunnelStatus string

const (
	TunnelActive TunnelStatus = "active"
	TunnelFailed TunnelStatus = "failed"
)

// ImageHost is the per-(image,host) availability record.
type ImageHost struct {
	Image     string
	HostID    string
	Available bool
	CheckedAt time.Time
}

// ImageSyncJob is the per-(image,host) sync driving state.
type ImageSyncJob struct {
	ID        string
	Image     string
	HostID    string
	Status    ImageSyncJobStatus
	StartedAt time.Time
	UpdatedAt time.Time
	Error     string
}

// ImageSyncJobStatus is the lifecycle of an ImageSyncJob.
type ImageSyncJobStatus string

const (
	ImageSyncJobPending      ImageSyncJobStatus = "pending"
	ImageSyncJobTransferring ImageSyncJobStatus = "transferring"
	ImageSyncJobLoading      ImageSyncJobStatus = "loading"
	ImageSyncJobCompleted    ImageSyncJobStatus = "completed"
	ImageSyncJobFailed       ImageSyncJobStatus = "failed"
)

// Active reports whether the image sync job is still in flight.
func (s ImageSyncJobStatus) Active() bool {
	return s == ImageSyncJobPending || s == ImageSyncJobTransferring || s == ImageSyncJobLoading
}

// AgentUpdateJob tracks an agent binary self-upgrade.
type AgentUpdateJob struct {
	ID        string
	HostID    string
	Status    AgentUpdateStatus
	StartedAt time.Time
	UpdatedAt time.Time
	Error     string
}

// AgentUpdateStatus is the lifecycle of an AgentUpdateJob.
type AgentUpdateStatus string

const (
	AgentUpdatePending     AgentUpdateStatus = "pending"
	AgentUpdateDownloading AgentUpdateStatus = "downloading"
	AgentUpdateInstalling  AgentUpdateStatus = "installing"
	AgentUpdateRestarting  AgentUpdateStatus = "restarting"
	AgentUpdateCompleted   AgentUpdateStatus = "completed"
	AgentUpdateFailed      AgentUpdateStatus = "failed"
)

// Active reports whether the agent-update job is still in flight.
func (s AgentUpdateStatus) Active() bool {
	switch s {
	case AgentUpdatePending, AgentUpdateDownloading, AgentUpdateInstalling, AgentUpdateRestarting:
		return true
	default:
		return false
	}
}
