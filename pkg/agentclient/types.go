package agentclient

// Wire shapes exactly as fixed by the agent HTTP surface. These are not
// re-derived from any Go type elsewhere in fleetd — they are the one
// external contract this package exists to satisfy byte-for-byte.

// DeployRequest is the body of POST /deploy and POST /destroy.
type DeployRequest struct {
	JobID    string          `json:"job_id"`
	LabID    string          `json:"lab_id"`
	Topology interface{}     `json:"topology,omitempty"`
	Provider string          `json:"provider,omitempty"`
}

// JobResult is the response shape shared by /deploy, /destroy, and the
// per-node operations.
type JobResult struct {
	Status       string `json:"status"`
	Stdout       string `json:"stdout,omitempty"`
	Stderr       string `json:"stderr,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// NodeRequest is the body of /nodes/create, /nodes/start, /nodes/stop.
type NodeRequest struct {
	LabID    string      `json:"lab_id"`
	NodeSpec interface{} `json:"node_spec"`
}

// NodeActionRequest is the body of /nodes/action (arbitrary container verbs).
type NodeActionRequest struct {
	LabID  string `json:"lab_id"`
	Name   string `json:"name"`
	Action string `json:"action"`
}

// LabStatusResponse is the shape of GET /labs/{lab_id}/status.
type LabStatusResponse struct {
	Nodes []NodeStatus `json:"nodes"`
	Error string       `json:"error,omitempty"`
}

// NodeStatus is one entry in LabStatusResponse.Nodes.
type NodeStatus struct {
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	IPAddresses []string `json:"ip_addresses,omitempty"`
	Ready       *bool    `json:"ready,omitempty"`
}

// ReadyResponse is the shape of GET /labs/{lab_id}/nodes/{name}/ready.
type ReadyResponse struct {
	IsReady bool `json:"is_ready"`
}

// LinkRequest is the body of POST /links (same-host connect).
type LinkRequest struct {
	LabID        string `json:"lab_id"`
	ContainerA   string `json:"container_a"`
	InterfaceA   string `json:"interface_a"`
	ContainerB   string `json:"container_b"`
	InterfaceB   string `json:"interface_b"`
	VLANTag      int    `json:"vlan_tag,omitempty"`
}

// LinkResponse is the response of POST /links.
type LinkResponse struct {
	Success bool `json:"success"`
	VLANTag int  `json:"vlan_tag"`
}

// CrossHostLinkRequest is the body of POST /overlay/cross-host-link.
type CrossHostLinkRequest struct {
	LabID      string `json:"lab_id"`
	LinkID     string `json:"link_id"`
	HostA      string `json:"host_a"`
	HostB      string `json:"host_b"`
	InterfaceA string `json:"interface_a"`
	InterfaceB string `json:"interface_b"`
	VNI        int    `json:"vni"`
	VLANTag    int    `json:"vlan_tag"`
}

// CrossHostLinkResponse is the response of POST /overlay/cross-host-link.
type CrossHostLinkResponse struct {
	Success bool `json:"success"`
	VNI     int  `json:"vni"`
}

// DeclaredTunnel is one entry in the convergent overlay state set pushed
// to an agent so it can reconcile its VXLAN ports to match.
type DeclaredTunnel struct {
	LinkID       string `json:"link_id"`
	LabID        string `json:"lab_id"`
	VNI          int    `json:"vni"`
	LocalIP      string `json:"local_ip"`
	RemoteIP     string `json:"remote_ip"`
	ExpectedVLAN int    `json:"expected_vlan"`
	PortName     string `json:"port_name"`
	MTU          int    `json:"mtu"`
}

// DeclareOverlayStateRequest is the body of POST /overlay/declare-state.
type DeclareOverlayStateRequest struct {
	Tunnels []DeclaredTunnel `json:"tunnels"`
}

// DeclareOverlayStateResponse is the response of POST /overlay/declare-state.
type DeclareOverlayStateResponse struct {
	Results        []OverlayPortResult `json:"results"`
	OrphansRemoved []string            `json:"orphans_removed"`
}

// OverlayPortResult reports how one declared tunnel was reconciled.
type OverlayPortResult struct {
	LinkID string `json:"link_id"`
	Status string `json:"status"` // created | updated | converged | error
	Error  string `json:"error,omitempty"`
}

// CleanupOverlayResponse is the response of POST /overlay/cleanup.
type CleanupOverlayResponse struct {
	TunnelsDeleted int      `json:"tunnels_deleted"`
	BridgesDeleted int      `json:"bridges_deleted"`
	Errors         []string `json:"errors,omitempty"`
}

// ImageInfo is one entry of GET /images.
type ImageInfo struct {
	Reference string `json:"reference"`
	Available bool   `json:"available"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// LockStatus is one entry of GET /locks/status.
type LockStatus struct {
	LabID   string `json:"lab_id"`
	Held    bool   `json:"held"`
	AgeSecs int64  `json:"age_seconds"`
}

// ActiveTransfer is one entry of GET /images (active-transfers variant).
type ActiveTransfer struct {
	Image  string `json:"image"`
	Status string `json:"status"`
}

// RegisterRequest is the body of POST /agents/register.
type RegisterRequest struct {
	HostID           string   `json:"host_id"`
	Name             string   `json:"name"`
	Address          string   `json:"address"`
	DataPlaneAddress string   `json:"data_plane_address,omitempty"`
	Version          string   `json:"version"`
	Providers        []string `json:"providers"`
}

// HeartbeatRequest is the body of POST /agents/{id}/heartbeat.
type HeartbeatRequest struct {
	MemoryTotalBytes int64   `json:"memory_total_bytes"`
	MemoryUsedBytes  int64   `json:"memory_used_bytes"`
	CPUCount         int     `json:"cpu_count"`
	CPUPercent       float64 `json:"cpu_percent"`
	DiskTotalBytes   int64   `json:"disk_total_bytes"`
	DiskUsedBytes    int64   `json:"disk_used_bytes"`
}
