package overlay

// DeclaredTunnel is the caller-side mirror of agentclient.DeclaredTunnel:
// one entry of the convergent overlay state set an agent reconciles its OVS
// ports against.
type DeclaredTunnel struct {
	LinkID       string
	LabID        string
	VNI          int
	LocalIP      string
	RemoteIP     string
	ExpectedVLAN int
	PortName     string
	MTU          int
}

// PortStatus is how an agent classified one declared tunnel port.
type PortStatus string

const (
	PortCreated   PortStatus = "created"
	PortUpdated   PortStatus = "updated"
	PortConverged PortStatus = "converged"
	PortError     PortStatus = "error"
)

// PortResult is the caller-side mirror of agentclient.OverlayPortResult.
type PortResult struct {
	LinkID string
	Status PortStatus
	Error  string
}
