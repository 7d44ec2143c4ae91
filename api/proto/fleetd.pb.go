// Package fleetv1 holds the management-plane message and service types
// described by fleetd.proto.
//
// These bindings are hand-written rather than protoc-generated: this
// repository's build is not allowed to shell out to protoc, so the wire
// format here rides gRPC's Codec interface with plain Go structs and JSON
// (see codec.go) instead of the reflection-based protobuf codec protoc-gen-go
// normally wires up. Every other piece of the service — the ServiceDesc,
// streaming, client/server stubs — is the same shape protoc-gen-go-grpc
// would produce from fleetd.proto.
package fleetv1

type Lab struct {
	Id           string `json:"id,omitempty"`
	Owner        string `json:"owner,omitempty"`
	Provider     string `json:"provider,omitempty"`
	State        string `json:"state,omitempty"`
	DefaultAgent string `json:"default_agent,omitempty"`
	StateError   string `json:"state_error,omitempty"`
}

type Host struct {
	Id      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	Status  string `json:"status,omitempty"`
	Version string `json:"version,omitempty"`
}

type Job struct {
	Id          string `json:"id,omitempty"`
	LabId       string `json:"lab_id,omitempty"`
	UserId      string `json:"user_id,omitempty"`
	Action      string `json:"action,omitempty"`
	Status      string `json:"status,omitempty"`
	RetryCount  int32  `json:"retry_count,omitempty"`
	ParentJobId string `json:"parent_job_id,omitempty"`
	LogPath     string `json:"log_path,omitempty"`
}

type CreateLabRequest struct {
	Owner        string `json:"owner,omitempty"`
	Provider     string `json:"provider,omitempty"`
	DefaultAgent string `json:"default_agent,omitempty"`
}
type CreateLabResponse struct {
	Lab *Lab `json:"lab,omitempty"`
}

type GetLabRequest struct {
	Id string `json:"id,omitempty"`
}
type GetLabResponse struct {
	Lab *Lab `json:"lab,omitempty"`
}

type ListLabsRequest struct {
	OwnerFilter string `json:"owner_filter,omitempty"`
}
type ListLabsResponse struct {
	Labs []*Lab `json:"labs,omitempty"`
}

type DeleteLabRequest struct {
	Id string `json:"id,omitempty"`
}
type DeleteLabResponse struct{}

type DeployLabRequest struct {
	LabId      string `json:"lab_id,omitempty"`
	HostFilter string `json:"host_filter,omitempty"`
}
type DeployLabResponse struct {
	Job *Job `json:"job,omitempty"`
}

type DestroyLabRequest struct {
	LabId      string `json:"lab_id,omitempty"`
	HostFilter string `json:"host_filter,omitempty"`
}
type DestroyLabResponse struct {
	Job *Job `json:"job,omitempty"`
}

type StartNodeRequest struct {
	LabId  string `json:"lab_id,omitempty"`
	NodeId string `json:"node_id,omitempty"`
}
type StartNodeResponse struct {
	Job *Job `json:"job,omitempty"`
}

type StopNodeRequest struct {
	LabId  string `json:"lab_id,omitempty"`
	NodeId string `json:"node_id,omitempty"`
}
type StopNodeResponse struct {
	Job *Job `json:"job,omitempty"`
}

type GetJobRequest struct {
	Id string `json:"id,omitempty"`
}
type GetJobResponse struct {
	Job *Job `json:"job,omitempty"`
}

type ListJobsRequest struct {
	LabId string `json:"lab_id,omitempty"`
}
type ListJobsResponse struct {
	Jobs []*Job `json:"jobs,omitempty"`
}

type CancelJobRequest struct {
	Id string `json:"id,omitempty"`
}
type CancelJobResponse struct {
	Job *Job `json:"job,omitempty"`
}

type RegisterHostRequest struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	Version string `json:"version,omitempty"`
}
type RegisterHostResponse struct {
	Host *Host `json:"host,omitempty"`
}

type HeartbeatRequest struct {
	HostId           string  `json:"host_id,omitempty"`
	MemoryTotalBytes int64   `json:"memory_total_bytes,omitempty"`
	MemoryUsedBytes  int64   `json:"memory_used_bytes,omitempty"`
	CpuCount         int32   `json:"cpu_count,omitempty"`
	CpuPercent       float64 `json:"cpu_percent,omitempty"`
}
type HeartbeatResponse struct {
	Status string `json:"status,omitempty"`
}

type ListHostsRequest struct{}
type ListHostsResponse struct {
	Hosts []*Host `json:"hosts,omitempty"`
}

type StreamEventsRequest struct {
	LabId string `json:"lab_id,omitempty"`
}

type Event struct {
	Type          string `json:"type,omitempty"`
	TimestampUnix int64  `json:"timestamp_unix,omitempty"`
	LabId         string `json:"lab_id,omitempty"`
	EntityId      string `json:"entity_id,omitempty"`
	Message       string `json:"message,omitempty"`
}

type GenerateJoinTokenRequest struct {
	Role string `json:"role,omitempty"`
}
type GenerateJoinTokenResponse struct {
	Token         string `json:"token,omitempty"`
	Role          string `json:"role,omitempty"`
	ExpiresAtUnix int64  `json:"expires_at_unix,omitempty"`
}

type RequestCertificateRequest struct {
	Token    string `json:"token,omitempty"`
	ClientId string `json:"client_id,omitempty"`
}
type RequestCertificateResponse struct {
	CertPem   []byte `json:"cert_pem,omitempty"`
	KeyPem    []byte `json:"key_pem,omitempty"`
	CaCertPem []byte `json:"ca_cert_pem,omitempty"`
}
