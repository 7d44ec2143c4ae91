// Package agentclient wraps every HTTP call the core makes to an agent as a
// typed operation. Unlike the rest of fleetd's management surface (gRPC),
// the manager-to-agent wire format is externally fixed as plain JSON over
// HTTP, so the client is built on net/http + encoding/json rather than
// extending the gRPC idiom to a contract that was never gRPC's to begin
// with.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/fleetd/pkg/convergeerr"
)

// Timeouts per operation class: deploy calls run long, status polls run short.
const (
	timeoutDeploy = 5 * time.Minute
	timeoutStatus = 10 * time.Second
	timeoutQuick  = 5 * time.Second
)

// Client is a connection to one agent's HTTP API.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

// New returns a Client targeting the agent at baseURL (e.g. "https://10.0.0.5:7780").
func New(baseURL, authToken string) *Client {
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		http:      &http.Client{},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return convergeerr.New(convergeerr.KindPermanentAgent, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return convergeerr.New(convergeerr.KindPermanentAgent, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("X-Agent-Auth", c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// network failure or context deadline: transient, never destroys state.
		return convergeerr.New(convergeerr.KindTransientAgent, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return convergeerr.New(convergeerr.KindTransientAgent, path, err)
	}

	if resp.StatusCode >= 500 {
		return convergeerr.New(convergeerr.KindTransientAgent, path,
			fmt.Errorf("agent returned %d: %s", resp.StatusCode, string(respBody)))
	}
	if resp.StatusCode >= 400 {
		return convergeerr.New(convergeerr.KindPermanentAgent, path,
			fmt.Errorf("agent returned %d: %s", resp.StatusCode, string(respBody)))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return convergeerr.New(convergeerr.KindPermanentAgent, path, err)
	}
	return nil
}

// DeployLab submits a full lab topology for one host.
func (c *Client) DeployLab(ctx context.Context, jobID, labID string, topology interface{}, provider string) (*JobResult, error) {
	var out JobResult
	err := c.do(ctx, http.MethodPost, "/deploy",
		DeployRequest{JobID: jobID, LabID: labID, Topology: topology, Provider: provider}, &out, timeoutDeploy)
	return &out, err
}

// DestroyLab tears down everything for a lab on this host.
func (c *Client) DestroyLab(ctx context.Context, jobID, labID string) (*JobResult, error) {
	var out JobResult
	err := c.do(ctx, http.MethodPost, "/destroy", DeployRequest{JobID: jobID, LabID: labID}, &out, timeoutDeploy)
	return &out, err
}

// CreateNode creates (but doesn't start) a single node.
func (c *Client) CreateNode(ctx context.Context, labID string, nodeSpec interface{}) (*JobResult, error) {
	var out JobResult
	err := c.do(ctx, http.MethodPost, "/nodes/create", NodeRequest{LabID: labID, NodeSpec: nodeSpec}, &out, timeoutDeploy)
	return &out, err
}

// StartNode starts a previously created node.
func (c *Client) StartNode(ctx context.Context, labID string, nodeSpec interface{}) (*JobResult, error) {
	var out JobResult
	err := c.do(ctx, http.MethodPost, "/nodes/start", NodeRequest{LabID: labID, NodeSpec: nodeSpec}, &out, timeoutDeploy)
	return &out, err
}

// StopNode stops a running node.
func (c *Client) StopNode(ctx context.Context, labID string, nodeSpec interface{}) (*JobResult, error) {
	var out JobResult
	err := c.do(ctx, http.MethodPost, "/nodes/stop", NodeRequest{LabID: labID, NodeSpec: nodeSpec}, &out, timeoutStatus)
	return &out, err
}

// ContainerAction runs an arbitrary lifecycle verb against a node's container.
func (c *Client) ContainerAction(ctx context.Context, labID, name, action string) (*JobResult, error) {
	var out JobResult
	err := c.do(ctx, http.MethodPost, "/nodes/action", NodeActionRequest{LabID: labID, Name: name, Action: action}, &out, timeoutStatus)
	return &out, err
}

// GetLabStatus reports every node's status as the agent currently sees it.
func (c *Client) GetLabStatus(ctx context.Context, labID string) (*LabStatusResponse, error) {
	var out LabStatusResponse
	err := c.do(ctx, http.MethodGet, "/labs/"+labID+"/status", nil, &out, timeoutStatus)
	return &out, err
}

// CheckNodeReadiness polls whether a single node has finished booting.
func (c *Client) CheckNodeReadiness(ctx context.Context, labID, name string) (bool, error) {
	var out ReadyResponse
	err := c.do(ctx, http.MethodGet, "/labs/"+labID+"/nodes/"+name+"/ready", nil, &out, timeoutQuick)
	return out.IsReady, err
}

// ExtractConfigs asks the agent to snapshot running configs before a
// destructive operation (container replace, lab destroy).
func (c *Client) ExtractConfigs(ctx context.Context, labID string) (*JobResult, error) {
	var out JobResult
	err := c.do(ctx, http.MethodPost, "/labs/"+labID+"/extract-configs", nil, &out, timeoutStatus)
	return &out, err
}

// CreateLinkOnAgent performs a same-host hot-connect between two containers.
func (c *Client) CreateLinkOnAgent(ctx context.Context, req LinkRequest) (*LinkResponse, error) {
	var out LinkResponse
	err := c.do(ctx, http.MethodPost, "/links", req, &out, timeoutStatus)
	return &out, err
}

// SetupCrossHostLinkV2 provisions one side of a cross-host VXLAN tunnel.
func (c *Client) SetupCrossHostLinkV2(ctx context.Context, req CrossHostLinkRequest) (*CrossHostLinkResponse, error) {
	var out CrossHostLinkResponse
	err := c.do(ctx, http.MethodPost, "/overlay/cross-host-link", req, &out, timeoutStatus)
	return &out, err
}

// DeclareOverlayState pushes the convergent desired tunnel set for this
// host: the agent reconciles its OVS ports to match.
func (c *Client) DeclareOverlayState(ctx context.Context, tunnels []DeclaredTunnel) (*DeclareOverlayStateResponse, error) {
	var out DeclareOverlayStateResponse
	err := c.do(ctx, http.MethodPost, "/overlay/declare-state", DeclareOverlayStateRequest{Tunnels: tunnels}, &out, timeoutStatus)
	return &out, err
}

// CleanupOverlay tears down all VXLAN ports and bridges for a lab.
func (c *Client) CleanupOverlay(ctx context.Context, labID string) (*CleanupOverlayResponse, error) {
	var out CleanupOverlayResponse
	err := c.do(ctx, http.MethodPost, "/overlay/cleanup", DeployRequest{LabID: labID}, &out, timeoutStatus)
	return &out, err
}

// ListImages returns the agent's local image inventory.
func (c *Client) ListImages(ctx context.Context) ([]ImageInfo, error) {
	var out []ImageInfo
	err := c.do(ctx, http.MethodGet, "/images", nil, &out, timeoutStatus)
	return out, err
}

// GetImage reports availability for a single image reference.
func (c *Client) GetImage(ctx context.Context, ref string) (*ImageInfo, error) {
	var out ImageInfo
	err := c.do(ctx, http.MethodGet, "/images/"+ref, nil, &out, timeoutStatus)
	return &out, err
}

// GetActiveTransfers reports image pulls currently in flight on this agent.
func (c *Client) GetActiveTransfers(ctx context.Context) ([]ActiveTransfer, error) {
	var out []ActiveTransfer
	err := c.do(ctx, http.MethodGet, "/images?active_transfers=1", nil, &out, timeoutQuick)
	return out, err
}

// Update triggers an agent binary self-upgrade.
func (c *Client) Update(ctx context.Context, version, url string) (*JobResult, error) {
	var out JobResult
	body := struct {
		Version string `json:"version"`
		URL     string `json:"url"`
	}{version, url}
	err := c.do(ctx, http.MethodPost, "/update", body, &out, timeoutDeploy)
	return &out, err
}

// GetLockStatus lists the agent-side locks and their ages.
func (c *Client) GetLockStatus(ctx context.Context) ([]LockStatus, error) {
	var out []LockStatus
	err := c.do(ctx, http.MethodGet, "/locks/status", nil, &out, timeoutQuick)
	return out, err
}

// ReleaseLock force-releases an agent-side lab lock.
func (c *Client) ReleaseLock(ctx context.Context, labID string) error {
	return c.do(ctx, http.MethodPost, "/locks/"+labID+"/release", nil, nil, timeoutQuick)
}

// Register announces this agent to the manager for the first time.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/agents/register", req, nil, timeoutStatus)
}

// Heartbeat reports current liveness and resource usage.
func (c *Client) Heartbeat(ctx context.Context, hostID string, req HeartbeatRequest) error {
	return c.do(ctx, http.MethodPost, "/agents/"+hostID+"/heartbeat", req, nil, timeoutQuick)
}
