package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuemby/fleetd/pkg/agentclient"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise the handlers that don't require a live containerd
// socket: auth gating, some of the documented-simplification endpoints
// (links, overlay declare-state, locks), registration/heartbeat, and the
// container-name and payload-decoding helpers.

func newTestAgent(token string) *agent {
	return &agent{hostID: "h1", authToken: token, registry: newNodeRegistry()}
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("X-Agent-Auth", token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAuthRejectsMissingToken(t *testing.T) {
	a := newTestAgent("secret")
	mux := a.routes()

	rec := doJSON(t, mux, "GET", "/locks/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthAcceptsCorrectToken(t *testing.T) {
	a := newTestAgent("secret")
	mux := a.routes()

	rec := doJSON(t, mux, "GET", "/locks/status", "secret", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var out []agentclient.LockStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out)
}

func TestHandleLinkReportsRequestedVLAN(t *testing.T) {
	a := newTestAgent("")
	mux := a.routes()

	rec := doJSON(t, mux, "POST", "/links", "", agentclient.LinkRequest{
		LabID: "lab-1", ContainerA: "r1", InterfaceA: "eth1",
		ContainerB: "r2", InterfaceB: "eth1", VLANTag: 42,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var out agentclient.LinkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, 42, out.VLANTag)
}

func TestHandleDeclareOverlayStateConvergesEveryTunnel(t *testing.T) {
	a := newTestAgent("")
	mux := a.routes()

	rec := doJSON(t, mux, "POST", "/overlay/declare-state", "", agentclient.DeclareOverlayStateRequest{
		Tunnels: []agentclient.DeclaredTunnel{{LinkID: "l1"}, {LinkID: "l2"}},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var out agentclient.DeclareOverlayStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Results, 2)
	assert.Equal(t, "converged", out.Results[0].Status)
}

func TestHandleRegisterAndHeartbeatAccept(t *testing.T) {
	a := newTestAgent("")
	mux := a.routes()

	rec := doJSON(t, mux, "POST", "/agents/register", "", agentclient.RegisterRequest{HostID: "h1", Name: "h1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, "POST", "/agents/h1/heartbeat", "", agentclient.HeartbeatRequest{CPUCount: 4})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResolveContainerName(t *testing.T) {
	assert.Equal(t, "explicit", resolveContainerName("lab-1", &types.Node{ContainerName: "explicit", UserVisibleID: "r1", ID: "n1"}))
	assert.Equal(t, "r1", resolveContainerName("lab-1", &types.Node{UserVisibleID: "r1", ID: "n1"}))
	assert.Equal(t, "n1", resolveContainerName("lab-1", &types.Node{ID: "n1"}))
}

func TestDecodeNodeAndTopologyRoundTrip(t *testing.T) {
	node, err := decodeNode(map[string]interface{}{"ID": "n1", "Image": "frr:latest"})
	require.NoError(t, err)
	assert.Equal(t, "n1", node.ID)
	assert.Equal(t, "frr:latest", node.Image)

	dt, err := decodeTopology(map[string]interface{}{
		"lab_id": "lab-1",
		"nodes":  []map[string]interface{}{{"ID": "n1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "lab-1", dt.LabID)
	require.Len(t, dt.Nodes, 1)
	assert.Equal(t, "n1", dt.Nodes[0].ID)
}
