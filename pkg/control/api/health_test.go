package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/fleetd/pkg/control"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/stretchr/testify/require"
)

func newBootstrappedCluster(t *testing.T) *control.Cluster {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)

	c, err := control.New(&control.Config{
		NodeID:   "node-1",
		BindAddr: "127.0.0.1:0",
		DataDir:  t.TempDir(),
	}, store)
	require.NoError(t, err)
	require.NoError(t, c.Bootstrap())
	t.Cleanup(func() { c.Shutdown() })

	require.Eventually(t, c.IsLeader, 5*time.Second, 10*time.Millisecond, "cluster never elected itself leader")
	return c
}

func TestHealthHandlerReportsHealthyRegardlessOfCluster(t *testing.T) {
	hs := NewHealthServer(nil)
	srv := httptest.NewServer(hs.GetHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "healthy", body.Status)
}

func TestHealthHandlerRejectsNonGet(t *testing.T) {
	hs := NewHealthServer(nil)
	srv := httptest.NewServer(hs.GetHandler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/health", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestReadyHandlerNotReadyWithoutCluster(t *testing.T) {
	hs := NewHealthServer(nil)
	srv := httptest.NewServer(hs.GetHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body ReadyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "not ready", body.Status)
	require.Equal(t, "not initialized", body.Checks["raft"])
	require.Equal(t, "not initialized", body.Checks["storage"])
}

func TestReadyHandlerReadyWhenLeaderAndStorageOK(t *testing.T) {
	cluster := newBootstrappedCluster(t)
	hs := NewHealthServer(cluster)
	srv := httptest.NewServer(hs.GetHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body ReadyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ready", body.Status)
	require.Equal(t, "leader", body.Checks["raft"])
	require.Equal(t, "ok", body.Checks["storage"])
}

func TestMetricsEndpointIsRegistered(t *testing.T) {
	hs := NewHealthServer(nil)
	srv := httptest.NewServer(hs.GetHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
