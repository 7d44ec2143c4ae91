package agentclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuemby/fleetd/pkg/convergeerr"
	"github.com/stretchr/testify/require"
)

func TestGetImageReturnsDecodedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/images/frr:latest", r.URL.Path)
		json.NewEncoder(w).Encode(ImageInfo{Reference: "frr:latest", Available: true})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	info, err := c.GetImage(context.Background(), "frr:latest")
	require.NoError(t, err)
	require.True(t, info.Available)
}

func TestDoSendsAuthHeaderWhenSet(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Agent-Auth")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "super-secret-token")
	require.NoError(t, c.ReleaseLock(context.Background(), "lab-1"))
	require.Equal(t, "super-secret-token", gotHeader)
}

func TestDoTreats5xxAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	err := c.ReleaseLock(context.Background(), "lab-1")
	require.Error(t, err)
	kind, ok := convergeerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, convergeerr.KindTransientAgent, kind)
}

func TestDoTreats4xxAsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	err := c.ReleaseLock(context.Background(), "lab-1")
	require.Error(t, err)
	kind, ok := convergeerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, convergeerr.KindPermanentAgent, kind)
}

func TestDoNetworkFailureIsTransient(t *testing.T) {
	c := New("http://127.0.0.1:1", "")
	err := c.ReleaseLock(context.Background(), "lab-1")
	require.Error(t, err)
	kind, ok := convergeerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, convergeerr.KindTransientAgent, kind)
}

func TestCheckNodeReadinessDecodesReadyFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/labs/lab-1/nodes/r1/ready", r.URL.Path)
		json.NewEncoder(w).Encode(ReadyResponse{IsReady: true})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ready, err := c.CheckNodeReadiness(context.Background(), "lab-1", "r1")
	require.NoError(t, err)
	require.True(t, ready)
}

func TestDeclareOverlayStatePostsTunnels(t *testing.T) {
	var received DeclareOverlayStateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/overlay/declare-state", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(DeclareOverlayStateResponse{})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	tunnels := []DeclaredTunnel{{LinkID: "link-1", VNI: 1000}}
	_, err := c.DeclareOverlayState(context.Background(), tunnels)
	require.NoError(t, err)
	require.Equal(t, tunnels, received.Tunnels)
}
