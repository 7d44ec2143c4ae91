package imagesync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/fleetd/pkg/agentclient"
	"github.com/cuemby/fleetd/pkg/clock"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/stretchr/testify/require"
)

// fakeAgent serves /images/{ref} reporting whichever references are in
// available, and records every path hit.
type fakeAgent struct {
	srv       *httptest.Server
	available map[string]bool
	hits      []string
}

func newFakeAgent(t *testing.T) *fakeAgent {
	t.Helper()
	fa := &fakeAgent{available: make(map[string]bool)}
	fa.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fa.hits = append(fa.hits, r.URL.Path)
		ref := r.URL.Path[len("/images/"):]
		json.NewEncoder(w).Encode(agentclient.ImageInfo{Reference: ref, Available: fa.available[ref]})
	}))
	t.Cleanup(fa.srv.Close)
	return fa
}

func newTestService(t *testing.T, resolve AgentResolver, cfg Config) (*Service, storage.Store, *clock.Fake) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(store, clk, resolve, nil, cfg), store, clk
}

func TestEnsureForDeploymentReturnsNilWhenDisabled(t *testing.T) {
	svc, _, _ := newTestService(t, nil, Config{Enabled: false})
	missing, err := svc.EnsureForDeployment(context.Background(), "lab-1", "host-1", []string{"frr:latest"})
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestEnsureForDeploymentErrorsOnUnknownHost(t *testing.T) {
	svc, _, _ := newTestService(t, nil, DefaultConfig())
	_, err := svc.EnsureForDeployment(context.Background(), "lab-1", "missing-host", []string{"frr:latest"})
	require.Error(t, err)
}

func TestEnsureForDeploymentNoMissingImages(t *testing.T) {
	agent := newFakeAgent(t)
	agent.available["frr:latest"] = true

	resolve := func(hostID string) (*agentclient.Client, error) { return agentclient.New(agent.srv.URL, ""), nil }
	svc, store, _ := newTestService(t, resolve, DefaultConfig())
	require.NoError(t, store.CreateHost(&types.Host{ID: "host-1", Status: types.HostStatusOnline}))

	missing, err := svc.EnsureForDeployment(context.Background(), "lab-1", "host-1", []string{"frr:latest", "frr:latest"})
	require.NoError(t, err)
	require.Empty(t, missing)
	require.Len(t, agent.hits, 1, "duplicate refs should be deduped before the agent is queried")
}

func TestEnsureForDeploymentDisabledFallbackMarksFailed(t *testing.T) {
	agent := newFakeAgent(t)
	resolve := func(hostID string) (*agentclient.Client, error) { return agentclient.New(agent.srv.URL, ""), nil }

	cfg := DefaultConfig()
	cfg.FallbackStrategy = StrategyDisabled
	svc, store, _ := newTestService(t, resolve, cfg)
	require.NoError(t, store.CreateHost(&types.Host{ID: "host-1", Status: types.HostStatusOnline}))

	missing, err := svc.EnsureForDeployment(context.Background(), "lab-1", "host-1", []string{"alpine:3.19"})
	require.NoError(t, err)
	require.Equal(t, []string{"alpine:3.19"}, missing)

	job, err := store.GetImageSyncJob("alpine:3.19", "host-1")
	require.NoError(t, err)
	require.Equal(t, types.ImageSyncJobFailed, job.Status)
}

func TestEnsureForDeploymentWaitsThenSucceeds(t *testing.T) {
	agent := newFakeAgent(t)
	resolve := func(hostID string) (*agentclient.Client, error) { return agentclient.New(agent.srv.URL, ""), nil }

	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Second
	cfg.PollInterval = time.Second
	svc, store, clk := newTestService(t, resolve, cfg)
	require.NoError(t, store.CreateHost(&types.Host{ID: "host-1", Status: types.HostStatusOnline}))

	done := make(chan struct{})
	var missing []string
	var err error
	go func() {
		missing, err = svc.EnsureForDeployment(context.Background(), "lab-1", "host-1", []string{"frr:latest"})
		close(done)
	}()

	// let EnsureForDeployment register its first poll wait, then make the
	// image available and advance the fake clock to fire it.
	time.Sleep(20 * time.Millisecond)
	agent.available["frr:latest"] = true
	clk.Advance(cfg.PollInterval)

	<-done
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestReconcileAgentImagesSkipsOfflineHost(t *testing.T) {
	resolve := func(hostID string) (*agentclient.Client, error) { return nil, nil }
	svc, store, _ := newTestService(t, resolve, DefaultConfig())
	require.NoError(t, store.CreateHost(&types.Host{ID: "host-1", Status: types.HostStatusOffline}))

	svc.ReconcileAgentImages(context.Background(), "host-1", []string{"frr:latest"})

	_, err := store.GetImageHost("frr:latest", "host-1")
	require.Error(t, err, "nothing should have been recorded for an offline host")
}

func TestReconcileAgentImagesRecordsAvailability(t *testing.T) {
	agent := newFakeAgent(t)
	agent.available["frr:latest"] = true
	resolve := func(hostID string) (*agentclient.Client, error) { return agentclient.New(agent.srv.URL, ""), nil }

	svc, store, _ := newTestService(t, resolve, DefaultConfig())
	require.NoError(t, store.CreateHost(&types.Host{ID: "host-1", Status: types.HostStatusOnline}))

	svc.ReconcileAgentImages(context.Background(), "host-1", []string{"frr:latest", "alpine:3.19"})

	ih, err := store.GetImageHost("frr:latest", "host-1")
	require.NoError(t, err)
	require.True(t, ih.Available)

	ih2, err := store.GetImageHost("alpine:3.19", "host-1")
	require.NoError(t, err)
	require.False(t, ih2.Available)
}
