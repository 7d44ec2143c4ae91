package jobrunner

import (
	"testing"

	"github.com/cuemby/fleetd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore implements storage.Store with in-memory maps, enough to
// exercise resolveNodeIDs without a real backing store.
type fakeStore struct {
	nodes map[string][]*types.Node
	jobs  map[string]*types.Job
}

func newFakeStore() *fakeStore {
	return &fakeStore{nodes: map[string][]*types.Node{}, jobs: map[string]*types.Job{}}
}

func (f *fakeStore) CreateHost(*types.Host) error             { return nil }
func (f *fakeStore) GetHost(string) (*types.Host, error)      { return nil, nil }
func (f *fakeStore) ListHosts() ([]*types.Host, error)        { return nil, nil }
func (f *fakeStore) UpdateHost(*types.Host) error             { return nil }
func (f *fakeStore) DeleteHost(string) error                  { return nil }
func (f *fakeStore) CreateLab(*types.Lab) error               { return nil }
func (f *fakeStore) GetLab(string) (*types.Lab, error)        { return nil, nil }
func (f *fakeStore) ListLabs() ([]*types.Lab, error)          { return nil, nil }
func (f *fakeStore) ListLabsByOwner(string) ([]*types.Lab, error) { return nil, nil }
func (f *fakeStore) UpdateLab(*types.Lab) error               { return nil }
func (f *fakeStore) DeleteLab(string) error                   { return nil }
func (f *fakeStore) CreateNode(*types.Node) error             { return nil }
func (f *fakeStore) GetNode(string) (*types.Node, error)      { return nil, nil }
func (f *fakeStore) ListNodesByLab(labID string) ([]*types.Node, error) {
	return f.nodes[labID], nil
}
func (f *fakeStore) UpdateNode(*types.Node) error                       { return nil }
func (f *fakeStore) DeleteNode(string) error                            { return nil }
func (f *fakeStore) DeleteNodesByLab(string) error                      { return nil }
func (f *fakeStore) UpsertNodeState(*types.NodeState) error             { return nil }
func (f *fakeStore) GetNodeState(string, string) (*types.NodeState, error) { return nil, nil }
func (f *fakeStore) ListNodeStatesByLab(string) ([]*types.NodeState, error) { return nil, nil }
func (f *fakeStore) DeleteNodeState(string, string) error               { return nil }
func (f *fakeStore) CreateLink(*types.Link) error                       { return nil }
func (f *fakeStore) GetLink(string) (*types.Link, error)                { return nil, nil }
func (f *fakeStore) ListLinksByLab(string) ([]*types.Link, error)       { return nil, nil }
func (f *fakeStore) DeleteLink(string) error                            { return nil }
func (f *fakeStore) DeleteLinksByLab(string) error                      { return nil }
func (f *fakeStore) UpsertLinkState(*types.LinkState) error             { return nil }
func (f *fakeStore) GetLinkState(string, string) (*types.LinkState, error) { return nil, nil }
func (f *fakeStore) ListLinkStatesByLab(string) ([]*types.LinkState, error) { return nil, nil }
func (f *fakeStore) DeleteLinkState(string, string) error               { return nil }
func (f *fakeStore) UpsertNodePlacement(*types.NodePlacement) error     { return nil }
func (f *fakeStore) GetNodePlacement(string, string) (*types.NodePlacement, error) {
	return nil, nil
}
func (f *fakeStore) ListNodePlacementsByLab(string) ([]*types.NodePlacement, error) {
	return nil, nil
}
func (f *fakeStore) DeleteNodePlacement(string, string) error { return nil }
func (f *fakeStore) CreateJob(j *types.Job) error {
	f.jobs[j.ID] = j
	return nil
}
func (f *fakeStore) GetJob(id string) (*types.Job, error) { return f.jobs[id], nil }
func (f *fakeStore) ListJobs() ([]*types.Job, error)      { return f.ListActiveJobs() }
func (f *fakeStore) ListJobsByLab(string) ([]*types.Job, error) { return nil, nil }
func (f *fakeStore) ListActiveJobs() ([]*types.Job, error) {
	var out []*types.Job
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out, nil
}
func (f *fakeStore) UpdateJob(j *types.Job) error {
	f.jobs[j.ID] = j
	return nil
}
func (f *fakeStore) UpsertVxlanTunnel(*types.VxlanTunnel) error { return nil }
func (f *fakeStore) GetVxlanTunnel(string) (*types.VxlanTunnel, error) { return nil, nil }
func (f *fakeStore) ListVxlanTunnels() ([]*types.VxlanTunnel, error)   { return nil, nil }
func (f *fakeStore) ListVxlanTunnelsByHost(string) ([]*types.VxlanTunnel, error) {
	return nil, nil
}
func (f *fakeStore) DeleteVxlanTunnel(string) error                      { return nil }
func (f *fakeStore) UpsertImageHost(*types.ImageHost) error              { return nil }
func (f *fakeStore) GetImageHost(string, string) (*types.ImageHost, error) { return nil, nil }
func (f *fakeStore) ListImageHostsByImage(string) ([]*types.ImageHost, error) {
	return nil, nil
}
func (f *fakeStore) UpsertImageSyncJob(*types.ImageSyncJob) error { return nil }
func (f *fakeStore) GetImageSyncJob(string, string) (*types.ImageSyncJob, error) {
	return nil, nil
}
func (f *fakeStore) ListActiveImageSyncJobs() ([]*types.ImageSyncJob, error) {
	return nil, nil
}
func (f *fakeStore) UpsertAgentUpdateJob(*types.AgentUpdateJob) error { return nil }
func (f *fakeStore) GetAgentUpdateJob(string) (*types.AgentUpdateJob, error) {
	return nil, nil
}
func (f *fakeStore) ListActiveAgentUpdateJobs() ([]*types.AgentUpdateJob, error) {
	return nil, nil
}
func (f *fakeStore) SaveCA([]byte) error          { return nil }
func (f *fakeStore) GetCA() ([]byte, error)        { return nil, nil }
func (f *fakeStore) Close() error                  { return nil }

func TestResolveNodeIDs(t *testing.T) {
	store := newFakeStore()
	store.nodes["lab-1"] = []*types.Node{{ID: "n1"}, {ID: "n2"}, {ID: "n3"}}

	r := &Runner{store: store}

	tests := []struct {
		name    string
		job     *types.Job
		want    []string
		wantErr bool
	}{
		{
			name: "deploy resolves every node in the lab",
			job:  &types.Job{LabID: "lab-1", Action: "deploy"},
			want: []string{"n1", "n2", "n3"},
		},
		{
			name: "destroy with host suffix still resolves every node",
			job:  &types.Job{LabID: "lab-1", Action: "destroy:host-a"},
			want: []string{"n1", "n2", "n3"},
		},
		{
			name: "start targets a single node",
			job:  &types.Job{LabID: "lab-1", Action: "start:n2"},
			want: []string{"n2"},
		},
		{
			name: "stop targets a single node",
			job:  &types.Job{LabID: "lab-1", Action: "stop:n1"},
			want: []string{"n1"},
		},
		{
			name: "enforcement batch parses the trailing id list",
			job:  &types.Job{LabID: "lab-1", Action: "sync:batch:2:n1,n3"},
			want: []string{"n1", "n3"},
		},
		{
			name: "reconciler batch parses the trailing id list",
			job:  &types.Job{LabID: "lab-1", Action: "reconcile:enforce:n2,n3"},
			want: []string{"n2", "n3"},
		},
		{
			name:    "malformed batch action errors",
			job:     &types.Job{LabID: "lab-1", Action: "sync:batch:2:"},
			wantErr: true,
		},
		{
			name:    "unrecognized action errors",
			job:     &types.Job{LabID: "lab-1", Action: "frobnicate"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.resolveNodeIDs(tt.job)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestFakeStoreActiveJobsHoldOneQueuedJob(t *testing.T) {
	store := newFakeStore()
	store.nodes["lab-1"] = []*types.Node{{ID: "n1"}}
	store.jobs["j1"] = &types.Job{ID: "j1", LabID: "lab-1", Action: "start:n1", Status: types.JobQueued}
	store.jobs["j2"] = &types.Job{ID: "j2", LabID: "lab-1", Action: "start:n1", Status: types.JobRunning}

	active, err := store.ListActiveJobs()
	require.NoError(t, err)
	assert.Len(t, active, 2)

	var queuedCount int
	for _, j := range active {
		if j.Status == types.JobQueued {
			queuedCount++
		}
	}
	assert.Equal(t, 1, queuedCount)
}
