package main

import (
	"fmt"
	"sync"

	"github.com/cuemby/fleetd/pkg/topology"
	"github.com/cuemby/fleetd/pkg/types"
)

// nodeRegistry tracks the nodes this agent has deployed, per lab. The
// manager's DestroyLab/ContainerAction calls carry only a lab ID (no
// topology), so the agent needs its own memory of what it created in order
// to tear it back down. containerd itself has no notion of "lab" — this is
// the one piece of state fleet-agentd keeps outside containerd.
type nodeRegistry struct {
	mu   sync.Mutex
	labs map[string]map[string]*types.Node // labID -> containerName -> node
}

func newNodeRegistry() *nodeRegistry {
	return &nodeRegistry{labs: make(map[string]map[string]*types.Node)}
}

func (r *nodeRegistry) put(labID string, node *types.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nodes, ok := r.labs[labID]
	if !ok {
		nodes = make(map[string]*types.Node)
		r.labs[labID] = nodes
	}
	nodes[node.ContainerName] = node
}

func (r *nodeRegistry) putTopology(dt *topology.DeployTopology) {
	for _, n := range dt.Nodes {
		r.put(dt.LabID, n)
	}
}

func (r *nodeRegistry) get(labID, containerName string) (*types.Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nodes, ok := r.labs[labID]
	if !ok {
		return nil, false
	}
	n, ok := nodes[containerName]
	return n, ok
}

func (r *nodeRegistry) list(labID string) []*types.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	nodes := r.labs[labID]
	out := make([]*types.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	return out
}

func (r *nodeRegistry) remove(labID string) []*types.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	nodes := r.labs[labID]
	delete(r.labs, labID)
	out := make([]*types.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	return out
}

func (r *nodeRegistry) removeNode(labID, containerName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if nodes, ok := r.labs[labID]; ok {
		delete(nodes, containerName)
	}
}

func containerID(labID, containerName string) string {
	return fmt.Sprintf("%s-%s", labID, containerName)
}
