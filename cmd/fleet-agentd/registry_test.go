package main

import (
	"testing"

	"github.com/cuemby/fleetd/pkg/topology"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeRegistryPutGetRemove(t *testing.T) {
	reg := newNodeRegistry()
	node := &types.Node{ID: "n1", ContainerName: "r1", Image: "frr:latest"}

	reg.put("lab-1", node)

	got, ok := reg.get("lab-1", "r1")
	require.True(t, ok)
	assert.Equal(t, "n1", got.ID)

	list := reg.list("lab-1")
	assert.Len(t, list, 1)

	removed := reg.remove("lab-1")
	assert.Len(t, removed, 1)

	_, ok = reg.get("lab-1", "r1")
	assert.False(t, ok)
	assert.Empty(t, reg.list("lab-1"))
}

func TestNodeRegistryPutTopology(t *testing.T) {
	reg := newNodeRegistry()
	dt := &topology.DeployTopology{
		LabID: "lab-2",
		Nodes: []*types.Node{
			{ID: "a", ContainerName: "ra"},
			{ID: "b", ContainerName: "rb"},
		},
	}

	reg.putTopology(dt)

	assert.Len(t, reg.list("lab-2"), 2)
	got, ok := reg.get("lab-2", "ra")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)
}

func TestNodeRegistryRemoveNode(t *testing.T) {
	reg := newNodeRegistry()
	reg.put("lab-3", &types.Node{ID: "n1", ContainerName: "r1"})
	reg.put("lab-3", &types.Node{ID: "n2", ContainerName: "r2"})

	reg.removeNode("lab-3", "r1")

	_, ok := reg.get("lab-3", "r1")
	assert.False(t, ok)
	assert.Len(t, reg.list("lab-3"), 1)
}

func TestContainerID(t *testing.T) {
	assert.Equal(t, "lab-1-r1", containerID("lab-1", "r1"))
}
