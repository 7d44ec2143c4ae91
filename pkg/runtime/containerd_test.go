package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/fleetd/pkg/types"
	"github.com/google/uuid"
)

// newTestRuntime connects to the default containerd socket, skipping the
// test entirely when containerd isn't available on the host running it —
// the same gate the teacher uses for runtime integration coverage, since
// there is no in-process fake for the containerd gRPC API in the pack.
func newTestRuntime(t *testing.T) *ContainerdRuntime {
	t.Helper()
	rt, err := NewContainerdRuntime("")
	if err != nil {
		t.Skipf("containerd not available: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestContainerdNodeLifecycle(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	node := &types.Node{
		ID:            uuid.New().String(),
		ContainerName: "fleetd-test-" + uuid.New().String()[:8],
		Image:         "docker.io/library/alpine:latest",
		CPUCores:      1,
		MemoryMB:      128,
	}

	t.Log("pulling image")
	if err := rt.PullImage(ctx, node.Image); err != nil {
		t.Fatalf("pull image: %v", err)
	}

	t.Log("creating node")
	containerID, err := rt.CreateNode(ctx, node)
	if err != nil {
		t.Fatalf("create node: %v", err)
	}
	defer func() {
		if err := rt.DeleteContainer(ctx, containerID); err != nil {
			t.Logf("cleanup: delete container failed: %v", err)
		}
	}()

	state, err := rt.GetNodeActualState(ctx, containerID)
	if err != nil {
		t.Fatalf("get node state before start: %v", err)
	}
	if state != types.NodeActualPending {
		t.Errorf("expected pending state before start, got %s", state)
	}

	t.Log("starting container")
	if err := rt.StartContainer(ctx, containerID); err != nil {
		t.Fatalf("start container: %v", err)
	}
	time.Sleep(2 * time.Second)

	if !rt.IsRunning(ctx, containerID) {
		t.Error("expected container to be running after start")
	}

	t.Log("stopping container")
	if err := rt.StopContainer(ctx, containerID, 10*time.Second); err != nil {
		t.Fatalf("stop container: %v", err)
	}
	if rt.IsRunning(ctx, containerID) {
		t.Error("expected container to be stopped")
	}
}

func TestContainerdListContainers(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	containers, err := rt.ListContainers(ctx)
	if err != nil {
		t.Fatalf("list containers: %v", err)
	}
	t.Logf("found %d containers in the fleetd namespace", len(containers))
}

func TestContainerdGetNodeActualStateForUnknownContainerIsUndeployed(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	state, err := rt.GetNodeActualState(ctx, "no-such-container-"+uuid.New().String())
	if err != nil {
		t.Fatalf("get node state: %v", err)
	}
	if state != types.NodeActualUndeployed {
		t.Errorf("expected undeployed state for unknown container, got %s", state)
	}
}

func TestContainerdDeleteContainerOnUnknownIDIsNoop(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	if err := rt.DeleteContainer(ctx, "no-such-container-"+uuid.New().String()); err != nil {
		t.Errorf("expected nil error deleting a nonexistent container, got %v", err)
	}
}
