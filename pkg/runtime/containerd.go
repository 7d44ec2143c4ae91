package runtime

import (
	"context"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	"github.com/cuemby/fleetd/pkg/types"
)

const (
	// DefaultNamespace is the containerd namespace fleetd's agent uses.
	DefaultNamespace = "fleetd"

	// DefaultSocketPath is the default containerd socket
	DefaultSocketPath = "/run/containerd/containerd.sock"
)

// ContainerdRuntime implements one lab node as a containerd container.
type ContainerdRuntime struct {
	client    *containerd.Client
	namespace string
}

// NewContainerdRuntime creates a new containerd runtime client
func NewContainerdRuntime(socketPath string) (*ContainerdRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	return &ContainerdRuntime{
		client:    client,
		namespace: DefaultNamespace,
	}, nil
}

// Close closes the containerd client connection
func (r *ContainerdRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// PullImage pulls a container image from a registry
func (r *ContainerdRuntime) PullImage(ctx context.Context, imageRef string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	_, err := r.client.Pull(ctx, imageRef, containerd.WithPullUnpack)
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageRef, err)
	}

	return nil
}

// CreateNode creates (but doesn't start) the container backing node, sized
// by its MemoryMB/CPUCores budget.
func (r *ContainerdRuntime) CreateNode(ctx context.Context, node *types.Node) (string, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	image, err := r.client.GetImage(ctx, node.Image)
	if err != nil {
		return "", fmt.Errorf("failed to get image %s: %w", node.Image, err)
	}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithHostname(node.ContainerName),
	}

	if node.CPUCores > 0 {
		// CPU shares: relative weight (1024 = 1 core).
		// CPU quota: period=100000 (100ms), quota=CPUCores*100000.
		shares := uint64(node.CPUCores * 1024)
		quota := int64(node.CPUCores * 100000)
		period := uint64(100000)

		opts = append(opts, oci.WithCPUShares(shares))
		opts = append(opts, oci.WithCPUCFS(quota, period))
	}
	if node.MemoryMB > 0 {
		opts = append(opts, oci.WithMemoryLimit(uint64(node.MemoryMB)*1024*1024))
	}

	ctrdContainer, err := r.client.NewContainer(
		ctx,
		node.ContainerName,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(node.ContainerName+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	return ctrdContainer.ID(), nil
}

// StartContainer creates and starts a task for an existing container
func (r *ContainerdRuntime) StartContainer(ctx context.Context, containerID string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return fmt.Errorf("failed to load container %s: %w", containerID, err)
	}

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task: %w", err)
	}

	return nil
}

// StopContainer stops a running container
func (r *ContainerdRuntime) StopContainer(ctx context.Context, containerID string, timeout time.Duration) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return fmt.Errorf("failed to load container %s: %w", containerID, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		// Task might not exist (container not running)
		return nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to kill task: %w", err)
	}

	statusC, err := task.Wait(stopCtx)
	if err != nil {
		return fmt.Errorf("failed to wait for task: %w", err)
	}

	select {
	case <-statusC:
		// Task exited
	case <-stopCtx.Done():
		if err := task.Kill(ctx, syscall.SIGKILL); err != nil {
			return fmt.Errorf("failed to force kill task: %w", err)
		}
	}

	if _, err := task.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return nil
}

// DeleteContainer removes a container and its snapshot
func (r *ContainerdRuntime) DeleteContainer(ctx context.Context, containerID string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		// Container might not exist
		return nil
	}

	if err := r.StopContainer(ctx, containerID, 10*time.Second); err != nil {
		fmt.Printf("Warning: failed to stop container before delete: %v\n", err)
	}

	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("failed to delete container: %w", err)
	}

	return nil
}

// GetNodeActualState maps containerd's task status onto a NodeActualState.
func (r *ContainerdRuntime) GetNodeActualState(ctx context.Context, containerID string) (types.NodeActualState, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return types.NodeActualUndeployed, nil
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		// Container exists but has no task: created, not started.
		return types.NodeActualPending, nil
	}

	status, err := task.Status(ctx)
	if err != nil {
		return types.NodeActualError, fmt.Errorf("failed to get task status: %w", err)
	}

	switch status.Status {
	case containerd.Running:
		return types.NodeActualRunning, nil
	case containerd.Stopped:
		if status.ExitStatus == 0 {
			return types.NodeActualStopped, nil
		}
		return types.NodeActualExited, nil
	case containerd.Paused:
		return types.NodeActualRunning, nil
	default:
		return types.NodeActualPending, nil
	}
}

// GetContainerLogs checks that the container has a task and then returns an
// error: log streaming is not implemented, so no reader is ever returned.
func (r *ContainerdRuntime) GetContainerLogs(ctx context.Context, containerID string) (io.ReadCloser, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load container %s: %w", containerID, err)
	}
	if _, err := container.Task(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return nil, fmt.Errorf("logs not yet implemented")
}

// IsRunning checks if a container is currently running
func (r *ContainerdRuntime) IsRunning(ctx context.Context, containerID string) bool {
	state, err := r.GetNodeActualState(ctx, containerID)
	if err != nil {
		return false
	}
	return state == types.NodeActualRunning
}

// ListContainers returns every container ID in fleetd's namespace
func (r *ContainerdRuntime) ListContainers(ctx context.Context) ([]string, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	containers, err := r.client.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	ids := make([]string, 0, len(containers))
	for _, c := range containers {
		ids = append(ids, c.ID())
	}

	return ids, nil
}

// GetContainerIP returns the IP address of a container
func (r *ContainerdRuntime) GetContainerIP(ctx context.Context, containerID string) (string, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("failed to load container %s: %w", containerID, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get task: %w", err)
	}

	status, err := task.Status(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get task status: %w", err)
	}
	if status.Status != containerd.Running {
		return "", fmt.Errorf("container is not running")
	}

	pid := task.Pid()
	if pid == 0 {
		return "", fmt.Errorf("container task has no PID")
	}

	// Use nsenter to read the eth0 address out of the container's netns.
	cmd := exec.CommandContext(ctx, "nsenter", "-t", fmt.Sprintf("%d", pid), "-n", "ip", "-4", "addr", "show", "eth0")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to get container IP: %w (output: %s)", err, string(output))
	}

	lines := strings.Split(string(output), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "inet ") {
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				ipWithCIDR := parts[1]
				ip, _, err := net.ParseCIDR(ipWithCIDR)
				if err != nil {
					return "", fmt.Errorf("failed to parse IP address %s: %w", ipWithCIDR, err)
				}
				return ip.String(), nil
			}
		}
	}

	return "", fmt.Errorf("no IP address found for container")
}
