/*
Package runtime provides containerd integration for fleetd's node container lifecycle management.

The runtime package wraps containerd's client API to provide container operations
including image pulling, container creation with resource limits, lifecycle management,
and status monitoring. It handles the complexity of OCI spec generation, snapshot
management, and containerd namespace isolation.

# Architecture

fleetd uses containerd as its container runtime, providing CRI-compatible container
operations with efficient resource management:

	┌─────────────────── CONTAINERD RUNTIME ────────────────────┐
	│                                                             │
	│  ┌──────────────────────────────────────────────┐         │
	│  │        ContainerdRuntime Client               │         │
	│  │  - Socket: /run/containerd/containerd.sock   │         │
	│  │  - Namespace: fleetd                          │         │
	│  └──────────────────┬───────────────────────────┘         │
	│                     │                                       │
	│  ┌──────────────────▼───────────────────────────┐         │
	│  │           Image Operations                    │         │
	│  │  - Pull images from registries                │         │
	│  │  - Unpack for snapshot creation                │         │
	│  │  - Verify and cache locally                   │         │
	│  └──────────────────┬───────────────────────────┘         │
	│                     │                                       │
	│  ┌──────────────────▼───────────────────────────┐         │
	│  │        Container Lifecycle                    │         │
	│  │  - Create: Generate OCI spec                  │         │
	│  │  - Start: Launch container process            │         │
	│  │  - Stop: Graceful shutdown (SIGTERM→SIGKILL) │         │
	│  │  - Delete: Cleanup container and snapshot     │         │
	│  └──────────────────┬───────────────────────────┘         │
	│                     │                                       │
	│  ┌──────────────────▼───────────────────────────┐         │
	│  │         Resource Management                   │         │
	│  │  - CPU: Shares (1024 = 1 core) + CFS quota   │         │
	│  │  - Memory: Hard limits in bytes               │         │
	│  │  - Applied via OCI spec modifications         │         │
	│  └──────────────────┬───────────────────────────┘         │
	│                     │                                       │
	│  ┌──────────────────▼───────────────────────────┐         │
	│  │           Mount Management                    │         │
	│  │  - None added: no secret, volume or           │         │
	│  │    resolv.conf mounts beyond what the         │         │
	│  │    image config itself declares               │         │
	│  └────────────────────────────────────────────────┘        │
	│                                                             │
	│  ┌──────────────────────────────────────────────┐         │
	│  │             Containerd Daemon                 │         │
	│  │  - Namespaces: Isolate fleetd containers      │         │
	│  │  - Snapshotter: overlayfs for layers          │         │
	│  │  - Runtime: runc (io.containerd.runc.v2)      │         │
	│  └────────────────────────────────────────────────┘        │
	└─────────────────────────────────────────────────────────┘

# Core Components

ContainerdRuntime:
  - Main client wrapper for containerd operations
  - Manages socket connection and namespace isolation
  - Provides high-level container lifecycle methods
  - Thread-safe for concurrent operations

Socket Path:
  - Default: /run/containerd/containerd.sock (Linux)
  - macOS Lima: /run/containerd/containerd.sock
  - Configurable via NewContainerdRuntime parameter
  - No reconnect logic of its own; Close releases the connection

Resource Limits:
  - CPU: Node.CPUCores → CPU shares (1024 per core) + CFS quota
  - Memory: Node.MemoryMB → memory limit of MemoryMB * 1024 * 1024 bytes
  - Applied during container creation via OCI spec, only when the value is > 0
  - Enforced by Linux cgroups (via containerd/runc)

# Container Lifecycle

Create Node (CreateNode):
  1. Look up the image locally (it is not pulled here; call PullImage first)
  2. Generate the OCI runtime spec from the image config, hostname = ContainerName
  3. Apply resource limits (CPU/memory) when set on the Node
  4. Create the container with a new snapshot
  5. Return the container ID

Start Container:
  1. Load container by ID
  2. Create containerd task (running instance)
  3. Start task (execute entry point)
  4. Monitor for startup errors
  5. Return immediately (async)

Stop Container:
  1. Load container and get task
  2. Send SIGTERM for graceful shutdown
  3. Wait for exit with timeout (configurable)
  4. Send SIGKILL if timeout exceeded
  5. Delete task to free resources

Delete Container:
  1. Stop container if running
  2. Delete container object
  3. Cleanup snapshot layers
  4. Remove from containerd namespace

# Usage

Creating a Runtime Client:

	runtime, err := runtime.NewContainerdRuntime("")
	if err != nil {
		log.Fatal(err)
	}
	defer runtime.Close()

	// Custom socket path
	runtime, err := runtime.NewContainerdRuntime("/custom/containerd.sock")

Pulling an Image:

	ctx := context.Background()
	err := runtime.PullImage(ctx, "nginx:latest")
	if err != nil {
		log.Fatal(err)
	}

Creating and Starting a Node's Container:

	node := &types.Node{
		ID:            "node-abc123",
		ContainerName: "lab1-r1",
		Image:         "nginx:latest",
		CPUCores:      1.0, // 1 CPU core
		MemoryMB:      512, // 512MB
	}

	// Create container
	containerID, err := runtime.CreateNode(ctx, node)
	if err != nil {
		log.Fatal(err)
	}

	// Start container
	err = runtime.StartContainer(ctx, containerID)
	if err != nil {
		log.Fatal(err)
	}

Mounts:

CreateNode adds no mounts of its own; this package has no secret, volume
or resolv.conf mount support.

Stopping a Container:

	// Graceful shutdown with 30s timeout
	err := runtime.StopContainer(ctx, containerID, 30*time.Second)
	if err != nil {
		log.Fatal(err)
	}

Checking Container Status:

	state, err := runtime.GetNodeActualState(ctx, containerID)
	if err != nil {
		log.Fatal(err)
	}

	switch state {
	case types.NodeActualRunning:
		fmt.Println("Container is running")
	case types.NodeActualExited:
		fmt.Println("Container exited with a non-zero status")
	}

Getting Container IP Address:

	ip, err := runtime.GetContainerIP(ctx, containerID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Container IP: %s\n", ip)

# Integration Points

This package integrates with:

  - pkg/types: Node and NodeActualState definitions
  - cmd/fleet-agentd: creates, starts, stops and deletes node containers
  - containerd: Low-level container runtime operations

# Resource Limits Implementation

CPU Limits:
  - CPUCores=1.0 → 1024 CPU shares (relative weight)
  - CPUCores=1.0 → CFS quota=100000µs per 100000µs period (100% of 1 core)
  - CPUCores=0.5 → 512 shares + 50000µs quota (50% of 1 core)
  - Enforced by Linux CFS scheduler via cgroups

Memory Limits:
  - Mapping: MemoryMB * 1024 * 1024 bytes → cgroup memory limit
  - Hard limit: OOM killer terminates if exceeded
  - No swap by default (cgroup memory.memsw.limit_in_bytes = memory.limit_in_bytes)
  - Recommendation: Set limits 10-20% below node capacity for system overhead

# Design Patterns

Namespace Isolation:
  - All fleetd containers run in the "fleetd" namespace
  - Prevents conflicts with other containerd users
  - Context automatically wrapped: namespaces.WithNamespace(ctx, "fleetd")
  - Cleanup operations scoped to namespace

Socket Management:
  - Single long-lived gRPC connection per client
  - No reconnect logic of its own on socket errors
  - Thread-safe for concurrent operations
  - Close() releases connection resources

Error Handling:
  - Wrapped errors with context: fmt.Errorf("operation failed: %w", err)
  - Graceful degradation: Ignore cleanup errors during rollback
  - Container not found returns nil (idempotent delete)
  - Task not running returns nil for stop (idempotent stop)

# Performance Characteristics

Image Pull:
  - First pull: 10-60s (depends on image size and network)
  - Subsequent pulls: < 1s (cached layers)
  - Parallel pulls: Supported (containerd handles deduplication)

Container Create:
  - Typical: 100-500ms (snapshot creation + spec generation)
  - Large images: 1-2s (more layers to prepare)
  - Parallel creates: Supported (independent snapshots)

Container Start:
  - Typical: 50-200ms (process spawn + namespace setup)
  - Heavy init: 1-5s (application-dependent)
  - Concurrent starts: Limited by system resources (forks, PIDs)

Container Stop:
  - Graceful: 1-10s (depends on application signal handling)
  - Force kill: < 500ms (SIGKILL immediate)
  - Timeout configurable per stop operation

Memory Usage:
  - Client overhead: ~5MB per ContainerdRuntime instance
  - Per container: ~1-2MB metadata (containerd tracking)
  - Container memory: Defined by Node.MemoryMB

# Troubleshooting

Common Issues:

Cannot Connect to Containerd:
  - Symptom: "failed to connect to containerd" error
  - Check: Socket path exists and has correct permissions
  - Check: Containerd daemon is running (systemctl status containerd)
  - Solution: Verify socket path or restart containerd

Container Fails to Start:
  - Symptom: CreateNode succeeds but StartContainer fails
  - Check: Image exists and is unpacked (PullImage first)
  - Check: OCI spec is valid (resource limits)
  - Check: Container logs (via containerd-shim logs)
  - Solution: Review the node definition for invalid configuration

Resource Limit Enforcement:
  - Symptom: Container uses more resources than specified
  - Check: Cgroups v2 vs v1 (different APIs)
  - Check: CPU shares vs quota (shares are relative, quota is absolute)
  - Check: Memory limit includes page cache
  - Solution: Use absolute limits (CPU quota) for predictable behavior

Container IP Not Found:
  - Symptom: GetContainerIP returns "no IP address found"
  - Check: Container has network namespace (not host mode)
  - Check: Container eth0 interface exists
  - Check: CNI plugin configured correctly
  - Solution: Ensure container networking is initialized

# Monitoring

This package exports no metrics of its own.

# Security

Namespace Isolation:
  - All fleetd containers isolated in the "fleetd" namespace
  - Prevents accidental operations on system containers
  - Cleanup scoped to namespace only

Socket Permissions:
  - Containerd socket typically requires root or containerd group
  - fleet-agentd must run with appropriate permissions
  - Socket access controls who can create/manage containers

Image Verification:
  - No built-in signature verification
  - Recommendation: Use private registries with access controls
  - Consider: containerd image encryption for sensitive workloads

Resource Limits as Security:
  - CPU limits prevent denial-of-service (CPU exhaustion)
  - Memory limits prevent OOM on node
  - Enforced by kernel cgroups (not bypassable from container)

# See Also

  - cmd/fleet-agentd for the agent that drives this runtime
  - pkg/types for Node and NodeActualState definitions
  - containerd documentation: https://containerd.io/
  - OCI runtime spec: https://github.com/opencontainers/runtime-spec
*/
package runtime
