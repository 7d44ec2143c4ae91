// Package api implements fleetd's management-plane surface: the fleet.v1.FleetAPI
// gRPC service (lab CRUD, job status/cancel, host registration/heartbeat, event
// streaming) plus the /health, /ready, and /metrics HTTP endpoints served
// alongside it.
//
// Server wraps a pkg/control.Cluster for reads and Raft-backed writes, and a
// pkg/jobrunner.Runner to dispatch the jobs lab/node operations enqueue. It is
// deliberately thin: all cluster-state logic lives in pkg/control, all job
// execution in pkg/jobrunner and pkg/nlm — this package only translates gRPC
// requests into calls against those and gRPC responses back out.
package api
