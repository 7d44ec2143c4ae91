/*
Package metrics provides Prometheus metrics collection and exposition for
fleetd.

The metrics package defines and registers all of fleetd's metrics using the
Prometheus client library, providing observability into cluster health
(hosts, labs), convergence behavior (the NLM, enforcement, job health),
and the Raft control plane. Metrics are exposed via an HTTP endpoint for
scraping by Prometheus servers.

# Metrics Catalog

Cluster Metrics:

fleetd_hosts_total{status}:
  - Type: Gauge
  - Description: Total hosts by liveness status (online/offline)

fleetd_labs_total{state}:
  - Type: Gauge
  - Description: Total labs by rollup state (running/stopped/error/...)

fleetd_nodes_total{actual_state}:
  - Type: Gauge
  - Description: Total lab nodes by last-observed actual state

fleetd_links_total{actual_state}:
  - Type: Gauge
  - Description: Total lab links by last-computed actual state

fleetd_vxlan_tunnels_total:
  - Type: Gauge
  - Description: Total cross-host VXLAN tunnels currently established

Raft Metrics (pkg/control):

fleetd_raft_is_leader, fleetd_raft_peers_total, fleetd_raft_log_index,
fleetd_raft_applied_index, fleetd_raft_apply_duration_seconds,
fleetd_raft_commit_duration_seconds — unchanged in shape from the
teacher's equivalents, since the control plane is still a Raft FSM.

Management API Metrics (pkg/control/api):

fleetd_api_requests_total{method, status}, fleetd_api_request_duration_seconds{method}

NLM / Convergence Metrics (pkg/nlm):

fleetd_convergence_duration_seconds{category}: time for one Phase 7
category (deploy/start/stop) to execute across a job's nodes.
fleetd_nodes_converged_total, fleetd_nodes_converge_failed_total:
per-node convergence outcome counters.
fleetd_node_deploy_duration_seconds, fleetd_node_start_duration_seconds,
fleetd_node_stop_duration_seconds: per-operation agent call latency.

Lab Lifecycle Metrics:

fleetd_lab_create_duration_seconds, fleetd_lab_delete_duration_seconds

Job Metrics:

fleetd_jobs_total{action, status}, fleetd_job_duration_seconds{action},
fleetd_jobs_retried_total{action, reason}: the last tracks job-health's
stuck-job retry path, not a user retry.

Reconciler / Enforcement Metrics:

fleetd_reconciliation_duration_seconds, fleetd_reconciliation_cycles_total
(pkg/reconciler), fleetd_enforcement_cycles_total,
fleetd_enforcement_actions_total (pkg/enforcement).

Image Sync Metrics (pkg/imagesync):

fleetd_image_sync_duration_seconds, fleetd_image_sync_failures_total

Link Orchestration Metrics (pkg/linkorch):

fleetd_link_ops_duration_seconds

# Usage

	import "github.com/cuemby/fleetd/pkg/metrics"

	metrics.HostsTotal.WithLabelValues("online").Set(5)
	metrics.JobsTotal.WithLabelValues("deploy", "completed").Inc()

	timer := metrics.NewTimer()
	// ... perform a convergence phase ...
	timer.ObserveDurationVec(metrics.ConvergenceDuration, "deploy")

	http.Handle("/metrics", metrics.Handler())

# Design Patterns

All metrics are registered in init(), as package-level variables — no
runtime registration, no dependency injection needed by callers. Label
cardinality stays low: status/state enums and job actions only, never
unbounded identifiers like lab or node IDs.

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
