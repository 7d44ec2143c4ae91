package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	HostsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetd_hosts_total",
			Help: "Total number of registered hosts by status",
		},
		[]string{"status"},
	)

	LabsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetd_labs_total",
			Help: "Total number of labs by state",
		},
		[]string{"state"},
	)

	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetd_nodes_total",
			Help: "Total number of lab nodes by actual state",
		},
		[]string{"actual_state"},
	)

	LinksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetd_links_total",
			Help: "Total number of lab links by actual state",
		},
		[]string{"actual_state"},
	)

	VxlanTunnelsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetd_vxlan_tunnels_total",
			Help: "Total number of cross-host VXLAN tunnels currently established",
		},
	)

	// Raft metrics (pkg/control)
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetd_raft_is_leader",
			Help: "Whether this manager is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetd_raft_peers_total",
			Help: "Total number of Raft peers in the manager cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetd_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetd_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetd_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RaftCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetd_raft_commit_duration_seconds",
			Help:    "Time taken to commit a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Management-plane API metrics (pkg/control/api)
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetd_api_requests_total",
			Help: "Total number of management API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetd_api_request_duration_seconds",
			Help:    "Management API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// NLM / convergence metrics
	ConvergenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetd_convergence_duration_seconds",
			Help:    "Time taken for one NLM job run to converge its node set",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	NodesConvergedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetd_nodes_converged_total",
			Help: "Total number of nodes successfully converged to their desired state",
		},
	)

	NodesConvergeFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetd_nodes_converge_failed_total",
			Help: "Total number of nodes that failed to converge",
		},
	)

	NodeDeployDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetd_node_deploy_duration_seconds",
			Help:    "Time taken to deploy a node to its target host in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NodeStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetd_node_start_duration_seconds",
			Help:    "Time taken to start a node in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NodeStopDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetd_node_stop_duration_seconds",
			Help:    "Time taken to stop a node in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Lab lifecycle metrics
	LabCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetd_lab_create_duration_seconds",
			Help:    "Time taken to create a lab in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	LabDeleteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetd_lab_delete_duration_seconds",
			Help:    "Time taken to delete a lab in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Job metrics
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetd_jobs_total",
			Help: "Total number of jobs completed by action and terminal status",
		},
		[]string{"action", "status"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetd_job_duration_seconds",
			Help:    "Job duration in seconds by action",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"action"},
	)

	JobsRetriedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetd_jobs_retried_total",
			Help: "Total number of jobs retried by the job health monitor, by action and reason",
		},
		[]string{"action", "reason"},
	)

	// Reconciler / enforcement metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetd_reconciliation_duration_seconds",
			Help:    "Time taken for a reconciliation cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetd_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles completed",
		},
	)

	EnforcementCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetd_enforcement_cycles_total",
			Help: "Total number of state enforcement ticks completed",
		},
	)

	EnforcementActionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetd_enforcement_actions_total",
			Help: "Total number of node sync jobs created by the enforcement loop",
		},
	)

	// Image sync metrics
	ImageSyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetd_image_sync_duration_seconds",
			Help:    "Time taken to confirm or sync an image onto a host in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ImageSyncFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetd_image_sync_failures_total",
			Help: "Total number of image sync attempts that timed out or failed",
		},
	)

	// Link orchestration metrics (pkg/linkorch)
	LinkOpsDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetd_link_ops_duration_seconds",
			Help:    "Time taken to create or tear down a link's tunnels/veths in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(HostsTotal)
	prometheus.MustRegister(LabsTotal)
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(LinksTotal)
	prometheus.MustRegister(VxlanTunnelsTotal)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(RaftApplyDuration)
	prometheus.MustRegister(RaftCommitDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)

	prometheus.MustRegister(ConvergenceDuration)
	prometheus.MustRegister(NodesConvergedTotal)
	prometheus.MustRegister(NodesConvergeFailedTotal)
	prometheus.MustRegister(NodeDeployDuration)
	prometheus.MustRegister(NodeStartDuration)
	prometheus.MustRegister(NodeStopDuration)

	prometheus.MustRegister(LabCreateDuration)
	prometheus.MustRegister(LabDeleteDuration)

	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(JobsRetriedTotal)

	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(EnforcementCyclesTotal)
	prometheus.MustRegister(EnforcementActionsTotal)

	prometheus.MustRegister(ImageSyncDuration)
	prometheus.MustRegister(ImageSyncFailuresTotal)

	prometheus.MustRegister(LinkOpsDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
