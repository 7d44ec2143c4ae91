// Package jobhealth runs the periodic supervisor sweeps that keep the job
// table and its satellite records (image syncs, agent locks, transitional
// node states, agent-update jobs) from getting stuck behind a dead agent or
// a crashed manager. Built on the same ticker-loop idiom as pkg/reconciler;
// the sweep set itself is new, since fleetd's job model carries a
// retry/supersede chain that a plain replica-count scheduler never needed.
package jobhealth

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/fleetd/pkg/agentclient"
	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/clock"
	"github.com/cuemby/fleetd/pkg/coordination"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/rs/zerolog"
)

// AgentResolver returns the client to reach a given host's agent.
type AgentResolver func(hostID string) (*agentclient.Client, error)

// Runner submits a job for execution by the worker pool, used when
// job-health creates a retry job and wants it picked up immediately rather
// than waiting for the next poll.
type Runner func(job string)

// Config tunes every sweep's timeouts and thresholds.
type Config struct {
	Interval time.Duration // job_health_check_interval

	MaxRetries int // job_max_retries

	ActionTimeout      time.Duration // default per-action stuck-job timeout
	OrphanQueueTimeout time.Duration // queued with no agent assignment

	ImageSyncPendingTimeout time.Duration // image_sync_job_pending_timeout
	ImageSyncTimeout        time.Duration // image_sync_timeout

	AgentLockStuckAge time.Duration // get_lock_status age threshold

	TransitionalStuckAge time.Duration // stale_starting_threshold / stale_pending_threshold

	AgentUpdateTimeout time.Duration
}

// DefaultConfig returns the suggested sweep cadence and thresholds.
func DefaultConfig() Config {
	return Config{
		Interval:                30 * time.Second,
		MaxRetries:              3,
		ActionTimeout:           5 * time.Minute,
		OrphanQueueTimeout:      2 * time.Minute,
		ImageSyncPendingTimeout: 1 * time.Minute,
		ImageSyncTimeout:        10 * time.Minute,
		AgentLockStuckAge:       10 * time.Minute,
		TransitionalStuckAge:    6 * time.Minute,
		AgentUpdateTimeout:      10 * time.Minute,
	}
}

// Monitor drives all periodic supervisor sweeps.
type Monitor struct {
	store   storage.Store
	clock   clock.Clock
	coord   *coordination.Store
	resolve AgentResolver
	broker  *broadcast.Broker
	runner  Runner
	cfg     Config
	logger  zerolog.Logger
	mu      sync.Mutex
	stopCh  chan struct{}
}

// New builds a Monitor.
func New(store storage.Store, clk clock.Clock, coord *coordination.Store, resolve AgentResolver, broker *broadcast.Broker, runner Runner, cfg Config) *Monitor {
	return &Monitor{
		store:   store,
		clock:   clk,
		coord:   coord,
		resolve: resolve,
		broker:  broker,
		runner:  runner,
		cfg:     cfg,
		logger:  log.WithComponent("jobhealth"),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the sweep loop in its own goroutine.
func (m *Monitor) Start() { go m.run() }

// Stop ends the loop.
func (m *Monitor) Stop() { close(m.stopCh) }

func (m *Monitor) run() {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.cfg.Interval).Msg("job health monitor started")

	for {
		select {
		case <-ticker.C:
			m.runOnce(context.Background())
		case <-m.stopCh:
			m.logger.Info().Msg("job health monitor stopped")
			return
		}
	}
}

// runOnce executes every sweep in sequence. Each sweep is independent and
// best-effort: a failure in one does not block the others.
func (m *Monitor) runOnce(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepStuckActiveJobs(ctx)
	m.sweepOrphanedQueuedJobs(ctx)
	m.sweepJobsOnOfflineAgents(ctx)
	m.sweepStuckImageSyncJobs(ctx)
	m.sweepStuckAgentLocks(ctx)
	m.sweepStuckTransitionalNodes(ctx)
	m.sweepOrphanedImageSyncMarkers(ctx)
	m.sweepStuckAgentUpdateJobs(ctx)
}

func (m *Monitor) publish(evt broadcast.EventType, labID, entityID, msg string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&broadcast.Event{Type: evt, LabID: labID, EntityID: entityID, Message: msg})
}

func (m *Monitor) submit(action string) {
	if m.runner == nil {
		return
	}
	m.runner(action)
}
