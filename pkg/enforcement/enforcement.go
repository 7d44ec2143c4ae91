// Package enforcement runs the independent state-enforcement ticker:
// across stable labs, find nodes whose actual state has drifted from
// desired, apply the retry/backoff/cooldown pre-filters, and batch the
// survivors per lab into one job for the NLM to converge.
//
// Grounded on the ticker-loop idiom pkg/reconciler shares: poll on a
// fixed interval, take a lock, do one bounded pass, release.
package enforcement

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/fleetd/pkg/agentclient"
	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/clock"
	"github.com/cuemby/fleetd/pkg/coordination"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultInterval      = 15 * time.Second
	defaultMaxRetries    = 5
	defaultBaseBackoff   = 10 * time.Second
	defaultMaxCooldown   = 5 * time.Minute
	defaultCrashCooldown = 2 * time.Minute
	defaultCooldownTTL   = 30 * time.Second
)

// AgentResolver returns the client to reach a given host's agent.
type AgentResolver func(hostID string) (*agentclient.Client, error)

// Config tunes the enforcement ticker's retry policy.
type Config struct {
	Interval           time.Duration // state_enforcement_interval
	MaxRetries         int           // enforcement_attempts ceiling before giving up
	BaseBackoff        time.Duration // per-attempt exponential backoff base
	MaxCooldown        time.Duration // backoff ceiling
	CrashCooldown      time.Duration // wait after enforcement_failed_at before retrying at all
	CooldownTTL        time.Duration // per-lab per-node coordination-store cooldown after each fire
	AutoRestartOnError bool          // whether error-state nodes requesting running get restarted
}

// DefaultConfig returns reasonable defaults for the enforcement policy.
func DefaultConfig() Config {
	return Config{
		Interval:           defaultInterval,
		MaxRetries:         defaultMaxRetries,
		BaseBackoff:        defaultBaseBackoff,
		MaxCooldown:        defaultMaxCooldown,
		CrashCooldown:      defaultCrashCooldown,
		CooldownTTL:        defaultCooldownTTL,
		AutoRestartOnError: true,
	}
}

// Enforcer drives the periodic drift-correction pass.
type Enforcer struct {
	store   storage.Store
	clock   clock.Clock
	coord   *coordination.Store
	resolve AgentResolver
	broker  *broadcast.Broker
	cfg     Config
	logger  zerolog.Logger
	mu      sync.Mutex
	stopCh  chan struct{}
}

// New builds an Enforcer.
func New(store storage.Store, clk clock.Clock, coord *coordination.Store, resolve AgentResolver, broker *broadcast.Broker, cfg Config) *Enforcer {
	return &Enforcer{
		store:   store,
		clock:   clk,
		coord:   coord,
		resolve: resolve,
		broker:  broker,
		cfg:     cfg,
		logger:  log.WithComponent("enforcement"),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the ticker loop in its own goroutine.
func (e *Enforcer) Start() { go e.run() }

// Stop ends the loop.
func (e *Enforcer) Stop() { close(e.stopCh) }

func (e *Enforcer) run() {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.logger.Info().Dur("interval", e.cfg.Interval).Msg("state enforcement started")

	for {
		select {
		case <-ticker.C:
			e.runOnce(context.Background())
		case <-e.stopCh:
			e.logger.Info().Msg("state enforcement stopped")
			return
		}
	}
}

func (e *Enforcer) runOnce(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	eligible, err := e.collectEligible(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to collect enforcement candidates")
		return
	}
	for labID, nodes := range groupByLab(eligible) {
		e.enforceLab(ctx, labID, nodes)
	}
}

func (e *Enforcer) enforceLab(ctx context.Context, labID string, nodes []*types.NodeState) {
	jobs, err := e.store.ListJobsByLab(labID)
	if err == nil {
		for _, j := range jobs {
			if j.Status.Active() && (strings.HasPrefix(j.Action, "deploy") || strings.HasPrefix(j.Action, "destroy")) {
				return
			}
		}
	}

	needsExtract := false
	for _, s := range nodes {
		if s.ActualState == types.NodeActualError || s.ActualState == types.NodeActualExited {
			needsExtract = true
			break
		}
	}
	if needsExtract {
		e.bestEffortExtractConfigs(ctx, labID)
	}

	nodeIDs := make([]string, 0, len(nodes))
	for _, s := range nodes {
		s.EnforcementAttempts++
		s.LastEnforcementAt = e.clock.Now()
		s.EnforcementFailedAt = time.Time{}
		if err := e.store.UpsertNodeState(s); err != nil {
			e.logger.Error().Err(err).Str("node_id", s.NodeID).Msg("failed to record enforcement attempt")
			continue
		}
		if err := e.coord.SetEnforcementCooldown(ctx, labID, s.NodeID, e.cfg.CooldownTTL); err != nil {
			e.logger.Warn().Err(err).Str("node_id", s.NodeID).Msg("failed to set enforcement cooldown")
		}
		nodeIDs = append(nodeIDs, s.NodeID)
	}
	if len(nodeIDs) == 0 {
		return
	}

	job := &types.Job{
		ID:        uuid.New().String(),
		LabID:     labID,
		Action:    fmt.Sprintf("sync:batch:%d:%s", len(nodeIDs), strings.Join(nodeIDs, ",")),
		Status:    types.JobQueued,
		CreatedAt: e.clock.Now(),
	}
	if err := e.store.CreateJob(job); err != nil {
		e.logger.Error().Err(err).Str("lab_id", labID).Msg("failed to create enforcement batch job")
		return
	}
	e.logger.Info().Str("lab_id", labID).Int("node_count", len(nodeIDs)).Msg("enforcement batch job created")
	e.publish(broadcast.EventJobCreated, labID, job.ID, job.Action)
}

// bestEffortExtractConfigs snapshots running configs on every host involved
// in the lab before a replace, so an operator can recover the prior config
// of a node that's about to be torn down and redeployed.
func (e *Enforcer) bestEffortExtractConfigs(ctx context.Context, labID string) {
	placements, err := e.store.ListNodePlacementsByLab(labID)
	if err != nil {
		return
	}
	seen := make(map[string]bool, len(placements))
	for _, p := range placements {
		if p.HostID == "" || seen[p.HostID] {
			continue
		}
		seen[p.HostID] = true
		client, err := e.resolve(p.HostID)
		if err != nil {
			continue
		}
		if _, err := client.ExtractConfigs(ctx, labID); err != nil {
			e.logger.Debug().Err(err).Str("lab_id", labID).Str("host_id", p.HostID).Msg("pre-restart config extraction failed")
		}
	}
}

func (e *Enforcer) publish(evt broadcast.EventType, labID, entityID, msg string) {
	if e.broker == nil {
		return
	}
	e.broker.Publish(&broadcast.Event{Type: evt, LabID: labID, EntityID: entityID, Message: msg})
}

func groupByLab(states []*types.NodeState) map[string][]*types.NodeState {
	out := make(map[string][]*types.NodeState)
	for _, s := range states {
		out[s.LabID] = append(out[s.LabID], s)
	}
	return out
}

func backoffDelay(base, max time.Duration, attempts int) time.Duration {
	d := time.Duration(float64(base) * math.Pow(2, float64(attempts-1)))
	if d > max {
		return max
	}
	return d
}
