// Package reconciler runs the periodic per-lab reconciliation loop: pull
// each selected lab's actual state from its hosts, merge it into
// NodeState/LinkState/NodePlacement, recompute the lab's rollup state,
// auto-connect links whose endpoints just became ready, and hand off any
// remaining drift to an enforcement job for the NLM to pick up. Built on
// a ticker-loop/mutex-guarded single-pass shape, expanded from "node
// heartbeat + container health" into the full multi-host procedure.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/fleetd/pkg/agentclient"
	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/clock"
	"github.com/cuemby/fleetd/pkg/coordination"
	"github.com/cuemby/fleetd/pkg/linkorch"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/topology"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/rs/zerolog"
)

const (
	defaultInterval    = 10 * time.Second
	defaultLockTTL     = 60 * time.Second
	transitionalRecent = 6 * time.Minute
)

// AgentResolver returns the client to reach a given host's agent.
type AgentResolver func(hostID string) (*agentclient.Client, error)

// Config tunes the reconciliation loop.
type Config struct {
	Interval time.Duration // reconciliation_interval
	LockTTL  time.Duration // per-lab distributed reconcile lock TTL
}

// DefaultConfig returns the suggested reconciliation cadence.
func DefaultConfig() Config {
	return Config{Interval: defaultInterval, LockTTL: defaultLockTTL}
}

// Reconciler drives one periodic pass over every lab needing convergence.
type Reconciler struct {
	store    storage.Store
	clock    clock.Clock
	coord    *coordination.Store
	resolve  AgentResolver
	topo     *topology.Service
	linkorch *linkorch.Orchestrator
	broker   *broadcast.Broker
	cfg      Config
	logger   zerolog.Logger
	mu       sync.Mutex
	stopCh   chan struct{}
}

// New builds a Reconciler.
func New(store storage.Store, clk clock.Clock, coord *coordination.Store, resolve AgentResolver, topo *topology.Service, lo *linkorch.Orchestrator, broker *broadcast.Broker, cfg Config) *Reconciler {
	return &Reconciler{
		store:    store,
		clock:    clk,
		coord:    coord,
		resolve:  resolve,
		topo:     topo,
		linkorch: lo,
		broker:   broker,
		cfg:      cfg,
		logger:   log.WithComponent("reconciler"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the reconciliation loop in its own goroutine.
func (r *Reconciler) Start() { go r.run() }

// Stop ends the loop.
func (r *Reconciler) Stop() { close(r.stopCh) }

func (r *Reconciler) run() {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.cfg.Interval).Msg("reconciler started")

	for {
		select {
		case <-ticker.C:
			r.runOnce(context.Background())
		case <-r.stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		}
	}
}

// runOnce selects labs needing reconciliation and converges each in turn.
// The mutex serializes overlapping ticks within this process; the
// per-lab distributed lock below is what protects against a peer manager
// racing the same lab.
func (r *Reconciler) runOnce(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	labIDs, err := r.selectLabsForReconciliation()
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to select labs for reconciliation")
		return
	}
	for _, labID := range labIDs {
		r.reconcileLab(ctx, labID)
	}
}

// reconcileLab runs the eleven-step per-lab procedure under the
// coordination store's reconcile lock.
func (r *Reconciler) reconcileLab(ctx context.Context, labID string) {
	token := fmt.Sprintf("%d", r.clock.Now().UnixNano())
	lock, ok := r.coord.AcquireReconcileLock(ctx, labID, token, r.cfg.LockTTL)
	if !ok {
		r.logger.Debug().Str("lab_id", labID).Msg("reconcile lock held by another pass, skipping")
		return
	}
	defer lock.Unlock(ctx)

	logger := r.logger.With().Str("lab_id", labID).Logger()

	if err := r.ensureLinkStates(labID); err != nil {
		logger.Error().Err(err).Msg("ensure link states failed")
	}
	if err := r.backfillPlacements(labID); err != nil {
		logger.Error().Err(err).Msg("backfill placements failed")
	}

	hosts, err := r.involvedHosts(labID)
	if err != nil {
		logger.Error().Err(err).Msg("determine involved hosts failed")
		return
	}
	polled := r.pollHosts(ctx, labID, hosts)

	placements, err := r.store.ListNodePlacementsByLab(labID)
	if err != nil {
		logger.Error().Err(err).Msg("list placements failed")
		placements = nil
	}
	placementByNode := make(map[string]*types.NodePlacement, len(placements))
	for _, p := range placements {
		placementByNode[p.NodeName] = p
	}

	if err := r.mergeNodeStates(ctx, labID, placementByNode, polled); err != nil {
		logger.Error().Err(err).Msg("merge node states failed")
	}
	if err := r.updatePlacements(labID, polled); err != nil {
		logger.Error().Err(err).Msg("update placements failed")
	}
	if err := r.recomputeLabState(labID); err != nil {
		logger.Error().Err(err).Msg("recompute lab state failed")
	}
	if err := r.recomputeLinkStates(labID); err != nil {
		logger.Error().Err(err).Msg("recompute link states failed")
	}
	if err := r.autoConnectLinks(ctx, labID); err != nil {
		logger.Warn().Err(err).Msg("auto-connect reported errors")
	}
	if err := r.deleteDeletedLinkStates(labID); err != nil {
		logger.Error().Err(err).Msg("delete deleted link states failed")
	}
	r.triggerEnforcement(labID)
}

func (r *Reconciler) publish(evt broadcast.EventType, labID, entityID, msg string) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(&broadcast.Event{Type: evt, LabID: labID, EntityID: entityID, Message: msg})
}
