// Package nlm implements the Node Lifecycle Manager: the per-job convergence
// engine that drives one or more NodeStates from actual toward desired.
// Every job execution (deploy, start, stop, migrate, enforcement batch) is
// one NLM.Run invocation over a set of node ids, split into eight isolated
// phases. Grounded on the diff-desired-vs-actual-then-batch-by-category
// shape of a scheduler tick, and on committing transitional state before
// a blocking per-node agent call so each step's failure is handled on its
// own rather than aborting the whole batch.
package nlm

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/fleetd/pkg/agentclient"
	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/clock"
	"github.com/cuemby/fleetd/pkg/convergeerr"
	"github.com/cuemby/fleetd/pkg/coordination"
	"github.com/cuemby/fleetd/pkg/imagesync"
	"github.com/cuemby/fleetd/pkg/linkorch"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/topology"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/rs/zerolog"
)

// DeployMode selects how the Deploy category is executed in Phase 7.
type DeployMode string

const (
	// DeployModeTopology submits a filtered lab topology to deploy_lab in
	// one agent call per target host (the default; fewer round trips).
	DeployModeTopology DeployMode = "topology"
	// DeployModePerNode calls create_node/start_node individually. Selected
	// by setting Config.DeployMode; DefaultConfig uses DeployModeTopology.
	DeployModePerNode DeployMode = "per_node"
)

const (
	stuckTransitionalThreshold = 6 * time.Minute
	deployLockTTL              = 5 * time.Minute
	defaultWarningBuffer       = 0.80
	defaultErrorBuffer         = 0.95
)

// AgentResolver returns the client to reach a given host's agent.
type AgentResolver func(hostID string) (*agentclient.Client, error)

// Config tunes NLM thresholds.
type Config struct {
	DeployMode     DeployMode
	WarningBuffer  float64 // fraction of host capacity that triggers a warning log
	ErrorBuffer    float64 // fraction of host capacity that blocks deploy/start
	DeviceTable    map[string]DeviceResources
}

// DeviceResources is the static memory/CPU footprint budgeted for one
// device kind, used to project host utilization in Phase 4.
type DeviceResources struct {
	MemoryMB int64
	CPUCores float64
}

// DefaultConfig returns the readiness-check phase's default thresholds.
func DefaultConfig() Config {
	return Config{
		DeployMode:    DeployModeTopology,
		WarningBuffer: defaultWarningBuffer,
		ErrorBuffer:   defaultErrorBuffer,
		DeviceTable:   map[string]DeviceResources{},
	}
}

// NLM converges a set of NodeStates for one lab within one job.
type NLM struct {
	store     storage.Store
	clock     clock.Clock
	coord     *coordination.Store
	resolve   AgentResolver
	topo      *topology.Service
	linkorch  *linkorch.Orchestrator
	imagesync *imagesync.Service
	broker    *broadcast.Broker
	cfg       Config
	logger    zerolog.Logger
}

// New builds an NLM. imgsync may be nil to disable the pre-deploy image
// availability gate entirely.
func New(store storage.Store, clk clock.Clock, coord *coordination.Store, resolve AgentResolver, topo *topology.Service, lo *linkorch.Orchestrator, imgsync *imagesync.Service, broker *broadcast.Broker, cfg Config) *NLM {
	return &NLM{
		store:     store,
		clock:     clk,
		coord:     coord,
		resolve:   resolve,
		topo:      topo,
		linkorch:  lo,
		imagesync: imgsync,
		broker:    broker,
		cfg:       cfg,
		logger:    log.WithComponent("nlm"),
	}
}

// convergenceNode is one node carried through the phases, accumulating the
// decisions made about it.
type convergenceNode struct {
	node        *types.Node
	state       *types.NodeState
	placement   *types.NodePlacement // nil if none on record
	targetHost  string               // resolved in Phase 3; empty means "error, no host"
	skipReason  string               // set when the node should be excluded from further phases
	oldHost     string               // host implied by the prior placement, for migration detection
}

// Run executes the full eight-phase convergence for a job's node set and
// returns the terminal job status.
func (n *NLM) Run(ctx context.Context, job *types.Job, nodeIDs []string) (types.JobStatus, error) {
	logger := n.logger.With().Str("job_id", job.ID).Str("lab_id", job.LabID).Logger()

	// Phase 1 — load & validate.
	nodes, err := n.loadAndValidate(job.LabID, nodeIDs)
	if err != nil {
		return types.JobFailed, fmt.Errorf("load & validate: %w", err)
	}
	if len(nodes) == 0 {
		logger.Info().Msg("no nodes require action")
		return types.JobCompleted, nil
	}

	// Phase 2 — set transitional states.
	n.setTransitionalStates(nodes)

	// Phase 3 — resolve agents (may spawn child jobs, trims `nodes` down to
	// the ones that stay on this job for the locally-chosen host).
	nodes, childHosts, err := n.resolveAgents(ctx, job, nodes)
	if err != nil {
		return types.JobFailed, fmt.Errorf("resolve agents: %w", err)
	}
	for _, host := range childHosts {
		logger.Info().Str("host_id", host).Msg("spawned child job for remote host")
	}

	// Phase 4 — resource check.
	n.resourceCheck(nodes)

	// Phase 5 — migration handling.
	if err := n.handleMigrations(ctx, nodes); err != nil {
		logger.Warn().Err(err).Msg("migration handling encountered errors")
	}

	// Phase 6 — categorize.
	deploy, start, stop := n.categorize(nodes)

	// Phase 7 — execute per category, isolated.
	n.executeStop(ctx, stop)
	n.executeDeploy(ctx, job.LabID, deploy)
	n.executeStart(ctx, start)

	if n.linkorch != nil {
		if err := n.linkorch.CreateDeploymentLinks(ctx, job.LabID); err != nil {
			logger.Warn().Err(err).Msg("link orchestration after deploy/start reported errors")
		}
	}

	// Phase 8 — finalize.
	return n.finalize(nodes), nil
}

func (n *NLM) publish(evt broadcast.EventType, labID, entityID, msg string) {
	if n.broker == nil {
		return
	}
	n.broker.Publish(&broadcast.Event{Type: evt, LabID: labID, EntityID: entityID, Message: msg})
}

func (n *NLM) resolveClient(hostID string) (*agentclient.Client, error) {
	if n.resolve == nil {
		return nil, convergeerr.New(convergeerr.KindTransientAgent, "resolveClient", fmt.Errorf("no agent resolver configured"))
	}
	return n.resolve(hostID)
}
