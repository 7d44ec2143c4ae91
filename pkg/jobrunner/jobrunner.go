// Package jobrunner is the bounded worker pool that actually executes
// queued Jobs by invoking pkg/nlm.Run. pkg/reconciler and pkg/enforcement
// only ever create Job rows; something has to drain the queue and dispatch
// them onto the NLM, and that's this package's one job.
//
// Grounded on a ticker-loop shape (poll, one pass at a time, log-and-continue
// on a per-item failure) generalized from "poll desired replica counts" to
// "poll queued jobs", widened to a concurrent worker pool since draining a
// job here means N agent calls rather than one in-process placement decision.
package jobrunner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/clock"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/cuemby/fleetd/pkg/nlm"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/rs/zerolog"
)

// Config tunes the runner's poll cadence and concurrency.
type Config struct {
	Interval    time.Duration
	Concurrency int // max jobs executed at once
}

// DefaultConfig returns a modest concurrency pool suited to a single-host dev setup.
func DefaultConfig() Config {
	return Config{Interval: 2 * time.Second, Concurrency: 8}
}

// Runner drains queued jobs onto the NLM with bounded concurrency.
type Runner struct {
	store  storage.Store
	clock  clock.Clock
	engine *nlm.NLM
	broker *broadcast.Broker
	cfg    Config
	logger zerolog.Logger

	sem chan struct{}

	mu       sync.Mutex
	inFlight map[string]bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a Runner.
func New(store storage.Store, clk clock.Clock, engine *nlm.NLM, broker *broadcast.Broker, cfg Config) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Runner{
		store:    store,
		clock:    clk,
		engine:   engine,
		broker:   broker,
		cfg:      cfg,
		logger:   log.WithComponent("jobrunner"),
		sem:      make(chan struct{}, cfg.Concurrency),
		inFlight: make(map[string]bool),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the poll loop in its own goroutine.
func (r *Runner) Start() { go r.run() }

// Stop ends the loop and waits for in-flight jobs to finish.
func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Runner) run() {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.cfg.Interval).Int("concurrency", r.cfg.Concurrency).Msg("job runner started")

	for {
		select {
		case <-ticker.C:
			r.poll()
		case <-r.stopCh:
			r.logger.Info().Msg("job runner stopped")
			return
		}
	}
}

// Submit dispatches a single job by action string immediately, bypassing
// the poll cadence — used by callers (job-health's retry path) that want
// their newly created job picked up without waiting for the next tick.
func (r *Runner) Submit(action string) {
	jobs, err := r.store.ListActiveJobs()
	if err != nil {
		return
	}
	for _, j := range jobs {
		if j.Action == action && j.Status == types.JobQueued {
			r.mu.Lock()
			busy := r.inFlight[j.ID]
			r.mu.Unlock()
			if busy {
				return
			}
			select {
			case r.sem <- struct{}{}:
				r.dispatch(j)
			default: // pool is full; the next poll picks it up
			}
			return
		}
	}
}

func (r *Runner) poll() {
	jobs, err := r.store.ListActiveJobs()
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list active jobs")
		return
	}
	for _, j := range jobs {
		if j.Status != types.JobQueued {
			continue
		}
		r.mu.Lock()
		busy := r.inFlight[j.ID]
		r.mu.Unlock()
		if busy {
			continue
		}

		select {
		case r.sem <- struct{}{}:
			r.dispatch(j)
		default:
			return // pool is full this tick, try the rest next tick
		}
	}
}

func (r *Runner) dispatch(job *types.Job) {
	r.mu.Lock()
	r.inFlight[job.ID] = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { <-r.sem }()
		defer func() {
			r.mu.Lock()
			delete(r.inFlight, job.ID)
			r.mu.Unlock()
		}()
		r.execute(job)
	}()
}

func (r *Runner) execute(job *types.Job) {
	nodeIDs, err := r.resolveNodeIDs(job)
	if err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Str("action", job.Action).Msg("failed to resolve job's node set")
		return
	}

	job.Status = types.JobRunning
	job.StartedAt = r.clock.Now()
	job.LastHeartbeat = job.StartedAt
	if err := r.store.UpdateJob(job); err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to mark job running")
		return
	}
	r.publish(broadcast.EventJobStatusChanged, job.LabID, job.ID, "running")

	ctx := context.Background()
	status, err := r.engine.Run(ctx, job, nodeIDs)
	if err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("nlm run failed")
		job.Status = types.JobFailed
	} else {
		job.Status = status
	}
	job.FinishedAt = r.clock.Now()
	if err := r.store.UpdateJob(job); err != nil {
		r.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist job completion")
		return
	}
	r.publish(broadcast.EventJobStatusChanged, job.LabID, job.ID, string(job.Status))
}

func (r *Runner) publish(evt broadcast.EventType, labID, entityID, msg string) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(&broadcast.Event{Type: evt, LabID: labID, EntityID: entityID, Message: msg})
}

// resolveNodeIDs applies the Action-string convention used across the
// packages that create jobs: "deploy"/"destroy" (optionally suffixed
// ":<host>") cover every node in the lab; "start:<id>"/"stop:<id>" cover
// one node; "sync:batch:<n>:<id,id,...>" (pkg/enforcement) and
// "reconcile:enforce:<id,id,...>" (pkg/reconciler) carry an explicit
// comma-separated id list as their final segment.
func (r *Runner) resolveNodeIDs(job *types.Job) ([]string, error) {
	action := job.Action

	switch {
	case action == "deploy" || action == "destroy" || strings.HasPrefix(action, "deploy:") || strings.HasPrefix(action, "destroy:"):
		nodes, err := r.store.ListNodesByLab(job.LabID)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(nodes))
		for _, n := range nodes {
			ids = append(ids, n.ID)
		}
		return ids, nil

	case strings.HasPrefix(action, "start:"):
		return []string{strings.TrimPrefix(action, "start:")}, nil

	case strings.HasPrefix(action, "stop:"):
		return []string{strings.TrimPrefix(action, "stop:")}, nil

	case strings.HasPrefix(action, "sync:batch:") || strings.HasPrefix(action, "reconcile:enforce:"):
		idx := strings.LastIndex(action, ":")
		if idx < 0 || idx == len(action)-1 {
			return nil, fmt.Errorf("malformed batch action %q", action)
		}
		return strings.Split(action[idx+1:], ","), nil

	default:
		return nil, fmt.Errorf("unrecognized job action %q", action)
	}
}
