// Package imagesync ensures a host's agent has the images a deployment
// needs before the NLM hands it a deploy/start call, and keeps the
// per-(image, host) availability ledger (ImageHost/ImageSyncJob) honest in
// the background. Grounded on original_source/api/app/tasks/image_sync.py's
// sync-job bookkeeping, generalized to fleetd's multi-host-per-image model.
//
// The agent's wire contract only exposes image *inventory*
// (`GET /images`, `GET /images/{ref}`, `GET /images?active_transfers=1`)
// with no explicit "push this image to me" RPC — the agent is assumed to
// pull images itself once told to. So this package's "sync" is a poll
// loop rather than a fire-and-wait task: create the job row, then poll the
// agent's image inventory until it reports the image available or the
// timeout/agent-offline path trips.
package imagesync

import (
	"context"
	"time"

	"github.com/cuemby/fleetd/pkg/agentclient"
	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/clock"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Strategy is how a host acquires images it's missing.
type Strategy string

const (
	StrategyPush     Strategy = "push"      // pushed automatically on upload
	StrategyPull     Strategy = "pull"      // agent pulls on registration
	StrategyOnDemand Strategy = "on_demand" // synced only when a deploy needs it
	StrategyDisabled Strategy = "disabled"
)

// AgentResolver returns the client to reach a given host's agent.
type AgentResolver func(hostID string) (*agentclient.Client, error)

// Config tunes image-sync policy.
type Config struct {
	Enabled          bool
	PreDeployCheck   bool
	Timeout          time.Duration // image_sync_timeout
	PendingTimeout   time.Duration // image_sync_job_pending_timeout
	PollInterval     time.Duration
	FallbackStrategy Strategy // image_sync_fallback_strategy
}

// DefaultConfig returns the conservative default: on-demand only.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		PreDeployCheck:   true,
		Timeout:          5 * time.Minute,
		PendingTimeout:   1 * time.Minute,
		PollInterval:     3 * time.Second,
		FallbackStrategy: StrategyOnDemand,
	}
}

// Service drives image availability checks and sync jobs across hosts.
type Service struct {
	store   storage.Store
	clock   clock.Clock
	resolve AgentResolver
	broker  *broadcast.Broker
	cfg     Config
	logger  zerolog.Logger
}

// New builds a Service.
func New(store storage.Store, clk clock.Clock, resolve AgentResolver, broker *broadcast.Broker, cfg Config) *Service {
	return &Service{
		store:   store,
		clock:   clk,
		resolve: resolve,
		broker:  broker,
		cfg:     cfg,
		logger:  log.WithComponent("imagesync"),
	}
}

func (s *Service) publish(evt broadcast.EventType, labID, entityID, msg string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(&broadcast.Event{Type: evt, LabID: labID, EntityID: entityID, Message: msg})
}

func (s *Service) checkAgentHasImage(ctx context.Context, hostID, reference string) bool {
	client, err := s.resolve(hostID)
	if err != nil {
		return false
	}
	info, err := client.GetImage(ctx, reference)
	if err != nil || info == nil {
		return false
	}
	return info.Available
}

func (s *Service) markSyncing(image, hostID string) {
	ih, err := s.store.GetImageHost(image, hostID)
	if err != nil || ih == nil {
		ih = &types.ImageHost{Image: image, HostID: hostID}
	}
	ih.Available = false
	ih.CheckedAt = s.clock.Now()
	_ = s.store.UpsertImageHost(ih)

	job, err := s.store.GetImageSyncJob(image, hostID)
	if err != nil || job == nil {
		job = &types.ImageSyncJob{ID: uuid.New().String(), Image: image, HostID: hostID}
	}
	job.Status = types.ImageSyncJobPending
	job.StartedAt = s.clock.Now()
	job.UpdatedAt = s.clock.Now()
	job.Error = ""
	_ = s.store.UpsertImageSyncJob(job)
}

func (s *Service) markSynced(image, hostID string) {
	ih := &types.ImageHost{Image: image, HostID: hostID, Available: true, CheckedAt: s.clock.Now()}
	_ = s.store.UpsertImageHost(ih)

	if job, err := s.store.GetImageSyncJob(image, hostID); err == nil && job != nil {
		job.Status = types.ImageSyncJobCompleted
		job.UpdatedAt = s.clock.Now()
		_ = s.store.UpsertImageSyncJob(job)
	}
}

func (s *Service) markFailed(image, hostID, reason string) {
	job, err := s.store.GetImageSyncJob(image, hostID)
	if err != nil || job == nil {
		job = &types.ImageSyncJob{ID: uuid.New().String(), Image: image, HostID: hostID}
	}
	job.Status = types.ImageSyncJobFailed
	job.Error = reason
	job.UpdatedAt = s.clock.Now()
	_ = s.store.UpsertImageSyncJob(job)
}
