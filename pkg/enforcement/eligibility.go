package enforcement

import (
	"context"
	"strings"
	"time"

	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/types"
)

func desiredMatchesActual(s *types.NodeState) bool {
	switch s.DesiredState {
	case types.NodeDesiredRunning:
		return s.ActualState == types.NodeActualRunning
	case types.NodeDesiredStopped:
		return s.ActualState == types.NodeActualStopped || s.ActualState == types.NodeActualUndeployed
	default:
		return true
	}
}

// collectEligible scans every stable lab for nodes whose actual state has
// drifted from desired and that survive the retry/backoff/cooldown chain.
func (e *Enforcer) collectEligible(ctx context.Context) ([]*types.NodeState, error) {
	labs, err := e.store.ListLabs()
	if err != nil {
		return nil, err
	}

	var out []*types.NodeState
	now := e.clock.Now()
	for _, lab := range labs {
		switch lab.State {
		case types.LabStateRunning, types.LabStateStopped, types.LabStateError:
		default:
			continue
		}

		states, err := e.store.ListNodeStatesByLab(lab.ID)
		if err != nil {
			e.logger.Warn().Err(err).Str("lab_id", lab.ID).Msg("failed to list node states")
			continue
		}

		var activeJobs []*types.Job
		jobs, err := e.store.ListJobsByLab(lab.ID)
		if err == nil {
			for _, j := range jobs {
				if j.Status.Active() {
					activeJobs = append(activeJobs, j)
				}
			}
		}

		for _, s := range states {
			if desiredMatchesActual(s) {
				continue
			}
			if e.eligible(ctx, lab.ID, s, activeJobs, now) {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// eligible runs the enforcement pre-filter chain: a node that fails any
// of these checks is left alone this tick.
func (e *Enforcer) eligible(ctx context.Context, labID string, s *types.NodeState, activeJobs []*types.Job, now time.Time) bool {
	if s.ActualState == types.NodeActualError && !e.cfg.AutoRestartOnError {
		return false
	}

	if e.cfg.MaxRetries > 0 && s.EnforcementAttempts >= e.cfg.MaxRetries {
		if s.EnforcementFailedAt.IsZero() {
			s.EnforcementFailedAt = now
			s.ActualState = types.NodeActualError
			s.ErrorMessage = "enforcement retries exhausted"
			if err := e.store.UpsertNodeState(s); err != nil {
				e.logger.Error().Err(err).Str("node_id", s.NodeID).Msg("failed to persist enforcement exhaustion")
			}
			e.publish(broadcast.EventNodeStateChanged, labID, s.NodeID, "enforcement retries exhausted")
		}
		return false
	}

	if !s.EnforcementFailedAt.IsZero() && now.Sub(s.EnforcementFailedAt) < e.cfg.CrashCooldown {
		return false
	}

	if !s.LastEnforcementAt.IsZero() {
		delay := backoffDelay(e.cfg.BaseBackoff, e.cfg.MaxCooldown, s.EnforcementAttempts)
		if now.Sub(s.LastEnforcementAt) < delay {
			return false
		}
	}

	if e.coord.InEnforcementCooldown(ctx, labID, s.NodeID) {
		return false
	}

	for _, j := range activeJobs {
		if strings.Contains(j.Action, s.NodeID) {
			return false
		}
	}

	return true
}
