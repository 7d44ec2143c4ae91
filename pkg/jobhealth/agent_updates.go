package jobhealth

import (
	"context"

	"github.com/cuemby/fleetd/pkg/types"
)

// sweepStuckAgentUpdateJobs fails agent self-update jobs that have overrun
// the update timeout, or that are still assigned to a host which has gone
// offline mid-update.
func (m *Monitor) sweepStuckAgentUpdateJobs(ctx context.Context) {
	jobs, err := m.store.ListActiveAgentUpdateJobs()
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to list active agent update jobs")
		return
	}
	now := m.clock.Now()
	for _, j := range jobs {
		stuck := now.Sub(j.StartedAt) > m.cfg.AgentUpdateTimeout
		offline := false
		if host, err := m.store.GetHost(j.HostID); err == nil && host != nil {
			offline = host.Status == types.HostStatusOffline
		}
		if !stuck && !offline {
			continue
		}

		j.Status = types.AgentUpdateFailed
		if offline {
			j.Error = "host went offline during update"
		} else {
			j.Error = "agent update timeout exceeded"
		}
		j.UpdatedAt = now
		if err := m.store.UpsertAgentUpdateJob(j); err != nil {
			m.logger.Error().Err(err).Str("host_id", j.HostID).Msg("failed to mark agent update job failed")
			continue
		}
		m.logger.Warn().Str("host_id", j.HostID).Str("reason", j.Error).Msg("agent update job failed")
	}
}
