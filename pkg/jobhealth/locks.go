package jobhealth

import (
	"context"
	"time"

	"github.com/cuemby/fleetd/pkg/types"
)

// sweepStuckAgentLocks queries every online agent's lock table and
// releases any lab lock held past the stuck-age threshold.
func (m *Monitor) sweepStuckAgentLocks(ctx context.Context) {
	hosts, err := m.store.ListHosts()
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to list hosts")
		return
	}
	for _, h := range hosts {
		if h.Status != types.HostStatusOnline {
			continue
		}
		client, err := m.resolve(h.ID)
		if err != nil {
			continue
		}
		locks, err := client.GetLockStatus(ctx)
		if err != nil {
			m.logger.Debug().Err(err).Str("host_id", h.ID).Msg("get_lock_status failed")
			continue
		}
		for _, l := range locks {
			if !l.Held {
				continue
			}
			if time.Duration(l.AgeSecs)*time.Second < m.cfg.AgentLockStuckAge {
				continue
			}
			if err := client.ReleaseLock(ctx, l.LabID); err != nil {
				m.logger.Warn().Err(err).Str("host_id", h.ID).Str("lab_id", l.LabID).Msg("failed to release stuck agent lock")
				continue
			}
			m.logger.Info().Str("host_id", h.ID).Str("lab_id", l.LabID).Int64("age_secs", l.AgeSecs).Msg("released stuck agent lock")
		}
	}
}
