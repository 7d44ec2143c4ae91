package jobhealth

import (
	"context"

	"github.com/cuemby/fleetd/pkg/types"
)

// sweepStuckImageSyncJobs fails image-sync jobs that have overrun their
// pending/transferring/loading timeout, with a grace check against the
// agent's own active-transfers view before failing a transferring job.
func (m *Monitor) sweepStuckImageSyncJobs(ctx context.Context) {
	jobs, err := m.store.ListActiveImageSyncJobs()
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to list active image sync jobs")
		return
	}
	now := m.clock.Now()
	for _, j := range jobs {
		switch j.Status {
		case types.ImageSyncJobPending:
			if now.Sub(j.StartedAt) < m.cfg.ImageSyncPendingTimeout {
				continue
			}
			m.failImageSync(j, "pending timeout exceeded")

		case types.ImageSyncJobTransferring, types.ImageSyncJobLoading:
			if now.Sub(j.StartedAt) < m.cfg.ImageSyncTimeout {
				continue
			}
			if m.agentStillTransferring(ctx, j) && now.Sub(j.StartedAt) < 2*m.cfg.ImageSyncTimeout {
				m.logger.Debug().Str("image", j.Image).Str("host_id", j.HostID).Msg("image sync overrun but agent reports active transfer, deferring")
				continue
			}
			m.failImageSync(j, "sync timeout exceeded")
		}
	}
}

func (m *Monitor) agentStillTransferring(ctx context.Context, j *types.ImageSyncJob) bool {
	client, err := m.resolve(j.HostID)
	if err != nil {
		return false
	}
	transfers, err := client.GetActiveTransfers(ctx)
	if err != nil {
		return false
	}
	for _, t := range transfers {
		if t.Image == j.Image {
			return true
		}
	}
	return false
}

func (m *Monitor) failImageSync(j *types.ImageSyncJob, reason string) {
	j.Status = types.ImageSyncJobFailed
	j.Error = reason
	j.UpdatedAt = m.clock.Now()
	if err := m.store.UpsertImageSyncJob(j); err != nil {
		m.logger.Error().Err(err).Str("image", j.Image).Str("host_id", j.HostID).Msg("failed to mark image sync job failed")
		return
	}
	m.logger.Warn().Str("image", j.Image).Str("host_id", j.HostID).Str("reason", reason).Msg("image sync job failed")
}
