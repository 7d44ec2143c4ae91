package jobhealth

import (
	"context"
	"os"
	"strings"

	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/types"
	"github.com/google/uuid"
)

// nonRetryableSignatures are log-tail substrings that mean a job should be
// failed outright rather than retried: retrying would just reproduce the
// same failure.
var nonRetryableSignatures = []string{
	"no such image",
	"image not found",
	"explicit host assignment failed",
	"libvirt error",
	"libvirtError",
	"tunnel creation failed",
	"partial failure",
}

// sweepStuckActiveJobs handles jobs whose started_at/last_heartbeat is
// older than the per-action timeout.
func (m *Monitor) sweepStuckActiveJobs(ctx context.Context) {
	jobs, err := m.store.ListActiveJobs()
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to list active jobs")
		return
	}
	now := m.clock.Now()
	for _, j := range jobs {
		if j.Status != types.JobRunning {
			continue
		}
		last := j.LastHeartbeat
		if last.IsZero() || j.StartedAt.After(last) {
			last = j.StartedAt
		}
		if last.IsZero() || now.Sub(last) < m.cfg.ActionTimeout {
			continue
		}
		m.handleStuckJob(ctx, j, jobs)
	}
}

// handleStuckJob implements the parent-check / signature-check /
// dedup-retry-or-fail decision tree.
func (m *Monitor) handleStuckJob(ctx context.Context, j *types.Job, allJobs []*types.Job) {
	if j.ParentJobID != "" {
		if parent, err := m.store.GetJob(j.ParentJobID); err == nil && parent != nil {
			if parent.Status.Active() {
				return
			}
			m.failJob(j, "orphaned: parent job "+parent.ID+" reached a terminal state", false)
			return
		}
	}

	if sig := m.matchNonRetryableSignature(j); sig != "" {
		m.failJob(j, "non-retryable: "+sig, false)
		return
	}

	if j.RetryCount >= m.cfg.MaxRetries {
		m.failJob(j, "exceeded max retries", true)
		return
	}

	if dup := findActiveDuplicate(allJobs, j); dup != nil {
		j.Status = types.JobCancelled
		j.SupersededByID = dup.ID
		j.FinishedAt = m.clock.Now()
		if err := m.store.UpdateJob(j); err != nil {
			m.logger.Error().Err(err).Str("job_id", j.ID).Msg("failed to cancel duplicate stuck job")
			return
		}
		m.publish(broadcast.EventJobStatusChanged, j.LabID, j.ID, "cancelled: duplicate of "+dup.ID)
		return
	}

	m.forceReleaseAgentLock(ctx, j)

	retry := &types.Job{
		ID:          uuid.New().String(),
		LabID:       j.LabID,
		UserID:      j.UserID,
		Action:      j.Action,
		Status:      types.JobQueued,
		RetryCount:  j.RetryCount + 1,
		ParentJobID: j.ParentJobID,
		CreatedAt:   m.clock.Now(),
	}
	if err := m.store.CreateJob(retry); err != nil {
		m.logger.Error().Err(err).Str("job_id", j.ID).Msg("failed to create retry job")
		return
	}

	j.Status = types.JobFailed
	j.SupersededByID = retry.ID
	j.FinishedAt = m.clock.Now()
	if err := m.store.UpdateJob(j); err != nil {
		m.logger.Error().Err(err).Str("job_id", j.ID).Msg("failed to mark stuck job failed")
		return
	}

	m.cancelChildren(j.ID, retry.ID)
	m.publish(broadcast.EventJobStatusChanged, j.LabID, j.ID, "failed (stuck), retry "+retry.ID+" queued")
	m.submit(retry.Action)
}

// sweepOrphanedQueuedJobs handles jobs queued longer than the orphan
// timeout with no agent assignment.
func (m *Monitor) sweepOrphanedQueuedJobs(ctx context.Context) {
	jobs, err := m.store.ListActiveJobs()
	if err != nil {
		return
	}
	now := m.clock.Now()
	for _, j := range jobs {
		if j.Status != types.JobQueued || j.AgentID != "" {
			continue
		}
		if now.Sub(j.CreatedAt) < m.cfg.OrphanQueueTimeout {
			continue
		}
		m.handleStuckJob(ctx, j, jobs)
	}
}

// sweepJobsOnOfflineAgents retries active jobs assigned to a host that has
// gone offline, on any other host.
func (m *Monitor) sweepJobsOnOfflineAgents(ctx context.Context) {
	jobs, err := m.store.ListActiveJobs()
	if err != nil {
		return
	}
	for _, j := range jobs {
		if j.AgentID == "" {
			continue
		}
		host, err := m.store.GetHost(j.AgentID)
		if err != nil || host == nil {
			continue
		}
		if host.Status != types.HostStatusOffline {
			continue
		}
		m.handleStuckJob(ctx, j, jobs)
	}
}

func findActiveDuplicate(jobs []*types.Job, j *types.Job) *types.Job {
	for _, other := range jobs {
		if other.ID == j.ID {
			continue
		}
		if other.LabID == j.LabID && other.Action == j.Action && other.Status.Active() {
			return other
		}
	}
	return nil
}

func (m *Monitor) cancelChildren(parentID, supersededBy string) {
	jobs, err := m.store.ListJobs()
	if err != nil {
		return
	}
	for _, child := range jobs {
		if child.ParentJobID != parentID || !child.Status.Active() {
			continue
		}
		child.Status = types.JobCancelled
		child.SupersededByID = supersededBy
		child.FinishedAt = m.clock.Now()
		if err := m.store.UpdateJob(child); err != nil {
			m.logger.Error().Err(err).Str("job_id", child.ID).Msg("failed to cancel child job")
		}
	}
}

// failJob marks a job permanently failed. If labError is set, the owning
// lab is pushed into the error state too.
func (m *Monitor) failJob(j *types.Job, reason string, labError bool) {
	j.Status = types.JobFailed
	j.FinishedAt = m.clock.Now()
	if err := m.store.UpdateJob(j); err != nil {
		m.logger.Error().Err(err).Str("job_id", j.ID).Msg("failed to mark job permanently failed")
		return
	}
	m.publish(broadcast.EventJobStatusChanged, j.LabID, j.ID, "failed: "+reason)

	if !labError {
		return
	}
	lab, err := m.store.GetLab(j.LabID)
	if err != nil || lab == nil {
		return
	}
	lab.State = types.LabStateError
	lab.StateError = reason
	lab.StateSince = m.clock.Now()
	if err := m.store.UpdateLab(lab); err != nil {
		m.logger.Error().Err(err).Str("lab_id", j.LabID).Msg("failed to mark lab errored")
		return
	}
	m.publish(broadcast.EventLabStateChanged, j.LabID, "", reason)
}

// forceReleaseAgentLock best-effort releases the agent-side lab lock before
// retrying a stuck job, so the retry doesn't immediately collide with a
// lock the dead attempt never cleaned up.
func (m *Monitor) forceReleaseAgentLock(ctx context.Context, j *types.Job) {
	if j.AgentID == "" || m.resolve == nil {
		return
	}
	client, err := m.resolve(j.AgentID)
	if err != nil {
		return
	}
	if err := client.ReleaseLock(ctx, j.LabID); err != nil {
		m.logger.Debug().Err(err).Str("job_id", j.ID).Str("host_id", j.AgentID).Msg("force-release agent lock failed")
	}
}

// matchNonRetryableSignature reads the tail of the job's log (best-effort)
// and reports the first non-retryable substring it finds, or "".
func (m *Monitor) matchNonRetryableSignature(j *types.Job) string {
	if j.LogPath == "" {
		return ""
	}
	tail, err := readTail(j.LogPath, 8192)
	if err != nil {
		return ""
	}
	for _, sig := range nonRetryableSignatures {
		if strings.Contains(tail, sig) {
			return sig
		}
	}
	return ""
}

func readTail(path string, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()
	offset := int64(0)
	if size > maxBytes {
		offset = size - maxBytes
	}
	buf := make([]byte, size-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return "", err
	}
	return string(buf), nil
}
