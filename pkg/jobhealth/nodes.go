package jobhealth

import (
	"context"
	"time"

	"github.com/cuemby/fleetd/pkg/broadcast"
	"github.com/cuemby/fleetd/pkg/types"
)

// sweepStuckTransitionalNodes recovers nodes wedged in starting/stopping
// with no active job working the lab. A starting node whose image is still
// syncing is left alone — that's expected, not stuck.
func (m *Monitor) sweepStuckTransitionalNodes(ctx context.Context) {
	labs, err := m.store.ListLabs()
	if err != nil {
		return
	}
	now := m.clock.Now()
	for _, lab := range labs {
		states, err := m.store.ListNodeStatesByLab(lab.ID)
		if err != nil {
			continue
		}
		var transitional []*types.NodeState
		for _, s := range states {
			if s.ActualState != types.NodeActualStarting && s.ActualState != types.NodeActualStopping {
				continue
			}
			ts := s.StartingStartedAt
			if s.ActualState == types.NodeActualStopping {
				ts = s.StoppingStartedAt
			}
			if ts.IsZero() || now.Sub(ts) < m.cfg.TransitionalStuckAge {
				continue
			}
			if s.ActualState == types.NodeActualStarting && (s.ImageSyncStatus == types.ImageSyncSyncing || s.ImageSyncStatus == types.ImageSyncChecking) {
				continue
			}
			transitional = append(transitional, s)
		}
		if len(transitional) == 0 {
			continue
		}

		jobs, err := m.store.ListJobsByLab(lab.ID)
		if err != nil {
			continue
		}
		active := false
		for _, j := range jobs {
			if j.Status.Active() {
				active = true
				break
			}
		}
		if active {
			continue
		}

		for _, s := range transitional {
			s.ActualState = types.NodeActualStopped
			s.StartingStartedAt = time.Time{}
			s.StoppingStartedAt = time.Time{}
			if err := m.store.UpsertNodeState(s); err != nil {
				m.logger.Error().Err(err).Str("node_id", s.NodeID).Msg("failed to recover stuck transitional node")
				continue
			}
			m.publish(broadcast.EventNodeStateChanged, lab.ID, s.NodeID, "recovered from stuck transitional state")
		}
	}
}

// sweepOrphanedImageSyncMarkers clears a node's side-channel image_sync
// status when no ImageSyncJob still covers that image+host.
func (m *Monitor) sweepOrphanedImageSyncMarkers(ctx context.Context) {
	labs, err := m.store.ListLabs()
	if err != nil {
		return
	}
	for _, lab := range labs {
		states, err := m.store.ListNodeStatesByLab(lab.ID)
		if err != nil {
			continue
		}
		nodes, err := m.store.ListNodesByLab(lab.ID)
		if err != nil {
			continue
		}
		nodeByID := make(map[string]*types.Node, len(nodes))
		for _, n := range nodes {
			nodeByID[n.ID] = n
		}

		for _, s := range states {
			if s.ImageSyncStatus != types.ImageSyncSyncing && s.ImageSyncStatus != types.ImageSyncChecking {
				continue
			}
			node, ok := nodeByID[s.NodeID]
			if !ok {
				continue
			}
			hostID := node.HostID
			job, err := m.store.GetImageSyncJob(node.Image, hostID)
			if err == nil && job != nil && job.Status.Active() {
				continue
			}
			s.ImageSyncStatus = types.ImageSyncNone
			s.ImageSyncMessage = ""
			if err := m.store.UpsertNodeState(s); err != nil {
				m.logger.Error().Err(err).Str("node_id", s.NodeID).Msg("failed to clear orphaned image sync marker")
				continue
			}
			m.publish(broadcast.EventNodeStateChanged, lab.ID, s.NodeID, "cleared orphaned image sync marker")
		}
	}
}
