package imagesync

import (
	"context"

	"github.com/cuemby/fleetd/pkg/types"
)

// ReconcileAgentImages refreshes the ImageHost ledger for one host against
// the agent's actual inventory. Called on registration (before deciding
// whether a pull strategy needs to do anything) and can be run periodically.
func (s *Service) ReconcileAgentImages(ctx context.Context, hostID string, images []string) {
	host, err := s.store.GetHost(hostID)
	if err != nil || host == nil || host.Status != types.HostStatusOnline {
		return
	}
	client, err := s.resolve(hostID)
	if err != nil {
		return
	}
	for _, ref := range dedup(images) {
		info, err := client.GetImage(ctx, ref)
		available := err == nil && info != nil && info.Available
		ih, err := s.store.GetImageHost(ref, hostID)
		if err != nil || ih == nil {
			ih = &types.ImageHost{Image: ref, HostID: hostID}
		}
		ih.Available = available
		ih.CheckedAt = s.clock.Now()
		if err := s.store.UpsertImageHost(ih); err != nil {
			s.logger.Warn().Err(err).Str("image", ref).Str("host_id", hostID).Msg("failed to record image host reconciliation")
		}
	}
	s.logger.Info().Str("host_id", hostID).Int("image_count", len(images)).Msg("reconciled agent image inventory")
}

// PushOnUpload fires a best-effort on-demand sync of a newly uploaded image
// to every online host, when the fallback strategy is push.
func (s *Service) PushOnUpload(ctx context.Context, image string) {
	if !s.cfg.Enabled || s.cfg.FallbackStrategy != StrategyPush {
		return
	}
	hosts, err := s.store.ListHosts()
	if err != nil {
		return
	}
	for _, h := range hosts {
		if h.Status != types.HostStatusOnline {
			continue
		}
		if s.checkAgentHasImage(ctx, h.ID, image) {
			s.markSynced(image, h.ID)
			continue
		}
		s.markSyncing(image, h.ID)
		go func(hostID string) {
			bg := context.Background()
			ctx, cancel := context.WithTimeout(bg, s.cfg.Timeout)
			defer cancel()
			if s.waitForImage(ctx, hostID, image) {
				s.markSynced(image, hostID)
			} else {
				s.markFailed(image, hostID, "push sync timed out")
			}
		}(h.ID)
	}
}

// PullOnRegistration syncs every image in the library to a newly registered
// host, when the fallback strategy is pull.
func (s *Service) PullOnRegistration(ctx context.Context, hostID string, libraryImages []string) {
	if !s.cfg.Enabled || s.cfg.FallbackStrategy != StrategyPull {
		return
	}
	s.ReconcileAgentImages(ctx, hostID, libraryImages)

	for _, ref := range libraryImages {
		ih, err := s.store.GetImageHost(ref, hostID)
		if err == nil && ih != nil && ih.Available {
			continue
		}
		s.markSyncing(ref, hostID)
		go func(reference string) {
			bg := context.Background()
			ctx, cancel := context.WithTimeout(bg, s.cfg.Timeout)
			defer cancel()
			if s.waitForImage(ctx, hostID, reference) {
				s.markSynced(reference, hostID)
			} else {
				s.markFailed(reference, hostID, "pull sync timed out")
			}
		}(ref)
	}
}
