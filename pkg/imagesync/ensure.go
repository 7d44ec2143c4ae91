package imagesync

import (
	"context"
	"fmt"

	"github.com/cuemby/fleetd/pkg/types"
)

// EnsureForDeployment is the pre-deploy gate: block until every
// referenced image is confirmed available on hostID, or until the
// configured timeout elapses.
// Returns the still-missing references, which the caller (NLM Phase 7)
// treats as an ImageMissing failure for the nodes that use them.
func (s *Service) EnsureForDeployment(ctx context.Context, labID, hostID string, images []string) (missing []string, err error) {
	if !s.cfg.Enabled || !s.cfg.PreDeployCheck {
		return nil, nil
	}

	host, err := s.store.GetHost(hostID)
	if err != nil || host == nil {
		return images, fmt.Errorf("host %s not found", hostID)
	}
	if host.Status != types.HostStatusOnline {
		return images, fmt.Errorf("host %s is not online", hostID)
	}

	var need []string
	for _, ref := range dedup(images) {
		if ref == "" {
			continue
		}
		if s.checkAgentHasImage(ctx, hostID, ref) {
			s.markSynced(ref, hostID)
			continue
		}
		need = append(need, ref)
	}
	if len(need) == 0 {
		return nil, nil
	}

	if s.cfg.FallbackStrategy == StrategyDisabled {
		for _, ref := range need {
			s.markFailed(ref, hostID, "image sync disabled for this host")
		}
		return need, nil
	}

	for _, ref := range need {
		s.markSyncing(ref, hostID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var stillMissing []string
	for _, ref := range need {
		if s.waitForImage(ctx, hostID, ref) {
			s.markSynced(ref, hostID)
			continue
		}
		s.markFailed(ref, hostID, "image sync timed out")
		stillMissing = append(stillMissing, ref)
	}
	return stillMissing, nil
}

// waitForImage polls the agent's image inventory until the reference
// becomes available, the context is cancelled, or the poll ticker's
// context deadline (EnsureForDeployment's timeout) is hit.
func (s *Service) waitForImage(ctx context.Context, hostID, ref string) bool {
	if s.checkAgentHasImage(ctx, hostID, ref) {
		return true
	}

	ticker := s.clock.After(s.cfg.PollInterval)
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker:
			if s.checkAgentHasImage(ctx, hostID, ref) {
				return true
			}
			ticker = s.clock.After(s.cfg.PollInterval)
		}
	}
}

func dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
