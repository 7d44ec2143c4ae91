package nlm

import (
	"fmt"

	"github.com/cuemby/fleetd/pkg/types"
)

const fallbackMemoryMB = 256

// resourceCheck is Phase 4: sum the candidate-deploy set's memory/CPU per
// target host, project utilization against the most recent heartbeat
// resource snapshot, and block (or warn) per the configured buffers.
// Explicit-host nodes never fall back to another host on failure here —
// the user's placement is authoritative; they are marked error instead.
func (n *NLM) resourceCheck(nodes []*convergenceNode) {
	byHost := make(map[string][]*convergenceNode)
	for _, cn := range nodes {
		if cn.state.DesiredState != types.NodeDesiredRunning {
			continue // only deploy/start candidates consume capacity
		}
		byHost[cn.targetHost] = append(byHost[cn.targetHost], cn)
	}

	for hostID, candidates := range byHost {
		host, err := n.store.GetHost(hostID)
		if err != nil || host.Resources == nil {
			continue // no heartbeat data yet, nothing to project against
		}

		var wantMemMB int64
		var wantCPU float64
		for _, cn := range candidates {
			res := n.deviceResources(cn.node.DeviceKind)
			wantMemMB += addIfZero(cn.node.MemoryMB, res.MemoryMB)
			wantCPU += addIfZeroF(cn.node.CPUCores, res.CPUCores)
		}

		memTotalMB := host.Resources.MemoryTotalBytes / (1024 * 1024)
		memUsedMB := host.Resources.MemoryUsedBytes / (1024 * 1024)
		if memTotalMB <= 0 {
			continue
		}
		projected := float64(memUsedMB+wantMemMB) / float64(memTotalMB)
		dimension := "memory"
		if cpus := float64(host.Resources.CPUCount); cpus > 0 {
			cpuUsed := host.Resources.CPUPercent / 100 * cpus
			if cpuProjected := (cpuUsed + wantCPU) / cpus; cpuProjected > projected {
				projected, dimension = cpuProjected, "CPU"
			}
		}

		if projected >= n.cfg.ErrorBuffer {
			msg := fmt.Sprintf("host %s at %.0f%% projected %s utilization (limit %.0f%%)", hostID, projected*100, dimension, n.cfg.ErrorBuffer*100)
			for _, cn := range candidates {
				cn.state.ActualState = types.NodeActualError
				cn.state.ErrorMessage = msg
				_ = n.store.UpsertNodeState(cn.state)
				cn.skipReason = "resource_exhausted"
			}
			continue
		}
		if projected >= n.cfg.WarningBuffer {
			n.logger.Warn().Str("host_id", hostID).Float64("projected", projected).Msg("host approaching capacity, proceeding")
		}
	}
}

func (n *NLM) deviceResources(kind string) DeviceResources {
	if res, ok := n.cfg.DeviceTable[kind]; ok {
		return res
	}
	return DeviceResources{MemoryMB: fallbackMemoryMB, CPUCores: 0.25}
}

func addIfZero(explicit, fallback int64) int64 {
	if explicit > 0 {
		return explicit
	}
	return fallback
}

func addIfZeroF(explicit, fallback float64) float64 {
	if explicit > 0 {
		return explicit
	}
	return fallback
}
