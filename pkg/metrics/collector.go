package metrics

import (
	"time"

	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/types"
)

// clusterStats is the subset of *control.Cluster the collector needs.
// Kept as an interface (rather than importing pkg/control directly) so
// tests can supply a fake without standing up real Raft.
type clusterStats interface {
	IsLeader() bool
	Stats() map[string]interface{}
}

// Collector periodically samples storage.Store and the Raft cluster into
// the gauges in metrics.go, on a simple ticker/stopCh shape, re-pointed at
// fleetd's store-backed domain: hosts, labs, nodes, links, tunnels.
type Collector struct {
	store   storage.Store
	cluster clusterStats
	stopCh  chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(store storage.Store, cluster clusterStats) *Collector {
	return &Collector{
		store:   store,
		cluster: cluster,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectHostMetrics()
	c.collectLabMetrics()
	c.collectNodeAndLinkMetrics()
	c.collectTunnelMetrics()
	c.collectRaftMetrics()
}

func (c *Collector) collectHostMetrics() {
	hosts, err := c.store.ListHosts()
	if err != nil {
		return
	}
	counts := make(map[types.HostStatus]int)
	for _, h := range hosts {
		counts[h.Status]++
	}
	for status, n := range counts {
		HostsTotal.WithLabelValues(string(status)).Set(float64(n))
	}
}

func (c *Collector) collectLabMetrics() {
	labs, err := c.store.ListLabs()
	if err != nil {
		return
	}
	counts := make(map[types.LabState]int)
	for _, l := range labs {
		counts[l.State]++
	}
	for state, n := range counts {
		LabsTotal.WithLabelValues(string(state)).Set(float64(n))
	}
}

func (c *Collector) collectNodeAndLinkMetrics() {
	labs, err := c.store.ListLabs()
	if err != nil {
		return
	}

	nodeCounts := make(map[types.NodeActualState]int)
	linkCounts := make(map[types.LinkActualState]int)

	for _, lab := range labs {
		states, err := c.store.ListNodeStatesByLab(lab.ID)
		if err == nil {
			for _, s := range states {
				nodeCounts[s.ActualState]++
			}
		}
		linkStates, err := c.store.ListLinkStatesByLab(lab.ID)
		if err == nil {
			for _, s := range linkStates {
				linkCounts[s.ActualState]++
			}
		}
	}

	for state, n := range nodeCounts {
		NodesTotal.WithLabelValues(string(state)).Set(float64(n))
	}
	for state, n := range linkCounts {
		LinksTotal.WithLabelValues(string(state)).Set(float64(n))
	}
}

func (c *Collector) collectTunnelMetrics() {
	tunnels, err := c.store.ListVxlanTunnels()
	if err != nil {
		return
	}
	VxlanTunnelsTotal.Set(float64(len(tunnels)))
}

func (c *Collector) collectRaftMetrics() {
	if c.cluster == nil {
		return
	}
	if c.cluster.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}

	stats := c.cluster.Stats()
	if stats == nil {
		return
	}
	if lastIndex, ok := stats["last_log_index"].(uint64); ok {
		RaftLogIndex.Set(float64(lastIndex))
	}
	if appliedIndex, ok := stats["applied_index"].(uint64); ok {
		RaftAppliedIndex.Set(float64(appliedIndex))
	}
	if peers, ok := stats["peers"].(uint64); ok {
		RaftPeers.Set(float64(peers))
	}
}
