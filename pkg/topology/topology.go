// Package topology is the pure read side over a lab's Node/Link rows:
// placement analysis, per-host deploy payload assembly, and image
// inventory queries. It does no mutation and holds no state of its own
// beyond a storage.Store handle, grounded in a scheduler's
// read-then-decide shape.
package topology

import (
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/cuemby/fleetd/pkg/types"
)

// Service answers topology questions for the NLM, reconciler, and link
// orchestrator; those callers also read and write storage.Store directly.
type Service struct {
	store storage.Store
}

// New returns a Service backed by store.
func New(store storage.Store) *Service {
	return &Service{store: store}
}

// GetNodes returns every Node definition for a lab.
func (s *Service) GetNodes(labID string) ([]*types.Node, error) {
	return s.store.ListNodesByLab(labID)
}

// GetLinks returns every Link definition for a lab.
func (s *Service) GetLinks(labID string) ([]*types.Link, error) {
	return s.store.ListLinksByLab(labID)
}

// HasNodes reports whether a lab has any node definitions at all.
func (s *Service) HasNodes(labID string) (bool, error) {
	nodes, err := s.GetNodes(labID)
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

// LinkPair is one cross-host link, named by its two resolved host IDs.
type LinkPair struct {
	LinkID string
	HostA  string
	HostB  string
}

// Placements groups a lab's nodes by the host they currently resolve to,
// plus the set of links whose two endpoints resolve to different hosts.
type Placements struct {
	ByHost         map[string][]*types.Node
	CrossHostLinks []LinkPair
}

// resolveHost picks a node's effective host: explicit Node.HostID first,
// falling back to the NodePlacement recorded from a prior deploy.
func (s *Service) resolveHost(node *types.Node, placements map[string]*types.NodePlacement) string {
	if node.HostID != "" {
		return node.HostID
	}
	if p, ok := placements[node.UserVisibleID]; ok {
		return p.HostID
	}
	return ""
}

// AnalyzePlacements derives {host_id -> nodes} and the cross-host link set
// from Node.host_id with NodePlacement fallback.
func (s *Service) AnalyzePlacements(labID string) (*Placements, error) {
	nodes, err := s.GetNodes(labID)
	if err != nil {
		return nil, err
	}
	links, err := s.GetLinks(labID)
	if err != nil {
		return nil, err
	}
	placementRows, err := s.store.ListNodePlacementsByLab(labID)
	if err != nil {
		return nil, err
	}

	placementByName := make(map[string]*types.NodePlacement, len(placementRows))
	for _, p := range placementRows {
		placementByName[p.NodeName] = p
	}

	nodeByVisibleID := make(map[string]*types.Node, len(nodes))
	hostOf := make(map[string]string, len(nodes))
	result := &Placements{ByHost: make(map[string][]*types.Node)}

	for _, n := range nodes {
		nodeByVisibleID[n.UserVisibleID] = n
		host := s.resolveHost(n, placementByName)
		hostOf[n.UserVisibleID] = host
		if host == "" {
			continue
		}
		result.ByHost[host] = append(result.ByHost[host], n)
	}

	for _, link := range links {
		hostA := hostOf[link.SourceNode]
		hostB := hostOf[link.TargetNode]
		if hostA == "" || hostB == "" || hostA == hostB {
			continue
		}
		result.CrossHostLinks = append(result.CrossHostLinks, LinkPair{
			LinkID: link.ID,
			HostA:  hostA,
			HostB:  hostB,
		})
	}

	return result, nil
}

// DeployTopology is the JSON payload handed to one host's agent: its nodes
// plus the same-host links between them.
type DeployTopology struct {
	LabID string         `json:"lab_id"`
	Nodes []*types.Node  `json:"nodes"`
	Links []*types.Link  `json:"links"`
}

// BuildDeployTopology assembles the payload for one host: the nodes placed
// there plus links where both endpoints are also placed there.
func (s *Service) BuildDeployTopology(labID, hostID string) (*DeployTopology, error) {
	placements, err := s.AnalyzePlacements(labID)
	if err != nil {
		return nil, err
	}
	nodesOnHost := placements.ByHost[hostID]
	onHost := make(map[string]bool, len(nodesOnHost))
	for _, n := range nodesOnHost {
		onHost[n.UserVisibleID] = true
	}

	links, err := s.GetLinks(labID)
	if err != nil {
		return nil, err
	}
	var sameHostLinks []*types.Link
	for _, l := range links {
		if onHost[l.SourceNode] && onHost[l.TargetNode] {
			sameHostLinks = append(sameHostLinks, l)
		}
	}

	return &DeployTopology{LabID: labID, Nodes: nodesOnHost, Links: sameHostLinks}, nil
}

// FilterToNodeIDs narrows a DeployTopology to just the given node ids plus
// the links between them, used when a single deploy job only targets a
// subset of the nodes already resolved onto one host.
func (dt *DeployTopology) FilterToNodeIDs(nodeIDs map[string]bool) *DeployTopology {
	var nodes []*types.Node
	visible := make(map[string]bool, len(dt.Nodes))
	for _, n := range dt.Nodes {
		if nodeIDs[n.ID] {
			nodes = append(nodes, n)
			visible[n.UserVisibleID] = true
		}
	}
	var links []*types.Link
	for _, l := range dt.Links {
		if visible[l.SourceNode] && visible[l.TargetNode] {
			links = append(links, l)
		}
	}
	return &DeployTopology{LabID: dt.LabID, Nodes: nodes, Links: links}
}

// GetRequiredImages returns the distinct set of images a lab's nodes need.
func (s *Service) GetRequiredImages(labID string) ([]string, error) {
	nodes, err := s.GetNodes(labID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var images []string
	for _, n := range nodes {
		if n.Image == "" || seen[n.Image] {
			continue
		}
		seen[n.Image] = true
		images = append(images, n.Image)
	}
	return images, nil
}

// GetImageToNodesMap groups a lab's nodes by the image they require.
func (s *Service) GetImageToNodesMap(labID string) (map[string][]*types.Node, error) {
	nodes, err := s.GetNodes(labID)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]*types.Node)
	for _, n := range nodes {
		if n.Image == "" {
			continue
		}
		out[n.Image] = append(out[n.Image], n)
	}
	return out, nil
}

// NormalizedLink pairs a Link with its internally-aliased interface names.
// The authored SourceIface/TargetIface values are left untouched on the
// Link itself; only display-independent bookkeeping uses the alias.
type NormalizedLink struct {
	Link                    *types.Link
	SourceIfaceNormalized   string
	TargetIfaceNormalized   string
}

// NormalizeLinksForLab resolves vendor interface aliases for every link in
// a lab, for internal use by the link orchestrator.
func (s *Service) NormalizeLinksForLab(labID string) ([]NormalizedLink, error) {
	links, err := s.GetLinks(labID)
	if err != nil {
		return nil, err
	}
	normalized := make([]NormalizedLink, 0, len(links))
	for _, l := range links {
		normalized = append(normalized, NormalizedLink{
			Link:                  l,
			SourceIfaceNormalized: normalizeIface(l.SourceIface),
			TargetIfaceNormalized: normalizeIface(l.TargetIface),
		})
	}
	return normalized, nil
}
