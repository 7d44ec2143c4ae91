package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/fleetd/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketHosts           = []byte("hosts")
	bucketLabs            = []byte("labs")
	bucketNodes           = []byte("nodes")
	bucketNodeStates      = []byte("node_states")
	bucketLinks           = []byte("links")
	bucketLinkStates      = []byte("link_states")
	bucketNodePlacements  = []byte("node_placements")
	bucketJobs            = []byte("jobs")
	bucketVxlanTunnels    = []byte("vxlan_tunnels")
	bucketImageHosts      = []byte("image_hosts")
	bucketImageSyncJobs   = []byte("image_sync_jobs")
	bucketAgentUpdateJobs = []byte("agent_update_jobs")
	bucketCA              = []byte("ca")
)

// BoltStore implements Store using an embedded BoltDB file. It is the state
// machine backing every manager node's Raft FSM: Apply() on a committed log
// entry turns into exactly one BoltStore write transaction.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) the BoltDB file under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "fleetd.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketHosts, bucketLabs, bucketNodes, bucketNodeStates,
			bucketLinks, bucketLinkStates, bucketNodePlacements,
			bucketJobs, bucketVxlanTunnels, bucketImageHosts,
			bucketImageSyncJobs, bucketAgentUpdateJobs, bucketCA,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func put(tx *bolt.Tx, bucket []byte, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

func get(tx *bolt.Tx, bucket []byte, key string, v interface{}) error {
	data := tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return fmt.Errorf("%s: not found: %s", bucket, key)
	}
	return json.Unmarshal(data, v)
}

func compositeKey(parts ...string) string {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

// --- Hosts ---

func (s *BoltStore) CreateHost(host *types.Host) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketHosts, host.ID, host) })
}

func (s *BoltStore) GetHost(id string) (*types.Host, error) {
	var host types.Host
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketHosts, id, &host) })
	if err != nil {
		return nil, err
	}
	return &host, nil
}

func (s *BoltStore) ListHosts() ([]*types.Host, error) {
	var hosts []*types.Host
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHosts).ForEach(func(k, v []byte) error {
			var host types.Host
			if err := json.Unmarshal(v, &host); err != nil {
				return err
			}
			hosts = append(hosts, &host)
			return nil
		})
	})
	return hosts, err
}

func (s *BoltStore) UpdateHost(host *types.Host) error { return s.CreateHost(host) }

func (s *BoltStore) DeleteHost(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketHosts).Delete([]byte(id)) })
}

// --- Labs ---

func (s *BoltStore) CreateLab(lab *types.Lab) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketLabs, lab.ID, lab) })
}

func (s *BoltStore) GetLab(id string) (*types.Lab, error) {
	var lab types.Lab
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketLabs, id, &lab) })
	if err != nil {
		return nil, err
	}
	return &lab, nil
}

func (s *BoltStore) ListLabs() ([]*types.Lab, error) {
	var labs []*types.Lab
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLabs).ForEach(func(k, v []byte) error {
			var lab types.Lab
			if err := json.Unmarshal(v, &lab); err != nil {
				return err
			}
			labs = append(labs, &lab)
			return nil
		})
	})
	return labs, err
}

func (s *BoltStore) ListLabsByOwner(owner string) ([]*types.Lab, error) {
	labs, err := s.ListLabs()
	if err != nil {
		return nil, err
	}
	var filtered []*types.Lab
	for _, lab := range labs {
		if lab.Owner == owner {
			filtered = append(filtered, lab)
		}
	}
	return filtered, nil
}

func (s *BoltStore) UpdateLab(lab *types.Lab) error { return s.CreateLab(lab) }

func (s *BoltStore) DeleteLab(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketLabs).Delete([]byte(id)) })
}

// --- Nodes ---

func (s *BoltStore) CreateNode(node *types.Node) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketNodes, node.ID, node) })
}

func (s *BoltStore) GetNode(id string) (*types.Node, error) {
	var node types.Node
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketNodes, id, &node) })
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (s *BoltStore) ListNodesByLab(labID string) ([]*types.Node, error) {
	var nodes []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			var node types.Node
			if err := json.Unmarshal(v, &node); err != nil {
				return err
			}
			if node.LabID == labID {
				nodes = append(nodes, &node)
			}
			return nil
		})
	})
	return nodes, err
}

func (s *BoltStore) UpdateNode(node *types.Node) error { return s.CreateNode(node) }

func (s *BoltStore) DeleteNode(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketNodes).Delete([]byte(id)) })
}

func (s *BoltStore) DeleteNodesByLab(labID string) error {
	nodes, err := s.ListNodesByLab(labID)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		for _, n := range nodes {
			if err := b.Delete([]byte(n.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- NodeStates ---

func (s *BoltStore) UpsertNodeState(state *types.NodeState) error {
	key := compositeKey(state.LabID, state.NodeID)
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketNodeStates, key, state) })
}

func (s *BoltStore) GetNodeState(labID, nodeID string) (*types.NodeState, error) {
	var state types.NodeState
	key := compositeKey(labID, nodeID)
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketNodeStates, key, &state) })
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *BoltStore) ListNodeStatesByLab(labID string) ([]*types.NodeState, error) {
	var states []*types.NodeState
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodeStates).ForEach(func(k, v []byte) error {
			var state types.NodeState
			if err := json.Unmarshal(v, &state); err != nil {
				return err
			}
			if state.LabID == labID {
				states = append(states, &state)
			}
			return nil
		})
	})
	return states, err
}

func (s *BoltStore) DeleteNodeState(labID, nodeID string) error {
	key := compositeKey(labID, nodeID)
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketNodeStates).Delete([]byte(key)) })
}

// --- Links ---

func (s *BoltStore) CreateLink(link *types.Link) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketLinks, link.ID, link) })
}

func (s *BoltStore) GetLink(id string) (*types.Link, error) {
	var link types.Link
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketLinks, id, &link) })
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *BoltStore) ListLinksByLab(labID string) ([]*types.Link, error) {
	var links []*types.Link
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLinks).ForEach(func(k, v []byte) error {
			var link types.Link
			if err := json.Unmarshal(v, &link); err != nil {
				return err
			}
			if link.LabID == labID {
				links = append(links, &link)
			}
			return nil
		})
	})
	return links, err
}

func (s *BoltStore) DeleteLink(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketLinks).Delete([]byte(id)) })
}

func (s *BoltStore) DeleteLinksByLab(labID string) error {
	links, err := s.ListLinksByLab(labID)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLinks)
		for _, l := range links {
			if err := b.Delete([]byte(l.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- LinkStates ---

func (s *BoltStore) UpsertLinkState(state *types.LinkState) error {
	key := compositeKey(state.LabID, state.LinkID)
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketLinkStates, key, state) })
}

func (s *BoltStore) GetLinkState(labID, linkID string) (*types.LinkState, error) {
	var state types.LinkState
	key := compositeKey(labID, linkID)
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketLinkStates, key, &state) })
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *BoltStore) ListLinkStatesByLab(labID string) ([]*types.LinkState, error) {
	var states []*types.LinkState
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLinkStates).ForEach(func(k, v []byte) error {
			var state types.LinkState
			if err := json.Unmarshal(v, &state); err != nil {
				return err
			}
			if state.LabID == labID {
				states = append(states, &state)
			}
			return nil
		})
	})
	return states, err
}

func (s *BoltStore) DeleteLinkState(labID, linkID string) error {
	key := compositeKey(labID, linkID)
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketLinkStates).Delete([]byte(key)) })
}

// --- NodePlacements ---

func (s *BoltStore) UpsertNodePlacement(p *types.NodePlacement) error {
	key := compositeKey(p.LabID, p.NodeName)
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketNodePlacements, key, p) })
}

func (s *BoltStore) GetNodePlacement(labID, nodeName string) (*types.NodePlacement, error) {
	var p types.NodePlacement
	key := compositeKey(labID, nodeName)
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketNodePlacements, key, &p) })
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) ListNodePlacementsByLab(labID string) ([]*types.NodePlacement, error) {
	var placements []*types.NodePlacement
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodePlacements).ForEach(func(k, v []byte) error {
			var p types.NodePlacement
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			if p.LabID == labID {
				placements = append(placements, &p)
			}
			return nil
		})
	})
	return placements, err
}

func (s *BoltStore) DeleteNodePlacement(labID, nodeName string) error {
	key := compositeKey(labID, nodeName)
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketNodePlacements).Delete([]byte(key)) })
}

// --- Jobs ---

func (s *BoltStore) CreateJob(job *types.Job) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketJobs, job.ID, job) })
}

func (s *BoltStore) GetJob(id string) (*types.Job, error) {
	var job types.Job
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketJobs, id, &job) })
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *BoltStore) ListJobs() ([]*types.Job, error) {
	var jobs []*types.Job
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).ForEach(func(k, v []byte) error {
			var job types.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			jobs = append(jobs, &job)
			return nil
		})
	})
	return jobs, err
}

func (s *BoltStore) ListJobsByLab(labID string) ([]*types.Job, error) {
	jobs, err := s.ListJobs()
	if err != nil {
		return nil, err
	}
	var filtered []*types.Job
	for _, j := range jobs {
		if j.LabID == labID {
			filtered = append(filtered, j)
		}
	}
	return filtered, nil
}

func (s *BoltStore) ListActiveJobs() ([]*types.Job, error) {
	jobs, err := s.ListJobs()
	if err != nil {
		return nil, err
	}
	var filtered []*types.Job
	for _, j := range jobs {
		if j.Status.Active() {
			filtered = append(filtered, j)
		}
	}
	return filtered, nil
}

func (s *BoltStore) UpdateJob(job *types.Job) error { return s.CreateJob(job) }

// --- VxlanTunnels ---

func (s *BoltStore) UpsertVxlanTunnel(t *types.VxlanTunnel) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketVxlanTunnels, t.LinkStateID, t) })
}

func (s *BoltStore) GetVxlanTunnel(linkStateID string) (*types.VxlanTunnel, error) {
	var t types.VxlanTunnel
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketVxlanTunnels, linkStateID, &t) })
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *BoltStore) ListVxlanTunnels() ([]*types.VxlanTunnel, error) {
	var tunnels []*types.VxlanTunnel
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVxlanTunnels).ForEach(func(k, v []byte) error {
			var t types.VxlanTunnel
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			tunnels = append(tunnels, &t)
			return nil
		})
	})
	return tunnels, err
}

func (s *BoltStore) ListVxlanTunnelsByHost(hostID string) ([]*types.VxlanTunnel, error) {
	tunnels, err := s.ListVxlanTunnels()
	if err != nil {
		return nil, err
	}
	var filtered []*types.VxlanTunnel
	for _, t := range tunnels {
		if t.SourceHostID == hostID || t.TargetHostID == hostID {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

func (s *BoltStore) DeleteVxlanTunnel(linkStateID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVxlanTunnels).Delete([]byte(linkStateID))
	})
}

// --- ImageHosts ---

func (s *BoltStore) UpsertImageHost(ih *types.ImageHost) error {
	key := compositeKey(ih.Image, ih.HostID)
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketImageHosts, key, ih) })
}

func (s *BoltStore) GetImageHost(image, hostID string) (*types.ImageHost, error) {
	var ih types.ImageHost
	key := compositeKey(image, hostID)
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketImageHosts, key, &ih) })
	if err != nil {
		return nil, err
	}
	return &ih, nil
}

func (s *BoltStore) ListImageHostsByImage(image string) ([]*types.ImageHost, error) {
	var hosts []*types.ImageHost
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImageHosts).ForEach(func(k, v []byte) error {
			var ih types.ImageHost
			if err := json.Unmarshal(v, &ih); err != nil {
				return err
			}
			if ih.Image == image {
				hosts = append(hosts, &ih)
			}
			return nil
		})
	})
	return hosts, err
}

// --- ImageSyncJobs ---

func (s *BoltStore) UpsertImageSyncJob(j *types.ImageSyncJob) error {
	key := compositeKey(j.Image, j.HostID)
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketImageSyncJobs, key, j) })
}

func (s *BoltStore) GetImageSyncJob(image, hostID string) (*types.ImageSyncJob, error) {
	var j types.ImageSyncJob
	key := compositeKey(image, hostID)
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketImageSyncJobs, key, &j) })
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *BoltStore) ListActiveImageSyncJobs() ([]*types.ImageSyncJob, error) {
	var jobs []*types.ImageSyncJob
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImageSyncJobs).ForEach(func(k, v []byte) error {
			var j types.ImageSyncJob
			if err := json.Unmarshal(v, &j); err != nil {
				return err
			}
			if j.Status.Active() {
				jobs = append(jobs, &j)
			}
			return nil
		})
	})
	return jobs, err
}

// --- AgentUpdateJobs ---

func (s *BoltStore) UpsertAgentUpdateJob(j *types.AgentUpdateJob) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketAgentUpdateJobs, j.HostID, j) })
}

func (s *BoltStore) GetAgentUpdateJob(hostID string) (*types.AgentUpdateJob, error) {
	var j types.AgentUpdateJob
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketAgentUpdateJobs, hostID, &j) })
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *BoltStore) ListActiveAgentUpdateJobs() ([]*types.AgentUpdateJob, error) {
	var jobs []*types.AgentUpdateJob
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAgentUpdateJobs).ForEach(func(k, v []byte) error {
			var j types.AgentUpdateJob
			if err := json.Unmarshal(v, &j); err != nil {
				return err
			}
			if j.Status.Active() {
				jobs = append(jobs, &j)
			}
			return nil
		})
	})
	return jobs, err
}

// --- Certificate Authority ---

func (s *BoltStore) SaveCA(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCA).Put([]byte("ca"), data)
	})
}

func (s *BoltStore) GetCA() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketCA).Get([]byte("ca"))
		if raw == nil {
			return fmt.Errorf("CA not found")
		}
		data = make([]byte, len(raw))
		copy(data, raw)
		return nil
	})
	return data, err
}
