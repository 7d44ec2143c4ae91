/*
Package storage provides BoltDB-backed state persistence for fleetd's control
plane data: hosts, labs, node/link topology and convergence state, placements,
jobs, VXLAN tunnels, image availability, and agent-update jobs.

# Architecture

fleetd uses BoltDB (bbolt) for embedded, transactional storage. Every bucket
holds one entity type, keyed by its natural ID or, for state rows that are
scoped to a lab, a "<lab_id>:<entity_id>" composite key:

	hosts              (Host ID)
	labs               (Lab ID)
	nodes              (Node ID)
	node_states        (LabID:NodeID)
	links              (Link ID)
	link_states        (LabID:LinkID)
	node_placements    (LabID:NodeName)
	jobs               (Job ID)
	vxlan_tunnels      (LinkStateID, i.e. LabID:LinkID)
	image_hosts        (Image:HostID)
	image_sync_jobs    (Image:HostID)
	agent_update_jobs  (HostID)
	ca                 (fixed key "ca")

# Design Patterns

Upsert: Create/Update share the same Put-based implementation; there is no
separate existence check.

Composite keys: entities that are naturally scoped to a lab (node states,
link states, placements) are keyed by "<lab_id>:<id>" so a lab's rows sort
together and a lab teardown can be expressed as a bounded scan-and-delete.

Filter-in-memory: "list by X" methods that aren't the bucket's primary key
(ListNodesByLab, ListLabsByOwner, ...) do a full bucket scan and filter in
Go. Acceptable at the scale of a single control plane; a secondary index
would be the next step if bucket sizes grow past what fits comfortably in
one mmap'd scan.

This package is the Store side of the Raft state machine in pkg/control:
FSM.Apply() on a committed log entry becomes exactly one call into Store.
*/
package storage
