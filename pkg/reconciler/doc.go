/*
Package reconciler drives fleetd's periodic per-lab convergence pass.

Unlike the NLM, which reacts to an explicit job, the reconciler is the
background loop that notices drift nobody asked it to fix: a host that
silently dropped a container, a link that never got auto-connected after
its endpoints came up, a placement row left stale after a migration. It
runs on a fixed interval, selects the labs that look like they need
attention, and for each one runs the eleven-step procedure described
below under a distributed lock so two managers never reconcile the same
lab at once.

# Lab selection

A lab is selected for reconciliation if any of the following hold:

  - its rollup state is starting, stopping, or unknown;
  - any of its nodes is pending, running-but-not-ready, or in error;
  - any node wants running but is actually stopped/undeployed/exited;
  - any running node has no recorded NodePlacement.

# Per-lab procedure

 1. Ensure a LinkState row exists for every Link (idempotent).
 2. Backfill NodePlacement.NodeDefinitionID where missing.
 3. Determine the set of hosts this lab touches.
 4. Call get_lab_status on each host; hosts that fail to respond are
    excluded from the merge below rather than concluded "undeployed".
 5. Merge per-host container status into NodeState, skipping nodes under
    the permanent-failure guard or mid-transition, polling readiness for
    newly-running nodes.
 6. Update NodePlacement to match observed locations, refusing to
    perpetuate a misplaced container that disagrees with Node.HostID.
 7. Recompute Lab.State from the aggregated NodeState counts.
 8. Recompute each LinkState's actual_state from endpoint readiness and
    tunnel status, broadcasting changes.
 9. Auto-connect links whose endpoints just became ready.
 10. Delete LinkState rows whose desired state is deleted.
 11. If any node remains out of sync and no job already covers this lab,
     create one enforcement job for the NLM to pick up.

# Concurrency

The reconciler's own ticks are serialized by an in-process mutex; the
distributed reconcile lock (fail-closed on a coordination-store outage)
is what prevents two manager processes from reconciling the same lab
concurrently.
*/
package reconciler
