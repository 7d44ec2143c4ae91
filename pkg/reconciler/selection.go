package reconciler

import (
	"github.com/cuemby/fleetd/pkg/types"
)

// selectLabsForReconciliation picks every lab worth a reconcile pass this
// tick: any transitional lab, plus any lab with a pending, not-yet-ready,
// errored, or desired/actual-mismatched node, or a running node missing
// its placement row.
func (r *Reconciler) selectLabsForReconciliation() ([]string, error) {
	labs, err := r.store.ListLabs()
	if err != nil {
		return nil, err
	}

	var selected []string
	for _, lab := range labs {
		needs, err := r.labNeedsReconciliation(lab)
		if err != nil {
			r.logger.Warn().Err(err).Str("lab_id", lab.ID).Msg("failed to evaluate lab for reconciliation")
			continue
		}
		if needs {
			selected = append(selected, lab.ID)
		}
	}
	return selected, nil
}

func (r *Reconciler) labNeedsReconciliation(lab *types.Lab) (bool, error) {
	switch lab.State {
	case types.LabStateStarting, types.LabStateStopping, types.LabStateUnknown:
		return true, nil
	}

	states, err := r.store.ListNodeStatesByLab(lab.ID)
	if err != nil {
		return false, err
	}
	if len(states) == 0 {
		return false, nil
	}

	placements, err := r.store.ListNodePlacementsByLab(lab.ID)
	if err != nil {
		return false, err
	}
	hasPlacement := make(map[string]bool, len(placements))
	for _, p := range placements {
		hasPlacement[p.NodeName] = true
	}

	for _, s := range states {
		switch {
		case s.ActualState == types.NodeActualPending:
			return true, nil
		case s.ActualState == types.NodeActualRunning && !s.IsReady:
			return true, nil
		case s.ActualState == types.NodeActualError:
			return true, nil
		case s.DesiredState == types.NodeDesiredRunning && (s.ActualState == types.NodeActualStopped || s.ActualState == types.NodeActualUndeployed || s.ActualState == types.NodeActualExited):
			return true, nil
		case s.ActualState == types.NodeActualRunning && !hasPlacement[s.NodeName]:
			return true, nil
		}
	}
	return false, nil
}
