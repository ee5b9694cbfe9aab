package drilldown

import "orgpulse/internal/personnel"

// ReconcileResult describes what a registry swap did to the selection.
type ReconcileResult struct {
	Previous      State
	Current       State
	Cleared       []string
	Reinitialized bool
}

// Changed reports whether the selection moved.
func (r ReconcileResult) Changed() bool {
	return r.Previous != r.Current
}

// Reconcile swaps in a new registry snapshot and keeps only the prefix of the
// selection that is still valid against it. A field whose record vanished, no
// longer reports to its parent selection, or is no longer routed under it is
// cleared along with everything below it. When no leader survives the
// initial selection is applied again; Reinitialized is only set when a leader
// was actually lost.
func (s *Selector) Reconcile(reg *personnel.Registry) ReconcileResult {
	result := ReconcileResult{Previous: s.state}
	s.reg = reg

	kept := State{}
	for tier := personnel.TierLeadership; tier <= MaxTier; tier++ {
		id := s.state.Field(tier)
		if id == "" {
			break
		}
		if !isCandidate(reg, kept, tier, id) {
			for t := tier; t <= MaxTier; t++ {
				if s.state.Field(t) != "" {
					result.Cleared = append(result.Cleared, fieldName(t))
				}
			}
			break
		}
		kept = withField(kept, tier, id)
	}
	s.state = kept

	if s.state.Leader == "" {
		s.initialize()
		result.Reinitialized = result.Previous.Leader != ""
	}
	result.Current = s.state
	return result
}

func fieldName(tier personnel.Tier) string {
	switch tier {
	case personnel.TierLeadership:
		return "leader"
	case personnel.TierMid:
		return "level1"
	case personnel.TierExecution:
		return "level2"
	default:
		return "unknown"
	}
}
