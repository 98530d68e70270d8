package models

// State is the drift candidate lifecycle state
type State string

const (
	StateIngested           State = "INGESTED"
	StateNormalized         State = "NORMALIZED"
	StateEligibilityChecked State = "ELIGIBILITY_CHECKED"
	StateEvidenceBuilt      State = "EVIDENCE_BUILT"
	StateDocsResolved       State = "DOCS_RESOLVED"
	StateCompared           State = "COMPARED"
	StateClassified         State = "CLASSIFIED"
	StatePolicyEvaluated    State = "POLICY_EVALUATED"
	StateRouted             State = "ROUTED"
	StatePatchPlanned       State = "PATCH_PLANNED"
	StatePatchProposed      State = "PATCH_PROPOSED"
	StateAwaitingHuman      State = "AWAITING_HUMAN"

	StateApplied            State = "APPLIED"
	StateRejected           State = "REJECTED"
	StateSnoozed            State = "SNOOZED"
	StateIgnored            State = "IGNORED"
	StateFailed             State = "FAILED"
	StateFailedNeedsMapping State = "FAILED_NEEDS_MAPPING"
	StateFailedPatchGen     State = "FAILED_PATCH_GENERATION"
)

// pipelineOrder is the happy path through the non-terminal states.
var pipelineOrder = []State{
	StateIngested,
	StateNormalized,
	StateEligibilityChecked,
	StateEvidenceBuilt,
	StateDocsResolved,
	StateCompared,
	StateClassified,
	StatePolicyEvaluated,
	StateRouted,
	StatePatchPlanned,
	StatePatchProposed,
	StateAwaitingHuman,
}

// NextState returns the successor of a non-terminal state on the happy path.
// Returns "" for AWAITING_HUMAN (advances only via human action or snooze
// expiry) and for terminal states.
func NextState(s State) State {
	for i, st := range pipelineOrder {
		if st == s && i+1 < len(pipelineOrder) {
			return pipelineOrder[i+1]
		}
	}
	return ""
}

// IsTerminal reports whether a candidate in this state never advances again.
// SNOOZED is not terminal: it re-enters AWAITING_HUMAN on expiry.
func IsTerminal(s State) bool {
	switch s {
	case StateApplied, StateRejected, StateIgnored,
		StateFailed, StateFailedNeedsMapping, StateFailedPatchGen:
		return true
	}
	return false
}

// ValidTransition reports whether from → to is a legal edge.
// Legal edges are: the next happy-path stage, any state → terminal failure /
// IGNORED, AWAITING_HUMAN → {APPLIED, REJECTED, SNOOZED, IGNORED},
// SNOOZED → {AWAITING_HUMAN, IGNORED}, and a self-loop-free retry (same
// state is not a transition).
func ValidTransition(from, to State) bool {
	if IsTerminal(from) {
		return false
	}
	if from == to {
		return false
	}
	switch to {
	case StateFailed, StateFailedNeedsMapping, StateFailedPatchGen, StateIgnored:
		return true
	}
	if from == StateAwaitingHuman {
		switch to {
		case StateApplied, StateRejected, StateSnoozed:
			return true
		}
		return false
	}
	if from == StateSnoozed {
		return to == StateAwaitingHuman
	}
	if from == StatePatchProposed && to == StateAwaitingHuman {
		return true
	}
	// APPLIED is reachable directly from AWAITING_HUMAN only (handled above)
	// or from PATCH_PROPOSED when auto-approve fires during routing.
	if from == StatePatchProposed && to == StateApplied {
		return true
	}
	return NextState(from) == to
}
