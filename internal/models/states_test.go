package models

import "testing"

func TestNextState(t *testing.T) {
	tests := []struct {
		from State
		want State
	}{
		{StateIngested, StateNormalized},
		{StateNormalized, StateEligibilityChecked},
		{StateEligibilityChecked, StateEvidenceBuilt},
		{StateEvidenceBuilt, StateDocsResolved},
		{StateDocsResolved, StateCompared},
		{StateCompared, StateClassified},
		{StateClassified, StatePolicyEvaluated},
		{StatePolicyEvaluated, StateRouted},
		{StateRouted, StatePatchPlanned},
		{StatePatchPlanned, StatePatchProposed},
		{StatePatchProposed, StateAwaitingHuman},
		{StateAwaitingHuman, ""},
		{StateApplied, ""},
		{StateFailed, ""},
	}
	for _, tt := range tests {
		if got := NextState(tt.from); got != tt.want {
			t.Errorf("NextState(%s) = %q, want %q", tt.from, got, tt.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []State{StateApplied, StateRejected, StateIgnored, StateFailed, StateFailedNeedsMapping, StateFailedPatchGen}
	for _, s := range terminal {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = false, want true", s)
		}
	}
	nonTerminal := []State{StateIngested, StateAwaitingHuman, StateSnoozed, StatePatchProposed}
	for _, s := range nonTerminal {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = true, want false", s)
		}
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
		want bool
	}{
		{"happy path step", StateIngested, StateNormalized, true},
		{"skipping a stage", StateIngested, StateEvidenceBuilt, false},
		{"backwards", StateCompared, StateDocsResolved, false},
		{"self loop", StateCompared, StateCompared, false},
		{"any to FAILED", StateDocsResolved, StateFailed, true},
		{"any to FAILED_NEEDS_MAPPING", StateEvidenceBuilt, StateFailedNeedsMapping, true},
		{"any to IGNORED", StateClassified, StateIgnored, true},
		{"proposed to awaiting", StatePatchProposed, StateAwaitingHuman, true},
		{"proposed to applied (auto-approve)", StatePatchProposed, StateApplied, true},
		{"routed straight to applied", StateRouted, StateApplied, false},
		{"awaiting to applied", StateAwaitingHuman, StateApplied, true},
		{"awaiting to rejected", StateAwaitingHuman, StateRejected, true},
		{"awaiting to snoozed", StateAwaitingHuman, StateSnoozed, true},
		{"awaiting to ignored", StateAwaitingHuman, StateIgnored, true},
		{"awaiting cannot resume pipeline", StateAwaitingHuman, StateNormalized, false},
		{"snoozed back to awaiting", StateSnoozed, StateAwaitingHuman, true},
		{"snoozed to ignored", StateSnoozed, StateIgnored, true},
		{"snoozed cannot apply directly", StateSnoozed, StateApplied, false},
		{"terminal never advances", StateApplied, StateAwaitingHuman, false},
		{"terminal never fails again", StateFailed, StateFailed, false},
		{"rejected stays rejected", StateRejected, StateIgnored, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
