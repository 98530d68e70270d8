package policy

import (
	"fmt"
	"sort"

	"github.com/docdrift/docdrift/internal/errors"
)

// MergedRule is one rule of the effective pack with provenance
type MergedRule struct {
	Rule   Rule   `json:"rule"`
	PackID string `json:"pack_id"`
}

// MergeConflict records a rule collision and how (or whether) it resolved
type MergeConflict struct {
	RuleID       string   `json:"rule_id"`
	Kind         string   `json:"kind"` // obligation_conflict | priority_conflict | merge_strategy_conflict
	PackIDs      []string `json:"pack_ids"`
	Resolved     bool     `json:"resolved"`
	WinnerPackID string   `json:"winner_pack_id,omitempty"`
}

// MergedPack is the effective policy after composing every applicable pack
type MergedPack struct {
	Rules     []MergedRule    `json:"rules"`
	Conflicts []MergeConflict `json:"conflicts,omitempty"`
	Strategy  MergeStrategy   `json:"strategy"`
}

// Merge composes several applicable packs into one effective rule set.
// The strategy is taken from the packs themselves; EXPLICIT packs refuse to
// mix with any other strategy.
func Merge(packs []*PolicyPack) (*MergedPack, error) {
	if len(packs) == 0 {
		return &MergedPack{}, nil
	}

	explicit, other := 0, 0
	for _, p := range packs {
		if p.Metadata.ScopeMergeStrategy == MergeExplicit {
			explicit++
		} else {
			other++
		}
	}
	if explicit > 0 && other > 0 {
		return nil, errors.New(errors.CodePackMergeConflict,
			"merge_strategy_conflict: EXPLICIT packs cannot be combined with other strategies")
	}

	strategy := packs[0].Metadata.ScopeMergeStrategy
	if strategy == "" {
		strategy = MergeMostRestrictive
	}

	// Deterministic composition order: priority desc, then pack id
	ordered := make([]*PolicyPack, len(packs))
	copy(ordered, packs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Metadata.ScopePriority != ordered[j].Metadata.ScopePriority {
			return ordered[i].Metadata.ScopePriority > ordered[j].Metadata.ScopePriority
		}
		return ordered[i].Metadata.ID < ordered[j].Metadata.ID
	})

	merged := &MergedPack{Strategy: strategy}
	byRule := make(map[string]int) // ruleID -> index in merged.Rules

	for _, pack := range ordered {
		for _, rule := range pack.Rules {
			if !rule.IsEnabled() {
				continue
			}
			idx, exists := byRule[rule.ID]
			if !exists {
				byRule[rule.ID] = len(merged.Rules)
				merged.Rules = append(merged.Rules, MergedRule{Rule: rule, PackID: pack.Metadata.ID})
				continue
			}

			existing := &merged.Rules[idx]
			if obligationsEqual(existing.Rule.Obligations, rule.Obligations) {
				continue
			}

			conflict := MergeConflict{
				RuleID:  rule.ID,
				Kind:    "obligation_conflict",
				PackIDs: []string{existing.PackID, pack.Metadata.ID},
			}

			switch strategy {
			case MergeMostRestrictive:
				combined := mostRestrictive(existing.Rule, rule)
				conflict.Resolved = true
				// Credit the pack whose obligations survived intact; a true
				// mix of both sides names no single winner.
				switch {
				case obligationsEqual(combined.Obligations, existing.Rule.Obligations):
					conflict.WinnerPackID = existing.PackID
				case obligationsEqual(combined.Obligations, rule.Obligations):
					conflict.WinnerPackID = pack.Metadata.ID
				}
				existing.Rule = *combined
			case MergeHighestPriority:
				winnerPack := packByID(ordered, existing.PackID)
				if winnerPack.Metadata.ScopePriority == pack.Metadata.ScopePriority {
					conflict.Kind = "priority_conflict"
				} else {
					// ordered is priority-desc so the existing entry wins
					conflict.Resolved = true
					conflict.WinnerPackID = existing.PackID
				}
			case MergeExplicit:
				// EXPLICIT requires authors to deduplicate; conflicts stay
				// unresolved and block evaluation.
			}
			merged.Conflicts = append(merged.Conflicts, conflict)
		}
	}

	for _, c := range merged.Conflicts {
		if !c.Resolved {
			return merged, errors.Newf(errors.CodePackMergeConflict,
				"%s on rule %s between packs %v", c.Kind, c.RuleID, c.PackIDs)
		}
	}
	return merged, nil
}

// mostRestrictive combines two same-id rules: per obligation position the
// harsher decisionOnFail wins; extra obligations from either side are kept.
func mostRestrictive(a, b Rule) *Rule {
	out := a
	out.Obligations = append([]Obligation(nil), a.Obligations...)

	for _, ob := range b.Obligations {
		matched := false
		for i, existing := range out.Obligations {
			if existing.ComparatorID == ob.ComparatorID && existing.ComparatorID != "" {
				matched = true
				if restrictiveness(ob.DecisionOnFail) > restrictiveness(existing.DecisionOnFail) {
					out.Obligations[i].DecisionOnFail = ob.DecisionOnFail
				}
				break
			}
		}
		if !matched {
			out.Obligations = append(out.Obligations, ob)
		}
	}
	return &out
}

func obligationsEqual(a, b []Obligation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if fmt.Sprintf("%v", a[i]) != fmt.Sprintf("%v", b[i]) {
			return false
		}
	}
	return true
}

func packByID(packs []*PolicyPack, id string) *PolicyPack {
	for _, p := range packs {
		if p.Metadata.ID == id {
			return p
		}
	}
	return packs[0]
}
