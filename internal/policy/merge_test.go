package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdrift/docdrift/internal/errors"
)

func pack(id string, priority int, strategy MergeStrategy, rules ...Rule) *PolicyPack {
	return &PolicyPack{
		Metadata: Metadata{
			ID:                 id,
			Version:            "1.0.0",
			ScopePriority:      priority,
			ScopeMergeStrategy: strategy,
		},
		Rules: rules,
	}
}

func rule(id string, decision Decision) Rule {
	return Rule{
		ID:      id,
		Trigger: Trigger{Always: true},
		Obligations: []Obligation{
			{ComparatorID: "readme_commands", DecisionOnFail: decision},
		},
	}
}

func TestMergeDisjointRules(t *testing.T) {
	merged, err := Merge([]*PolicyPack{
		pack("a", 1, MergeMostRestrictive, rule("r1", DecisionWarn)),
		pack("b", 2, MergeMostRestrictive, rule("r2", DecisionBlock)),
	})
	require.NoError(t, err)
	assert.Len(t, merged.Rules, 2)
	assert.Empty(t, merged.Conflicts)
}

func TestMergeMostRestrictiveWins(t *testing.T) {
	merged, err := Merge([]*PolicyPack{
		pack("lenient", 1, MergeMostRestrictive, rule("r1", DecisionWarn)),
		pack("strict", 2, MergeMostRestrictive, rule("r1", DecisionBlock)),
	})
	require.NoError(t, err)
	require.Len(t, merged.Rules, 1)
	assert.Equal(t, DecisionBlock, merged.Rules[0].Rule.Obligations[0].DecisionOnFail)
	require.Len(t, merged.Conflicts, 1)
	assert.True(t, merged.Conflicts[0].Resolved)
}

func TestMergeMostRestrictiveCreditsWinnerPack(t *testing.T) {
	// Higher-priority pack composes first; the winner is whichever pack's
	// obligations survive, not whichever came later.
	merged, err := Merge([]*PolicyPack{
		pack("strict", 2, MergeMostRestrictive, rule("r1", DecisionBlock)),
		pack("lenient", 1, MergeMostRestrictive, rule("r1", DecisionWarn)),
	})
	require.NoError(t, err)
	require.Len(t, merged.Conflicts, 1)
	assert.Equal(t, "strict", merged.Conflicts[0].WinnerPackID)

	merged, err = Merge([]*PolicyPack{
		pack("lenient", 2, MergeMostRestrictive, rule("r1", DecisionWarn)),
		pack("strict", 1, MergeMostRestrictive, rule("r1", DecisionBlock)),
	})
	require.NoError(t, err)
	require.Len(t, merged.Conflicts, 1)
	assert.Equal(t, "strict", merged.Conflicts[0].WinnerPackID)
}

func TestMergeHighestPriorityWins(t *testing.T) {
	merged, err := Merge([]*PolicyPack{
		pack("low", 1, MergeHighestPriority, rule("r1", DecisionBlock)),
		pack("high", 5, MergeHighestPriority, rule("r1", DecisionWarn)),
	})
	require.NoError(t, err)
	require.Len(t, merged.Rules, 1)
	assert.Equal(t, "high", merged.Rules[0].PackID)
	assert.Equal(t, DecisionWarn, merged.Rules[0].Rule.Obligations[0].DecisionOnFail)
}

func TestMergeEqualPriorityConflicts(t *testing.T) {
	merged, err := Merge([]*PolicyPack{
		pack("a", 3, MergeHighestPriority, rule("r1", DecisionBlock)),
		pack("b", 3, MergeHighestPriority, rule("r1", DecisionWarn)),
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodePackMergeConflict, errors.CodeOf(err))
	require.Len(t, merged.Conflicts, 1)
	assert.Equal(t, "priority_conflict", merged.Conflicts[0].Kind)
	assert.False(t, merged.Conflicts[0].Resolved)
}

func TestMergeExplicitRefusesDuplicates(t *testing.T) {
	_, err := Merge([]*PolicyPack{
		pack("a", 1, MergeExplicit, rule("r1", DecisionBlock)),
		pack("b", 1, MergeExplicit, rule("r1", DecisionWarn)),
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodePackMergeConflict, errors.CodeOf(err))
}

func TestMergeExplicitCannotMixStrategies(t *testing.T) {
	_, err := Merge([]*PolicyPack{
		pack("a", 1, MergeExplicit, rule("r1", DecisionBlock)),
		pack("b", 1, MergeMostRestrictive, rule("r2", DecisionWarn)),
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodePackMergeConflict, errors.CodeOf(err))
}

func TestMergeDisabledRulesDropped(t *testing.T) {
	disabled := rule("r1", DecisionBlock)
	off := false
	disabled.Enabled = &off
	merged, err := Merge([]*PolicyPack{pack("a", 1, MergeMostRestrictive, disabled)})
	require.NoError(t, err)
	assert.Empty(t, merged.Rules)
}

func TestMergeEmpty(t *testing.T) {
	merged, err := Merge(nil)
	require.NoError(t, err)
	assert.Empty(t, merged.Rules)
}

func TestMostRestrictiveKeepsExtraObligations(t *testing.T) {
	a := rule("r1", DecisionWarn)
	b := rule("r1", DecisionWarn)
	b.Obligations = append(b.Obligations, Obligation{ComparatorID: "openapi_sync", DecisionOnFail: DecisionBlock})

	merged, err := Merge([]*PolicyPack{
		pack("a", 1, MergeMostRestrictive, a),
		pack("b", 1, MergeMostRestrictive, b),
	})
	require.NoError(t, err)
	require.Len(t, merged.Rules, 1)
	assert.Len(t, merged.Rules[0].Rule.Obligations, 2)
}
