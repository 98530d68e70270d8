package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdrift/docdrift/internal/models"
)

func TestCompareNoDrift(t *testing.T) {
	e := NewEngine()
	artifacts := &models.BaselineArtifacts{
		Commands: []string{"make deploy"},
		Tools:    []string{"helm"},
	}
	res := e.Compare(artifacts, artifacts, "")
	assert.False(t, res.HasDrift)
	assert.False(t, res.HasCoverageGap)
	assert.Empty(t, res.Conflicts)
	assert.Empty(t, res.Recommendation)
}

func TestCompareInstructionDrift(t *testing.T) {
	e := NewEngine()
	source := &models.BaselineArtifacts{Commands: []string{"helm upgrade payments ./chart"}}
	doc := &models.BaselineArtifacts{Commands: []string{"kubectl apply -f deploy.yaml"}}

	res := e.Compare(source, doc, "")
	require.True(t, res.HasDrift)
	assert.Equal(t, models.DriftInstruction, res.DriftType)
	assert.InDelta(t, 0.75, res.Confidence, 0.001)
	require.Len(t, res.Conflicts, 1)
	assert.Contains(t, res.Conflicts[0], "kubectl apply -f deploy.yaml")
	assert.Contains(t, res.Conflicts[0], "helm upgrade payments ./chart")
	assert.Equal(t, models.RecommendReplaceSteps, res.Recommendation)
}

func TestCompareStaleEndpoint(t *testing.T) {
	e := NewEngine()
	source := &models.BaselineArtifacts{Endpoints: []string{"/v2/charges"}}
	doc := &models.BaselineArtifacts{Endpoints: []string{"/v1/charges"}}

	res := e.Compare(source, doc, "")
	require.True(t, res.HasDrift)
	assert.Equal(t, models.DriftInstruction, res.DriftType)
	assert.Contains(t, res.Conflicts[0], "/v1/charges")
}

func TestCompareOwnershipConflictWinsPriority(t *testing.T) {
	e := NewEngine()
	source := &models.BaselineArtifacts{
		Owners:   []string{"team-billing"},
		Commands: []string{"make deploy-v2"},
	}
	doc := &models.BaselineArtifacts{
		Owners:   []string{"team-payments"},
		Commands: []string{"make deploy"},
	}

	res := e.Compare(source, doc, "")
	require.True(t, res.HasDrift)
	assert.Equal(t, models.DriftOwnership, res.DriftType, "ownership outranks instruction in tie-breaking")
	assert.Contains(t, res.AllDriftTypes, models.DriftInstruction)
	assert.Equal(t, models.RecommendUpdateOwnership, res.Recommendation)
}

func TestCompareToolMigration(t *testing.T) {
	e := NewEngine()
	source := &models.BaselineArtifacts{
		Tools:     []string{"helm"},
		Decisions: []string{"migrated kubectl to helm"},
	}
	doc := &models.BaselineArtifacts{Tools: []string{"kubectl"}}

	res := e.Compare(source, doc, "")
	require.True(t, res.HasDrift)
	assert.Equal(t, models.DriftEnvironment, res.DriftType)
	assert.InDelta(t, 0.85, res.Confidence, 0.001)
	assert.Contains(t, res.Conflicts[0], "kubectl")
	assert.Contains(t, res.Conflicts[0], "migrated away")
}

func TestCompareCoverageGapWithoutDrift(t *testing.T) {
	e := NewEngine()
	source := &models.BaselineArtifacts{
		Scenarios: []string{"redis eviction storm"},
	}
	doc := &models.BaselineArtifacts{
		Steps: []string{"restart the consumer", "check the dashboard"},
	}

	res := e.Compare(source, doc, "")
	assert.False(t, res.HasDrift, "coverage is orthogonal to drift")
	assert.True(t, res.HasCoverageGap)
	assert.Equal(t, []string{"redis eviction storm"}, res.CoverageGaps)
	assert.Equal(t, models.RecommendAddSection, res.Recommendation)
}

func TestCompareCoverageScenarioAlreadyMentioned(t *testing.T) {
	e := NewEngine()
	source := &models.BaselineArtifacts{Scenarios: []string{"eviction"}}
	doc := &models.BaselineArtifacts{Steps: []string{"during an eviction storm, scale up"}}

	res := e.Compare(source, doc, "")
	assert.False(t, res.HasCoverageGap)
}

func TestCompareProcessDrift(t *testing.T) {
	e := NewEngine()
	source := &models.BaselineArtifacts{Steps: []string{"page the on-call", "open an incident channel"}}
	doc := &models.BaselineArtifacts{Steps: []string{"page the on-call"}}

	res := e.Compare(source, doc, "")
	require.True(t, res.HasDrift)
	assert.Equal(t, models.DriftProcess, res.DriftType)
	assert.Contains(t, res.NewContent, "step open an incident channel")
}

func TestAdjustByKeywords(t *testing.T) {
	tests := []struct {
		name string
		conf float64
		text string
		want float64
	}{
		{"no hints", 0.7, "plain refactor", 0.7},
		{"three positives boost", 0.7, "deprecated the old flow, breaking change, switch to v2", 0.8},
		{"two positives no boost", 0.7, "deprecated and removed", 0.7},
		{"two negatives penalize", 0.7, "fix typo in draft", 0.55},
		{"mixed cancels boost", 0.7, "deprecated, breaking, migrate, but still wip and a draft", 0.55},
		{"clamped at one", 0.95, "deprecated, breaking, renamed everywhere", 1.0},
		{"clamped at zero", 0.1, "typo revert whitespace", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdjustByKeywords(tt.conf, tt.text)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestCompareCaseInsensitiveDiff(t *testing.T) {
	e := NewEngine()
	source := &models.BaselineArtifacts{Commands: []string{"Make Deploy"}}
	doc := &models.BaselineArtifacts{Commands: []string{"make deploy"}}
	res := e.Compare(source, doc, "")
	assert.False(t, res.HasDrift, "case-only differences are not drift")
}
