package patch

import (
	"testing"

	"github.com/docdrift/docdrift/internal/models"
)

func TestPlannerStyleTable(t *testing.T) {
	tests := []struct {
		name       string
		driftType  models.DriftType
		source     models.SourceType
		confidence float64
		system     string
		want       models.PatchStyle
	}{
		{"confident github instruction", models.DriftInstruction, models.SourceGitHubPR, 0.9, "confluence", models.StyleReplaceSteps},
		{"hesitant instruction adds note", models.DriftInstruction, models.SourceGitHubPR, 0.7, "confluence", models.StyleAddNote},
		{"instruction from alert adds note", models.DriftInstruction, models.SourceDatadogAlert, 0.9, "confluence", models.StyleAddNote},
		{"confident incident process reorders", models.DriftProcess, models.SourcePagerDutyIncident, 0.8, "confluence", models.StyleReorderSteps},
		{"hesitant process adds note", models.DriftProcess, models.SourcePagerDutyIncident, 0.6, "confluence", models.StyleAddNote},
		{"ownership", models.DriftOwnership, models.SourceGitHubCodeowners, 0.9, "confluence", models.StyleUpdateOwnerBlock},
		{"confident environment replaces", models.DriftEnvironment, models.SourceGitHubIaC, 0.9, "notion", models.StyleReplaceSteps},
		{"coverage adds section", models.DriftCoverage, models.SourceSlackCluster, 0.6, "confluence", models.StyleAddSection},
		{"ownership on backstage maps to owner style", models.DriftOwnership, models.SourceGitHubCodeowners, 0.9, "backstage", models.StyleUpdateOwner},
		{"replace on swagger falls back to PR", models.DriftInstruction, models.SourceGitHubPR, 0.9, "swagger", models.StyleCreatePR},
		{"note on backstage falls back to PR", models.DriftInstruction, models.SourceGitHubPR, 0.7, "backstage", models.StyleCreatePR},
	}
	p := NewPlanner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &models.DriftCandidate{
				ID:         "d1",
				DriftType:  tt.driftType,
				SourceType: tt.source,
				Confidence: tt.confidence,
			}
			got := p.Plan(c, models.DocRef{System: tt.system, ID: "X"})
			if got != tt.want {
				t.Errorf("Plan(%s/%s conf=%.2f on %s) = %s, want %s",
					tt.driftType, tt.source, tt.confidence, tt.system, got, tt.want)
			}
		})
	}
}

func TestPlannerCoverageGapOverride(t *testing.T) {
	p := NewPlanner()
	c := &models.DriftCandidate{
		ID:         "d1",
		DriftType:  models.DriftCoverage,
		SourceType: models.SourceSlackCluster,
		Confidence: 0.5,
		ComparisonResult: &models.ComparisonResult{
			HasCoverageGap: true,
		},
	}
	if got := p.Plan(c, models.DocRef{System: "confluence", ID: "X"}); got != models.StyleAddSection {
		t.Errorf("coverage gap plan = %s, want %s", got, models.StyleAddSection)
	}
}
