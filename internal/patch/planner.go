package patch

import (
	"log/slog"

	"github.com/docdrift/docdrift/internal/models"
)

// Style planning: a decision table indexed by (driftType, source family)
// plus confidence gates, then constrained by what the target system allows.

// gitSystems deliver patches as pull requests; everything else is wiki-style
var gitSystems = map[string]bool{
	"github_readme": true,
	"swagger":       true,
	"backstage":     true,
	"gitbook":       true,
}

// allowedStyles constrains each target system. Systems not listed accept
// any style.
var allowedStyles = map[string][]models.PatchStyle{
	"swagger": {
		models.StyleUpdateDescription, models.StyleUpdateParam,
		models.StyleUpdatePath, models.StyleAddExample, models.StyleCreatePR,
	},
	"backstage": {
		models.StyleUpdateOwner, models.StyleUpdateDescription, models.StyleCreatePR,
	},
}

// Planner picks the patch style for a classified candidate
type Planner struct {
	logger *slog.Logger
}

func NewPlanner() *Planner {
	return &Planner{logger: slog.Default().With("component", "patch.planner")}
}

// Plan resolves the style for the drift against its target system
func (p *Planner) Plan(c *models.DriftCandidate, ref models.DocRef) models.PatchStyle {
	style := baseStyle(c)
	style = constrain(style, ref.System)

	p.logger.Debug("patch style planned",
		"drift_id", c.ID,
		"drift_type", c.DriftType,
		"system", ref.System,
		"style", style,
	)
	return style
}

func baseStyle(c *models.DriftCandidate) models.PatchStyle {
	if c.CoverageGap() && c.DriftType == models.DriftCoverage {
		return models.StyleAddSection
	}

	switch c.DriftType {
	case models.DriftInstruction:
		if isGitHubSource(c.SourceType) && c.Confidence >= 0.85 {
			return models.StyleReplaceSteps
		}
		return models.StyleAddNote
	case models.DriftProcess:
		if c.SourceType == models.SourcePagerDutyIncident && c.Confidence >= 0.75 {
			return models.StyleReorderSteps
		}
		return models.StyleAddNote
	case models.DriftOwnership:
		return models.StyleUpdateOwnerBlock
	case models.DriftEnvironment:
		if c.Confidence >= 0.85 {
			return models.StyleReplaceSteps
		}
		return models.StyleAddNote
	case models.DriftCoverage:
		return models.StyleAddSection
	}
	return models.StyleAddNote
}

// constrain maps a style the target system refuses onto its fallback:
// add_note for wiki systems, create_pr for Git systems.
func constrain(style models.PatchStyle, system string) models.PatchStyle {
	allowed, restricted := allowedStyles[system]
	if !restricted {
		return style
	}
	for _, s := range allowed {
		if s == style {
			return style
		}
	}
	// Ownership maps onto backstage's own owner style before falling back
	if system == "backstage" && style == models.StyleUpdateOwnerBlock {
		return models.StyleUpdateOwner
	}
	if gitSystems[system] {
		return models.StyleCreatePR
	}
	return models.StyleAddNote
}

func isGitHubSource(st models.SourceType) bool {
	return st == models.SourceGitHubPR || st == models.SourceGitHubIaC || st == models.SourceGitHubCodeowners
}
