package compare

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/docdrift/docdrift/internal/models"
)

// driftPriority breaks ties when several drift types fire. Coverage is not
// listed: it is orthogonal and co-occurs with any type.
var driftPriority = []models.DriftType{
	models.DriftOwnership,
	models.DriftInstruction,
	models.DriftEnvironment,
	models.DriftProcess,
}

// Keyword hints adjust confidence after the per-type scores are combined:
// +0.10 with at least three positive hits and no negative ones, -0.15 with
// two or more negative hits, clamped to [0,1].
var (
	positiveKeywords = []string{
		"deprecated", "migrate", "migration", "breaking", "renamed",
		"removed", "replaced", "no longer", "instead of", "switch to",
	}
	negativeKeywords = []string{
		"typo", "wip", "revert", "chore", "formatting", "whitespace",
		"experiment", "draft", "do not merge",
	}
)

// Engine diffs signal-side artifacts against document-side artifacts
type Engine struct {
	logger *slog.Logger
}

func NewEngine() *Engine {
	return &Engine{logger: slog.Default().With("component", "compare")}
}

// Compare produces the ComparisonResult for one (signal, document) pair.
// excerpt is the signal's human-readable text, used only for keyword hints.
func (e *Engine) Compare(source, doc *models.BaselineArtifacts, excerpt string) *models.ComparisonResult {
	res := &models.ComparisonResult{}
	scores := map[models.DriftType]float64{}

	e.compareOwnership(source, doc, scores, res)
	e.compareInstruction(source, doc, scores, res)
	e.compareEnvironment(source, doc, scores, res)
	e.compareProcess(source, doc, scores, res)
	e.compareCoverage(source, doc, res)

	for _, dt := range driftPriority {
		if scores[dt] > 0 {
			res.AllDriftTypes = append(res.AllDriftTypes, dt)
		}
	}
	if len(res.AllDriftTypes) > 0 {
		res.HasDrift = true
		res.DriftType = res.AllDriftTypes[0]
		max := 0.0
		for _, s := range scores {
			if s > max {
				max = s
			}
		}
		res.Confidence = AdjustByKeywords(max, excerpt)
	}

	res.Recommendation = recommendFor(res)

	e.logger.Debug("comparison complete",
		"drift_type", res.DriftType,
		"confidence", res.Confidence,
		"has_drift", res.HasDrift,
		"coverage_gap", res.HasCoverageGap,
	)
	return res
}

func (e *Engine) compareOwnership(source, doc *models.BaselineArtifacts, scores map[models.DriftType]float64, res *models.ComparisonResult) {
	if len(source.Owners) == 0 && len(source.Teams) == 0 {
		return
	}
	conflicts := 0
	for _, owner := range diff(doc.Owners, source.Owners) {
		if len(source.Owners) > 0 {
			res.Conflicts = append(res.Conflicts,
				fmt.Sprintf("doc lists owner %s, source indicates %s", owner, strings.Join(source.Owners, ", ")))
			conflicts++
		}
	}
	for _, team := range diff(doc.Teams, source.Teams) {
		if len(source.Teams) > 0 {
			res.Conflicts = append(res.Conflicts,
				fmt.Sprintf("doc lists team %s, source indicates %s", team, strings.Join(source.Teams, ", ")))
			conflicts++
		}
	}
	newOwners := diff(source.Owners, doc.Owners)
	if conflicts > 0 {
		scores[models.DriftOwnership] = 0.85
	} else if len(newOwners) > 0 && len(doc.Owners) > 0 {
		scores[models.DriftOwnership] = 0.65
		for _, o := range newOwners {
			res.NewContent = append(res.NewContent, "owner "+o)
		}
	}
}

func (e *Engine) compareInstruction(source, doc *models.BaselineArtifacts, scores map[models.DriftType]float64, res *models.ComparisonResult) {
	score := 0.0

	staleCommands := diff(doc.Commands, source.Commands)
	newCommands := diff(source.Commands, doc.Commands)
	if len(source.Commands) > 0 && len(staleCommands) > 0 && len(newCommands) > 0 {
		score = 0.75
		for i, stale := range staleCommands {
			replacement := newCommands[min(i, len(newCommands)-1)]
			res.Conflicts = append(res.Conflicts,
				fmt.Sprintf("doc says %q, source says %q", stale, replacement))
		}
	} else if len(newCommands) > 0 && len(doc.Commands) > 0 {
		score = 0.6
		for _, c := range newCommands {
			res.NewContent = append(res.NewContent, "command "+c)
		}
	}

	staleEndpoints := diff(doc.Endpoints, source.Endpoints)
	if len(source.Endpoints) > 0 && len(staleEndpoints) > 0 {
		if score < 0.7 {
			score = 0.7
		}
		for _, ep := range staleEndpoints {
			res.Conflicts = append(res.Conflicts, fmt.Sprintf("doc references endpoint %s not present in source", ep))
		}
	}

	staleKeys := diff(doc.ConfigKeys, source.ConfigKeys)
	if len(source.ConfigKeys) > 0 && len(staleKeys) > 0 && len(doc.ConfigKeys) > 0 {
		if score < 0.6 {
			score = 0.6
		}
		for _, k := range staleKeys {
			res.Conflicts = append(res.Conflicts, fmt.Sprintf("doc references config key %s not present in source", k))
		}
	}

	if score > 0 {
		scores[models.DriftInstruction] = score
	}
}

func (e *Engine) compareEnvironment(source, doc *models.BaselineArtifacts, scores map[models.DriftType]float64, res *models.ComparisonResult) {
	score := 0.0

	staleTools := intersect(doc.Tools, migratedAway(source))
	if len(staleTools) > 0 {
		score = 0.85
		for _, t := range staleTools {
			res.Conflicts = append(res.Conflicts, fmt.Sprintf("doc still describes %s, source migrated away from it", t))
		}
	} else if len(source.Tools) > 0 && len(doc.Tools) > 0 {
		stale := diff(doc.Tools, source.Tools)
		if len(stale) > 0 {
			score = 0.6
			for _, t := range stale {
				res.Conflicts = append(res.Conflicts, fmt.Sprintf("doc mentions tool %s absent from source", t))
			}
		}
	}

	staleVersions := diff(doc.Versions, source.Versions)
	if len(source.Versions) > 0 && len(staleVersions) > 0 && len(doc.Versions) > 0 {
		if score < 0.55 {
			score = 0.55
		}
		for _, v := range staleVersions {
			res.Conflicts = append(res.Conflicts, fmt.Sprintf("doc pins version %s, source moved on", v))
		}
	}

	if score > 0 {
		scores[models.DriftEnvironment] = score
	}
}

func (e *Engine) compareProcess(source, doc *models.BaselineArtifacts, scores map[models.DriftType]float64, res *models.ComparisonResult) {
	if len(source.Steps) == 0 && len(source.Sequences) == 0 {
		return
	}
	newSteps := diff(source.Steps, doc.Steps)
	if len(doc.Steps) > 0 && len(newSteps) > 0 {
		scores[models.DriftProcess] = 0.6
		for _, s := range newSteps {
			res.NewContent = append(res.NewContent, "step "+s)
		}
	}
	if len(source.Sequences) > 0 && len(doc.Steps) > 0 {
		if scores[models.DriftProcess] < 0.55 {
			scores[models.DriftProcess] = 0.55
		}
	}
}

func (e *Engine) compareCoverage(source, doc *models.BaselineArtifacts, res *models.ComparisonResult) {
	gaps := diff(source.Scenarios, doc.Steps)
	gaps = append(gaps, diff(source.Features, doc.Steps)...)
	for _, g := range gaps {
		if !mentioned(g, doc) {
			res.CoverageGaps = append(res.CoverageGaps, g)
		}
	}
	res.HasCoverageGap = len(res.CoverageGaps) > 0
}

// mentioned checks whether any doc artifact loosely contains the scenario
func mentioned(scenario string, doc *models.BaselineArtifacts) bool {
	needle := strings.ToLower(scenario)
	for _, tok := range doc.AllTokens() {
		hay := strings.ToLower(tok)
		if strings.Contains(hay, needle) || strings.Contains(needle, hay) {
			return true
		}
	}
	return false
}

func recommendFor(res *models.ComparisonResult) models.Recommendation {
	switch {
	case res.DriftType == models.DriftOwnership:
		return models.RecommendUpdateOwnership
	case len(res.Conflicts) > 0:
		return models.RecommendReplaceSteps
	case res.HasCoverageGap:
		return models.RecommendAddSection
	case res.HasDrift:
		return models.RecommendAddNote
	}
	return ""
}

// AdjustByKeywords applies the hint adjustment and clamps to [0,1]
func AdjustByKeywords(conf float64, text string) float64 {
	lower := strings.ToLower(text)
	pos, neg := 0, 0
	for _, k := range positiveKeywords {
		if strings.Contains(lower, k) {
			pos++
		}
	}
	for _, k := range negativeKeywords {
		if strings.Contains(lower, k) {
			neg++
		}
	}

	if pos >= 3 && neg == 0 {
		conf += 0.10
	}
	if neg >= 2 {
		conf -= 0.15
	}
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

// migratedAway lists tools the source decided to drop, read off the
// "migrated X to Y" decisions the extractor records.
func migratedAway(a *models.BaselineArtifacts) []string {
	var out []string
	for _, d := range a.Decisions {
		var from, to string
		if _, err := fmt.Sscanf(d, "migrated %s to %s", &from, &to); err == nil {
			out = append(out, from)
		}
	}
	return out
}

func diff(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[strings.ToLower(s)] = true
	}
	var out []string
	for _, s := range a {
		if !set[strings.ToLower(s)] {
			out = append(out, s)
		}
	}
	return out
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[strings.ToLower(s)] = true
	}
	var out []string
	for _, s := range a {
		if set[strings.ToLower(s)] {
			out = append(out, s)
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
