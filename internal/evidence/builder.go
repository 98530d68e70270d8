package evidence

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docdrift/docdrift/internal/fingerprint"
	"github.com/docdrift/docdrift/internal/models"
)

const maxExcerptChars = 4000

// criticalPathFragments mark operational surfaces whose drift is always
// worth surfacing at high impact.
var criticalPathFragments = []string{
	"deploy", "rollback", "auth", "secrets", "migration", "production",
}

// Builder assembles immutable EvidenceBundles from normalized signals
type Builder struct {
	logger *slog.Logger
}

func NewBuilder() *Builder {
	return &Builder{logger: slog.Default().With("component", "evidence")}
}

// Build produces a new bundle for the candidate. schemaVersion must be
// strictly greater than any previous bundle for the same candidate so that
// re-evaluation never mutates history.
func (b *Builder) Build(ev *models.SignalEvent, c *models.DriftCandidate, schemaVersion int) *models.EvidenceBundle {
	artifacts := FromSignal(ev)
	migrations := migrationsFor(ev)
	for _, m := range migrations {
		// Record both sides of the migration as tool artifacts so comparison
		// and fingerprinting see the transition.
		artifacts.Tools = appendUnique(artifacts.Tools, m.FromTool, m.ToTool)
		artifacts.Decisions = appendUnique(artifacts.Decisions,
			fmt.Sprintf("migrated %s to %s", m.FromTool, m.ToTool))
	}

	assessment := b.assess(ev, artifacts, migrations)

	targetSurface := c.Service
	if len(c.DocCandidates) > 0 {
		targetSurface = c.DocCandidates[0].Ref.System + ":" + c.Service
	}
	target := ""
	if len(c.DocCandidates) > 0 {
		target = c.DocCandidates[0].Ref.String()
	}
	fps := fingerprint.Compute(ev.SourceType, target, targetSurface, c.DriftType, artifacts)

	bundle := &models.EvidenceBundle{
		WorkspaceID:      c.WorkspaceID,
		BundleID:         uuid.NewString(),
		DriftCandidateID: c.ID,
		SourceEvidence: &models.SourceEvidence{
			Excerpt:   excerptFor(ev),
			Artifacts: artifacts,
		},
		Assessment:    assessment,
		Fingerprints:  fps,
		PackHash:      c.ActivePlanHash,
		SchemaVersion: schemaVersion,
		CreatedAt:     time.Now().UTC(),
	}

	b.logger.Debug("evidence bundle built",
		"drift_id", c.ID,
		"bundle_id", bundle.BundleID,
		"schema_version", schemaVersion,
		"impact_band", assessment.ImpactBand,
	)
	return bundle
}

func migrationsFor(ev *models.SignalEvent) []ToolMigration {
	if pr := ev.Extracted.GitHubPR; pr != nil {
		return DetectToolMigrations(pr)
	}
	return nil
}

// assess scores impact from which deterministic rules fired. Scores are
// additive and clamped to [0,1].
func (b *Builder) assess(ev *models.SignalEvent, a *models.BaselineArtifacts, migrations []ToolMigration) *models.Assessment {
	score := 0.0
	var fired []string
	var blast []string

	if ev.Service != "" {
		blast = append(blast, ev.Service)
	}

	for _, m := range migrations {
		if m.Confidence >= 0.8 {
			score += 0.4
			fired = append(fired, "tool_migration_high_confidence")
		} else {
			score += 0.2
			fired = append(fired, "tool_migration")
		}
	}

	for _, p := range a.Paths {
		if touchesCriticalPath(p) {
			score += 0.3
			fired = append(fired, "critical_path_touched")
			blast = append(blast, p)
			break
		}
	}

	switch {
	case ev.Extracted.PagerDuty != nil:
		inc := ev.Extracted.PagerDuty
		score += 0.3
		fired = append(fired, "incident_signal")
		if inc.Priority == "P1" || inc.Priority == "critical" {
			score += 0.2
			fired = append(fired, "high_severity_incident")
		}
		blast = append(blast, inc.Teams...)
	case ev.Extracted.SlackCluster != nil:
		cl := ev.Extracted.SlackCluster
		if cl.UniqueAskers >= 5 {
			score += 0.3
			fired = append(fired, "widespread_confusion")
		} else {
			score += 0.15
			fired = append(fired, "repeated_questions")
		}
	case ev.Extracted.MonitorAlert != nil:
		al := ev.Extracted.MonitorAlert
		score += 0.2
		fired = append(fired, "monitor_alert")
		if al.Severity == "critical" {
			score += 0.2
			fired = append(fired, "critical_alert")
		}
	case ev.Extracted.GitHubPR != nil:
		pr := ev.Extracted.GitHubPR
		if pr.TotalChanges > 500 {
			score += 0.2
			fired = append(fired, "large_change")
		} else if pr.TotalChanges > 0 {
			score += 0.1
			fired = append(fired, "merged_change")
		}
	}

	if len(a.Owners)+len(a.Teams) > 0 && ev.SourceType == models.SourceGitHubCodeowners {
		score += 0.3
		fired = append(fired, "ownership_change")
	}

	if score > 1 {
		score = 1
	}
	return &models.Assessment{
		ImpactScore: score,
		ImpactBand:  models.ImpactBandFor(score),
		FiredRules:  fired,
		BlastRadius: dedupe(blast),
	}
}

func touchesCriticalPath(p string) bool {
	lower := strings.ToLower(p)
	for _, frag := range criticalPathFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// excerptFor renders a bounded human-readable slice of the signal for the
// bundle and the reviewer card.
func excerptFor(ev *models.SignalEvent) string {
	var sb strings.Builder
	switch {
	case ev.Extracted.GitHubPR != nil:
		pr := ev.Extracted.GitHubPR
		fmt.Fprintf(&sb, "PR #%d: %s\n", pr.Number, pr.Title)
		if pr.Body != "" {
			sb.WriteString(pr.Body)
			sb.WriteString("\n")
		}
		sb.WriteString(pr.Diff)
	case ev.Extracted.PagerDuty != nil:
		inc := ev.Extracted.PagerDuty
		fmt.Fprintf(&sb, "Incident %s (%s) on %s\n", inc.IncidentID, inc.Status, inc.Service)
		for _, t := range inc.Timeline {
			fmt.Fprintf(&sb, "- %s: %s\n", t.At.Format(time.RFC3339), t.Summary)
		}
	case ev.Extracted.SlackCluster != nil:
		cl := ev.Extracted.SlackCluster
		fmt.Fprintf(&sb, "%d similar questions in %s:\n", cl.ClusterSize, cl.Channel)
		for _, q := range cl.Questions {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
	case ev.Extracted.MonitorAlert != nil:
		al := ev.Extracted.MonitorAlert
		fmt.Fprintf(&sb, "%s: %s (%s)\n", al.AlertType, al.MonitorName, al.Severity)
	}

	out := sb.String()
	if len(out) > maxExcerptChars {
		out = out[:maxExcerptChars]
	}
	return out
}

func appendUnique(set []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, s := range set {
			if s == it {
				found = true
				break
			}
		}
		if !found {
			set = append(set, it)
		}
	}
	return set
}
