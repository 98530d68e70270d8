package signal

import (
	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/models"
)

// Validate enforces the per-source required field set on a canonical
// SignalEvent. Violations are permanent: the candidate fails with
// EXTRACTED_SCHEMA_VIOLATION.
func Validate(ev *models.SignalEvent) error {
	if ev.Extracted == nil {
		return errors.New(errors.CodeExtractedSchemaViolation, "missing extracted payload")
	}

	fail := func(field string) error {
		return errors.Newf(errors.CodeExtractedSchemaViolation,
			"source %s missing required field %s", ev.SourceType, field).
			WithContext("signal_event_id", ev.ID)
	}

	switch ev.SourceType {
	case models.SourceGitHubPR, models.SourceGitHubIaC, models.SourceGitHubCodeowners:
		pr := ev.Extracted.GitHubPR
		if pr == nil {
			return fail("github_pr")
		}
		if len(pr.ChangedFiles) == 0 {
			return fail("changedFiles")
		}
		if pr.TotalChanges == 0 {
			return fail("totalChanges")
		}
		if pr.Diff == "" {
			return fail("diff")
		}
		// merged is required but false is meaningful; eligibility filters
		// unmerged PRs later, so only presence of the payload matters here.

	case models.SourcePagerDutyIncident:
		inc := ev.Extracted.PagerDuty
		if inc == nil {
			return fail("pagerduty_incident")
		}
		if inc.Status == "" {
			return fail("status")
		}
		if inc.Service == "" {
			return fail("service")
		}
		if len(inc.Responders) == 0 {
			return fail("responders")
		}
		if len(inc.Timeline) == 0 {
			return fail("timeline")
		}
		if inc.EscalationPolicy == "" {
			return fail("escalationPolicy")
		}
		if len(inc.Teams) == 0 {
			return fail("teams")
		}

	case models.SourceSlackCluster:
		cl := ev.Extracted.SlackCluster
		if cl == nil {
			return fail("slack_cluster")
		}
		if cl.ClusterSize < 2 {
			return fail("clusterSize")
		}
		if cl.UniqueAskers < 2 {
			return fail("uniqueAskers")
		}
		if len(cl.Questions) == 0 {
			return fail("questions")
		}
		if len(cl.Messages) == 0 {
			return fail("messages")
		}

	case models.SourceDatadogAlert, models.SourceGrafanaAlert:
		al := ev.Extracted.MonitorAlert
		if al == nil {
			return fail("monitor_alert")
		}
		if al.MonitorName == "" {
			return fail("monitorName")
		}
		if al.Severity == "" {
			return fail("severity")
		}
		if al.AlertType == "" {
			return fail("alertType")
		}
		if len(al.Tags) == 0 {
			return fail("tags")
		}

	default:
		return errors.Newf(errors.CodeExtractedSchemaViolation, "unknown source type %q", ev.SourceType)
	}

	return nil
}
