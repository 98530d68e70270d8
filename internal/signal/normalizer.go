package signal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/models"
)

// iacPatterns mark a github_pr as infrastructure-as-code when any changed
// file matches.
var iacPatterns = []string{"*.tf", "*.tfvars", "Pulumi.*.yml", "Pulumi.*.yaml", "*.cfn.yml", "*.cfn.yaml", "*.cfn.json"}

func matchesIaC(p string) bool {
	base := path.Base(p)
	for _, pat := range iacPatterns {
		if ok, _ := path.Match(pat, base); ok {
			return true
		}
	}
	// CloudFormation templates commonly live under cloudformation/
	return strings.Contains(p, "cloudformation/")
}

func isCodeowners(p string) bool {
	base := path.Base(p)
	return base == "CODEOWNERS"
}

// NormalizeGitHubPR converts a pull_request payload into a canonical
// SignalEvent. The source type is reclassified to github_iac or
// github_codeowners when the diff warrants it (codeowners wins when both).
func NormalizeGitHubPR(workspaceID string, p *GitHubPRPayload) (*models.SignalEvent, error) {
	changed := make([]models.ChangedFile, 0, len(p.ChangedFiles))
	total := 0
	hasIaC, hasCodeowners := false, false
	for _, f := range p.ChangedFiles {
		changed = append(changed, models.ChangedFile{
			Path:      f.Filename,
			Status:    f.Status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Patch:     f.Patch,
		})
		total += f.Additions + f.Deletions
		if matchesIaC(f.Filename) {
			hasIaC = true
		}
		if isCodeowners(f.Filename) {
			hasCodeowners = true
		}
	}

	sourceType := models.SourceGitHubPR
	if hasIaC {
		sourceType = models.SourceGitHubIaC
	}
	if hasCodeowners {
		sourceType = models.SourceGitHubCodeowners
	}

	occurredAt := time.Now().UTC()
	if p.PullRequest.MergedAt != nil {
		occurredAt = p.PullRequest.MergedAt.UTC()
	}

	ev := &models.SignalEvent{
		WorkspaceID: workspaceID,
		ID: fmt.Sprintf("github_pr_%s_%s_%d",
			p.Repository.Owner.Login, p.Repository.Name, p.PullRequest.Number),
		SourceType: sourceType,
		OccurredAt: occurredAt,
		Service:    p.Service,
		Repo:       p.Repository.FullName,
		Extracted: &models.Extracted{
			GitHubPR: &models.GitHubPRExtracted{
				Number:       p.PullRequest.Number,
				Title:        p.PullRequest.Title,
				Body:         p.PullRequest.Body,
				Author:       p.PullRequest.User.Login,
				Merged:       p.PullRequest.Merged,
				BaseRef:      p.PullRequest.Base.Ref,
				HeadRef:      p.PullRequest.Head.Ref,
				HeadSHA:      p.PullRequest.Head.SHA,
				Owner:        p.Repository.Owner.Login,
				Repo:         p.Repository.Name,
				ChangedFiles: changed,
				TotalChanges: total,
				Diff:         p.Diff,
				Installation: p.Installation.ID,
			},
		},
	}
	ev.RawPayload, _ = json.Marshal(p)

	if err := Validate(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// NormalizePagerDuty converts an incident payload into a canonical SignalEvent
func NormalizePagerDuty(workspaceID string, p *PagerDutyPayload) (*models.SignalEvent, error) {
	timeline := make([]models.TimelineEntry, 0, len(p.Incident.Timeline))
	for _, t := range p.Incident.Timeline {
		timeline = append(timeline, models.TimelineEntry{At: t.At, Summary: t.Summary, Actor: t.Actor})
	}

	occurredAt := p.Incident.CreatedAt
	if p.Incident.ResolvedAt != nil {
		occurredAt = *p.Incident.ResolvedAt
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	ev := &models.SignalEvent{
		WorkspaceID: workspaceID,
		ID:          fmt.Sprintf("pagerduty_incident_%s", p.Incident.ID),
		SourceType:  models.SourcePagerDutyIncident,
		OccurredAt:  occurredAt.UTC(),
		Service:     p.Incident.Service,
		Severity:    p.Incident.Priority,
		Extracted: &models.Extracted{
			PagerDuty: &models.PagerDutyExtracted{
				IncidentID:       p.Incident.ID,
				Status:           p.Incident.Status,
				Priority:         p.Incident.Priority,
				Service:          p.Incident.Service,
				DurationMinutes:  p.Incident.DurationMinutes,
				Responders:       p.Incident.Responders,
				Timeline:         timeline,
				EscalationPolicy: p.Incident.EscalationPolicy,
				Teams:            p.Incident.Teams,
			},
		},
	}
	ev.RawPayload, _ = json.Marshal(p)

	if err := Validate(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// NormalizeSlackCluster converts a question-cluster payload into a canonical
// SignalEvent. The deterministic ID hashes channel plus the representative
// question so the same cluster re-posted is idempotent.
func NormalizeSlackCluster(workspaceID string, p *SlackClusterPayload) (*models.SignalEvent, error) {
	messages := make([]models.ClusterMessage, 0, len(p.Samples))
	questions := make([]string, 0, len(p.Samples)+1)
	if p.RepresentativeQuestion != "" {
		questions = append(questions, p.RepresentativeQuestion)
	}
	for _, m := range p.Samples {
		messages = append(messages, models.ClusterMessage{User: m.User, Text: m.Text, At: m.At})
		questions = append(questions, m.Text)
	}

	h := sha256.Sum256([]byte(p.Channel + "\n" + p.RepresentativeQuestion))
	occurredAt := p.LastSeen
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	ev := &models.SignalEvent{
		WorkspaceID: workspaceID,
		ID:          fmt.Sprintf("slack_cluster_%s", hex.EncodeToString(h[:8])),
		SourceType:  models.SourceSlackCluster,
		OccurredAt:  occurredAt.UTC(),
		Service:     p.Service,
		Extracted: &models.Extracted{
			SlackCluster: &models.SlackClusterExtracted{
				Channel:      p.Channel,
				ClusterSize:  p.MessageCount,
				UniqueAskers: p.UniqueAskers,
				Questions:    questions,
				Messages:     messages,
				FirstSeen:    p.FirstSeen,
				LastSeen:     p.LastSeen,
			},
		},
	}
	ev.RawPayload, _ = json.Marshal(p)

	if err := Validate(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// NormalizeMonitorAlert converts a monitoring alert payload into a canonical
// SignalEvent. source must be datadog_alert or grafana_alert.
func NormalizeMonitorAlert(workspaceID string, source models.SourceType, p *MonitorAlertPayload) (*models.SignalEvent, error) {
	if source != models.SourceDatadogAlert && source != models.SourceGrafanaAlert {
		return nil, errors.Newf(errors.CodeExtractedSchemaViolation, "unsupported monitor source %q", source)
	}

	occurredAt := p.TriggeredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	service := p.Service
	if service == "" {
		service = serviceFromTags(p.Tags)
	}

	ev := &models.SignalEvent{
		WorkspaceID: workspaceID,
		ID:          fmt.Sprintf("%s_%s", source, p.AlertID),
		SourceType:  source,
		OccurredAt:  occurredAt.UTC(),
		Service:     service,
		Severity:    p.Severity,
		Extracted: &models.Extracted{
			MonitorAlert: &models.MonitorAlertExtracted{
				AlertID:      p.AlertID,
				MonitorName:  p.MonitorName,
				Severity:     p.Severity,
				AlertType:    p.AlertType,
				Metric:       p.Metric,
				Threshold:    p.Threshold,
				CurrentValue: p.CurrentValue,
				Tags:         p.Tags,
				AlertURL:     p.AlertURL,
			},
		},
	}
	ev.RawPayload, _ = json.Marshal(p)

	if err := Validate(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func serviceFromTags(tags []string) string {
	for _, t := range tags {
		if strings.HasPrefix(t, "service:") {
			return strings.TrimPrefix(t, "service:")
		}
	}
	return ""
}
