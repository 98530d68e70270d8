package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/models"
)

func prPayload(files ...ChangedFilePayload) *GitHubPRPayload {
	p := &GitHubPRPayload{}
	p.Action = "closed"
	p.PullRequest.Number = 42
	p.PullRequest.Title = "Switch deploy to helm"
	p.PullRequest.User.Login = "alice"
	p.PullRequest.Merged = true
	p.PullRequest.Base.Ref = "main"
	p.PullRequest.Head.Ref = "feat/helm"
	p.PullRequest.Head.SHA = "abc123"
	p.Repository.Name = "payments"
	p.Repository.FullName = "acme/payments"
	p.Repository.Owner.Login = "acme"
	p.ChangedFiles = files
	p.Diff = "+helm upgrade payments ./chart\n-kubectl apply -f deploy.yaml\n"
	p.Service = "payments"
	return p
}

func TestNormalizeGitHubPR(t *testing.T) {
	merged := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	p := prPayload(ChangedFilePayload{Filename: "deploy/run.sh", Status: "modified", Additions: 3, Deletions: 1})
	p.PullRequest.MergedAt = &merged

	ev, err := NormalizeGitHubPR("ws1", p)
	require.NoError(t, err)
	assert.Equal(t, "github_pr_acme_payments_42", ev.ID)
	assert.Equal(t, models.SourceGitHubPR, ev.SourceType)
	assert.Equal(t, merged, ev.OccurredAt)
	assert.Equal(t, "acme/payments", ev.Repo)
	require.NotNil(t, ev.Extracted.GitHubPR)
	assert.Equal(t, 4, ev.Extracted.GitHubPR.TotalChanges)
	assert.NotEmpty(t, ev.RawPayload)
}

func TestNormalizeGitHubPRReclassification(t *testing.T) {
	tests := []struct {
		name  string
		files []ChangedFilePayload
		want  models.SourceType
	}{
		{"plain code", []ChangedFilePayload{{Filename: "main.go", Status: "modified", Additions: 1}}, models.SourceGitHubPR},
		{"terraform", []ChangedFilePayload{{Filename: "infra/main.tf", Status: "modified", Additions: 1}}, models.SourceGitHubIaC},
		{"tfvars", []ChangedFilePayload{{Filename: "envs/prod.tfvars", Status: "modified", Additions: 1}}, models.SourceGitHubIaC},
		{"cloudformation dir", []ChangedFilePayload{{Filename: "cloudformation/stack.yaml", Status: "added", Additions: 1}}, models.SourceGitHubIaC},
		{"codeowners", []ChangedFilePayload{{Filename: ".github/CODEOWNERS", Status: "modified", Additions: 1}}, models.SourceGitHubCodeowners},
		{"codeowners wins over iac", []ChangedFilePayload{
			{Filename: "infra/main.tf", Status: "modified", Additions: 1},
			{Filename: "CODEOWNERS", Status: "modified", Additions: 1},
		}, models.SourceGitHubCodeowners},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := NormalizeGitHubPR("ws1", prPayload(tt.files...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.SourceType)
		})
	}
}

func TestNormalizeGitHubPRRejectsEmptyDiff(t *testing.T) {
	p := prPayload(ChangedFilePayload{Filename: "main.go", Status: "modified", Additions: 1})
	p.Diff = ""
	_, err := NormalizeGitHubPR("ws1", p)
	require.Error(t, err)
	assert.Equal(t, errors.CodeExtractedSchemaViolation, errors.CodeOf(err))
}

func pdPayload() *PagerDutyPayload {
	p := &PagerDutyPayload{}
	p.Incident.ID = "PD123"
	p.Incident.Status = "resolved"
	p.Incident.Priority = "P1"
	p.Incident.Service = "payments"
	p.Incident.DurationMinutes = 45
	p.Incident.EscalationPolicy = "payments-oncall"
	p.Incident.Teams = []string{"payments"}
	p.Incident.Responders = []string{"alice"}
	p.Incident.Timeline = []struct {
		At      time.Time `json:"at"`
		Summary string    `json:"summary"`
		Actor   string    `json:"actor"`
	}{{At: time.Now(), Summary: "restarted consumer", Actor: "alice"}}
	p.Incident.CreatedAt = time.Date(2026, 8, 19, 9, 0, 0, 0, time.UTC)
	return p
}

func TestNormalizePagerDuty(t *testing.T) {
	resolved := time.Date(2026, 8, 19, 10, 0, 0, 0, time.UTC)
	p := pdPayload()
	p.Incident.ResolvedAt = &resolved

	ev, err := NormalizePagerDuty("ws1", p)
	require.NoError(t, err)
	assert.Equal(t, "pagerduty_incident_PD123", ev.ID)
	assert.Equal(t, resolved, ev.OccurredAt)
	assert.Equal(t, "payments", ev.Service)
	assert.Equal(t, "P1", ev.Severity)
}

func TestNormalizePagerDutyRequiresTimeline(t *testing.T) {
	p := pdPayload()
	p.Incident.Timeline = nil
	_, err := NormalizePagerDuty("ws1", p)
	require.Error(t, err)
	assert.Equal(t, errors.CodeExtractedSchemaViolation, errors.CodeOf(err))
}

func TestNormalizeSlackClusterDeterministicID(t *testing.T) {
	mk := func() *SlackClusterPayload {
		p := &SlackClusterPayload{
			Channel:                "#payments-help",
			RepresentativeQuestion: "how do I redeploy payments?",
			MessageCount:           4,
			UniqueAskers:           3,
			LastSeen:               time.Now(),
		}
		p.Samples = []struct {
			User string    `json:"user"`
			Text string    `json:"text"`
			At   time.Time `json:"at"`
		}{{User: "u1", Text: "how do I redeploy payments?", At: time.Now()}}
		return p
	}

	a, err := NormalizeSlackCluster("ws1", mk())
	require.NoError(t, err)
	b, err := NormalizeSlackCluster("ws1", mk())
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID, "same channel+question must produce the same signal ID")
}

func TestNormalizeSlackClusterRejectsSingletons(t *testing.T) {
	p := &SlackClusterPayload{
		Channel:                "#help",
		RepresentativeQuestion: "one-off question",
		MessageCount:           1,
		UniqueAskers:           1,
	}
	p.Samples = []struct {
		User string    `json:"user"`
		Text string    `json:"text"`
		At   time.Time `json:"at"`
	}{{User: "u1", Text: "one-off question"}}

	_, err := NormalizeSlackCluster("ws1", p)
	require.Error(t, err)
	assert.Equal(t, errors.CodeExtractedSchemaViolation, errors.CodeOf(err))
}

func TestNormalizeMonitorAlert(t *testing.T) {
	p := &MonitorAlertPayload{
		AlertID:     "dd-99",
		MonitorName: "payments latency",
		Severity:    "critical",
		AlertType:   "metric",
		Metric:      "p99_latency",
		Tags:        []string{"service:payments", "env:prod"},
	}
	ev, err := NormalizeMonitorAlert("ws1", models.SourceDatadogAlert, p)
	require.NoError(t, err)
	assert.Equal(t, "datadog_alert_dd-99", ev.ID)
	assert.Equal(t, "payments", ev.Service, "service should be derived from tags")

	_, err = NormalizeMonitorAlert("ws1", models.SourceGitHubPR, p)
	require.Error(t, err)
}

func TestValidateUnknownSource(t *testing.T) {
	err := Validate(&models.SignalEvent{
		SourceType: "carrier_pigeon",
		Extracted:  &models.Extracted{},
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeExtractedSchemaViolation, errors.CodeOf(err))
}
