package models

import "time"

// Extracted is the tagged union of source-specific payloads. Exactly one of
// the member pointers is non-nil, keyed by SignalEvent.SourceType. It is
// validated at the webhook boundary and again before the comparison engine.
type Extracted struct {
	GitHubPR     *GitHubPRExtracted     `json:"github_pr,omitempty"`
	PagerDuty    *PagerDutyExtracted    `json:"pagerduty_incident,omitempty"`
	SlackCluster *SlackClusterExtracted `json:"slack_cluster,omitempty"`
	MonitorAlert *MonitorAlertExtracted `json:"monitor_alert,omitempty"`
}

// ChangedFile is one file touched by a PR diff
type ChangedFile struct {
	Path      string `json:"path"`
	Status    string `json:"status"` // added | removed | modified | renamed
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// GitHubPRExtracted is the canonical payload for github_pr, github_iac and
// github_codeowners signals.
type GitHubPRExtracted struct {
	Number       int           `json:"number"`
	Title        string        `json:"title"`
	Body         string        `json:"body,omitempty"`
	Author       string        `json:"author"`
	Merged       bool          `json:"merged"`
	BaseRef      string        `json:"base_ref"`
	HeadRef      string        `json:"head_ref"`
	HeadSHA      string        `json:"head_sha"`
	Owner        string        `json:"owner"`
	Repo         string        `json:"repo"`
	ChangedFiles []ChangedFile `json:"changed_files"`
	TotalChanges int           `json:"total_changes"`
	Diff         string        `json:"diff"`
	Installation int64         `json:"installation_id,omitempty"`
}

// TimelineEntry is one step of an incident timeline
type TimelineEntry struct {
	At      time.Time `json:"at"`
	Summary string    `json:"summary"`
	Actor   string    `json:"actor,omitempty"`
}

// PagerDutyExtracted is the canonical payload for pagerduty_incident signals
type PagerDutyExtracted struct {
	IncidentID       string          `json:"incident_id"`
	Status           string          `json:"status"`
	Priority         string          `json:"priority,omitempty"`
	Service          string          `json:"service"`
	DurationMinutes  int             `json:"duration_minutes,omitempty"`
	Responders       []string        `json:"responders"`
	Timeline         []TimelineEntry `json:"timeline"`
	EscalationPolicy string          `json:"escalation_policy"`
	Teams            []string        `json:"teams"`
}

// ClusterMessage is one sampled message of a question cluster
type ClusterMessage struct {
	User string    `json:"user"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// SlackClusterExtracted is the canonical payload for slack_cluster signals
type SlackClusterExtracted struct {
	Channel      string           `json:"channel"`
	ClusterSize  int              `json:"cluster_size"`
	UniqueAskers int              `json:"unique_askers"`
	Questions    []string         `json:"questions"`
	Messages     []ClusterMessage `json:"messages"`
	FirstSeen    time.Time        `json:"first_seen"`
	LastSeen     time.Time        `json:"last_seen"`
}

// MonitorAlertExtracted is the canonical payload for datadog_alert and
// grafana_alert signals.
type MonitorAlertExtracted struct {
	AlertID      string   `json:"alert_id"`
	MonitorName  string   `json:"monitor_name"`
	Severity     string   `json:"severity"`
	AlertType    string   `json:"alert_type"`
	Metric       string   `json:"metric,omitempty"`
	Threshold    float64  `json:"threshold,omitempty"`
	CurrentValue float64  `json:"current_value,omitempty"`
	Tags         []string `json:"tags"`
	AlertURL     string   `json:"alert_url,omitempty"`
}
