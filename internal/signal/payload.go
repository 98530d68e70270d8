package signal

import "time"

// Inbound webhook payloads. The transport layer has already verified
// signatures and decoded JSON; these carry only the fields the core reads.

// GitHubPRPayload mirrors the relevant slice of a pull_request webhook
type GitHubPRPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		Body   string `json:"body"`
		User   struct {
			Login string `json:"login"`
		} `json:"user"`
		Merged bool `json:"merged"`
		Base   struct {
			Ref string `json:"ref"`
		} `json:"base"`
		Head struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		} `json:"head"`
		MergedAt *time.Time `json:"merged_at"`
	} `json:"pull_request"`
	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
		Owner    struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`

	// Populated by the transport layer from the PR files API
	ChangedFiles []ChangedFilePayload `json:"changed_files"`
	Diff         string               `json:"diff"`
	Service      string               `json:"service,omitempty"`
}

// ChangedFilePayload is one file of the PR diff listing
type ChangedFilePayload struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// PagerDutyPayload mirrors the relevant slice of an incident webhook
type PagerDutyPayload struct {
	Incident struct {
		ID               string   `json:"id"`
		Status           string   `json:"status"`
		Priority         string   `json:"priority"`
		Service          string   `json:"service"`
		DurationMinutes  int      `json:"duration_minutes"`
		EscalationPolicy string   `json:"escalation_policy"`
		Teams            []string `json:"teams"`
		Responders       []string `json:"responders"`
		Timeline         []struct {
			At      time.Time `json:"at"`
			Summary string    `json:"summary"`
			Actor   string    `json:"actor"`
		} `json:"timeline"`
		CreatedAt  time.Time  `json:"created_at"`
		ResolvedAt *time.Time `json:"resolved_at"`
	} `json:"incident"`
}

// SlackClusterPayload is a detected cluster of similar questions
type SlackClusterPayload struct {
	Channel                string `json:"channel"`
	RepresentativeQuestion string `json:"representative_question"`
	Samples                []struct {
		User string    `json:"user"`
		Text string    `json:"text"`
		At   time.Time `json:"at"`
	} `json:"samples"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	MessageCount int       `json:"message_count"`
	UniqueAskers int       `json:"unique_askers"`
	Service      string    `json:"service,omitempty"`
}

// MonitorAlertPayload covers datadog_alert and grafana_alert webhooks
type MonitorAlertPayload struct {
	AlertID      string    `json:"alert_id"`
	MonitorName  string    `json:"monitor_name"`
	Severity     string    `json:"severity"`
	AlertType    string    `json:"alert_type"`
	Metric       string    `json:"metric"`
	Threshold    float64   `json:"threshold"`
	CurrentValue float64   `json:"current_value"`
	Tags         []string  `json:"tags"`
	AlertURL     string    `json:"alert_url"`
	TriggeredAt  time.Time `json:"triggered_at"`
	Service      string    `json:"service,omitempty"`
}
