package models

import (
	"fmt"
	"time"
)

// SourceType identifies the operational source of truth a signal came from
type SourceType string

const (
	SourceGitHubPR          SourceType = "github_pr"
	SourcePagerDutyIncident SourceType = "pagerduty_incident"
	SourceSlackCluster      SourceType = "slack_cluster"
	SourceDatadogAlert      SourceType = "datadog_alert"
	SourceGrafanaAlert      SourceType = "grafana_alert"
	SourceGitHubIaC         SourceType = "github_iac"
	SourceGitHubCodeowners  SourceType = "github_codeowners"
)

// DriftType classifies what kind of documentation drift was detected
type DriftType string

const (
	DriftInstruction DriftType = "instruction"
	DriftProcess     DriftType = "process"
	DriftOwnership   DriftType = "ownership"
	DriftEnvironment DriftType = "environment"
	DriftCoverage    DriftType = "coverage"
)

// ClassificationMethod records how the drift type was decided
type ClassificationMethod string

const (
	ClassifyDeterministic ClassificationMethod = "deterministic"
	ClassifyLLM           ClassificationMethod = "llm"
	ClassifyHybrid        ClassificationMethod = "hybrid"
)

// Workspace is the tenant boundary; every query filters on its ID
type Workspace struct {
	ID                        string               `json:"id" db:"id"`
	Name                      string               `json:"name" db:"name"`
	HighConfidenceThreshold   float64              `json:"high_confidence_threshold" db:"high_confidence_threshold"`
	MediumConfidenceThreshold float64              `json:"medium_confidence_threshold" db:"medium_confidence_threshold"`
	OwnershipSourceRanking    []string             `json:"ownership_source_ranking" db:"-"`
	WorkflowPreferences       *WorkflowPreferences `json:"workflow_preferences" db:"-"`
	DefaultOwnerRef           string               `json:"default_owner_ref" db:"default_owner_ref"`
	DigestChannel             string               `json:"digest_channel" db:"digest_channel"`
	CreatedAt                 time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt                 time.Time            `json:"updated_at" db:"updated_at"`
}

// Thresholds returns the effective confidence thresholds with defaults applied
func (w *Workspace) Thresholds() (high, medium float64) {
	high, medium = 0.70, 0.55
	if w.HighConfidenceThreshold > 0 {
		high = w.HighConfidenceThreshold
	}
	if w.MediumConfidenceThreshold > 0 {
		medium = w.MediumConfidenceThreshold
	}
	if p := w.WorkflowPreferences; p != nil {
		if p.HighConfidenceThreshold > 0 {
			high = p.HighConfidenceThreshold
		}
		if p.MediumConfidenceThreshold > 0 {
			medium = p.MediumConfidenceThreshold
		}
	}
	return high, medium
}

// WorkflowPreferences are the per-workspace pipeline tunables
type WorkflowPreferences struct {
	EnabledDriftTypes         []DriftType  `json:"enabled_drift_types,omitempty"`
	EnabledInputSources       []SourceType `json:"enabled_input_sources,omitempty"`
	EnabledOutputTargets      []string     `json:"enabled_output_targets,omitempty"`
	OutputTargetPriority      []string     `json:"output_target_priority,omitempty"`
	EvidenceGroundedPatching  bool         `json:"evidence_grounded_patching,omitempty"`
	SkipLowValuePatches       bool         `json:"skip_low_value_patches,omitempty"`
	ExpandedContextMode       bool         `json:"expanded_context_mode,omitempty"`
	TrackCumulativeDrift      bool         `json:"track_cumulative_drift,omitempty"`
	MaterialityThreshold      float64      `json:"materiality_threshold,omitempty"`
	HighConfidenceThreshold   float64      `json:"high_confidence_threshold,omitempty"`
	MediumConfidenceThreshold float64      `json:"medium_confidence_threshold,omitempty"`
}

// Materiality returns the materiality threshold with the 0.3 default
func (p *WorkflowPreferences) Materiality() float64 {
	if p == nil || p.MaterialityThreshold == 0 {
		return 0.3
	}
	return p.MaterialityThreshold
}

// DriftTypeEnabled reports whether a drift type may be acted on.
// An empty list means all types are enabled.
func (p *WorkflowPreferences) DriftTypeEnabled(dt DriftType) bool {
	if p == nil || len(p.EnabledDriftTypes) == 0 {
		return true
	}
	for _, t := range p.EnabledDriftTypes {
		if t == dt {
			return true
		}
	}
	return false
}

// SourceEnabled reports whether a source type may create drifts
func (p *WorkflowPreferences) SourceEnabled(st SourceType) bool {
	if p == nil || len(p.EnabledInputSources) == 0 {
		return true
	}
	for _, s := range p.EnabledInputSources {
		if s == st {
			return true
		}
	}
	return false
}

// OutputTargetEnabled reports whether an adapter may be used for writeback
func (p *WorkflowPreferences) OutputTargetEnabled(system string) bool {
	if p == nil || len(p.EnabledOutputTargets) == 0 {
		return true
	}
	for _, s := range p.EnabledOutputTargets {
		if s == system {
			return true
		}
	}
	return false
}

// SignalEvent is the canonicalized inbound event.
// ID is derived deterministically from the source so re-delivered webhooks
// are idempotent: github_pr_<owner>_<repo>_<number>, pagerduty_incident_<id>,
// slack_cluster_<hash>, datadog_alert_<id>, ...
type SignalEvent struct {
	WorkspaceID string     `json:"workspace_id" db:"workspace_id"`
	ID          string     `json:"id" db:"id"`
	SourceType  SourceType `json:"source_type" db:"source_type"`
	OccurredAt  time.Time  `json:"occurred_at" db:"occurred_at"`
	Service     string     `json:"service,omitempty" db:"service"`
	Repo        string     `json:"repo,omitempty" db:"repo"`
	Severity    string     `json:"severity,omitempty" db:"severity"`
	Extracted   *Extracted `json:"extracted" db:"-"`
	RawPayload  []byte     `json:"-" db:"raw_payload"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// DriftCandidate is the unit of work advanced by the state machine
type DriftCandidate struct {
	WorkspaceID          string               `json:"workspace_id" db:"workspace_id"`
	ID                   string               `json:"id" db:"id"`
	SignalEventID        string               `json:"signal_event_id" db:"signal_event_id"`
	State                State                `json:"state" db:"state"`
	StateUpdatedAt       time.Time            `json:"state_updated_at" db:"state_updated_at"`
	SourceType           SourceType           `json:"source_type" db:"source_type"`
	Service              string               `json:"service,omitempty" db:"service"`
	Repo                 string               `json:"repo,omitempty" db:"repo"`
	DriftType            DriftType            `json:"drift_type,omitempty" db:"drift_type"`
	ClassificationMethod ClassificationMethod `json:"classification_method,omitempty" db:"classification_method"`
	Confidence           float64              `json:"confidence,omitempty" db:"confidence"`
	ComparisonResult     *ComparisonResult    `json:"comparison_result,omitempty" db:"-"`
	EvidenceBundleID     string               `json:"evidence_bundle_id,omitempty" db:"evidence_bundle_id"`
	DocCandidates        []DocCandidate       `json:"doc_candidates,omitempty" db:"-"`
	DocsResolutionStatus string               `json:"docs_resolution_status,omitempty" db:"docs_resolution_status"`
	DocsResolutionConf   float64              `json:"docs_resolution_confidence,omitempty" db:"docs_resolution_confidence"`
	OwnerResolution      *OwnerResolution     `json:"owner_resolution,omitempty" db:"-"`
	RoutingDecision      *RoutingDecision     `json:"routing_decision,omitempty" db:"-"`
	ActivePlanID         string               `json:"active_plan_id,omitempty" db:"active_plan_id"`
	ActivePlanVersion    int                  `json:"active_plan_version,omitempty" db:"active_plan_version"`
	ActivePlanHash       string               `json:"active_plan_hash,omitempty" db:"active_plan_hash"`
	CorrelatedSignals    []string             `json:"correlated_signals,omitempty" db:"-"`
	FingerprintStrict    string               `json:"fingerprint_strict" db:"fingerprint_strict"`
	FingerprintMedium    string               `json:"fingerprint_medium" db:"fingerprint_medium"`
	FingerprintBroad     string               `json:"fingerprint_broad" db:"fingerprint_broad"`
	RetryCount           int                  `json:"retry_count" db:"retry_count"`
	LastErrorCode        string               `json:"last_error_code,omitempty" db:"last_error_code"`
	LastErrorMessage     string               `json:"last_error_message,omitempty" db:"last_error_message"`
	TraceID              string               `json:"trace_id" db:"trace_id"`
	SnoozeUntil          *time.Time           `json:"snooze_until,omitempty" db:"snooze_until"`
	CreatedAt            time.Time            `json:"created_at" db:"created_at"`
}

// CoverageGap re-derives the coverage flag from the comparison result; the
// stored column is only a write-through cache of this value.
func (c *DriftCandidate) CoverageGap() bool {
	return c.ComparisonResult != nil && c.ComparisonResult.HasCoverageGap
}

// DocCandidate is one document considered by the resolver
type DocCandidate struct {
	Ref       DocRef  `json:"ref"`
	Score     float64 `json:"score"`
	MatchedOn string  `json:"matched_on,omitempty"`
	Title     string  `json:"title,omitempty"`
}

// DocRef addresses a document in a documentation system
type DocRef struct {
	System string `json:"system"` // confluence | notion | github_readme | swagger | backstage | gitbook
	Space  string `json:"space,omitempty"`
	ID     string `json:"id"`
	Repo   string `json:"repo,omitempty"`
	Path   string `json:"path,omitempty"`
}

// String renders the ref for logs and fingerprints
func (r DocRef) String() string {
	if r.Path != "" {
		return fmt.Sprintf("%s:%s/%s", r.System, r.Repo, r.Path)
	}
	if r.Space != "" {
		return fmt.Sprintf("%s:%s/%s", r.System, r.Space, r.ID)
	}
	return fmt.Sprintf("%s:%s", r.System, r.ID)
}

// OwnerResolution records who should review the patch and how we know
type OwnerResolution struct {
	OwnerRef     string  `json:"owner_ref"`
	OwnerSlackID string  `json:"owner_slack_id,omitempty"`
	TeamChannel  string  `json:"team_channel,omitempty"`
	Source       string  `json:"source"` // codeowners | pagerduty | backstage | default
	Confidence   float64 `json:"confidence"`
}

// EvidenceBundle is the immutable, content-addressed record of the inputs
// used to reach a classification. Re-evaluation produces a new bundle.
type EvidenceBundle struct {
	WorkspaceID      string             `json:"workspace_id" db:"workspace_id"`
	BundleID         string             `json:"bundle_id" db:"bundle_id"`
	DriftCandidateID string             `json:"drift_candidate_id" db:"drift_candidate_id"`
	SourceEvidence   *SourceEvidence    `json:"source_evidence" db:"-"`
	TargetEvidence   *BaselineArtifacts `json:"target_evidence,omitempty" db:"-"`
	Assessment       *Assessment        `json:"assessment,omitempty" db:"-"`
	Fingerprints     Fingerprints       `json:"fingerprints" db:"-"`
	PackHash         string             `json:"pack_hash,omitempty" db:"pack_hash"`
	SchemaVersion    int                `json:"schema_version" db:"schema_version"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
}

// SourceEvidence is the bounded excerpt plus structured artifacts per source
type SourceEvidence struct {
	Excerpt   string             `json:"excerpt,omitempty"`
	Artifacts *BaselineArtifacts `json:"artifacts"`
}

// Assessment is the impact scoring attached to an evidence bundle
type Assessment struct {
	ImpactScore float64  `json:"impact_score"` // 0..1
	ImpactBand  string   `json:"impact_band"`  // low | medium | high | critical
	FiredRules  []string `json:"fired_rules,omitempty"`
	BlastRadius []string `json:"blast_radius,omitempty"`
}

// ImpactBandFor buckets an impact score
func ImpactBandFor(score float64) string {
	switch {
	case score >= 0.85:
		return "critical"
	case score >= 0.6:
		return "high"
	case score >= 0.3:
		return "medium"
	default:
		return "low"
	}
}

// Fingerprints are the three suppression-matching hashes of a candidate
type Fingerprints struct {
	Strict string `json:"strict"`
	Medium string `json:"medium"`
	Broad  string `json:"broad"`
}

// PatchStyle constrains the shape of a generated patch
type PatchStyle string

const (
	StyleReplaceSteps      PatchStyle = "replace_steps"
	StyleAddNote           PatchStyle = "add_note"
	StyleReorderSteps      PatchStyle = "reorder_steps"
	StyleUpdateOwnerBlock  PatchStyle = "update_owner_block"
	StyleAddSection        PatchStyle = "add_section"
	StyleUpdateDescription PatchStyle = "update_description"
	StyleUpdateParam       PatchStyle = "update_param"
	StyleUpdatePath        PatchStyle = "update_path"
	StyleAddExample        PatchStyle = "add_example"
	StyleUpdateJSDoc       PatchStyle = "update_jsdoc"
	StyleUpdateOwner       PatchStyle = "update_owner"
	StyleCreatePR          PatchStyle = "create_pr"
)

// ProposalStatus is the human-review status of a patch proposal
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
	ProposalSnoozed  ProposalStatus = "snoozed"
	ProposalApplied  ProposalStatus = "applied"
	ProposalFailed   ProposalStatus = "failed"
)

// PatchProposal is a bounded textual patch awaiting human review
type PatchProposal struct {
	WorkspaceID     string         `json:"workspace_id" db:"workspace_id"`
	ID              string         `json:"id" db:"id"`
	DriftID         string         `json:"drift_id" db:"drift_id"`
	DocRef          DocRef         `json:"doc_ref" db:"-"`
	BaseRevision    string         `json:"base_revision" db:"base_revision"`
	ProposedContent string         `json:"proposed_content" db:"proposed_content"`
	Diff            string         `json:"diff,omitempty" db:"diff"`
	Style           PatchStyle     `json:"style" db:"style"`
	Confidence      float64        `json:"confidence" db:"confidence"`
	Status          ProposalStatus `json:"status" db:"status"`
	SlackChannelID  string         `json:"slack_channel_id,omitempty" db:"slack_channel_id"`
	SlackMessageTs  string         `json:"slack_message_ts,omitempty" db:"slack_message_ts"`
	RejectionReason string         `json:"rejection_reason,omitempty" db:"rejection_reason"`
	RejectionTags   []string       `json:"rejection_tags,omitempty" db:"-"`
	ResolvedBy      string         `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
	LastNotifiedAt  *time.Time     `json:"last_notified_at,omitempty" db:"last_notified_at"`
	AppliedRevision string         `json:"applied_revision,omitempty" db:"applied_revision"`
	PRUrl           string         `json:"pr_url,omitempty" db:"pr_url"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}

// AuditRecord is one immutable row per state transition or human action
type AuditRecord struct {
	WorkspaceID string                 `json:"workspace_id" db:"workspace_id"`
	ID          int64                  `json:"id" db:"id"`
	DriftID     string                 `json:"drift_id" db:"drift_id"`
	FromState   State                  `json:"from_state" db:"from_state"`
	ToState     State                  `json:"to_state" db:"to_state"`
	Actor       string                 `json:"actor" db:"actor"` // "pipeline" or a user ref
	Timestamp   time.Time              `json:"timestamp" db:"timestamp"`
	DurationMs  int64                  `json:"duration_ms" db:"duration_ms"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" db:"-"`
}

// FingerprintLevel orders the three suppression granularities
type FingerprintLevel string

const (
	LevelStrict FingerprintLevel = "strict"
	LevelMedium FingerprintLevel = "medium"
	LevelBroad  FingerprintLevel = "broad"
)

// SuppressionRule silences future candidates matching a learned fingerprint
type SuppressionRule struct {
	WorkspaceID    string           `json:"workspace_id" db:"workspace_id"`
	ID             string           `json:"id" db:"id"`
	Fingerprint    string           `json:"fingerprint" db:"fingerprint"`
	Level          FingerprintLevel `json:"level" db:"level"`
	Reason         string           `json:"reason" db:"reason"`
	CreatedBy      string           `json:"created_by" db:"created_by"`
	FalsePositives int              `json:"false_positives" db:"false_positives"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// Expired reports whether the rule is past its expiry
func (r *SuppressionRule) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}
