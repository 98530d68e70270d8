package models

// BaselineArtifacts is the universal deterministic-extraction record: a
// struct of optional string slices, never a free-form map. The same shape is
// produced from signals (source side) and documents (target side).
type BaselineArtifacts struct {
	Commands     []string `json:"commands,omitempty"`
	ConfigKeys   []string `json:"config_keys,omitempty"`
	Endpoints    []string `json:"endpoints,omitempty"`
	Tools        []string `json:"tools,omitempty"`
	Steps        []string `json:"steps,omitempty"`
	Decisions    []string `json:"decisions,omitempty"`
	Sequences    []string `json:"sequences,omitempty"`
	Teams        []string `json:"teams,omitempty"`
	Owners       []string `json:"owners,omitempty"`
	Paths        []string `json:"paths,omitempty"`
	Channels     []string `json:"channels,omitempty"`
	Platforms    []string `json:"platforms,omitempty"`
	Versions     []string `json:"versions,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Scenarios    []string `json:"scenarios,omitempty"`
	Features     []string `json:"features,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

// Empty reports whether no artifact set was extracted
func (a *BaselineArtifacts) Empty() bool {
	if a == nil {
		return true
	}
	return len(a.Commands)+len(a.ConfigKeys)+len(a.Endpoints)+len(a.Tools)+
		len(a.Steps)+len(a.Decisions)+len(a.Sequences)+len(a.Teams)+
		len(a.Owners)+len(a.Paths)+len(a.Channels)+len(a.Platforms)+
		len(a.Versions)+len(a.Dependencies)+len(a.Scenarios)+
		len(a.Features)+len(a.Errors) == 0
}

// AllTokens flattens every artifact set, used by fingerprinting
func (a *BaselineArtifacts) AllTokens() []string {
	if a == nil {
		return nil
	}
	var out []string
	for _, set := range [][]string{
		a.Commands, a.ConfigKeys, a.Endpoints, a.Tools, a.Steps,
		a.Decisions, a.Sequences, a.Teams, a.Owners, a.Paths,
		a.Channels, a.Platforms, a.Versions, a.Dependencies,
		a.Scenarios, a.Features, a.Errors,
	} {
		out = append(out, set...)
	}
	return out
}

// Recommendation is the comparison engine's suggested remediation shape
type Recommendation string

const (
	RecommendReplaceSteps    Recommendation = "replace_steps"
	RecommendAddSection      Recommendation = "add_section"
	RecommendUpdateOwnership Recommendation = "update_ownership"
	RecommendAddNote         Recommendation = "add_note"
)

// ComparisonResult is the output of diffing source evidence against document
// claims. Coverage is orthogonal: HasCoverageGap may be true for any drift
// type, or with no drift at all.
type ComparisonResult struct {
	DriftType      DriftType      `json:"drift_type,omitempty"`
	Confidence     float64        `json:"confidence"`
	HasDrift       bool           `json:"has_drift"`
	HasCoverageGap bool           `json:"has_coverage_gap"`
	AllDriftTypes  []DriftType    `json:"all_drift_types,omitempty"`
	Conflicts      []string       `json:"conflicts,omitempty"`     // doc says X, source says Y
	NewContent     []string       `json:"new_content,omitempty"`   // in source, not in doc
	CoverageGaps   []string       `json:"coverage_gaps,omitempty"` // scenarios with no doc analogue
	Recommendation Recommendation `json:"recommendation,omitempty"`
}

// Priority is the notification urgency bucket
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
)

// RoutingDecision is where and how urgently a drift is surfaced
type RoutingDecision struct {
	Priority     Priority `json:"priority"`
	Channel      string   `json:"channel"`
	DirectTo     string   `json:"direct_to,omitempty"` // slack user ID for DMs
	DigestOnly   bool     `json:"digest_only"`
	DelayMinutes int      `json:"delay_minutes,omitempty"`
	Escalated    bool     `json:"escalated"` // critical domain or riskLevel=high
	BlockMerge   bool     `json:"block_merge"`
	RateLimited  bool     `json:"rate_limited"`
	Reason       string   `json:"reason,omitempty"`
}
