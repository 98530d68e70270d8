package policy

// PolicyPack is the parsed YAML form of a pack. Field order inside rules and
// obligations is semantic; everything else canonicalizes before hashing.
type PolicyPack struct {
	Metadata   Metadata    `yaml:"metadata" json:"metadata"`
	Scope      Scope       `yaml:"scope" json:"scope"`
	Rules      []Rule      `yaml:"rules" json:"rules"`
	Evaluation *Evaluation `yaml:"evaluation,omitempty" json:"evaluation,omitempty"`
}

// MergeStrategy controls how obligations from overlapping packs combine
type MergeStrategy string

const (
	MergeMostRestrictive MergeStrategy = "MOST_RESTRICTIVE"
	MergeHighestPriority MergeStrategy = "HIGHEST_PRIORITY"
	MergeExplicit        MergeStrategy = "EXPLICIT"
)

type Metadata struct {
	ID                 string        `yaml:"id" json:"id"`
	Name               string        `yaml:"name" json:"name"`
	Version            string        `yaml:"version" json:"version"`
	Tags               []string      `yaml:"tags,omitempty" json:"tags,omitempty"`
	ScopePriority      int           `yaml:"scopePriority" json:"scopePriority"`
	ScopeMergeStrategy MergeStrategy `yaml:"scopeMergeStrategy" json:"scopeMergeStrategy"`
}

type Scope struct {
	Type         string      `yaml:"type" json:"type"` // workspace | repo | service
	Repos        *IncludeSet `yaml:"repos,omitempty" json:"repos,omitempty"`
	Branches     *IncludeSet `yaml:"branches,omitempty" json:"branches,omitempty"`
	ActorSignals []string    `yaml:"actorSignals,omitempty" json:"actorSignals,omitempty"`
	PREvents     []string    `yaml:"prEvents,omitempty" json:"prEvents,omitempty"`
}

type IncludeSet struct {
	Include []string `yaml:"include,omitempty" json:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

type Rule struct {
	ID          string       `yaml:"id" json:"id"`
	Enabled     *bool        `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Trigger     Trigger      `yaml:"trigger" json:"trigger"`
	Obligations []Obligation `yaml:"obligations" json:"obligations"`
	SkipIf      *SkipIf      `yaml:"skipIf,omitempty" json:"skipIf,omitempty"`
}

// IsEnabled defaults to true when the field is omitted
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

type Trigger struct {
	AnyChangedPaths []string `yaml:"anyChangedPaths,omitempty" json:"anyChangedPaths,omitempty"`
	AllChangedPaths []string `yaml:"allChangedPaths,omitempty" json:"allChangedPaths,omitempty"`
	Always          bool     `yaml:"always,omitempty" json:"always,omitempty"`
}

// Decision is an obligation's outcome when its comparator fails
type Decision string

const (
	DecisionBlock Decision = "block"
	DecisionWarn  Decision = "warn"
	DecisionPass  Decision = "pass"
)

// restrictiveness orders decisions for MOST_RESTRICTIVE merging
func restrictiveness(d Decision) int {
	switch d {
	case DecisionBlock:
		return 2
	case DecisionWarn:
		return 1
	default:
		return 0
	}
}

type Obligation struct {
	ComparatorID   string         `yaml:"comparatorId,omitempty" json:"comparatorId,omitempty"`
	Params         map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	Severity       string         `yaml:"severity,omitempty" json:"severity,omitempty"`
	DecisionOnFail Decision       `yaml:"decisionOnFail" json:"decisionOnFail"`
	Conditions     *Condition     `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

type SkipIf struct {
	Labels          []string `yaml:"labels,omitempty" json:"labels,omitempty"`
	AllChangedPaths []string `yaml:"allChangedPaths,omitempty" json:"allChangedPaths,omitempty"`
	PRBodyContains  []string `yaml:"prBodyContains,omitempty" json:"prBodyContains,omitempty"`
}

type Evaluation struct {
	ExternalDependencyMode string   `yaml:"externalDependencyMode,omitempty" json:"externalDependencyMode,omitempty"`
	Budgets                *Budgets `yaml:"budgets,omitempty" json:"budgets,omitempty"`
	SkipIf                 *SkipIf  `yaml:"skipIf,omitempty" json:"skipIf,omitempty"`
}

type Budgets struct {
	TotalTimeoutSeconds         int `yaml:"totalTimeoutSeconds,omitempty" json:"totalTimeoutSeconds,omitempty"`
	PerComparatorTimeoutSeconds int `yaml:"perComparatorTimeoutSeconds,omitempty" json:"perComparatorTimeoutSeconds,omitempty"`
	MaxAPICalls                 int `yaml:"maxApiCalls,omitempty" json:"maxApiCalls,omitempty"`
}

// Condition is a fact-based predicate tree: either a leaf {Fact, Operator,
// Value} or exactly one of the composite branches.
type Condition struct {
	Fact     string `yaml:"fact,omitempty" json:"fact,omitempty"`
	Operator string `yaml:"operator,omitempty" json:"operator,omitempty"`
	Value    any    `yaml:"value,omitempty" json:"value,omitempty"`

	And []*Condition `yaml:"and,omitempty" json:"and,omitempty"`
	Or  []*Condition `yaml:"or,omitempty" json:"or,omitempty"`
	Not *Condition   `yaml:"not,omitempty" json:"not,omitempty"`
}
