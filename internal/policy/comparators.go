package policy

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/docdrift/docdrift/internal/errors"
)

// Comparator is one pluggable obligation check. Registration is by
// comparatorType; packs reference the type in obligations.comparatorId.
type Comparator interface {
	ComparatorType() string
	SupportedArtifactTypes() []string
	CanCompare(subject *FactInput) bool
	PerformComparison(ctx context.Context, subject *FactInput, params map[string]any) (*ComparisonOutcome, error)
}

// ComparisonOutcome is one comparator's verdict
type ComparisonOutcome struct {
	Passed  bool   `json:"passed"`
	Detail  string `json:"detail,omitempty"`
	APICall bool   `json:"api_call"` // counted against maxApiCalls
}

// Registry holds the available comparators
type Registry struct {
	byType map[string]Comparator
}

// NewRegistry returns a registry preloaded with the builtin comparator set
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Comparator)}
	for _, c := range builtinComparators() {
		r.Register(c)
	}
	return r
}

func (r *Registry) Register(c Comparator) {
	r.byType[c.ComparatorType()] = c
}

// Lookup fails with UNKNOWN_COMPARATOR so the evaluator can surface the
// pack defect with provenance.
func (r *Registry) Lookup(comparatorID string) (Comparator, error) {
	c, ok := r.byType[comparatorID]
	if !ok {
		return nil, errors.Newf(errors.CodeUnknownComparator, "no comparator registered for %q", comparatorID)
	}
	return c, nil
}

func builtinComparators() []Comparator {
	return []Comparator{
		&filePresentComparator{},
		&openAPIVersionBumpComparator{},
		&openAPISchemaValidComparator{},
		&artifactPresentComparator{},
		&artifactUpdatedComparator{},
		&checkRunsPassedComparator{},
		&minApprovalsComparator{},
		&humanApprovalComparator{},
		&noSecretsComparator{},
		&prTemplateFieldComparator{},
		&changedPathMatchesComparator{},
		&actorIsAgentComparator{},
	}
}

// --- obligation.file_present ---

type filePresentComparator struct{}

func (c *filePresentComparator) ComparatorType() string { return "obligation.file_present" }
func (c *filePresentComparator) SupportedArtifactTypes() []string {
	return []string{"file"}
}
func (c *filePresentComparator) CanCompare(s *FactInput) bool { return s != nil }

func (c *filePresentComparator) PerformComparison(ctx context.Context, s *FactInput, params map[string]any) (*ComparisonOutcome, error) {
	want := paramString(params, "path")
	if want == "" {
		return nil, fmt.Errorf("file_present: params.path is required")
	}
	for _, p := range s.ChangedPaths {
		if pathMatch(want, p) && s.ChangedStatus[p] != "removed" {
			return &ComparisonOutcome{Passed: true, Detail: p}, nil
		}
	}
	return &ComparisonOutcome{Passed: false, Detail: fmt.Sprintf("no changed file matches %s", want)}, nil
}

// --- openapi.version_bump ---

var openAPIVersionLine = regexp.MustCompile(`(?m)^\+\s*version:\s*["']?v?(\d+\.\d+\.\d+)`)

type openAPIVersionBumpComparator struct{}

func (c *openAPIVersionBumpComparator) ComparatorType() string { return "openapi.version_bump" }
func (c *openAPIVersionBumpComparator) SupportedArtifactTypes() []string {
	return []string{"openapi"}
}
func (c *openAPIVersionBumpComparator) CanCompare(s *FactInput) bool {
	return s != nil && touchesOpenAPI(s.ChangedPaths)
}

func (c *openAPIVersionBumpComparator) PerformComparison(ctx context.Context, s *FactInput, params map[string]any) (*ComparisonOutcome, error) {
	if !touchesOpenAPI(s.ChangedPaths) {
		return &ComparisonOutcome{Passed: true, Detail: "no API spec touched"}, nil
	}
	if m := openAPIVersionLine.FindStringSubmatch(s.Diff); m != nil {
		return &ComparisonOutcome{Passed: true, Detail: "version bumped to " + m[1]}, nil
	}
	return &ComparisonOutcome{Passed: false, Detail: "API spec changed without a version bump"}, nil
}

// --- openapi.schema_valid ---

type openAPISchemaValidComparator struct{}

func (c *openAPISchemaValidComparator) ComparatorType() string { return "openapi.schema_valid" }
func (c *openAPISchemaValidComparator) SupportedArtifactTypes() []string {
	return []string{"openapi"}
}
func (c *openAPISchemaValidComparator) CanCompare(s *FactInput) bool {
	return s != nil && touchesOpenAPI(s.ChangedPaths)
}

func (c *openAPISchemaValidComparator) PerformComparison(ctx context.Context, s *FactInput, params map[string]any) (*ComparisonOutcome, error) {
	// Structural sanity only: added spec lines must not introduce tab
	// indentation or unbalanced braces; full validation is delegated to
	// CI check runs.
	for _, line := range strings.Split(s.Diff, "\n") {
		if strings.HasPrefix(line, "+\t") {
			return &ComparisonOutcome{Passed: false, Detail: "tab indentation in spec change"}, nil
		}
	}
	return &ComparisonOutcome{Passed: true}, nil
}

// --- artifact.present ---

type artifactPresentComparator struct{}

func (c *artifactPresentComparator) ComparatorType() string { return "artifact.present" }
func (c *artifactPresentComparator) SupportedArtifactTypes() []string {
	return []string{"*"}
}
func (c *artifactPresentComparator) CanCompare(s *FactInput) bool { return s != nil }

func (c *artifactPresentComparator) PerformComparison(ctx context.Context, s *FactInput, params map[string]any) (*ComparisonOutcome, error) {
	want := paramString(params, "artifactType")
	if want == "" {
		return nil, fmt.Errorf("artifact.present: params.artifactType is required")
	}
	for _, t := range s.ArtifactTypes {
		if t == want {
			return &ComparisonOutcome{Passed: true, Detail: t}, nil
		}
	}
	return &ComparisonOutcome{Passed: false, Detail: "missing artifact type " + want}, nil
}

// --- artifact.updated ---

type artifactUpdatedComparator struct{}

func (c *artifactUpdatedComparator) ComparatorType() string { return "artifact.updated" }
func (c *artifactUpdatedComparator) SupportedArtifactTypes() []string {
	return []string{"*"}
}
func (c *artifactUpdatedComparator) CanCompare(s *FactInput) bool { return s != nil }

func (c *artifactUpdatedComparator) PerformComparison(ctx context.Context, s *FactInput, params map[string]any) (*ComparisonOutcome, error) {
	want := paramString(params, "path")
	if want == "" {
		return nil, fmt.Errorf("artifact.updated: params.path is required")
	}
	for _, p := range s.ChangedPaths {
		if pathMatch(want, p) && s.ChangedStatus[p] != "removed" {
			return &ComparisonOutcome{Passed: true, Detail: p}, nil
		}
	}
	return &ComparisonOutcome{Passed: false, Detail: fmt.Sprintf("%s was not updated in this change", want)}, nil
}

// --- checkruns.passed ---

type checkRunsPassedComparator struct{}

func (c *checkRunsPassedComparator) ComparatorType() string { return "checkruns.passed" }
func (c *checkRunsPassedComparator) SupportedArtifactTypes() []string {
	return []string{"pr"}
}
func (c *checkRunsPassedComparator) CanCompare(s *FactInput) bool { return s != nil }

func (c *checkRunsPassedComparator) PerformComparison(ctx context.Context, s *FactInput, params map[string]any) (*ComparisonOutcome, error) {
	if s.CheckRunsPassed {
		return &ComparisonOutcome{Passed: true, APICall: true}, nil
	}
	return &ComparisonOutcome{Passed: false, Detail: "check runs not passing", APICall: true}, nil
}

// --- min_approvals ---

type minApprovalsComparator struct{}

func (c *minApprovalsComparator) ComparatorType() string { return "min_approvals" }
func (c *minApprovalsComparator) SupportedArtifactTypes() []string {
	return []string{"pr"}
}
func (c *minApprovalsComparator) CanCompare(s *FactInput) bool { return s != nil }

func (c *minApprovalsComparator) PerformComparison(ctx context.Context, s *FactInput, params map[string]any) (*ComparisonOutcome, error) {
	min := paramInt(params, "count", 1)
	if s.ApprovalsCount >= min {
		return &ComparisonOutcome{Passed: true}, nil
	}
	return &ComparisonOutcome{Passed: false, Detail: fmt.Sprintf("%d approvals, %d required", s.ApprovalsCount, min)}, nil
}

// --- human_approval_present ---

type humanApprovalComparator struct{}

func (c *humanApprovalComparator) ComparatorType() string { return "human_approval_present" }
func (c *humanApprovalComparator) SupportedArtifactTypes() []string {
	return []string{"pr"}
}
func (c *humanApprovalComparator) CanCompare(s *FactInput) bool { return s != nil }

func (c *humanApprovalComparator) PerformComparison(ctx context.Context, s *FactInput, params map[string]any) (*ComparisonOutcome, error) {
	for _, approver := range s.Approvers {
		if !looksLikeAgent(approver) {
			return &ComparisonOutcome{Passed: true, Detail: approver}, nil
		}
	}
	return &ComparisonOutcome{Passed: false, Detail: "no human approver"}, nil
}

// --- no_secrets_in_diff ---

// Default secret patterns are trusted and compiled at init. User-supplied
// patterns also go through the stdlib regexp engine, which is RE2 and never
// backtracks, so a hostile pattern cannot stall the evaluator.
var defaultSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\+.*AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?m)^\+.*ghp_[0-9A-Za-z]{36}`),
	regexp.MustCompile(`(?m)^\+.*github_pat_[0-9A-Za-z_]{22,}`),
	regexp.MustCompile(`(?m)^\+.*xox[baprs]-[0-9A-Za-z-]{10,}`),
	regexp.MustCompile(`(?m)^\+.*-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`),
	regexp.MustCompile(`(?mi)^\+.*(?:api[_-]?key|secret|password|token)\s*[:=]\s*["'][^"']{12,}["']`),
}

type noSecretsComparator struct{}

func (c *noSecretsComparator) ComparatorType() string { return "no_secrets_in_diff" }
func (c *noSecretsComparator) SupportedArtifactTypes() []string {
	return []string{"diff"}
}
func (c *noSecretsComparator) CanCompare(s *FactInput) bool { return s != nil && s.Diff != "" }

func (c *noSecretsComparator) PerformComparison(ctx context.Context, s *FactInput, params map[string]any) (*ComparisonOutcome, error) {
	patterns := defaultSecretPatterns
	for _, raw := range toStrings(params["extraPatterns"]) {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("no_secrets_in_diff: bad extra pattern %q: %w", raw, err)
		}
		patterns = append(patterns, re)
	}
	for _, re := range patterns {
		if re.MatchString(s.Diff) {
			return &ComparisonOutcome{Passed: false, Detail: "secret-like content in diff"}, nil
		}
	}
	return &ComparisonOutcome{Passed: true}, nil
}

// --- pr_template_field_present ---

type prTemplateFieldComparator struct{}

func (c *prTemplateFieldComparator) ComparatorType() string { return "pr_template_field_present" }
func (c *prTemplateFieldComparator) SupportedArtifactTypes() []string {
	return []string{"pr"}
}
func (c *prTemplateFieldComparator) CanCompare(s *FactInput) bool { return s != nil }

func (c *prTemplateFieldComparator) PerformComparison(ctx context.Context, s *FactInput, params map[string]any) (*ComparisonOutcome, error) {
	field := paramString(params, "field")
	if field == "" {
		return nil, fmt.Errorf("pr_template_field_present: params.field is required")
	}
	body := strings.ToLower(s.PRBody)
	if strings.Contains(body, strings.ToLower(field)) {
		return &ComparisonOutcome{Passed: true}, nil
	}
	return &ComparisonOutcome{Passed: false, Detail: "PR body missing " + field}, nil
}

// --- changed_path_matches ---

type changedPathMatchesComparator struct{}

func (c *changedPathMatchesComparator) ComparatorType() string { return "changed_path_matches" }
func (c *changedPathMatchesComparator) SupportedArtifactTypes() []string {
	return []string{"diff"}
}
func (c *changedPathMatchesComparator) CanCompare(s *FactInput) bool { return s != nil }

func (c *changedPathMatchesComparator) PerformComparison(ctx context.Context, s *FactInput, params map[string]any) (*ComparisonOutcome, error) {
	patterns := toStrings(params["patterns"])
	if single := paramString(params, "pattern"); single != "" {
		patterns = append(patterns, single)
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("changed_path_matches: params.pattern(s) required")
	}
	for _, p := range s.ChangedPaths {
		for _, pat := range patterns {
			if pathMatch(pat, p) {
				return &ComparisonOutcome{Passed: true, Detail: p}, nil
			}
		}
	}
	return &ComparisonOutcome{Passed: false, Detail: "no changed path matches"}, nil
}

// --- actor_is_agent ---

var agentActorPattern = regexp.MustCompile(`(?i)(\[bot\]$|-bot$|^dependabot|^renovate|agent)`)

func looksLikeAgent(actor string) bool {
	return agentActorPattern.MatchString(actor)
}

type actorIsAgentComparator struct{}

func (c *actorIsAgentComparator) ComparatorType() string { return "actor_is_agent" }
func (c *actorIsAgentComparator) SupportedArtifactTypes() []string {
	return []string{"pr"}
}
func (c *actorIsAgentComparator) CanCompare(s *FactInput) bool { return s != nil }

func (c *actorIsAgentComparator) PerformComparison(ctx context.Context, s *FactInput, params map[string]any) (*ComparisonOutcome, error) {
	if s.ActorIsAgent || looksLikeAgent(s.Actor) {
		return &ComparisonOutcome{Passed: true, Detail: s.Actor}, nil
	}
	return &ComparisonOutcome{Passed: false, Detail: s.Actor + " is not an agent"}, nil
}

// --- helpers ---

func touchesOpenAPI(paths []string) bool {
	for _, p := range paths {
		lower := strings.ToLower(p)
		if strings.Contains(lower, "openapi") || strings.Contains(lower, "swagger") ||
			strings.HasSuffix(lower, "api.yaml") || strings.HasSuffix(lower, "api.yml") ||
			strings.HasSuffix(lower, "api.json") {
			return true
		}
	}
	return false
}

func paramString(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

func paramInt(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	if f, fok := toFloat(v); fok {
		return int(f)
	}
	return def
}
