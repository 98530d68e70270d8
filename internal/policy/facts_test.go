package policy

import "testing"

func testFacts() Facts {
	return BuildFacts(&FactInput{
		PRNumber:       42,
		PRTitle:        "Add retry backoff to webhook client",
		PRBody:         "## Summary\nadds jittered backoff\n\nCloses #40",
		PRLabels:       []string{"docs-exempt", "backend"},
		Actor:          "dependabot[bot]",
		ApprovalsCount: 2,
		Approvers:      []string{"alice", "ci-bot"},
		ChangedPaths:   []string{"internal/webhook/client.go", "docs/runbook.md"},
		Branch:         "main",
		ArtifactTypes:  []string{"diff", "pr"},
	})
}

func TestFactsEvaluateLeafOperators(t *testing.T) {
	facts := testFacts()
	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"eq match", Condition{Fact: "pr.number", Operator: "==", Value: 42}, true},
		{"eq numeric string", Condition{Fact: "pr.number", Operator: "==", Value: "42"}, true},
		{"neq", Condition{Fact: "scope.branch", Operator: "!=", Value: "develop"}, true},
		{"gt", Condition{Fact: "pr.approvals.count", Operator: ">", Value: 1}, true},
		{"gte boundary", Condition{Fact: "pr.approvals.count", Operator: ">=", Value: 2}, true},
		{"lt fails", Condition{Fact: "pr.approvals.count", Operator: "<", Value: 2}, false},
		{"in", Condition{Fact: "scope.branch", Operator: "in", Value: []string{"main", "master"}}, true},
		{"contains string", Condition{Fact: "pr.body", Operator: "contains", Value: "backoff"}, true},
		{"contains list element", Condition{Fact: "pr.labels", Operator: "contains", Value: "docs-exempt"}, true},
		{"contains glob over paths", Condition{Fact: "diff.filesChanged.paths", Operator: "contains", Value: "docs/**"}, true},
		{"containsAll", Condition{Fact: "artifacts.types", Operator: "containsAll", Value: []string{"diff", "pr"}}, true},
		{"containsAll missing one", Condition{Fact: "artifacts.types", Operator: "containsAll", Value: []string{"diff", "openapi"}}, false},
		{"matches", Condition{Fact: "actor.user", Operator: "matches", Value: `\[bot\]$`}, true},
		{"startsWith", Condition{Fact: "pr.title", Operator: "startsWith", Value: "Add"}, true},
		{"endsWith", Condition{Fact: "scope.branch", Operator: "endsWith", Value: "ain"}, true},
		{"unknown fact fails closed", Condition{Fact: "pr.mergeable", Operator: "==", Value: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := facts.Evaluate(&tt.cond)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%s %s %v) = %v, want %v", tt.cond.Fact, tt.cond.Operator, tt.cond.Value, got, tt.want)
			}
		})
	}
}

func TestFactsEvaluateComposite(t *testing.T) {
	facts := testFacts()

	and := &Condition{And: []*Condition{
		{Fact: "pr.approvals.count", Operator: ">=", Value: 1},
		{Fact: "scope.branch", Operator: "==", Value: "main"},
	}}
	if ok, err := facts.Evaluate(and); err != nil || !ok {
		t.Errorf("and = (%v, %v), want (true, nil)", ok, err)
	}

	or := &Condition{Or: []*Condition{
		{Fact: "scope.branch", Operator: "==", Value: "develop"},
		{Fact: "scope.branch", Operator: "==", Value: "main"},
	}}
	if ok, err := facts.Evaluate(or); err != nil || !ok {
		t.Errorf("or = (%v, %v), want (true, nil)", ok, err)
	}

	not := &Condition{Not: &Condition{Fact: "actor.isAgent", Operator: "==", Value: true}}
	if ok, err := facts.Evaluate(not); err != nil || !ok {
		t.Errorf("not = (%v, %v), want (true, nil)", ok, err)
	}

	nested := &Condition{And: []*Condition{
		{Fact: "pr.labels", Operator: "contains", Value: "backend"},
		{Or: []*Condition{
			{Fact: "pr.approvals.count", Operator: ">=", Value: 5},
			{Fact: "diff.filesChanged.count", Operator: "<=", Value: 2},
		}},
	}}
	if ok, err := facts.Evaluate(nested); err != nil || !ok {
		t.Errorf("nested = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestNumericOperatorRejectsStrings(t *testing.T) {
	facts := testFacts()
	_, err := facts.Evaluate(&Condition{Fact: "pr.title", Operator: ">", Value: 3})
	if err == nil {
		t.Error("expected error comparing non-numeric fact with >")
	}
}

func TestPathMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"docs/runbook.md", "docs/runbook.md", true},
		{"docs/*.md", "docs/runbook.md", true},
		{"docs/*.md", "docs/sub/runbook.md", false},
		{"docs/**", "docs/sub/runbook.md", true},
		{"**", "anything/at/all.go", true},
		{"api/**", "internal/api.go", false},
	}
	for _, tt := range tests {
		if got := pathMatch(tt.pattern, tt.path); got != tt.want {
			t.Errorf("pathMatch(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}
