package policy

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/docdrift/docdrift/internal/errors"
)

// Default evaluation budgets applied when a pack declares none
const (
	defaultTotalTimeout      = 30 * time.Second
	defaultComparatorTimeout = 5 * time.Second
	defaultMaxAPICalls       = 20
)

// ObligationResult is one obligation's evaluated outcome with provenance
type ObligationResult struct {
	RuleID       string   `json:"rule_id"`
	PackID       string   `json:"pack_id"`
	ComparatorID string   `json:"comparator_id,omitempty"`
	Passed       bool     `json:"passed"`
	Decision     Decision `json:"decision"` // pass when Passed, decisionOnFail otherwise
	Detail       string   `json:"detail,omitempty"`
}

// EvalResult is the full policy verdict for one subject
type EvalResult struct {
	Blocked      bool               `json:"blocked"`
	Warnings     int                `json:"warnings"`
	Obligations  []ObligationResult `json:"obligations"`
	FiredRules   []string           `json:"fired_rules"`
	SkippedRules []string           `json:"skipped_rules,omitempty"`
	APICalls     int                `json:"api_calls"`
}

// Evaluator runs a merged pack against a fact subject within its budgets
type Evaluator struct {
	registry *Registry
	logger   *slog.Logger
}

func NewEvaluator(registry *Registry) *Evaluator {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Evaluator{
		registry: registry,
		logger:   slog.Default().With("component", "policy"),
	}
}

// Evaluate runs every triggered rule's obligations. Budget exhaustion fails
// with BUDGET_EXCEEDED; a single slow comparator with COMPARATOR_TIMEOUT.
func (e *Evaluator) Evaluate(ctx context.Context, merged *MergedPack, subject *FactInput, budgets *Budgets) (*EvalResult, error) {
	total, perComparator, maxCalls := effectiveBudgets(budgets)

	ctx, cancel := context.WithTimeout(ctx, total)
	defer cancel()

	facts := BuildFacts(subject)
	res := &EvalResult{}

	for _, mr := range merged.Rules {
		rule := mr.Rule
		if skip(rule.SkipIf, subject) {
			res.SkippedRules = append(res.SkippedRules, rule.ID)
			continue
		}
		if !triggered(rule.Trigger, subject.ChangedPaths) {
			continue
		}
		res.FiredRules = append(res.FiredRules, rule.ID)

		for _, ob := range rule.Obligations {
			if ctx.Err() != nil {
				return nil, errors.Newf(errors.CodeBudgetExceeded,
					"policy evaluation exceeded %s total budget", total)
			}

			passed, detail, apiCall, err := e.evaluateObligation(ctx, &ob, subject, facts, perComparator)
			if err != nil {
				return nil, err
			}
			if apiCall {
				res.APICalls++
				if res.APICalls > maxCalls {
					return nil, errors.Newf(errors.CodeBudgetExceeded,
						"policy evaluation exceeded %d API calls", maxCalls)
				}
			}

			or := ObligationResult{
				RuleID:       rule.ID,
				PackID:       mr.PackID,
				ComparatorID: ob.ComparatorID,
				Passed:       passed,
				Decision:     DecisionPass,
				Detail:       detail,
			}
			if !passed {
				or.Decision = ob.DecisionOnFail
				switch ob.DecisionOnFail {
				case DecisionBlock:
					res.Blocked = true
				case DecisionWarn:
					res.Warnings++
				}
			}
			res.Obligations = append(res.Obligations, or)
		}
	}

	e.logger.Info("policy evaluated",
		"fired_rules", len(res.FiredRules),
		"blocked", res.Blocked,
		"warnings", res.Warnings,
		"api_calls", res.APICalls,
	)
	return res, nil
}

// evaluateObligation prefers the fact condition when present; the comparator
// runs when no condition exists or the obligation declares only a comparator.
func (e *Evaluator) evaluateObligation(ctx context.Context, ob *Obligation, subject *FactInput, facts Facts, perComparator time.Duration) (passed bool, detail string, apiCall bool, err error) {
	if ob.Conditions != nil {
		ok, cerr := facts.Evaluate(ob.Conditions)
		if cerr != nil {
			return false, "", false, errors.Wrap(errors.CodePolicyPackValidation, "condition evaluation failed", cerr)
		}
		return ok, "", false, nil
	}

	comparator, err := e.registry.Lookup(ob.ComparatorID)
	if err != nil {
		return false, "", false, err
	}
	if !comparator.CanCompare(subject) {
		// Not applicable to this subject; the obligation passes vacuously
		return true, "not applicable", false, nil
	}

	cctx, cancel := context.WithTimeout(ctx, perComparator)
	defer cancel()

	done := make(chan struct{})
	var outcome *ComparisonOutcome
	var cmpErr error
	go func() {
		outcome, cmpErr = comparator.PerformComparison(cctx, subject, ob.Params)
		close(done)
	}()

	select {
	case <-done:
	case <-cctx.Done():
		return false, "", false, errors.Newf(errors.CodeComparatorTimeout,
			"comparator %s exceeded %s", ob.ComparatorID, perComparator)
	}
	if cmpErr != nil {
		return false, "", false, errors.Wrap(errors.CodePolicyPackValidation,
			"comparator "+ob.ComparatorID+" failed", cmpErr)
	}
	return outcome.Passed, outcome.Detail, outcome.APICall, nil
}

func effectiveBudgets(b *Budgets) (total, perComparator time.Duration, maxCalls int) {
	total, perComparator, maxCalls = defaultTotalTimeout, defaultComparatorTimeout, defaultMaxAPICalls
	if b == nil {
		return
	}
	if b.TotalTimeoutSeconds > 0 {
		total = time.Duration(b.TotalTimeoutSeconds) * time.Second
	}
	if b.PerComparatorTimeoutSeconds > 0 {
		perComparator = time.Duration(b.PerComparatorTimeoutSeconds) * time.Second
	}
	if b.MaxAPICalls > 0 {
		maxCalls = b.MaxAPICalls
	}
	return
}

func triggered(t Trigger, changedPaths []string) bool {
	if t.Always {
		return true
	}
	for _, pat := range t.AnyChangedPaths {
		for _, p := range changedPaths {
			if pathMatch(pat, p) {
				return true
			}
		}
	}
	if len(t.AllChangedPaths) > 0 {
		for _, pat := range t.AllChangedPaths {
			found := false
			for _, p := range changedPaths {
				if pathMatch(pat, p) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	return false
}

func skip(s *SkipIf, subject *FactInput) bool {
	if s == nil {
		return false
	}
	for _, want := range s.Labels {
		for _, l := range subject.PRLabels {
			if l == want {
				return true
			}
		}
	}
	if len(s.AllChangedPaths) > 0 && len(subject.ChangedPaths) > 0 {
		all := true
		for _, p := range subject.ChangedPaths {
			matched := false
			for _, pat := range s.AllChangedPaths {
				if pathMatch(pat, p) {
					matched = true
					break
				}
			}
			if !matched {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	for _, needle := range s.PRBodyContains {
		if strings.Contains(subject.PRBody, needle) {
			return true
		}
	}
	return false
}
