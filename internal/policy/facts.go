package policy

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// FactCatalogVersion tags the fact namespace so packs can assert which
// catalog they were authored against.
const FactCatalogVersion = "v1"

// Facts is the resolved view of one evaluation subject. Values are scalars
// or []string; conditions resolve fact names against it.
type Facts map[string]any

// FactInput is everything the catalog derives facts from
type FactInput struct {
	PRNumber        int
	PRTitle         string
	PRBody          string
	PRLabels        []string
	Actor           string
	ActorIsAgent    bool
	ApprovalsCount  int
	Approvers       []string
	ChangedPaths    []string
	ChangedStatus   map[string]string // path -> added|removed|modified
	Diff            string
	CheckRunsPassed bool
	WorkspaceID     string
	Repo            string
	Branch          string
	ArtifactTypes   []string
}

// BuildFacts materializes the versioned fact catalog from the input
func BuildFacts(in *FactInput) Facts {
	return Facts{
		"catalog.version":         FactCatalogVersion,
		"pr.number":               in.PRNumber,
		"pr.title":                in.PRTitle,
		"pr.body":                 in.PRBody,
		"pr.labels":               in.PRLabels,
		"pr.approvals.count":      in.ApprovalsCount,
		"pr.approvals.users":      in.Approvers,
		"pr.checkruns.passed":     in.CheckRunsPassed,
		"diff.filesChanged.count": len(in.ChangedPaths),
		"diff.filesChanged.paths": in.ChangedPaths,
		"diff.text":               in.Diff,
		"actor.user":              in.Actor,
		"actor.isAgent":           in.ActorIsAgent,
		"scope.workspace":         in.WorkspaceID,
		"scope.repo":              in.Repo,
		"scope.branch":            in.Branch,
		"artifacts.types":         in.ArtifactTypes,
	}
}

var operators = map[string]bool{
	"==": true, "!=": true, ">": true, ">=": true, "<": true, "<=": true,
	"in": true, "contains": true, "containsAll": true, "matches": true,
	"startsWith": true, "endsWith": true,
}

func knownOperator(op string) bool { return operators[op] }

// Evaluate resolves a condition tree against the facts.
// Unknown facts fail the leaf rather than erroring so a pack authored
// against a newer catalog degrades to its decisionOnFail.
func (f Facts) Evaluate(c *Condition) (bool, error) {
	switch {
	case len(c.And) > 0:
		for _, child := range c.And {
			ok, err := f.Evaluate(child)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case len(c.Or) > 0:
		for _, child := range c.Or {
			ok, err := f.Evaluate(child)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case c.Not != nil:
		ok, err := f.Evaluate(c.Not)
		return !ok, err
	}

	actual, present := f[c.Fact]
	if !present {
		return false, nil
	}
	return applyOperator(actual, c.Operator, c.Value)
}

func applyOperator(actual any, op string, expected any) (bool, error) {
	switch op {
	case "==":
		return equalValues(actual, expected), nil
	case "!=":
		return !equalValues(actual, expected), nil
	case ">", ">=", "<", "<=":
		a, aok := toFloat(actual)
		b, bok := toFloat(expected)
		if !aok || !bok {
			return false, fmt.Errorf("operator %s needs numeric operands", op)
		}
		switch op {
		case ">":
			return a > b, nil
		case ">=":
			return a >= b, nil
		case "<":
			return a < b, nil
		default:
			return a <= b, nil
		}
	case "in":
		for _, candidate := range toStrings(expected) {
			if equalValues(actual, candidate) {
				return true, nil
			}
		}
		return false, nil
	case "contains":
		if s, ok := actual.(string); ok {
			return strings.Contains(s, fmt.Sprint(expected)), nil
		}
		for _, item := range toStrings(actual) {
			if equalValues(item, expected) || pathMatch(fmt.Sprint(expected), item) {
				return true, nil
			}
		}
		return false, nil
	case "containsAll":
		have := toStrings(actual)
		for _, want := range toStrings(expected) {
			found := false
			for _, h := range have {
				if h == want || pathMatch(want, h) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		}
		return true, nil
	case "matches":
		re, err := regexp.Compile(fmt.Sprint(expected))
		if err != nil {
			return false, fmt.Errorf("matches pattern: %w", err)
		}
		if s, ok := actual.(string); ok {
			return re.MatchString(s), nil
		}
		for _, item := range toStrings(actual) {
			if re.MatchString(item) {
				return true, nil
			}
		}
		return false, nil
	case "startsWith":
		return strings.HasPrefix(fmt.Sprint(actual), fmt.Sprint(expected)), nil
	case "endsWith":
		return strings.HasSuffix(fmt.Sprint(actual), fmt.Sprint(expected)), nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

func equalValues(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case string:
		return []string{t}
	case nil:
		return nil
	}
	return []string{fmt.Sprint(v)}
}

// pathMatch treats the expected value as a glob over path segments, with **
// crossing directory boundaries.
func pathMatch(pattern, p string) bool {
	if pattern == p {
		return true
	}
	if strings.Contains(pattern, "**") {
		prefix := strings.Split(pattern, "**")[0]
		return strings.HasPrefix(p, strings.TrimSuffix(prefix, "/"))
	}
	ok, err := path.Match(pattern, p)
	return err == nil && ok
}
