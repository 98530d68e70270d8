package evidence

import (
	"regexp"
	"sort"
	"strings"

	"github.com/docdrift/docdrift/internal/models"
)

// Deterministic pattern-based extraction. Every family is a fixed regex over
// the signal text; no model calls happen here so the same input always yields
// the same BaselineArtifacts.

var (
	// shell command lines inside diffs, code fences or timeline summaries
	commandPattern = regexp.MustCompile(`(?m)(?:^|[\x60$]\s?)((?:sudo\s+)?(?:npm|yarn|pnpm|pip|pip3|go|make|docker|podman|kubectl|helm|terraform|pulumi|aws|gcloud|az|git|cargo|mvn|gradle|bundle|rake|flyctl|vercel)\s+[a-z][a-z0-9_.:-]*(?:\s+[^\s\x60]+)*)`)

	// UPPER_SNAKE env-var style config keys, at least two segments
	configKeyPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]+(?:_[A-Z0-9]+)+)\b`)

	// URL route paths and @Decorator('/path') forms
	routePattern     = regexp.MustCompile(`(?:GET|POST|PUT|PATCH|DELETE)\s+(/[a-zA-Z0-9_\-{}/.:]+)|\b(/api/[a-zA-Z0-9_\-{}/.:]+)`)
	decoratorPattern = regexp.MustCompile(`@[A-Z][A-Za-z]*\(\s*['"](/[^'"]*)['"]`)

	// semver-ish version strings with an explicit v or x.y.z shape
	versionPattern = regexp.MustCompile(`\bv?(\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?)\b`)

	// port numbers worth recording as config surface
	portPattern = regexp.MustCompile(`(?:port|PORT)["'\s:=]+(\d{2,5})\b`)
)

// toolPathPatterns maps a changed-file path fragment to the tool it implies
var toolPathPatterns = []struct {
	fragment string
	tool     string
}{
	{".circleci/", "circleci"},
	{".github/workflows/", "github_actions"},
	{"Jenkinsfile", "jenkins"},
	{".travis.yml", "travis"},
	{".gitlab-ci", "gitlab_ci"},
	{"Dockerfile", "docker"},
	{"docker-compose", "docker_compose"},
	{"helm/", "helm"},
	{"Chart.yaml", "helm"},
	{"terraform", "terraform"},
	{"Pulumi.", "pulumi"},
	{"cloudformation/", "cloudformation"},
	{"package-lock.json", "npm"},
	{"yarn.lock", "yarn"},
	{"pnpm-lock.yaml", "pnpm"},
	{"Gemfile.lock", "bundler"},
	{"go.sum", "go_modules"},
	{"requirements.txt", "pip"},
	{"poetry.lock", "poetry"},
}

func toolsForPath(p string) []string {
	var out []string
	for _, tp := range toolPathPatterns {
		if strings.Contains(p, tp.fragment) {
			out = append(out, tp.tool)
		}
	}
	return out
}

// FromSignal extracts BaselineArtifacts from a normalized signal event
func FromSignal(ev *models.SignalEvent) *models.BaselineArtifacts {
	a := &models.BaselineArtifacts{}

	switch {
	case ev.Extracted.GitHubPR != nil:
		extractFromPR(ev.Extracted.GitHubPR, a)
	case ev.Extracted.PagerDuty != nil:
		extractFromIncident(ev.Extracted.PagerDuty, a)
	case ev.Extracted.SlackCluster != nil:
		extractFromCluster(ev.Extracted.SlackCluster, a)
	case ev.Extracted.MonitorAlert != nil:
		extractFromAlert(ev.Extracted.MonitorAlert, a)
	}

	dedupeAll(a)
	return a
}

func extractFromPR(pr *models.GitHubPRExtracted, a *models.BaselineArtifacts) {
	text := pr.Title + "\n" + pr.Body + "\n" + pr.Diff

	a.Commands = append(a.Commands, matchGroup(commandPattern, text, 1)...)
	a.ConfigKeys = append(a.ConfigKeys, matchGroup(configKeyPattern, text, 1)...)
	a.Endpoints = append(a.Endpoints, extractRoutes(text)...)
	a.Versions = append(a.Versions, matchGroup(versionPattern, text, 1)...)
	a.ConfigKeys = append(a.ConfigKeys, matchGroup(portPattern, text, 1)...)

	for _, f := range pr.ChangedFiles {
		a.Paths = append(a.Paths, f.Path)
		a.Tools = append(a.Tools, toolsForPath(f.Path)...)
		if strings.Contains(f.Path, "CODEOWNERS") {
			a.Owners = append(a.Owners, ownersFromCodeownersPatch(f.Patch)...)
		}
		if isDependencyManifest(f.Path) {
			a.Dependencies = append(a.Dependencies, dependenciesFromPatch(f.Patch)...)
		}
	}
}

func extractFromIncident(inc *models.PagerDutyExtracted, a *models.BaselineArtifacts) {
	a.Teams = append(a.Teams, inc.Teams...)
	a.Owners = append(a.Owners, inc.Responders...)
	for _, t := range inc.Timeline {
		a.Steps = append(a.Steps, t.Summary)
		a.Commands = append(a.Commands, matchGroup(commandPattern, t.Summary, 1)...)
	}
	if inc.Service != "" {
		a.Scenarios = append(a.Scenarios, "incident:"+inc.Service)
	}
	if inc.EscalationPolicy != "" {
		a.Sequences = append(a.Sequences, inc.EscalationPolicy)
	}
}

func extractFromCluster(cl *models.SlackClusterExtracted, a *models.BaselineArtifacts) {
	a.Channels = append(a.Channels, cl.Channel)
	for _, q := range cl.Questions {
		a.Scenarios = append(a.Scenarios, q)
		a.Commands = append(a.Commands, matchGroup(commandPattern, q, 1)...)
		a.ConfigKeys = append(a.ConfigKeys, matchGroup(configKeyPattern, q, 1)...)
	}
}

func extractFromAlert(al *models.MonitorAlertExtracted, a *models.BaselineArtifacts) {
	a.Features = append(a.Features, al.MonitorName)
	a.Errors = append(a.Errors, al.AlertType)
	for _, t := range al.Tags {
		switch {
		case strings.HasPrefix(t, "env:"):
			a.Platforms = append(a.Platforms, strings.TrimPrefix(t, "env:"))
		case strings.HasPrefix(t, "team:"):
			a.Teams = append(a.Teams, strings.TrimPrefix(t, "team:"))
		}
	}
	if al.Metric != "" {
		a.ConfigKeys = append(a.ConfigKeys, al.Metric)
	}
}

func extractRoutes(text string) []string {
	var out []string
	for _, m := range routePattern.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			out = append(out, m[1])
		} else if m[2] != "" {
			out = append(out, m[2])
		}
	}
	out = append(out, matchGroup(decoratorPattern, text, 1)...)
	return out
}

func matchGroup(re *regexp.Regexp, text string, group int) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if len(m) > group && m[group] != "" {
			out = append(out, strings.TrimSpace(m[group]))
		}
	}
	return out
}

func isDependencyManifest(p string) bool {
	base := p[strings.LastIndex(p, "/")+1:]
	switch base {
	case "package.json", "go.mod", "requirements.txt", "Gemfile", "pom.xml", "Cargo.toml", "pyproject.toml":
		return true
	}
	return false
}

// dependenciesFromPatch pulls added dependency names out of a manifest diff
var depLinePattern = regexp.MustCompile(`(?m)^\+\s*["']?([a-zA-Z0-9@][a-zA-Z0-9@_./-]*)["']?\s*[:=]?\s*["']?v?\d`)

func dependenciesFromPatch(patch string) []string {
	return matchGroup(depLinePattern, patch, 1)
}

// ownersFromCodeownersPatch pulls @handles out of added CODEOWNERS lines
var codeownersHandlePattern = regexp.MustCompile(`(?m)^\+.*?(@[A-Za-z0-9_/-]+)`)

func ownersFromCodeownersPatch(patch string) []string {
	return matchGroup(codeownersHandlePattern, patch, 1)
}

func dedupeAll(a *models.BaselineArtifacts) {
	a.Commands = dedupe(a.Commands)
	a.ConfigKeys = dedupe(a.ConfigKeys)
	a.Endpoints = dedupe(a.Endpoints)
	a.Tools = dedupe(a.Tools)
	a.Steps = dedupe(a.Steps)
	a.Decisions = dedupe(a.Decisions)
	a.Sequences = dedupe(a.Sequences)
	a.Teams = dedupe(a.Teams)
	a.Owners = dedupe(a.Owners)
	a.Paths = dedupe(a.Paths)
	a.Channels = dedupe(a.Channels)
	a.Platforms = dedupe(a.Platforms)
	a.Versions = dedupe(a.Versions)
	a.Dependencies = dedupe(a.Dependencies)
	a.Scenarios = dedupe(a.Scenarios)
	a.Features = dedupe(a.Features)
	a.Errors = dedupe(a.Errors)
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
