package evidence

import (
	"regexp"
	"strings"

	"github.com/docdrift/docdrift/internal/models"
)

// knownToolMentions are tool names detected in document prose, mapped to the
// same canonical names the path-based extractor produces.
var knownToolMentions = map[string]string{
	"circleci":       "circleci",
	"circle ci":      "circleci",
	"github actions": "github_actions",
	"jenkins":        "jenkins",
	"travis":         "travis",
	"gitlab ci":      "gitlab_ci",
	"docker":         "docker",
	"podman":         "podman",
	"docker-compose": "docker_compose",
	"docker compose": "docker_compose",
	"kubectl":        "kubectl",
	"helm":           "helm",
	"terraform":      "terraform",
	"pulumi":         "pulumi",
	"cloudformation": "cloudformation",
	"npm":            "npm",
	"yarn":           "yarn",
	"pnpm":           "pnpm",
	"pip":            "pip",
	"poetry":         "poetry",
}

var (
	stepLinePattern = regexp.MustCompile(`(?m)^\s*(?:\d+[.)]|[-*]\s+\[?\s?\]?)\s+(.+?)\s*$`)
	handlePattern   = regexp.MustCompile(`(@[A-Za-z0-9_/-]{2,})`)
)

// FromDocument extracts BaselineArtifacts from document text so the
// comparison engine can diff it against signal-side artifacts.
func FromDocument(content string) *models.BaselineArtifacts {
	a := &models.BaselineArtifacts{}
	lower := strings.ToLower(content)

	a.Commands = matchGroup(commandPattern, content, 1)
	a.ConfigKeys = matchGroup(configKeyPattern, content, 1)
	a.Endpoints = extractRoutes(content)
	a.Versions = matchGroup(versionPattern, content, 1)
	a.Owners = matchGroup(handlePattern, content, 1)

	for mention, canonical := range knownToolMentions {
		if strings.Contains(lower, mention) {
			a.Tools = append(a.Tools, canonical)
		}
	}

	for _, m := range stepLinePattern.FindAllStringSubmatch(content, -1) {
		a.Steps = append(a.Steps, strings.TrimSpace(m[1]))
	}

	dedupeAll(a)
	return a
}
