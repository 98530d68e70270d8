package evidence

import (
	"strings"

	"github.com/docdrift/docdrift/internal/models"
)

// ToolMigration is a detected old-tool to new-tool transition in a PR diff
type ToolMigration struct {
	FromTool   string  `json:"from_tool"`
	ToTool     string  `json:"to_tool"`
	Confidence float64 `json:"confidence"`
	OldRemoved bool    `json:"old_removed"`
	NewAdded   int     `json:"new_added"`
}

// migrationPairs maps file-path fragments of the old tool to the fragments
// and name of its usual replacement.
var migrationPairs = []struct {
	oldFragment string
	oldTool     string
	newFragment string
	newTool     string
}{
	{".circleci/", "circleci", ".github/workflows/", "github_actions"},
	{".travis.yml", "travis", ".github/workflows/", "github_actions"},
	{"Jenkinsfile", "jenkins", ".github/workflows/", "github_actions"},
	{".gitlab-ci", "gitlab_ci", ".github/workflows/", "github_actions"},
	{"package-lock.json", "npm", "yarn.lock", "yarn"},
	{"package-lock.json", "npm", "pnpm-lock.yaml", "pnpm"},
	{"yarn.lock", "yarn", "pnpm-lock.yaml", "pnpm"},
	{"requirements.txt", "pip", "poetry.lock", "poetry"},
	{"docker-compose", "docker_compose", "helm/", "helm"},
}

// DetectToolMigrations scans the changed files of a PR for tool transitions.
// Confidence starts at 0.5 when both sides appear in the diff, +0.3 when the
// old tool's file is removed (modified does not count), +0.1 when several new
// files were added.
func DetectToolMigrations(pr *models.GitHubPRExtracted) []ToolMigration {
	var out []ToolMigration
	for _, pair := range migrationPairs {
		oldPresent, oldRemoved := false, false
		newAdded := 0
		for _, f := range pr.ChangedFiles {
			if strings.Contains(f.Path, pair.oldFragment) {
				oldPresent = true
				if f.Status == "removed" {
					oldRemoved = true
				}
			}
			if strings.Contains(f.Path, pair.newFragment) && f.Status == "added" {
				newAdded++
			}
		}
		if !oldPresent || newAdded == 0 {
			continue
		}

		conf := 0.5
		if oldRemoved {
			conf += 0.3
		}
		if newAdded > 1 {
			conf += 0.1
		}
		out = append(out, ToolMigration{
			FromTool:   pair.oldTool,
			ToTool:     pair.newTool,
			Confidence: conf,
			OldRemoved: oldRemoved,
			NewAdded:   newAdded,
		})
	}
	return out
}
