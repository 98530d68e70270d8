package evidence

import (
	"testing"

	"github.com/docdrift/docdrift/internal/models"
)

func TestDetectToolMigrations(t *testing.T) {
	tests := []struct {
		name  string
		files []models.ChangedFile
		want  []ToolMigration
	}{
		{
			name: "circleci to github actions with removal",
			files: []models.ChangedFile{
				{Path: ".circleci/config.yml", Status: "removed"},
				{Path: ".github/workflows/ci.yml", Status: "added"},
			},
			want: []ToolMigration{
				{FromTool: "circleci", ToTool: "github_actions", Confidence: 0.8, OldRemoved: true, NewAdded: 1},
			},
		},
		{
			name: "multiple new workflows bump confidence",
			files: []models.ChangedFile{
				{Path: ".circleci/config.yml", Status: "removed"},
				{Path: ".github/workflows/ci.yml", Status: "added"},
				{Path: ".github/workflows/release.yml", Status: "added"},
			},
			want: []ToolMigration{
				{FromTool: "circleci", ToTool: "github_actions", Confidence: 0.9, OldRemoved: true, NewAdded: 2},
			},
		},
		{
			name: "old tool only modified",
			files: []models.ChangedFile{
				{Path: ".travis.yml", Status: "modified"},
				{Path: ".github/workflows/ci.yml", Status: "added"},
			},
			want: []ToolMigration{
				{FromTool: "travis", ToTool: "github_actions", Confidence: 0.5, OldRemoved: false, NewAdded: 1},
			},
		},
		{
			name: "no new tool means no migration",
			files: []models.ChangedFile{
				{Path: ".circleci/config.yml", Status: "modified"},
			},
			want: nil,
		},
		{
			name: "new tool without old tool is not a migration",
			files: []models.ChangedFile{
				{Path: ".github/workflows/ci.yml", Status: "added"},
			},
			want: nil,
		},
		{
			name: "npm to pnpm",
			files: []models.ChangedFile{
				{Path: "package-lock.json", Status: "removed"},
				{Path: "pnpm-lock.yaml", Status: "added"},
			},
			want: []ToolMigration{
				{FromTool: "npm", ToTool: "pnpm", Confidence: 0.8, OldRemoved: true, NewAdded: 1},
			},
		},
		{
			name: "docker compose to helm",
			files: []models.ChangedFile{
				{Path: "docker-compose.yml", Status: "removed"},
				{Path: "helm/values.yaml", Status: "added"},
				{Path: "helm/Chart.yaml", Status: "added"},
			},
			want: []ToolMigration{
				{FromTool: "docker_compose", ToTool: "helm", Confidence: 0.9, OldRemoved: true, NewAdded: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := &models.GitHubPRExtracted{ChangedFiles: tt.files}
			got := DetectToolMigrations(pr)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d migrations, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("migration[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
