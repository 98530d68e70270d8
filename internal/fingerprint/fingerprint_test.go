package fingerprint

import (
	"testing"

	"github.com/docdrift/docdrift/internal/models"
)

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Deploy Service", "deploy service"},
		{"env suffix stripped", "payments-prod", "payments"},
		{"staging suffix stripped", "payments_staging", "payments"},
		{"tool alias kubectl", "kubectl", "k8s_tool"},
		{"tool alias helm", "helm", "k8s_tool"},
		{"tool alias in command", "kubectl apply -f deploy.yaml", "k8s_tool apply -f deploy.yaml"},
		{"version collapsed", "redis 7.2.1", "redis <version>"},
		{"port collapsed", "listen on 8080", "listen on <port>"},
		{"semver with prerelease", "v1.4.0-rc.2", "<version>"},
		{"whitespace trimmed", "  make build  ", "make build"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeToken(tt.in); got != tt.want {
				t.Errorf("NormalizeToken(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestComputeStableAcrossCosmeticVariants(t *testing.T) {
	a := &models.BaselineArtifacts{
		Commands: []string{"kubectl apply -f deploy.yaml", "make build"},
		Tools:    []string{"docker"},
	}
	b := &models.BaselineArtifacts{
		Commands: []string{"make build", "Kubectl apply -f deploy.yaml"},
		Tools:    []string{"podman"},
	}

	fpA := Compute(models.SourceGitHubPR, "confluence:SPACE/123", "confluence:payments", models.DriftInstruction, a)
	fpB := Compute(models.SourceGitHubPR, "confluence:SPACE/123", "confluence:payments", models.DriftInstruction, b)

	if fpA.Strict != fpB.Strict {
		t.Errorf("strict fingerprints differ for cosmetic variants: %s vs %s", fpA.Strict, fpB.Strict)
	}
	if fpA.Broad != fpB.Broad {
		t.Errorf("broad fingerprints differ: %s vs %s", fpA.Broad, fpB.Broad)
	}
}

func TestComputeDistinguishesLevels(t *testing.T) {
	artifacts := &models.BaselineArtifacts{Commands: []string{"make deploy"}}

	fp := Compute(models.SourceGitHubPR, "confluence:SPACE/123", "confluence:payments", models.DriftInstruction, artifacts)
	other := Compute(models.SourceGitHubPR, "confluence:SPACE/456", "confluence:payments", models.DriftInstruction, artifacts)

	if fp.Strict == other.Strict {
		t.Error("strict fingerprint should differ when the target document differs")
	}
	if fp.Broad != other.Broad {
		t.Error("broad fingerprint should match when only the document differs inside one surface")
	}
}

func TestComputeDriftTypeChangesAllLevels(t *testing.T) {
	artifacts := &models.BaselineArtifacts{Commands: []string{"make deploy"}}

	a := Compute(models.SourceGitHubPR, "confluence:SPACE/123", "confluence:payments", models.DriftInstruction, artifacts)
	b := Compute(models.SourceGitHubPR, "confluence:SPACE/123", "confluence:payments", models.DriftOwnership, artifacts)

	if a.Strict == b.Strict || a.Medium == b.Medium || a.Broad == b.Broad {
		t.Error("drift type must be part of every fingerprint level")
	}
}

func TestComputeDedupesTokens(t *testing.T) {
	a := &models.BaselineArtifacts{
		Commands: []string{"make build", "make build"},
	}
	b := &models.BaselineArtifacts{
		Commands: []string{"make build"},
	}
	fpA := Compute(models.SourceGitHubPR, "t", "s", models.DriftInstruction, a)
	fpB := Compute(models.SourceGitHubPR, "t", "s", models.DriftInstruction, b)
	if fpA.Strict != fpB.Strict {
		t.Error("duplicate tokens must not change the fingerprint")
	}
}

func TestComputeLevelsNeverCollide(t *testing.T) {
	// With ten or fewer tokens the medium subset equals the full token set;
	// the level tag still keeps the three hashes distinct.
	artifacts := &models.BaselineArtifacts{Commands: []string{"make deploy"}}

	fp := Compute(models.SourceGitHubPR, "confluence:SPACE/123", "confluence:payments", models.DriftInstruction, artifacts)

	if fp.Strict == fp.Medium {
		t.Error("strict and medium fingerprints must differ even for small token sets")
	}
	if fp.Medium == fp.Broad || fp.Strict == fp.Broad {
		t.Error("broad fingerprint must not collide with the finer levels")
	}
}
