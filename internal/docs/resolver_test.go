package docs

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdrift/docdrift/internal/models"
)

// fakeAdapter serves canned documents keyed by DocRef.ID
type fakeAdapter struct {
	content map[string]string
	titles  map[string]string
	fail    map[string]bool
}

func (f *fakeAdapter) Fetch(ctx context.Context, ref models.DocRef) (*DocFetchResult, error) {
	if f.fail[ref.ID] {
		return nil, fmt.Errorf("fetch %s: connection refused", ref.ID)
	}
	body, ok := f.content[ref.ID]
	if !ok {
		return nil, fmt.Errorf("fetch %s: not found", ref.ID)
	}
	return &DocFetchResult{Content: body, Revision: "r1", Title: f.titles[ref.ID]}, nil
}

func (f *fakeAdapter) WritePatch(ctx context.Context, params WriteParams) (*WriteResult, error) {
	return &WriteResult{Revision: "r2"}, nil
}

func (f *fakeAdapter) SupportsDirectWriteback() bool { return true }

func (f *fakeAdapter) DocURL(ref models.DocRef) string { return "https://docs.example/" + ref.ID }

func resolverFixture(fa *fakeAdapter, refs ...models.DocRef) *Resolver {
	reg := NewRegistry()
	reg.Register("confluence", fa)
	cat := NewStaticCatalog()
	cat.Add("ws1", "payments", refs...)
	return NewResolver(reg, cat, 2)
}

func TestResolveClearWinner(t *testing.T) {
	fa := &fakeAdapter{
		content: map[string]string{
			"runbook": "Deploy payments with helm upgrade.",
			"faq":     "General onboarding notes for the Payments team.",
		},
		titles: map[string]string{"runbook": "Payments Runbook", "faq": "Payments FAQ"},
	}
	r := resolverFixture(fa,
		models.DocRef{System: "confluence", ID: "runbook"},
		models.DocRef{System: "confluence", ID: "faq"},
	)

	ws := &models.Workspace{ID: "ws1"}
	c := &models.DriftCandidate{ID: "d1", Service: "payments"}
	artifacts := &models.BaselineArtifacts{Tools: []string{"helm"}}

	res, err := r.Resolve(context.Background(), ws, c, artifacts)
	require.NoError(t, err)
	assert.Equal(t, ResolutionResolved, res.Status)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "runbook", res.Candidates[0].Ref.ID)
	assert.InDelta(t, 0.6, res.Candidates[0].Score, 0.001, "tool mention plus service name")
	assert.Contains(t, res.Candidates[0].MatchedOn, "tool_mentions")
	assert.Contains(t, res.Candidates[0].MatchedOn, "service_name")
	assert.InDelta(t, 0.6, res.Confidence, 0.001)
	assert.Equal(t, "Payments Runbook", res.Candidates[0].Title)
}

func TestResolveAmbiguousWhenScoresClose(t *testing.T) {
	fa := &fakeAdapter{
		content: map[string]string{
			"a": "Use helm for releases.",
			"b": "Releases also go through helm here.",
		},
		titles: map[string]string{"a": "Doc A", "b": "Doc B"},
	}
	r := resolverFixture(fa,
		models.DocRef{System: "confluence", ID: "a"},
		models.DocRef{System: "confluence", ID: "b"},
	)

	res, err := r.Resolve(context.Background(),
		&models.Workspace{ID: "ws1"},
		&models.DriftCandidate{ID: "d1", Service: "payments"},
		&models.BaselineArtifacts{Tools: []string{"helm"}},
	)
	require.NoError(t, err)
	assert.Equal(t, ResolutionAmbiguous, res.Status)
	require.Len(t, res.Candidates, 2)
	assert.InDelta(t, 0.4*0.8, res.Confidence, 0.001, "ambiguity discounts the top score")
}

func TestResolveNoneWhenCatalogEmpty(t *testing.T) {
	fa := &fakeAdapter{}
	r := resolverFixture(fa)

	res, err := r.Resolve(context.Background(),
		&models.Workspace{ID: "ws1"},
		&models.DriftCandidate{ID: "d1", Service: "payments"},
		&models.BaselineArtifacts{},
	)
	require.NoError(t, err)
	assert.Equal(t, ResolutionNone, res.Status)
	assert.Empty(t, res.Candidates)
}

func TestResolveNoneWhenTargetDisabled(t *testing.T) {
	fa := &fakeAdapter{
		content: map[string]string{"runbook": "helm everywhere"},
		titles:  map[string]string{"runbook": "Runbook"},
	}
	r := resolverFixture(fa, models.DocRef{System: "confluence", ID: "runbook"})

	ws := &models.Workspace{
		ID: "ws1",
		WorkflowPreferences: &models.WorkflowPreferences{
			EnabledOutputTargets: []string{"notion"},
		},
	}
	res, err := r.Resolve(context.Background(), ws,
		&models.DriftCandidate{ID: "d1", Service: "payments"},
		&models.BaselineArtifacts{Tools: []string{"helm"}},
	)
	require.NoError(t, err)
	assert.Equal(t, ResolutionNone, res.Status)
}

func TestResolveToleratesFetchFailure(t *testing.T) {
	fa := &fakeAdapter{
		content: map[string]string{"good": "helm release process"},
		titles:  map[string]string{"good": "Release Process"},
		fail:    map[string]bool{"bad": true},
	}
	r := resolverFixture(fa,
		models.DocRef{System: "confluence", ID: "bad"},
		models.DocRef{System: "confluence", ID: "good"},
	)

	res, err := r.Resolve(context.Background(),
		&models.Workspace{ID: "ws1"},
		&models.DriftCandidate{ID: "d1", Service: "payments"},
		&models.BaselineArtifacts{Tools: []string{"helm"}},
	)
	require.NoError(t, err, "one unreachable doc must not sink resolution")
	assert.Equal(t, ResolutionResolved, res.Status)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "good", res.Candidates[0].Ref.ID)
}

func TestResolveUnmappedSystemSkipped(t *testing.T) {
	fa := &fakeAdapter{
		content: map[string]string{"runbook": "helm release process"},
		titles:  map[string]string{"runbook": "Runbook"},
	}
	reg := NewRegistry()
	reg.Register("confluence", fa)
	cat := NewStaticCatalog()
	cat.Add("ws1", "payments",
		models.DocRef{System: "gitbook", ID: "orphan"},
		models.DocRef{System: "confluence", ID: "runbook"},
	)
	r := NewResolver(reg, cat, 2)

	res, err := r.Resolve(context.Background(),
		&models.Workspace{ID: "ws1"},
		&models.DriftCandidate{ID: "d1", Service: "payments"},
		&models.BaselineArtifacts{Tools: []string{"helm"}},
	)
	require.NoError(t, err)
	assert.Equal(t, ResolutionResolved, res.Status)
	require.Len(t, res.Candidates, 1)
}

func TestResolveWorkspaceWideDocsConsidered(t *testing.T) {
	fa := &fakeAdapter{
		content: map[string]string{"global": "Org-wide helm standards."},
		titles:  map[string]string{"global": "Helm Standards"},
	}
	reg := NewRegistry()
	reg.Register("confluence", fa)
	cat := NewStaticCatalog()
	cat.Add("ws1", "", models.DocRef{System: "confluence", ID: "global"})
	r := NewResolver(reg, cat, 2)

	res, err := r.Resolve(context.Background(),
		&models.Workspace{ID: "ws1"},
		&models.DriftCandidate{ID: "d1", Service: "payments"},
		&models.BaselineArtifacts{Tools: []string{"helm"}},
	)
	require.NoError(t, err)
	assert.Equal(t, ResolutionResolved, res.Status)
	assert.Equal(t, "global", res.Candidates[0].Ref.ID)
}

func TestScoreDocPriorityTiebreaker(t *testing.T) {
	fetched := &DocFetchResult{Content: "helm commands live here", Title: "Doc"}
	ref := models.DocRef{System: "confluence", ID: "x"}
	c := &models.DriftCandidate{ID: "d1"}
	artifacts := &models.BaselineArtifacts{Tools: []string{"helm"}}

	base, _ := scoreDoc(ref, fetched, c, artifacts, nil)
	assert.InDelta(t, 0.4, base, 0.001)

	prefs := &models.WorkflowPreferences{OutputTargetPriority: []string{"confluence", "notion"}}
	first, _ := scoreDoc(ref, fetched, c, artifacts, prefs)
	assert.InDelta(t, 0.45, first, 0.001)

	prefs.OutputTargetPriority = []string{"notion", "confluence"}
	second, _ := scoreDoc(ref, fetched, c, artifacts, prefs)
	assert.InDelta(t, 0.425, second, 0.001)
}
