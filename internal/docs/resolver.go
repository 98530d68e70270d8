package docs

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/docdrift/docdrift/internal/evidence"
	"github.com/docdrift/docdrift/internal/models"
)

// Resolution statuses recorded on the candidate
const (
	ResolutionResolved  = "resolved"
	ResolutionAmbiguous = "ambiguous"
	ResolutionNone      = "none"
)

// Catalog lists the documents mapped to a service. Workspaces configure the
// mapping; an empty result means the drift cannot be attached to any doc.
type Catalog interface {
	ListDocs(ctx context.Context, workspaceID, service string) ([]models.DocRef, error)
}

// StaticCatalog is a fixed service-to-docs mapping, loaded from workspace
// configuration. Keys are "workspaceID/service"; the empty service key holds
// workspace-wide docs considered for every service.
type StaticCatalog struct {
	mu   sync.RWMutex
	docs map[string][]models.DocRef
}

func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{docs: make(map[string][]models.DocRef)}
}

func (c *StaticCatalog) Add(workspaceID, service string, refs ...models.DocRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := workspaceID + "/" + service
	c.docs[key] = append(c.docs[key], refs...)
}

func (c *StaticCatalog) ListDocs(ctx context.Context, workspaceID, service string) ([]models.DocRef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := append([]models.DocRef(nil), c.docs[workspaceID+"/"+service]...)
	out = append(out, c.docs[workspaceID+"/"]...)
	return out, nil
}

// Resolution is the resolver's output for one candidate
type Resolution struct {
	Candidates []models.DocCandidate `json:"candidates"`
	Status     string                `json:"status"`
	Confidence float64               `json:"confidence"`
}

// Resolver picks the documents a drift should patch. Fetches fan out under
// a per-adapter concurrency cap.
type Resolver struct {
	registry    *Registry
	catalog     Catalog
	concurrency int
	logger      *slog.Logger
}

func NewResolver(registry *Registry, catalog Catalog, concurrency int) *Resolver {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Resolver{
		registry:    registry,
		catalog:     catalog,
		concurrency: concurrency,
		logger:      slog.Default().With("component", "docs.resolver"),
	}
}

// Resolve scores every mapped document against the signal artifacts.
// Scoring favors tool mentions shared with the signal, then path/title hits
// on the service name, then the workspace's output target priority.
func (r *Resolver) Resolve(ctx context.Context, ws *models.Workspace, c *models.DriftCandidate, artifacts *models.BaselineArtifacts) (*Resolution, error) {
	refs, err := r.catalog.ListDocs(ctx, ws.ID, c.Service)
	if err != nil {
		return nil, err
	}

	prefs := ws.WorkflowPreferences
	var eligible []models.DocRef
	for _, ref := range refs {
		if prefs.OutputTargetEnabled(ref.System) {
			eligible = append(eligible, ref)
		}
	}
	if len(eligible) == 0 {
		return &Resolution{Status: ResolutionNone}, nil
	}

	type scored struct {
		candidate models.DocCandidate
		ok        bool
	}
	results := make([]scored, len(eligible))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, ref := range eligible {
		g.Go(func() error {
			adapter, err := r.registry.Get(ref.System)
			if err != nil {
				r.logger.Warn("no adapter for mapped doc", "system", ref.System)
				return nil
			}
			fetched, err := adapter.Fetch(gctx, ref)
			if err != nil {
				// A single unreachable doc must not sink resolution
				r.logger.Warn("doc fetch failed during resolution",
					"ref", ref.String(), "error", err)
				return nil
			}
			score, matchedOn := scoreDoc(ref, fetched, c, artifacts, prefs)
			results[i] = scored{
				candidate: models.DocCandidate{
					Ref:       ref,
					Score:     score,
					MatchedOn: matchedOn,
					Title:     fetched.Title,
				},
				ok: score > 0,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Resolution{}
	for _, s := range results {
		if s.ok {
			res.Candidates = append(res.Candidates, s.candidate)
		}
	}
	sort.SliceStable(res.Candidates, func(i, j int) bool {
		return res.Candidates[i].Score > res.Candidates[j].Score
	})

	switch {
	case len(res.Candidates) == 0:
		res.Status = ResolutionNone
	case len(res.Candidates) == 1 || res.Candidates[0].Score >= res.Candidates[1].Score*1.5:
		res.Status = ResolutionResolved
		res.Confidence = res.Candidates[0].Score
	default:
		res.Status = ResolutionAmbiguous
		res.Confidence = res.Candidates[0].Score * 0.8
	}
	if res.Confidence > 1 {
		res.Confidence = 1
	}

	r.logger.Info("docs resolved",
		"drift_id", c.ID,
		"status", res.Status,
		"candidates", len(res.Candidates),
	)
	return res, nil
}

func scoreDoc(ref models.DocRef, fetched *DocFetchResult, c *models.DriftCandidate, artifacts *models.BaselineArtifacts, prefs *models.WorkflowPreferences) (float64, string) {
	score := 0.0
	var matched []string

	docArtifacts := evidence.FromDocument(fetched.Content)

	toolHits := overlap(docArtifacts.Tools, artifacts.Tools)
	if toolHits > 0 {
		score += 0.4
		matched = append(matched, "tool_mentions")
	}
	if overlap(docArtifacts.Commands, artifacts.Commands) > 0 {
		score += 0.2
		matched = append(matched, "commands")
	}
	if overlap(docArtifacts.Endpoints, artifacts.Endpoints) > 0 {
		score += 0.2
		matched = append(matched, "endpoints")
	}

	if c.Service != "" {
		lower := strings.ToLower(c.Service)
		if strings.Contains(strings.ToLower(fetched.Title), lower) ||
			strings.Contains(strings.ToLower(ref.Path), lower) {
			score += 0.2
			matched = append(matched, "service_name")
		}
	}

	// Workspace output target priority is a small deterministic tiebreaker
	if prefs != nil {
		for i, target := range prefs.OutputTargetPriority {
			if target == ref.System {
				score += 0.05 / float64(i+1)
				break
			}
		}
	}

	return score, strings.Join(matched, ",")
}

func overlap(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[strings.ToLower(s)] = true
	}
	n := 0
	for _, s := range b {
		if set[strings.ToLower(s)] {
			n++
		}
	}
	return n
}
