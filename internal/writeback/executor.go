package writeback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docdrift/docdrift/internal/claims"
	"github.com/docdrift/docdrift/internal/docs"
	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/models"
	"github.com/docdrift/docdrift/internal/patch"
	"github.com/docdrift/docdrift/internal/storage"
)

// maxConflictRetries bounds re-fetch/regenerate cycles on revision conflicts
const maxConflictRetries = 2

// Executor applies approved proposals to their documentation system.
// It runs only after human approval (or auto-approve above the threshold).
type Executor struct {
	store     storage.Store
	registry  *docs.Registry
	generator *patch.Generator
	budgets   claims.Budgets
	logger    *slog.Logger
}

func NewExecutor(store storage.Store, registry *docs.Registry, generator *patch.Generator, budgets claims.Budgets) *Executor {
	return &Executor{
		store:     store,
		registry:  registry,
		generator: generator,
		budgets:   budgets,
		logger:    slog.Default().With("component", "writeback"),
	}
}

// Apply writes the proposal. On optimistic-concurrency conflict it bumps the
// candidate's retry count, rebuilds the DocContext from the fresh document
// and regenerates the patch before trying again.
func (e *Executor) Apply(ctx context.Context, c *models.DriftCandidate, p *models.PatchProposal, bundle *models.EvidenceBundle) (*models.PatchProposal, error) {
	if p.Status != models.ProposalApproved {
		return nil, errors.Newf(errors.CodeInternal, "proposal %s is %s, not approved", p.ID, p.Status)
	}

	adapter, err := e.registry.Get(p.DocRef.System)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		result, err := e.write(ctx, adapter, c, p)
		if err == nil {
			now := time.Now().UTC()
			p.Status = models.ProposalApplied
			p.AppliedRevision = result.Revision
			p.ResolvedAt = &now
			if result.PRUrl != "" {
				p.PRUrl = result.PRUrl
			}
			if err := e.store.UpdateProposal(ctx, p); err != nil {
				return nil, err
			}
			e.logger.Info("patch applied",
				"drift_id", c.ID,
				"doc", p.DocRef.String(),
				"revision", result.Revision,
			)
			return p, nil
		}

		if errors.CodeOf(err) != errors.CodeConfluenceConflict || attempt >= maxConflictRetries {
			return nil, err
		}

		e.logger.Warn("writeback conflict, regenerating",
			"drift_id", c.ID,
			"attempt", attempt+1,
		)
		c.RetryCount++
		regenerated, regenErr := e.regenerate(ctx, adapter, c, p, bundle)
		if regenErr != nil {
			return nil, regenErr
		}
		p = regenerated
	}
}

type writeResult struct {
	Revision string
	PRUrl    string
}

func (e *Executor) write(ctx context.Context, adapter docs.Adapter, c *models.DriftCandidate, p *models.PatchProposal) (*writeResult, error) {
	if adapter.SupportsDirectWriteback() {
		res, err := adapter.WritePatch(ctx, docs.WriteParams{
			Ref:          p.DocRef,
			BaseRevision: p.BaseRevision,
			NewContent:   p.ProposedContent,
			Message:      fmt.Sprintf("docdrift: %s drift fix for %s", c.DriftType, c.Service),
		})
		if err != nil {
			return nil, err
		}
		return &writeResult{Revision: res.Revision}, nil
	}

	git, ok := adapter.(docs.GitAdapter)
	if !ok {
		return nil, errors.Newf(errors.CodeAdapterNotFound,
			"system %s supports neither direct writeback nor PRs", p.DocRef.System)
	}
	pr, err := git.CreatePatchPR(ctx, docs.PRParams{
		Ref:        p.DocRef,
		NewContent: p.ProposedContent,
		Title:      fmt.Sprintf("docs: fix %s drift on %s", c.DriftType, c.Service),
		Body:       prBody(c, p),
	})
	if err != nil {
		return nil, err
	}
	return &writeResult{Revision: pr.Branch, PRUrl: pr.PRUrl}, nil
}

// regenerate re-fetches the document, rebuilds the bounded context and asks
// the generator for a fresh patch against the new revision.
func (e *Executor) regenerate(ctx context.Context, adapter docs.Adapter, c *models.DriftCandidate, p *models.PatchProposal, bundle *models.EvidenceBundle) (*models.PatchProposal, error) {
	fetched, err := adapter.Fetch(ctx, p.DocRef)
	if err != nil {
		return nil, err
	}

	docClaims := claims.Extract(fetched.Content)
	var target *models.BaselineArtifacts
	if bundle != nil {
		target = bundle.TargetEvidence
	}
	docCtx := claims.BuildContext(p.DocRef, fetched.Revision, docClaims, target, e.budgets)

	fresh, err := e.generator.Generate(ctx, c, bundle, docCtx, docClaims, fetched.Content, p.Style)
	if err != nil {
		return nil, err
	}

	// The regenerated proposal inherits identity and approval; only content
	// and base revision move forward.
	p.BaseRevision = fresh.BaseRevision
	p.ProposedContent = fresh.ProposedContent
	p.Diff = fresh.Diff
	if err := e.store.UpdateProposal(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func prBody(c *models.DriftCandidate, p *models.PatchProposal) string {
	body := fmt.Sprintf("Automated documentation update.\n\nDrift type: %s\nService: %s\nConfidence: %.0f%%\n",
		c.DriftType, c.Service, c.Confidence*100)
	if c.ComparisonResult != nil {
		for _, conflict := range c.ComparisonResult.Conflicts {
			body += "\n- " + conflict
		}
	}
	return body
}
