package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docdrift/docdrift/internal/audit"
	"github.com/docdrift/docdrift/internal/claims"
	"github.com/docdrift/docdrift/internal/compare"
	"github.com/docdrift/docdrift/internal/config"
	"github.com/docdrift/docdrift/internal/correlate"
	"github.com/docdrift/docdrift/internal/docs"
	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/evidence"
	"github.com/docdrift/docdrift/internal/fingerprint"
	"github.com/docdrift/docdrift/internal/models"
	"github.com/docdrift/docdrift/internal/notify"
	"github.com/docdrift/docdrift/internal/patch"
	"github.com/docdrift/docdrift/internal/policy"
	"github.com/docdrift/docdrift/internal/queue"
	"github.com/docdrift/docdrift/internal/routing"
	"github.com/docdrift/docdrift/internal/signal"
	"github.com/docdrift/docdrift/internal/storage"
	"github.com/docdrift/docdrift/internal/writeback"
)

// Deps wires the stage implementations into the state machine
type Deps struct {
	Store      storage.Store
	Queue      queue.Queue
	Builder    *evidence.Builder
	Joiner     *correlate.Joiner
	Suppressor *fingerprint.Suppressor
	Resolver   *docs.Resolver
	Registry   *docs.Registry
	Engine     *compare.Engine
	Evaluator  *policy.Evaluator
	Router     *routing.Router
	Planner    *patch.Planner
	Generator  *patch.Generator
	Sink       notify.Sink
	Executor   *writeback.Executor
	Config     config.PipelineConfig
}

// Machine advances drift candidates one stage per queue task. Every advance
// is a compare-and-swap on (state, stateUpdatedAt); a lost race is a no-op
// because the winning worker already did the work.
type Machine struct {
	deps   Deps
	logger *slog.Logger
}

func NewMachine(deps Deps) *Machine {
	return &Machine{
		deps:   deps,
		logger: slog.Default().With("component", "pipeline"),
	}
}

// Step runs exactly one stage for the task's candidate
func (m *Machine) Step(ctx context.Context, task queue.Task) error {
	c, err := m.deps.Store.GetDriftCandidate(ctx, task.WorkspaceID, task.DriftID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("task for unknown candidate dropped", "drift_id", task.DriftID)
			return nil
		}
		return err
	}
	if models.IsTerminal(c.State) || c.State == models.StateAwaitingHuman || c.State == models.StateSnoozed {
		return nil
	}

	ws, err := m.deps.Store.GetWorkspace(ctx, task.WorkspaceID)
	if err != nil {
		return err
	}
	ev, err := m.deps.Store.GetSignalEvent(ctx, task.WorkspaceID, c.SignalEventID)
	if err != nil {
		return err
	}

	prevState, prevAt := c.State, c.StateUpdatedAt
	started := time.Now()

	stageCtx, cancel := context.WithTimeout(ctx, m.stageBudget())
	defer cancel()

	next, meta, stageErr := m.runStage(stageCtx, ws, ev, c)
	if stageErr != nil {
		return m.handleStageError(ctx, c, prevState, prevAt, started, stageErr)
	}
	return m.advance(ctx, c, prevState, prevAt, next, started, meta)
}

func (m *Machine) runStage(ctx context.Context, ws *models.Workspace, ev *models.SignalEvent, c *models.DriftCandidate) (models.State, map[string]interface{}, error) {
	switch c.State {
	case models.StateIngested:
		return m.stageNormalize(ctx, ev)
	case models.StateNormalized:
		return m.stageEligibility(ctx, ws, ev)
	case models.StateEligibilityChecked:
		return m.stageEvidence(ctx, ws, ev, c)
	case models.StateEvidenceBuilt:
		return m.stageResolveDocs(ctx, ws, c)
	case models.StateDocsResolved:
		return m.stageCompare(ctx, ev, c)
	case models.StateCompared:
		return m.stageClassify(ctx, ws, ev, c)
	case models.StateClassified:
		return m.stagePolicy(ctx, ws, ev, c)
	case models.StatePolicyEvaluated:
		return m.stageRoute(ctx, ws, ev, c)
	case models.StateRouted:
		return m.stagePlan(c)
	case models.StatePatchPlanned:
		return m.stagePropose(ctx, c)
	case models.StatePatchProposed:
		return m.stageNotify(ctx, ws, c)
	default:
		return "", nil, errors.Newf(errors.CodeInternal, "no stage handler for state %s", c.State)
	}
}

// stageNormalize re-validates the extracted payload. The webhook boundary
// already validated once; this catches schema drift between stored rows and
// the current pipeline version.
func (m *Machine) stageNormalize(ctx context.Context, ev *models.SignalEvent) (models.State, map[string]interface{}, error) {
	if err := signal.Validate(ev); err != nil {
		return "", nil, err
	}
	return models.StateNormalized, nil, nil
}

func (m *Machine) stageEligibility(ctx context.Context, ws *models.Workspace, ev *models.SignalEvent) (models.State, map[string]interface{}, error) {
	prefs := ws.WorkflowPreferences
	if !prefs.SourceEnabled(ev.SourceType) {
		return models.StateIgnored, map[string]interface{}{"reason": "source disabled for workspace"}, nil
	}
	if pr := ev.Extracted.GitHubPR; pr != nil && !pr.Merged {
		return models.StateIgnored, map[string]interface{}{"reason": "pull request not merged"}, nil
	}
	return models.StateEligibilityChecked, nil, nil
}

func (m *Machine) stageEvidence(ctx context.Context, ws *models.Workspace, ev *models.SignalEvent, c *models.DriftCandidate) (models.State, map[string]interface{}, error) {
	latest, err := m.deps.Store.LatestBundleSchemaVersion(ctx, c.WorkspaceID, c.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", nil, err
	}

	bundle := m.deps.Builder.Build(ev, c, latest+1)
	if err := m.deps.Store.SaveEvidenceBundle(ctx, bundle); err != nil {
		return "", nil, err
	}
	c.EvidenceBundleID = bundle.BundleID
	c.FingerprintStrict = bundle.Fingerprints.Strict
	c.FingerprintMedium = bundle.Fingerprints.Medium
	c.FingerprintBroad = bundle.Fingerprints.Broad

	match, err := m.deps.Suppressor.Check(ctx, ws.ID, bundle.Fingerprints)
	if err != nil {
		return "", nil, err
	}
	if match != nil {
		return models.StateIgnored, map[string]interface{}{
			"reason":           "suppressed",
			"suppression_rule": match.Rule.ID,
			"level":            string(match.Level),
			"match_confidence": match.Confidence,
		}, nil
	}
	return models.StateEvidenceBuilt, nil, nil
}

func (m *Machine) stageResolveDocs(ctx context.Context, ws *models.Workspace, c *models.DriftCandidate) (models.State, map[string]interface{}, error) {
	bundle, err := m.deps.Store.GetEvidenceBundle(ctx, c.WorkspaceID, c.EvidenceBundleID)
	if err != nil {
		return "", nil, err
	}

	res, err := m.deps.Resolver.Resolve(ctx, ws, c, bundle.SourceEvidence.Artifacts)
	if err != nil {
		return "", nil, err
	}
	c.DocsResolutionStatus = res.Status
	c.DocsResolutionConf = res.Confidence
	c.DocCandidates = res.Candidates

	if res.Status == docs.ResolutionNone {
		c.LastErrorCode = "FAILED_NEEDS_MAPPING"
		c.LastErrorMessage = "no mapped document matches the signal"
		return models.StateFailedNeedsMapping, map[string]interface{}{"service": c.Service}, nil
	}
	return models.StateDocsResolved, map[string]interface{}{
		"status":     res.Status,
		"candidates": len(res.Candidates),
	}, nil
}

func (m *Machine) stageCompare(ctx context.Context, ev *models.SignalEvent, c *models.DriftCandidate) (models.State, map[string]interface{}, error) {
	bundle, err := m.deps.Store.GetEvidenceBundle(ctx, c.WorkspaceID, c.EvidenceBundleID)
	if err != nil {
		return "", nil, err
	}
	top := c.DocCandidates[0]
	adapter, err := m.deps.Registry.Get(top.Ref.System)
	if err != nil {
		return "", nil, err
	}
	fetched, err := adapter.Fetch(ctx, top.Ref)
	if err != nil {
		return "", nil, err
	}

	target := evidence.FromDocument(fetched.Content)
	result := m.deps.Engine.Compare(bundle.SourceEvidence.Artifacts, target, bundle.SourceEvidence.Excerpt)
	c.ComparisonResult = result

	// The bundle is immutable: comparison appends a new version carrying the
	// target evidence and the drift-type-aware fingerprints.
	next := *bundle
	next.BundleID = uuid.NewString()
	next.SchemaVersion = bundle.SchemaVersion + 1
	next.TargetEvidence = target
	next.Fingerprints = fingerprint.Compute(ev.SourceType, top.Ref.String(),
		top.Ref.System+":"+c.Service, result.DriftType, bundle.SourceEvidence.Artifacts)
	next.CreatedAt = time.Now().UTC()
	if err := m.deps.Store.SaveEvidenceBundle(ctx, &next); err != nil {
		return "", nil, err
	}
	c.EvidenceBundleID = next.BundleID
	c.FingerprintStrict = next.Fingerprints.Strict
	c.FingerprintMedium = next.Fingerprints.Medium
	c.FingerprintBroad = next.Fingerprints.Broad

	// Re-check suppression now that the drift type is part of the hash
	match, err := m.deps.Suppressor.Check(ctx, c.WorkspaceID, next.Fingerprints)
	if err != nil {
		return "", nil, err
	}
	if match != nil {
		return models.StateIgnored, map[string]interface{}{
			"reason":           "suppressed",
			"suppression_rule": match.Rule.ID,
			"level":            string(match.Level),
		}, nil
	}
	return models.StateCompared, map[string]interface{}{
		"has_drift":        result.HasDrift,
		"has_coverage_gap": result.HasCoverageGap,
	}, nil
}

func (m *Machine) stageClassify(ctx context.Context, ws *models.Workspace, ev *models.SignalEvent, c *models.DriftCandidate) (models.State, map[string]interface{}, error) {
	result := c.ComparisonResult
	if result == nil || (!result.HasDrift && !result.HasCoverageGap) {
		return models.StateIgnored, map[string]interface{}{"reason": "no drift detected"}, nil
	}

	driftType := result.DriftType
	if driftType == "" && result.HasCoverageGap {
		driftType = models.DriftCoverage
	}
	prefs := ws.WorkflowPreferences
	if !prefs.DriftTypeEnabled(driftType) {
		return models.StateIgnored, map[string]interface{}{
			"reason":     "drift type disabled for workspace",
			"drift_type": string(driftType),
		}, nil
	}

	join, err := m.deps.Joiner.Join(ctx, ev)
	if err != nil {
		return "", nil, err
	}
	for _, rel := range join.Related {
		c.CorrelatedSignals = append(c.CorrelatedSignals, rel.SignalEventID)
	}

	confidence := result.Confidence + join.ConfidenceBoost
	if confidence > 1 {
		confidence = 1
	}
	c.DriftType = driftType
	c.Confidence = confidence
	c.ClassificationMethod = models.ClassifyDeterministic

	bundle, err := m.deps.Store.GetEvidenceBundle(ctx, c.WorkspaceID, c.EvidenceBundleID)
	if err != nil {
		return "", nil, err
	}
	if prefs != nil && prefs.SkipLowValuePatches &&
		bundle.Assessment != nil && bundle.Assessment.ImpactScore < prefs.Materiality() {
		return models.StateIgnored, map[string]interface{}{
			"reason":       "below materiality threshold",
			"impact_score": bundle.Assessment.ImpactScore,
		}, nil
	}

	return models.StateClassified, map[string]interface{}{
		"drift_type":        string(driftType),
		"confidence":        confidence,
		"correlation_boost": join.ConfidenceBoost,
		"multi_source":      join.IsMultiSource,
	}, nil
}

func (m *Machine) stagePolicy(ctx context.Context, ws *models.Workspace, ev *models.SignalEvent, c *models.DriftCandidate) (models.State, map[string]interface{}, error) {
	records, err := m.deps.Store.ListPublishedPacks(ctx, ws.ID)
	if err != nil {
		return "", nil, err
	}

	var applicable []*models.PolicyPackRecord
	for _, rec := range records {
		if packApplies(rec, c) {
			applicable = append(applicable, rec)
		}
	}
	if len(applicable) == 0 {
		return models.StatePolicyEvaluated, map[string]interface{}{"packs": 0}, nil
	}

	packs := make([]*policy.PolicyPack, 0, len(applicable))
	for _, rec := range applicable {
		pack, err := policy.Parse([]byte(rec.YAML))
		if err != nil {
			return "", nil, err
		}
		policy.Translate(pack)
		packs = append(packs, pack)
	}

	merged, err := policy.Merge(packs)
	if err != nil {
		return "", nil, err
	}

	// Freeze the active plan: the candidate is evaluated against exactly this
	// pack set even if packs are republished mid-flight.
	c.ActivePlanID = applicable[0].ID
	c.ActivePlanVersion = len(applicable)
	c.ActivePlanHash = combinedPlanHash(applicable)

	result, err := m.deps.Evaluator.Evaluate(ctx, merged, factInputFor(ws, ev, c), packBudgets(packs))
	if err != nil {
		return "", nil, err
	}

	// The router will carry the block decision onto the final routing record
	c.RoutingDecision = &models.RoutingDecision{BlockMerge: result.Blocked}

	return models.StatePolicyEvaluated, map[string]interface{}{
		"packs":       len(applicable),
		"plan_hash":   policy.ShortHash(c.ActivePlanHash),
		"blocked":     result.Blocked,
		"fired_rules": result.FiredRules,
		"api_calls":   result.APICalls,
	}, nil
}

func (m *Machine) stageRoute(ctx context.Context, ws *models.Workspace, ev *models.SignalEvent, c *models.DriftCandidate) (models.State, map[string]interface{}, error) {
	c.OwnerResolution = resolveOwner(ws, ev, c)

	bundle, err := m.deps.Store.GetEvidenceBundle(ctx, c.WorkspaceID, c.EvidenceBundleID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", nil, err
	}

	blocked := c.RoutingDecision != nil && c.RoutingDecision.BlockMerge
	decision, err := m.deps.Router.Route(ctx, ws, c, bundle)
	if err != nil {
		return "", nil, err
	}
	decision.BlockMerge = blocked
	c.RoutingDecision = decision

	return models.StateRouted, map[string]interface{}{
		"priority":    string(decision.Priority),
		"digest_only": decision.DigestOnly,
		"escalated":   decision.Escalated,
	}, nil
}

func (m *Machine) stagePlan(c *models.DriftCandidate) (models.State, map[string]interface{}, error) {
	top := c.DocCandidates[0]
	style := m.deps.Planner.Plan(c, top.Ref)
	return models.StatePatchPlanned, map[string]interface{}{
		"style": string(style),
		"doc":   top.Ref.String(),
	}, nil
}

func (m *Machine) stagePropose(ctx context.Context, c *models.DriftCandidate) (models.State, map[string]interface{}, error) {
	// A lost CAS race may re-deliver this stage after the proposal was saved
	fresh, err := m.deps.Store.PutIdempotencyKey(ctx, c.WorkspaceID, "propose:"+c.ID)
	if err != nil {
		return "", nil, err
	}
	if !fresh {
		if p, err := m.deps.Store.GetProposalByDrift(ctx, c.WorkspaceID, c.ID); err == nil {
			return models.StatePatchProposed, map[string]interface{}{"proposal_id": p.ID, "replayed": true}, nil
		}
	}

	bundle, err := m.deps.Store.GetEvidenceBundle(ctx, c.WorkspaceID, c.EvidenceBundleID)
	if err != nil {
		return "", nil, err
	}
	top := c.DocCandidates[0]
	adapter, err := m.deps.Registry.Get(top.Ref.System)
	if err != nil {
		return "", nil, err
	}
	fetched, err := adapter.Fetch(ctx, top.Ref)
	if err != nil {
		return "", nil, err
	}

	docClaims := claims.Extract(fetched.Content)
	docCtx := claims.BuildContext(top.Ref, fetched.Revision, docClaims, bundle.TargetEvidence, m.contextBudgets())
	style := m.deps.Planner.Plan(c, top.Ref)

	p, err := m.deps.Generator.Generate(ctx, c, bundle, docCtx, docClaims, fetched.Content, style)
	if err != nil {
		return "", nil, err
	}
	if err := m.deps.Store.SaveProposal(ctx, p); err != nil {
		return "", nil, err
	}
	return models.StatePatchProposed, map[string]interface{}{
		"proposal_id": p.ID,
		"style":       string(style),
	}, nil
}

func (m *Machine) stageNotify(ctx context.Context, ws *models.Workspace, c *models.DriftCandidate) (models.State, map[string]interface{}, error) {
	p, err := m.deps.Store.GetProposalByDrift(ctx, c.WorkspaceID, c.ID)
	if err != nil {
		return "", nil, err
	}

	cfg := m.deps.Config
	if cfg.AutoApproveEnabled && c.Confidence >= cfg.AutoApproveMinConf {
		now := time.Now().UTC()
		p.Status = models.ProposalApproved
		p.ResolvedBy = "auto_approve"
		p.ResolvedAt = &now
		if err := m.deps.Store.UpdateProposal(ctx, p); err != nil {
			return "", nil, err
		}
		bundle, err := m.deps.Store.GetEvidenceBundle(ctx, c.WorkspaceID, c.EvidenceBundleID)
		if err != nil {
			return "", nil, err
		}
		if _, err := m.deps.Executor.Apply(ctx, c, p, bundle); err != nil {
			return "", nil, err
		}
		return models.StateApplied, map[string]interface{}{
			"auto_approved": true,
			"proposal_id":   p.ID,
		}, nil
	}

	decision := c.RoutingDecision
	if decision != nil && decision.DigestOnly {
		return models.StateAwaitingHuman, map[string]interface{}{"digest_only": true}, nil
	}

	fresh, err := m.deps.Store.PutIdempotencyKey(ctx, c.WorkspaceID, "notify:"+p.ID)
	if err != nil {
		return "", nil, err
	}
	if fresh {
		channel, directTo := "", ""
		if decision != nil {
			channel, directTo = decision.Channel, decision.DirectTo
		}
		docURL := ""
		if adapter, err := m.deps.Registry.Get(p.DocRef.System); err == nil {
			docURL = adapter.DocURL(p.DocRef)
		}
		chID, ts, err := m.deps.Sink.PostProposal(ctx, channel, directTo, c, p, docURL)
		if err != nil {
			return "", nil, err
		}
		now := time.Now().UTC()
		p.SlackChannelID = chID
		p.SlackMessageTs = ts
		p.LastNotifiedAt = &now
		if err := m.deps.Store.UpdateProposal(ctx, p); err != nil {
			return "", nil, err
		}
	}
	return models.StateAwaitingHuman, map[string]interface{}{"proposal_id": p.ID}, nil
}

// advance persists the transition and schedules the next stage
func (m *Machine) advance(ctx context.Context, c *models.DriftCandidate, prevState models.State, prevAt time.Time, next models.State, started time.Time, meta map[string]interface{}) error {
	if !models.ValidTransition(prevState, next) {
		return errors.Newf(errors.CodeInternal, "illegal transition %s -> %s for %s", prevState, next, c.ID)
	}

	c.State = next
	c.StateUpdatedAt = time.Now().UTC()
	rec := audit.Transition(c, prevState, next, audit.ActorPipeline, started, meta)
	if err := m.deps.Store.AdvanceCandidate(ctx, c, prevState, prevAt, rec); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			m.logger.Info("lost advance race, dropping task",
				"drift_id", c.ID, "from", prevState, "to", next)
			return nil
		}
		return err
	}
	m.logger.Info("candidate advanced",
		"drift_id", c.ID,
		"from", string(prevState),
		"to", string(next),
	)

	if models.IsTerminal(next) || next == models.StateAwaitingHuman || next == models.StateSnoozed {
		return nil
	}

	opts := queue.Options{}
	if next == models.StatePatchProposed && c.RoutingDecision != nil {
		opts.DelaySeconds = c.RoutingDecision.DelayMinutes * 60
	}
	_, err := m.deps.Queue.Enqueue(ctx, queue.Task{WorkspaceID: c.WorkspaceID, DriftID: c.ID}, opts)
	return err
}

// handleStageError routes failures by class: not-applicable candidates are
// ignored, permanent errors terminate with their code, transient errors back
// off and retry up to the configured cap.
func (m *Machine) handleStageError(ctx context.Context, c *models.DriftCandidate, prevState models.State, prevAt time.Time, started time.Time, stageErr error) error {
	code := errors.CodeOf(stageErr)
	c.LastErrorCode = string(code)
	c.LastErrorMessage = stageErr.Error()

	switch errors.Classify(stageErr) {
	case errors.ClassNotApplicable:
		return m.advance(ctx, c, prevState, prevAt, models.StateIgnored, started,
			map[string]interface{}{"reason": stageErr.Error()})

	case errors.ClassPermanent:
		to := models.StateFailed
		if code == errors.CodeLLMSchemaValidation {
			to = models.StateFailedPatchGen
		}
		m.logger.Error("stage failed permanently",
			"drift_id", c.ID, "state", string(prevState), "code", string(code), "error", stageErr)
		return m.advance(ctx, c, prevState, prevAt, to, started,
			map[string]interface{}{"error_code": string(code), "error": stageErr.Error()})

	default:
		c.RetryCount++
		if c.RetryCount > m.maxRetries() {
			c.LastErrorCode = string(errors.CodeRetryExhausted)
			m.logger.Error("retries exhausted",
				"drift_id", c.ID, "state", string(prevState), "retries", c.RetryCount, "error", stageErr)
			return m.advance(ctx, c, prevState, prevAt, models.StateFailed, started,
				map[string]interface{}{"error_code": string(errors.CodeRetryExhausted), "cause": stageErr.Error()})
		}

		// Retry keeps the state; only the CAS token and counters move
		c.StateUpdatedAt = time.Now().UTC()
		rec := audit.Transition(c, prevState, prevState, audit.ActorPipeline, started,
			map[string]interface{}{"retry": c.RetryCount, "error": stageErr.Error()})
		if err := m.deps.Store.AdvanceCandidate(ctx, c, prevState, prevAt, rec); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return nil
			}
			return err
		}

		delay := backoffSeconds(c.RetryCount)
		m.logger.Warn("stage failed, retrying",
			"drift_id", c.ID, "state", string(prevState), "retry", c.RetryCount,
			"delay_s", delay, "error", stageErr)
		_, err := m.deps.Queue.Enqueue(ctx,
			queue.Task{WorkspaceID: c.WorkspaceID, DriftID: c.ID},
			queue.Options{DelaySeconds: delay})
		return err
	}
}

func (m *Machine) stageBudget() time.Duration {
	if m.deps.Config.StageBudget > 0 {
		return m.deps.Config.StageBudget
	}
	return 30 * time.Second
}

func (m *Machine) maxRetries() int {
	if m.deps.Config.MaxRetries > 0 {
		return m.deps.Config.MaxRetries
	}
	return 5
}

func (m *Machine) contextBudgets() claims.Budgets {
	return claims.Budgets{
		MaxDocChars:     m.deps.Config.MaxDocCharsToLLM,
		MaxSections:     m.deps.Config.MaxSections,
		MaxSectionChars: m.deps.Config.MaxSectionChars,
	}
}

// backoffSeconds is exponential with jitter, capped at five minutes
func backoffSeconds(attempt int) int {
	base := 1 << uint(attempt)
	if base > 300 {
		base = 300
	}
	return base + rand.Intn(base/2+1)
}

func packApplies(rec *models.PolicyPackRecord, c *models.DriftCandidate) bool {
	switch rec.ScopeType {
	case "", "workspace":
		return true
	case "service":
		return rec.ScopeValue == c.Service
	case "repo":
		return rec.ScopeValue == c.Repo
	}
	return false
}

// combinedPlanHash derives the frozen plan identity from the version hashes
// of every applicable pack, order-independent.
func combinedPlanHash(records []*models.PolicyPackRecord) string {
	hashes := make([]string, 0, len(records))
	for _, r := range records {
		hashes = append(hashes, r.VersionHash)
	}
	sort.Strings(hashes)
	sum := sha256.Sum256([]byte(strings.Join(hashes, "\n")))
	return hex.EncodeToString(sum[:])
}

func packBudgets(packs []*policy.PolicyPack) *policy.Budgets {
	for _, p := range packs {
		if p.Evaluation != nil && p.Evaluation.Budgets != nil {
			return p.Evaluation.Budgets
		}
	}
	return nil
}

func factInputFor(ws *models.Workspace, ev *models.SignalEvent, c *models.DriftCandidate) *policy.FactInput {
	in := &policy.FactInput{
		WorkspaceID:   ws.ID,
		Repo:          c.Repo,
		ChangedStatus: make(map[string]string),
	}
	if pr := ev.Extracted.GitHubPR; pr != nil {
		in.PRNumber = pr.Number
		in.PRTitle = pr.Title
		in.PRBody = pr.Body
		in.Actor = pr.Author
		in.Branch = pr.BaseRef
		in.Diff = pr.Diff
		for _, f := range pr.ChangedFiles {
			in.ChangedPaths = append(in.ChangedPaths, f.Path)
			in.ChangedStatus[f.Path] = f.Status
		}
	}
	return in
}

// resolveOwner walks the workspace ownership ranking; the first source that
// produces an owner wins. Default ranking: codeowners, pagerduty, default.
func resolveOwner(ws *models.Workspace, ev *models.SignalEvent, c *models.DriftCandidate) *models.OwnerResolution {
	ranking := ws.OwnershipSourceRanking
	if len(ranking) == 0 {
		ranking = []string{"codeowners", "pagerduty", "default"}
	}

	for _, source := range ranking {
		switch source {
		case "codeowners":
			if pr := ev.Extracted.GitHubPR; pr != nil && ev.SourceType == models.SourceGitHubCodeowners {
				if owner := firstCodeowner(pr); owner != "" {
					return &models.OwnerResolution{OwnerRef: owner, Source: "codeowners", Confidence: 0.9}
				}
			}
		case "pagerduty":
			if inc := ev.Extracted.PagerDuty; inc != nil {
				res := &models.OwnerResolution{Source: "pagerduty", Confidence: 0.7}
				if len(inc.Responders) > 0 {
					res.OwnerRef = inc.Responders[0]
				} else {
					res.OwnerRef = inc.EscalationPolicy
				}
				if len(inc.Teams) > 0 {
					res.TeamChannel = inc.Teams[0]
				}
				if res.OwnerRef != "" {
					return res
				}
			}
		case "default":
			if ws.DefaultOwnerRef != "" {
				return &models.OwnerResolution{OwnerRef: ws.DefaultOwnerRef, Source: "default", Confidence: 0.5}
			}
		}
	}
	if ws.DefaultOwnerRef != "" {
		return &models.OwnerResolution{OwnerRef: ws.DefaultOwnerRef, Source: "default", Confidence: 0.5}
	}
	return nil
}

// firstCodeowner scans the added lines of a CODEOWNERS diff for the first
// owner handle.
func firstCodeowner(pr *models.GitHubPRExtracted) string {
	for _, f := range pr.ChangedFiles {
		if !isCodeownersPath(f.Path) {
			continue
		}
		for _, line := range strings.Split(f.Patch, "\n") {
			if len(line) < 2 || line[0] != '+' {
				continue
			}
			for _, field := range strings.Fields(line[1:]) {
				if len(field) > 1 && field[0] == '@' {
					return field
				}
			}
		}
	}
	return ""
}

func isCodeownersPath(p string) bool {
	return p == "CODEOWNERS" || p == ".github/CODEOWNERS" || p == "docs/CODEOWNERS"
}
