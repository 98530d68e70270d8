package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdrift/docdrift/internal/claims"
	"github.com/docdrift/docdrift/internal/compare"
	"github.com/docdrift/docdrift/internal/config"
	"github.com/docdrift/docdrift/internal/correlate"
	"github.com/docdrift/docdrift/internal/docs"
	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/evidence"
	"github.com/docdrift/docdrift/internal/fingerprint"
	"github.com/docdrift/docdrift/internal/llm"
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

const testRunbook = "# Payments Runbook\n\n## Deploy\n\nRun `kubectl apply -f deploy.yaml` to deploy.\n"

// stubAdapter serves one canned document and can be told to fail after a
// number of successful fetches.
type stubAdapter struct {
	mu        sync.Mutex
	content   string
	title     string
	fetches   int
	failAfter int
	failWith  error
	writes    []docs.WriteParams
}

func (a *stubAdapter) Fetch(ctx context.Context, ref models.DocRef) (*docs.DocFetchResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetches++
	if a.failAfter > 0 && a.fetches > a.failAfter {
		return nil, a.failWith
	}
	return &docs.DocFetchResult{Content: a.content, Revision: "r1", Title: a.title}, nil
}

func (a *stubAdapter) WritePatch(ctx context.Context, params docs.WriteParams) (*docs.WriteResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writes = append(a.writes, params)
	return &docs.WriteResult{Revision: "r2"}, nil
}

func (a *stubAdapter) SupportsDirectWriteback() bool { return true }

func (a *stubAdapter) DocURL(ref models.DocRef) string { return "https://wiki.example/" + ref.ID }

type harness struct {
	store      *storage.MemoryStore
	queue      *queue.MemoryQueue
	machine    *Machine
	actions    *Actions
	adapter    *stubAdapter
	suppressor *fingerprint.Suppressor
	builder    *evidence.Builder
}

func newHarness(t *testing.T, ws *models.Workspace, mapDoc bool) *harness {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemoryStore()
	require.NoError(t, store.SaveWorkspace(ctx, ws))
	q := queue.NewMemoryQueue()

	adapter := &stubAdapter{content: testRunbook, title: "Payments Runbook"}
	registry := docs.NewRegistry()
	registry.Register("confluence", adapter)

	catalog := docs.NewStaticCatalog()
	if mapDoc {
		catalog.Add(ws.ID, "payments", models.DocRef{System: "confluence", ID: "runbook"})
	}

	client, err := llm.NewClient(ctx, &config.Config{})
	require.NoError(t, err)
	generator := patch.NewGenerator(client)
	suppressor := fingerprint.NewSuppressor(store)
	executor := writeback.NewExecutor(store, registry, generator, claims.Budgets{})
	sink := notify.NewNoopSink()
	builder := evidence.NewBuilder()

	m := NewMachine(Deps{
		Store:      store,
		Queue:      q,
		Builder:    builder,
		Joiner:     correlate.NewJoiner(store, nil, 0),
		Suppressor: suppressor,
		Resolver:   docs.NewResolver(registry, catalog, 2),
		Registry:   registry,
		Engine:     compare.NewEngine(),
		Evaluator:  policy.NewEvaluator(nil),
		Router:     routing.NewRouter(routing.NewMemoryRateLimiter(10)),
		Planner:    patch.NewPlanner(),
		Generator:  generator,
		Sink:       sink,
		Executor:   executor,
		Config:     config.PipelineConfig{},
	})

	return &harness{
		store:      store,
		queue:      q,
		machine:    m,
		actions:    NewActions(store, suppressor, executor, sink),
		adapter:    adapter,
		suppressor: suppressor,
		builder:    builder,
	}
}

func testPR() *signal.GitHubPRPayload {
	merged := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	p := &signal.GitHubPRPayload{}
	p.Action = "closed"
	p.PullRequest.Number = 42
	p.PullRequest.Title = "Deploy payments with helm"
	p.PullRequest.Body = "Run `helm upgrade payments ./chart` from the repo root."
	p.PullRequest.User.Login = "alice"
	p.PullRequest.Merged = true
	p.PullRequest.MergedAt = &merged
	p.PullRequest.Base.Ref = "main"
	p.PullRequest.Head.Ref = "feat/helm"
	p.PullRequest.Head.SHA = "abc123"
	p.Repository.Name = "payments"
	p.Repository.FullName = "acme/payments"
	p.Repository.Owner.Login = "acme"
	p.ChangedFiles = []signal.ChangedFilePayload{
		{Filename: "scripts/run.sh", Status: "modified", Additions: 3, Deletions: 1},
	}
	p.Diff = "+helm upgrade payments ./chart\n-kubectl apply -f deploy.yaml\n"
	p.Service = "payments"
	return p
}

// ingest mirrors what the webhook boundary does: event plus candidate plus
// the first queue task.
func (h *harness) ingest(t *testing.T, ws *models.Workspace) *models.DriftCandidate {
	t.Helper()
	ctx := context.Background()

	ev, err := signal.NormalizeGitHubPR(ws.ID, testPR())
	require.NoError(t, err)
	require.NoError(t, h.store.CreateSignalEvent(ctx, ev))

	c := &models.DriftCandidate{
		WorkspaceID:    ws.ID,
		ID:             uuid.NewString(),
		SignalEventID:  ev.ID,
		State:          models.StateIngested,
		StateUpdatedAt: time.Now().UTC(),
		SourceType:     ev.SourceType,
		Service:        ev.Service,
		Repo:           ev.Repo,
		TraceID:        uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, h.store.CreateDriftCandidate(ctx, c))
	_, err = h.queue.Enqueue(ctx, queue.Task{WorkspaceID: ws.ID, DriftID: c.ID}, queue.Options{})
	require.NoError(t, err)
	return c
}

// drain steps queued tasks until the pipeline settles
func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		task, err := h.queue.Dequeue(ctx, 50*time.Millisecond)
		require.NoError(t, err)
		if task == nil {
			return
		}
		require.NoError(t, h.machine.Step(ctx, *task))
	}
	t.Fatal("pipeline did not settle within 30 steps")
}

func (h *harness) candidate(t *testing.T, ws, id string) *models.DriftCandidate {
	t.Helper()
	c, err := h.store.GetDriftCandidate(context.Background(), ws, id)
	require.NoError(t, err)
	return c
}

func TestMachineHappyPathToReview(t *testing.T) {
	ws := &models.Workspace{ID: "ws1", Name: "Acme", DefaultOwnerRef: "@alice"}
	h := newHarness(t, ws, true)
	c := h.ingest(t, ws)
	h.drain(t)

	got := h.candidate(t, ws.ID, c.ID)
	assert.Equal(t, models.StateAwaitingHuman, got.State)
	assert.Equal(t, models.DriftInstruction, got.DriftType)
	assert.InDelta(t, 0.75, got.Confidence, 0.001)
	assert.Equal(t, docs.ResolutionResolved, got.DocsResolutionStatus)
	assert.NotEmpty(t, got.FingerprintStrict)
	require.NotNil(t, got.OwnerResolution)
	assert.Equal(t, "@alice", got.OwnerResolution.OwnerRef)
	require.NotNil(t, got.RoutingDecision)
	assert.Equal(t, models.PriorityP0, got.RoutingDecision.Priority)

	p, err := h.store.GetProposalByDrift(context.Background(), ws.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StyleAddNote, p.Style)
	assert.Equal(t, models.ProposalPending, p.Status)
	assert.Contains(t, p.ProposedContent, "> **Note:**")
	assert.Contains(t, p.ProposedContent, "kubectl apply -f deploy.yaml")
	assert.NotEmpty(t, p.Diff)
}

func TestMachineSuppressedCandidateIgnored(t *testing.T) {
	ws := &models.Workspace{ID: "ws1", DefaultOwnerRef: "@alice"}
	h := newHarness(t, ws, true)
	c := h.ingest(t, ws)

	// A prior rejection of the same drift shape learned a strict rule
	ctx := context.Background()
	ev, err := h.store.GetSignalEvent(ctx, ws.ID, c.SignalEventID)
	require.NoError(t, err)
	bundle := h.builder.Build(ev, c, 1)
	_, err = h.suppressor.LearnRejection(ctx, ws.ID, bundle.Fingerprints, "not applicable", "alice")
	require.NoError(t, err)

	h.drain(t)

	got := h.candidate(t, ws.ID, c.ID)
	assert.Equal(t, models.StateIgnored, got.State)
}

func TestMachineNoMappedDocFails(t *testing.T) {
	ws := &models.Workspace{ID: "ws1", DefaultOwnerRef: "@alice"}
	h := newHarness(t, ws, false)
	c := h.ingest(t, ws)
	h.drain(t)

	got := h.candidate(t, ws.ID, c.ID)
	assert.Equal(t, models.StateFailedNeedsMapping, got.State)
	assert.Equal(t, "FAILED_NEEDS_MAPPING", got.LastErrorCode)
	assert.Equal(t, docs.ResolutionNone, got.DocsResolutionStatus)
}

func TestMachinePermanentAdapterFailure(t *testing.T) {
	ws := &models.Workspace{ID: "ws1", DefaultOwnerRef: "@alice"}
	h := newHarness(t, ws, true)
	h.adapter.failAfter = 1
	h.adapter.failWith = errors.New(errors.CodeAdapterAuth, "token expired")

	c := h.ingest(t, ws)
	h.drain(t)

	got := h.candidate(t, ws.ID, c.ID)
	assert.Equal(t, models.StateFailed, got.State)
	assert.Equal(t, string(errors.CodeAdapterAuth), got.LastErrorCode)
}

func TestMachineTransientFailureRetriesThenExhausts(t *testing.T) {
	ws := &models.Workspace{ID: "ws1", DefaultOwnerRef: "@alice"}
	h := newHarness(t, ws, true)
	h.adapter.failAfter = 1
	h.adapter.failWith = errors.New(errors.CodeTransient, "upstream 503")

	c := h.ingest(t, ws)
	h.drain(t)

	// The comparison fetch failed; the candidate holds its state with a
	// retry recorded and a delayed task parked in the queue.
	got := h.candidate(t, ws.ID, c.ID)
	assert.Equal(t, models.StateDocsResolved, got.State)
	assert.Equal(t, 1, got.RetryCount)

	// Redeliver without waiting for the backoff until retries run out
	ctx := context.Background()
	task := queue.Task{WorkspaceID: ws.ID, DriftID: c.ID}
	for i := 0; i < 6; i++ {
		require.NoError(t, h.machine.Step(ctx, task))
		if models.IsTerminal(h.candidate(t, ws.ID, c.ID).State) {
			break
		}
	}

	got = h.candidate(t, ws.ID, c.ID)
	assert.Equal(t, models.StateFailed, got.State)
	assert.Equal(t, string(errors.CodeRetryExhausted), got.LastErrorCode)
}

func TestMachineStepIsNoopOnSettledStates(t *testing.T) {
	ws := &models.Workspace{ID: "ws1", DefaultOwnerRef: "@alice"}
	h := newHarness(t, ws, true)
	c := h.ingest(t, ws)
	h.drain(t)
	require.Equal(t, models.StateAwaitingHuman, h.candidate(t, ws.ID, c.ID).State)

	// A stale or duplicate task for a waiting candidate changes nothing
	before := h.candidate(t, ws.ID, c.ID).StateUpdatedAt
	require.NoError(t, h.machine.Step(context.Background(), queue.Task{WorkspaceID: ws.ID, DriftID: c.ID}))
	assert.Equal(t, before, h.candidate(t, ws.ID, c.ID).StateUpdatedAt)
}

func TestMachineDropsTaskForUnknownCandidate(t *testing.T) {
	ws := &models.Workspace{ID: "ws1"}
	h := newHarness(t, ws, true)
	err := h.machine.Step(context.Background(), queue.Task{WorkspaceID: ws.ID, DriftID: "gone"})
	assert.NoError(t, err)
}

func TestFactInputMapsChangedFileStatus(t *testing.T) {
	ws := &models.Workspace{ID: "ws1", Name: "Acme"}
	ev, err := signal.NormalizeGitHubPR(ws.ID, testPR())
	require.NoError(t, err)
	c := &models.DriftCandidate{WorkspaceID: ws.ID, ID: "d1", Repo: ev.Repo}

	in := factInputFor(ws, ev, c)
	assert.Equal(t, []string{"scripts/run.sh"}, in.ChangedPaths)
	assert.Equal(t, map[string]string{"scripts/run.sh": "modified"}, in.ChangedStatus)
}
