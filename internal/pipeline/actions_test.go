package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdrift/docdrift/internal/models"
)

// reviewFixture drives one candidate to AWAITING_HUMAN and returns it with
// its pending proposal.
func reviewFixture(t *testing.T) (*harness, *models.DriftCandidate, *models.PatchProposal) {
	t.Helper()
	ws := &models.Workspace{ID: "ws1", Name: "Acme", DefaultOwnerRef: "@alice"}
	h := newHarness(t, ws, true)
	c := h.ingest(t, ws)
	h.drain(t)

	got := h.candidate(t, ws.ID, c.ID)
	require.Equal(t, models.StateAwaitingHuman, got.State)
	p, err := h.store.GetProposalByDrift(context.Background(), ws.ID, c.ID)
	require.NoError(t, err)
	return h, got, p
}

func TestApproveAppliesPatch(t *testing.T) {
	h, c, p := reviewFixture(t)
	ctx := context.Background()

	require.NoError(t, h.actions.Approve(ctx, c.WorkspaceID, p.ID, "alice"))

	got := h.candidate(t, c.WorkspaceID, c.ID)
	assert.Equal(t, models.StateApplied, got.State)

	applied, err := h.store.GetProposal(ctx, c.WorkspaceID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalApplied, applied.Status)
	assert.Equal(t, "r2", applied.AppliedRevision)
	assert.Equal(t, "alice", applied.ResolvedBy)

	require.Len(t, h.adapter.writes, 1)
	assert.Equal(t, p.ProposedContent, h.adapter.writes[0].NewContent)
	assert.Equal(t, "r1", h.adapter.writes[0].BaseRevision)
}

func TestApproveRefusedOutsideReview(t *testing.T) {
	h, c, p := reviewFixture(t)
	ctx := context.Background()

	require.NoError(t, h.actions.Approve(ctx, c.WorkspaceID, p.ID, "alice"))
	err := h.actions.Approve(ctx, c.WorkspaceID, p.ID, "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not awaiting review")
}

func TestRejectLearnsSuppression(t *testing.T) {
	h, c, p := reviewFixture(t)
	ctx := context.Background()

	require.NoError(t, h.actions.Reject(ctx, c.WorkspaceID, p.ID, "bob", "doc is right", []string{"wrong_doc"}))

	got := h.candidate(t, c.WorkspaceID, c.ID)
	assert.Equal(t, models.StateRejected, got.State)

	rejected, err := h.store.GetProposal(ctx, c.WorkspaceID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalRejected, rejected.Status)
	assert.Equal(t, "doc is right", rejected.RejectionReason)
	assert.Equal(t, []string{"wrong_doc"}, rejected.RejectionTags)

	// The same drift shape is now suppressed at the strict level
	match, err := h.suppressor.Check(ctx, c.WorkspaceID, models.Fingerprints{
		Strict: got.FingerprintStrict,
		Medium: got.FingerprintMedium,
		Broad:  got.FingerprintBroad,
	})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, models.LevelStrict, match.Level)
	assert.Empty(t, h.adapter.writes, "rejection never touches the document")
}

func TestRejectRepeatCountsFalsePositive(t *testing.T) {
	h, c, p := reviewFixture(t)
	ctx := context.Background()

	require.NoError(t, h.actions.Reject(ctx, c.WorkspaceID, p.ID, "bob", "doc is right", nil))

	// The same drift shape surfaces again on a later signal
	again := &models.DriftCandidate{
		WorkspaceID:       c.WorkspaceID,
		ID:                "drift-again",
		SignalEventID:     "signal-again",
		State:             models.StateAwaitingHuman,
		StateUpdatedAt:    time.Now().UTC(),
		SourceType:        c.SourceType,
		Service:           c.Service,
		Repo:              c.Repo,
		FingerprintStrict: c.FingerprintStrict,
		FingerprintMedium: c.FingerprintMedium,
		FingerprintBroad:  c.FingerprintBroad,
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, h.store.CreateDriftCandidate(ctx, again))
	require.NoError(t, h.store.SaveProposal(ctx, &models.PatchProposal{
		WorkspaceID: c.WorkspaceID,
		ID:          "proposal-again",
		DriftID:     again.ID,
		Status:      models.ProposalPending,
		CreatedAt:   time.Now().UTC(),
	}))

	require.NoError(t, h.actions.Reject(ctx, c.WorkspaceID, "proposal-again", "bob", "still wrong", nil))

	// No duplicate rule; the existing one absorbs the repeat as a false positive
	rules, err := h.store.ListSuppressions(ctx, c.WorkspaceID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, models.LevelStrict, rules[0].Level)
	assert.Equal(t, 1, rules[0].FalsePositives)
}

func TestSnoozeDefaultsToSevenDays(t *testing.T) {
	h, c, p := reviewFixture(t)
	ctx := context.Background()

	before := time.Now().UTC()
	require.NoError(t, h.actions.Snooze(ctx, c.WorkspaceID, p.ID, "bob", time.Time{}))

	got := h.candidate(t, c.WorkspaceID, c.ID)
	assert.Equal(t, models.StateSnoozed, got.State)
	require.NotNil(t, got.SnoozeUntil)
	assert.WithinDuration(t, before.Add(DefaultSnooze), *got.SnoozeUntil, 5*time.Second)

	snoozed, err := h.store.GetProposal(ctx, c.WorkspaceID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalSnoozed, snoozed.Status)
}

func TestCancelFromSnoozed(t *testing.T) {
	h, c, p := reviewFixture(t)
	ctx := context.Background()

	until := time.Now().UTC().Add(48 * time.Hour)
	require.NoError(t, h.actions.Snooze(ctx, c.WorkspaceID, p.ID, "bob", until))
	require.NoError(t, h.actions.Cancel(ctx, c.WorkspaceID, p.ID, "bob"))

	got := h.candidate(t, c.WorkspaceID, c.ID)
	assert.Equal(t, models.StateIgnored, got.State)
	assert.Nil(t, got.SnoozeUntil)

	cancelled, err := h.store.GetProposal(ctx, c.WorkspaceID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalRejected, cancelled.Status)
	assert.Equal(t, "cancelled", cancelled.RejectionReason)

	// Cancel does not learn a suppression; the drift may come back
	match, err := h.suppressor.Check(ctx, c.WorkspaceID, models.Fingerprints{
		Strict: got.FingerprintStrict,
		Medium: got.FingerprintMedium,
		Broad:  got.FingerprintBroad,
	})
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestCancelRefusedOnTerminalCandidate(t *testing.T) {
	h, c, p := reviewFixture(t)
	ctx := context.Background()

	require.NoError(t, h.actions.Reject(ctx, c.WorkspaceID, p.ID, "bob", "not applicable", nil))
	err := h.actions.Cancel(ctx, c.WorkspaceID, p.ID, "bob")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot cancel")
}
