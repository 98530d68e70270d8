package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/docdrift/docdrift/internal/audit"
	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/fingerprint"
	"github.com/docdrift/docdrift/internal/models"
	"github.com/docdrift/docdrift/internal/notify"
	"github.com/docdrift/docdrift/internal/storage"
	"github.com/docdrift/docdrift/internal/writeback"
)

// DefaultSnooze is how long a snoozed candidate sleeps before re-surfacing
const DefaultSnooze = 7 * 24 * time.Hour

// Actions are the human-review verbs, invoked from Slack interactions or the
// CLI. Each one moves the candidate out of AWAITING_HUMAN.
type Actions struct {
	store      storage.Store
	suppressor *fingerprint.Suppressor
	executor   *writeback.Executor
	sink       notify.Sink
	logger     *slog.Logger
}

func NewActions(store storage.Store, suppressor *fingerprint.Suppressor, executor *writeback.Executor, sink notify.Sink) *Actions {
	return &Actions{
		store:      store,
		suppressor: suppressor,
		executor:   executor,
		sink:       sink,
		logger:     slog.Default().With("component", "actions"),
	}
}

// Approve applies the proposal and moves the candidate to APPLIED. A failed
// writeback terminates the candidate with the adapter's error code.
func (a *Actions) Approve(ctx context.Context, workspaceID, proposalID, actor string) error {
	p, c, err := a.load(ctx, workspaceID, proposalID)
	if err != nil {
		return err
	}
	if c.State != models.StateAwaitingHuman {
		return errors.Newf(errors.CodeInternal, "candidate %s is %s, not awaiting review", c.ID, c.State)
	}

	now := time.Now().UTC()
	p.Status = models.ProposalApproved
	p.ResolvedBy = actor
	p.ResolvedAt = &now
	if err := a.store.UpdateProposal(ctx, p); err != nil {
		return err
	}

	bundle, err := a.store.GetEvidenceBundle(ctx, workspaceID, c.EvidenceBundleID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	prevState, prevAt := c.State, c.StateUpdatedAt
	applied, applyErr := a.executor.Apply(ctx, c, p, bundle)
	if applyErr != nil {
		p.Status = models.ProposalFailed
		if err := a.store.UpdateProposal(ctx, p); err != nil {
			a.logger.Error("could not mark proposal failed", "proposal_id", p.ID, "error", err)
		}
		c.LastErrorCode = string(errors.CodeOf(applyErr))
		c.LastErrorMessage = applyErr.Error()
		c.State = models.StateFailed
		c.StateUpdatedAt = time.Now().UTC()
		rec := audit.Transition(c, prevState, models.StateFailed, actor, time.Time{},
			map[string]interface{}{"error": applyErr.Error()})
		if err := a.store.AdvanceCandidate(ctx, c, prevState, prevAt, rec); err != nil && !errors.Is(err, storage.ErrConflict) {
			return err
		}
		a.updateCard(ctx, p, c, "failed")
		return applyErr
	}

	c.State = models.StateApplied
	c.StateUpdatedAt = time.Now().UTC()
	rec := audit.Transition(c, prevState, models.StateApplied, actor, time.Time{},
		map[string]interface{}{"revision": applied.AppliedRevision, "pr_url": applied.PRUrl})
	if err := a.store.AdvanceCandidate(ctx, c, prevState, prevAt, rec); err != nil && !errors.Is(err, storage.ErrConflict) {
		return err
	}
	a.updateCard(ctx, p, c, "applied")
	return nil
}

// Reject terminates the candidate and learns a strict suppression from the
// rejection so the same drift is not raised again. A repeat rejection of an
// already-suppressed fingerprint counts as a false positive against the
// existing rule, which escalates it to a coarser level once the threshold
// for its level is reached.
func (a *Actions) Reject(ctx context.Context, workspaceID, proposalID, actor, reason string, tags []string) error {
	p, c, err := a.load(ctx, workspaceID, proposalID)
	if err != nil {
		return err
	}
	if c.State != models.StateAwaitingHuman {
		return errors.Newf(errors.CodeInternal, "candidate %s is %s, not awaiting review", c.ID, c.State)
	}

	now := time.Now().UTC()
	p.Status = models.ProposalRejected
	p.RejectionReason = reason
	p.RejectionTags = tags
	p.ResolvedBy = actor
	p.ResolvedAt = &now
	if err := a.store.UpdateProposal(ctx, p); err != nil {
		return err
	}

	fps := models.Fingerprints{
		Strict: c.FingerprintStrict,
		Medium: c.FingerprintMedium,
		Broad:  c.FingerprintBroad,
	}
	if match, err := a.suppressor.Check(ctx, workspaceID, fps); err != nil {
		a.logger.Error("suppression lookup failed", "drift_id", c.ID, "error", err)
	} else if match != nil {
		if _, err := a.suppressor.RecordFalsePositive(ctx, workspaceID, match.Rule, fps); err != nil {
			a.logger.Error("false-positive recording failed", "drift_id", c.ID, "rule_id", match.Rule.ID, "error", err)
		}
	} else if _, err := a.suppressor.LearnRejection(ctx, workspaceID, fps, reason, actor); err != nil {
		a.logger.Error("suppression learning failed", "drift_id", c.ID, "error", err)
	}

	prevState, prevAt := c.State, c.StateUpdatedAt
	c.State = models.StateRejected
	c.StateUpdatedAt = time.Now().UTC()
	rec := audit.Transition(c, prevState, models.StateRejected, actor, time.Time{},
		map[string]interface{}{"reason": reason, "tags": tags})
	if err := a.store.AdvanceCandidate(ctx, c, prevState, prevAt, rec); err != nil && !errors.Is(err, storage.ErrConflict) {
		return err
	}
	a.updateCard(ctx, p, c, "rejected")
	return nil
}

// Snooze parks the candidate until the given time; the sweeper re-surfaces it
func (a *Actions) Snooze(ctx context.Context, workspaceID, proposalID, actor string, until time.Time) error {
	p, c, err := a.load(ctx, workspaceID, proposalID)
	if err != nil {
		return err
	}
	if c.State != models.StateAwaitingHuman {
		return errors.Newf(errors.CodeInternal, "candidate %s is %s, not awaiting review", c.ID, c.State)
	}
	if until.IsZero() {
		until = time.Now().UTC().Add(DefaultSnooze)
	}

	p.Status = models.ProposalSnoozed
	if err := a.store.UpdateProposal(ctx, p); err != nil {
		return err
	}

	prevState, prevAt := c.State, c.StateUpdatedAt
	c.State = models.StateSnoozed
	c.SnoozeUntil = &until
	c.StateUpdatedAt = time.Now().UTC()
	rec := audit.Transition(c, prevState, models.StateSnoozed, actor, time.Time{},
		map[string]interface{}{"until": until.Format(time.RFC3339)})
	if err := a.store.AdvanceCandidate(ctx, c, prevState, prevAt, rec); err != nil && !errors.Is(err, storage.ErrConflict) {
		return err
	}
	a.updateCard(ctx, p, c, "snoozed")
	return nil
}

// Cancel drops a waiting or snoozed candidate without learning a suppression
func (a *Actions) Cancel(ctx context.Context, workspaceID, proposalID, actor string) error {
	p, c, err := a.load(ctx, workspaceID, proposalID)
	if err != nil {
		return err
	}
	if c.State != models.StateAwaitingHuman && c.State != models.StateSnoozed {
		return errors.Newf(errors.CodeInternal, "candidate %s is %s, cannot cancel", c.ID, c.State)
	}

	now := time.Now().UTC()
	p.Status = models.ProposalRejected
	p.RejectionReason = "cancelled"
	p.ResolvedBy = actor
	p.ResolvedAt = &now
	if err := a.store.UpdateProposal(ctx, p); err != nil {
		return err
	}

	prevState, prevAt := c.State, c.StateUpdatedAt
	c.State = models.StateIgnored
	c.SnoozeUntil = nil
	c.StateUpdatedAt = time.Now().UTC()
	rec := audit.Transition(c, prevState, models.StateIgnored, actor, time.Time{},
		map[string]interface{}{"reason": "cancelled"})
	if err := a.store.AdvanceCandidate(ctx, c, prevState, prevAt, rec); err != nil && !errors.Is(err, storage.ErrConflict) {
		return err
	}
	a.updateCard(ctx, p, c, "cancelled")
	return nil
}

func (a *Actions) load(ctx context.Context, workspaceID, proposalID string) (*models.PatchProposal, *models.DriftCandidate, error) {
	p, err := a.store.GetProposal(ctx, workspaceID, proposalID)
	if err != nil {
		return nil, nil, err
	}
	c, err := a.store.GetDriftCandidate(ctx, workspaceID, p.DriftID)
	if err != nil {
		return nil, nil, err
	}
	return p, c, nil
}

// updateCard rewrites the Slack review card; digest-only candidates have no
// card to update.
func (a *Actions) updateCard(ctx context.Context, p *models.PatchProposal, c *models.DriftCandidate, status string) {
	if p.SlackChannelID == "" || p.SlackMessageTs == "" {
		return
	}
	if err := a.sink.UpdateStatus(ctx, p.SlackChannelID, p.SlackMessageTs, c, status); err != nil {
		a.logger.Warn("card update failed", "proposal_id", p.ID, "error", err)
	}
}
