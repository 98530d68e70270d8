package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/docdrift/docdrift/internal/audit"
	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/models"
	"github.com/docdrift/docdrift/internal/notify"
	"github.com/docdrift/docdrift/internal/queue"
	"github.com/docdrift/docdrift/internal/storage"
)

const (
	dequeueWait    = 5 * time.Second
	sweepInterval  = time.Minute
	sweepBatch     = 100
	digestLookback = 7 * 24 * time.Hour
)

// Worker drains the task queue through the state machine and runs the
// periodic snooze sweep.
type Worker struct {
	store   storage.Store
	queue   queue.Queue
	machine *Machine
	sink    notify.Sink
	logger  *slog.Logger
}

func NewWorker(store storage.Store, q queue.Queue, machine *Machine, sink notify.Sink) *Worker {
	return &Worker{
		store:   store,
		queue:   q,
		machine: machine,
		sink:    sink,
		logger:  slog.Default().With("component", "worker"),
	}
}

// Run processes tasks until the context is cancelled. Task errors are logged,
// never fatal: the machine already persisted retry or failure state.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return ctx.Err()
		default:
		}

		task, err := w.queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("dequeue failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}

		if err := w.machine.Step(ctx, *task); err != nil {
			w.logger.Error("step failed",
				"workspace_id", task.WorkspaceID,
				"drift_id", task.DriftID,
				"error", err,
			)
		}
	}
}

// RunSweeper wakes expired snoozes back to AWAITING_HUMAN once a minute
func (w *Worker) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sweepSnoozes(ctx)
		}
	}
}

func (w *Worker) sweepSnoozes(ctx context.Context) {
	expired, err := w.store.ListExpiredSnoozes(ctx, time.Now().UTC(), sweepBatch)
	if err != nil {
		w.logger.Error("snooze sweep failed", "error", err)
		return
	}

	for _, c := range expired {
		prevState, prevAt := c.State, c.StateUpdatedAt
		c.State = models.StateAwaitingHuman
		c.SnoozeUntil = nil
		c.StateUpdatedAt = time.Now().UTC()
		rec := audit.Transition(c, prevState, models.StateAwaitingHuman, "sweeper", time.Time{},
			map[string]interface{}{"reason": "snooze expired"})
		if err := w.store.AdvanceCandidate(ctx, c, prevState, prevAt, rec); err != nil {
			if !errors.Is(err, storage.ErrConflict) {
				w.logger.Error("snooze wake failed", "drift_id", c.ID, "error", err)
			}
			continue
		}

		// Restore the review card and the proposal status
		p, err := w.store.GetProposalByDrift(ctx, c.WorkspaceID, c.ID)
		if err != nil {
			continue
		}
		p.Status = models.ProposalPending
		if err := w.store.UpdateProposal(ctx, p); err != nil {
			w.logger.Warn("proposal wake failed", "proposal_id", p.ID, "error", err)
		}
		if p.SlackChannelID != "" && p.SlackMessageTs != "" {
			if err := w.sink.UpdateStatus(ctx, p.SlackChannelID, p.SlackMessageTs, c, "snooze expired, awaiting review"); err != nil {
				w.logger.Warn("card update failed", "proposal_id", p.ID, "error", err)
			}
		}
		w.logger.Info("snooze expired", "drift_id", c.ID)
	}
}

// PostDigest assembles and posts the workspace digest. Callers schedule it
// (weekly by default); an empty digest posts nothing.
func (w *Worker) PostDigest(ctx context.Context, ws *models.Workspace) error {
	d, err := notify.BuildDigest(ctx, w.store, ws.ID, time.Now().UTC().Add(-digestLookback))
	if err != nil {
		return err
	}
	if d.Empty() {
		return nil
	}
	return w.sink.PostDigest(ctx, ws.DigestChannel, d)
}
