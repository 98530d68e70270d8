package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/docdrift/docdrift/internal/models"
	"github.com/docdrift/docdrift/internal/storage"
)

// ActorPipeline marks transitions driven by the worker rather than a human
const ActorPipeline = "pipeline"

// Transition builds the audit row for a state change. startedAt is when the
// stage began; pass the zero value for human actions with no stage duration.
func Transition(c *models.DriftCandidate, from, to models.State, actor string, startedAt time.Time, metadata map[string]interface{}) *models.AuditRecord {
	rec := &models.AuditRecord{
		WorkspaceID: c.WorkspaceID,
		DriftID:     c.ID,
		FromState:   from,
		ToState:     to,
		Actor:       actor,
		Timestamp:   time.Now().UTC(),
		Metadata:    metadata,
	}
	if !startedAt.IsZero() {
		rec.DurationMs = time.Since(startedAt).Milliseconds()
	}
	return rec
}

// Event appends a non-transition audit row (retries, notifications, writeback
// attempts). Failures are logged and swallowed; audit must never block the
// pipeline.
func Event(ctx context.Context, store storage.Store, c *models.DriftCandidate, actor string, metadata map[string]interface{}) {
	rec := &models.AuditRecord{
		WorkspaceID: c.WorkspaceID,
		DriftID:     c.ID,
		FromState:   c.State,
		ToState:     c.State,
		Actor:       actor,
		Timestamp:   time.Now().UTC(),
		Metadata:    metadata,
	}
	if err := store.AppendAudit(ctx, rec); err != nil {
		slog.Default().With("component", "audit").Warn("audit append failed",
			"drift_id", c.ID, "error", err)
	}
}
