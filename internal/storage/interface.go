package storage

import (
	"context"
	"errors"
	"time"

	"github.com/docdrift/docdrift/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on compare-and-swap misses (another worker
	// advanced the candidate) and on idempotent re-inserts.
	ErrConflict = errors.New("conflict")
)

// Store is the transactional repository the pipeline runs against.
// Every query is scoped by workspace ID; the workspace is the tenant boundary.
type Store interface {
	// Workspaces
	SaveWorkspace(ctx context.Context, ws *models.Workspace) error
	GetWorkspace(ctx context.Context, workspaceID string) (*models.Workspace, error)

	// Signal events. CreateSignalEvent returns ErrConflict when the
	// deterministic ID already exists (idempotent webhook re-delivery).
	CreateSignalEvent(ctx context.Context, ev *models.SignalEvent) error
	GetSignalEvent(ctx context.Context, workspaceID, id string) (*models.SignalEvent, error)
	ListSignalEventsByService(ctx context.Context, workspaceID, service string, since time.Time) ([]*models.SignalEvent, error)

	// Drift candidates
	CreateDriftCandidate(ctx context.Context, c *models.DriftCandidate) error
	GetDriftCandidate(ctx context.Context, workspaceID, id string) (*models.DriftCandidate, error)
	GetCandidateBySignal(ctx context.Context, workspaceID, signalEventID string) (*models.DriftCandidate, error)
	// AdvanceCandidate persists the mutated candidate and the audit row in
	// one transaction, gated by a compare-and-swap on (state, stateUpdatedAt).
	// Returns ErrConflict when another worker already advanced the row.
	AdvanceCandidate(ctx context.Context, c *models.DriftCandidate, prevState models.State, prevUpdatedAt time.Time, rec *models.AuditRecord) error
	ListCandidatesByState(ctx context.Context, workspaceID string, state models.State, limit int) ([]*models.DriftCandidate, error)
	ListExpiredSnoozes(ctx context.Context, now time.Time, limit int) ([]*models.DriftCandidate, error)
	ListOpenCandidatesByService(ctx context.Context, workspaceID, service string, since time.Time) ([]*models.DriftCandidate, error)

	// Evidence bundles (insert-only; bundles are immutable)
	SaveEvidenceBundle(ctx context.Context, b *models.EvidenceBundle) error
	GetEvidenceBundle(ctx context.Context, workspaceID, bundleID string) (*models.EvidenceBundle, error)
	LatestBundleSchemaVersion(ctx context.Context, workspaceID, driftID string) (int, error)

	// Patch proposals
	SaveProposal(ctx context.Context, p *models.PatchProposal) error
	GetProposal(ctx context.Context, workspaceID, id string) (*models.PatchProposal, error)
	GetProposalByDrift(ctx context.Context, workspaceID, driftID string) (*models.PatchProposal, error)
	UpdateProposal(ctx context.Context, p *models.PatchProposal) error
	ListProposalsForDigest(ctx context.Context, workspaceID string, since time.Time) ([]*models.PatchProposal, error)

	// Policy packs
	SavePolicyPack(ctx context.Context, p *models.PolicyPackRecord) error
	GetPolicyPack(ctx context.Context, workspaceID, id string) (*models.PolicyPackRecord, error)
	ListPublishedPacks(ctx context.Context, workspaceID string) ([]*models.PolicyPackRecord, error)

	// Audit trail (append-only)
	AppendAudit(ctx context.Context, rec *models.AuditRecord) error
	ListAudit(ctx context.Context, workspaceID, driftID string) ([]*models.AuditRecord, error)

	// Suppression rules
	SaveSuppression(ctx context.Context, r *models.SuppressionRule) error
	ListSuppressions(ctx context.Context, workspaceID string) ([]*models.SuppressionRule, error)
	FindSuppression(ctx context.Context, workspaceID, fingerprint string) (*models.SuppressionRule, error)
	IncrementFalsePositives(ctx context.Context, workspaceID, ruleID string) (int, error)
	DeleteSuppression(ctx context.Context, workspaceID, ruleID string) error

	// Idempotency keys for exactly-once external side effects. Returns true
	// when the key was newly inserted, false when it was already recorded.
	PutIdempotencyKey(ctx context.Context, workspaceID, key string) (bool, error)

	// Close connection
	Close() error
}
