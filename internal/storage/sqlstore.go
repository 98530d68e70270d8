package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/docdrift/docdrift/internal/models"
)

// sqlStore holds the queries shared by the Postgres and SQLite backends.
// All statements use ? placeholders and go through Rebind.
type sqlStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

func marshalJSON(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return b, nil
}

func unmarshalJSON(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// isUniqueViolation matches duplicate-key errors from both backends
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || // postgres
		strings.Contains(msg, "UNIQUE constraint failed") // sqlite
}

// Workspaces

func (s *sqlStore) SaveWorkspace(ctx context.Context, ws *models.Workspace) error {
	ranking, err := marshalJSON(ws.OwnershipSourceRanking)
	if err != nil {
		return err
	}
	prefs, err := marshalJSON(ws.WorkflowPreferences)
	if err != nil {
		return err
	}
	query := s.db.Rebind(`
		INSERT INTO workspaces (id, name, high_confidence_threshold, medium_confidence_threshold,
			ownership_source_ranking, workflow_preferences, default_owner_ref, digest_channel,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			high_confidence_threshold = excluded.high_confidence_threshold,
			medium_confidence_threshold = excluded.medium_confidence_threshold,
			ownership_source_ranking = excluded.ownership_source_ranking,
			workflow_preferences = excluded.workflow_preferences,
			default_owner_ref = excluded.default_owner_ref,
			digest_channel = excluded.digest_channel,
			updated_at = excluded.updated_at`)
	now := time.Now().UTC()
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = now
	}
	ws.UpdatedAt = now
	_, err = s.db.ExecContext(ctx, query,
		ws.ID, ws.Name, ws.HighConfidenceThreshold, ws.MediumConfidenceThreshold,
		ranking, prefs, ws.DefaultOwnerRef, ws.DigestChannel, ws.CreatedAt, ws.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	return nil
}

func (s *sqlStore) GetWorkspace(ctx context.Context, workspaceID string) (*models.Workspace, error) {
	query := s.db.Rebind(`
		SELECT id, name, high_confidence_threshold, medium_confidence_threshold,
			ownership_source_ranking, workflow_preferences, default_owner_ref, digest_channel,
			created_at, updated_at
		FROM workspaces WHERE id = ?`)
	row := s.db.QueryRowContext(ctx, query, workspaceID)

	ws := &models.Workspace{}
	var ranking, prefs []byte
	err := row.Scan(&ws.ID, &ws.Name, &ws.HighConfidenceThreshold, &ws.MediumConfidenceThreshold,
		&ranking, &prefs, &ws.DefaultOwnerRef, &ws.DigestChannel, &ws.CreatedAt, &ws.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	if err := unmarshalJSON(ranking, &ws.OwnershipSourceRanking); err != nil {
		return nil, fmt.Errorf("decode ownership ranking: %w", err)
	}
	if err := unmarshalJSON(prefs, &ws.WorkflowPreferences); err != nil {
		return nil, fmt.Errorf("decode workflow preferences: %w", err)
	}
	return ws, nil
}

// Signal events

func (s *sqlStore) CreateSignalEvent(ctx context.Context, ev *models.SignalEvent) error {
	extracted, err := marshalJSON(ev.Extracted)
	if err != nil {
		return err
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	query := s.db.Rebind(`
		INSERT INTO signal_events (workspace_id, id, source_type, occurred_at, service, repo,
			severity, extracted, raw_payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		ev.WorkspaceID, ev.ID, ev.SourceType, ev.OccurredAt, ev.Service, ev.Repo,
		ev.Severity, extracted, ev.RawPayload, ev.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create signal event: %w", err)
	}
	return nil
}

func (s *sqlStore) scanSignalEvent(row interface{ Scan(...interface{}) error }) (*models.SignalEvent, error) {
	ev := &models.SignalEvent{}
	var extracted []byte
	err := row.Scan(&ev.WorkspaceID, &ev.ID, &ev.SourceType, &ev.OccurredAt, &ev.Service,
		&ev.Repo, &ev.Severity, &extracted, &ev.RawPayload, &ev.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan signal event: %w", err)
	}
	if err := unmarshalJSON(extracted, &ev.Extracted); err != nil {
		return nil, fmt.Errorf("decode extracted: %w", err)
	}
	return ev, nil
}

const signalEventCols = `workspace_id, id, source_type, occurred_at, service, repo, severity, extracted, raw_payload, created_at`

func (s *sqlStore) GetSignalEvent(ctx context.Context, workspaceID, id string) (*models.SignalEvent, error) {
	query := s.db.Rebind(`SELECT ` + signalEventCols + ` FROM signal_events WHERE workspace_id = ? AND id = ?`)
	return s.scanSignalEvent(s.db.QueryRowContext(ctx, query, workspaceID, id))
}

func (s *sqlStore) ListSignalEventsByService(ctx context.Context, workspaceID, service string, since time.Time) ([]*models.SignalEvent, error) {
	query := s.db.Rebind(`
		SELECT ` + signalEventCols + ` FROM signal_events
		WHERE workspace_id = ? AND service = ? AND occurred_at >= ?
		ORDER BY occurred_at DESC`)
	rows, err := s.db.QueryContext(ctx, query, workspaceID, service, since)
	if err != nil {
		return nil, fmt.Errorf("list signal events: %w", err)
	}
	defer rows.Close()

	var events []*models.SignalEvent
	for rows.Next() {
		ev, err := s.scanSignalEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Drift candidates

const candidateCols = `workspace_id, id, signal_event_id, state, state_updated_at, source_type,
	service, repo, drift_type, classification_method, confidence, comparison_result,
	evidence_bundle_id, doc_candidates, docs_resolution_status, docs_resolution_confidence,
	owner_resolution, routing_decision, active_plan_id, active_plan_version, active_plan_hash,
	correlated_signals, fingerprint_strict, fingerprint_medium, fingerprint_broad,
	retry_count, last_error_code, last_error_message, trace_id, snooze_until, created_at`

func (s *sqlStore) candidateArgs(c *models.DriftCandidate) ([]interface{}, error) {
	comparison, err := marshalJSON(c.ComparisonResult)
	if err != nil {
		return nil, err
	}
	docCandidates, err := marshalJSON(c.DocCandidates)
	if err != nil {
		return nil, err
	}
	ownerRes, err := marshalJSON(c.OwnerResolution)
	if err != nil {
		return nil, err
	}
	routing, err := marshalJSON(c.RoutingDecision)
	if err != nil {
		return nil, err
	}
	correlated, err := marshalJSON(c.CorrelatedSignals)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		c.WorkspaceID, c.ID, c.SignalEventID, c.State, c.StateUpdatedAt, c.SourceType,
		c.Service, c.Repo, c.DriftType, c.ClassificationMethod, c.Confidence, comparison,
		c.EvidenceBundleID, docCandidates, c.DocsResolutionStatus, c.DocsResolutionConf,
		ownerRes, routing, c.ActivePlanID, c.ActivePlanVersion, c.ActivePlanHash,
		correlated, c.FingerprintStrict, c.FingerprintMedium, c.FingerprintBroad,
		c.RetryCount, c.LastErrorCode, c.LastErrorMessage, c.TraceID, c.SnoozeUntil, c.CreatedAt,
	}, nil
}

func (s *sqlStore) scanCandidate(row interface{ Scan(...interface{}) error }) (*models.DriftCandidate, error) {
	c := &models.DriftCandidate{}
	var comparison, docCandidates, ownerRes, routing, correlated []byte
	err := row.Scan(&c.WorkspaceID, &c.ID, &c.SignalEventID, &c.State, &c.StateUpdatedAt,
		&c.SourceType, &c.Service, &c.Repo, &c.DriftType, &c.ClassificationMethod,
		&c.Confidence, &comparison, &c.EvidenceBundleID, &docCandidates,
		&c.DocsResolutionStatus, &c.DocsResolutionConf, &ownerRes, &routing,
		&c.ActivePlanID, &c.ActivePlanVersion, &c.ActivePlanHash, &correlated,
		&c.FingerprintStrict, &c.FingerprintMedium, &c.FingerprintBroad,
		&c.RetryCount, &c.LastErrorCode, &c.LastErrorMessage, &c.TraceID,
		&c.SnoozeUntil, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan drift candidate: %w", err)
	}
	for _, pair := range []struct {
		data []byte
		dst  interface{}
	}{
		{comparison, &c.ComparisonResult},
		{docCandidates, &c.DocCandidates},
		{ownerRes, &c.OwnerResolution},
		{routing, &c.RoutingDecision},
		{correlated, &c.CorrelatedSignals},
	} {
		if err := unmarshalJSON(pair.data, pair.dst); err != nil {
			return nil, fmt.Errorf("decode candidate json column: %w", err)
		}
	}
	return c, nil
}

func (s *sqlStore) CreateDriftCandidate(ctx context.Context, c *models.DriftCandidate) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.StateUpdatedAt.IsZero() {
		c.StateUpdatedAt = c.CreatedAt
	}
	args, err := s.candidateArgs(c)
	if err != nil {
		return err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	query := s.db.Rebind(`INSERT INTO drift_candidates (` + candidateCols + `) VALUES (` + placeholders + `)`)
	_, err = s.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create drift candidate: %w", err)
	}
	return nil
}

func (s *sqlStore) GetDriftCandidate(ctx context.Context, workspaceID, id string) (*models.DriftCandidate, error) {
	query := s.db.Rebind(`SELECT ` + candidateCols + ` FROM drift_candidates WHERE workspace_id = ? AND id = ?`)
	return s.scanCandidate(s.db.QueryRowContext(ctx, query, workspaceID, id))
}

func (s *sqlStore) GetCandidateBySignal(ctx context.Context, workspaceID, signalEventID string) (*models.DriftCandidate, error) {
	query := s.db.Rebind(`SELECT ` + candidateCols + ` FROM drift_candidates WHERE workspace_id = ? AND signal_event_id = ?`)
	return s.scanCandidate(s.db.QueryRowContext(ctx, query, workspaceID, signalEventID))
}

// AdvanceCandidate is the state machine's only write path: the candidate row
// is updated in the same transaction as the audit append, gated by a
// compare-and-swap on (state, state_updated_at).
func (s *sqlStore) AdvanceCandidate(ctx context.Context, c *models.DriftCandidate, prevState models.State, prevUpdatedAt time.Time, rec *models.AuditRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	comparison, err := marshalJSON(c.ComparisonResult)
	if err != nil {
		return err
	}
	docCandidates, err := marshalJSON(c.DocCandidates)
	if err != nil {
		return err
	}
	ownerRes, err := marshalJSON(c.OwnerResolution)
	if err != nil {
		return err
	}
	routing, err := marshalJSON(c.RoutingDecision)
	if err != nil {
		return err
	}
	correlated, err := marshalJSON(c.CorrelatedSignals)
	if err != nil {
		return err
	}

	query := tx.Rebind(`
		UPDATE drift_candidates SET
			state = ?, state_updated_at = ?, drift_type = ?, classification_method = ?,
			confidence = ?, comparison_result = ?, evidence_bundle_id = ?, doc_candidates = ?,
			docs_resolution_status = ?, docs_resolution_confidence = ?, owner_resolution = ?,
			routing_decision = ?, active_plan_id = ?, active_plan_version = ?, active_plan_hash = ?,
			correlated_signals = ?, fingerprint_strict = ?, fingerprint_medium = ?, fingerprint_broad = ?,
			retry_count = ?, last_error_code = ?, last_error_message = ?, snooze_until = ?
		WHERE workspace_id = ? AND id = ? AND state = ? AND state_updated_at = ?`)
	res, err := tx.ExecContext(ctx, query,
		c.State, c.StateUpdatedAt, c.DriftType, c.ClassificationMethod,
		c.Confidence, comparison, c.EvidenceBundleID, docCandidates,
		c.DocsResolutionStatus, c.DocsResolutionConf, ownerRes,
		routing, c.ActivePlanID, c.ActivePlanVersion, c.ActivePlanHash,
		correlated, c.FingerprintStrict, c.FingerprintMedium, c.FingerprintBroad,
		c.RetryCount, c.LastErrorCode, c.LastErrorMessage, c.SnoozeUntil,
		c.WorkspaceID, c.ID, prevState, prevUpdatedAt)
	if err != nil {
		return fmt.Errorf("advance candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance candidate rows affected: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}

	if rec != nil {
		if err := appendAuditTx(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit advance: %w", err)
	}
	return nil
}

func (s *sqlStore) ListCandidatesByState(ctx context.Context, workspaceID string, state models.State, limit int) ([]*models.DriftCandidate, error) {
	query := s.db.Rebind(`
		SELECT ` + candidateCols + ` FROM drift_candidates
		WHERE workspace_id = ? AND state = ?
		ORDER BY state_updated_at ASC LIMIT ?`)
	return s.listCandidates(ctx, query, workspaceID, state, limit)
}

func (s *sqlStore) ListExpiredSnoozes(ctx context.Context, now time.Time, limit int) ([]*models.DriftCandidate, error) {
	query := s.db.Rebind(`
		SELECT ` + candidateCols + ` FROM drift_candidates
		WHERE state = ? AND snooze_until IS NOT NULL AND snooze_until <= ?
		ORDER BY snooze_until ASC LIMIT ?`)
	return s.listCandidates(ctx, query, models.StateSnoozed, now, limit)
}

func (s *sqlStore) ListOpenCandidatesByService(ctx context.Context, workspaceID, service string, since time.Time) ([]*models.DriftCandidate, error) {
	// Open = any non-terminal state
	query := s.db.Rebind(`
		SELECT ` + candidateCols + ` FROM drift_candidates
		WHERE workspace_id = ? AND service = ? AND created_at >= ?
			AND state NOT IN (?, ?, ?, ?, ?, ?)
		ORDER BY created_at DESC`)
	return s.listCandidates(ctx, query, workspaceID, service, since,
		models.StateApplied, models.StateRejected, models.StateIgnored,
		models.StateFailed, models.StateFailedNeedsMapping, models.StateFailedPatchGen)
}

func (s *sqlStore) listCandidates(ctx context.Context, query string, args ...interface{}) ([]*models.DriftCandidate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list drift candidates: %w", err)
	}
	defer rows.Close()

	var out []*models.DriftCandidate
	for rows.Next() {
		c, err := s.scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Evidence bundles

func (s *sqlStore) SaveEvidenceBundle(ctx context.Context, b *models.EvidenceBundle) error {
	source, err := marshalJSON(b.SourceEvidence)
	if err != nil {
		return err
	}
	target, err := marshalJSON(b.TargetEvidence)
	if err != nil {
		return err
	}
	assessment, err := marshalJSON(b.Assessment)
	if err != nil {
		return err
	}
	fingerprints, err := marshalJSON(b.Fingerprints)
	if err != nil {
		return err
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	query := s.db.Rebind(`
		INSERT INTO evidence_bundles (workspace_id, bundle_id, drift_candidate_id,
			source_evidence, target_evidence, assessment, fingerprints, pack_hash,
			schema_version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		b.WorkspaceID, b.BundleID, b.DriftCandidateID,
		source, target, assessment, fingerprints, b.PackHash, b.SchemaVersion, b.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("save evidence bundle: %w", err)
	}
	return nil
}

func (s *sqlStore) GetEvidenceBundle(ctx context.Context, workspaceID, bundleID string) (*models.EvidenceBundle, error) {
	query := s.db.Rebind(`
		SELECT workspace_id, bundle_id, drift_candidate_id, source_evidence, target_evidence,
			assessment, fingerprints, pack_hash, schema_version, created_at
		FROM evidence_bundles WHERE workspace_id = ? AND bundle_id = ?`)
	row := s.db.QueryRowContext(ctx, query, workspaceID, bundleID)

	b := &models.EvidenceBundle{}
	var source, target, assessment, fingerprints []byte
	err := row.Scan(&b.WorkspaceID, &b.BundleID, &b.DriftCandidateID, &source, &target,
		&assessment, &fingerprints, &b.PackHash, &b.SchemaVersion, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get evidence bundle: %w", err)
	}
	if err := unmarshalJSON(source, &b.SourceEvidence); err != nil {
		return nil, fmt.Errorf("decode source evidence: %w", err)
	}
	if err := unmarshalJSON(target, &b.TargetEvidence); err != nil {
		return nil, fmt.Errorf("decode target evidence: %w", err)
	}
	if err := unmarshalJSON(assessment, &b.Assessment); err != nil {
		return nil, fmt.Errorf("decode assessment: %w", err)
	}
	if err := unmarshalJSON(fingerprints, &b.Fingerprints); err != nil {
		return nil, fmt.Errorf("decode fingerprints: %w", err)
	}
	return b, nil
}

func (s *sqlStore) LatestBundleSchemaVersion(ctx context.Context, workspaceID, driftID string) (int, error) {
	query := s.db.Rebind(`
		SELECT COALESCE(MAX(schema_version), 0) FROM evidence_bundles
		WHERE workspace_id = ? AND drift_candidate_id = ?`)
	var version int
	if err := s.db.QueryRowContext(ctx, query, workspaceID, driftID).Scan(&version); err != nil {
		return 0, fmt.Errorf("latest bundle version: %w", err)
	}
	return version, nil
}

// Patch proposals

const proposalCols = `workspace_id, id, drift_id, doc_ref, base_revision, proposed_content, diff,
	style, confidence, status, slack_channel_id, slack_message_ts, rejection_reason,
	rejection_tags, resolved_by, resolved_at, last_notified_at, applied_revision, pr_url, created_at`

func (s *sqlStore) proposalArgs(p *models.PatchProposal) ([]interface{}, error) {
	docRef, err := marshalJSON(p.DocRef)
	if err != nil {
		return nil, err
	}
	tags, err := marshalJSON(p.RejectionTags)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		p.WorkspaceID, p.ID, p.DriftID, docRef, p.BaseRevision, p.ProposedContent, p.Diff,
		p.Style, p.Confidence, p.Status, p.SlackChannelID, p.SlackMessageTs, p.RejectionReason,
		tags, p.ResolvedBy, p.ResolvedAt, p.LastNotifiedAt, p.AppliedRevision, p.PRUrl, p.CreatedAt,
	}, nil
}

func (s *sqlStore) scanProposal(row interface{ Scan(...interface{}) error }) (*models.PatchProposal, error) {
	p := &models.PatchProposal{}
	var docRef, tags []byte
	err := row.Scan(&p.WorkspaceID, &p.ID, &p.DriftID, &docRef, &p.BaseRevision,
		&p.ProposedContent, &p.Diff, &p.Style, &p.Confidence, &p.Status,
		&p.SlackChannelID, &p.SlackMessageTs, &p.RejectionReason, &tags,
		&p.ResolvedBy, &p.ResolvedAt, &p.LastNotifiedAt, &p.AppliedRevision, &p.PRUrl, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan patch proposal: %w", err)
	}
	if err := unmarshalJSON(docRef, &p.DocRef); err != nil {
		return nil, fmt.Errorf("decode doc ref: %w", err)
	}
	if err := unmarshalJSON(tags, &p.RejectionTags); err != nil {
		return nil, fmt.Errorf("decode rejection tags: %w", err)
	}
	return p, nil
}

func (s *sqlStore) SaveProposal(ctx context.Context, p *models.PatchProposal) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	args, err := s.proposalArgs(p)
	if err != nil {
		return err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	query := s.db.Rebind(`INSERT INTO patch_proposals (` + proposalCols + `) VALUES (` + placeholders + `)`)
	_, err = s.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("save patch proposal: %w", err)
	}
	return nil
}

func (s *sqlStore) GetProposal(ctx context.Context, workspaceID, id string) (*models.PatchProposal, error) {
	query := s.db.Rebind(`SELECT ` + proposalCols + ` FROM patch_proposals WHERE workspace_id = ? AND id = ?`)
	return s.scanProposal(s.db.QueryRowContext(ctx, query, workspaceID, id))
}

func (s *sqlStore) GetProposalByDrift(ctx context.Context, workspaceID, driftID string) (*models.PatchProposal, error) {
	query := s.db.Rebind(`
		SELECT ` + proposalCols + ` FROM patch_proposals
		WHERE workspace_id = ? AND drift_id = ?
		ORDER BY created_at DESC LIMIT 1`)
	return s.scanProposal(s.db.QueryRowContext(ctx, query, workspaceID, driftID))
}

func (s *sqlStore) UpdateProposal(ctx context.Context, p *models.PatchProposal) error {
	tags, err := marshalJSON(p.RejectionTags)
	if err != nil {
		return err
	}
	query := s.db.Rebind(`
		UPDATE patch_proposals SET
			base_revision = ?, proposed_content = ?, diff = ?, style = ?, confidence = ?,
			status = ?, slack_channel_id = ?, slack_message_ts = ?, rejection_reason = ?,
			rejection_tags = ?, resolved_by = ?, resolved_at = ?, last_notified_at = ?,
			applied_revision = ?, pr_url = ?
		WHERE workspace_id = ? AND id = ?`)
	res, err := s.db.ExecContext(ctx, query,
		p.BaseRevision, p.ProposedContent, p.Diff, p.Style, p.Confidence,
		p.Status, p.SlackChannelID, p.SlackMessageTs, p.RejectionReason,
		tags, p.ResolvedBy, p.ResolvedAt, p.LastNotifiedAt,
		p.AppliedRevision, p.PRUrl, p.WorkspaceID, p.ID)
	if err != nil {
		return fmt.Errorf("update patch proposal: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) ListProposalsForDigest(ctx context.Context, workspaceID string, since time.Time) ([]*models.PatchProposal, error) {
	query := s.db.Rebind(`
		SELECT ` + proposalCols + ` FROM patch_proposals
		WHERE workspace_id = ? AND created_at >= ? AND status IN (?, ?)
		ORDER BY created_at ASC`)
	rows, err := s.db.QueryContext(ctx, query, workspaceID, since, models.ProposalPending, models.ProposalFailed)
	if err != nil {
		return nil, fmt.Errorf("list proposals for digest: %w", err)
	}
	defer rows.Close()

	var out []*models.PatchProposal
	for rows.Next() {
		p, err := s.scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Policy packs

func (s *sqlStore) SavePolicyPack(ctx context.Context, p *models.PolicyPackRecord) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	query := s.db.Rebind(`
		INSERT INTO policy_packs (workspace_id, id, name, scope_type, scope_value, yaml,
			version_hash, parent_id, pack_metadata_id, status, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		p.WorkspaceID, p.ID, p.Name, p.ScopeType, p.ScopeValue, p.YAML,
		p.VersionHash, p.ParentID, p.PackMetadataID, p.Status, p.PublishedAt, p.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("save policy pack: %w", err)
	}
	return nil
}

const packCols = `workspace_id, id, name, scope_type, scope_value, yaml, version_hash,
	parent_id, pack_metadata_id, status, published_at, created_at`

func (s *sqlStore) scanPack(row interface{ Scan(...interface{}) error }) (*models.PolicyPackRecord, error) {
	p := &models.PolicyPackRecord{}
	err := row.Scan(&p.WorkspaceID, &p.ID, &p.Name, &p.ScopeType, &p.ScopeValue, &p.YAML,
		&p.VersionHash, &p.ParentID, &p.PackMetadataID, &p.Status, &p.PublishedAt, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan policy pack: %w", err)
	}
	return p, nil
}

func (s *sqlStore) GetPolicyPack(ctx context.Context, workspaceID, id string) (*models.PolicyPackRecord, error) {
	query := s.db.Rebind(`SELECT ` + packCols + ` FROM policy_packs WHERE workspace_id = ? AND id = ?`)
	return s.scanPack(s.db.QueryRowContext(ctx, query, workspaceID, id))
}

func (s *sqlStore) ListPublishedPacks(ctx context.Context, workspaceID string) ([]*models.PolicyPackRecord, error) {
	query := s.db.Rebind(`
		SELECT ` + packCols + ` FROM policy_packs
		WHERE workspace_id = ? AND status = ?
		ORDER BY created_at ASC`)
	rows, err := s.db.QueryContext(ctx, query, workspaceID, models.PackPublished)
	if err != nil {
		return nil, fmt.Errorf("list published packs: %w", err)
	}
	defer rows.Close()

	var out []*models.PolicyPackRecord
	for rows.Next() {
		p, err := s.scanPack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Audit trail

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Rebind(query string) string
}

func appendAuditTx(ctx context.Context, e execer, rec *models.AuditRecord) error {
	metadata, err := marshalJSON(rec.Metadata)
	if err != nil {
		return err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	query := e.Rebind(`
		INSERT INTO audit_trail (workspace_id, drift_id, from_state, to_state, actor, ts, duration_ms, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = e.ExecContext(ctx, query,
		rec.WorkspaceID, rec.DriftID, rec.FromState, rec.ToState, rec.Actor,
		rec.Timestamp, rec.DurationMs, metadata)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (s *sqlStore) AppendAudit(ctx context.Context, rec *models.AuditRecord) error {
	return appendAuditTx(ctx, s.db, rec)
}

func (s *sqlStore) ListAudit(ctx context.Context, workspaceID, driftID string) ([]*models.AuditRecord, error) {
	query := s.db.Rebind(`
		SELECT id, workspace_id, drift_id, from_state, to_state, actor, ts, duration_ms, metadata
		FROM audit_trail WHERE workspace_id = ? AND drift_id = ?
		ORDER BY ts ASC, id ASC`)
	rows, err := s.db.QueryContext(ctx, query, workspaceID, driftID)
	if err != nil {
		return nil, fmt.Errorf("list audit trail: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditRecord
	for rows.Next() {
		rec := &models.AuditRecord{}
		var metadata []byte
		if err := rows.Scan(&rec.ID, &rec.WorkspaceID, &rec.DriftID, &rec.FromState,
			&rec.ToState, &rec.Actor, &rec.Timestamp, &rec.DurationMs, &metadata); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		if err := unmarshalJSON(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode audit metadata: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Suppression rules

func (s *sqlStore) SaveSuppression(ctx context.Context, r *models.SuppressionRule) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	query := s.db.Rebind(`
		INSERT INTO suppression_rules (workspace_id, id, fingerprint, level, reason,
			created_by, false_positives, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		r.WorkspaceID, r.ID, r.Fingerprint, r.Level, r.Reason,
		r.CreatedBy, r.FalsePositives, r.ExpiresAt, r.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("save suppression rule: %w", err)
	}
	return nil
}

const suppressionCols = `workspace_id, id, fingerprint, level, reason, created_by, false_positives, expires_at, created_at`

func (s *sqlStore) scanSuppression(row interface{ Scan(...interface{}) error }) (*models.SuppressionRule, error) {
	r := &models.SuppressionRule{}
	err := row.Scan(&r.WorkspaceID, &r.ID, &r.Fingerprint, &r.Level, &r.Reason,
		&r.CreatedBy, &r.FalsePositives, &r.ExpiresAt, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan suppression rule: %w", err)
	}
	return r, nil
}

func (s *sqlStore) ListSuppressions(ctx context.Context, workspaceID string) ([]*models.SuppressionRule, error) {
	query := s.db.Rebind(`SELECT ` + suppressionCols + ` FROM suppression_rules WHERE workspace_id = ? ORDER BY created_at ASC`)
	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list suppression rules: %w", err)
	}
	defer rows.Close()

	var out []*models.SuppressionRule
	for rows.Next() {
		r, err := s.scanSuppression(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqlStore) FindSuppression(ctx context.Context, workspaceID, fingerprint string) (*models.SuppressionRule, error) {
	query := s.db.Rebind(`
		SELECT ` + suppressionCols + ` FROM suppression_rules
		WHERE workspace_id = ? AND fingerprint = ?
		ORDER BY created_at DESC LIMIT 1`)
	return s.scanSuppression(s.db.QueryRowContext(ctx, query, workspaceID, fingerprint))
}

func (s *sqlStore) IncrementFalsePositives(ctx context.Context, workspaceID, ruleID string) (int, error) {
	query := s.db.Rebind(`
		UPDATE suppression_rules SET false_positives = false_positives + 1
		WHERE workspace_id = ? AND id = ?`)
	if _, err := s.db.ExecContext(ctx, query, workspaceID, ruleID); err != nil {
		return 0, fmt.Errorf("increment false positives: %w", err)
	}
	var count int
	get := s.db.Rebind(`SELECT false_positives FROM suppression_rules WHERE workspace_id = ? AND id = ?`)
	if err := s.db.QueryRowContext(ctx, get, workspaceID, ruleID).Scan(&count); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("read false positives: %w", err)
	}
	return count, nil
}

func (s *sqlStore) DeleteSuppression(ctx context.Context, workspaceID, ruleID string) error {
	query := s.db.Rebind(`DELETE FROM suppression_rules WHERE workspace_id = ? AND id = ?`)
	res, err := s.db.ExecContext(ctx, query, workspaceID, ruleID)
	if err != nil {
		return fmt.Errorf("delete suppression rule: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Idempotency keys

func (s *sqlStore) PutIdempotencyKey(ctx context.Context, workspaceID, key string) (bool, error) {
	query := s.db.Rebind(`INSERT INTO idempotency_keys (workspace_id, key, created_at) VALUES (?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, workspaceID, key, time.Now().UTC())
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("put idempotency key: %w", err)
	}
	return true, nil
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}
