package storage

// SchemaPostgres is the DDL for the Postgres backend. Applied by
// `ddrift migrate`; statements are idempotent.
const SchemaPostgres = `
CREATE TABLE IF NOT EXISTS workspaces (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	high_confidence_threshold DOUBLE PRECISION NOT NULL DEFAULT 0,
	medium_confidence_threshold DOUBLE PRECISION NOT NULL DEFAULT 0,
	ownership_source_ranking JSONB,
	workflow_preferences JSONB,
	default_owner_ref TEXT NOT NULL DEFAULT '',
	digest_channel TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS signal_events (
	workspace_id TEXT NOT NULL,
	id TEXT NOT NULL,
	source_type TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	service TEXT NOT NULL DEFAULT '',
	repo TEXT NOT NULL DEFAULT '',
	severity TEXT NOT NULL DEFAULT '',
	extracted JSONB,
	raw_payload BYTEA,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (workspace_id, id)
);
CREATE INDEX IF NOT EXISTS idx_signal_events_service
	ON signal_events (workspace_id, service, occurred_at);

CREATE TABLE IF NOT EXISTS drift_candidates (
	workspace_id TEXT NOT NULL,
	id TEXT NOT NULL,
	signal_event_id TEXT NOT NULL,
	state TEXT NOT NULL,
	state_updated_at TIMESTAMPTZ NOT NULL,
	source_type TEXT NOT NULL,
	service TEXT NOT NULL DEFAULT '',
	repo TEXT NOT NULL DEFAULT '',
	drift_type TEXT NOT NULL DEFAULT '',
	classification_method TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	comparison_result JSONB,
	evidence_bundle_id TEXT NOT NULL DEFAULT '',
	doc_candidates JSONB,
	docs_resolution_status TEXT NOT NULL DEFAULT '',
	docs_resolution_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	owner_resolution JSONB,
	routing_decision JSONB,
	active_plan_id TEXT NOT NULL DEFAULT '',
	active_plan_version INTEGER NOT NULL DEFAULT 0,
	active_plan_hash TEXT NOT NULL DEFAULT '',
	correlated_signals JSONB,
	fingerprint_strict TEXT NOT NULL DEFAULT '',
	fingerprint_medium TEXT NOT NULL DEFAULT '',
	fingerprint_broad TEXT NOT NULL DEFAULT '',
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error_code TEXT NOT NULL DEFAULT '',
	last_error_message TEXT NOT NULL DEFAULT '',
	trace_id TEXT NOT NULL DEFAULT '',
	snooze_until TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (workspace_id, id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_drift_candidates_signal
	ON drift_candidates (workspace_id, signal_event_id);
CREATE INDEX IF NOT EXISTS idx_drift_candidates_state
	ON drift_candidates (workspace_id, state);
CREATE INDEX IF NOT EXISTS idx_drift_candidates_snooze
	ON drift_candidates (state, snooze_until);

CREATE TABLE IF NOT EXISTS evidence_bundles (
	workspace_id TEXT NOT NULL,
	bundle_id TEXT NOT NULL,
	drift_candidate_id TEXT NOT NULL,
	source_evidence JSONB,
	target_evidence JSONB,
	assessment JSONB,
	fingerprints JSONB,
	pack_hash TEXT NOT NULL DEFAULT '',
	schema_version INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (workspace_id, bundle_id)
);
CREATE INDEX IF NOT EXISTS idx_evidence_bundles_drift
	ON evidence_bundles (workspace_id, drift_candidate_id);

CREATE TABLE IF NOT EXISTS patch_proposals (
	workspace_id TEXT NOT NULL,
	id TEXT NOT NULL,
	drift_id TEXT NOT NULL,
	doc_ref JSONB,
	base_revision TEXT NOT NULL DEFAULT '',
	proposed_content TEXT NOT NULL DEFAULT '',
	diff TEXT NOT NULL DEFAULT '',
	style TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	slack_channel_id TEXT NOT NULL DEFAULT '',
	slack_message_ts TEXT NOT NULL DEFAULT '',
	rejection_reason TEXT NOT NULL DEFAULT '',
	rejection_tags JSONB,
	resolved_by TEXT NOT NULL DEFAULT '',
	resolved_at TIMESTAMPTZ,
	last_notified_at TIMESTAMPTZ,
	applied_revision TEXT NOT NULL DEFAULT '',
	pr_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (workspace_id, id)
);
CREATE INDEX IF NOT EXISTS idx_patch_proposals_drift
	ON patch_proposals (workspace_id, drift_id);

CREATE TABLE IF NOT EXISTS policy_packs (
	workspace_id TEXT NOT NULL,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	scope_type TEXT NOT NULL,
	scope_value TEXT NOT NULL DEFAULT '',
	yaml TEXT NOT NULL,
	version_hash TEXT NOT NULL,
	parent_id TEXT NOT NULL DEFAULT '',
	pack_metadata_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	published_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (workspace_id, id)
);

CREATE TABLE IF NOT EXISTS audit_trail (
	id BIGSERIAL PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	drift_id TEXT NOT NULL,
	from_state TEXT NOT NULL DEFAULT '',
	to_state TEXT NOT NULL DEFAULT '',
	actor TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	metadata JSONB
);
CREATE INDEX IF NOT EXISTS idx_audit_trail_drift
	ON audit_trail (workspace_id, drift_id, ts);

CREATE TABLE IF NOT EXISTS suppression_rules (
	workspace_id TEXT NOT NULL,
	id TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	level TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	false_positives INTEGER NOT NULL DEFAULT 0,
	expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (workspace_id, id)
);
CREATE INDEX IF NOT EXISTS idx_suppression_rules_fp
	ON suppression_rules (workspace_id, fingerprint);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	workspace_id TEXT NOT NULL,
	key TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (workspace_id, key)
);
`

// SchemaSQLite is the DDL for the local single-tenant backend. JSON columns
// are TEXT; times are stored as RFC3339 by the driver.
const SchemaSQLite = `
CREATE TABLE IF NOT EXISTS workspaces (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	high_confidence_threshold REAL NOT NULL DEFAULT 0,
	medium_confidence_threshold REAL NOT NULL DEFAULT 0,
	ownership_source_ranking TEXT,
	workflow_preferences TEXT,
	default_owner_ref TEXT NOT NULL DEFAULT '',
	digest_channel TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS signal_events (
	workspace_id TEXT NOT NULL,
	id TEXT NOT NULL,
	source_type TEXT NOT NULL,
	occurred_at TIMESTAMP NOT NULL,
	service TEXT NOT NULL DEFAULT '',
	repo TEXT NOT NULL DEFAULT '',
	severity TEXT NOT NULL DEFAULT '',
	extracted TEXT,
	raw_payload BLOB,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (workspace_id, id)
);
CREATE INDEX IF NOT EXISTS idx_signal_events_service
	ON signal_events (workspace_id, service, occurred_at);

CREATE TABLE IF NOT EXISTS drift_candidates (
	workspace_id TEXT NOT NULL,
	id TEXT NOT NULL,
	signal_event_id TEXT NOT NULL,
	state TEXT NOT NULL,
	state_updated_at TIMESTAMP NOT NULL,
	source_type TEXT NOT NULL,
	service TEXT NOT NULL DEFAULT '',
	repo TEXT NOT NULL DEFAULT '',
	drift_type TEXT NOT NULL DEFAULT '',
	classification_method TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	comparison_result TEXT,
	evidence_bundle_id TEXT NOT NULL DEFAULT '',
	doc_candidates TEXT,
	docs_resolution_status TEXT NOT NULL DEFAULT '',
	docs_resolution_confidence REAL NOT NULL DEFAULT 0,
	owner_resolution TEXT,
	routing_decision TEXT,
	active_plan_id TEXT NOT NULL DEFAULT '',
	active_plan_version INTEGER NOT NULL DEFAULT 0,
	active_plan_hash TEXT NOT NULL DEFAULT '',
	correlated_signals TEXT,
	fingerprint_strict TEXT NOT NULL DEFAULT '',
	fingerprint_medium TEXT NOT NULL DEFAULT '',
	fingerprint_broad TEXT NOT NULL DEFAULT '',
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_error_code TEXT NOT NULL DEFAULT '',
	last_error_message TEXT NOT NULL DEFAULT '',
	trace_id TEXT NOT NULL DEFAULT '',
	snooze_until TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (workspace_id, id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_drift_candidates_signal
	ON drift_candidates (workspace_id, signal_event_id);
CREATE INDEX IF NOT EXISTS idx_drift_candidates_state
	ON drift_candidates (workspace_id, state);
CREATE INDEX IF NOT EXISTS idx_drift_candidates_snooze
	ON drift_candidates (state, snooze_until);

CREATE TABLE IF NOT EXISTS evidence_bundles (
	workspace_id TEXT NOT NULL,
	bundle_id TEXT NOT NULL,
	drift_candidate_id TEXT NOT NULL,
	source_evidence TEXT,
	target_evidence TEXT,
	assessment TEXT,
	fingerprints TEXT,
	pack_hash TEXT NOT NULL DEFAULT '',
	schema_version INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (workspace_id, bundle_id)
);
CREATE INDEX IF NOT EXISTS idx_evidence_bundles_drift
	ON evidence_bundles (workspace_id, drift_candidate_id);

CREATE TABLE IF NOT EXISTS patch_proposals (
	workspace_id TEXT NOT NULL,
	id TEXT NOT NULL,
	drift_id TEXT NOT NULL,
	doc_ref TEXT,
	base_revision TEXT NOT NULL DEFAULT '',
	proposed_content TEXT NOT NULL DEFAULT '',
	diff TEXT NOT NULL DEFAULT '',
	style TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	slack_channel_id TEXT NOT NULL DEFAULT '',
	slack_message_ts TEXT NOT NULL DEFAULT '',
	rejection_reason TEXT NOT NULL DEFAULT '',
	rejection_tags TEXT,
	resolved_by TEXT NOT NULL DEFAULT '',
	resolved_at TIMESTAMP,
	last_notified_at TIMESTAMP,
	applied_revision TEXT NOT NULL DEFAULT '',
	pr_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (workspace_id, id)
);
CREATE INDEX IF NOT EXISTS idx_patch_proposals_drift
	ON patch_proposals (workspace_id, drift_id);

CREATE TABLE IF NOT EXISTS policy_packs (
	workspace_id TEXT NOT NULL,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	scope_type TEXT NOT NULL,
	scope_value TEXT NOT NULL DEFAULT '',
	yaml TEXT NOT NULL,
	version_hash TEXT NOT NULL,
	parent_id TEXT NOT NULL DEFAULT '',
	pack_metadata_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	published_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (workspace_id, id)
);

CREATE TABLE IF NOT EXISTS audit_trail (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	workspace_id TEXT NOT NULL,
	drift_id TEXT NOT NULL,
	from_state TEXT NOT NULL DEFAULT '',
	to_state TEXT NOT NULL DEFAULT '',
	actor TEXT NOT NULL,
	ts TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_trail_drift
	ON audit_trail (workspace_id, drift_id, ts);

CREATE TABLE IF NOT EXISTS suppression_rules (
	workspace_id TEXT NOT NULL,
	id TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	level TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	false_positives INTEGER NOT NULL DEFAULT 0,
	expires_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (workspace_id, id)
);
CREATE INDEX IF NOT EXISTS idx_suppression_rules_fp
	ON suppression_rules (workspace_id, fingerprint);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	workspace_id TEXT NOT NULL,
	key TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (workspace_id, key)
);
`
