package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/docdrift/docdrift/internal/models"
)

// MemoryStore is an in-memory Store used by tests and the dry-run CLI paths.
// It honors the same CAS and uniqueness semantics as the SQL backends.
type MemoryStore struct {
	mu           sync.Mutex
	workspaces   map[string]*models.Workspace
	signals      map[string]*models.SignalEvent
	candidates   map[string]*models.DriftCandidate
	bundles      map[string]*models.EvidenceBundle
	proposals    map[string]*models.PatchProposal
	packs        map[string]*models.PolicyPackRecord
	audit        []*models.AuditRecord
	suppressions map[string]*models.SuppressionRule
	idempotency  map[string]struct{}
	nextAuditID  int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workspaces:   make(map[string]*models.Workspace),
		signals:      make(map[string]*models.SignalEvent),
		candidates:   make(map[string]*models.DriftCandidate),
		bundles:      make(map[string]*models.EvidenceBundle),
		proposals:    make(map[string]*models.PatchProposal),
		packs:        make(map[string]*models.PolicyPackRecord),
		suppressions: make(map[string]*models.SuppressionRule),
		idempotency:  make(map[string]struct{}),
	}
}

func key2(a, b string) string { return a + "\x00" + b }

func (s *MemoryStore) SaveWorkspace(ctx context.Context, ws *models.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ws
	s.workspaces[ws.ID] = &cp
	return nil
}

func (s *MemoryStore) GetWorkspace(ctx context.Context, workspaceID string) (*models.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[workspaceID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ws
	return &cp, nil
}

func (s *MemoryStore) CreateSignalEvent(ctx context.Context, ev *models.SignalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key2(ev.WorkspaceID, ev.ID)
	if _, ok := s.signals[k]; ok {
		return ErrConflict
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	cp := *ev
	s.signals[k] = &cp
	return nil
}

func (s *MemoryStore) GetSignalEvent(ctx context.Context, workspaceID, id string) (*models.SignalEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.signals[key2(workspaceID, id)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (s *MemoryStore) ListSignalEventsByService(ctx context.Context, workspaceID, service string, since time.Time) ([]*models.SignalEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SignalEvent
	for _, ev := range s.signals {
		if ev.WorkspaceID == workspaceID && ev.Service == service && !ev.OccurredAt.Before(since) {
			cp := *ev
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out, nil
}

func (s *MemoryStore) CreateDriftCandidate(ctx context.Context, c *models.DriftCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key2(c.WorkspaceID, c.ID)
	if _, ok := s.candidates[k]; ok {
		return ErrConflict
	}
	for _, existing := range s.candidates {
		if existing.WorkspaceID == c.WorkspaceID && existing.SignalEventID == c.SignalEventID {
			return ErrConflict
		}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.StateUpdatedAt.IsZero() {
		c.StateUpdatedAt = c.CreatedAt
	}
	cp := *c
	s.candidates[k] = &cp
	return nil
}

func (s *MemoryStore) GetDriftCandidate(ctx context.Context, workspaceID, id string) (*models.DriftCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[key2(workspaceID, id)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) GetCandidateBySignal(ctx context.Context, workspaceID, signalEventID string) (*models.DriftCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.candidates {
		if c.WorkspaceID == workspaceID && c.SignalEventID == signalEventID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) AdvanceCandidate(ctx context.Context, c *models.DriftCandidate, prevState models.State, prevUpdatedAt time.Time, rec *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key2(c.WorkspaceID, c.ID)
	existing, ok := s.candidates[k]
	if !ok {
		return ErrNotFound
	}
	if existing.State != prevState || !existing.StateUpdatedAt.Equal(prevUpdatedAt) {
		return ErrConflict
	}
	cp := *c
	s.candidates[k] = &cp
	if rec != nil {
		s.nextAuditID++
		rc := *rec
		rc.ID = s.nextAuditID
		if rc.Timestamp.IsZero() {
			rc.Timestamp = time.Now().UTC()
		}
		s.audit = append(s.audit, &rc)
	}
	return nil
}

func (s *MemoryStore) ListCandidatesByState(ctx context.Context, workspaceID string, state models.State, limit int) ([]*models.DriftCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DriftCandidate
	for _, c := range s.candidates {
		if c.WorkspaceID == workspaceID && c.State == state {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StateUpdatedAt.Before(out[j].StateUpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListExpiredSnoozes(ctx context.Context, now time.Time, limit int) ([]*models.DriftCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DriftCandidate
	for _, c := range s.candidates {
		if c.State == models.StateSnoozed && c.SnoozeUntil != nil && !c.SnoozeUntil.After(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnoozeUntil.Before(*out[j].SnoozeUntil) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListOpenCandidatesByService(ctx context.Context, workspaceID, service string, since time.Time) ([]*models.DriftCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DriftCandidate
	for _, c := range s.candidates {
		if c.WorkspaceID == workspaceID && c.Service == service &&
			!c.CreatedAt.Before(since) && !models.IsTerminal(c.State) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SaveEvidenceBundle(ctx context.Context, b *models.EvidenceBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key2(b.WorkspaceID, b.BundleID)
	if _, ok := s.bundles[k]; ok {
		return ErrConflict
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	cp := *b
	s.bundles[k] = &cp
	return nil
}

func (s *MemoryStore) GetEvidenceBundle(ctx context.Context, workspaceID, bundleID string) (*models.EvidenceBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bundles[key2(workspaceID, bundleID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) LatestBundleSchemaVersion(ctx context.Context, workspaceID, driftID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, b := range s.bundles {
		if b.WorkspaceID == workspaceID && b.DriftCandidateID == driftID && b.SchemaVersion > max {
			max = b.SchemaVersion
		}
	}
	return max, nil
}

func (s *MemoryStore) SaveProposal(ctx context.Context, p *models.PatchProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key2(p.WorkspaceID, p.ID)
	if _, ok := s.proposals[k]; ok {
		return ErrConflict
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	s.proposals[k] = &cp
	return nil
}

func (s *MemoryStore) GetProposal(ctx context.Context, workspaceID, id string) (*models.PatchProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[key2(workspaceID, id)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetProposalByDrift(ctx context.Context, workspaceID, driftID string) (*models.PatchProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.PatchProposal
	for _, p := range s.proposals {
		if p.WorkspaceID == workspaceID && p.DriftID == driftID {
			if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
				latest = p
			}
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) UpdateProposal(ctx context.Context, p *models.PatchProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key2(p.WorkspaceID, p.ID)
	if _, ok := s.proposals[k]; !ok {
		return ErrNotFound
	}
	cp := *p
	s.proposals[k] = &cp
	return nil
}

func (s *MemoryStore) ListProposalsForDigest(ctx context.Context, workspaceID string, since time.Time) ([]*models.PatchProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PatchProposal
	for _, p := range s.proposals {
		if p.WorkspaceID == workspaceID && !p.CreatedAt.Before(since) &&
			(p.Status == models.ProposalPending || p.Status == models.ProposalFailed) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SavePolicyPack(ctx context.Context, p *models.PolicyPackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key2(p.WorkspaceID, p.ID)
	if _, ok := s.packs[k]; ok {
		return ErrConflict
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	cp := *p
	s.packs[k] = &cp
	return nil
}

func (s *MemoryStore) GetPolicyPack(ctx context.Context, workspaceID, id string) (*models.PolicyPackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packs[key2(workspaceID, id)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListPublishedPacks(ctx context.Context, workspaceID string) ([]*models.PolicyPackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PolicyPackRecord
	for _, p := range s.packs {
		if p.WorkspaceID == workspaceID && p.Status == models.PackPublished {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AppendAudit(ctx context.Context, rec *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAuditID++
	cp := *rec
	cp.ID = s.nextAuditID
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now().UTC()
	}
	s.audit = append(s.audit, &cp)
	return nil
}

func (s *MemoryStore) ListAudit(ctx context.Context, workspaceID, driftID string) ([]*models.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AuditRecord
	for _, rec := range s.audit {
		if rec.WorkspaceID == workspaceID && rec.DriftID == driftID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveSuppression(ctx context.Context, r *models.SuppressionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key2(r.WorkspaceID, r.ID)
	if _, ok := s.suppressions[k]; ok {
		return ErrConflict
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	cp := *r
	s.suppressions[k] = &cp
	return nil
}

func (s *MemoryStore) ListSuppressions(ctx context.Context, workspaceID string) ([]*models.SuppressionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SuppressionRule
	for _, r := range s.suppressions {
		if r.WorkspaceID == workspaceID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) FindSuppression(ctx context.Context, workspaceID, fingerprint string) (*models.SuppressionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.SuppressionRule
	for _, r := range s.suppressions {
		if r.WorkspaceID == workspaceID && r.Fingerprint == fingerprint {
			if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
				latest = r
			}
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) IncrementFalsePositives(ctx context.Context, workspaceID, ruleID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.suppressions[key2(workspaceID, ruleID)]
	if !ok {
		return 0, ErrNotFound
	}
	r.FalsePositives++
	return r.FalsePositives, nil
}

func (s *MemoryStore) DeleteSuppression(ctx context.Context, workspaceID, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key2(workspaceID, ruleID)
	if _, ok := s.suppressions[k]; !ok {
		return ErrNotFound
	}
	delete(s.suppressions, k)
	return nil
}

func (s *MemoryStore) PutIdempotencyKey(ctx context.Context, workspaceID, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key2(workspaceID, key)
	if _, ok := s.idempotency[k]; ok {
		return false, nil
	}
	s.idempotency[k] = struct{}{}
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }
