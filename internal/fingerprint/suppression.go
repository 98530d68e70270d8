package fingerprint

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docdrift/docdrift/internal/models"
	"github.com/docdrift/docdrift/internal/storage"
)

// Match confidence per fingerprint level
const (
	StrictMatchConfidence = 0.95
	MediumMatchConfidence = 0.8
	BroadMatchConfidence  = 0.6
)

// Escalation thresholds: false positives recorded at a level before the
// suppression is promoted to the next coarser one.
const (
	strictEscalationAfter = 3
	mediumEscalationAfter = 5
)

// Match is a suppression hit against one of a candidate's fingerprints
type Match struct {
	Rule       *models.SuppressionRule
	Level      models.FingerprintLevel
	Confidence float64
}

// Suppressor checks candidates against learned suppression rules and records
// rejections back into them.
type Suppressor struct {
	store  storage.Store
	logger *slog.Logger
}

func NewSuppressor(store storage.Store) *Suppressor {
	return &Suppressor{
		store:  store,
		logger: slog.Default().With("component", "suppression"),
	}
}

// Check returns the finest-level match for the candidate's fingerprints, or
// nil when nothing matches. Expired rules never match.
func (s *Suppressor) Check(ctx context.Context, workspaceID string, fps models.Fingerprints) (*Match, error) {
	now := time.Now()
	levels := []struct {
		fp    string
		level models.FingerprintLevel
		conf  float64
	}{
		{fps.Strict, models.LevelStrict, StrictMatchConfidence},
		{fps.Medium, models.LevelMedium, MediumMatchConfidence},
		{fps.Broad, models.LevelBroad, BroadMatchConfidence},
	}

	for _, l := range levels {
		rule, err := s.store.FindSuppression(ctx, workspaceID, l.fp)
		if err != nil {
			if err == storage.ErrNotFound {
				continue
			}
			return nil, err
		}
		if rule.Expired(now) {
			continue
		}
		if rule.Level != l.level {
			// A rule learned at one level only matches that level's hash
			continue
		}
		return &Match{Rule: rule, Level: l.level, Confidence: l.conf}, nil
	}
	return nil, nil
}

// LearnRejection creates a strict-level suppression from a human rejection
func (s *Suppressor) LearnRejection(ctx context.Context, workspaceID string, fps models.Fingerprints, reason, createdBy string) (*models.SuppressionRule, error) {
	rule := &models.SuppressionRule{
		WorkspaceID: workspaceID,
		ID:          uuid.NewString(),
		Fingerprint: fps.Strict,
		Level:       models.LevelStrict,
		Reason:      reason,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.SaveSuppression(ctx, rule); err != nil {
		return nil, err
	}
	s.logger.Info("suppression learned",
		"workspace_id", workspaceID,
		"rule_id", rule.ID,
		"level", rule.Level,
	)
	return rule, nil
}

// RecordFalsePositive bumps the rule's counter and escalates to the next
// coarser level once the threshold for its level is reached: 3 at strict
// promotes to medium, 5 at medium promotes to broad.
func (s *Suppressor) RecordFalsePositive(ctx context.Context, workspaceID string, rule *models.SuppressionRule, fps models.Fingerprints) (*models.SuppressionRule, error) {
	count, err := s.store.IncrementFalsePositives(ctx, workspaceID, rule.ID)
	if err != nil {
		return nil, err
	}

	var nextLevel models.FingerprintLevel
	var nextFP string
	switch {
	case rule.Level == models.LevelStrict && count >= strictEscalationAfter:
		nextLevel, nextFP = models.LevelMedium, fps.Medium
	case rule.Level == models.LevelMedium && count >= mediumEscalationAfter:
		nextLevel, nextFP = models.LevelBroad, fps.Broad
	default:
		return nil, nil
	}

	escalated := &models.SuppressionRule{
		WorkspaceID: workspaceID,
		ID:          uuid.NewString(),
		Fingerprint: nextFP,
		Level:       nextLevel,
		Reason:      rule.Reason,
		CreatedBy:   rule.CreatedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.SaveSuppression(ctx, escalated); err != nil {
		return nil, err
	}
	s.logger.Info("suppression escalated",
		"workspace_id", workspaceID,
		"from_rule", rule.ID,
		"to_level", nextLevel,
		"false_positives", count,
	)
	return escalated, nil
}
