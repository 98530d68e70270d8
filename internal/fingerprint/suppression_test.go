package fingerprint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdrift/docdrift/internal/models"
	"github.com/docdrift/docdrift/internal/storage"
)

func testFingerprints() models.Fingerprints {
	return Compute(models.SourceGitHubPR, "confluence:SPACE/123", "confluence:payments",
		models.DriftInstruction, &models.BaselineArtifacts{Commands: []string{"make deploy"}})
}

func TestSuppressorNoRules(t *testing.T) {
	s := NewSuppressor(storage.NewMemoryStore())
	match, err := s.Check(context.Background(), "ws1", testFingerprints())
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestLearnRejectionThenMatch(t *testing.T) {
	ctx := context.Background()
	s := NewSuppressor(storage.NewMemoryStore())
	fps := testFingerprints()

	rule, err := s.LearnRejection(ctx, "ws1", fps, "doc intentionally stale", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.LevelStrict, rule.Level)
	assert.Equal(t, fps.Strict, rule.Fingerprint)

	match, err := s.Check(ctx, "ws1", fps)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, models.LevelStrict, match.Level)
	assert.Equal(t, StrictMatchConfidence, match.Confidence)
}

func TestCheckScopedToWorkspace(t *testing.T) {
	ctx := context.Background()
	s := NewSuppressor(storage.NewMemoryStore())
	fps := testFingerprints()

	_, err := s.LearnRejection(ctx, "ws1", fps, "noisy", "alice")
	require.NoError(t, err)

	match, err := s.Check(ctx, "ws2", fps)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestExpiredRuleNeverMatches(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	s := NewSuppressor(store)
	fps := testFingerprints()

	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.SaveSuppression(ctx, &models.SuppressionRule{
		WorkspaceID: "ws1",
		ID:          "rule-1",
		Fingerprint: fps.Strict,
		Level:       models.LevelStrict,
		ExpiresAt:   &past,
	}))

	match, err := s.Check(ctx, "ws1", fps)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestEscalationStrictToMedium(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	s := NewSuppressor(store)
	fps := testFingerprints()

	rule, err := s.LearnRejection(ctx, "ws1", fps, "noisy", "alice")
	require.NoError(t, err)

	// Two false positives stay below the threshold
	for i := 0; i < 2; i++ {
		escalated, err := s.RecordFalsePositive(ctx, "ws1", rule, fps)
		require.NoError(t, err)
		assert.Nil(t, escalated)
	}

	// Third promotes to a medium-level rule
	escalated, err := s.RecordFalsePositive(ctx, "ws1", rule, fps)
	require.NoError(t, err)
	require.NotNil(t, escalated)
	assert.Equal(t, models.LevelMedium, escalated.Level)
	assert.Equal(t, fps.Medium, escalated.Fingerprint)

	match, err := s.Check(ctx, "ws1", fps)
	require.NoError(t, err)
	require.NotNil(t, match)
	// Strict rule still present; the finest level wins
	assert.Equal(t, models.LevelStrict, match.Level)
}

func TestEscalationMediumToBroad(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	s := NewSuppressor(store)
	fps := testFingerprints()

	medium := &models.SuppressionRule{
		WorkspaceID: "ws1",
		ID:          "rule-medium",
		Fingerprint: fps.Medium,
		Level:       models.LevelMedium,
	}
	require.NoError(t, store.SaveSuppression(ctx, medium))

	var escalated *models.SuppressionRule
	var err error
	for i := 0; i < 5; i++ {
		escalated, err = s.RecordFalsePositive(ctx, "ws1", medium, fps)
		require.NoError(t, err)
	}
	require.NotNil(t, escalated)
	assert.Equal(t, models.LevelBroad, escalated.Level)
	assert.Equal(t, fps.Broad, escalated.Fingerprint)

	match, err := s.Check(ctx, "ws1", fps)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, models.LevelMedium, match.Level)
	assert.Equal(t, MediumMatchConfidence, match.Confidence)
}
