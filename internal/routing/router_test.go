package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdrift/docdrift/internal/models"
)

func testWorkspace() *models.Workspace {
	return &models.Workspace{
		ID:            "ws1",
		DigestChannel: "#docs-drift",
	}
}

func TestRouteConfidenceBands(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		owner      *models.OwnerResolution
		priority   models.Priority
		digestOnly bool
		directTo   string
	}{
		{"high with owner DMs", 0.85, &models.OwnerResolution{OwnerSlackID: "U123", TeamChannel: "#payments"}, models.PriorityP0, false, "U123"},
		{"high without slack id falls to channel", 0.75, &models.OwnerResolution{OwnerRef: "team-payments"}, models.PriorityP0, false, ""},
		{"exactly high threshold", 0.70, nil, models.PriorityP0, false, ""},
		{"medium", 0.60, nil, models.PriorityP1, false, ""},
		{"exactly medium threshold", 0.55, nil, models.PriorityP1, false, ""},
		{"low goes digest only", 0.40, nil, models.PriorityP2, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(NewMemoryRateLimiter(DefaultHourlyCap))
			c := &models.DriftCandidate{
				ID:              "d1",
				Service:         "billing",
				Confidence:      tt.confidence,
				OwnerResolution: tt.owner,
			}
			decision, err := r.Route(context.Background(), testWorkspace(), c, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.priority, decision.Priority)
			assert.Equal(t, tt.digestOnly, decision.DigestOnly)
			assert.Equal(t, tt.directTo, decision.DirectTo)
		})
	}
}

func TestRouteDigestDelay(t *testing.T) {
	r := NewRouter(NewMemoryRateLimiter(DefaultHourlyCap))
	decision, err := r.Route(context.Background(), testWorkspace(),
		&models.DriftCandidate{ID: "d1", Service: "billing", Confidence: 0.3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 60, decision.DelayMinutes)
}

func TestRouteCriticalDomainEscalates(t *testing.T) {
	r := NewRouter(NewMemoryRateLimiter(DefaultHourlyCap))
	decision, err := r.Route(context.Background(), testWorkspace(),
		&models.DriftCandidate{ID: "d1", Service: "deploy-tooling", Confidence: 0.3}, nil)
	require.NoError(t, err)
	assert.True(t, decision.Escalated)
	assert.False(t, decision.DigestOnly)
	assert.Equal(t, models.PriorityP1, decision.Priority)
	assert.Equal(t, 0, decision.DelayMinutes)
}

func TestRouteHighImpactBandEscalates(t *testing.T) {
	r := NewRouter(NewMemoryRateLimiter(DefaultHourlyCap))
	bundle := &models.EvidenceBundle{
		Assessment: &models.Assessment{ImpactBand: "high"},
	}
	decision, err := r.Route(context.Background(), testWorkspace(),
		&models.DriftCandidate{ID: "d1", Service: "billing", Confidence: 0.3}, bundle)
	require.NoError(t, err)
	assert.True(t, decision.Escalated)
}

func TestRouteBlastRadiusEscalates(t *testing.T) {
	r := NewRouter(NewMemoryRateLimiter(DefaultHourlyCap))
	bundle := &models.EvidenceBundle{
		Assessment: &models.Assessment{ImpactBand: "low", BlastRadius: []string{"auth-service"}},
	}
	decision, err := r.Route(context.Background(), testWorkspace(),
		&models.DriftCandidate{ID: "d1", Service: "billing", Confidence: 0.6}, bundle)
	require.NoError(t, err)
	assert.True(t, decision.Escalated)
}

func TestRouteRateCapDefersToDigest(t *testing.T) {
	r := NewRouter(NewMemoryRateLimiter(2))
	ws := testWorkspace()

	for i := 0; i < 2; i++ {
		decision, err := r.Route(context.Background(), ws,
			&models.DriftCandidate{ID: "d1", Service: "billing", Confidence: 0.8}, nil)
		require.NoError(t, err)
		assert.False(t, decision.RateLimited)
	}

	decision, err := r.Route(context.Background(), ws,
		&models.DriftCandidate{ID: "d3", Service: "billing", Confidence: 0.8}, nil)
	require.NoError(t, err)
	assert.True(t, decision.RateLimited)
	assert.True(t, decision.DigestOnly)
}

func TestRouteDigestOnlyDoesNotConsumeCap(t *testing.T) {
	limiter := NewMemoryRateLimiter(1)
	r := NewRouter(limiter)
	ws := testWorkspace()

	// Low-confidence digest items bypass the limiter entirely
	for i := 0; i < 5; i++ {
		decision, err := r.Route(context.Background(), ws,
			&models.DriftCandidate{ID: "d", Service: "billing", Confidence: 0.2}, nil)
		require.NoError(t, err)
		assert.False(t, decision.RateLimited)
	}

	decision, err := r.Route(context.Background(), ws,
		&models.DriftCandidate{ID: "d", Service: "billing", Confidence: 0.9}, nil)
	require.NoError(t, err)
	assert.False(t, decision.RateLimited)
}

func TestTeamChannelFallback(t *testing.T) {
	ws := testWorkspace()
	withTeam := &models.DriftCandidate{OwnerResolution: &models.OwnerResolution{TeamChannel: "#payments"}}
	assert.Equal(t, "#payments", teamChannel(ws, withTeam))
	assert.Equal(t, "#docs-drift", teamChannel(ws, &models.DriftCandidate{}))
}

func TestMemoryRateLimiterIsolatesWorkspaces(t *testing.T) {
	l := NewMemoryRateLimiter(1)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "ws1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(ctx, "ws1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "ws2")
	require.NoError(t, err)
	assert.True(t, ok)
}
