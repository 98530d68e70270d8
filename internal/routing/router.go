package routing

import (
	"context"
	"log/slog"
	"strings"

	"github.com/docdrift/docdrift/internal/models"
)

// DefaultHourlyCap is the per-workspace notification ceiling
const DefaultHourlyCap = 10

// digestDelayMinutes spaces out P2 items so the digest can batch them
const digestDelayMinutes = 60

// criticalDomains always escalate regardless of confidence band
var criticalDomains = []string{"deployment", "deploy", "rollback", "auth"}

// Router maps a classified candidate to a notification decision
type Router struct {
	limiter RateLimiter
	logger  *slog.Logger
}

func NewRouter(limiter RateLimiter) *Router {
	return &Router{
		limiter: limiter,
		logger:  slog.Default().With("component", "routing"),
	}
}

// Route decides priority, destination and rate limiting for one candidate.
// bundle may be nil when evidence was skipped.
func (r *Router) Route(ctx context.Context, ws *models.Workspace, c *models.DriftCandidate, bundle *models.EvidenceBundle) (*models.RoutingDecision, error) {
	high, medium := ws.Thresholds()

	decision := &models.RoutingDecision{Channel: teamChannel(ws, c)}

	switch {
	case c.Confidence >= high:
		decision.Priority = models.PriorityP0
		if c.OwnerResolution != nil && c.OwnerResolution.OwnerSlackID != "" {
			decision.DirectTo = c.OwnerResolution.OwnerSlackID
			decision.Reason = "high confidence, owner resolved"
		} else {
			decision.Reason = "high confidence, no owner Slack ID, team channel fallback"
		}
	case c.Confidence >= medium:
		decision.Priority = models.PriorityP1
		decision.Reason = "medium confidence"
	default:
		decision.Priority = models.PriorityP2
		decision.DigestOnly = true
		decision.DelayMinutes = digestDelayMinutes
		decision.Reason = "below medium confidence, digest only"
	}

	if escalate(c, bundle) {
		decision.Escalated = true
		decision.DigestOnly = false
		decision.DelayMinutes = 0
		if decision.Priority == models.PriorityP2 {
			decision.Priority = models.PriorityP1
		}
		decision.Reason = "critical domain escalation"
	}

	if !decision.DigestOnly {
		allowed, err := r.limiter.Allow(ctx, ws.ID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			decision.RateLimited = true
			decision.DigestOnly = true
			decision.Reason = "hourly notification cap reached, deferred to digest"
		}
	}

	r.logger.Info("candidate routed",
		"workspace_id", ws.ID,
		"drift_id", c.ID,
		"priority", decision.Priority,
		"digest_only", decision.DigestOnly,
		"escalated", decision.Escalated,
		"rate_limited", decision.RateLimited,
	)
	return decision, nil
}

func teamChannel(ws *models.Workspace, c *models.DriftCandidate) string {
	if c.OwnerResolution != nil && c.OwnerResolution.TeamChannel != "" {
		return c.OwnerResolution.TeamChannel
	}
	return ws.DigestChannel
}

// escalate reports whether the drift touches a critical operational domain
// or the evidence scored high impact.
func escalate(c *models.DriftCandidate, bundle *models.EvidenceBundle) bool {
	if bundle != nil && bundle.Assessment != nil {
		band := bundle.Assessment.ImpactBand
		if band == "high" || band == "critical" {
			return true
		}
		for _, surface := range bundle.Assessment.BlastRadius {
			if matchesCriticalDomain(surface) {
				return true
			}
		}
	}
	return matchesCriticalDomain(c.Service)
}

func matchesCriticalDomain(s string) bool {
	lower := strings.ToLower(s)
	for _, d := range criticalDomains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}
