package notify

import (
	"context"
	"log/slog"

	"github.com/docdrift/docdrift/internal/models"
)

// NoopSink is used when no Slack token is configured: candidates still reach
// AWAITING_HUMAN and are reviewed through the CLI instead.
type NoopSink struct {
	logger *slog.Logger
}

func NewNoopSink() *NoopSink {
	return &NoopSink{logger: slog.Default().With("component", "notify")}
}

func (s *NoopSink) PostProposal(ctx context.Context, channel, directTo string, c *models.DriftCandidate, p *models.PatchProposal, docURL string) (string, string, error) {
	s.logger.Info("notification skipped, no sink configured",
		"drift_id", c.ID, "proposal_id", p.ID)
	return "", "", nil
}

func (s *NoopSink) UpdateStatus(ctx context.Context, channelID, messageTs string, c *models.DriftCandidate, status string) error {
	return nil
}

func (s *NoopSink) PostDigest(ctx context.Context, channel string, d *Digest) error {
	s.logger.Info("digest skipped, no sink configured", "pending", len(d.Pending))
	return nil
}
