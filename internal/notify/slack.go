package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/models"
)

// Sink delivers review cards and status updates to humans
type Sink interface {
	// PostProposal posts the review card; returns (channelID, messageTs)
	PostProposal(ctx context.Context, channel, directTo string, c *models.DriftCandidate, p *models.PatchProposal, docURL string) (string, string, error)
	// UpdateStatus rewrites the card after a terminal decision
	UpdateStatus(ctx context.Context, channelID, messageTs string, c *models.DriftCandidate, status string) error
	// PostDigest posts the weekly digest to the workspace digest channel
	PostDigest(ctx context.Context, channel string, d *Digest) error
}

// SlackSink posts via the Slack Web API
type SlackSink struct {
	client *slack.Client
	logger *slog.Logger
}

func NewSlackSink(botToken string) *SlackSink {
	return &SlackSink{
		client: slack.New(botToken),
		logger: slog.Default().With("component", "notify"),
	}
}

func (s *SlackSink) PostProposal(ctx context.Context, channel, directTo string, c *models.DriftCandidate, p *models.PatchProposal, docURL string) (string, string, error) {
	target := channel
	if directTo != "" {
		// DMs open a conversation with the user first
		ch, _, _, err := s.client.OpenConversationContext(ctx, &slack.OpenConversationParameters{
			Users: []string{directTo},
		})
		if err != nil {
			s.logger.Warn("could not open DM, falling back to channel", "user", directTo, "error", err)
		} else {
			target = ch.ID
		}
	}

	blocks := proposalBlocks(c, p, docURL)
	channelID, ts, err := s.client.PostMessageContext(ctx, target,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(fmt.Sprintf("Documentation drift detected: %s", c.Service), false),
	)
	if err != nil {
		return "", "", errors.TransientErr("slack post failed", err)
	}

	s.logger.Info("proposal posted",
		"drift_id", c.ID,
		"channel", channelID,
		"ts", ts,
	)
	return channelID, ts, nil
}

func (s *SlackSink) UpdateStatus(ctx context.Context, channelID, messageTs string, c *models.DriftCandidate, status string) error {
	var text string
	switch status {
	case "applied":
		text = fmt.Sprintf("✅ Patch applied for *%s* drift on `%s`", c.DriftType, c.Service)
	case "rejected":
		text = fmt.Sprintf("Patch rejected for *%s* drift on `%s`", c.DriftType, c.Service)
	case "snoozed":
		text = fmt.Sprintf("Snoozed: *%s* drift on `%s`", c.DriftType, c.Service)
	case "failed":
		text = fmt.Sprintf("❌ Writeback failed for *%s* drift on `%s` (%s)", c.DriftType, c.Service, c.LastErrorCode)
	default:
		text = fmt.Sprintf("%s: *%s* drift on `%s`", status, c.DriftType, c.Service)
	}

	_, _, _, err := s.client.UpdateMessageContext(ctx, channelID, messageTs,
		slack.MsgOptionBlocks(slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)),
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return errors.TransientErr("slack update failed", err)
	}
	return nil
}

func proposalBlocks(c *models.DriftCandidate, p *models.PatchProposal, docURL string) []slack.Block {
	header := fmt.Sprintf(":page_facing_up: *%s drift* detected on `%s` (confidence %.0f%%)",
		c.DriftType, c.Service, c.Confidence*100)

	var detail strings.Builder
	if c.ComparisonResult != nil {
		for i, conflict := range c.ComparisonResult.Conflicts {
			if i >= 3 {
				detail.WriteString(fmt.Sprintf("_...and %d more_\n", len(c.ComparisonResult.Conflicts)-3))
				break
			}
			detail.WriteString("• " + conflict + "\n")
		}
	}
	if docURL != "" {
		detail.WriteString(fmt.Sprintf("\n<%s|View document>", docURL))
	}

	diff := p.Diff
	if len(diff) > 2800 {
		diff = diff[:2800] + "\n..."
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, header, false, false), nil, nil),
	}
	if detail.Len() > 0 {
		blocks = append(blocks,
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, detail.String(), false, false), nil, nil))
	}
	if diff != "" {
		blocks = append(blocks,
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, "```"+diff+"```", false, false), nil, nil))
	}
	blocks = append(blocks, slack.NewActionBlock("drift_review",
		slack.NewButtonBlockElement("approve", p.ID,
			slack.NewTextBlockObject(slack.PlainTextType, "Approve", false, false)).WithStyle(slack.StylePrimary),
		slack.NewButtonBlockElement("reject", p.ID,
			slack.NewTextBlockObject(slack.PlainTextType, "Reject", false, false)).WithStyle(slack.StyleDanger),
		slack.NewButtonBlockElement("snooze", p.ID,
			slack.NewTextBlockObject(slack.PlainTextType, "Snooze 7d", false, false)),
	))
	return blocks
}
