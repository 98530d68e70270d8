package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/models"
	"github.com/docdrift/docdrift/internal/storage"
)

// Digest is the weekly rollup of proposals a workspace has pending or
// resolved, including the P2 items that never got their own message.
type Digest struct {
	WorkspaceID string
	Since       time.Time
	Pending     []*models.PatchProposal
	Applied     []*models.PatchProposal
	Rejected    []*models.PatchProposal
}

// BuildDigest assembles the digest from the proposal history
func BuildDigest(ctx context.Context, store storage.Store, workspaceID string, since time.Time) (*Digest, error) {
	proposals, err := store.ListProposalsForDigest(ctx, workspaceID, since)
	if err != nil {
		return nil, err
	}

	d := &Digest{WorkspaceID: workspaceID, Since: since}
	for _, p := range proposals {
		switch p.Status {
		case models.ProposalPending, models.ProposalSnoozed:
			d.Pending = append(d.Pending, p)
		case models.ProposalApplied:
			d.Applied = append(d.Applied, p)
		case models.ProposalRejected:
			d.Rejected = append(d.Rejected, p)
		}
	}
	return d, nil
}

// Empty reports whether there is anything worth posting
func (d *Digest) Empty() bool {
	return len(d.Pending)+len(d.Applied)+len(d.Rejected) == 0
}

func (s *SlackSink) PostDigest(ctx context.Context, channel string, d *Digest) error {
	if d.Empty() {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(":newspaper: *Documentation drift digest*\n\n")
	if len(d.Pending) > 0 {
		fmt.Fprintf(&sb, "*%d awaiting review:*\n", len(d.Pending))
		for _, p := range d.Pending {
			fmt.Fprintf(&sb, "• `%s` — %s (%.0f%%)\n", p.DocRef.String(), p.Style, p.Confidence*100)
		}
		sb.WriteString("\n")
	}
	if len(d.Applied) > 0 {
		fmt.Fprintf(&sb, "*%d applied this week:*\n", len(d.Applied))
		for _, p := range d.Applied {
			fmt.Fprintf(&sb, "• `%s`\n", p.DocRef.String())
		}
		sb.WriteString("\n")
	}
	if len(d.Rejected) > 0 {
		fmt.Fprintf(&sb, "*%d rejected* (suppressions learned)\n", len(d.Rejected))
	}

	_, _, err := s.client.PostMessageContext(ctx, channel,
		slack.MsgOptionBlocks(slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, sb.String(), false, false), nil, nil)),
		slack.MsgOptionText("Documentation drift digest", false),
	)
	if err != nil {
		return errors.TransientErr("slack digest post failed", err)
	}

	s.logger.Info("digest posted",
		"workspace_id", d.WorkspaceID,
		"pending", len(d.Pending),
		"applied", len(d.Applied),
	)
	return nil
}
