package main

import (
	"context"
	"fmt"
	"os/user"
	"time"

	"github.com/spf13/cobra"

	"github.com/docdrift/docdrift/internal/models"
)

var (
	reviewWorkspace string
	rejectReason    string
	snoozeDays      int
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review pending patch proposals",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List proposals awaiting review",
	RunE:  runReviewList,
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <proposal-id>",
	Short: "Approve a proposal and apply the patch",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewApprove,
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <proposal-id>",
	Short: "Reject a proposal and learn a suppression",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewReject,
}

var reviewSnoozeCmd = &cobra.Command{
	Use:   "snooze <proposal-id>",
	Short: "Snooze a proposal",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewSnooze,
}

func init() {
	reviewCmd.PersistentFlags().StringVar(&reviewWorkspace, "workspace", "", "workspace ID (required)")
	reviewCmd.MarkPersistentFlagRequired("workspace")
	reviewRejectCmd.Flags().StringVar(&rejectReason, "reason", "not applicable", "rejection reason")
	reviewSnoozeCmd.Flags().IntVar(&snoozeDays, "days", 7, "days to snooze")

	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewRejectCmd)
	reviewCmd.AddCommand(reviewSnoozeCmd)

	rootCmd.AddCommand(reviewCmd)
}

func actorName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "cli"
}

func runReviewList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	waiting, err := a.store.ListCandidatesByState(ctx, reviewWorkspace, models.StateAwaitingHuman, 50)
	if err != nil {
		return err
	}
	if len(waiting) == 0 {
		fmt.Println("No proposals awaiting review.")
		return nil
	}
	for _, c := range waiting {
		p, err := a.store.GetProposalByDrift(ctx, reviewWorkspace, c.ID)
		if err != nil {
			continue
		}
		fmt.Printf("%s  %-12s %-24s %.0f%%  %s\n",
			p.ID, c.DriftType, c.Service, c.Confidence*100, p.DocRef.String())
	}
	return nil
}

func runReviewApprove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.actions.Approve(ctx, reviewWorkspace, args[0], actorName()); err != nil {
		return err
	}
	fmt.Println("✅ Approved and applied")
	return nil
}

func runReviewReject(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.actions.Reject(ctx, reviewWorkspace, args[0], actorName(), rejectReason, nil); err != nil {
		return err
	}
	fmt.Println("✅ Rejected; suppression learned")
	return nil
}

func runReviewSnooze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	until := time.Now().UTC().AddDate(0, 0, snoozeDays)
	if err := a.actions.Snooze(ctx, reviewWorkspace, args[0], actorName(), until); err != nil {
		return err
	}
	fmt.Printf("✅ Snoozed until %s\n", until.Format("2006-01-02"))
	return nil
}
