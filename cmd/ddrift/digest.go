package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var digestWorkspace string

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Post the pending-drift digest for a workspace",
	Long: `Assemble the digest of pending, applied and rejected patch proposals
from the last seven days and post it to the workspace digest channel.
Typically run from cron, weekly.`,
	RunE: runDigest,
}

func init() {
	digestCmd.Flags().StringVar(&digestWorkspace, "workspace", "", "workspace ID (required)")
	digestCmd.MarkFlagRequired("workspace")
}

func runDigest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ws, err := a.store.GetWorkspace(ctx, digestWorkspace)
	if err != nil {
		return fmt.Errorf("workspace %s: %w", digestWorkspace, err)
	}
	if err := a.worker.PostDigest(ctx, ws); err != nil {
		return err
	}
	fmt.Printf("✅ Digest posted for workspace %s\n", ws.ID)
	return nil
}
