package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var suppressWorkspace string

var suppressCmd = &cobra.Command{
	Use:   "suppress",
	Short: "Manage suppression rules",
}

var suppressListCmd = &cobra.Command{
	Use:   "list",
	Short: "List suppression rules for a workspace",
	RunE:  runSuppressList,
}

var suppressExpireCmd = &cobra.Command{
	Use:   "expire <rule-id>",
	Short: "Remove a suppression rule so matching drifts surface again",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuppressExpire,
}

func init() {
	suppressCmd.PersistentFlags().StringVar(&suppressWorkspace, "workspace", "", "workspace ID (required)")
	suppressCmd.MarkPersistentFlagRequired("workspace")

	suppressCmd.AddCommand(suppressListCmd)
	suppressCmd.AddCommand(suppressExpireCmd)

	rootCmd.AddCommand(suppressCmd)
}

func runSuppressList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	rules, err := a.store.ListSuppressions(ctx, suppressWorkspace)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Println("No suppression rules.")
		return nil
	}
	now := time.Now().UTC()
	for _, r := range rules {
		expiry := "never"
		if r.ExpiresAt != nil {
			expiry = r.ExpiresAt.Format("2006-01-02")
			if r.Expired(now) {
				expiry += " (expired)"
			}
		}
		fmt.Printf("%s  %-6s fp=%-3d expires=%-18s %s\n",
			r.ID, r.Level, r.FalsePositives, expiry, r.Reason)
	}
	return nil
}

func runSuppressExpire(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.DeleteSuppression(ctx, suppressWorkspace, args[0]); err != nil {
		return err
	}
	fmt.Println("✅ Suppression removed")
	return nil
}
