package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/docdrift/docdrift/internal/models"
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Manage workspaces",
}

var (
	wsName          string
	wsDigestChannel string
	wsDefaultOwner  string
	wsHighThreshold float64
	wsMedThreshold  float64
)

var workspaceCreateCmd = &cobra.Command{
	Use:   "create <workspace-id>",
	Short: "Create or update a workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceCreate,
}

var workspaceShowCmd = &cobra.Command{
	Use:   "show <workspace-id>",
	Short: "Show workspace configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspaceShow,
}

func init() {
	workspaceCreateCmd.Flags().StringVar(&wsName, "name", "", "display name")
	workspaceCreateCmd.Flags().StringVar(&wsDigestChannel, "digest-channel", "", "Slack channel for digests")
	workspaceCreateCmd.Flags().StringVar(&wsDefaultOwner, "default-owner", "", "fallback owner ref")
	workspaceCreateCmd.Flags().Float64Var(&wsHighThreshold, "high-threshold", 0, "high confidence threshold (default 0.70)")
	workspaceCreateCmd.Flags().Float64Var(&wsMedThreshold, "medium-threshold", 0, "medium confidence threshold (default 0.55)")

	workspaceCmd.AddCommand(workspaceCreateCmd)
	workspaceCmd.AddCommand(workspaceShowCmd)
}

func runWorkspaceCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	id := args[0]
	now := time.Now().UTC()
	ws := &models.Workspace{
		ID:                        id,
		Name:                      wsName,
		HighConfidenceThreshold:   wsHighThreshold,
		MediumConfidenceThreshold: wsMedThreshold,
		DefaultOwnerRef:           wsDefaultOwner,
		DigestChannel:             wsDigestChannel,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if existing, err := a.store.GetWorkspace(ctx, id); err == nil {
		ws.CreatedAt = existing.CreatedAt
		ws.WorkflowPreferences = existing.WorkflowPreferences
		ws.OwnershipSourceRanking = existing.OwnershipSourceRanking
	}
	if ws.Name == "" {
		ws.Name = id
	}

	if err := a.store.SaveWorkspace(ctx, ws); err != nil {
		return err
	}
	fmt.Printf("✅ Workspace %s saved\n", id)
	fmt.Printf("   Webhook base: /webhooks/{source}/%s\n", id)
	return nil
}

func runWorkspaceShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ws, err := a.store.GetWorkspace(ctx, args[0])
	if err != nil {
		return err
	}
	high, medium := ws.Thresholds()
	fmt.Printf("Workspace: %s (%s)\n", ws.ID, ws.Name)
	fmt.Printf("  Thresholds: high=%.2f medium=%.2f\n", high, medium)
	fmt.Printf("  Default owner: %s\n", ws.DefaultOwnerRef)
	fmt.Printf("  Digest channel: %s\n", ws.DigestChannel)
	if p := ws.WorkflowPreferences; p != nil {
		fmt.Printf("  Materiality: %.2f\n", p.Materiality())
		if len(p.EnabledInputSources) > 0 {
			fmt.Printf("  Enabled sources: %v\n", p.EnabledInputSources)
		}
		if len(p.EnabledDriftTypes) > 0 {
			fmt.Printf("  Enabled drift types: %v\n", p.EnabledDriftTypes)
		}
	}
	return nil
}
