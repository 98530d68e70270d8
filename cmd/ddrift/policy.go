package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/docdrift/docdrift/internal/models"
	"github.com/docdrift/docdrift/internal/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Validate, hash, diff and publish policy packs",
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate <pack.yaml>",
	Short: "Validate a policy pack file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyValidate,
}

var policyHashCmd = &cobra.Command{
	Use:   "hash <pack.yaml>",
	Short: "Print the canonical version hash of a policy pack",
	Long: `The hash is computed over the canonical JSON form of the pack, so
formatting, key order and the order of set-like lists never change it.`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicyHash,
}

var policyDiffCmd = &cobra.Command{
	Use:   "diff <a.yaml> <b.yaml>",
	Short: "Compare the canonical hashes of two policy packs",
	Args:  cobra.ExactArgs(2),
	RunE:  runPolicyDiff,
}

var (
	publishWorkspace  string
	publishScopeType  string
	publishScopeValue string
	publishParent     string
)

var policyPublishCmd = &cobra.Command{
	Use:   "publish <pack.yaml>",
	Short: "Publish a policy pack to a workspace",
	Long: `Validate the pack and store it as a published, immutable version.
Re-publishing a changed pack creates a child version; the old one stays
addressable by its hash.`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicyPublish,
}

func init() {
	policyPublishCmd.Flags().StringVar(&publishWorkspace, "workspace", "", "workspace ID (required)")
	policyPublishCmd.Flags().StringVar(&publishScopeType, "scope", "workspace", "scope type: workspace | service | repo")
	policyPublishCmd.Flags().StringVar(&publishScopeValue, "scope-value", "", "service or repo the pack applies to")
	policyPublishCmd.Flags().StringVar(&publishParent, "parent", "", "previous version's record ID")
	policyPublishCmd.MarkFlagRequired("workspace")

	policyCmd.AddCommand(policyValidateCmd)
	policyCmd.AddCommand(policyHashCmd)
	policyCmd.AddCommand(policyDiffCmd)
	policyCmd.AddCommand(policyPublishCmd)
}

func loadPack(path string) (*policy.PolicyPack, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	pack, err := policy.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	return pack, data, nil
}

func runPolicyValidate(cmd *cobra.Command, args []string) error {
	pack, _, err := loadPack(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("✅ %s is valid\n", args[0])
	fmt.Printf("   id: %s  version: %s  rules: %d\n",
		pack.Metadata.ID, pack.Metadata.Version, len(pack.Rules))
	return nil
}

func runPolicyHash(cmd *cobra.Command, args []string) error {
	pack, _, err := loadPack(args[0])
	if err != nil {
		return err
	}
	hash, err := policy.Hash(pack)
	if err != nil {
		return err
	}
	fmt.Printf("%s  (%s)\n", hash, policy.ShortHash(hash))
	return nil
}

func runPolicyDiff(cmd *cobra.Command, args []string) error {
	packA, _, err := loadPack(args[0])
	if err != nil {
		return err
	}
	packB, _, err := loadPack(args[1])
	if err != nil {
		return err
	}
	hashA, err := policy.Hash(packA)
	if err != nil {
		return err
	}
	hashB, err := policy.Hash(packB)
	if err != nil {
		return err
	}
	fmt.Println(policy.DiffHashes(hashA, hashB))
	return nil
}

func runPolicyPublish(cmd *cobra.Command, args []string) error {
	pack, raw, err := loadPack(args[0])
	if err != nil {
		return err
	}
	hash, err := policy.Hash(pack)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	now := time.Now().UTC()
	rec := &models.PolicyPackRecord{
		WorkspaceID:    publishWorkspace,
		ID:             uuid.NewString(),
		Name:           pack.Metadata.Name,
		ScopeType:      publishScopeType,
		ScopeValue:     publishScopeValue,
		YAML:           string(raw),
		VersionHash:    hash,
		ParentID:       publishParent,
		PackMetadataID: pack.Metadata.ID,
		Status:         models.PackPublished,
		PublishedAt:    &now,
		CreatedAt:      now,
	}
	if err := a.store.SavePolicyPack(ctx, rec); err != nil {
		return err
	}
	fmt.Printf("✅ Published %s version %s\n", pack.Metadata.ID, pack.Metadata.Version)
	fmt.Printf("   record: %s  hash: %s\n", rec.ID, rec.ShortHash())
	return nil
}
