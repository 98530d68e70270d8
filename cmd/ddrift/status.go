package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show effective configuration and adapter wiring",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Printf("docdrift %s (%s)\n\n", Version, GitCommit)

	fmt.Printf("Mode:    %s\n", cfg.Mode)
	fmt.Printf("Storage: %s", cfg.Storage.Type)
	if cfg.Storage.Type == "sqlite" {
		fmt.Printf(" (%s)", cfg.Storage.LocalPath)
	}
	fmt.Println()
	fmt.Printf("Queue:   %s\n", cfg.Queue.Type)
	fmt.Println()

	fmt.Println("Adapters:")
	fmt.Printf("  GitHub:     %s\n", configured(cfg.GitHub.Token != ""))
	fmt.Printf("  Confluence: %s\n", configured(cfg.Confluence.Token != ""))
	fmt.Printf("  Notion:     %s\n", configured(cfg.Notion.Token != ""))
	fmt.Printf("  Slack:      %s\n", configured(cfg.Slack.BotToken != ""))
	fmt.Println()

	fmt.Printf("LLM:     %s", cfg.LLM.Provider)
	switch cfg.LLM.Provider {
	case "openai":
		fmt.Printf(" / %s (%s)", cfg.LLM.OpenAIModel, configured(cfg.LLM.OpenAIKey != ""))
	case "gemini":
		fmt.Printf(" / %s (%s)", cfg.LLM.GeminiModel, configured(cfg.LLM.GeminiKey != ""))
	}
	fmt.Println()

	if cfg.Neo4j.Enabled {
		fmt.Printf("Neo4j:   %s\n", cfg.Neo4j.URI)
	}
	if cfg.CatalogPath != "" {
		fmt.Printf("Catalog: %s\n", cfg.CatalogPath)
	}
	return nil
}

func configured(ok bool) string {
	if ok {
		return "✅ configured"
	}
	return "⚠️  not configured"
}
