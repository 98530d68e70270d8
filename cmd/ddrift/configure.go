package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/docdrift/docdrift/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Interactive setup wizard (with OS keychain support)",
	Long: `Walk through docdrift configuration step-by-step with secure credential
storage. Tokens go to the OS keychain; everything else to the config file.

This will configure:
1. GitHub token (webhook source + PR writeback)
2. Doc adapters (Confluence, Notion)
3. Slack bot token (proposal cards and digests)
4. LLM provider and key (patch generation)`,
	RunE: runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	if !config.IsInteractive() {
		return fmt.Errorf("configure requires an interactive terminal")
	}

	fmt.Println("🔧 docdrift Configuration Wizard")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	homeDir, _ := os.UserHomeDir()
	configPath := filepath.Join(homeDir, ".docdrift", "config.yaml")
	loadedCfg, err := config.Load(configPath)
	if err != nil {
		loadedCfg = config.Default()
	}
	km := config.NewKeyringManager()

	secrets := []struct {
		step  string
		label string
		item  string
	}{
		{"Step 1/4: GitHub", "GitHub token (ghp_... or fine-grained)", config.KeyringGitHubTokenItem},
		{"Step 2/4: Doc adapters", "Confluence API token", config.KeyringConfluenceItem},
		{"", "Notion integration token", config.KeyringNotionItem},
		{"Step 3/4: Slack", "Slack bot token (xoxb-...)", config.KeyringSlackTokenItem},
	}
	for _, s := range secrets {
		if s.step != "" {
			fmt.Println(s.step)
		}
		secret, err := config.PromptSecret(s.label + " (empty to skip)")
		if err != nil {
			return err
		}
		if secret == "" {
			continue
		}
		if err := km.Save(s.item, secret); err != nil {
			fmt.Printf("⚠️  Keychain unavailable: %v\n", err)
			fmt.Println("   Set the token in the config file or environment instead.")
			continue
		}
		fmt.Printf("✅ Saved to %s\n", keychainLocation())
	}

	fmt.Println()
	fmt.Println("Step 4/4: LLM provider")
	fmt.Println("  1. openai (gpt-4o-mini, recommended)")
	fmt.Println("  2. gemini (gemini-2.0-flash)")
	fmt.Println("  3. none   (deterministic template patches only)")
	fmt.Printf("Current: %s\n", loadedCfg.LLM.Provider)
	fmt.Print("Select provider (1-3) or press Enter to keep current: ")

	var choice string
	fmt.Scanln(&choice)
	switch choice {
	case "1":
		loadedCfg.LLM.Provider = "openai"
		key, err := config.PromptSecret("OpenAI API key (sk-...)")
		if err != nil {
			return err
		}
		if key != "" {
			if err := km.Save(config.KeyringOpenAIKeyItem, key); err != nil {
				loadedCfg.LLM.OpenAIKey = key
			}
		}
	case "2":
		loadedCfg.LLM.Provider = "gemini"
		key, err := config.PromptSecret("Gemini API key")
		if err != nil {
			return err
		}
		if key != "" {
			if err := km.Save(config.KeyringGeminiKeyItem, key); err != nil {
				loadedCfg.LLM.GeminiKey = key
			}
		}
	case "3":
		loadedCfg.LLM.Provider = "none"
	}
	loadedCfg.LLM.UseKeychain = true

	if err := loadedCfg.Save(configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Println()
	fmt.Printf("✅ Configuration saved to %s\n", configPath)
	fmt.Println()
	fmt.Println("🎯 Next steps:")
	fmt.Println("  1. ddrift workspace create <id>")
	fmt.Println("  2. ddrift serve          (webhook receiver)")
	fmt.Println("  3. ddrift worker         (pipeline workers)")
	return nil
}

func keychainLocation() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain → 'DocDrift'"
	case "windows":
		return "Windows Credential Manager → 'DocDrift'"
	default:
		return "Secret Service (libsecret)"
	}
}
