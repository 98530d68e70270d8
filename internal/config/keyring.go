package config

import (
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "DocDrift"

	// Keychain item names
	KeyringGitHubTokenItem = "github-token"
	KeyringSlackTokenItem  = "slack-bot-token"
	KeyringOpenAIKeyItem   = "openai-api-key"
	KeyringGeminiKeyItem   = "gemini-api-key"
	KeyringConfluenceItem  = "confluence-token"
	KeyringNotionItem      = "notion-token"
)

// KeyringManager handles secure credential storage in the OS keychain
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// Save stores a credential securely in the OS keychain.
// macOS: Keychain Access; Windows: Credential Manager; Linux: Secret Service.
func (km *KeyringManager) Save(item, secret string) error {
	if secret == "" {
		return fmt.Errorf("credential cannot be empty")
	}
	if err := keyring.Set(KeyringService, item, secret); err != nil {
		km.logger.Error("failed to save credential to keychain", "item", item, "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	km.logger.Info("credential saved to keychain", "item", item)
	return nil
}

// Get retrieves a credential from the OS keychain.
// Returns ("", nil) when the item is not present.
func (km *KeyringManager) Get(item string) (string, error) {
	secret, err := keyring.Get(KeyringService, item)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return secret, nil
}

// Delete removes a credential from the OS keychain
func (km *KeyringManager) Delete(item string) error {
	err := keyring.Delete(KeyringService, item)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	km.logger.Info("credential removed from keychain", "item", item)
	return nil
}

// ResolveCredentials fills empty credential fields from the keychain when
// use_keychain is enabled. Config/env values win when already set.
func (c *Config) ResolveCredentials() error {
	if !c.LLM.UseKeychain {
		return nil
	}
	km := NewKeyringManager()
	fill := func(dst *string, item string) error {
		if *dst != "" {
			return nil
		}
		v, err := km.Get(item)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
	if err := fill(&c.GitHub.Token, KeyringGitHubTokenItem); err != nil {
		return err
	}
	if err := fill(&c.Slack.BotToken, KeyringSlackTokenItem); err != nil {
		return err
	}
	if err := fill(&c.LLM.OpenAIKey, KeyringOpenAIKeyItem); err != nil {
		return err
	}
	if err := fill(&c.LLM.GeminiKey, KeyringGeminiKeyItem); err != nil {
		return err
	}
	if err := fill(&c.Confluence.Token, KeyringConfluenceItem); err != nil {
		return err
	}
	return fill(&c.Notion.Token, KeyringNotionItem)
}
