package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings
type Config struct {
	// Deployment mode
	Mode string `yaml:"mode"` // "server", "worker", "local"

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Queue configuration
	Queue QueueConfig `yaml:"queue"`

	// GitHub configuration
	GitHub GitHubConfig `yaml:"github"`

	// Wiki adapters (Confluence / Notion)
	Confluence ConfluenceConfig `yaml:"confluence"`
	Notion     NotionConfig     `yaml:"notion"`

	// Slack notification sink
	Slack SlackConfig `yaml:"slack"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Redis (rate limiting + queue backend)
	Redis RedisConfig `yaml:"redis"`

	// Neo4j (optional correlation edges)
	Neo4j Neo4jConfig `yaml:"neo4j"`

	// Pipeline tunables
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Service-to-docs mapping file consumed by the resolver
	CatalogPath string `yaml:"catalog_path"`
}

type StorageConfig struct {
	Type        string `yaml:"type"` // "postgres", "sqlite"
	PostgresDSN string `yaml:"postgres_dsn"`
	LocalPath   string `yaml:"local_path"`
}

type QueueConfig struct {
	Type string `yaml:"type"` // "redis", "bolt", "memory"
}

type GitHubConfig struct {
	Token     string `yaml:"token"`
	RateLimit int    `yaml:"rate_limit"` // Requests per second
}

type ConfluenceConfig struct {
	BaseURL string `yaml:"base_url"`
	Email   string `yaml:"email"`
	Token   string `yaml:"token"`
}

type NotionConfig struct {
	Token string `yaml:"token"`
}

type SlackConfig struct {
	BotToken      string `yaml:"bot_token"`
	DigestChannel string `yaml:"digest_channel"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "openai", "gemini", "none"
	OpenAIKey   string  `yaml:"openai_key"`
	OpenAIModel string  `yaml:"openai_model"`
	GeminiKey   string  `yaml:"gemini_key"`
	GeminiModel string  `yaml:"gemini_model"`
	UseKeychain bool    `yaml:"use_keychain"` // Prefer keychain over config file
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Enabled  bool   `yaml:"enabled"`
}

type PipelineConfig struct {
	MaxRetries         int           `yaml:"max_retries"`
	StageBudget        time.Duration `yaml:"stage_budget"`
	EarlyExitBudget    time.Duration `yaml:"early_exit_budget"`
	AdapterConcurrency int           `yaml:"adapter_concurrency"`
	JoinWindow         time.Duration `yaml:"join_window"`
	NotifyHourlyCap    int           `yaml:"notify_hourly_cap"`
	MaxDocCharsToLLM   int           `yaml:"max_doc_chars_to_llm"`
	MaxSections        int           `yaml:"max_sections"`
	MaxSectionChars    int           `yaml:"max_section_chars"`
	AutoApproveEnabled bool          `yaml:"auto_approve_enabled"`
	AutoApproveMinConf float64       `yaml:"auto_approve_min_confidence"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Mode: "local",
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".docdrift", "local.db"),
		},
		Queue: QueueConfig{
			Type: "bolt",
		},
		GitHub: GitHubConfig{
			RateLimit: 10, // 10 requests per second
		},
		LLM: LLMConfig{
			Provider:    "none",
			OpenAIModel: "gpt-4o-mini",
			GeminiModel: "gemini-2.0-flash",
			MaxTokens:   4096,
			Temperature: 0.2,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Pipeline: PipelineConfig{
			MaxRetries:         5,
			StageBudget:        30 * time.Second,
			EarlyExitBudget:    1 * time.Second,
			AdapterConcurrency: 4,
			JoinWindow:         7 * 24 * time.Hour,
			NotifyHourlyCap:    10,
			MaxDocCharsToLLM:   24000,
			MaxSections:        12,
			MaxSectionChars:    4000,
			AutoApproveMinConf: 0.95,
		},
	}
}

// Load reads configuration from file and environment
func Load(cfgFile string) (*Config, error) {
	// Load .env if present; missing file is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".docdrift")
		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".docdrift"))
		}
	}

	v.SetEnvPrefix("DOCDRIFT")
	v.AutomaticEnv()

	cfg := Default()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfgFile != "" {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		// No config file: defaults + env only
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes the configuration to a YAML file, creating parent directories
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configured mode has what it needs
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn required when storage.type=postgres")
		}
	case "sqlite":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("storage.local_path required when storage.type=sqlite")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	if c.Queue.Type == "redis" && c.Redis.Host == "" {
		return fmt.Errorf("redis.host required when queue.type=redis")
	}
	return nil
}
