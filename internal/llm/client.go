package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/docdrift/docdrift/internal/config"
	"github.com/docdrift/docdrift/internal/errors"
)

// Provider identifies the LLM backend
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderNone   Provider = "none"
)

// Request is one structured completion call. ResponseSchema, when set, is a
// JSON schema the decoded response must satisfy.
type Request struct {
	SystemPrompt   string
	UserPrompt     string
	Temperature    float32
	MaxTokens      int
	ResponseSchema *Schema
}

// Client is the multi-provider completion client. Provider "none" disables
// LLM stages; callers fall back to deterministic paths.
type Client struct {
	provider     Provider
	openaiClient *openai.Client
	geminiClient *genai.Client
	model        string
	maxTokens    int
	temperature  float32
	logger       *slog.Logger
}

// NewClient builds the client from configuration. A missing key degrades to
// ProviderNone rather than failing startup.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	logger := slog.Default().With("component", "llm")

	c := &Client{
		provider:    ProviderNone,
		maxTokens:   cfg.LLM.MaxTokens,
		temperature: float32(cfg.LLM.Temperature),
		logger:      logger,
	}

	switch Provider(cfg.LLM.Provider) {
	case ProviderOpenAI:
		if cfg.LLM.OpenAIKey == "" {
			logger.Warn("openai provider selected but no API key configured")
			return c, nil
		}
		c.provider = ProviderOpenAI
		c.openaiClient = openai.NewClient(cfg.LLM.OpenAIKey)
		c.model = cfg.LLM.OpenAIModel
		if c.model == "" {
			c.model = "gpt-4o-mini"
		}
		logger.Info("openai client initialized", "model", c.model)

	case ProviderGemini:
		if cfg.LLM.GeminiKey == "" {
			logger.Warn("gemini provider selected but no API key configured")
			return c, nil
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.LLM.GeminiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		c.provider = ProviderGemini
		c.geminiClient = client
		c.model = cfg.LLM.GeminiModel
		if c.model == "" {
			c.model = "gemini-2.0-flash"
		}
		logger.Info("gemini client initialized", "model", c.model)

	default:
		logger.Info("llm disabled, deterministic paths only")
	}
	return c, nil
}

// IsEnabled reports whether a provider is configured
func (c *Client) IsEnabled() bool { return c.provider != ProviderNone }

// CompleteJSON runs the request and validates the JSON response against the
// schema. Schema violations are permanent LLM_SCHEMA_VALIDATION failures;
// the caller decides whether to re-prompt.
func (c *Client) CompleteJSON(ctx context.Context, req Request, out any) error {
	raw, err := c.complete(ctx, req)
	if err != nil {
		return err
	}
	raw = stripFences(raw)

	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return errors.Wrap(errors.CodeLLMSchemaValidation, "response is not valid JSON", err)
	}
	if req.ResponseSchema != nil {
		if err := req.ResponseSchema.Validate(generic); err != nil {
			return errors.Wrap(errors.CodeLLMSchemaValidation, "response violates schema", err)
		}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return errors.Wrap(errors.CodeLLMSchemaValidation, "response does not decode into target", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	switch c.provider {
	case ProviderOpenAI:
		resp, err := c.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
			},
			Temperature:    temperature,
			MaxTokens:      maxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		})
		if err != nil {
			return "", errors.TransientErr("openai completion failed", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.TransientErr("openai returned no choices", nil)
		}
		return resp.Choices[0].Message.Content, nil

	case ProviderGemini:
		var systemInstruction *genai.Content
		if req.SystemPrompt != "" {
			systemInstruction = genai.Text(req.SystemPrompt)[0]
		}
		genConfig := &genai.GenerateContentConfig{
			SystemInstruction: systemInstruction,
			Temperature:       &temperature,
			MaxOutputTokens:   int32(maxTokens),
			ResponseMIMEType:  "application/json",
		}
		resp, err := c.geminiClient.Models.GenerateContent(ctx, c.model, genai.Text(req.UserPrompt), genConfig)
		if err != nil {
			return "", errors.TransientErr("gemini completion failed", err)
		}
		if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", errors.TransientErr("gemini returned no content", nil)
		}
		return resp.Candidates[0].Content.Parts[0].Text, nil
	}
	return "", errors.New(errors.CodeInternal, "no llm provider configured")
}

// stripFences removes a markdown code fence if the model wrapped its JSON
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
