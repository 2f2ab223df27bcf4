package annotator

import (
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

// Provider names accepted by ANNOTATOR_TYPE.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

const (
	// DefaultClaudeModel is used when no model is configured for Claude.
	DefaultClaudeModel = string(anthropic.ModelClaudeSonnet4_5_20250929)

	// DefaultOpenAIModel is used when no model is configured for OpenAI.
	DefaultOpenAIModel = openai.GPT4oMini

	// DefaultMaxTokens bounds the completion length.
	DefaultMaxTokens = 1024

	// DefaultMaxInputChars bounds the item body sent to the provider.
	DefaultMaxInputChars = 10000

	minMaxTokens = 64
	maxMaxTokens = 8192
)

// DefaultPrompt is the instruction used when ANNOTATION_PROMPT is empty.
const DefaultPrompt = `You help a busy reader keep up with new posts from the feeds they follow.
For the item below, decide whether it deserves the reader's attention. If it does,
draft a short, friendly reply the reader could post in response (two or three sentences).
If it does not, say briefly why it can be skipped.`

// Config holds the settings shared by every provider.
type Config struct {
	// Provider is one of ProviderClaude, ProviderOpenAI or ProviderNone.
	Provider string

	APIKey string

	// Model overrides the provider default.
	Model string

	// Prompt is the free-text instruction placed before the output format rules.
	Prompt string

	// MaxTokens bounds the completion. Valid range: 64-8192.
	MaxTokens int

	// MaxInputChars truncates long item bodies before sending them.
	MaxInputChars int

	// Timeout bounds one Annotate call, retries included.
	Timeout time.Duration

	// BaseURL overrides the provider endpoint (proxies, tests).
	BaseURL string
}

// DefaultConfig returns the defaults for provider.
func DefaultConfig(provider string) Config {
	cfg := Config{
		Provider:      provider,
		Prompt:        DefaultPrompt,
		MaxTokens:     DefaultMaxTokens,
		MaxInputChars: DefaultMaxInputChars,
		Timeout:       60 * time.Second,
	}
	switch provider {
	case ProviderClaude:
		cfg.Model = DefaultClaudeModel
	case ProviderOpenAI:
		cfg.Model = DefaultOpenAIModel
	}
	return cfg
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderNone:
		return nil
	case ProviderClaude, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown annotator provider %q", c.Provider)
	}

	if c.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s annotator requires an API key", c.Provider))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("model cannot be empty"))
	}
	if c.MaxTokens < minMaxTokens || c.MaxTokens > maxMaxTokens {
		errs = append(errs, fmt.Errorf("max tokens must be between %d and %d, got %d", minMaxTokens, maxMaxTokens, c.MaxTokens))
	}
	if c.MaxInputChars <= 0 {
		errs = append(errs, fmt.Errorf("max input chars must be positive, got %d", c.MaxInputChars))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %v", c.Timeout))
	}

	return errors.Join(errs...)
}
