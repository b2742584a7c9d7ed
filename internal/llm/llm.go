// Package llm generates two-host podcast scripts with a hosted language model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/core"
)

// Supported providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Defaults for script generation.
const (
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultTemperature = 0.7
)

// placeholderKey is the value shipped in sample environment files.
const placeholderKey = "your_gemini_api_key"

var (
	// ErrMissingAPIKey indicates the provider has no usable credential.
	ErrMissingAPIKey = errors.New("API key is missing")
	// ErrUnknownProvider indicates an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown script provider")
	// ErrEmptyScript indicates the model answered without any text.
	ErrEmptyScript = errors.New("model returned an empty script")
)

// Options configures a script generator.
type Options struct {
	Provider    string
	Model       string
	Temperature float64
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
}

// New returns the generator for opts.Provider. A missing API key does not
// fail construction: the service still starts, and every generation fails
// with core.ErrScriptGeneration until the key is configured.
func New(opts Options, log *logger.Logger) (core.ScriptGenerator, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = ProviderGemini
	}

	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}

	if !usableKey(opts.APIKey) {
		log.Warn("%s API key not set properly; script generation will fail", provider)

		return unconfigured{provider: provider}, nil
	}

	switch provider {
	case ProviderGemini:
		if opts.Model == "" {
			opts.Model = DefaultGeminiModel
		}

		return NewGeminiGenerator(opts, log)
	case ProviderOpenAI:
		if opts.Model == "" {
			opts.Model = DefaultOpenAIModel
		}

		return NewOpenAIGenerator(opts, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, opts.Provider)
	}
}

func usableKey(key string) bool {
	trimmed := strings.TrimSpace(key)

	return trimmed != "" && trimmed != placeholderKey
}

type unconfigured struct {
	provider string
}

func (u unconfigured) Generate(context.Context, core.ScriptRequest) (string, error) {
	return "", fmt.Errorf("%w: %s %w", core.ErrScriptGeneration, u.provider, ErrMissingAPIKey)
}

// finish classifies a provider result. Every failure wraps core.ErrScriptGeneration.
func finish(script string, err error) (string, error) {
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrScriptGeneration, err)
	}

	if strings.TrimSpace(script) == "" {
		return "", fmt.Errorf("%w: %w", core.ErrScriptGeneration, ErrEmptyScript)
	}

	return script, nil
}
