package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIGenerator writes scripts with any OpenAI-compatible chat endpoint.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float64
	log         *logger.Logger
}

// NewOpenAIGenerator creates a chat-completions generator.
func NewOpenAIGenerator(opts Options, log *logger.Logger) *OpenAIGenerator {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
	}

	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")))
	}

	client := openai.NewClient(reqOpts...)

	return &OpenAIGenerator{
		client:      &client,
		model:       opts.Model,
		temperature: opts.Temperature,
		log:         log,
	}
}

// Generate implements core.ScriptGenerator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req core.ScriptRequest) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return finish("", err)
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       g.model,
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Opt(g.temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return finish("", fmt.Errorf("OpenAI API request failed (status=%d): %s",
				apiErr.StatusCode, strings.TrimSpace(apiErr.Message)))
		}

		return finish("", fmt.Errorf("OpenAI API request failed: %w", err))
	}

	if resp == nil || len(resp.Choices) == 0 {
		return finish("", nil)
	}

	script := resp.Choices[0].Message.Content
	g.log.Info("OpenAI %s returned a %d character script", g.model, len(script))

	return finish(script, nil)
}
