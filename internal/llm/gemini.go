package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/core"
	"google.golang.org/genai"
)

// GeminiGenerator writes scripts with the Gemini API.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
	log         *logger.Logger
}

// NewGeminiGenerator creates a Gemini-backed generator. BaseURL is only set in tests.
func NewGeminiGenerator(opts Options, log *logger.Logger) (*GeminiGenerator, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: opts.Timeout},
	}

	if opts.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(opts.BaseURL, "/")}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	return &GeminiGenerator{
		client:      client,
		model:       opts.Model,
		temperature: float32(opts.Temperature),
		log:         log,
	}, nil
}

// Generate implements core.ScriptGenerator.
func (g *GeminiGenerator) Generate(ctx context.Context, req core.ScriptRequest) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return finish("", err)
	}

	temperature := g.temperature
	config := &genai.GenerateContentConfig{Temperature: &temperature}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return finish("", fmt.Errorf("Gemini API request failed (status=%d): %s",
				apiErr.Code, strings.TrimSpace(apiErr.Message)))
		}

		return finish("", fmt.Errorf("Gemini API request failed: %w", err))
	}

	script := candidateText(resp)
	g.log.Info("Gemini %s returned a %d character script", g.model, len(script))

	return finish(script, nil)
}

// candidateText joins the visible text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return ""
	}

	var builder strings.Builder

	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}

		builder.WriteString(part.Text)
	}

	return builder.String()
}
