// Package tts renders dialogue turns into speech segments.
//
// Two synthesizers are provided: HTTPSynthesizer talks to an
// OpenAI-compatible speech endpoint, ExecSynthesizer drives a local command
// such as edge-tts. Both emit MP3 so that segments can be concatenated.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// API endpoints and paths.
const (
	apiSpeech = "/v1/audio/speech"
	apiHealth = "/health"
)

// HTTP headers.
const (
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
	contentTypeMPEG     = "audio/mpeg"
	responseFormatMP3   = "mp3"
)

const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// Error messages.
const (
	errFmtUnexpectedContentType = "%w: expected audio/mpeg, got %q"
	errFmtServiceError          = "speech service error (%s): %s"
	errFmtServiceNonOKStatus    = "speech service returned non-OK status: %s, body: %s"
)

var (
	// ErrTextEmpty indicates an utterance with no speakable text.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrVoiceEmpty indicates a missing voice identifier.
	ErrVoiceEmpty = errors.New("voice cannot be empty")
	// ErrOutputPathEmpty indicates a missing segment path.
	ErrOutputPathEmpty = errors.New("output path cannot be empty")
	// ErrUnexpectedContentType indicates the service answered with something other than MP3.
	ErrUnexpectedContentType = errors.New("unexpected content type")
	// ErrEmptyAudio indicates a successful response with no audio bytes.
	ErrEmptyAudio = errors.New("received empty audio data")
)

// SpeechRequest is the JSON payload of an OpenAI-compatible speech request.
type SpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

// speechErrorResponse mirrors the OpenAI error envelope.
type speechErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
	Detail string `json:"detail"`
}

// HTTPSynthesizer implements core.SpeechSynthesizer against a speech HTTP service.
type HTTPSynthesizer struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	speed      float64
}

// HTTPOptions configures an HTTPSynthesizer.
type HTTPOptions struct {
	BaseURL string
	APIKey  string
	Model   string
	Speed   float64
	Timeout time.Duration
}

// NewHTTPSynthesizer creates a synthesizer for the service at opts.BaseURL
// (protocol and port included, e.g. "http://localhost:8880").
func NewHTTPSynthesizer(opts HTTPOptions) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		model:   opts.Model,
		speed:   opts.Speed,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// Synthesize requests speech for text with the given voice and writes the
// returned MP3 to outputPath.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text, voiceID, outputPath string) error {
	inputErr := validateSynthesisInputs(text, voiceID, outputPath)
	if inputErr != nil {
		return inputErr
	}

	audioData, speechErr := s.generateSpeech(ctx, SpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          voiceID,
		ResponseFormat: responseFormatMP3,
		Speed:          s.speed,
	})
	if speechErr != nil {
		return speechErr
	}

	return writeSegment(outputPath, audioData)
}

// HealthCheck verifies that the speech service is reachable.
func (s *HTTPSynthesizer) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", s.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

func (s *HTTPSynthesizer) generateSpeech(ctx context.Context, req SpeechRequest) ([]byte, error) {
	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+apiSpeech, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeMPEG)

	if s.apiKey != "" {
		httpReq.Header.Set(headerAuthorization, "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to speech service at %s: %w", s.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if !strings.HasPrefix(contentType, contentTypeMPEG) {
		return nil, fmt.Errorf(errFmtUnexpectedContentType, ErrUnexpectedContentType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

// parseErrorResponse decodes a structured error when possible and falls back
// to the raw body otherwise.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp speechErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil {
		switch {
		case errorResp.Error.Message != "":
			return fmt.Errorf(errFmtServiceError, resp.Status, errorResp.Error.Message)
		case errorResp.Detail != "":
			return fmt.Errorf(errFmtServiceError, resp.Status, errorResp.Detail)
		}
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}

func validateSynthesisInputs(text, voiceID, outputPath string) error {
	if strings.TrimSpace(text) == "" {
		return ErrTextEmpty
	}

	if voiceID == "" {
		return ErrVoiceEmpty
	}

	if outputPath == "" {
		return ErrOutputPathEmpty
	}

	return nil
}

func writeSegment(outputPath string, audioData []byte) error {
	dirErr := os.MkdirAll(filepath.Dir(outputPath), dirPermissions)
	if dirErr != nil {
		return fmt.Errorf("failed to create output directory: %w", dirErr)
	}

	writeErr := os.WriteFile(outputPath, audioData, filePermissions)
	if writeErr != nil {
		return fmt.Errorf("failed to write audio file: %w", writeErr)
	}

	return nil
}
