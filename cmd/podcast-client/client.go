package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/podcast-service/internal/jobs"
	"github.com/book-expert/podcast-service/internal/server"
)

const (
	routeGenerate = "/api/podcast/generate"
	routeStatus   = "/api/podcast/status/"
)

var (
	// ErrJobFailed is returned by Wait when the job ends in failure.
	ErrJobFailed = errors.New("podcast generation failed")
	// ErrAPI wraps non-success HTTP answers.
	ErrAPI = errors.New("API request failed")
)

// apiClient talks to the podcast HTTP API.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate uploads the document and returns the accepted job.
func (c *apiClient) Generate(ctx context.Context, documentPath, language string) (server.GenerateResponse, error) {
	var out server.GenerateResponse

	file, err := os.Open(documentPath)
	if err != nil {
		return out, fmt.Errorf("failed to open document: %w", err)
	}
	defer file.Close()

	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)

	go func() {
		writer.CloseWithError(writeForm(form, file, filepath.Base(documentPath), language))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+routeGenerate, body)
	if err != nil {
		return out, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", form.FormDataContentType())

	err = c.do(req, &out)

	return out, err
}

func writeForm(form *multipart.Writer, file io.Reader, name, language string) error {
	if language != "" {
		err := form.WriteField("language", language)
		if err != nil {
			return err
		}
	}

	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return err
	}

	_, err = io.Copy(part, file)
	if err != nil {
		return err
	}

	return form.Close()
}

// Status returns the job's current state.
func (c *apiClient) Status(ctx context.Context, jobID string) (server.StatusResponse, error) {
	var out server.StatusResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+routeStatus+jobID, nil)
	if err != nil {
		return out, fmt.Errorf("failed to build request: %w", err)
	}

	err = c.do(req, &out)

	return out, err
}

// Wait polls until the job is terminal, reporting every change to onChange.
func (c *apiClient) Wait(
	ctx context.Context,
	jobID string,
	interval time.Duration,
	onChange func(server.StatusResponse),
) (server.StatusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last server.StatusResponse

	for {
		status, err := c.Status(ctx, jobID)
		if err != nil {
			return status, err
		}

		if status.Status != last.Status || status.Progress != last.Progress {
			onChange(status)
			last = status
		}

		switch jobs.Status(status.Status) {
		case jobs.StatusCompleted:
			return status, nil
		case jobs.StatusFailed:
			reason := "unknown error"
			if status.Error != nil {
				reason = *status.Error
			}

			return status, fmt.Errorf("%w: %s", ErrJobFailed, reason)
		}

		select {
		case <-ctx.Done():
			return status, fmt.Errorf("stopped waiting for job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *apiClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr server.ErrorResponse

		_ = json.NewDecoder(resp.Body).Decode(&apiErr)

		return fmt.Errorf("%w: %s: %s", ErrAPI, resp.Status, apiErr.Detail)
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
