// Package server exposes the podcast pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/jobs"
	"github.com/book-expert/podcast-service/internal/objectstore"
	"github.com/book-expert/podcast-service/internal/publish"
)

const (
	dirPermissions         = 0o750
	defaultShutdownTimeout = 30 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// ErrUploadDirEmpty indicates the server has nowhere to store uploads.
var ErrUploadDirEmpty = errors.New("upload directory cannot be empty")

// AudioSource serves artifacts behind signed links. Only the object-store
// publisher provides one; S3 links point at the bucket directly.
type AudioSource interface {
	OpenSigned(ctx context.Context, key, expires, signature string) (io.ReadCloser, objectstore.ObjectInfo, error)
}

// Options configure the HTTP server.
type Options struct {
	Addr            string
	UploadDir       string
	MaxUploadBytes  int64
	DefaultLanguage string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
}

// Server is the HTTP API of the service.
type Server struct {
	jobs      jobs.Store
	submitter core.JobSubmitter
	audio     AudioSource
	opts      Options
	log       *logger.Logger
	server    *http.Server
}

// New creates the server and makes sure the upload directory exists. audio
// may be nil.
func New(store jobs.Store, submitter core.JobSubmitter, audio AudioSource, opts Options, log *logger.Logger) (*Server, error) {
	if opts.UploadDir == "" {
		return nil, ErrUploadDirEmpty
	}

	err := os.MkdirAll(opts.UploadDir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload directory '%s': %w", opts.UploadDir, err)
	}

	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{jobs: store, submitter: submitter, audio: audio, opts: opts, log: log}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s, nil
}

// Handler returns the routed API wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST /api/podcast/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/podcast/status/{job_id}", s.handleStatus)
	mux.HandleFunc("GET /api/podcast/jobs", s.handleJobs)
	mux.HandleFunc("GET "+publish.AudioRoute+"{key...}", s.handleAudio)

	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}

	return newCORS(s.opts.CORSOrigins).wrap(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errChan := make(chan error, 1)

	go func() {
		errChan <- s.server.Serve(listener)
	}()

	s.log.Info("HTTP API listening on %s", listener.Addr())

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	s.log.Info("Shutting down HTTP API")

	err := s.server.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	return nil
}
