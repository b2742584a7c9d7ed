package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/book-expert/podcast-service/internal/extract"
	"github.com/book-expert/podcast-service/internal/jobs"
	"github.com/book-expert/podcast-service/internal/objectstore"
	"github.com/book-expert/podcast-service/internal/pipeline"
	"github.com/book-expert/podcast-service/internal/publish"
)

const (
	formFile     = "file"
	formLanguage = "language"

	multipartMemory = 8 << 20

	msgStarted         = "Podcast generation started."
	msgJobNotFound     = "Job not found."
	msgUnsupported     = "Only PDF and plain text documents are supported."
	msgFileRequired    = "A document file is required."
	msgTooLarge        = "The document is too large."
	msgUnavailable     = "The service is shutting down."
	msgInternal        = "Internal server error."
	msgLinkInvalid     = "The link is invalid or has expired."
	msgArtifactMissing = "Podcast not found."
)

// GenerateResponse is returned when a job is accepted.
type GenerateResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// StatusResponse mirrors a job record. AudioURL and Error are null until set.
type StatusResponse struct {
	JobID    string  `json:"job_id,omitempty"`
	Status   string  `json:"status"`
	Progress int     `json:"progress"`
	AudioURL *string `json:"audio_url"`
	Error    *string `json:"error"`
}

// ErrorResponse carries a human-readable failure.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Podcast API is running"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}

	err := r.ParseMultipartForm(multipartMemory)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)

			return
		}

		writeError(w, http.StatusBadRequest, msgFileRequired)

		return
	}

	defer func() { _ = r.MultipartForm.RemoveAll() }()

	documentPath, status, err := s.saveUpload(r)
	if err != nil {
		s.log.Warn("Rejected upload: %v", err)
		writeError(w, status, uploadMessage(status))

		return
	}

	language := strings.TrimSpace(r.FormValue(formLanguage))
	if language == "" {
		language = s.opts.DefaultLanguage
	}

	jobID, err := s.submitter.Submit(documentPath, language)
	if err != nil {
		_ = os.Remove(documentPath)

		if errors.Is(err, pipeline.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, msgUnavailable)

			return
		}

		s.log.Error("Failed to submit job: %v", err)
		writeError(w, http.StatusInternalServerError, msgInternal)

		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{JobID: jobID, Message: msgStarted})
}

// saveUpload copies the multipart file into the upload directory and checks
// that its content is a supported document. It returns the HTTP status to
// answer with on failure.
func (s *Server) saveUpload(r *http.Request) (string, int, error) {
	src, header, err := r.FormFile(formFile)
	if err != nil {
		return "", http.StatusBadRequest, fmt.Errorf("missing %q field: %w", formFile, err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".pdf" && ext != ".txt" && ext != ".md" {
		ext = ""
	}

	dst, err := os.CreateTemp(s.opts.UploadDir, "upload-*"+ext)
	if err != nil {
		return "", http.StatusInternalServerError, fmt.Errorf("failed to create upload file: %w", err)
	}

	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()

	if copyErr == nil {
		copyErr = closeErr
	}

	if copyErr != nil {
		_ = os.Remove(dst.Name())

		return "", http.StatusInternalServerError, fmt.Errorf("failed to store upload: %w", copyErr)
	}

	_, err = extract.SniffFile(dst.Name())
	if err != nil {
		_ = os.Remove(dst.Name())

		return "", http.StatusBadRequest, fmt.Errorf("%s: %w", header.Filename, err)
	}

	return dst.Name(), http.StatusOK, nil
}

func uploadMessage(status int) string {
	if status == http.StatusBadRequest {
		return msgUnsupported
	}

	return msgInternal
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.PathValue("job_id"))
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, msgJobNotFound)

			return
		}

		writeError(w, http.StatusInternalServerError, msgInternal)

		return
	}

	response := toStatus(job)
	response.JobID = ""

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	all := s.jobs.List()

	out := make([]StatusResponse, 0, len(all))
	for _, job := range all {
		out = append(out, toStatus(job))
	}

	writeJSON(w, http.StatusOK, out)
}

func toStatus(job jobs.Job) StatusResponse {
	response := StatusResponse{JobID: job.ID, Status: string(job.Status), Progress: job.Progress}

	if job.ResultURL != "" {
		response.AudioURL = &job.ResultURL
	}

	if job.Error != "" {
		response.Error = &job.Error
	}

	return response
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if s.audio == nil {
		writeError(w, http.StatusNotFound, msgArtifactMissing)

		return
	}

	query := r.URL.Query()

	reader, info, err := s.audio.OpenSigned(r.Context(), r.PathValue("key"),
		query.Get(publish.QueryExpires), query.Get(publish.QuerySignature))
	if err != nil {
		switch {
		case errors.Is(err, publish.ErrLinkInvalid), errors.Is(err, publish.ErrLinkExpired):
			writeError(w, http.StatusForbidden, msgLinkInvalid)
		case errors.Is(err, objectstore.ErrObjectNotFound):
			writeError(w, http.StatusNotFound, msgArtifactMissing)
		default:
			s.log.Error("Failed to open artifact: %v", err)
			writeError(w, http.StatusInternalServerError, msgInternal)
		}

		return
	}
	defer reader.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "inline; filename="+strconv.Quote(filepath.Base(info.Key)))

	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}

	w.WriteHeader(http.StatusOK)

	_, err = io.Copy(w, reader)
	if err != nil {
		s.log.Warn("Failed to stream artifact %s: %v", info.Key, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
