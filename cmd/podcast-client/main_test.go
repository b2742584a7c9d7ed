package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/podcast-service/internal/objectstore"
	"github.com/book-expert/podcast-service/internal/protocol"
	"github.com/book-expert/podcast-service/internal/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI accepts one upload and walks the job through to pollsUntilDone.
type fakeAPI struct {
	pollsUntilDone int32
	fail           bool

	polls atomic.Int32

	mu       sync.Mutex
	language string
	content  []byte
}

func (f *fakeAPI) upload() (string, []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.language, f.content
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/podcast/generate", func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()

		content, _ := io.ReadAll(file)

		f.mu.Lock()
		f.content = content
		f.language = r.FormValue("language")
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(server.GenerateResponse{JobID: "job-7", Message: "Podcast generation started."})
	})
	mux.HandleFunc("GET /api/podcast/status/{job_id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("job_id") != "job-7" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(server.ErrorResponse{Detail: "Job not found."})

			return
		}

		poll := f.polls.Add(1)
		status := server.StatusResponse{Status: "generating_audio", Progress: 60}

		if poll >= f.pollsUntilDone {
			if f.fail {
				reason := "speech synthesis failed"
				status = server.StatusResponse{Status: "failed", Progress: 60, Error: &reason}
			} else {
				url := "https://cdn.example/podcasts/job-7.mp3"
				status = server.StatusResponse{Status: "completed", Progress: 100, AudioURL: &url}
			}
		}

		_ = json.NewEncoder(w).Encode(status)
	})

	return mux
}

func writeDocument(t *testing.T) string {
	t.Helper()

	documentPath := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(documentPath, []byte("%PDF-1.4 test"), 0o600))

	return documentPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestGenerateCommand_Waits(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{pollsUntilDone: 2}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	output, err := execute(t, "generate", writeDocument(t),
		"--server", srv.URL, "--language", "german", "--wait", "--interval", "10ms")
	require.NoError(t, err)

	language, content := api.upload()
	assert.Equal(t, "german", language)
	assert.Equal(t, []byte("%PDF-1.4 test"), content)
	assert.Contains(t, output, "Uploading paper.pdf (13 B)")
	assert.Contains(t, output, "Job job-7: Podcast generation started.")
	assert.Contains(t, output, "[ 60%] generating_audio")
	assert.Contains(t, output, "[100%] completed")
	assert.Contains(t, output, "Audio: https://cdn.example/podcasts/job-7.mp3")
}

func TestGenerateCommand_ReportsFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{pollsUntilDone: 1, fail: true}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	output, err := execute(t, "generate", writeDocument(t), "--server", srv.URL, "--wait", "--interval", "10ms")

	require.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, output, "Error: speech synthesis failed")
}

func TestGenerateCommand_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "generate", filepath.Join(t.TempDir(), "missing.pdf"))

	require.Error(t, err)
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{pollsUntilDone: 1}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	output, err := execute(t, "status", "job-7", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, output, "[100%] completed")

	_, err = execute(t, "status", "other", "--server", srv.URL)
	require.ErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "Job not found.")
}

func TestSubmitCommand_OverNATS(t *testing.T) {
	t.Parallel()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)
	t.Cleanup(natsServer.Shutdown)

	conn, err := nats.Connect(natsServer.ClientURL())
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	js, err := conn.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(js, "DOCS", objectstore.Options{})
	require.NoError(t, err)

	received := make(chan []byte, 1)

	_, err = conn.Subscribe("test.submit", func(msg *nats.Msg) {
		var event protocol.PodcastRequestedEvent
		if json.Unmarshal(msg.Data, &event) != nil {
			return
		}

		data, downloadErr := store.Download(context.Background(), event.DocumentKey)
		if downloadErr != nil {
			return
		}

		received <- data

		reply, _ := json.Marshal(protocol.PodcastAcceptedEvent{Header: event.Header, JobID: "job-9"})
		_ = msg.Respond(reply)

		go func() {
			time.Sleep(200 * time.Millisecond)

			for _, status := range []protocol.JobStatusChangedEvent{
				{JobID: "job-9", Status: "extracting_text", Progress: 10},
				{JobID: "job-9", Status: "completed", Progress: 100, AudioURL: "http://localhost/a.mp3"},
			} {
				payload, _ := json.Marshal(status)
				_ = conn.Publish(protocol.StatusSubject("test.status", "job-9"), payload)
			}
		}()
	})
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	output, err := execute(t, "submit", writeDocument(t),
		"--nats-url", natsServer.ClientURL(),
		"--bucket", "DOCS",
		"--subject", "test.submit",
		"--status-subject", "test.status",
		"--watch", "--timeout", "5s")
	require.NoError(t, err)

	assert.Equal(t, []byte("%PDF-1.4 test"), <-received)
	assert.Contains(t, output, "Job job-9: submitted over NATS")
	assert.Contains(t, output, "[ 10%] extracting_text")
	assert.Contains(t, output, "Audio: http://localhost/a.mp3")
	assert.Equal(t, 1, strings.Count(output, "completed"), fmt.Sprintf("output: %s", output))
}
