// Package worker accepts podcast requests over NATS.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/protocol"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 30 * time.Second

var (
	// ErrDocumentKeyEmpty indicates a request without a document key.
	ErrDocumentKeyEmpty = errors.New("document key cannot be empty")
	// ErrUploadDirEmpty indicates the worker has nowhere to stage documents.
	ErrUploadDirEmpty = errors.New("upload directory cannot be empty")
)

// NatsWorker listens for protocol.PodcastRequestedEvent requests, stages the
// referenced document locally and submits it to the pipeline.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	submitter      core.JobSubmitter
	uploadDir      string
	log            *logger.Logger
	ready          chan struct{}
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	submitter core.JobSubmitter,
	uploadDir string,
	log *logger.Logger,
) (*NatsWorker, error) {
	if uploadDir == "" {
		return nil, ErrUploadDirEmpty
	}

	if subject == "" {
		subject = protocol.SubjectSubmit
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		submitter:      submitter,
		uploadDir:      uploadDir,
		log:            log,
		ready:          make(chan struct{}),
	}, nil
}

// Ready is closed once the subscription is registered with the server.
func (w *NatsWorker) Ready() <-chan struct{} {
	return w.ready
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	flushErr := w.natsConnection.Flush()
	if flushErr != nil {
		return fmt.Errorf("failed to flush subscription: %w", flushErr)
	}

	close(w.ready)
	w.log.Info("Listening for podcast requests on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse podcast request: %v", err)
		w.reply(msg, protocol.PodcastAcceptedEvent{Header: protocol.NewHeader(""), Error: err.Error()})

		return
	}

	jobID, submitErr := w.submit(ctx, event)
	if submitErr != nil {
		w.log.Error("Failed to submit podcast request for workflow %s: %v", event.Header.WorkflowID, submitErr)
		w.reply(msg, protocol.PodcastAcceptedEvent{Header: event.Header, Error: submitErr.Error()})

		return
	}

	w.log.Info("Accepted document %s as job %s", event.DocumentKey, jobID)
	w.reply(msg, protocol.PodcastAcceptedEvent{Header: event.Header, JobID: jobID})
}

// submit downloads the document into the upload directory and hands it to
// the pipeline, which owns the staged file from then on.
func (w *NatsWorker) submit(ctx context.Context, event *protocol.PodcastRequestedEvent) (string, error) {
	data, err := w.store.Download(ctx, event.DocumentKey)
	if err != nil {
		return "", fmt.Errorf("failed to download document '%s': %w", event.DocumentKey, err)
	}

	stagedPath, err := w.stage(event, data)
	if err != nil {
		return "", err
	}

	jobID, err := w.submitter.Submit(stagedPath, event.Language)
	if err != nil {
		removeErr := os.Remove(stagedPath)
		if removeErr != nil {
			w.log.Warn("Failed to remove staged document '%s': %v", stagedPath, removeErr)
		}

		return "", fmt.Errorf("failed to submit job: %w", err)
	}

	return jobID, nil
}

func (w *NatsWorker) stage(event *protocol.PodcastRequestedEvent, data []byte) (string, error) {
	name := event.FileName
	if name == "" {
		name = event.DocumentKey
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if strings.ContainsFunc(ext[min(1, len(ext)):], func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	}) {
		ext = ""
	}

	file, err := os.CreateTemp(w.uploadDir, "request-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to stage document: %w", err)
	}

	_, writeErr := file.Write(data)
	closeErr := file.Close()

	if writeErr == nil {
		writeErr = closeErr
	}

	if writeErr != nil {
		_ = os.Remove(file.Name())

		return "", fmt.Errorf("failed to write staged document: %w", writeErr)
	}

	return file.Name(), nil
}

func (w *NatsWorker) reply(msg *nats.Msg, replyEvent protocol.PodcastAcceptedEvent) {
	if msg.Reply == "" {
		return
	}

	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		w.log.Error("Failed to marshal reply event: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish reply event: %v", err)
	}
}

func parseEvent(msg *nats.Msg) (*protocol.PodcastRequestedEvent, error) {
	var event protocol.PodcastRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if strings.TrimSpace(event.DocumentKey) == "" {
		return nil, ErrDocumentKeyEmpty
	}

	return &event, nil
}
