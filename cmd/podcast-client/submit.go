package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/book-expert/podcast-service/internal/config"
	"github.com/book-expert/podcast-service/internal/jobs"
	"github.com/book-expert/podcast-service/internal/objectstore"
	"github.com/book-expert/podcast-service/internal/protocol"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

const uploadPrefix = "uploads"

// ErrRejected indicates the service refused a NATS submission.
var ErrRejected = errors.New("submission rejected")

type submitOptions struct {
	natsURL       string
	bucket        string
	subject       string
	statusSubject string
	language      string
	watch         bool
	timeout       time.Duration
}

func newSubmitCommand() *cobra.Command {
	opts := &submitOptions{}

	cmd := &cobra.Command{
		Use:     "submit <document>",
		Short:   "Submit a document over NATS instead of HTTP",
		Args:    cobra.ExactArgs(1),
		Example: `podcast-client submit paper.pdf --nats-url nats://localhost:4222 --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitOverNATS(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.natsURL, "nats-url", nats.DefaultURL, "NATS server URL")
	cmd.Flags().StringVar(&opts.bucket, "bucket", config.DefaultDocumentBucket, "Object store bucket for documents")
	cmd.Flags().StringVar(&opts.subject, "subject", protocol.SubjectSubmit, "Submission subject")
	cmd.Flags().StringVar(&opts.statusSubject, "status-subject", protocol.SubjectStatusPrefix, "Status subject prefix")
	cmd.Flags().StringVar(&opts.language, flagLanguage, "", "Podcast language")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Follow status events until the job finishes")
	cmd.Flags().DurationVar(&opts.timeout, flagTimeout, defaultTimeout, "Give up watching after this long")

	return cmd
}

func submitOverNATS(cmd *cobra.Command, opts *submitOptions, documentPath string) error {
	out := cmd.OutOrStdout()

	data, err := os.ReadFile(documentPath)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	conn, err := nats.Connect(opts.natsURL, nats.Name("podcast-client"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer conn.Close()

	js, err := conn.JetStream()
	if err != nil {
		return fmt.Errorf("failed to get JetStream context: %w", err)
	}

	store, err := objectstore.New(js, opts.bucket, objectstore.Options{})
	if err != nil {
		return err
	}

	workflowID := uuid.NewString()
	fileName := filepath.Base(documentPath)
	key := path.Join(uploadPrefix, workflowID, fileName)

	err = store.Upload(cmd.Context(), key, data)
	if err != nil {
		return err
	}

	accepted, err := requestJob(conn, opts, protocol.PodcastRequestedEvent{
		Header:      protocol.NewHeader(workflowID),
		DocumentKey: key,
		FileName:    fileName,
		Language:    opts.language,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, msgAccepted, accepted.JobID, "submitted over NATS")

	if !opts.watch {
		return nil
	}

	return watchJob(conn, opts, accepted.JobID, out)
}

func requestJob(conn *nats.Conn, opts *submitOptions, event protocol.PodcastRequestedEvent) (protocol.PodcastAcceptedEvent, error) {
	var accepted protocol.PodcastAcceptedEvent

	payload, err := json.Marshal(event)
	if err != nil {
		return accepted, fmt.Errorf("failed to marshal request: %w", err)
	}

	reply, err := conn.Request(opts.subject, payload, requestTimeout)
	if err != nil {
		return accepted, fmt.Errorf("no reply on %s: %w", opts.subject, err)
	}

	err = json.Unmarshal(reply.Data, &accepted)
	if err != nil {
		return accepted, fmt.Errorf("failed to decode reply: %w", err)
	}

	if accepted.Error != "" {
		return accepted, fmt.Errorf("%w: %s", ErrRejected, accepted.Error)
	}

	return accepted, nil
}

// watchJob prints status events until the job reaches a terminal state.
// Events published before the subscription started are not replayed.
func watchJob(conn *nats.Conn, opts *submitOptions, jobID string, out io.Writer) error {
	sub, err := conn.SubscribeSync(protocol.StatusSubject(opts.statusSubject, jobID))
	if err != nil {
		return fmt.Errorf("failed to subscribe to status events: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	deadline := time.Now().Add(opts.timeout)

	for {
		msg, err := sub.NextMsg(time.Until(deadline))
		if err != nil {
			return fmt.Errorf("stopped watching job %s: %w", jobID, err)
		}

		var event protocol.JobStatusChangedEvent

		err = json.Unmarshal(msg.Data, &event)
		if err != nil {
			return fmt.Errorf("failed to decode status event: %w", err)
		}

		fmt.Fprintf(out, msgProgress, event.Progress, event.Status)

		switch jobs.Status(event.Status) {
		case jobs.StatusCompleted:
			fmt.Fprintf(out, msgAudioURL, event.AudioURL)

			return nil
		case jobs.StatusFailed:
			fmt.Fprintf(out, msgError, event.Error)

			return fmt.Errorf("%w: %s", ErrJobFailed, event.Error)
		}
	}
}
