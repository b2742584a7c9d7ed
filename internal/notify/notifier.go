// Package notify broadcasts job status transitions.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/protocol"
	"github.com/nats-io/nats.go"
)

// NatsNotifier publishes a protocol.JobStatusChangedEvent per transition.
type NatsNotifier struct {
	natsConnection *nats.Conn
	subjectPrefix  string
	log            *logger.Logger
}

// NewNatsNotifier creates a notifier publishing under subjectPrefix.
func NewNatsNotifier(natsConnection *nats.Conn, subjectPrefix string, log *logger.Logger) *NatsNotifier {
	if subjectPrefix == "" {
		subjectPrefix = protocol.SubjectStatusPrefix
	}

	return &NatsNotifier{natsConnection: natsConnection, subjectPrefix: subjectPrefix, log: log}
}

// NotifyStatus implements core.StatusNotifier.
func (n *NatsNotifier) NotifyStatus(_ context.Context, update core.StatusUpdate) error {
	event := protocol.JobStatusChangedEvent{
		Header:   protocol.NewHeader(update.JobID),
		JobID:    update.JobID,
		Status:   update.Status,
		Progress: update.Progress,
		AudioURL: update.AudioURL,
		Error:    update.Error,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	subject := protocol.StatusSubject(n.subjectPrefix, update.JobID)

	err = n.natsConnection.Publish(subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish status event on %s: %w", subject, err)
	}

	return nil
}
