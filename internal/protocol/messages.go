// Package protocol defines the events the podcast service exchanges over NATS.
package protocol

import (
	"time"

	"github.com/book-expert/events"
	"github.com/google/uuid"
)

// Default subjects.
const (
	SubjectSubmit       = "podcast.jobs.submit"
	SubjectStatusPrefix = "podcast.jobs.status"
)

// PodcastRequestedEvent asks the service to turn a stored document into a podcast.
type PodcastRequestedEvent struct {
	Header      events.EventHeader `json:"header"`
	DocumentKey string             `json:"document_key"`
	FileName    string             `json:"file_name,omitempty"`
	Language    string             `json:"language,omitempty"`
}

// PodcastAcceptedEvent answers a PodcastRequestedEvent. Exactly one of JobID
// and Error is set.
type PodcastAcceptedEvent struct {
	Header events.EventHeader `json:"header"`
	JobID  string             `json:"job_id,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// JobStatusChangedEvent is broadcast after every job transition.
type JobStatusChangedEvent struct {
	Header   events.EventHeader `json:"header"`
	JobID    string             `json:"job_id"`
	Status   string             `json:"status"`
	Progress int                `json:"progress"`
	AudioURL string             `json:"audio_url,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// StatusSubject returns the subject a job's status events are published on.
// Subscribers can follow every job with prefix + ".>".
func StatusSubject(prefix, jobID string) string {
	return prefix + "." + jobID
}

// NewHeader returns a header for a new event in workflowID.
func NewHeader(workflowID string) events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		EventID:    uuid.NewString(),
	}
}
