// Package core defines the core business logic and interfaces for the podcast service.
package core

import (
	"context"
	"time"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// DocumentExtractor turns an uploaded document into plain text.
type DocumentExtractor interface {
	Extract(ctx context.Context, documentPath string) (string, error)
}

// ScriptRequest carries everything the language model needs to write a dialogue.
type ScriptRequest struct {
	Text       string
	Language   string
	FirstHost  string
	SecondHost string
}

// ScriptGenerator produces the raw two-host podcast script.
type ScriptGenerator interface {
	Generate(ctx context.Context, req ScriptRequest) (string, error)
}

// SpeechSynthesizer renders one utterance with one voice into outputPath.
// Every implementation must emit the same container format (MP3) so that
// segments can be joined at the byte level.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, outputPath string) error
}

// PublishedArtifact identifies an artifact stored by an ArtifactPublisher.
type PublishedArtifact struct {
	Key         string
	Size        int64
	ContentType string
}

// ArtifactPublisher uploads the final podcast and hands out temporary links to it.
type ArtifactPublisher interface {
	Publish(ctx context.Context, localPath, key string) (PublishedArtifact, error)
	LinkFor(ctx context.Context, artifact PublishedArtifact, expiry time.Duration) (string, error)
}

// StatusUpdate is the observable state of a job after a transition.
type StatusUpdate struct {
	JobID    string
	Status   string
	Progress int
	AudioURL string
	Error    string
}

// StatusNotifier broadcasts job transitions to interested parties.
type StatusNotifier interface {
	NotifyStatus(ctx context.Context, update StatusUpdate) error
}

// JobSubmitter accepts a stored document and schedules its conversion,
// returning the job identifier without waiting for the pipeline.
type JobSubmitter interface {
	Submit(documentPath, language string) (string, error)
}
