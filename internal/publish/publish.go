// Package publish uploads finished podcasts and issues time-limited links to them.
package publish

import (
	"fmt"
	"path"
	"time"

	"github.com/book-expert/podcast-service/internal/audio"
)

// Backends selectable in configuration.
const (
	BackendS3   = "s3"
	BackendNATS = "nats"
)

// DefaultLinkExpiry is how long a download link stays valid.
const DefaultLinkExpiry = time.Hour

const artifactPrefix = "podcasts"

// ArtifactKey returns the object key of a job's podcast.
func ArtifactKey(jobID string, format audio.Format) string {
	return path.Join(artifactPrefix, jobID+format.Extension())
}

func contentTypeOf(localPath string) (string, error) {
	format, err := audio.FormatOf(localPath)
	if err != nil {
		return "", fmt.Errorf("artifact %s: %w", localPath, err)
	}

	return format.ContentType(), nil
}
