package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics groups the instruments recorded by the pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	jobsSubmitted metric.Int64Counter
	jobsFinished  metric.Int64Counter
	stageDuration metric.Float64Histogram
	segments      metric.Int64Counter
	artifactBytes metric.Int64Histogram
}

// NewMetrics registers the pipeline instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	jobsSubmitted, err := meter.Int64Counter("podcast.jobs.submitted",
		metric.WithDescription("Podcast jobs accepted"))
	if err != nil {
		return nil, fmt.Errorf("failed to create jobs submitted counter: %w", err)
	}

	jobsFinished, err := meter.Int64Counter("podcast.jobs.finished",
		metric.WithDescription("Podcast jobs that reached a terminal state"))
	if err != nil {
		return nil, fmt.Errorf("failed to create jobs finished counter: %w", err)
	}

	stageDuration, err := meter.Float64Histogram("podcast.stage.duration",
		metric.WithDescription("Wall-clock time spent in a pipeline stage"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create stage duration histogram: %w", err)
	}

	segments, err := meter.Int64Counter("podcast.segments.synthesized",
		metric.WithDescription("Audio segments synthesized"))
	if err != nil {
		return nil, fmt.Errorf("failed to create segments counter: %w", err)
	}

	artifactBytes, err := meter.Int64Histogram("podcast.artifact.size",
		metric.WithDescription("Size of published podcast artifacts"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact size histogram: %w", err)
	}

	return &Metrics{
		jobsSubmitted: jobsSubmitted,
		jobsFinished:  jobsFinished,
		stageDuration: stageDuration,
		segments:      segments,
		artifactBytes: artifactBytes,
	}, nil
}

// JobSubmitted counts an accepted job.
func (m *Metrics) JobSubmitted(ctx context.Context, language string) {
	if m == nil {
		return
	}

	m.jobsSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("language", language)))
}

// JobFinished counts a job that ended with status.
func (m *Metrics) JobFinished(ctx context.Context, status string) {
	if m == nil {
		return
	}

	m.jobsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// StageFinished records how long stage ran and whether it failed.
func (m *Metrics) StageFinished(ctx context.Context, stage string, elapsed time.Duration, failed bool) {
	if m == nil {
		return
	}

	m.stageDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("failed", failed),
	))
}

// SegmentsSynthesized counts synthesized segments.
func (m *Metrics) SegmentsSynthesized(ctx context.Context, count int) {
	if m == nil {
		return
	}

	m.segments.Add(ctx, int64(count))
}

// ArtifactPublished records the size of a published artifact.
func (m *Metrics) ArtifactPublished(ctx context.Context, size int64) {
	if m == nil {
		return
	}

	m.artifactBytes.Record(ctx, size)
}
