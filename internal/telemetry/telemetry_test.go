package telemetry_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader sdkmetric.Reader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m.Data
		}
	}

	return out
}

func TestMetrics_RecordsPipelineEvents(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := telemetry.NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.JobSubmitted(ctx, "english")
	metrics.JobSubmitted(ctx, "french")
	metrics.JobFinished(ctx, "completed")
	metrics.StageFinished(ctx, "extracting_text", 250*time.Millisecond, false)
	metrics.SegmentsSynthesized(ctx, 3)
	metrics.SegmentsSynthesized(ctx, 2)
	metrics.ArtifactPublished(ctx, 4096)

	data := collect(t, reader)

	submitted, ok := data["podcast.jobs.submitted"].(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, point := range submitted.DataPoints {
		total += point.Value
	}

	assert.Equal(t, int64(2), total)
	assert.Len(t, submitted.DataPoints, 2, "one series per language")

	segments, ok := data["podcast.segments.synthesized"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, segments.DataPoints, 1)
	assert.Equal(t, int64(5), segments.DataPoints[0].Value)

	stage, ok := data["podcast.stage.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, stage.DataPoints, 1)
	assert.Equal(t, uint64(1), stage.DataPoints[0].Count)
	assert.InDelta(t, 0.25, stage.DataPoints[0].Sum, 1e-9)

	size, ok := data["podcast.artifact.size"].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, size.DataPoints, 1)
	assert.Equal(t, int64(4096), size.DataPoints[0].Sum)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var metrics *telemetry.Metrics

	assert.NotPanics(t, func() {
		ctx := context.Background()
		metrics.JobSubmitted(ctx, "english")
		metrics.JobFinished(ctx, "failed")
		metrics.StageFinished(ctx, "generating_audio", time.Second, true)
		metrics.SegmentsSynthesized(ctx, 1)
		metrics.ArtifactPublished(ctx, 1)
	})
}

func TestSetup_ServesPrometheus(t *testing.T) {
	t.Parallel()

	testLogger, err := logger.New(t.TempDir(), "telemetry-test.log")
	require.NoError(t, err)

	provider, err := telemetry.Setup("podcast-service", "test", testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	provider.Metrics().JobSubmitted(context.Background(), "english")

	handler := provider.Handler()
	require.NotNil(t, handler)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(recorder.Result().Body)
	require.NoError(t, err)

	assert.Equal(t, 200, recorder.Code)
	assert.Contains(t, string(body), "podcast_jobs_submitted")
}
