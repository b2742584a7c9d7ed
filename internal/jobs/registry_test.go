package jobs_test

import (
	"sync"
	"testing"

	"github.com/book-expert/podcast-service/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	t.Parallel()

	registry := jobs.NewRegistry()

	created, err := registry.Create("english")
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, jobs.StatusPending, created.Status)
	assert.Equal(t, 0, created.Progress)
	assert.Empty(t, created.ResultURL)
	assert.Empty(t, created.Error)

	fetched, err := registry.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, fetched)
}

func TestRegistry_CreateIssuesUniqueIDs(t *testing.T) {
	t.Parallel()

	registry := jobs.NewRegistry()
	seen := make(map[string]struct{})

	for range 100 {
		job, err := registry.Create("")
		require.NoError(t, err)

		_, dup := seen[job.ID]
		require.False(t, dup, "duplicate id %s", job.ID)

		seen[job.ID] = struct{}{}
	}

	assert.Len(t, registry.List(), 100)
}

func TestRegistry_GetUnknownIsNotFound(t *testing.T) {
	t.Parallel()

	registry := jobs.NewRegistry()

	job, err := registry.Get("does-not-exist")
	require.ErrorIs(t, err, jobs.ErrJobNotFound)
	assert.Equal(t, jobs.Job{}, job)
}

func TestRegistry_UpdateAdvancesMonotonically(t *testing.T) {
	t.Parallel()

	registry := jobs.NewRegistry()
	job, err := registry.Create("english")
	require.NoError(t, err)

	updated, err := registry.Update(job.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusGeneratingScript
		j.Progress = 30
	})
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusGeneratingScript, updated.Status)

	_, err = registry.Update(job.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusExtractingText
		j.Progress = 30
	})
	require.ErrorIs(t, err, jobs.ErrInvalidTransition)

	_, err = registry.Update(job.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusGeneratingAudio
		j.Progress = 20
	})
	require.ErrorIs(t, err, jobs.ErrInvalidTransition)

	current, err := registry.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusGeneratingScript, current.Status)
	assert.Equal(t, 30, current.Progress)
}

func TestRegistry_CompletedRequiresResult(t *testing.T) {
	t.Parallel()

	registry := jobs.NewRegistry()
	job, err := registry.Create("english")
	require.NoError(t, err)

	_, err = registry.Update(job.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusCompleted
		j.Progress = jobs.ProgressComplete
	})
	require.ErrorIs(t, err, jobs.ErrInvalidTransition)

	completed, err := registry.Update(job.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusCompleted
		j.Progress = jobs.ProgressComplete
		j.ResultURL = "https://example.com/podcast.mp3"
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/podcast.mp3", completed.ResultURL)
}

func TestRegistry_TerminalStatesAreFinal(t *testing.T) {
	t.Parallel()

	registry := jobs.NewRegistry()
	job, err := registry.Create("english")
	require.NoError(t, err)

	_, err = registry.Update(job.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusFailed
		j.Error = "boom"
	})
	require.NoError(t, err)

	_, err = registry.Update(job.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusCompleted
		j.Progress = jobs.ProgressComplete
		j.ResultURL = "https://example.com/podcast.mp3"
		j.Error = ""
	})
	require.ErrorIs(t, err, jobs.ErrInvalidTransition)

	final, err := registry.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, final.Status)
	assert.Equal(t, "boom", final.Error)
}

func TestRegistry_RunningJobCannotCarryResult(t *testing.T) {
	t.Parallel()

	registry := jobs.NewRegistry()
	job, err := registry.Create("english")
	require.NoError(t, err)

	_, err = registry.Update(job.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusUploadingAudio
		j.Progress = 90
		j.ResultURL = "https://example.com/early.mp3"
	})
	require.ErrorIs(t, err, jobs.ErrInvalidTransition)
}

// A concurrent poller must never see completed without a result or a result
// without completed.
func TestRegistry_ConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	t.Parallel()

	registry := jobs.NewRegistry()
	job, err := registry.Create("english")
	require.NoError(t, err)

	var waitGroup sync.WaitGroup

	done := make(chan struct{})
	violations := make(chan jobs.Job, 1)

	for range 4 {
		waitGroup.Add(1)

		go func() {
			defer waitGroup.Done()

			for {
				select {
				case <-done:
					return
				default:
				}

				snapshot, getErr := registry.Get(job.ID)
				if getErr != nil {
					continue
				}

				completed := snapshot.Status == jobs.StatusCompleted
				if completed != (snapshot.ResultURL != "") {
					select {
					case violations <- snapshot:
					default:
					}

					return
				}
			}
		}()
	}

	steps := []struct {
		status   jobs.Status
		progress int
	}{
		{jobs.StatusExtractingText, 10},
		{jobs.StatusGeneratingScript, 30},
		{jobs.StatusGeneratingAudio, 60},
		{jobs.StatusUploadingAudio, 90},
	}

	for _, step := range steps {
		_, err = registry.Update(job.ID, func(j *jobs.Job) {
			j.Status = step.status
			j.Progress = step.progress
		})
		require.NoError(t, err)
	}

	_, err = registry.Update(job.ID, func(j *jobs.Job) {
		j.Status = jobs.StatusCompleted
		j.Progress = jobs.ProgressComplete
		j.ResultURL = "https://example.com/podcast.mp3"
	})
	require.NoError(t, err)

	close(done)
	waitGroup.Wait()

	select {
	case bad := <-violations:
		t.Fatalf("observed inconsistent snapshot: %+v", bad)
	default:
	}
}
