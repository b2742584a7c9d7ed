// Package pipeline runs podcast jobs from uploaded document to published audio.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/audio"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/jobs"
	"github.com/book-expert/podcast-service/internal/publish"
	"github.com/book-expert/podcast-service/internal/script"
	"github.com/book-expert/podcast-service/internal/telemetry"
	"github.com/book-expert/podcast-service/internal/voices"
)

// Stage progress values reported when a stage starts.
const (
	ProgressExtractingText   = 10
	ProgressGeneratingScript = 30
	ProgressGeneratingAudio  = 60
	ProgressUploadingAudio   = 90
)

// Defaults applied to zero Options fields.
const (
	DefaultStageTimeout = 300 * time.Second
	DefaultLinkExpiry   = publish.DefaultLinkExpiry
)

const (
	artifactBaseName = "podcast"
	workDirPattern   = "job-%s-"
	notifyTimeout    = 5 * time.Second

	logFmtJobAccepted   = "Accepted job %s (language %s) for %s"
	logFmtStageStarted  = "Job %s: %s"
	logFmtJobCompleted  = "Job %s completed: %s"
	logFmtJobFailed     = "Job %s failed: %v"
	logFmtUpdateFailed  = "Job %s: failed to record %s: %v"
	logFmtNotifyFailed  = "Job %s: failed to publish status %s: %v"
	logFmtCleanupFailed = "Job %s: failed to remove '%s': %v"
	logFmtWaitingJobs   = "Waiting for in-flight jobs to stop"
)

var (
	// ErrClosed is returned by Submit once the orchestrator is shutting down.
	ErrClosed = errors.New("orchestrator is closed")
	// ErrCancelled is the failure recorded for jobs interrupted by shutdown.
	ErrCancelled = errors.New("cancelled")
	// ErrStageTimeout is the failure recorded for a stage that ran too long.
	ErrStageTimeout = errors.New("stage timed out")
	// ErrDocumentPathEmpty indicates a submission without a document.
	ErrDocumentPathEmpty = errors.New("document path cannot be empty")
	// ErrMissingDependency indicates an incomplete Dependencies value.
	ErrMissingDependency = errors.New("missing pipeline dependency")
)

// Synthesizer renders parsed turns into ordered audio segments. *tts.Engine
// implements it.
type Synthesizer interface {
	SynthesizeTurns(ctx context.Context, turns []script.Turn, pair voices.Pair, workDir string) ([]audio.Segment, error)
}

// Assembler joins segments into a single artifact. *audio.Assembler
// implements it.
type Assembler interface {
	Concatenate(segments []audio.Segment, outputPath string) (int64, error)
	Format() audio.Format
}

// Dependencies are the collaborators of an Orchestrator. Notifier and
// Metrics are optional.
type Dependencies struct {
	Jobs        jobs.Store
	Voices      *voices.Registry
	Extractor   core.DocumentExtractor
	Generator   core.ScriptGenerator
	Synthesizer Synthesizer
	Assembler   Assembler
	Publisher   core.ArtifactPublisher
	Notifier    core.StatusNotifier
	Metrics     *telemetry.Metrics
}

// Options tune the orchestrator.
type Options struct {
	// WorkDir is the parent of every per-job scratch directory.
	// Empty means os.TempDir().
	WorkDir      string
	StageTimeout time.Duration
	LinkExpiry   time.Duration
}

// Orchestrator owns the lifecycle of every job it accepts. Each job runs in
// its own goroutine and is the only writer of its registry record.
type Orchestrator struct {
	deps Dependencies
	opts Options
	log  *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	tasks  sync.WaitGroup
}

// New validates deps and returns a ready orchestrator.
func New(deps Dependencies, opts Options, log *logger.Logger) (*Orchestrator, error) {
	err := deps.validate()
	if err != nil {
		return nil, err
	}

	if opts.StageTimeout <= 0 {
		opts.StageTimeout = DefaultStageTimeout
	}

	if opts.LinkExpiry <= 0 {
		opts.LinkExpiry = DefaultLinkExpiry
	}

	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{deps: deps, opts: opts, log: log, ctx: ctx, cancel: cancel}, nil
}

func (d Dependencies) validate() error {
	required := []struct {
		name    string
		missing bool
	}{
		{"jobs", d.Jobs == nil},
		{"voices", d.Voices == nil},
		{"extractor", d.Extractor == nil},
		{"generator", d.Generator == nil},
		{"synthesizer", d.Synthesizer == nil},
		{"assembler", d.Assembler == nil},
		{"publisher", d.Publisher == nil},
	}

	for _, dependency := range required {
		if dependency.missing {
			return fmt.Errorf("%w: %s", ErrMissingDependency, dependency.name)
		}
	}

	return nil
}

// Submit records a pending job for the document and starts it in the
// background. It returns as soon as the job exists. The orchestrator takes
// ownership of documentPath and removes it when the job ends.
func (o *Orchestrator) Submit(documentPath, language string) (string, error) {
	if documentPath == "" {
		return "", ErrDocumentPathEmpty
	}

	job, err := o.start(documentPath, language)
	if err != nil {
		return "", err
	}

	o.log.Info(logFmtJobAccepted, job.ID, language, filepath.Base(documentPath))
	o.deps.Metrics.JobSubmitted(o.ctx, language)

	return job.ID, nil
}

// start creates the job and launches its goroutine under mu, so Shutdown
// either sees the task or Submit sees closed. The pending status is
// published by the job goroutine, outside the lock.
func (o *Orchestrator) start(documentPath, language string) (jobs.Job, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return jobs.Job{}, ErrClosed
	}

	job, err := o.deps.Jobs.Create(language)
	if err != nil {
		return jobs.Job{}, fmt.Errorf("failed to create job: %w", err)
	}

	o.tasks.Go(func() {
		o.notify(job)
		o.run(job.ID, documentPath, language)
	})

	return job, nil
}

// Shutdown stops accepting jobs, cancels the running ones and waits for
// them to record their failure, or for ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.log.Info(logFmtWaitingJobs)

	done := make(chan struct{})

	go func() {
		o.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("jobs still running at shutdown: %w", ctx.Err())
	}
}

// Wait blocks until every submitted job has reached a terminal state.
func (o *Orchestrator) Wait() {
	o.tasks.Wait()
}

// run drives one job through every stage. Nothing escapes it: failures end
// up on the job record.
func (o *Orchestrator) run(jobID, documentPath, language string) {
	workDir := ""

	defer func() {
		o.cleanup(jobID, documentPath, workDir)
	}()

	dir, err := os.MkdirTemp(o.opts.WorkDir, fmt.Sprintf(workDirPattern, jobID))
	if err != nil {
		o.fail(jobID, fmt.Errorf("failed to create work directory: %w", err))

		return
	}

	workDir = dir

	url, err := o.execute(jobID, documentPath, language, workDir)
	if err != nil {
		o.fail(jobID, err)

		return
	}

	o.complete(jobID, url)
}

func (o *Orchestrator) execute(jobID, documentPath, language, workDir string) (string, error) {
	languageKey, pair := o.deps.Voices.Resolve(language)

	var text string

	err := o.stage(jobID, jobs.StatusExtractingText, ProgressExtractingText, core.ErrExtraction,
		func(ctx context.Context) error {
			var extractErr error
			text, extractErr = o.deps.Extractor.Extract(ctx, documentPath)

			return extractErr
		})
	if err != nil {
		return "", err
	}

	var rawScript string

	err = o.stage(jobID, jobs.StatusGeneratingScript, ProgressGeneratingScript, core.ErrScriptGeneration,
		func(ctx context.Context) error {
			var generateErr error
			rawScript, generateErr = o.deps.Generator.Generate(ctx, core.ScriptRequest{
				Text:       text,
				Language:   languageKey,
				FirstHost:  pair.First.DisplayName,
				SecondHost: pair.Second.DisplayName,
			})

			return generateErr
		})
	if err != nil {
		return "", err
	}

	artifactPath := filepath.Join(workDir, artifactBaseName+o.deps.Assembler.Format().Extension())

	err = o.stage(jobID, jobs.StatusGeneratingAudio, ProgressGeneratingAudio, core.ErrSynthesis,
		func(ctx context.Context) error {
			return o.renderAudio(ctx, rawScript, pair, workDir, artifactPath)
		})
	if err != nil {
		return "", err
	}

	var url string

	err = o.stage(jobID, jobs.StatusUploadingAudio, ProgressUploadingAudio, core.ErrPublish,
		func(ctx context.Context) error {
			var publishErr error
			url, publishErr = o.publish(ctx, jobID, artifactPath)

			return publishErr
		})

	return url, err
}

func (o *Orchestrator) renderAudio(ctx context.Context, rawScript string, pair voices.Pair, workDir, artifactPath string) error {
	turns := script.Parse(rawScript, pair.First.DisplayName, pair.Second.DisplayName)

	segments, err := o.deps.Synthesizer.SynthesizeTurns(ctx, turns, pair, workDir)
	if err != nil {
		return err
	}

	o.deps.Metrics.SegmentsSynthesized(ctx, len(segments))

	_, err = o.deps.Assembler.Concatenate(segments, artifactPath)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrAssembly, err)
	}

	return nil
}

func (o *Orchestrator) publish(ctx context.Context, jobID, artifactPath string) (string, error) {
	key := publish.ArtifactKey(jobID, o.deps.Assembler.Format())

	artifact, err := o.deps.Publisher.Publish(ctx, artifactPath, key)
	if err != nil {
		return "", err
	}

	o.deps.Metrics.ArtifactPublished(ctx, artifact.Size)

	return o.deps.Publisher.LinkFor(ctx, artifact, o.opts.LinkExpiry)
}

// stage records the transition into status, runs fn under the stage timeout
// and classifies its error with sentinel unless it already carries a stage
// sentinel of its own.
func (o *Orchestrator) stage(
	jobID string,
	status jobs.Status,
	progress int,
	sentinel error,
	fn func(ctx context.Context) error,
) error {
	if o.ctx.Err() != nil {
		return ErrCancelled
	}

	o.log.Info(logFmtStageStarted, jobID, status)
	o.update(jobID, status, func(job *jobs.Job) {
		job.Status = status
		job.Progress = progress
	})

	ctx, cancel := context.WithTimeout(o.ctx, o.opts.StageTimeout)
	defer cancel()

	started := time.Now()
	err := fn(ctx)
	o.deps.Metrics.StageFinished(o.ctx, string(status), time.Since(started), err != nil)

	if err == nil {
		return nil
	}

	switch {
	case o.ctx.Err() != nil:
		return ErrCancelled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%w after %s: %w", ErrStageTimeout, o.opts.StageTimeout, err)
	}

	if !hasStageSentinel(err) {
		err = fmt.Errorf("%w: %w", sentinel, err)
	}

	return err
}

func hasStageSentinel(err error) bool {
	for _, sentinel := range []error{
		core.ErrExtraction, core.ErrScriptGeneration, core.ErrSynthesis, core.ErrAssembly, core.ErrPublish,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	return false
}

func (o *Orchestrator) complete(jobID, url string) {
	o.log.Info(logFmtJobCompleted, jobID, url)
	o.update(jobID, jobs.StatusCompleted, func(job *jobs.Job) {
		job.Status = jobs.StatusCompleted
		job.Progress = jobs.ProgressComplete
		job.ResultURL = url
	})
	o.deps.Metrics.JobFinished(context.Background(), string(jobs.StatusCompleted))
}

func (o *Orchestrator) fail(jobID string, cause error) {
	o.log.Error(logFmtJobFailed, jobID, cause)
	o.update(jobID, jobs.StatusFailed, func(job *jobs.Job) {
		job.Status = jobs.StatusFailed
		job.Error = cause.Error()
	})
	o.deps.Metrics.JobFinished(context.Background(), string(jobs.StatusFailed))
}

func (o *Orchestrator) update(jobID string, status jobs.Status, mutate func(job *jobs.Job)) {
	job, err := o.deps.Jobs.Update(jobID, mutate)
	if err != nil {
		o.log.Error(logFmtUpdateFailed, jobID, status, err)

		return
	}

	o.notify(job)
}

func (o *Orchestrator) notify(job jobs.Job) {
	if o.deps.Notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	err := o.deps.Notifier.NotifyStatus(ctx, core.StatusUpdate{
		JobID:    job.ID,
		Status:   string(job.Status),
		Progress: job.Progress,
		AudioURL: job.ResultURL,
		Error:    job.Error,
	})
	if err != nil {
		o.log.Warn(logFmtNotifyFailed, job.ID, job.Status, err)
	}
}

// cleanup removes the uploaded document and the job's scratch directory,
// which holds any segments and the local artifact.
func (o *Orchestrator) cleanup(jobID, documentPath, workDir string) {
	err := os.Remove(documentPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		o.log.Warn(logFmtCleanupFailed, jobID, documentPath, err)
	}

	if workDir == "" {
		return
	}

	err = os.RemoveAll(workDir)
	if err != nil {
		o.log.Warn(logFmtCleanupFailed, jobID, workDir, err)
	}
}
