package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/audio"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/script"
	"github.com/book-expert/podcast-service/internal/voices"
	"golang.org/x/sync/errgroup"
)

const (
	segmentFileFormat = "segment_%04d%s"

	logFmtSynthesisStarted  = "Synthesizing %d of %d turns into %s"
	logFmtTurnFailed        = "Failed to synthesize turn %d (%s): %v"
	logFmtSynthesisFinished = "Synthesized %d segments"
	logFmtSegmentCleanup    = "Failed to remove segment '%s': %v"

	errFmtTurnFailed = "%w: turn %d (%s): %w"
)

var (
	// ErrNoSpeakableTurns indicates a script whose turns are all empty.
	ErrNoSpeakableTurns = errors.New("script has no speakable turns")
	// ErrWorkDirEmpty indicates a missing segment directory.
	ErrWorkDirEmpty = errors.New("work directory cannot be empty")
)

// Engine fans a script out to a SpeechSynthesizer, one call per speakable turn.
type Engine struct {
	synth  core.SpeechSynthesizer
	format audio.Format
	log    *logger.Logger
}

// NewEngine creates an engine that writes segments of the given format.
func NewEngine(synth core.SpeechSynthesizer, format audio.Format, log *logger.Logger) *Engine {
	return &Engine{synth: synth, format: format, log: log}
}

// SynthesizeTurns synthesizes every turn with text concurrently and returns
// one segment per speakable turn, ordered by turn index. Turns without text
// are skipped and produce no segment. All calls run at once; the first
// failure cancels the rest, removes whatever was written and is returned
// wrapped in core.ErrSynthesis.
func (e *Engine) SynthesizeTurns(
	ctx context.Context,
	turns []script.Turn,
	pair voices.Pair,
	workDir string,
) ([]audio.Segment, error) {
	if workDir == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrSynthesis, ErrWorkDirEmpty)
	}

	planned := e.plan(turns, workDir)
	if len(planned) == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrSynthesis, ErrNoSpeakableTurns)
	}

	e.log.Info(logFmtSynthesisStarted, len(planned), len(turns), workDir)

	group, groupCtx := errgroup.WithContext(ctx)

	for _, segment := range planned {
		turn := turns[segment.Index]
		voiceID := pair.VoiceFor(turn.Speaker)

		group.Go(func() error {
			err := e.synth.Synthesize(groupCtx, turn.Text, voiceID, segment.Path)
			if err != nil {
				e.log.Error(logFmtTurnFailed, segment.Index, turn.Speaker, err)

				return fmt.Errorf(errFmtTurnFailed, core.ErrSynthesis, segment.Index, turn.Speaker, err)
			}

			return nil
		})
	}

	waitErr := group.Wait()
	if waitErr != nil {
		e.removeSegments(planned)

		return nil, waitErr
	}

	e.log.Info(logFmtSynthesisFinished, len(planned))

	return planned, nil
}

// plan assigns a segment path to every speakable turn. Index keeps the turn's
// position in the script so the assembler can restore order.
func (e *Engine) plan(turns []script.Turn, workDir string) []audio.Segment {
	planned := make([]audio.Segment, 0, len(turns))

	for index, turn := range turns {
		if !turn.Speakable() {
			continue
		}

		planned = append(planned, audio.Segment{
			Index: index,
			Path:  filepath.Join(workDir, fmt.Sprintf(segmentFileFormat, index, e.format.Extension())),
		})
	}

	return planned
}

func (e *Engine) removeSegments(segments []audio.Segment) {
	for _, segment := range segments {
		removeErr := os.Remove(segment.Path)
		if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			e.log.Warn(logFmtSegmentCleanup, segment.Path, removeErr)
		}
	}
}
