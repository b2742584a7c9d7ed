package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/book-expert/logger"
	"github.com/dustin/go-humanize"
)

const (
	filePermissions = 0o600

	logFmtAssembled          = "Assembled %d segments into %s (%s)"
	logFmtSegmentCleanupFail = "Failed to remove segment '%s': %v"
	logFmtPartialCleanupFail = "Failed to remove partial artifact '%s': %v"
)

var (
	// ErrNoSegments indicates there was nothing to assemble.
	ErrNoSegments = errors.New("no audio segments to assemble")
	// ErrOutputPathEmpty indicates a missing artifact path.
	ErrOutputPathEmpty = errors.New("output path cannot be empty")
)

// Segment is the synthesized audio of one dialogue turn. Index is the turn's
// position in the script and defines the order of assembly.
type Segment struct {
	Index int
	Path  string
}

// Assembler concatenates ordered segments into one artifact file.
type Assembler struct {
	format Format
	log    *logger.Logger
}

// NewAssembler creates an assembler for the given format.
func NewAssembler(format Format, log *logger.Logger) (*Assembler, error) {
	err := format.Concatenable()
	if err != nil {
		return nil, err
	}

	return &Assembler{format: format, log: log}, nil
}

// Format returns the artifact format this assembler produces.
func (a *Assembler) Format() Format {
	return a.format
}

// Concatenate writes the bytes of every segment, in Index order, to
// outputPath and returns the number of bytes written. All segment files are
// removed before returning, whether or not assembly succeeded. On failure the
// partially written artifact is removed too.
func (a *Assembler) Concatenate(segments []Segment, outputPath string) (written int64, err error) {
	defer a.removeSegments(segments)

	if outputPath == "" {
		return 0, ErrOutputPathEmpty
	}

	if len(segments) == 0 {
		return 0, ErrNoSegments
	}

	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	output, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return 0, fmt.Errorf("failed to create artifact '%s': %w", outputPath, err)
	}

	defer func() {
		closeErr := output.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("failed to close artifact '%s': %w", outputPath, closeErr)
		}

		if err != nil {
			a.removePartial(outputPath)
		}
	}()

	for _, segment := range ordered {
		copied, copyErr := appendSegment(output, segment)
		written += copied

		if copyErr != nil {
			return written, copyErr
		}
	}

	a.log.Info(logFmtAssembled, len(ordered), outputPath, humanize.Bytes(uint64(written)))

	return written, nil
}

func appendSegment(dst io.Writer, segment Segment) (int64, error) {
	src, err := os.Open(segment.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to open segment %d: %w", segment.Index, err)
	}
	defer src.Close()

	copied, err := io.Copy(dst, src)
	if err != nil {
		return copied, fmt.Errorf("failed to append segment %d: %w", segment.Index, err)
	}

	return copied, nil
}

func (a *Assembler) removeSegments(segments []Segment) {
	for _, segment := range segments {
		removeErr := os.Remove(segment.Path)
		if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			a.log.Warn(logFmtSegmentCleanupFail, segment.Path, removeErr)
		}
	}
}

func (a *Assembler) removePartial(outputPath string) {
	removeErr := os.Remove(outputPath)
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		a.log.Warn(logFmtPartialCleanupFail, outputPath, removeErr)
	}
}
