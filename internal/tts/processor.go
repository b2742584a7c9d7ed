package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"
	"github.com/mattn/go-shellwords"
)

// Placeholders substituted into every argument of the command template.
const (
	PlaceholderVoice  = "{voice}"
	PlaceholderText   = "{text}"
	PlaceholderOutput = "{output}"
)

// DefaultCommand is the edge-tts invocation used when none is configured.
const DefaultCommand = "edge-tts --voice {voice} --text {text} --write-media {output}"

var (
	// ErrCommandEmpty indicates a blank command template.
	ErrCommandEmpty = errors.New("synthesis command cannot be empty")
	// ErrNoOutputPlaceholder indicates a template that never mentions {output}.
	ErrNoOutputPlaceholder = errors.New("synthesis command must reference " + PlaceholderOutput)
	// ErrNoAudioWritten indicates the command succeeded but left no file behind.
	ErrNoAudioWritten = errors.New("synthesis command produced no audio")
)

// ExecSynthesizer implements core.SpeechSynthesizer by running a local
// command once per utterance.
type ExecSynthesizer struct {
	args []string
	log  *logger.Logger
}

// NewExecSynthesizer parses a shell-style command template. Placeholders are
// replaced after splitting, so dialogue text always reaches the command as a
// single argument whatever quotes or spaces it contains.
func NewExecSynthesizer(command string, log *logger.Logger) (*ExecSynthesizer, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrCommandEmpty
	}

	parser := shellwords.NewParser()

	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synthesis command: %w", err)
	}

	if len(args) == 0 {
		return nil, ErrCommandEmpty
	}

	if !strings.Contains(command, PlaceholderOutput) {
		return nil, ErrNoOutputPlaceholder
	}

	return &ExecSynthesizer{args: args, log: log}, nil
}

// Synthesize runs the command for one utterance and checks that it wrote outputPath.
func (s *ExecSynthesizer) Synthesize(ctx context.Context, text, voiceID, outputPath string) error {
	inputErr := validateSynthesisInputs(text, voiceID, outputPath)
	if inputErr != nil {
		return inputErr
	}

	dirErr := os.MkdirAll(filepath.Dir(outputPath), dirPermissions)
	if dirErr != nil {
		return fmt.Errorf("failed to create output directory: %w", dirErr)
	}

	replacer := strings.NewReplacer(
		PlaceholderVoice, voiceID,
		PlaceholderText, text,
		PlaceholderOutput, outputPath,
	)

	args := make([]string, len(s.args))
	for i, arg := range s.args {
		args[i] = replacer.Replace(arg)
	}

	// #nosec G204 -- the binary comes from configuration, dialogue text is a single argv entry
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s execution failed: %w - output: %s", args[0], err, strings.TrimSpace(string(output)))
	}

	info, statErr := os.Stat(outputPath)
	if statErr != nil || info.Size() == 0 {
		removeErr := os.Remove(outputPath)
		if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			s.log.Warn("Failed to remove empty segment '%s': %v", outputPath, removeErr)
		}

		return fmt.Errorf("%w: %s", ErrNoAudioWritten, outputPath)
	}

	return nil
}
