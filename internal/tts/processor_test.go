package tts_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/book-expert/podcast-service/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExecSynthesizer_Validation(t *testing.T) {
	t.Parallel()

	log := newTestLogger(t)

	_, err := tts.NewExecSynthesizer("  ", log)
	require.ErrorIs(t, err, tts.ErrCommandEmpty)

	_, err = tts.NewExecSynthesizer("edge-tts --voice {voice} --text {text}", log)
	require.ErrorIs(t, err, tts.ErrNoOutputPlaceholder)

	_, err = tts.NewExecSynthesizer(`edge-tts --text "unterminated`, log)
	require.Error(t, err)

	_, err = tts.NewExecSynthesizer(tts.DefaultCommand, log)
	require.NoError(t, err)
}

func TestExecSynthesizer_Synthesize_PassesTextAsSingleArgument(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	synth, err := tts.NewExecSynthesizer(`sh -c 'printf "%s|%s" "$1" "$2" > "$3"' synth {voice} {text} {output}`, newTestLogger(t))
	require.NoError(t, err)

	outputPath := filepath.Join(t.TempDir(), "segment_0001.mp3")
	text := `It's "quoted"; $HOME stays literal`

	err = synth.Synthesize(context.Background(), text, testVoice, outputPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, testVoice+"|"+text, string(data))
}

func TestExecSynthesizer_Synthesize_CommandFailure(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	synth, err := tts.NewExecSynthesizer(`sh -c 'echo boom >&2; exit 3' synth {output}`, newTestLogger(t))
	require.NoError(t, err)

	err = synth.Synthesize(context.Background(), testUtterance, testVoice, filepath.Join(t.TempDir(), "s.mp3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestExecSynthesizer_Synthesize_NoAudioWritten(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}

	synth, err := tts.NewExecSynthesizer("true {output}", newTestLogger(t))
	require.NoError(t, err)

	err = synth.Synthesize(context.Background(), testUtterance, testVoice, filepath.Join(t.TempDir(), "s.mp3"))
	require.ErrorIs(t, err, tts.ErrNoAudioWritten)
}
