// Package audio joins synthesized speech segments into the final podcast artifact.
//
// Joining is a byte-level concatenation, not a re-encode. It is only valid
// for frame-based formats whose segments share codec parameters, which is why
// every synthesizer in this service emits MP3.
package audio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format represents supported audio formats.
type Format string

const (
	FORMAT_MP3 Format = "mp3"
	FORMAT_WAV Format = "wav"
)

// Content types served for each format.
const (
	CONTENT_TYPE_MP3 = "audio/mpeg"
	CONTENT_TYPE_WAV = "audio/wav"
)

// Constants for error messages and formats.
const (
	ERR_FMT_UNSUPPORTED_FORMAT = "%w: %q"
	ERR_FMT_NOT_CONCATENABLE   = "%w: %s streams cannot be joined byte by byte"
)

var (
	// ErrUnsupportedFormat indicates a format this service does not produce.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrNotConcatenable indicates a container with per-file headers (e.g. WAV).
	ErrNotConcatenable = errors.New("format is not concatenable")
)

// ParseFormat resolves a format name or file extension.
func ParseFormat(name string) (Format, error) {
	normalized := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "."))

	switch normalized {
	case FORMAT_MP3, FORMAT_WAV:
		return normalized, nil
	default:
		return "", fmt.Errorf(ERR_FMT_UNSUPPORTED_FORMAT, ErrUnsupportedFormat, name)
	}
}

// FormatOf infers the format from a file path's extension.
func FormatOf(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// ContentType returns the MIME type to publish the format with.
func (f Format) ContentType() string {
	switch f {
	case FORMAT_MP3:
		return CONTENT_TYPE_MP3
	case FORMAT_WAV:
		return CONTENT_TYPE_WAV
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Concatenable reports whether independent files of this format remain a
// valid stream when their bytes are joined. MP3 is a sequence of
// self-describing frames; WAV carries a RIFF header with a fixed length.
func (f Format) Concatenable() error {
	switch f {
	case FORMAT_MP3:
		return nil
	case FORMAT_WAV:
		return fmt.Errorf(ERR_FMT_NOT_CONCATENABLE, ErrNotConcatenable, f)
	default:
		return fmt.Errorf(ERR_FMT_UNSUPPORTED_FORMAT, ErrUnsupportedFormat, string(f))
	}
}
