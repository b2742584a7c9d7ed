// Package extract turns uploaded documents into plain text for script generation.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/h2non/filetype"
)

// Kind is a document type the extractor understands.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindText Kind = "text"
)

// sniffLength covers the longest signature filetype inspects.
const sniffLength = 8192

const (
	logFmtExtracted   = "Extracted %d characters from %s document %s"
	errFmtUnsupported = "%w: %s"
)

var (
	// ErrUnsupportedDocument indicates a file that is neither PDF nor UTF-8 text.
	ErrUnsupportedDocument = errors.New("unsupported document type")
	// ErrNoText indicates a readable document that contains no text.
	ErrNoText = errors.New("no text could be extracted from the document")
)

// Sniff classifies content by its leading bytes. Known binary formats other
// than PDF are rejected; unknown content is accepted as text when it is valid UTF-8.
func Sniff(head []byte) (Kind, error) {
	kind, _ := filetype.Match(head)

	switch {
	case kind.Extension == "pdf":
		return KindPDF, nil
	case kind != filetype.Unknown:
		return "", fmt.Errorf(errFmtUnsupported, ErrUnsupportedDocument, kind.MIME.Value)
	case utf8.Valid(trimPartialRune(head)):
		return KindText, nil
	default:
		return "", fmt.Errorf(errFmtUnsupported, ErrUnsupportedDocument, "binary data")
	}
}

// SniffFile reads the head of a file and classifies it.
func SniffFile(path string) (Kind, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer file.Close()

	head := make([]byte, sniffLength)

	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	return Sniff(head[:n])
}

// Extractor implements core.DocumentExtractor for PDF and plain-text documents.
type Extractor struct {
	normalizer *Normalizer
	log        *logger.Logger
}

// New creates an extractor.
func New(log *logger.Logger) *Extractor {
	return &Extractor{normalizer: NewNormalizer(), log: log}
}

// Extract returns the normalized text of the document at documentPath. Every
// failure, including a document without text, wraps core.ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, documentPath string) (string, error) {
	kind, err := SniffFile(documentPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrExtraction, err)
	}

	var raw string

	switch kind {
	case KindPDF:
		raw, err = extractPDF(ctx, documentPath)
	case KindText:
		raw, err = extractText(documentPath)
	}

	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrExtraction, err)
	}

	text := e.normalizer.Normalize(raw)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %w", core.ErrExtraction, ErrNoText)
	}

	e.log.Info(logFmtExtracted, utf8.RuneCountInString(text), kind, documentPath)

	return text, nil
}

func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read text document: %w", err)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf(errFmtUnsupported, ErrUnsupportedDocument, "text is not valid UTF-8")
	}

	return strings.TrimPrefix(string(data), "\ufeff"), nil
}

// trimPartialRune drops a multi-byte rune cut off by the sniff window.
func trimPartialRune(head []byte) []byte {
	for cut := 0; cut < utf8.UTFMax && cut < len(head); cut++ {
		if utf8.Valid(head[:len(head)-cut]) {
			return head[:len(head)-cut]
		}
	}

	return head
}
