package core

import "errors"

// Stage errors. Each pipeline stage failure is wrapped with exactly one of these
// so callers can classify a failed job with errors.Is.
var (
	// ErrExtraction indicates the source document yielded no usable text.
	ErrExtraction = errors.New("document extraction failed")
	// ErrScriptGeneration indicates the language model was unavailable, misconfigured or erroring.
	ErrScriptGeneration = errors.New("script generation failed")
	// ErrSynthesis indicates at least one utterance could not be synthesized.
	ErrSynthesis = errors.New("speech synthesis failed")
	// ErrAssembly indicates the synthesized segments could not be joined into one artifact.
	ErrAssembly = errors.New("audio assembly failed")
	// ErrPublish indicates the artifact upload or link generation failed.
	ErrPublish = errors.New("artifact publishing failed")
)
