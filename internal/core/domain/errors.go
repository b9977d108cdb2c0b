package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the conversion pipeline and the history store.
var (
	ErrInputDecode         = errors.New("domain: input could not be decoded")
	ErrDetectionModel      = errors.New("domain: detection model unavailable")
	ErrClassificationModel = errors.New("domain: classification model unavailable")
	ErrSynthesisEngine     = errors.New("domain: synthesis engine failed")
	ErrAggregation         = errors.New("domain: inconsistent audio segments")
	ErrPersistence         = errors.New("domain: persistence failure")
	ErrNotFound            = errors.New("domain: not found")

	// ErrNothingToTranscribe marks an image with no detected glyphs. It is
	// recoverable: the file contributes an empty score.
	ErrNothingToTranscribe = errors.New("domain: no glyphs detected")
)

// Stage names used in StageError.
const (
	StageDecode     = "decode"
	StageDetect     = "detect"
	StageClassify   = "classify"
	StageEncode     = "encode"
	StageSynthesize = "synthesize"
	StageAggregate  = "aggregate"
)

// StageError records which upload failed and at which pipeline stage.
type StageError struct {
	Stage string
	File  string
	Index int
	Err   error
}

func (e *StageError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s failed for file %d (%q): %v", e.Stage, e.Index, e.File, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// SynthesisEngineError carries the rendering engine's diagnostic output.
type SynthesisEngineError struct {
	Output  string
	Timeout bool
	Err     error
}

func (e *SynthesisEngineError) Error() string {
	msg := "synthesis engine failed"
	if e.Timeout {
		msg = "synthesis engine timed out"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *SynthesisEngineError) Is(target error) bool {
	return target == ErrSynthesisEngine
}

func (e *SynthesisEngineError) Unwrap() error {
	return e.Err
}
