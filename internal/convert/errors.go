package convert

import (
	"errors"
	"fmt"
)

// Sentinel failures surfaced inside StageError values.
var (
	ErrDisallowedExtension = errors.New("file type not allowed")
	ErrNoAudio             = errors.New("no audio stream found")
	ErrArtifactMissing     = errors.New("artifact not found")
	ErrQueueFull           = errors.New("job queue is full")
)

// Stage names a pipeline step for error reporting and metrics.
type Stage string

// Pipeline stages.
const (
	StageAcquire Stage = "acquire"
	StageUpload  Stage = "upload"
	StageCleanup Stage = "cleanup"
)

// StageError is a non-fatal failure of one pipeline stage.
type StageError struct {
	Stage Stage
	Kind  string
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewStageError builds a StageError.
func NewStageError(stage Stage, kind string, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// ErrorKind returns the StageError kind of err or "unknown".
func ErrorKind(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}
	return "unknown"
}
