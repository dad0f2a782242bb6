package pipeline

import (
	"errors"
	"fmt"
)

// ErrPipelineProcessing and ErrPipelineConstruction are the sentinels
// wrapped by PipelineProcessingError and PipelineConstructionError.
var (
	ErrPipelineProcessing   = errors.New("pipeline processing error")
	ErrPipelineConstruction = errors.New("pipeline construction error")
)

// ProcessingError wraps a per-frame pipeline failure. It is recoverable:
// the worker reports it as the result slot's last error and continues.
type ProcessingError struct {
	PipelineID string
	Err        error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.PipelineID, e.Err)
}
func (e *ProcessingError) Unwrap() error { return e.Err }
func (e *ProcessingError) Is(target error) bool {
	return target == ErrPipelineProcessing
}

// ConstructionError wraps an unsupported pipeline_type or invalid config
// at worker construction time. It is fatal to that one worker only: the
// worker aborts cleanly, is never retried, and the error is surfaced in
// the result slot.
type ConstructionError struct {
	PipelineID   string
	PipelineType string
	Err          error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("pipeline %s (type=%s): %v", e.PipelineID, e.PipelineType, e.Err)
}
func (e *ConstructionError) Unwrap() error { return e.Err }
func (e *ConstructionError) Is(target error) bool {
	return target == ErrPipelineConstruction
}
