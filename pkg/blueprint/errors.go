package blueprint

import (
	"errors"
	"fmt"
)

// Pipeline step names carried by StepError.
const (
	StepScan      = "scan"
	StepReconcile = "reconcile"
	StepSanitize  = "sanitize"
	StepBuild     = "build"
)

// ErrTokenExpired indicates the file token is unknown or its scan session
// has aged out. The caller has to re-scan.
var ErrTokenExpired = errors.New("file token expired or unknown")

// ErrMappingIncomplete indicates unrecognized headers remain unconfirmed
// while complete mappings were required.
var ErrMappingIncomplete = errors.New("column mapping incomplete")

// StepError reports which pipeline stage a failure happened in.
type StepError struct {
	Step string // "scan", "reconcile", "sanitize", "build"
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("blueprint %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError wraps err with the pipeline step it occurred in.
func NewStepError(step string, err error) *StepError {
	return &StepError{Step: step, Err: err}
}
