package services

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTaskKind    = errors.New("unknown task kind")
	ErrInvalidParameters  = errors.New("invalid task parameters")
	ErrTaskNotFound       = errors.New("task not found")
	ErrTaskCancelled      = errors.New("task cancelled")
	ErrTaskNotCompleted   = errors.New("task not completed")
	ErrTaskFailed         = errors.New("task failed")
	ErrUnknownApproach    = errors.New("unknown research approach")
	ErrUnknownPhase       = errors.New("unknown research phase")
	ErrStrategyNotFound   = errors.New("strategy not found")
	ErrResearchCancelled  = errors.New("research cancelled")
	ErrNoAnalysisProvider = errors.New("no analysis provider configured")
	ErrReportUnavailable  = errors.New("report not available")
)

// EnqueueError is returned synchronously by Enqueue when a task cannot be accepted.
// It is never stored as task state.
type EnqueueError struct {
	Kind   string
	Reason string
	err    error
}

func (e *EnqueueError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("enqueue %s: %v", e.Kind, e.err)
	}
	return fmt.Sprintf("enqueue %s: %v: %s", e.Kind, e.err, e.Reason)
}

func (e *EnqueueError) Unwrap() error {
	return e.err
}

func newEnqueueError(kind string, sentinel error, reason string) error {
	return &EnqueueError{Kind: kind, Reason: reason, err: sentinel}
}

// IsEnqueueError returns true if err was produced while validating an enqueue request.
func IsEnqueueError(err error) bool {
	var enqueueErr *EnqueueError
	return errors.As(err, &enqueueErr)
}

// AnalysisFailure means an analysis collaborator could not produce a result.
type AnalysisFailure struct {
	Collaborator string // e.g. "openai", "template"
	Operation    string // phase or task kind
	err          error
}

func (e *AnalysisFailure) Error() string {
	return fmt.Sprintf("%s analysis failed (%s): %v", e.Operation, e.Collaborator, e.err)
}

func (e *AnalysisFailure) Unwrap() error {
	return e.err
}

// NewAnalysisFailure wraps a collaborator error. Wrapping an AnalysisFailure returns it unchanged.
func NewAnalysisFailure(collaborator, operation string, err error) error {
	if err == nil {
		return nil
	}
	if IsAnalysisFailure(err) {
		return err
	}
	return &AnalysisFailure{Collaborator: collaborator, Operation: operation, err: err}
}

// IsAnalysisFailure returns true if err came from an analysis collaborator.
func IsAnalysisFailure(err error) bool {
	var failure *AnalysisFailure
	return errors.As(err, &failure)
}
