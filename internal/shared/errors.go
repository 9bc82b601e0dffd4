package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrAlbumNotFound      = fmt.Errorf("album not found")

	// Pipeline errors
	ErrInputAmbiguous         = fmt.Errorf("input ambiguous")
	ErrUpstreamUnavailable    = fmt.Errorf("upstream catalog unavailable")
	ErrClassificationDegraded = fmt.Errorf("classification degraded")
	ErrSessionExpired         = fmt.Errorf("session expired, please restart")
	ErrAssemblyStepFailed     = fmt.Errorf("assembly step failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// AssemblyError reports the orchestrator step that aborted a playlist assembly.
//
// It matches both [ErrAssemblyStepFailed] and the underlying cause with [errors.Is].
type AssemblyError struct {
	Step string
	Err  error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrAssemblyStepFailed, e.Step, e.Err)
}

func (e *AssemblyError) Unwrap() []error {
	return []error{ErrAssemblyStepFailed, e.Err}
}

// StepFailed wraps err as an [AssemblyError] for step.
func StepFailed(step string, err error) error {
	return &AssemblyError{Step: step, Err: err}
}

// FailedStep returns the step name carried by err, if any.
func FailedStep(err error) (string, bool) {
	var ae *AssemblyError
	if errors.As(err, &ae) {
		return ae.Step, true
	}
	return "", false
}
