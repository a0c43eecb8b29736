// Package exception provides the error taxonomy of the cycling orchestrator.
// Every failure surfaced by a component is a CycleError carrying a Kind, which decides
// whether the chain may recover automatically and how the failure is counted in exit codes.
package exception

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/hashicorp/go-multierror"
)

// Kind classifies a CycleError.
type Kind string

const (
	// KindConfig marks a malformed or inconsistent step table or configuration. Fatal.
	KindConfig Kind = "ConfigError"
	// KindPreprocessing marks a preprocessing job that did not reach success. Fatal for the chain.
	KindPreprocessing Kind = "PreprocessingFailure"
	// KindNumericalInstability marks a simulation that blew up numerically. Recoverable.
	KindNumericalInstability Kind = "NumericalInstability"
	// KindEnvironmentalTransient marks a runtime fault of the environment (interconnect, launcher). Recoverable.
	KindEnvironmentalTransient Kind = "EnvironmentalTransient"
	// KindSegFault marks a low-level fault of the simulation executable. Fatal.
	KindSegFault Kind = "SegFault"
	// KindUnknown marks a simulation that ended without any recognised marker. Fatal.
	KindUnknown Kind = "Unknown"
	// KindSubmission marks a failure to talk to the batch system.
	KindSubmission Kind = "SubmissionError"
	// KindIO marks a file system failure on the shared experiment tree.
	KindIO Kind = "IOError"
	// KindRecoveryExhausted marks a failed step that crash recovery gave up on. Fatal.
	KindRecoveryExhausted Kind = "RecoveryExhausted"
)

// IsRecoverable reports whether the kind allows an automatic retry of the same step.
func (k Kind) IsRecoverable() bool {
	return k == KindNumericalInstability || k == KindEnvironmentalTransient
}

// CycleError is the error type returned by all cycling components.
type CycleError struct {
	// Module indicates the component where the error occurred (e.g., "stepseq", "recovery", "chain").
	Module string
	// Kind is the taxonomy class of the error.
	Kind Kind
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewCycleError creates a new CycleError.
//
// Parameters:
//
//	module: The component where the error occurred.
//	kind: The taxonomy class.
//	message: The error message.
//	originalErr: The original error to wrap, may be nil.
func NewCycleError(module string, kind Kind, message string, originalErr error) *CycleError {
	return &CycleError{
		Module:      module,
		Kind:        kind,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
	}
}

// NewCycleErrorf creates a new CycleError using a format string.
// If the last argument is an error it is wrapped as OriginalErr and not used for formatting.
//
// Example:
//
//	NewCycleErrorf("stepseq", KindConfig, "step '%s' not found in %s", id, path)
//	NewCycleErrorf("driver", KindIO, "failed to link %s", name, err)
func NewCycleErrorf(module string, kind Kind, format string, a ...interface{}) *CycleError {
	var originalErr error
	args := a
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	return &CycleError{
		Module:      module,
		Kind:        kind,
		Message:     fmt.Sprintf(format, args...),
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
	}
}

// ConfigErrorf is a shorthand for NewCycleErrorf with KindConfig.
func ConfigErrorf(module, format string, a ...interface{}) *CycleError {
	return NewCycleErrorf(module, KindConfig, format, a...)
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Module, e.Kind, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Module, e.Kind, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *CycleError) Unwrap() error {
	return e.OriginalErr
}

// IsRecoverable returns whether this error allows an automatic retry.
func (e *CycleError) IsRecoverable() bool {
	return e.Kind.IsRecoverable()
}

// KindOf returns the Kind of the first CycleError found in err's chain.
// Errors that are not CycleErrors are reported as KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsKind reports whether err, or any error aggregated in it, is a CycleError of the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			if IsKind(e, kind) {
				return true
			}
		}
		return false
	}
	var ce *CycleError
	return errors.As(err, &ce) && ce.Kind == kind
}

// IsRecoverable reports whether err may be retried automatically.
// Aggregated errors are recoverable only if every member is.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		if len(merr.Errors) == 0 {
			return false
		}
		for _, e := range merr.Errors {
			if !IsRecoverable(e) {
				return false
			}
		}
		return true
	}
	var ce *CycleError
	return errors.As(err, &ce) && ce.IsRecoverable()
}

// ErrorCount returns the number of detected errors carried by err.
// A *multierror.Error contributes the count of its (recursively flattened) members.
func ErrorCount(err error) int {
	if err == nil {
		return 0
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		n := 0
		for _, e := range merr.Errors {
			n += ErrorCount(e)
		}
		return n
	}
	return 1
}

// ExitCode maps err to a process exit code: 0 on success, otherwise the accumulated error count.
func ExitCode(err error) int {
	n := ErrorCount(err)
	if err != nil && n == 0 {
		return 1
	}
	return n
}

// Append aggregates errs into dst, skipping nils. It returns nil if nothing was aggregated.
func Append(dst error, errs ...error) error {
	var merr *multierror.Error
	if dst != nil {
		merr = multierror.Append(merr, dst)
	}
	for _, e := range errs {
		if e != nil {
			merr = multierror.Append(merr, e)
		}
	}
	return merr.ErrorOrNil()
}

// ExtractErrorMessage returns the clean Message of a CycleError, or err.Error() otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}
