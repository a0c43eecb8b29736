package model

// Outcome is the classified result of one simulation attempt.
type Outcome string

const (
	OutcomeSuccess              Outcome = "SUCCESS"
	OutcomeNumericalInstability Outcome = "NUMERICAL_INSTABILITY"
	OutcomeSegFault             Outcome = "SEGFAULT"
	OutcomeUnknown              Outcome = "UNKNOWN"
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	return string(o)
}

// CompletionState is what a CompletionSignal reports about a job.
type CompletionState string

const (
	CompletionPending CompletionState = "PENDING"
	CompletionSuccess CompletionState = "SUCCESS"
	CompletionFailure CompletionState = "FAILURE"
)

// String returns the string representation of the CompletionState.
func (s CompletionState) String() string {
	return string(s)
}

// IsTerminal reports whether the state will not change anymore.
func (s CompletionState) IsTerminal() bool {
	return s == CompletionSuccess || s == CompletionFailure
}

// RunResult is what SimulationRunner hands to the recovery and chaining decisions.
type RunResult struct {
	Step    string
	Outcome Outcome
	// MainLoopEntered is true when the primary log shows the model started time-stepping.
	MainLoopEntered bool
	// TransientFault is true when the captured job output carries a transient runtime-fault signature.
	TransientFault bool
	// Logs lists the log files that were classified, primary log first.
	Logs []string
	// Archive is the consolidated log archive written to the working directory.
	Archive string
	// Detail is a short human-readable reason (matched marker or file).
	Detail string
}
