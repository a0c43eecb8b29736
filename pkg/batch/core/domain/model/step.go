package model

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the fixed 19-character timestamp format used in step tables and artifact names.
const TimestampLayout = "2006-01-02_15:04:05"

// NormalizeTimestamp maps the underscore-delimited time variant ("2006-01-02_15_04_05") to the
// colon-delimited canonical form. Other strings are returned unchanged.
func NormalizeTimestamp(ts string) string {
	if len(ts) != len(TimestampLayout) || ts[10] != '_' {
		return ts
	}
	b := []byte(ts)
	if b[13] == '_' {
		b[13] = ':'
	}
	if b[16] == '_' {
		b[16] = ':'
	}
	return string(b)
}

// ParseTimestamp parses a step timestamp, accepting colon or underscore time separators.
func ParseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, NormalizeTimestamp(strings.Trim(ts, `'"`)))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	return t, nil
}

// FormatTimestamp formats t in the canonical colon-delimited layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// SameTimestamp compares two timestamps treating colon and underscore separators as equivalent.
func SameTimestamp(a, b string) bool {
	return NormalizeTimestamp(a) == NormalizeTimestamp(b)
}

// Step is one time window of the simulation. It is immutable once written to the step table.
type Step struct {
	ID    string
	Start time.Time
	End   time.Time
}

// StartTimestamp returns the canonical start timestamp.
func (s Step) StartTimestamp() string { return FormatTimestamp(s.Start) }

// EndTimestamp returns the canonical end timestamp.
func (s Step) EndTimestamp() string { return FormatTimestamp(s.End) }

// Duration returns the length of the window.
func (s Step) Duration() time.Duration { return s.End.Sub(s.Start) }

// IsZero reports whether s is the empty step.
func (s Step) IsZero() bool { return s.ID == "" }

// StepTable is the ordered list of steps of one experiment. Order is chronological and IDs are unique.
type StepTable struct {
	Steps []Step
}

// Len returns the number of steps.
func (t StepTable) Len() int { return len(t.Steps) }

// Index returns the position of id, or -1.
func (t StepTable) Index(id string) int {
	for i, s := range t.Steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Lookup returns the step with the given id.
func (t StepTable) Lookup(id string) (Step, bool) {
	if i := t.Index(id); i >= 0 {
		return t.Steps[i], true
	}
	return Step{}, false
}

// First returns the first step, or the empty step for an empty table.
func (t StepTable) First() Step {
	if len(t.Steps) == 0 {
		return Step{}
	}
	return t.Steps[0]
}

// Last returns the last step, or the empty step for an empty table.
func (t StepTable) Last() Step {
	if len(t.Steps) == 0 {
		return Step{}
	}
	return t.Steps[len(t.Steps)-1]
}
