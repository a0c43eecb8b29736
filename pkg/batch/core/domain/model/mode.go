package model

import (
	"fmt"
	"strings"
)

// Mode selects how CycleDriver stages a working directory.
type Mode string

const (
	// ModeFresh runs terrain preprocessing and a complete static-input backup; no restart linkage.
	ModeFresh Mode = "FRESH"
	// ModeRestart links the predecessor's restart artifacts into the working directory.
	ModeRestart Mode = "RESTART"
	// ModeNoGeo skips terrain preprocessing.
	ModeNoGeo Mode = "NOGEO"
	// ModeNoStat skips terrain preprocessing and the static backup.
	ModeNoStat Mode = "NOSTAT"
	// ModeClean purges every other step directory, preserving only the configuration of the step to run.
	ModeClean Mode = "CLEAN"
)

// String returns the string representation of the Mode.
func (m Mode) String() string {
	return string(m)
}

// ParseMode parses a mode name case-insensitively. The empty string yields the empty mode (auto-select).
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case "", ModeFresh, ModeRestart, ModeNoGeo, ModeNoStat, ModeClean:
		return m, nil
	}
	return "", fmt.Errorf("unknown cycle mode %q", s)
}
