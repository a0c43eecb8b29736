package model

import (
	"fmt"
	"regexp"
	"strconv"
)

var restartArtifactPattern = regexp.MustCompile(`^(.+)_d(\d{2})_(\d{4}-\d{2}-\d{2}_\d{2}[:_]\d{2}[:_]\d{2})$`)

// RestartArtifact identifies a file that lets the next step resume the simulation state.
// File names follow prefix_d<NN>_<timestamp>.
type RestartArtifact struct {
	Prefix    string
	Domain    int
	Timestamp string
}

// Name returns the canonical file name of the artifact.
func (a RestartArtifact) Name() string {
	return fmt.Sprintf("%s_d%02d_%s", a.Prefix, a.Domain, NormalizeTimestamp(a.Timestamp))
}

// Matches reports whether the artifact has the given prefix and timestamp.
func (a RestartArtifact) Matches(prefix, timestamp string) bool {
	return a.Prefix == prefix && SameTimestamp(a.Timestamp, timestamp)
}

// ParseRestartArtifact parses a file name into a RestartArtifact.
func ParseRestartArtifact(name string) (RestartArtifact, bool) {
	m := restartArtifactPattern.FindStringSubmatch(name)
	if m == nil {
		return RestartArtifact{}, false
	}
	domain, err := strconv.Atoi(m[2])
	if err != nil {
		return RestartArtifact{}, false
	}
	return RestartArtifact{Prefix: m[1], Domain: domain, Timestamp: NormalizeTimestamp(m[3])}, true
}
