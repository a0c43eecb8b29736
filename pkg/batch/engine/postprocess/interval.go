// Package postprocess decides at each step boundary which aggregation jobs to dispatch.
package postprocess

import "strings"

// Aggregation intervals understood by CheckInterval.
const (
	Yearly  = "YEARLY"
	Monthly = "MONTHLY"
	Daily   = "DAILY"
)

// prefixLen is the length of the date prefix identifying one aggregation unit.
var prefixLen = map[string]int{Yearly: 4, Monthly: 7, Daily: 10}

// CheckInterval returns the tag of the aggregation unit that ends between current and next, or "" when
// both lie in the same unit. An empty next ends every unit, so the last step always yields a tag. An
// unrecognised interval tags every step with current.
func CheckInterval(interval, current, next string) string {
	if current == "" {
		return ""
	}
	n, ok := prefixLen[strings.ToUpper(strings.TrimSpace(interval))]
	if !ok {
		return current
	}
	tag := unit(current, n)
	if tag == unit(next, n) {
		return ""
	}
	return tag
}

func unit(id string, n int) string {
	if len(id) < n {
		return id
	}
	return id[:n]
}
