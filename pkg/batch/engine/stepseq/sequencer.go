// Package stepseq derives and reads the ordered step table of an experiment.
package stepseq

import (
	"time"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
)

const moduleName = "stepseq"

// Options tunes step generation.
type Options struct {
	// NoLeap moves window boundaries falling on Feb 29 to Mar 1 and clamps month arithmetic to Feb 28.
	NoLeap bool
}

// Generate partitions [begin, end) into consecutive windows of the given interval, naming each step
// by its start date. The last window is truncated at end. The result depends only on the inputs.
func Generate(begin, end time.Time, interval Interval, opts Options) (model.StepTable, error) {
	begin, end = begin.UTC(), end.UTC()
	if !end.After(begin) {
		return model.StepTable{}, exception.ConfigErrorf(moduleName, "end %s must be after begin %s",
			model.FormatTimestamp(end), model.FormatTimestamp(begin))
	}
	return build(begin, interval, opts, func(k int, start, stop time.Time) (time.Time, bool) {
		if !stop.Before(end) {
			return end, true
		}
		return stop, false
	})
}

// GenerateN produces exactly count windows starting at begin.
func GenerateN(begin time.Time, count int, interval Interval, opts Options) (model.StepTable, error) {
	if count <= 0 {
		return model.StepTable{}, exception.ConfigErrorf(moduleName, "step count must be positive, got %d", count)
	}
	return build(begin.UTC(), interval, opts, func(k int, start, stop time.Time) (time.Time, bool) {
		return stop, k == count
	})
}

// build walks boundaries from begin; next decides the end of window k (1-based) and whether it is the last.
func build(begin time.Time, interval Interval, opts Options, next func(k int, start, stop time.Time) (time.Time, bool)) (model.StepTable, error) {
	if interval.N <= 0 {
		return model.StepTable{}, exception.ConfigErrorf(moduleName, "invalid interval %s", interval)
	}
	adjust := func(t time.Time) time.Time { return t }
	if opts.NoLeap {
		adjust = skipLeapDay
	}

	var table model.StepTable
	anchor := adjust(begin)
	start := anchor
	for i := 1; ; i++ {
		stop, last := next(table.Len()+1, start, adjust(interval.boundary(anchor, i, opts.NoLeap)))
		// Boundaries collapsed by the no-leap shift produce no window.
		if !stop.After(start) {
			if !last {
				continue
			}
			if table.Len() == 0 {
				return table, exception.ConfigErrorf(moduleName, "no window left between %s and %s after the no-leap shift",
					model.FormatTimestamp(begin), model.FormatTimestamp(stop))
			}
			return table, nil
		}
		table.Steps = append(table.Steps, model.Step{
			ID:    start.Format(interval.nameLayout()),
			Start: start,
			End:   stop,
		})
		start = stop
		if last {
			return table, nil
		}
	}
}

// Predecessor returns the ID immediately preceding id, or "" for the first step.
// An id absent from the table is a ConfigError.
func Predecessor(table model.StepTable, id string) (string, error) {
	i := table.Index(id)
	if i < 0 {
		return "", exception.ConfigErrorf(moduleName, "step '%s' not found in step table", id)
	}
	if i == 0 {
		return "", nil
	}
	return table.Steps[i-1].ID, nil
}

// Successor returns the ID immediately following id, or "" for the last step.
// An id absent from the table is a ConfigError.
func Successor(table model.StepTable, id string) (string, error) {
	i := table.Index(id)
	if i < 0 {
		return "", exception.ConfigErrorf(moduleName, "step '%s' not found in step table", id)
	}
	if i == table.Len()-1 {
		return "", nil
	}
	return table.Steps[i+1].ID, nil
}
