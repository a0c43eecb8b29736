package stepseq

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
)

// FormatTable writes the table in the step file layout: one `id  'start'  'end'` row per step.
func FormatTable(w io.Writer, table model.StepTable) error {
	bw := bufio.NewWriter(w)
	for _, s := range table.Steps {
		if _, err := fmt.Fprintf(bw, "%s   '%s'  '%s'\n", s.ID, s.StartTimestamp(), s.EndTimestamp()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ParseTable reads a step table. Blank lines and lines starting with '#' are ignored.
// Rows must be chronological, contiguous and uniquely named.
func ParseTable(r io.Reader) (model.StepTable, error) {
	var table model.StepTable
	seen := make(map[string]int)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		fields := strings.Fields(raw)
		if len(fields) != 3 {
			return model.StepTable{}, exception.ConfigErrorf(moduleName, "line %d: expected 3 fields, got %d", lineNo, len(fields))
		}
		start, err := model.ParseTimestamp(fields[1])
		if err != nil {
			return model.StepTable{}, exception.ConfigErrorf(moduleName, "line %d: bad start", lineNo, err)
		}
		end, err := model.ParseTimestamp(fields[2])
		if err != nil {
			return model.StepTable{}, exception.ConfigErrorf(moduleName, "line %d: bad end", lineNo, err)
		}
		step := model.Step{ID: fields[0], Start: start, End: end}
		if !step.End.After(step.Start) {
			return model.StepTable{}, exception.ConfigErrorf(moduleName, "line %d: step '%s' ends before it starts", lineNo, step.ID)
		}
		if prev, dup := seen[step.ID]; dup {
			return model.StepTable{}, exception.ConfigErrorf(moduleName, "line %d: step '%s' already defined on line %d", lineNo, step.ID, prev)
		}
		if last := table.Last(); !last.IsZero() && !last.End.Equal(step.Start) {
			return model.StepTable{}, exception.ConfigErrorf(moduleName, "line %d: step '%s' does not start where '%s' ends", lineNo, step.ID, last.ID)
		}
		seen[step.ID] = lineNo
		table.Steps = append(table.Steps, step)
	}
	if err := sc.Err(); err != nil {
		return model.StepTable{}, exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to read step table", err)
	}
	if table.Len() == 0 {
		return model.StepTable{}, exception.ConfigErrorf(moduleName, "step table is empty")
	}
	return table, nil
}

// ReadTable loads the step table at path.
func ReadTable(path string) (model.StepTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.StepTable{}, exception.ConfigErrorf(moduleName, "cannot open step table %s", path, err)
	}
	defer f.Close()
	return ParseTable(f)
}

// WriteTable writes table to path atomically.
func WriteTable(path string, table model.StepTable) error {
	var buf bytes.Buffer
	if err := FormatTable(&buf, table); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to format step table", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to create %s", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to write %s", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to replace %s", path, err)
	}
	return nil
}

// Equal reports whether two tables define the same steps.
func Equal(a, b model.StepTable) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := range a.Steps {
		x, y := a.Steps[i], b.Steps[i]
		if x.ID != y.ID || !x.Start.Equal(y.Start) || !x.End.Equal(y.End) {
			return false
		}
	}
	return true
}

var errNoTable = errors.New("step table not generated yet")
