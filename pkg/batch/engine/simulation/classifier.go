package simulation

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
)

// MarkerClassifier classifies an attempt from text markers in its logs, in the order
// success, numerical instability, segmentation fault, unknown.
type MarkerClassifier struct {
	markers config.MarkersConfig
}

// NewMarkerClassifier creates a MarkerClassifier.
func NewMarkerClassifier(markers config.MarkersConfig) *MarkerClassifier {
	return &MarkerClassifier{markers: markers}
}

// Classify scans the logs. Instability markers are searched in the rank logs only; fault markers in
// every log; transient signatures in the captured job output only.
func (c *MarkerClassifier) Classify(ctx context.Context, logs port.RunLogs) (model.RunResult, error) {
	m := c.markers
	res := model.RunResult{Outcome: model.OutcomeUnknown, Logs: logs.All()}

	primary, err := scan(logs.Primary, m.Success, m.MainLoop)
	if err != nil {
		return res, err
	}
	res.MainLoopEntered = primary[m.MainLoop]

	if out, err := scan(logs.Output, m.TransientFault...); err != nil {
		return res, err
	} else if hit := firstHit(out, m.TransientFault); hit != "" {
		res.TransientFault = true
		res.Detail = "transient fault: " + hit
	}

	if primary[m.Success] {
		res.Outcome = model.OutcomeSuccess
		res.Detail = m.Success
		return res, nil
	}

	rankLogs := logs.RankLogs
	if len(rankLogs) == 0 && logs.Primary != "" {
		rankLogs = []string{logs.Primary}
	}
	for _, p := range rankLogs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		hits, err := scan(p, append(append([]string{}, m.Instability...), m.SegFault...)...)
		if err != nil {
			return res, err
		}
		if hit := firstHit(hits, m.Instability); hit != "" {
			res.Outcome = model.OutcomeNumericalInstability
			res.Detail = hit + " in " + filepath.Base(p)
			return res, nil
		}
		if hit := firstHit(hits, m.SegFault); hit != "" && res.Outcome == model.OutcomeUnknown {
			res.Outcome = model.OutcomeSegFault
			res.Detail = hit + " in " + filepath.Base(p)
		}
	}
	if res.Outcome == model.OutcomeUnknown {
		out, err := scan(logs.Output, m.SegFault...)
		if err != nil {
			return res, err
		}
		if hit := firstHit(out, m.SegFault); hit != "" {
			res.Outcome = model.OutcomeSegFault
			res.Detail = hit + " in " + filepath.Base(logs.Output)
		}
	}
	return res, nil
}

func firstHit(hits map[string]bool, markers []string) string {
	for _, m := range markers {
		if m != "" && hits[m] {
			return m
		}
	}
	return ""
}

// scan reports which of the markers occur in the file at path. A missing file matches nothing.
func scan(path string, markers ...string) (map[string]bool, error) {
	hits := make(map[string]bool, len(markers))
	if path == "" || len(markers) == 0 {
		return hits, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return hits, nil
	}
	if err != nil {
		return hits, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot open %s", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	remaining := 0
	for _, m := range markers {
		if m != "" {
			remaining++
		}
	}
	for sc.Scan() && remaining > 0 {
		line := sc.Text()
		for _, m := range markers {
			if m != "" && !hits[m] && strings.Contains(line, m) {
				hits[m] = true
				remaining--
			}
		}
	}
	if err := sc.Err(); err != nil {
		return hits, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot read %s", path, err)
	}
	return hits, nil
}

// runResultFile is the structured result some simulation wrappers write next to their logs.
type runResultFile struct {
	Outcome         string `json:"outcome"`
	MainLoopEntered bool   `json:"main_loop_entered"`
	TransientFault  bool   `json:"transient_fault"`
	Detail          string `json:"detail"`
}

// ResultFileClassifier reads a JSON result file from the working directory and falls back to
// marker classification when the file is absent.
type ResultFileClassifier struct {
	name     string
	fallback port.OutcomeClassifier
}

// NewResultFileClassifier creates a ResultFileClassifier reading name.
func NewResultFileClassifier(name string, fallback port.OutcomeClassifier) *ResultFileClassifier {
	return &ResultFileClassifier{name: name, fallback: fallback}
}

// Classify implements port.OutcomeClassifier.
func (c *ResultFileClassifier) Classify(ctx context.Context, logs port.RunLogs) (model.RunResult, error) {
	path := filepath.Join(logs.WorkDir, c.name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c.fallback.Classify(ctx, logs)
	}
	if err != nil {
		return model.RunResult{}, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot read %s", path, err)
	}
	var rf runResultFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return model.RunResult{}, exception.NewCycleErrorf(moduleName, exception.KindUnknown, "malformed result file %s", path, err)
	}
	outcome := model.Outcome(strings.ToUpper(rf.Outcome))
	switch outcome {
	case model.OutcomeSuccess, model.OutcomeNumericalInstability, model.OutcomeSegFault:
	default:
		outcome = model.OutcomeUnknown
	}
	return model.RunResult{
		Outcome:         outcome,
		MainLoopEntered: rf.MainLoopEntered,
		TransientFault:  rf.TransientFault,
		Logs:            append(logs.All(), path),
		Detail:          rf.Detail,
	}, nil
}

// NewClassifier returns the classifier named by simulation.classifier.
func NewClassifier(cfg *config.Config) (port.OutcomeClassifier, error) {
	sim := cfg.Wrfcycle.Simulation
	markers := NewMarkerClassifier(sim.Markers)
	switch strings.ToLower(sim.Classifier) {
	case "", "marker":
		return markers, nil
	case "result_file":
		return NewResultFileClassifier(sim.Markers.ResultFile, markers), nil
	default:
		return nil, exception.ConfigErrorf(moduleName, "unknown simulation.classifier '%s'", sim.Classifier)
	}
}

var (
	_ port.OutcomeClassifier = (*MarkerClassifier)(nil)
	_ port.OutcomeClassifier = (*ResultFileClassifier)(nil)
)
