package stepseq

import (
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// Sequencer serves the step table of one experiment, reading the step file once.
type Sequencer struct {
	cfg  *config.Config
	path string

	mu    sync.Mutex
	table *model.StepTable
}

// NewSequencer creates a Sequencer over the configured step file.
func NewSequencer(cfg *config.Config) *Sequencer {
	return &Sequencer{cfg: cfg, path: cfg.StepFilePath()}
}

// Path returns the step file location.
func (s *Sequencer) Path() string { return s.path }

// Init generates the step table from the sequence settings and writes it unless an identical
// table already exists. A differing existing table is a ConfigError: steps are immutable once written.
func (s *Sequencer) Init() (model.StepTable, error) {
	seq := s.cfg.Wrfcycle.Sequence
	interval, err := ParseInterval(seq.Interval)
	if err != nil {
		return model.StepTable{}, exception.ConfigErrorf(moduleName, "sequence.interval", err)
	}
	begin, err := model.ParseTimestamp(seq.Begin)
	if err != nil {
		return model.StepTable{}, exception.ConfigErrorf(moduleName, "sequence.begin", err)
	}
	opts := Options{NoLeap: !s.cfg.Wrfcycle.Experiment.LeapYears}

	var table model.StepTable
	if seq.Steps > 0 {
		table, err = GenerateN(begin, seq.Steps, interval, opts)
	} else {
		end, perr := model.ParseTimestamp(seq.End)
		if perr != nil {
			return model.StepTable{}, exception.ConfigErrorf(moduleName, "sequence.end", perr)
		}
		table, err = Generate(begin, end, interval, opts)
	}
	if err != nil {
		return model.StepTable{}, err
	}

	existing, err := s.load()
	switch {
	case err == nil:
		if !Equal(existing, table) {
			return model.StepTable{}, exception.ConfigErrorf(moduleName,
				"step table %s already exists with different steps; remove it to regenerate", s.path)
		}
		logger.Infof("Step table %s is up to date (%d steps).", s.path, table.Len())
		return existing, nil
	case !errors.Is(err, errNoTable):
		return model.StepTable{}, err
	}

	if err := WriteTable(s.path, table); err != nil {
		return model.StepTable{}, err
	}
	logger.Infof("Wrote %d steps (%s to %s) to %s.", table.Len(),
		table.First().StartTimestamp(), table.Last().EndTimestamp(), s.path)
	s.mu.Lock()
	s.table = &table
	s.mu.Unlock()
	return table, nil
}

func (s *Sequencer) load() (model.StepTable, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return model.StepTable{}, errNoTable
	}
	return ReadTable(s.path)
}

// Table returns the step table, reading it on first use.
func (s *Sequencer) Table() (model.StepTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table != nil {
		return *s.table, nil
	}
	t, err := s.load()
	if errors.Is(err, errNoTable) {
		return model.StepTable{}, exception.ConfigErrorf(moduleName, "step table %s does not exist", s.path)
	}
	if err != nil {
		return model.StepTable{}, err
	}
	s.table = &t
	return t, nil
}

// Step returns the step with the given id.
func (s *Sequencer) Step(id string) (model.Step, error) {
	t, err := s.Table()
	if err != nil {
		return model.Step{}, err
	}
	step, ok := t.Lookup(id)
	if !ok {
		return model.Step{}, exception.ConfigErrorf(moduleName, "step '%s' not found in %s", id, s.path)
	}
	return step, nil
}

// Predecessor returns the step preceding id, or the empty step for the first step.
func (s *Sequencer) Predecessor(id string) (model.Step, error) {
	return s.neighbour(id, Predecessor)
}

// Successor returns the step following id, or the empty step for the last step.
func (s *Sequencer) Successor(id string) (model.Step, error) {
	return s.neighbour(id, Successor)
}

func (s *Sequencer) neighbour(id string, fn func(model.StepTable, string) (string, error)) (model.Step, error) {
	t, err := s.Table()
	if err != nil {
		return model.Step{}, err
	}
	nid, err := fn(t, id)
	if err != nil || nid == "" {
		return model.Step{}, err
	}
	step, _ := t.Lookup(nid)
	return step, nil
}

// IsFirst reports whether id is the first step of the table.
func (s *Sequencer) IsFirst(id string) (bool, error) {
	prev, err := s.Predecessor(id)
	if err != nil {
		return false, err
	}
	return prev.IsZero(), nil
}
