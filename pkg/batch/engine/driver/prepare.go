package driver

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/namelist"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// PrepareStep creates the working directory of step, copies the namelist templates into it and
// writes the step's run dates. first selects a cold start. A directory that already holds both
// namelists is left untouched so that repeated allocations never reset a step in progress.
func (d *Driver) PrepareStep(step model.Step, first bool) error {
	exp := d.cfg.Wrfcycle.Experiment
	dir := d.cfg.StepDir(step.ID)
	wps := filepath.Join(dir, exp.PreprocessNamelist)
	wrf := filepath.Join(dir, exp.SimulationNamelist)
	if exists(wps) && exists(wrf) {
		logger.Debugf("Step %s already prepared in %s.", step.ID, dir)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot create %s", dir, err)
	}
	for _, name := range []string{exp.PreprocessNamelist, exp.SimulationNamelist} {
		if err := copyFile(filepath.Join(exp.IniDir, name), filepath.Join(dir, name)); err != nil {
			return exception.ConfigErrorf(moduleName, "cannot copy namelist template %s", name, err)
		}
	}

	maxDom, err := d.maxDomains(wps, wrf)
	if err != nil {
		return err
	}
	audit := "wrfcycle step " + step.ID
	if err := d.writePreprocessDates(wps, step, maxDom, audit); err != nil {
		return err
	}
	if err := d.writeSimulationDates(wrf, step, maxDom, !first, audit); err != nil {
		return err
	}
	logger.Infof("Prepared step %s in %s (%s to %s, %d domains, %s start).", step.ID, dir,
		step.StartTimestamp(), step.EndTimestamp(), maxDom, map[bool]string{true: "cold", false: "warm"}[first])
	return nil
}

func (d *Driver) maxDomains(wps, wrf string) (int, error) {
	if n := d.cfg.Wrfcycle.Experiment.MaxDomains; n > 0 {
		return n, nil
	}
	for _, nl := range []struct{ path, section string }{{wps, "share"}, {wrf, "domains"}} {
		doc, err := namelist.Load(nl.path)
		if err != nil {
			return 0, exception.ConfigErrorf(moduleName, "cannot read %s", nl.path, err)
		}
		if doc.Has(nl.section, "max_dom") {
			n, err := doc.Int(nl.section, "max_dom")
			if err != nil || n <= 0 {
				return 0, exception.ConfigErrorf(moduleName, "invalid max_dom in %s", nl.path)
			}
			return n, nil
		}
	}
	return 1, nil
}

func (d *Driver) writePreprocessDates(path string, step model.Step, maxDom int, audit string) error {
	doc, err := namelist.Load(path)
	if err != nil {
		return exception.ConfigErrorf(moduleName, "cannot read %s", path, err)
	}
	start, end := d.calendarDate(step.Start), d.calendarDate(step.End)
	if err := doc.Set("share", "start_date", namelist.Repeat(namelist.Quote(model.FormatTimestamp(start)), maxDom), audit); err != nil {
		return exception.ConfigErrorf(moduleName, "cannot set start_date", err)
	}
	if err := doc.Set("share", "end_date", namelist.Repeat(namelist.Quote(model.FormatTimestamp(end)), maxDom), audit); err != nil {
		return exception.ConfigErrorf(moduleName, "cannot set end_date", err)
	}
	return saveDoc(doc, path)
}

// RunLength splits the duration of step into days, hours, minutes and seconds. Under a no-leap
// calendar the leap days inside the window are not counted.
func (d *Driver) RunLength(step model.Step) (days, hours, minutes, seconds int) {
	total := step.Duration()
	if !d.cfg.Wrfcycle.Experiment.LeapYears {
		total -= time.Duration(leapDaysWithin(step.Start, step.End)) * 24 * time.Hour
	}
	secs := int(total / time.Second)
	days, secs = secs/86400, secs%86400
	hours, secs = secs/3600, secs%3600
	minutes, seconds = secs/60, secs%60
	return
}

// RestartInterval returns the restart output interval in minutes: the run length divided by the
// configured number of restart outputs per step. A run length that is not an integer multiple is a ConfigError.
func (d *Driver) RestartInterval(step model.Step) (int, error) {
	days, hours, minutes, _ := d.RunLength(step)
	runMinutes := days*1440 + hours*60 + minutes
	n := d.cfg.Wrfcycle.Experiment.RestartIntervals
	if n <= 0 || runMinutes%n != 0 {
		return 0, exception.ConfigErrorf(moduleName,
			"run time of step %s (%d minutes) is not an integer multiple of the restart interval count %d", step.ID, runMinutes, n)
	}
	return runMinutes / n, nil
}

func (d *Driver) writeSimulationDates(path string, step model.Step, maxDom int, warm bool, audit string) error {
	doc, err := namelist.Load(path)
	if err != nil {
		return exception.ConfigErrorf(moduleName, "cannot read %s", path, err)
	}
	rst, err := d.RestartInterval(step)
	if err != nil {
		return err
	}
	days, hours, minutes, seconds := d.RunLength(step)
	start, end := d.calendarDate(step.Start), d.calendarDate(step.End)

	type kv struct {
		key, value string
	}
	entries := []kv{
		{"run_days", strconv.Itoa(days)},
		{"run_hours", strconv.Itoa(hours)},
		{"run_minutes", strconv.Itoa(minutes)},
		{"run_seconds", strconv.Itoa(seconds)},
	}
	for _, p := range []struct {
		name string
		get  func(time.Time) int
	}{
		{"year", func(t time.Time) int { return t.Year() }},
		{"month", func(t time.Time) int { return int(t.Month()) }},
		{"day", func(t time.Time) int { return t.Day() }},
		{"hour", func(t time.Time) int { return t.Hour() }},
	} {
		entries = append(entries,
			kv{"start_" + p.name, namelist.Repeat(strconv.Itoa(p.get(start)), maxDom)},
			kv{"end_" + p.name, namelist.Repeat(strconv.Itoa(p.get(end)), maxDom)})
	}
	entries = append(entries,
		kv{"restart_interval", strconv.Itoa(rst)},
		kv{"restart", namelist.FormatBool(warm)})

	for _, e := range entries {
		if err := doc.Set("time_control", e.key, e.value, audit); err != nil {
			return exception.ConfigErrorf(moduleName, "cannot set %s", e.key, err)
		}
	}
	return saveDoc(doc, path)
}

// SetStartFlag sets the cold/warm start flag of an already prepared step.
func (d *Driver) SetStartFlag(step model.Step, warm bool) error {
	path := filepath.Join(d.cfg.StepDir(step.ID), d.cfg.Wrfcycle.Experiment.SimulationNamelist)
	doc, err := namelist.Load(path)
	if err != nil {
		return exception.ConfigErrorf(moduleName, "cannot read %s", path, err)
	}
	if cur, err := doc.Bool("time_control", "restart"); err == nil && cur == warm {
		return nil
	}
	if err := doc.Set("time_control", "restart", namelist.FormatBool(warm), fmt.Sprintf("wrfcycle %s start", map[bool]string{true: "warm", false: "cold"}[warm])); err != nil {
		return exception.ConfigErrorf(moduleName, "cannot set restart flag", err)
	}
	return saveDoc(doc, path)
}

// calendarDate maps Feb 29 to Feb 28 under a no-leap calendar.
func (d *Driver) calendarDate(t time.Time) time.Time {
	if !d.cfg.Wrfcycle.Experiment.LeapYears && t.Month() == time.February && t.Day() == 29 {
		return t.AddDate(0, 0, -1)
	}
	return t
}

// leapDaysWithin counts the Feb 29 days lying entirely inside [start, end).
func leapDaysWithin(start, end time.Time) int {
	n := 0
	for y := start.Year(); y <= end.Year(); y++ {
		leap := time.Date(y, time.February, 29, 0, 0, 0, 0, start.Location())
		if leap.Month() != time.February {
			continue
		}
		if !leap.Before(start) && !leap.AddDate(0, 0, 1).After(end) {
			n++
		}
	}
	return n
}

func saveDoc(doc *namelist.Document, path string) error {
	if err := doc.Save(path); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot write %s", path, err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// link makes dst a symbolic link to src, replacing an existing dst.
func link(src, dst string) error {
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Symlink(src, dst)
}
