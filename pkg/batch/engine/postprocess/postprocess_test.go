package postprocess

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/test"
)

func TestCheckInterval(t *testing.T) {
	cases := []struct {
		interval, current, next, want string
	}{
		{"YEARLY", "2020-06-01", "2021-01-01", "2020"},
		{"YEARLY", "2020-06-01", "2020-09-01", ""},
		{"yearly", "2020-12", "2021-01", "2020"},
		{"MONTHLY", "2020-06-01", "2020-06-02", ""},
		{"MONTHLY", "2020-06-30", "2020-07-01", "2020-06"},
		{"DAILY", "2020-06-01", "2020-06-02", "2020-06-01"},
		{"DAILY", "2020-06", "2020-07", "2020-06"},
		{"", "2020-06-01", "2020-06-02", "2020-06-01"},
		{"HOURLY", "2020-06-01", "2020-06-02", "2020-06-01"},
		{"YEARLY", "", "2020-01-01", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CheckInterval(tc.interval, tc.current, tc.next), "%s %s %s", tc.interval, tc.current, tc.next)
	}
}

func TestCheckInterval_FinalStepAlwaysTagged(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		interval := rapid.SampledFrom([]string{"YEARLY", "MONTHLY", "DAILY", "", "weekly"}).Draw(t, "interval")
		current := fmt.Sprintf("%04d-%02d-%02d",
			rapid.IntRange(1900, 2100).Draw(t, "year"), rapid.IntRange(1, 12).Draw(t, "month"), rapid.IntRange(1, 28).Draw(t, "day"))
		if CheckInterval(interval, current, "") == "" {
			t.Fatalf("final step %s produced no tag for %q", current, interval)
		}
	})
}

func TestCheckInterval_YearlyTagsOnlyYearChanges(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		y1 := rapid.IntRange(1950, 2050).Draw(t, "y1")
		y2 := rapid.IntRange(1950, 2050).Draw(t, "y2")
		cur := fmt.Sprintf("%04d-%02d", y1, rapid.IntRange(1, 12).Draw(t, "m1"))
		next := fmt.Sprintf("%04d-%02d", y2, rapid.IntRange(1, 12).Draw(t, "m2"))
		tag := CheckInterval("YEARLY", cur, next)
		if (y1 != y2) != (tag == fmt.Sprintf("%04d", y1)) || (y1 == y2 && tag != "") {
			t.Fatalf("CheckInterval(YEARLY, %s, %s) = %q", cur, next, tag)
		}
	})
}

type fakeExporter struct{ calls int }

func (e *fakeExporter) Export(context.Context) (string, error) {
	e.calls++
	return "mem://report.parquet", nil
}

func TestDispatch(t *testing.T) {
	cfg := test.NewExperiment(t)
	cfg.Wrfcycle.Postprocess.ArchiveInterval = "YEARLY"
	cfg.Wrfcycle.Postprocess.AverageInterval = "MONTHLY"
	cfg.Wrfcycle.Postprocess.Report.Enabled = true
	sub := test.NewFakeSubmitter()
	exp := &fakeExporter{}
	d := NewDispatcher(cfg, sub, exp)
	ctx := context.Background()

	got, err := d.Dispatch(ctx, model.Step{ID: "2000-01"}, model.Step{ID: "2000-02"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Dispatch{Kind: KindAverage, Tag: "2000-01", JobID: "1001"}, got[0])

	got, err = d.Dispatch(ctx, model.Step{ID: "2000-12"}, model.Step{ID: "2001-01"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Zero(t, exp.calls)

	got, err = d.Dispatch(ctx, model.Step{ID: "2001-03"}, model.Step{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Final)
	assert.Equal(t, "2001", got[0].Tag)
	assert.Equal(t, 1, exp.calls)

	archive := sub.Submitted("archive-2001")
	require.Len(t, archive, 1)
	assert.Equal(t, "true", archive[0].Env["WRFCYCLE_FINAL"])
	assert.Equal(t, "2001", archive[0].Env["WRFCYCLE_TAG"])
	assert.Equal(t, cfg.ExperimentPath("run_archive.sh"), archive[0].Script)
}

func TestDispatch_AggregatesFailures(t *testing.T) {
	cfg := test.NewExperiment(t)
	sub := test.NewFakeSubmitter()
	sub.SubmitErr = errors.New("qsub: would exceed queue limit")
	d := NewDispatcher(cfg, sub, nil)

	got, err := d.Dispatch(context.Background(), model.Step{ID: "2000-12"}, model.Step{})
	assert.Empty(t, got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
}
