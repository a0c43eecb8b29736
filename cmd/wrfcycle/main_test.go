package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	usecase "github.com/tigerroll/wrfcycle/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
)

func TestParseArgs(t *testing.T) {
	inv, err := parseArgs([]string{"-config", "exp.yaml", "run", "-mode", "nogeo", "-skip-preprocess", "2000-01"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "run", inv.command)
	assert.Equal(t, "exp.yaml", inv.configPath)
	assert.Equal(t, model.ModeNoGeo, inv.mode)
	assert.True(t, inv.skipPreprocess)
	assert.Equal(t, []string{"2000-01"}, inv.args)

	inv, err = parseArgs([]string{"status"}, io.Discard)
	require.NoError(t, err)
	assert.Empty(t, inv.args)
	assert.Equal(t, model.Mode(""), inv.mode)

	inv, err = parseArgs([]string{"migrate", "-down"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, inv.down)
}

func TestParseArgs_Errors(t *testing.T) {
	cases := [][]string{
		nil,
		{"launch"},
		{"run"},
		{"run", "a", "b"},
		{"run", "-mode", "sideways", "2000-01"},
		{"start", "-mode", "FRESH"},
		{"checkinterval", "MONTHLY"},
	}
	for _, args := range cases {
		_, err := parseArgs(args, io.Discard)
		assert.True(t, exception.IsKind(err, exception.KindConfig), "%v: %v", args, err)
	}

	_, err := parseArgs([]string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestRun_CheckIntervalNeedsNoApplication(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), &out, []string{"checkinterval", "MONTHLY", "2020-06-30", "2020-07-01"}))
	assert.Equal(t, "2020-06\n", out.String())

	out.Reset()
	require.NoError(t, run(context.Background(), &out, []string{"checkinterval", "MONTHLY", "2020-06-01", "2020-06-02"}))
	assert.Equal(t, "\n", out.String())
}

func TestRun_UsageErrorExitCode(t *testing.T) {
	err := run(context.Background(), io.Discard, []string{"reset"})
	assert.Equal(t, 1, exception.ExitCode(err))
}

func TestRenderStatus(t *testing.T) {
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	status := []usecase.StepStatus{
		{
			Step:        model.Step{ID: "2000-01", Start: start, End: start.AddDate(0, 1, 0)},
			Preprocess:  model.CompletionSuccess,
			Restarts:    model.RestartAttempt{StepID: "2000-01", Instability: 2},
			Attempts:    3,
			LastOutcome: model.OutcomeSuccess,
			Complete:    true,
		},
		{
			Step:       model.Step{ID: "2000-02", Start: start.AddDate(0, 1, 0), End: start.AddDate(0, 2, 0)},
			Preprocess: model.CompletionPending,
		},
	}

	out := renderStatus(status)
	assert.Contains(t, out, "1 of 2 steps complete")
	assert.Contains(t, out, "2000-01")
	assert.Contains(t, out, "2000-02-01_00:00:00")
	assert.Contains(t, out, "2/0")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "pending")
}

func TestRenderAttempts(t *testing.T) {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []*model.AttemptRecord{
		{StepID: "2000-01", Attempt: 0, TimeStep: 36, SubStep: 4, Damping: 0.85, Outcome: model.OutcomeNumericalInstability,
			StartedAt: started, FinishedAt: started.Add(90 * time.Second), Message: "cfl"},
		{StepID: "2000-01", Attempt: 1, TimeStep: 30, SubStep: 6, Damping: 0.775, StartedAt: started.Add(time.Hour)},
	}

	out := renderAttempts(records)
	assert.Contains(t, out, "step 2000-01: 2 attempts")
	assert.Contains(t, out, "NUMERICAL_INSTABILITY")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "0.775")
}
