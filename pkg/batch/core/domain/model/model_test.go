package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamps(t *testing.T) {
	assert.Equal(t, "2020-01-01_06:00:00", NormalizeTimestamp("2020-01-01_06_00_00"))
	assert.Equal(t, "2020-01-01_06:00:00", NormalizeTimestamp("2020-01-01_06:00:00"))
	assert.Equal(t, "2020-01", NormalizeTimestamp("2020-01"))
	assert.True(t, SameTimestamp("1979-02-01_00:00:00", "1979-02-01_00_00_00"))

	ts, err := ParseTimestamp("'2020-02-29_12_30_00'")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 2, 29, 12, 30, 0, 0, time.UTC), ts)
	assert.Equal(t, "2020-02-29_12:30:00", FormatTimestamp(ts))

	_, err = ParseTimestamp("2020-02-30")
	assert.Error(t, err)
}

func TestParseRestartArtifact(t *testing.T) {
	a, ok := ParseRestartArtifact("wrfrst_d02_1979-02-01_00_00_00")
	require.True(t, ok)
	assert.Equal(t, RestartArtifact{Prefix: "wrfrst", Domain: 2, Timestamp: "1979-02-01_00:00:00"}, a)
	assert.Equal(t, "wrfrst_d02_1979-02-01_00:00:00", a.Name())
	assert.True(t, a.Matches("wrfrst", "1979-02-01_00_00_00"))
	assert.False(t, a.Matches("wrfout", "1979-02-01_00:00:00"))

	_, ok = ParseRestartArtifact("wrfrst_d1_1979-02-01_00:00:00")
	assert.False(t, ok)
	_, ok = ParseRestartArtifact("namelist.input")
	assert.False(t, ok)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("nostat")
	require.NoError(t, err)
	assert.Equal(t, ModeNoStat, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Mode(""), m)

	_, err = ParseMode("warm")
	assert.Error(t, err)
}

func TestStepTableLookup(t *testing.T) {
	jan := Step{ID: "2020-01", Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)}
	feb := Step{ID: "2020-02", Start: jan.End, End: time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)}
	table := StepTable{Steps: []Step{jan, feb}}

	assert.Equal(t, 1, table.Index("2020-02"))
	assert.Equal(t, -1, table.Index("2020-03"))
	assert.Equal(t, jan, table.First())
	assert.Equal(t, feb, table.Last())
	assert.Equal(t, 29*24*time.Hour, feb.Duration())
	assert.Equal(t, "2020-03-01_00:00:00", feb.EndTimestamp())
}
