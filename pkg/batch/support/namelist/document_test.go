package namelist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const sample = ` &time_control
 run_days                            = 0,
 run_hours                           = 12,
 start_year                          = 2000, 2000,
 restart                             = .false.,
 /

 &domains
 time_step                           = 120,
 max_dom                             = 2,
 /

 &dynamics
 epssm                               = 0.1,  0.1,  ! sound wave off-centering
 time_step_sound                     = 4,    4,
 /
`

func TestParse_RoundTripsVerbatim(t *testing.T) {
	doc := Parse([]byte(sample))
	assert.Equal(t, sample, string(doc.Bytes()))
	assert.Equal(t, []string{"time_control", "domains", "dynamics"}, doc.Sections())
}

func TestGetAndTypedAccess(t *testing.T) {
	doc := Parse([]byte(sample))

	v, ok := doc.Get("dynamics", "EPSSM")
	require.True(t, ok)
	assert.Equal(t, "0.1,  0.1", v)

	ts, err := doc.Float("domains", "time_step")
	require.NoError(t, err)
	assert.Equal(t, 120.0, ts)

	n, err := doc.Int("dynamics", "time_step_sound")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	restart, err := doc.Bool("time_control", "restart")
	require.NoError(t, err)
	assert.False(t, restart)

	assert.Equal(t, 2, doc.Columns("time_control", "start_year"))
	_, err = doc.Float("domains", "absent")
	assert.Error(t, err)

	v, ok = doc.Get("", "max_dom")
	require.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestSet_ReplacesInPlaceWithAudit(t *testing.T) {
	doc := Parse([]byte(sample))
	require.NoError(t, doc.Set("domains", "time_step", "60", "crash recovery 1"))

	out := string(doc.Bytes())
	assert.Contains(t, out, " time_step                           = 60, ! crash recovery 1 (was: 120)\n")

	require.NoError(t, doc.SetAll("dynamics", "epssm", "0.55", 1, "crash recovery 1"))
	v, _ := doc.Get("dynamics", "epssm")
	assert.Equal(t, "0.55, 0.55", v)
	assert.Contains(t, string(doc.Bytes()), "! crash recovery 1 (was: 0.1,  0.1); sound wave off-centering")

	// everything else untouched
	before := strings.Split(sample, "\n")
	after := strings.Split(string(doc.Bytes()), "\n")
	require.Len(t, after, len(before))
	changed := 0
	for i := range before {
		if before[i] != after[i] {
			changed++
		}
	}
	assert.Equal(t, 2, changed)
}

func TestSet_InsertsMissingKeyAndSection(t *testing.T) {
	doc := Parse([]byte(sample))
	require.NoError(t, doc.Set("domains", "max_step_increase_pct", "5", "added"))
	require.NoError(t, doc.Set("physics", "sf_urban_physics", "0", "canopy off"))

	out := string(doc.Bytes())
	assert.Contains(t, out, " max_dom                             = 2,\n max_step_increase_pct = 5, ! added\n /\n")
	assert.True(t, strings.HasSuffix(out, "&physics\n sf_urban_physics = 0, ! canopy off\n/\n"))

	v, ok := doc.Get("physics", "sf_urban_physics")
	require.True(t, ok)
	assert.Equal(t, "0", v)
}

func TestSet_RejectsMultilineValues(t *testing.T) {
	doc := Parse([]byte(sample))
	assert.Error(t, doc.Set("domains", "time_step", "60\n/", "x"))
	assert.Error(t, doc.Set("domains", "time_step", "60 ! sneaky", "x"))
}

func TestElements(t *testing.T) {
	assert.Equal(t, []string{"'a,b'", "'c'"}, Elements("'a,b', 'c',"))
	assert.Equal(t, []string{"0.5", "0.5", "0.5"}, Elements("3*0.5"))
	assert.Equal(t, "it's", Unquote(Quote("it's")))
	assert.Equal(t, "0.55", FormatFloat(0.55))
	f, err := ParseFloat("1.5d0")
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)
}

func TestReadWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "namelist.input")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o640))

	require.NoError(t, Write(path, "domains", "time_step", "90", "operator"))
	v, err := Read(path, "domains", "time_step")
	require.NoError(t, err)
	assert.Equal(t, "90", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestSet_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		doc := Parse([]byte(sample))
		before := strings.Split(sample, "\n")

		existing := rapid.SampledFrom([]struct{ section, key string }{
			{"time_control", "run_hours"}, {"time_control", "start_year"},
			{"domains", "time_step"}, {"dynamics", "epssm"}, {"dynamics", "time_step_sound"},
		}).Draw(t, "entry")
		insert := rapid.Bool().Draw(t, "insert")
		key := existing.key
		if insert {
			key = "zz_" + rapid.StringMatching(`[a-z_]{1,8}`).Draw(t, "key")
		}
		value := rapid.StringMatching(`[a-z0-9.]{1,6}(, [a-z0-9.]{1,6}){0,2}`).Draw(t, "value")
		audit := rapid.StringMatching(`[a-z ]{0,12}`).Draw(t, "audit")

		if err := doc.Set(existing.section, key, value, audit); err != nil {
			t.Fatalf("set: %v", err)
		}
		reparsed := Parse(doc.Bytes())
		got, ok := reparsed.Get(existing.section, key)
		if !ok || got != value {
			t.Fatalf("read back %q (found=%v), want %q", got, ok, value)
		}

		after := strings.Split(string(doc.Bytes()), "\n")
		var diff []int
		if insert {
			if len(after) != len(before)+1 {
				t.Fatalf("expected exactly one inserted line")
			}
			for i := range after {
				if strings.Contains(after[i], key+" = ") {
					after = append(after[:i], after[i+1:]...)
					break
				}
			}
		}
		for i := range before {
			if before[i] != after[i] {
				diff = append(diff, i)
			}
		}
		if insert && len(diff) != 0 || !insert && len(diff) != 1 {
			t.Fatalf("unexpected changed lines %v", diff)
		}
	})
}
