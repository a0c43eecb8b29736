package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailReader(t *testing.T) {
	in := "l1\nl2\nl3\nl4\nl5\n"

	lines, err := TailReader(strings.NewReader(in), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"l4", "l5"}, lines)

	lines, err = TailReader(strings.NewReader(in), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "l2", "l3", "l4", "l5"}, lines)

	lines, err = TailReader(strings.NewReader(in), 0)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestSurfaceTail(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "rsl.error.0000")
	require.NoError(t, os.WriteFile(p, []byte("a\nb\nc\n"), 0o644))

	var buf bytes.Buffer
	SurfaceTail(&buf, 2, p, filepath.Join(dir, "missing.log"))

	out := buf.String()
	assert.Contains(t, out, "==> "+p+" (last 2 lines) <==")
	assert.Contains(t, out, "b\nc\n")
	assert.NotContains(t, out, "missing.log")
}

func TestSetLogLevel(t *testing.T) {
	defer SetLogLevel("INFO")

	SetLogLevel("debug")
	assert.Equal(t, LevelDebug, GetLogLevel())
	SetLogLevel("nonsense")
	assert.Equal(t, LevelInfo, GetLogLevel())
}
