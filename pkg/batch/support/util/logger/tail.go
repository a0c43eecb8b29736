package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/gammazero/deque"
)

// maxTailLineBytes bounds a single scanned line; rank logs of the simulation can carry long lines.
const maxTailLineBytes = 1 << 20

// Tail returns the last n lines of the file at path, oldest first.
// A missing file yields an error; an empty file yields no lines.
func Tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return TailReader(f, n)
}

// TailReader returns the last n lines read from r, oldest first.
func TailReader(r io.Reader, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	var ring deque.Deque[string]
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxTailLineBytes)
	for scanner.Scan() {
		if ring.Len() == n {
			ring.PopFront()
		}
		ring.PushBack(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	lines := make([]string, 0, ring.Len())
	for i := 0; i < ring.Len(); i++ {
		lines = append(lines, ring.At(i))
	}
	return lines, nil
}

// SurfaceTail writes the last n lines of each existing file in paths to w, framed by a header per file.
// It is used on fatal conditions so the relevant log tail ends up in the allocation's standard output.
func SurfaceTail(w io.Writer, n int, paths ...string) {
	for _, p := range paths {
		lines, err := Tail(p, n)
		if err != nil {
			Debugf("No log tail for '%s': %v", p, err)
			continue
		}
		fmt.Fprintf(w, "==> %s (last %d lines) <==\n", p, len(lines))
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	}
}
