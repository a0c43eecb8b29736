// Package namelist reads and rewrites Fortran namelist files as ordered documents.
//
// A Document keeps every line of the source verbatim. Only entries that are explicitly set are
// re-rendered, so serializing an untouched document reproduces the input byte for byte, and an
// edit changes nothing but the edited line (or inserts one line for a new key).
package namelist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type lineKind int

const (
	lineOther lineKind = iota
	lineSectionStart
	lineSectionEnd
	lineEntry
)

type line struct {
	raw     string
	kind    lineKind
	section string // lower-cased owning section ("" outside any section)

	// entry fields
	key      string // as spelled in the file
	prefix   string // raw text up to and including "=" and the following blanks
	value    string // value text without trailing comma or comment
	trailing string // "," when the value ended with a comma
	comment  string // comment text without the leading "!"
}

// Document is a parsed namelist file.
type Document struct {
	lines []*line
}

// Parse parses namelist content. It never fails on unrecognised lines; they are kept verbatim.
func Parse(data []byte) *Document {
	rawLines := strings.Split(string(data), "\n")
	doc := &Document{lines: make([]*line, 0, len(rawLines))}
	section := ""
	for _, raw := range rawLines {
		l := classify(raw, section)
		switch l.kind {
		case lineSectionStart:
			section = l.section
		case lineSectionEnd:
			section = ""
		}
		doc.lines = append(doc.lines, l)
	}
	return doc
}

// Load reads and parses the namelist file at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data), nil
}

func classify(raw, section string) *line {
	l := &line{raw: raw, section: section}
	trimmed := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
	lower := strings.ToLower(trimmed)
	switch {
	case trimmed == "" || strings.HasPrefix(trimmed, "!"):
		return l
	case lower == "&end" || strings.HasPrefix(trimmed, "/"):
		l.kind = lineSectionEnd
		return l
	case strings.HasPrefix(trimmed, "&"):
		name := strings.Fields(trimmed[1:])
		if len(name) > 0 {
			l.kind = lineSectionStart
			l.section = strings.ToLower(name[0])
		}
		return l
	}
	if section == "" {
		return l
	}

	body, comment, hasComment := splitComment(raw)
	eq := strings.Index(body, "=")
	if eq <= 0 {
		return l
	}
	key := strings.TrimSpace(body[:eq])
	if key == "" || strings.ContainsAny(key, " \t'\"") {
		return l
	}
	rest := body[eq+1:]
	valueStart := len(rest) - len(strings.TrimLeft(rest, " \t"))
	value := strings.TrimSpace(strings.TrimSuffix(rest, "\r"))
	trailing := ""
	if strings.HasSuffix(value, ",") {
		trailing = ","
		value = strings.TrimSpace(strings.TrimSuffix(value, ","))
	}

	l.kind = lineEntry
	l.key = key
	l.prefix = body[:eq+1] + rest[:valueStart]
	l.value = value
	l.trailing = trailing
	if hasComment {
		l.comment = strings.TrimSpace(strings.TrimSuffix(comment, "\r"))
	}
	return l
}

// splitComment splits s at the first "!" that is not inside a quoted string.
func splitComment(s string) (body, comment string, ok bool) {
	var quote rune
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '!':
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func (l *line) render() string {
	var b strings.Builder
	b.WriteString(l.prefix)
	b.WriteString(l.value)
	b.WriteString(l.trailing)
	if l.comment != "" {
		b.WriteString(" ! ")
		b.WriteString(l.comment)
	}
	return b.String()
}

// Bytes serializes the document.
func (d *Document) Bytes() []byte {
	out := make([]string, len(d.lines))
	for i, l := range d.lines {
		out[i] = l.raw
	}
	return []byte(strings.Join(out, "\n"))
}

// Save writes the document to path atomically, keeping the file mode of an existing file.
func (d *Document) Save(path string) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(d.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Sections returns the section names in file order (lower-cased).
func (d *Document) Sections() []string {
	var names []string
	for _, l := range d.lines {
		if l.kind == lineSectionStart {
			names = append(names, l.section)
		}
	}
	return names
}

func (d *Document) find(section, key string) *line {
	section = strings.ToLower(section)
	for _, l := range d.lines {
		if l.kind != lineEntry || !strings.EqualFold(l.key, key) {
			continue
		}
		if section == "" || l.section == section {
			return l
		}
	}
	return nil
}

// Get returns the value text of key in section, without trailing comma or comment.
// An empty section matches the first occurrence of key in any section.
func (d *Document) Get(section, key string) (string, bool) {
	l := d.find(section, key)
	if l == nil {
		return "", false
	}
	return l.value, true
}

// Has reports whether key exists in section.
func (d *Document) Has(section, key string) bool {
	return d.find(section, key) != nil
}

// Set replaces the value of key in section, recording the prior value in an audit comment.
// A missing key is inserted before the end of its section; a missing section is appended.
// An empty section updates the first occurrence of key in any section and, if the key is absent,
// inserts it into the last section of the document.
func (d *Document) Set(section, key, value, audit string) error {
	if err := validateValue(value); err != nil {
		return fmt.Errorf("namelist: invalid value for %s: %w", key, err)
	}
	audit = sanitizeComment(audit)

	if l := d.find(section, key); l != nil {
		prior := l.value
		note := audit
		if note == "" {
			note = "edited"
		}
		note = fmt.Sprintf("%s (was: %s)", note, prior)
		if l.comment != "" {
			note += "; " + l.comment
		}
		l.value = value
		l.comment = note
		l.raw = l.render()
		return nil
	}

	if section == "" {
		secs := d.Sections()
		if len(secs) == 0 {
			return fmt.Errorf("namelist: cannot add %s, document has no sections", key)
		}
		section = secs[len(secs)-1]
	}
	d.insert(strings.ToLower(section), key, value, audit)
	return nil
}

func (d *Document) insert(section, key, value, audit string) {
	indent := " "
	start := -1
	for i, l := range d.lines {
		if l.kind == lineSectionStart && l.section == section {
			start = i
			continue
		}
		if start < 0 {
			continue
		}
		if l.kind == lineEntry && l.section == section {
			indent = l.prefix[:len(l.prefix)-len(strings.TrimLeft(l.prefix, " \t"))]
		}
		if l.kind == lineSectionEnd {
			entry := newEntry(section, indent, key, value, audit)
			d.lines = append(d.lines[:i], append([]*line{entry}, d.lines[i:]...)...)
			return
		}
	}

	// Section not found (or never closed): append a new section, keeping a trailing newline last.
	tail := []*line{
		{raw: "&" + section, kind: lineSectionStart, section: section},
		newEntry(section, indent, key, value, audit),
		{raw: "/", kind: lineSectionEnd},
	}
	at := len(d.lines)
	if at > 0 && d.lines[at-1].raw == "" {
		at--
	}
	d.lines = append(d.lines[:at], append(tail, d.lines[at:]...)...)
}

func newEntry(section, indent, key, value, audit string) *line {
	l := &line{
		kind:     lineEntry,
		section:  section,
		key:      key,
		prefix:   indent + key + " = ",
		value:    value,
		trailing: ",",
		comment:  audit,
	}
	l.raw = l.render()
	return l
}

func validateValue(v string) error {
	if strings.ContainsAny(v, "\r\n") {
		return fmt.Errorf("value must be a single line")
	}
	if v != strings.TrimSpace(v) || strings.HasSuffix(v, ",") {
		return fmt.Errorf("value must not carry surrounding blanks or a trailing comma")
	}
	if _, _, hasComment := splitComment(v); hasComment {
		return fmt.Errorf("value must not contain an unquoted '!'")
	}
	return nil
}

func sanitizeComment(c string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(c))
}
