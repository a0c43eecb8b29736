package namelist

import (
	"fmt"
	"strconv"
	"strings"
)

// Elements splits a value text into its comma-separated elements, honouring quotes.
// Repeat counts such as "3*0.5" are expanded.
func Elements(value string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote rune
	)
	flush := func() {
		e := strings.TrimSpace(cur.String())
		cur.Reset()
		if e == "" {
			return
		}
		if n, v, ok := splitRepeat(e); ok {
			for i := 0; i < n; i++ {
				out = append(out, v)
			}
			return
		}
		out = append(out, e)
	}
	for _, r := range value {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			cur.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			cur.WriteRune(r)
		case r == ',':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func splitRepeat(e string) (int, string, bool) {
	if strings.HasPrefix(e, "'") || strings.HasPrefix(e, `"`) {
		return 0, "", false
	}
	i := strings.Index(e, "*")
	if i <= 0 {
		return 0, "", false
	}
	n, err := strconv.Atoi(e[:i])
	if err != nil || n <= 0 {
		return 0, "", false
	}
	return n, e[i+1:], true
}

// JoinElements renders elements the way WRF namelists are usually written.
func JoinElements(elems []string) string {
	return strings.Join(elems, ", ")
}

// Repeat renders value once per column.
func Repeat(value string, columns int) string {
	if columns < 1 {
		columns = 1
	}
	elems := make([]string, columns)
	for i := range elems {
		elems[i] = value
	}
	return JoinElements(elems)
}

// Quote renders a Fortran character constant.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Unquote strips Fortran quotes from a character constant.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		q := string(s[0])
		return strings.ReplaceAll(s[1:len(s)-1], q+q, q)
	}
	return s
}

// FormatFloat renders a float without superfluous digits ("60", "0.55").
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatBool renders a Fortran logical.
func FormatBool(b bool) string {
	if b {
		return ".true."
	}
	return ".false."
}

// ParseFloat parses a Fortran real, accepting d/D exponents.
func ParseFloat(s string) (float64, error) {
	s = strings.NewReplacer("d", "e", "D", "e").Replace(strings.TrimSpace(s))
	return strconv.ParseFloat(s, 64)
}

// ParseBool parses a Fortran logical (.true., T, .false., F).
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(s), ".")) {
	case "true", "t":
		return true, nil
	case "false", "f":
		return false, nil
	}
	return false, fmt.Errorf("invalid logical %q", s)
}

// Columns returns the number of elements of key, 0 if absent.
func (d *Document) Columns(section, key string) int {
	v, ok := d.Get(section, key)
	if !ok {
		return 0
	}
	return len(Elements(v))
}

func (d *Document) first(section, key string) (string, error) {
	v, ok := d.Get(section, key)
	if !ok {
		return "", fmt.Errorf("namelist: key %s not found in &%s", key, section)
	}
	elems := Elements(v)
	if len(elems) == 0 {
		return "", fmt.Errorf("namelist: key %s in &%s has no value", key, section)
	}
	return elems[0], nil
}

// Float returns the first element of key as float64.
func (d *Document) Float(section, key string) (float64, error) {
	e, err := d.first(section, key)
	if err != nil {
		return 0, err
	}
	return ParseFloat(e)
}

// Int returns the first element of key as int.
func (d *Document) Int(section, key string) (int, error) {
	e, err := d.first(section, key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(e)
}

// Bool returns the first element of key as a logical.
func (d *Document) Bool(section, key string) (bool, error) {
	e, err := d.first(section, key)
	if err != nil {
		return false, err
	}
	return ParseBool(e)
}

// SetAll sets key to value in every existing column (or in `columns` columns when the key is absent).
func (d *Document) SetAll(section, key, value string, columns int, audit string) error {
	if n := d.Columns(section, key); n > 0 {
		columns = n
	}
	return d.Set(section, key, Repeat(value, columns), audit)
}

// Read returns the value text of key in section of the namelist file at path.
func Read(path, section, key string) (string, error) {
	doc, err := Load(path)
	if err != nil {
		return "", err
	}
	v, ok := doc.Get(section, key)
	if !ok {
		return "", fmt.Errorf("namelist: key %s not found in %s", key, path)
	}
	return v, nil
}

// Write sets key in section of the namelist file at path, with an audit comment, and saves it.
func Write(path, section, key, value, audit string) error {
	doc, err := Load(path)
	if err != nil {
		return err
	}
	if err := doc.Set(section, key, value, audit); err != nil {
		return err
	}
	return doc.Save(path)
}
