// Package propfile implements lossless reading and writing of Java
// .properties files.
//
// Every physical line of the input belongs to exactly one Entry:
//
//   - comment lines (first non-blank character is '#') become KindComment
//   - whitespace-only lines become KindEmpty
//   - key=value lines become KindProperty, together with any continuation
//     lines that follow a trailing unescaped backslash
//   - any other line is appended to the entry before it
//
// Marshal reproduces the parsed bytes exactly, including line endings and
// the presence or absence of a final newline. Parsing never fails: every
// byte stream has a defined decomposition into entries.
package propfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ---------------------------------------------------------------------------
// Entry model
// ---------------------------------------------------------------------------

// Kind classifies an entry.
type Kind int

const (
	KindProperty Kind = iota // key=value, possibly continued over several lines
	KindComment              // line starting with '#'
	KindEmpty                // blank / whitespace-only line
)

func (k Kind) String() string {
	switch k {
	case KindProperty:
		return "PROPERTY"
	case KindComment:
		return "COMMENT"
	case KindEmpty:
		return "EMPTY_LINE"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Entry is one logical unit of a .properties file.
type Entry struct {
	// Key is the trimmed text before the first unescaped '=' for
	// properties, the raw line for comments, and empty for blank lines.
	Key string
	// Lines are the raw physical lines of the entry, without terminators.
	Lines []string
	// Kind is the entry classification.
	Kind Kind
}

// Equal reports whether two entries have the same kind, key and lines.
// Lines are compared element by element, so "a \" + "b" differs from
// "a \b" even though their concatenations might match.
func (e Entry) Equal(o Entry) bool {
	if e.Kind != o.Kind || e.Key != o.Key {
		return false
	}
	return linesEqual(e.Lines, o.Lines)
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	cp := e
	cp.Lines = append([]string(nil), e.Lines...)
	return cp
}

// IsMultiline reports whether the entry spans more than one physical line.
func (e Entry) IsMultiline() bool {
	return len(e.Lines) > 1
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Document
// ---------------------------------------------------------------------------

// Document is an ordered, immutable sequence of entries. Transformations
// build a new Document rather than modifying an existing one.
type Document struct {
	entries []Entry
	// finalNewline records whether the source ended with a line terminator.
	finalNewline bool
}

// NewDocument builds a document from entries. The entries are copied, so
// later changes to the argument do not affect the document. Serialization
// terminates every line, including the last one, with '\n'.
func NewDocument(entries []Entry) *Document {
	d := &Document{finalNewline: true}
	d.entries = make([]Entry, len(entries))
	for i, e := range entries {
		d.entries[i] = e.Clone()
	}
	return d
}

// Derive builds a new document from entries using the same final newline
// convention as d. It is used to produce a translated document that keeps
// the source file's layout.
func (d *Document) Derive(entries []Entry) *Document {
	nd := NewDocument(entries)
	if d != nil {
		nd.finalNewline = d.finalNewline
	}
	return nd
}

// Len returns the number of entries.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// At returns a copy of the i-th entry.
func (d *Document) At(i int) Entry {
	return d.entries[i].Clone()
}

// Entries returns a copy of all entries in document order.
func (d *Document) Entries() []Entry {
	if d == nil {
		return nil
	}
	out := make([]Entry, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.Clone()
	}
	return out
}

// Keys returns property keys in document order. Repeated keys are listed
// once, at the position of their first occurrence.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	seen := make(map[string]bool)
	var keys []string
	for _, e := range d.entries {
		if e.Kind == KindProperty && !seen[e.Key] {
			seen[e.Key] = true
			keys = append(keys, e.Key)
		}
	}
	return keys
}

// Properties returns a key → entry map of property entries. When a key is
// repeated, the first occurrence wins.
func (d *Document) Properties() map[string]Entry {
	m := make(map[string]Entry)
	if d == nil {
		return m
	}
	for _, e := range d.entries {
		if e.Kind != KindProperty {
			continue
		}
		if _, ok := m[e.Key]; !ok {
			m[e.Key] = e.Clone()
		}
	}
	return m
}

// Duplicates returns keys that occur more than once, in order of their
// second occurrence.
func (d *Document) Duplicates() []string {
	if d == nil {
		return nil
	}
	count := make(map[string]int)
	var dups []string
	for _, e := range d.entries {
		if e.Kind != KindProperty {
			continue
		}
		count[e.Key]++
		if count[e.Key] == 2 {
			dups = append(dups, e.Key)
		}
	}
	return dups
}

// Stats returns the number of entries, property entries, and property
// entries spanning several lines.
func (d *Document) Stats() (entries, properties, multiline int) {
	if d == nil {
		return 0, 0, 0
	}
	for _, e := range d.entries {
		if e.Kind == KindProperty {
			properties++
			if e.IsMultiline() {
				multiline++
			}
		}
	}
	return len(d.entries), properties, multiline
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses a .properties file from disk.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data), nil
}

// Parse parses .properties content. Line terminators are '\n'; a '\r'
// preceding it stays part of the line text so CRLF files round-trip.
func Parse(data []byte) *Document {
	if len(data) == 0 {
		return &Document{}
	}
	text := string(data)
	final := strings.HasSuffix(text, "\n")
	if final {
		text = text[:len(text)-1]
	}
	d := ParseLines(strings.Split(text, "\n"))
	d.finalNewline = final
	return d
}

// ParseLines groups physical lines into entries.
func ParseLines(lines []string) *Document {
	p := parser{}
	for _, ln := range lines {
		p.feed(ln)
	}
	p.flush()
	return &Document{entries: p.entries, finalNewline: true}
}

// parser accumulates lines of the entry being built.
type parser struct {
	entries []Entry
	cur     *Entry
}

func (p *parser) flush() {
	if p.cur != nil {
		p.entries = append(p.entries, *p.cur)
		p.cur = nil
	}
}

func (p *parser) start(kind Kind, key, line string) {
	p.flush()
	p.cur = &Entry{Key: key, Lines: []string{line}, Kind: kind}
}

// continuing reports whether the previous physical line left a property
// value open with a trailing backslash.
func (p *parser) continuing() bool {
	if p.cur == nil || p.cur.Kind != KindProperty {
		return false
	}
	return HasContinuation(p.cur.Lines[len(p.cur.Lines)-1])
}

func (p *parser) feed(line string) {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "#"):
		p.start(KindComment, line, line)
	case trimmed == "":
		p.start(KindEmpty, "", line)
	case p.continuing():
		p.cur.Lines = append(p.cur.Lines, line)
	default:
		if sep := SeparatorIndex(line); sep >= 0 {
			p.start(KindProperty, strings.TrimSpace(line[:sep]), line)
			return
		}
		// A line without a separator belongs to the entry before it,
		// whatever its kind. Only at the top of the file does it stand
		// alone, keyed by its own text.
		if p.cur == nil {
			p.start(KindProperty, trimmed, line)
			return
		}
		p.cur.Lines = append(p.cur.Lines, line)
	}
}

// SeparatorIndex returns the byte index of the first unescaped '=' in line,
// or -1 if there is none.
func SeparatorIndex(line string) int {
	escaped := false
	for i := 0; i < len(line); i++ {
		switch {
		case escaped:
			escaped = false
		case line[i] == '\\':
			escaped = true
		case line[i] == '=':
			return i
		}
	}
	return -1
}

// HasContinuation reports whether line, after trimming trailing
// whitespace, ends with an odd number of backslashes.
func HasContinuation(line string) bool {
	s := strings.TrimRight(line, " \t\r\f")
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Lines returns all physical lines of the document in order.
func (d *Document) Lines() []string {
	if d == nil {
		return nil
	}
	var out []string
	for _, e := range d.entries {
		out = append(out, e.Lines...)
	}
	return out
}

// Marshal serialises the document back to .properties bytes.
func (d *Document) Marshal() []byte {
	lines := d.Lines()
	if len(lines) == 0 {
		return nil
	}
	var b strings.Builder
	for i, ln := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(ln)
	}
	if d.finalNewline {
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// WriteFile serialises and writes to path, creating parent directories
// with 0755 permissions.
func (d *Document) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, d.Marshal(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
