package propfile

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestParse_Basic(t *testing.T) {
	d := Parse([]byte("greeting=Hello\nfarewell=Goodbye\n"))
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}
	e := d.At(0)
	if e.Kind != KindProperty || e.Key != "greeting" {
		t.Errorf("entry 0 = %+v, want property greeting", e)
	}
	if got := d.Keys(); !reflect.DeepEqual(got, []string{"greeting", "farewell"}) {
		t.Errorf("Keys() = %v", got)
	}
}

func TestParse_CommentsAndBlanks(t *testing.T) {
	d := Parse([]byte("# This is a comment\n\nkey=value\n"))
	want := []Kind{KindComment, KindEmpty, KindProperty}
	if d.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", d.Len(), len(want))
	}
	for i, k := range want {
		if got := d.At(i).Kind; got != k {
			t.Errorf("entry %d kind = %v, want %v", i, got, k)
		}
	}
	if got := d.At(0).Key; got != "# This is a comment" {
		t.Errorf("comment key = %q, want the comment line", got)
	}
	if got := d.At(1).Key; got != "" {
		t.Errorf("blank key = %q, want empty", got)
	}
}

func TestParse_KeyIsTrimmedTextBeforeFirstEquals(t *testing.T) {
	d := Parse([]byte("  url = http://example.com?a=1&b=2\n"))
	if got := d.At(0).Key; got != "url" {
		t.Errorf("key = %q, want url", got)
	}
}

func TestParse_EscapedEqualsIsNotSeparator(t *testing.T) {
	d := Parse([]byte(`a\=b=c` + "\n"))
	if got := d.At(0).Key; got != `a\=b` {
		t.Errorf("key = %q, want a\\=b", got)
	}
}

func TestParse_Continuation(t *testing.T) {
	src := "greeting=Hello \\\n  World\nnext=x\n"
	d := Parse([]byte(src))
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}
	e := d.At(0)
	if want := []string{"greeting=Hello \\", "  World"}; !reflect.DeepEqual(e.Lines, want) {
		t.Errorf("lines = %q, want %q", e.Lines, want)
	}
	if d.At(1).Key != "next" {
		t.Errorf("second key = %q, want next", d.At(1).Key)
	}
}

func TestParse_EqualsInsideContinuationDoesNotStartEntry(t *testing.T) {
	d := Parse([]byte("q=one \\\n  two=three\n"))
	if d.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", d.Len())
	}
	if !d.At(0).IsMultiline() {
		t.Error("continuation line was split into a new entry")
	}
}

func TestParse_DoubleBackslashIsNotContinuation(t *testing.T) {
	d := Parse([]byte("path=C:\\\\\nother=1\n"))
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (escaped backslash must not continue)", d.Len())
	}
}

func TestParse_CommentEndsContinuation(t *testing.T) {
	d := Parse([]byte("a=1 \\\n# note\nb=2\n"))
	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}
	if d.At(1).Kind != KindComment {
		t.Errorf("entry 1 kind = %v, want COMMENT", d.At(1).Kind)
	}
}

func TestParse_LineWithoutSeparatorJoinsPreviousEntry(t *testing.T) {
	d := Parse([]byte("a=X\n  more text\n# c\n  tail\n"))
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2: %+v", d.Len(), d.Entries())
	}
	if e := d.At(0); e.Kind != KindProperty || e.Key != "a" || !reflect.DeepEqual(e.Lines, []string{"a=X", "  more text"}) {
		t.Errorf("entry 0 = %+v", e)
	}
	if e := d.At(1); e.Kind != KindComment || !reflect.DeepEqual(e.Lines, []string{"# c", "  tail"}) {
		t.Errorf("entry 1 = %+v", e)
	}
	if got := d.Keys(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Keys() = %v, want only a", got)
	}
}

func TestParse_LineWithoutSeparatorAtTop(t *testing.T) {
	d := Parse([]byte("orphan text\nstill orphan\na=1\n"))
	if d.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", d.Len())
	}
	if e := d.At(0); e.Kind != KindProperty || e.Key != "orphan text" || len(e.Lines) != 2 {
		t.Errorf("entry 0 = %+v", e)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := map[string]string{
		"empty":                 "",
		"single newline":        "\n",
		"comment only":          "# one\n# two\n",
		"no final newline":      "a=1\nb=2",
		"crlf":                  "a=1\r\n\r\nb=2 \\\r\n  3\r\n",
		"open continuation eof": "a=1 \\",
		"open continuation nl":  "a=1 \\\n",
		"mixed": "# header\n\n" +
			"greeting=Hello \\\n  World\n" +
			"   \n" +
			"orphan\n" +
			"dup=1\ndup=2\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			got := string(Parse([]byte(src)).Marshal())
			if got != src {
				t.Errorf("round-trip failed:\ngot:  %q\nwant: %q", got, src)
			}
		})
	}
}

func TestParseLines_RoundTrip(t *testing.T) {
	lines := []string{"# c", "", "k=v \\", "   w", "x"}
	if got := ParseLines(lines).Lines(); !reflect.DeepEqual(got, lines) {
		t.Errorf("Lines() = %q, want %q", got, lines)
	}
	if got := ParseLines(nil).Lines(); len(got) != 0 {
		t.Errorf("Lines() of empty input = %q", got)
	}
}

func TestDocument_IsImmutable(t *testing.T) {
	d := Parse([]byte("a=1\n"))
	e := d.At(0)
	e.Lines[0] = "a=2"
	if got := d.At(0).Lines[0]; got != "a=1" {
		t.Errorf("document changed through returned entry: %q", got)
	}
	entries := d.Entries()
	entries[0].Key = "zzz"
	if d.At(0).Key != "a" {
		t.Error("document changed through Entries() slice")
	}
}

func TestDocument_DuplicatesFirstWins(t *testing.T) {
	d := Parse([]byte("a=1\nb=2\na=3\n"))
	if got := d.Properties()["a"].Lines[0]; got != "a=1" {
		t.Errorf("Properties()[a] = %q, want first occurrence", got)
	}
	if got := d.Duplicates(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Duplicates() = %v", got)
	}
	if got := d.Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Keys() = %v", got)
	}
}

func TestStats(t *testing.T) {
	d := Parse([]byte("# c\na=1\nb=2 \\\n 3\n\n"))
	entries, props, multi := d.Stats()
	if entries != 4 || props != 2 || multi != 1 {
		t.Errorf("Stats() = %d, %d, %d; want 4, 2, 1", entries, props, multi)
	}
}

func TestDerive_KeepsFinalNewline(t *testing.T) {
	src := Parse([]byte("a=1"))
	out := src.Derive([]Entry{{Key: "a", Lines: []string{"a=uno"}, Kind: KindProperty}})
	if got := string(out.Marshal()); got != "a=uno" {
		t.Errorf("Marshal() = %q, want %q", got, "a=uno")
	}
}

func TestWriteFile_AndParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "messages_fr.properties")
	src := "# fr\nkey=valeur \\\n  suite\n"
	if err := Parse([]byte(src)).WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	d, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if got := string(d.Marshal()); got != src {
		t.Errorf("file round-trip = %q, want %q", got, src)
	}
}

func TestParseFile_Missing(t *testing.T) {
	if _, err := ParseFile(filepath.Join(t.TempDir(), "absent.properties")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestHasContinuation(t *testing.T) {
	cases := map[string]bool{
		`a=b \`:     true,
		`a=b \  `:   true,
		`a=b \\`:    false,
		`a=b \\\`:   true,
		"a=b \\\r":  true,
		`a=b`:       false,
		``:          false,
	}
	for in, want := range cases {
		if got := HasContinuation(in); got != want {
			t.Errorf("HasContinuation(%q) = %v, want %v", in, got, want)
		}
	}
}
