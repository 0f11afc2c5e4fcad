package propfile

import (
	"strings"
	"unicode"
)

// Flatten returns the entry key and the single-line value text that is
// sent for translation: the "key=" prefix is removed, each continuation
// (whitespace, backslash, line break, whitespace) collapses to one space,
// and the result is trimmed. Lines attached without a continuation keep
// their line break. A line without a separator has no value and flattens
// to "".
func Flatten(e Entry) (key, text string) {
	if len(e.Lines) == 0 || SeparatorIndex(e.Lines[0]) < 0 {
		return e.Key, ""
	}
	_, value := splitPrefix(e.Lines)
	var b strings.Builder
	continued := false
	for i, ln := range value {
		ln = strings.TrimSuffix(ln, "\r")
		if i > 0 {
			if continued {
				b.WriteByte(' ')
				ln = strings.TrimLeftFunc(ln, unicode.IsSpace)
			} else {
				b.WriteByte('\n')
			}
		}
		continued = i < len(value)-1 && HasContinuation(ln)
		if continued {
			ln = strings.TrimRight(ln, " \t\f")
			ln = strings.TrimRightFunc(ln[:len(ln)-1], unicode.IsSpace)
		}
		b.WriteString(ln)
	}
	return e.Key, strings.TrimSpace(b.String())
}

// Rebuild redistributes a flat translated value over the physical line
// shape of originalLines, the raw lines of the source entry.
//
// Each continued line i receives the next (len(trim(value line i)) - 1)
// characters of the translation followed by " \"; the first line that is
// the last one, or that does not continue, receives everything left. Later
// lines keep their original indentation. The split is purely length
// driven and may fall inside a word. Lengths are counted in runes. A line
// ending in "\r" keeps it, so CRLF files stay CRLF.
func Rebuild(key string, originalLines []string, translated string) Entry {
	prefix, value := splitPrefix(originalLines)
	crlf := make([]bool, len(value))
	for i, ln := range value {
		crlf[i] = strings.HasSuffix(ln, "\r")
		value[i] = strings.TrimSuffix(ln, "\r")
	}

	var b strings.Builder
	b.WriteString(prefix)
	remaining := []rune(translated)
	for i, ln := range value {
		if i > 0 {
			b.WriteByte('\n')
			b.WriteString(leadingSpace(ln))
		}
		trimmed := strings.TrimSpace(ln)
		if i == len(value)-1 || !HasContinuation(trimmed) {
			b.WriteString(string(remaining))
			remaining = nil
			break
		}
		split := min(len([]rune(trimmed))-1, len(remaining))
		b.WriteString(strings.TrimSpace(string(remaining[:split])))
		b.WriteString(" \\")
		remaining = []rune(strings.TrimSpace(string(remaining[split:])))
	}

	// Trailing empty lines are trimmed away, which can leave the new last
	// line ending in a continuation marker.
	out := strings.TrimSpace(b.String())
	for HasContinuation(out) {
		out = strings.TrimSpace(out[:len(out)-1])
	}
	lines := strings.Split(out, "\n")
	for i := range lines {
		if len(crlf) > 0 && crlf[min(i, len(crlf)-1)] {
			lines[i] += "\r"
		}
	}
	return Entry{Key: key, Lines: lines, Kind: KindProperty}
}

// splitPrefix splits the raw lines of a property into the "key=" prefix of
// the first line and the value lines (the rest of the first line plus any
// continuation lines). Without a separator the prefix is empty and all
// lines are value.
func splitPrefix(lines []string) (prefix string, value []string) {
	if len(lines) == 0 {
		return "", nil
	}
	sep := SeparatorIndex(lines[0])
	if sep < 0 {
		return "", append([]string(nil), lines...)
	}
	value = make([]string, 0, len(lines))
	value = append(value, lines[0][sep+1:])
	value = append(value, lines[1:]...)
	return lines[0][:sep+1], value
}

func leadingSpace(s string) string {
	for i, r := range s {
		if !unicode.IsSpace(r) {
			return s[:i]
		}
	}
	return s
}
