package changeset

import "github.com/minios-linux/proptrans/propfile"

// DiffOrdered computes a change set from a shortest edit script over the
// ordered property sequences of both documents. Every property of current
// that is not part of the longest common subsequence is reported, so a key
// that only moved is reported as modified, unlike Diff.
//
// It exists to reproduce caches produced by the edit-script policy; the
// orchestrator uses Diff.
func DiffOrdered(previous, current *propfile.Document) Set {
	a := properties(previous)
	b := properties(current)
	known := make(map[string]bool, len(a))
	for _, e := range a {
		known[e.Key] = true
	}

	// Common prefix and suffix need no table.
	lo := 0
	for lo < len(a) && lo < len(b) && a[lo].Equal(b[lo]) {
		lo++
	}
	ha, hb := len(a), len(b)
	for ha > lo && hb > lo && a[ha-1].Equal(b[hb-1]) {
		ha--
		hb--
	}

	kept := lcs(a[lo:ha], b[lo:hb])
	s := make(Set)
	for i, e := range b[lo:hb] {
		if kept[i] {
			continue
		}
		if known[e.Key] {
			s[e.Key] = Modified
		} else {
			s[e.Key] = Added
		}
	}
	return s
}

func properties(d *propfile.Document) []propfile.Entry {
	var out []propfile.Entry
	for _, e := range d.Entries() {
		if e.Kind == propfile.KindProperty {
			out = append(out, e)
		}
	}
	return out
}

// lcs marks which elements of b belong to a longest common subsequence of
// a and b.
func lcs(a, b []propfile.Entry) []bool {
	kept := make([]bool, len(b))
	if len(a) == 0 || len(b) == 0 {
		return kept
	}
	n, m := len(a), len(b)
	// table[i][j] is the LCS length of a[i:] and b[j:].
	table := make([][]int32, n+1)
	for i := range table {
		table[i] = make([]int32, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i].Equal(b[j]) {
				table[i][j] = table[i+1][j+1] + 1
			} else {
				table[i][j] = max(table[i+1][j], table[i][j+1])
			}
		}
	}
	for i, j := 0, 0; i < n && j < m; {
		switch {
		case a[i].Equal(b[j]):
			kept[j] = true
			i++
			j++
		case table[i+1][j] >= table[i][j+1]:
			i++
		default:
			j++
		}
	}
	return kept
}
