// Package changeset computes which property keys of a .properties
// document are new or modified relative to a previous version of it.
//
// Only property entries take part. Deleted keys are not reported: they
// simply do not appear in the next translated output.
package changeset

import (
	"sort"

	"github.com/minios-linux/proptrans/propfile"
)

// Reason explains why a key is in a Set.
type Reason int

const (
	Added Reason = iota + 1
	Modified
)

func (r Reason) String() string {
	switch r {
	case Added:
		return "added"
	case Modified:
		return "modified"
	default:
		return "unknown"
	}
}

// Set is the collection of new or modified keys.
type Set map[string]Reason

// All returns a set marking every property key of doc as added. It is the
// change set of a run without a previous version.
func All(doc *propfile.Document) Set {
	s := make(Set)
	for _, k := range doc.Keys() {
		s[k] = Added
	}
	return s
}

// Has reports whether key is new or modified.
func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the keys in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of added and modified keys.
func (s Set) Count() (added, modified int) {
	for _, r := range s {
		switch r {
		case Added:
			added++
		case Modified:
			modified++
		}
	}
	return added, modified
}

// Diff compares property entries by content. A key of current is added
// when previous has no property with that key, and modified when the
// lines differ. Repeated keys are compared by their first occurrence.
func Diff(previous, current *propfile.Document) Set {
	prev := previous.Properties()
	s := make(Set)
	for key, cur := range current.Properties() {
		old, ok := prev[key]
		switch {
		case !ok:
			s[key] = Added
		case !old.Equal(cur):
			s[key] = Modified
		}
	}
	return s
}
