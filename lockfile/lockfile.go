// Package lockfile implements proptrans.lock, a ledger of the source
// entries each language was last translated from. It records an xxhash
// checksum per property key and language, plus the last known glossary
// state, so that status reporting can tell which keys changed since the
// last successful run without keeping a copy of the old source.
//
// The lock file is stored alongside .proptrans.yaml.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/proptrans/propfile"
)

// LockFileName is the default lock file name.
const LockFileName = "proptrans.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// GlossaryRecord is the outcome of the last glossary resolution for a
// language.
type GlossaryRecord struct {
	Name    string    `yaml:"name"`
	State   string    `yaml:"state"`
	Updated time.Time `yaml:"updated"`
}

// LockFile represents the proptrans.lock file structure.
type LockFile struct {
	Version    int                          `yaml:"version"`
	Checksums  map[string]map[string]string `yaml:"checksums"` // lang -> key -> xxhash
	Glossaries map[string]GlossaryRecord    `yaml:"glossaries,omitempty"`

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version:    Version,
		Checksums:  make(map[string]map[string]string),
		Glossaries: make(map[string]GlossaryRecord),
		path:       path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path

	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}
	if lf.Glossaries == nil {
		lf.Glossaries = make(map[string]GlossaryRecord)
	}
	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}
	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// Hash computes the xxhash64 hex digest of a string.
func Hash(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 16)
}

// EntryContent builds the hashed content of a property entry. The raw
// lines are hashed, so a change in line layout counts as a change, as it
// does for change detection.
func EntryContent(e propfile.Entry) string {
	return strings.Join(e.Lines, "\n")
}

// IsChanged reports whether the entry for key is new or different since
// the last recorded run for lang.
func (lf *LockFile) IsChanged(lang string, e propfile.Entry) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	keys, ok := lf.Checksums[lang]
	if !ok {
		return true
	}
	old, ok := keys[e.Key]
	if !ok {
		return true
	}
	return old != Hash(EntryContent(e))
}

// HasLanguage reports whether a run for lang has been recorded.
func (lf *LockFile) HasLanguage(lang string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	_, ok := lf.Checksums[lang]
	return ok
}

// ChangedKeys returns, in document order, the property keys of doc that
// changed since the last recorded run for lang.
func (lf *LockFile) ChangedKeys(lang string, doc *propfile.Document) []string {
	props := doc.Properties()
	var changed []string
	for _, key := range doc.Keys() {
		if lf.IsChanged(lang, props[key]) {
			changed = append(changed, key)
		}
	}
	return changed
}

// Record replaces the checksums of lang with those of every property of
// doc. Keys no longer in doc are dropped.
func (lf *LockFile) Record(lang string, doc *propfile.Document) {
	sums := make(map[string]string)
	for key, e := range doc.Properties() {
		sums[key] = Hash(EntryContent(e))
	}

	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}
	lf.Checksums[lang] = sums
}

// Clean removes checksums of lang for keys not in currentKeys.
func (lf *LockFile) Clean(lang string, currentKeys []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[lang]
	if existing == nil {
		return
	}
	valid := make(map[string]bool, len(currentKeys))
	for _, k := range currentKeys {
		valid[k] = true
	}
	for k := range existing {
		if !valid[k] {
			delete(existing, k)
		}
	}
}

// RemoveLanguage removes everything recorded for lang.
func (lf *LockFile) RemoveLanguage(lang string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	delete(lf.Checksums, lang)
	delete(lf.Glossaries, lang)
}

// ---------------------------------------------------------------------------
// Glossary state
// ---------------------------------------------------------------------------

// SetGlossary records the outcome of a glossary resolution.
func (lf *LockFile) SetGlossary(lang, name, state string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.Glossaries == nil {
		lf.Glossaries = make(map[string]GlossaryRecord)
	}
	lf.Glossaries[lang] = GlossaryRecord{Name: name, State: state, Updated: time.Now().UTC().Truncate(time.Second)}
}

// Glossary returns the last recorded glossary state for lang.
func (lf *LockFile) Glossary(lang string) (GlossaryRecord, bool) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	r, ok := lf.Glossaries[lang]
	return r, ok
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of languages and total keys in the lock file.
func (lf *LockFile) Stats() (langs, keys int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	langs = len(lf.Checksums)
	for _, m := range lf.Checksums {
		keys += len(m)
	}
	return
}

// Languages returns the sorted list of recorded languages.
func (lf *LockFile) Languages() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	langs := make([]string, 0, len(lf.Checksums))
	for l := range lf.Checksums {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if len(lf.Checksums) == 0 {
		return "empty"
	}
	langs := make([]string, 0, len(lf.Checksums))
	for l := range lf.Checksums {
		langs = append(langs, l)
	}
	sort.Strings(langs)

	keys := 0
	parts := make([]string, 0, len(langs))
	for _, l := range langs {
		n := len(lf.Checksums[l])
		keys += n
		parts = append(parts, fmt.Sprintf("%s: %d keys", l, n))
	}
	return fmt.Sprintf("%d languages, %d keys (%s)", len(langs), keys, strings.Join(parts, ", "))
}
