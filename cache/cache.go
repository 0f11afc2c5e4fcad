// Package cache persists the translated output of the last run for each
// target language. A cache file has the same format as the source
// .properties file, so it is read back with the propfile parser.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minios-linux/proptrans/propfile"
)

// Store loads and replaces per-language cache documents.
type Store interface {
	// Load returns the cached document for lang. ok is false when no
	// cache exists yet; that is not an error.
	Load(lang string) (doc *propfile.Document, ok bool, err error)
	// Save replaces the cache for lang.
	Save(lang string, doc *propfile.Document) error
}

// FileStore keeps one file per language in Dir.
type FileStore struct {
	Dir string
	// Pattern names the file for a language (default "%s.properties").
	Pattern string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Path returns the cache file path for lang.
func (s *FileStore) Path(lang string) string {
	pattern := s.Pattern
	if pattern == "" {
		pattern = "%s.properties"
	}
	return filepath.Join(s.Dir, fmt.Sprintf(pattern, lang))
}

// Load implements Store.
func (s *FileStore) Load(lang string) (*propfile.Document, bool, error) {
	doc, err := propfile.ParseFile(s.Path(lang))
	if errors.Is(err, fs.ErrNotExist) {
		return &propfile.Document{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading cache for %s: %w", lang, err)
	}
	return doc, true, nil
}

// Save implements Store. The file is written next to its destination and
// renamed over it, so a reader never sees a partial cache.
func (s *FileStore) Save(lang string, doc *propfile.Document) error {
	path := s.Path(lang)
	if err := WriteAtomic(path, doc.Marshal()); err != nil {
		return fmt.Errorf("saving cache for %s: %w", lang, err)
	}
	return nil
}

// Count returns the number of property entries cached for lang, or 0 when
// there is no cache.
func (s *FileStore) Count(lang string) (int, error) {
	doc, ok, err := s.Load(lang)
	if err != nil || !ok {
		return 0, err
	}
	_, props, _ := doc.Stats()
	return props, nil
}

// WriteAtomic writes data to a temporary file in the directory of path and
// renames it into place.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.Mutex
	docs map[string]*propfile.Document
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]*propfile.Document)}
}

// Load implements Store.
func (m *Memory) Load(lang string) (*propfile.Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[lang]
	if !ok {
		return &propfile.Document{}, false, nil
	}
	return doc, true, nil
}

// Save implements Store.
func (m *Memory) Save(lang string, doc *propfile.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[lang] = doc
	return nil
}
