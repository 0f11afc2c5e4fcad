package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/proptrans/propfile"
)

func TestFileStore_MissingIsEmpty(t *testing.T) {
	s := NewFileStore(t.TempDir())
	doc, ok, err := s.Load("fr")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, doc.Len())
}

func TestFileStore_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	s := NewFileStore(dir)
	in := propfile.Parse([]byte("# c\na=Bonjour \\\n  le monde\nb=Salut"))

	require.NoError(t, s.Save("fr", in))

	out, ok, err := s.Load("fr")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in.Marshal(), out.Marshal())

	n, err := s.Count("fr")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFileStore_SaveReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.Save("de", propfile.Parse([]byte("a=1\n"))))
	require.NoError(t, s.Save("de", propfile.Parse([]byte("a=2\n"))))

	data, err := os.ReadFile(s.Path("de"))
	require.NoError(t, err)
	assert.Equal(t, "a=2\n", string(data))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestFileStore_Pattern(t *testing.T) {
	s := &FileStore{Dir: "/c", Pattern: "messages_%s.properties"}
	assert.Equal(t, filepath.Join("/c", "messages_pt-BR.properties"), s.Path("pt-BR"))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	_, ok, _ := m.Load("fr")
	assert.False(t, ok)
	require.NoError(t, m.Save("fr", propfile.Parse([]byte("a=1\n"))))
	doc, ok, err := m.Load("fr")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, doc.Keys())
}
