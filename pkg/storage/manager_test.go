package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	errs "cmsdl/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "downloads")
	m, err := NewManager(root)
	require.NoError(t, err)

	assert.Equal(t, root, m.Root())
	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEnsureDirAndExists(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	dir := filepath.Join(m.Root(), "[CSEN401] Lab", "W 03-10")
	require.NoError(t, m.EnsureDir(dir))
	require.NoError(t, m.EnsureDir(dir))

	assert.False(t, m.Exists(dir), "directories are not files")
	assert.False(t, m.Exists(filepath.Join(dir, "slides.pptx")))
}

func TestSave(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	path := filepath.Join(m.Root(), "slides.pptx")
	data := []byte("lecture slides")

	var reported int64
	n, err := m.Save(bytes.NewReader(data), path, int64(len(data)), func(k int64) { reported += k })
	require.NoError(t, err)

	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, int64(len(data)), reported)
	assert.True(t, m.Exists(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, content)

	_, err = os.Stat(path + PartSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestSaveUnknownSize(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	path := filepath.Join(m.Root(), "notes.pdf")
	n, err := m.Save(strings.NewReader("abc"), path, -1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.True(t, m.Exists(path))
}

func TestSaveSizeMismatchLeavesNoFile(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	path := filepath.Join(m.Root(), "slides.pptx")
	_, err = m.Save(strings.NewReader("short"), path, 100, nil)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeDownload))

	assert.False(t, m.Exists(path))
	_, err = os.Stat(path + PartSuffix)
	assert.True(t, os.IsNotExist(err))
}

type failingReader struct {
	data []byte
	done bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.done {
		return 0, errors.New("connection reset")
	}
	f.done = true
	return copy(p, f.data), nil
}

func TestSaveReadErrorLeavesNoFile(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	path := filepath.Join(m.Root(), "slides.pptx")
	_, err = m.Save(&failingReader{data: []byte("partial")}, path, -1, nil)
	require.Error(t, err)

	assert.False(t, m.Exists(path))
	_, err = os.Stat(path + PartSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestSaveOverwritesStalePart(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	path := filepath.Join(m.Root(), "slides.pptx")
	require.NoError(t, os.WriteFile(path+PartSuffix, []byte("stale stale stale"), 0644))

	_, err = m.Save(io.LimitReader(strings.NewReader("fresh"), 5), path, 5, nil)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(content))
}
