package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	errs "cmsdl/pkg/errors"
)

// PartSuffix marks a download that has not finished yet
const PartSuffix = ".part"

// Manager writes course files under the downloads root
type Manager struct {
	root string
}

// NewManager creates a new storage manager rooted at root
func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create downloads directory: %w", err)
	}
	return &Manager{root: root}, nil
}

// Root returns the downloads directory
func (m *Manager) Root() string {
	return m.root
}

// EnsureDir creates dir and its parents if needed
func (m *Manager) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// Exists reports whether a finished file is present at path
func (m *Manager) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Save streams r to path. Data goes to path+".part" first and is renamed
// into place only when complete, so path never holds a partial file. When
// size is not negative the written length must match it. progress, if set,
// receives the byte count of every chunk written.
func (m *Manager) Save(r io.Reader, path string, size int64, progress func(n int64)) (int64, error) {
	tempFile := path + PartSuffix
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	var w io.Writer = out
	if progress != nil {
		w = &progressWriter{w: out, report: progress}
	}

	written, err := io.Copy(w, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return written, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return written, fmt.Errorf("failed to close file: %w", closeErr)
	}
	if size >= 0 && written != size {
		os.Remove(tempFile)
		return written, errs.NewDownloadError(0, "",
			fmt.Errorf("incomplete download of %s: got %d of %d bytes", filepath.Base(path), written, size))
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return written, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return written, nil
}

type progressWriter struct {
	w      io.Writer
	report func(n int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if n > 0 {
		p.report(int64(n))
	}
	return n, err
}
