package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps credentials in a plaintext two-line file:
// the username on the first line and the password on the second.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Name() string {
	return "file:" + f.path
}

// Path returns the credential file location
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load() (*Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, ErrInvalidCredentials
	}

	creds := &Credentials{
		Username: strings.TrimSpace(lines[0]),
		Password: strings.TrimRight(lines[1], " \t"),
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return creds, nil
}

func (f *FileStore) Save(creds *Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	content := creds.Username + "\n" + creds.Password + "\n"
	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := os.Rename(tempFile, f.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename credential file: %w", err)
	}
	return nil
}

func (f *FileStore) Delete() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil {
		if os.IsNotExist(err) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}

func (f *FileStore) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}
