package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cmsdl/pkg/config"
	"cmsdl/pkg/logger"
)

// Credentials is the portal login. It is never mutated after being loaded or prompted.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks that both fields are present
func (c *Credentials) Validate() error {
	if c == nil || strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return ErrInvalidCredentials
	}
	return nil
}

// String never reveals the password
func (c *Credentials) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%s", c.Username, maskString(c.Password))
}

// CredentialStore persists a single set of portal credentials
type CredentialStore interface {
	// Load returns ErrCredentialsNotFound when nothing is stored
	Load() (*Credentials, error)
	Save(creds *Credentials) error
	// Delete returns ErrCredentialsNotFound when nothing is stored
	Delete() error
	Exists() bool
	// Name identifies the backend in logs and CLI output
	Name() string
}

// NewStore builds the backend selected in configuration
func NewStore(cfg config.CredentialsConfig) (CredentialStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return NewFileStore(cfg.File), nil
	case "keyring":
		return NewKeyringStore()
	case "encrypted":
		dir, err := getConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		return NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"), "")
	case "env":
		return NewEnvironmentStore(), nil
	default:
		return nil, fmt.Errorf("unknown credentials backend %q", cfg.Backend)
	}
}

// Manager resolves credentials for a pipeline run. Credentials that came from
// the prompter are only written to the store once Commit is called, which the
// caller does after the portal accepted them.
type Manager struct {
	store    CredentialStore
	prompter Prompter
	logger   logger.Logger
}

// NewManager creates a manager. A nil prompter makes missing credentials fatal.
func NewManager(store CredentialStore, prompter Prompter, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{store: store, prompter: prompter, logger: log}
}

// Store returns the underlying backend
func (m *Manager) Store() CredentialStore {
	return m.store
}

// Resolve returns stored credentials, or prompts for new ones. fresh is true
// when the credentials were prompted and still need Commit.
func (m *Manager) Resolve(ctx context.Context) (creds *Credentials, fresh bool, err error) {
	creds, err = m.store.Load()
	switch {
	case err == nil:
		if verr := creds.Validate(); verr == nil {
			m.logger.WithField("store", m.store.Name()).Debug("Using stored credentials")
			return creds, false, nil
		}
		m.logger.WithField("store", m.store.Name()).Warn("Stored credentials are incomplete, discarding them")
		if derr := m.store.Delete(); derr != nil && !errors.Is(derr, ErrCredentialsNotFound) {
			return nil, false, fmt.Errorf("failed to discard incomplete credentials: %w", derr)
		}
	case errors.Is(err, ErrCredentialsNotFound), errors.Is(err, ErrInvalidCredentials):
	default:
		return nil, false, fmt.Errorf("failed to load credentials from %s: %w", m.store.Name(), err)
	}

	if m.prompter == nil {
		return nil, false, ErrNoPrompter
	}
	creds, err = m.prompter.Prompt(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read credentials: %w", err)
	}
	if err := creds.Validate(); err != nil {
		return nil, false, err
	}
	return creds, true, nil
}

// Commit persists credentials that authenticated successfully
func (m *Manager) Commit(creds *Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	if err := m.store.Save(creds); err != nil {
		return fmt.Errorf("failed to store credentials in %s: %w", m.store.Name(), err)
	}
	m.logger.WithField("store", m.store.Name()).Info("Credentials saved")
	return nil
}

// Invalidate removes stored credentials after the portal rejected them
func (m *Manager) Invalidate() error {
	err := m.store.Delete()
	if err == nil || errors.Is(err, ErrCredentialsNotFound) {
		m.logger.WithField("store", m.store.Name()).Warn("Stored credentials removed")
		return nil
	}
	return err
}

// getConfigDir returns the per-user configuration directory, creating it
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "cmsdl")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "cmsdl")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "cmsdl")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "cmsdl")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// maskString masks all but the first 2 and last 2 characters of a string
func maskString(s string) string {
	if len(s) <= 6 {
		return "******"
	}
	return s[:2] + "..." + s[len(s)-2:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
	ErrNoPrompter          = errors.New("no stored credentials and no terminal to prompt on")
)
