package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cmsdl/pkg/config"
	"cmsdl/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

type stubPrompter struct {
	answers []*Credentials
	calls   int
}

func (s *stubPrompter) Prompt(ctx context.Context) (*Credentials, error) {
	if s.calls >= len(s.answers) {
		return nil, errors.New("no more answers")
	}
	c := s.answers[s.calls]
	s.calls++
	return c, nil
}

func TestCredentialsValidate(t *testing.T) {
	assert.NoError(t, (&Credentials{Username: "ahmed.ali", Password: "secret"}).Validate())
	assert.ErrorIs(t, (&Credentials{Username: " ", Password: "secret"}).Validate(), ErrInvalidCredentials)
	assert.ErrorIs(t, (&Credentials{Username: "ahmed.ali"}).Validate(), ErrInvalidCredentials)

	var nilCreds *Credentials
	assert.ErrorIs(t, nilCreds.Validate(), ErrInvalidCredentials)
}

func TestCredentialsStringMasksPassword(t *testing.T) {
	c := &Credentials{Username: "ahmed.ali", Password: "hunter2hunter2"}
	assert.NotContains(t, c.String(), "hunter2hunter2")
	assert.Contains(t, c.String(), "ahmed.ali")
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cms_credentials")
	store := NewFileStore(path)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.False(t, store.Exists())

	require.NoError(t, store.Save(&Credentials{Username: "ahmed.ali", Password: "p@ss word"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ahmed.ali\np@ss word\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "ahmed.ali", loaded.Username)
	assert.Equal(t, "p@ss word", loaded.Password)

	require.NoError(t, store.Delete())
	assert.False(t, store.Exists())
	assert.ErrorIs(t, store.Delete(), ErrCredentialsNotFound)
}

func TestFileStoreReadsWindowsLineEndings(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cms_credentials")
	require.NoError(t, os.WriteFile(path, []byte("ahmed.ali\r\nsecret\r\n"), 0600))

	creds, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "ahmed.ali", creds.Username)
	assert.Equal(t, "secret", creds.Password)
}

func TestFileStoreRejectsSingleLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cms_credentials")
	require.NoError(t, os.WriteFile(path, []byte("only-a-username"), 0600))

	_, err := NewFileStore(path).Load()
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, store.Save(&Credentials{Username: "ahmed.ali", Password: "secret"}))
	assert.True(t, store.Exists())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "secret", loaded.Password)

	require.NoError(t, store.Delete())
	assert.ErrorIs(t, store.Delete(), ErrCredentialsNotFound)
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")
	store, err := NewEncryptedFileStore(path, "correct horse")
	require.NoError(t, err)

	require.NoError(t, store.Save(&Credentials{Username: "ahmed.ali", Password: "secret"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "secret"), "password must not be stored in clear text")

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "ahmed.ali", loaded.Username)

	wrong, err := NewEncryptedFileStore(path, "wrong passphrase")
	require.NoError(t, err)
	_, err = wrong.Load()
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, store.Delete())
	assert.False(t, store.Exists())
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CMSDL_PASSPHRASE", "")

	_, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"), "")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, ".passphrase"))
	assert.NoError(t, err)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("CMSDL_USERNAME", "ahmed.ali")
	t.Setenv("CMSDL_PASSWORD", "secret")

	store := NewEnvironmentStore()
	creds, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "ahmed.ali", creds.Username)

	assert.ErrorIs(t, store.Save(creds), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete(), ErrStoreUnavailable)
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(config.CredentialsConfig{Backend: "file", File: "x"})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	store, err = NewStore(config.CredentialsConfig{Backend: "env"})
	require.NoError(t, err)
	assert.IsType(t, &EnvironmentStore{}, store)

	_, err = NewStore(config.CredentialsConfig{Backend: "vault"})
	assert.Error(t, err)
}

func TestManagerUsesStoredCredentials(t *testing.T) {
	store := NewMockStore(&Credentials{Username: "ahmed.ali", Password: "secret"})
	prompter := &stubPrompter{}
	m := NewManager(store, prompter, logger.NewNopLogger())

	creds, fresh, err := m.Resolve(context.Background())
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, "ahmed.ali", creds.Username)
	assert.Equal(t, 0, prompter.calls)
}

func TestManagerPromptsWithoutPersisting(t *testing.T) {
	store := NewMockStore(nil)
	prompter := &stubPrompter{answers: []*Credentials{{Username: "ahmed.ali", Password: "secret"}}}
	m := NewManager(store, prompter, logger.NewNopLogger())

	creds, fresh, err := m.Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, 1, prompter.calls)
	assert.False(t, store.Exists(), "prompted credentials are only written on Commit")

	require.NoError(t, m.Commit(creds))
	assert.True(t, store.Exists())
	assert.Equal(t, 1, store.Saves)
}

func TestManagerDiscardsIncompleteStoredCredentials(t *testing.T) {
	store := NewMockStore(&Credentials{Username: "ahmed.ali"})
	prompter := &stubPrompter{answers: []*Credentials{{Username: "ahmed.ali", Password: "secret"}}}
	m := NewManager(store, prompter, logger.NewNopLogger())

	_, fresh, err := m.Resolve(context.Background())
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, 1, store.Deletes)
}

func TestManagerWithoutPrompter(t *testing.T) {
	m := NewManager(NewMockStore(nil), nil, logger.NewNopLogger())

	_, _, err := m.Resolve(context.Background())
	assert.ErrorIs(t, err, ErrNoPrompter)
}

func TestManagerInvalidate(t *testing.T) {
	store := NewMockStore(&Credentials{Username: "ahmed.ali", Password: "secret"})
	m := NewManager(store, nil, logger.NewNopLogger())

	require.NoError(t, m.Invalidate())
	assert.False(t, store.Exists())
	// nothing left to remove is not an error
	require.NoError(t, m.Invalidate())

	ro := NewManager(NewEnvironmentStore(), nil, logger.NewNopLogger())
	assert.ErrorIs(t, ro.Invalidate(), ErrStoreUnavailable)
}

func TestTerminalPrompterFromPipe(t *testing.T) {
	var out strings.Builder
	p := &TerminalPrompter{In: strings.NewReader("  ahmed.ali \nsecret pass\n"), Out: &out}

	creds, err := p.Prompt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ahmed.ali", creds.Username)
	assert.Equal(t, "secret pass", creds.Password)
	assert.Contains(t, out.String(), "username")
}

func TestTerminalPrompterEmptyInput(t *testing.T) {
	p := &TerminalPrompter{In: strings.NewReader(""), Out: &strings.Builder{}}

	_, err := p.Prompt(context.Background())
	assert.Error(t, err)
}
