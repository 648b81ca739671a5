package auth

import "sync"

// MockStore implements CredentialStore in memory for tests
type MockStore struct {
	mu    sync.Mutex
	creds *Credentials

	// Error injection for testing
	LoadError   error
	SaveError   error
	DeleteError error

	Saves   int
	Deletes int
}

// NewMockStore creates a mock store, optionally pre-populated
func NewMockStore(initial *Credentials) *MockStore {
	m := &MockStore{}
	if initial != nil {
		c := *initial
		m.creds = &c
	}
	return m
}

func (m *MockStore) Name() string {
	return "mock"
}

func (m *MockStore) Load() (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LoadError != nil {
		return nil, m.LoadError
	}
	if m.creds == nil {
		return nil, ErrCredentialsNotFound
	}
	c := *m.creds
	return &c, nil
}

func (m *MockStore) Save(creds *Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveError != nil {
		return m.SaveError
	}
	c := *creds
	m.creds = &c
	m.Saves++
	return nil
}

func (m *MockStore) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteError != nil {
		return m.DeleteError
	}
	if m.creds == nil {
		return ErrCredentialsNotFound
	}
	m.creds = nil
	m.Deletes++
	return nil
}

func (m *MockStore) Exists() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds != nil
}

// Current returns the stored credentials without going through Load
func (m *MockStore) Current() *Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return nil
	}
	c := *m.creds
	return &c
}
