package auth

import (
	"os"

	"cmsdl/pkg/config"
)

// EnvironmentStore reads credentials from CMSDL_USERNAME and CMSDL_PASSWORD.
// It is read-only, so rejected credentials cannot be invalidated and the run stops.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Name() string {
	return "env"
}

func (e *EnvironmentStore) Load() (*Credentials, error) {
	username := os.Getenv(config.EnvPrefix + "USERNAME")
	password := os.Getenv(config.EnvPrefix + "PASSWORD")
	if username == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}
	return &Credentials{Username: username, Password: password}, nil
}

// Save is not supported for environment variables
func (e *EnvironmentStore) Save(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete() error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists() bool {
	_, err := e.Load()
	return err == nil
}
