package scraper

import (
	"context"

	"cmsdl/internal/downloader"
	"cmsdl/pkg/auth"
)

// CredentialSource supplies and manages the portal login for a run.
// *auth.Manager implements it.
type CredentialSource interface {
	// Resolve returns credentials and whether they still need Commit
	Resolve(ctx context.Context) (*auth.Credentials, bool, error)
	Commit(creds *auth.Credentials) error
	Invalidate() error
}

// ProgressFactory creates a progress reporter for a download phase of total files
type ProgressFactory func(total int) downloader.ProgressReporter
