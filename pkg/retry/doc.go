// Package retry provides exponential backoff and retry logic for transient
// failures, used by the portal session when streaming course files.
//
// Errors classified by pkg/errors as network, rate_limit or server_error are
// retried. Auth, parsing and download (non-200, non-5xx) errors are returned
// immediately. Context cancellation always stops the loop.
//
//	cfg := retry.FromConfig(appCfg.Retry, log)
//	body, err := retry.DoWithResult(ctx, func(ctx context.Context) (io.ReadCloser, error) {
//		return open(ctx, url)
//	}, cfg)
package retry
