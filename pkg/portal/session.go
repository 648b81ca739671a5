package portal

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"cmsdl/pkg/auth"
	"cmsdl/pkg/config"
	errs "cmsdl/pkg/errors"
	"cmsdl/pkg/logger"
	"cmsdl/pkg/ratelimit"
	"cmsdl/pkg/retry"

	"github.com/Azure/go-ntlmssp"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// Session is an authenticated connection to the portal. It is safe for
// concurrent use; all requests share one resty client and connection pool.
type Session struct {
	client          *resty.Client
	endpoints       *Endpoints
	retry           *retry.Config
	limiter         ratelimit.Limiter
	requestTimeout  time.Duration
	downloadTimeout time.Duration
	logger          logger.Logger
}

// NewSession builds a session that authenticates every request with NTLM
func NewSession(cfg *config.Config, creds *auth.Credentials, log logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	endpoints, err := NewEndpoints(cfg.Portal.Host, cfg.Portal.CoursesPath)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost: cfg.Download.ConcurrentDownloads + 1,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Portal.InsecureSkipVerify, // #nosec G402 -- portal serves a self-signed certificate
		},
	}

	client := resty.New().
		SetTransport(ntlmssp.Negotiator{RoundTripper: transport}).
		SetHeader("User-Agent", cfg.Portal.UserAgent).
		SetBasicAuth(creds.Username, creds.Password).
		SetLogger(restyLogger{log})

	return &Session{
		client:          client,
		endpoints:       endpoints,
		retry:           retry.FromConfig(cfg.Retry, log),
		limiter:         ratelimit.FromConfig(cfg.RateLimit),
		requestTimeout:  cfg.Portal.RequestTimeout,
		downloadTimeout: cfg.Download.Timeout,
		logger:          log.WithField("component", "portal"),
	}, nil
}

// Endpoints exposes the URL builder for this portal
func (s *Session) Endpoints() *Endpoints {
	return s.endpoints
}

// Get fetches url and returns the status and full body. It does not retry.
func (s *Session) Get(ctx context.Context, url string) (int, []byte, error) {
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		s.logger.WithError(err).WithField("url", url).Error("HTTP request failed")
		return 0, nil, errs.NewNetworkError(url, err)
	}

	logger.LogRequest(s.logger, http.MethodGet, url, resp.StatusCode(), time.Since(start))
	return resp.StatusCode(), resp.Body(), nil
}

// Authenticate requests the portal root. Any status other than 200 means the
// credentials were rejected and is returned as an auth error.
func (s *Session) Authenticate(ctx context.Context) error {
	url := s.endpoints.RootURL()
	status, _, err := s.Get(ctx, url)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errs.NewAuthError(status, url)
	}
	s.logger.Info("Authenticated with portal")
	return nil
}

// Document fetches url and parses it as HTML. Non-200 responses are classified errors.
func (s *Session) Document(ctx context.Context, url string) (*goquery.Document, error) {
	status, body, err := s.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errs.FromStatus(status, url)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.NewParseError("", url, fmt.Sprintf("invalid HTML: %v", err))
	}
	return doc, nil
}

// Open starts a streaming download of url. The caller must close the body.
// Transient failures are retried with exponential backoff. size is -1 when
// the server does not send Content-Length.
func (s *Session) Open(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	cancel := context.CancelFunc(func() {})
	if s.downloadTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.downloadTimeout)
	}

	type stream struct {
		body io.ReadCloser
		size int64
	}

	st, err := retry.DoWithResult(ctx, func(ctx context.Context) (stream, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return stream{}, err
		}

		start := time.Now()
		resp, err := s.client.R().
			SetContext(ctx).
			SetDoNotParseResponse(true).
			Get(url)
		if err != nil {
			if ctx.Err() != nil {
				return stream{}, ctx.Err()
			}
			return stream{}, errs.NewNetworkError(url, err)
		}
		logger.LogRequest(s.logger, http.MethodGet, url, resp.StatusCode(), time.Since(start))

		if resp.StatusCode() != http.StatusOK {
			body := resp.RawBody()
			_, _ = io.Copy(io.Discard, body)
			body.Close()

			e := errs.FromStatus(resp.StatusCode(), url)
			if !errs.IsRetryable(e.Type) {
				return stream{}, errs.NewDownloadError(resp.StatusCode(), url, nil)
			}
			return stream{}, e
		}

		return stream{body: resp.RawBody(), size: resp.RawResponse.ContentLength}, nil
	}, s.retry)
	if err != nil {
		cancel()
		if !errs.IsType(err, errs.ErrorTypeDownload) && ctx.Err() == nil {
			err = errs.NewDownloadError(0, url, err)
		}
		return nil, 0, err
	}

	return &cancelOnClose{ReadCloser: st.body, cancel: cancel}, st.size, nil
}

// cancelOnClose releases the per-download deadline with the body
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// restyLogger routes resty's internal warnings into our logger
type restyLogger struct {
	l logger.Logger
}

func (r restyLogger) Errorf(format string, v ...interface{}) {
	r.l.Error(fmt.Sprintf(format, v...))
}

func (r restyLogger) Warnf(format string, v ...interface{}) {
	r.l.Warn(fmt.Sprintf(format, v...))
}

func (r restyLogger) Debugf(format string, v ...interface{}) {
	r.l.Debug(fmt.Sprintf(format, v...))
}
