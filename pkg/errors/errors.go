package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeDownload    ErrorType = "download"
	ErrorTypeCache       ErrorType = "cache"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error carries a classified failure together with the request or course it came from
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	URL     string
	Course  string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	msg += ": " + e.Message
	if e.Course != "" {
		msg += fmt.Sprintf(" [course %s]", e.Course)
	}
	if e.URL != "" {
		msg += fmt.Sprintf(" [url %s]", e.URL)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewAuthError reports a portal login rejected with the given status
func NewAuthError(code int, url string) *Error {
	return &Error{
		Type:    ErrorTypeAuth,
		Message: fmt.Sprintf("portal rejected credentials with status %d", code),
		Code:    code,
		URL:     url,
	}
}

// NewParseError reports markup that did not have the expected structure
func NewParseError(course, url, message string) *Error {
	return &Error{
		Type:    ErrorTypeParsing,
		Message: message,
		Course:  course,
		URL:     url,
	}
}

// NewDownloadError reports a file GET that did not return 200
func NewDownloadError(code int, url string, err error) *Error {
	msg := "download failed"
	if code != 0 {
		msg = fmt.Sprintf("unexpected status %d", code)
	}
	return &Error{
		Type:    ErrorTypeDownload,
		Message: msg,
		Code:    code,
		URL:     url,
		Err:     err,
	}
}

// NewCacheError reports an unreadable catalog cache file
func NewCacheError(path string, err error) *Error {
	return &Error{
		Type:    ErrorTypeCache,
		Message: fmt.Sprintf("catalog cache %s is corrupt", path),
		Err:     err,
	}
}

// NewNetworkError wraps a transport level failure
func NewNetworkError(url string, err error) *Error {
	return &Error{
		Type:    ErrorTypeNetwork,
		Message: "request failed",
		URL:     url,
		Err:     err,
	}
}

// FromStatus classifies a non-200 HTTP status
func FromStatus(code int, url string) *Error {
	e := &Error{Code: code, URL: url, Message: http.StatusText(code)}
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		e.Type = ErrorTypeAuth
	case code == http.StatusTooManyRequests:
		e.Type = ErrorTypeRateLimit
	case code >= 500:
		e.Type = ErrorTypeServerError
	default:
		e.Type = ErrorTypeDownload
	}
	return e
}

// IsType reports whether any error in err's chain is an *Error of type t
func IsType(err error, t ErrorType) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0, http.StatusTooManyRequests:
		return true
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	default:
		return statusCode >= 500
	}
}
