package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := NewParseError("[CSEN 701] Embedded", "https://cms/x", "missing week heading")
	assert.Equal(t, "parsing error: missing week heading [course [CSEN 701] Embedded] [url https://cms/x]", err.Error())

	auth := NewAuthError(401, "https://cms/")
	assert.Contains(t, auth.Error(), "(code 401)")
}

func TestIsTypeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("scrape: %w", NewAuthError(401, "https://cms/"))
	assert.True(t, IsType(err, ErrorTypeAuth))
	assert.False(t, IsType(err, ErrorTypeParsing))
	assert.False(t, IsType(io.EOF, ErrorTypeAuth))
}

func TestUnwrap(t *testing.T) {
	err := NewNetworkError("https://cms/", io.ErrUnexpectedEOF)
	assert.True(t, stderrors.Is(err, io.ErrUnexpectedEOF))
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{401, ErrorTypeAuth},
		{403, ErrorTypeAuth},
		{404, ErrorTypeDownload},
		{429, ErrorTypeRateLimit},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FromStatus(tt.code, "u").Type, "status %d", tt.code)
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeDownload))

	assert.True(t, IsRetryableStatusCode(502))
	assert.True(t, IsRetryableStatusCode(429))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(401))
}
