package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://cms.guc.edu.eg", cfg.Portal.Host)
	assert.Equal(t, "Mozilla/5.0", cfg.Portal.UserAgent)
	assert.True(t, cfg.Portal.InsecureSkipVerify)
	assert.Equal(t, "./downloads", cfg.Output.DownloadsDir)
	assert.Empty(t, cfg.Output.AllowedExtensions)

	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.InitialBackoff)
	assert.Equal(t, 4, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, ".courses.json", cfg.Cache.CoursesFile)
	assert.Equal(t, "file", cfg.Credentials.Backend)
	assert.Equal(t, 3, cfg.Credentials.MaxAuthAttempts)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CMSDL_HOST", "https://cms.example.edu")
	t.Setenv("CMSDL_DOWNLOADS_DIR", "/tmp/cms")
	t.Setenv("CMSDL_ALLOWED_EXTENSIONS", "pdf, pptx ,,zip")
	t.Setenv("CMSDL_CONCURRENT_DOWNLOADS", "8")
	t.Setenv("CMSDL_CREDENTIALS_BACKEND", "keyring")
	t.Setenv("CMSDL_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://cms.example.edu", cfg.Portal.Host)
	assert.Equal(t, "/tmp/cms", cfg.Output.DownloadsDir)
	assert.Equal(t, []string{"pdf", "pptx", "zip"}, cfg.Output.AllowedExtensions)
	assert.Equal(t, 8, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, "keyring", cfg.Credentials.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("CMSDL_CONCURRENT_DOWNLOADS", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONCURRENT_DOWNLOADS")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
portal:
  host: https://cms.example.edu
  request_timeout: 15s
download:
  concurrent_downloads: 2
retry:
  max_attempts: 7
  initial_backoff: 250ms
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "https://cms.example.edu", cfg.Portal.Host)
	assert.Equal(t, 15*time.Second, cfg.Portal.RequestTimeout)
	assert.Equal(t, 2, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialBackoff)
	assert.Equal(t, "warn", cfg.Logging.Level)
	// untouched sections keep defaults
	assert.Equal(t, ".courses.json", cfg.Cache.CoursesFile)
}

func TestLoadFromFileLegacyKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := `
host: https://legacy.example.edu
downloads_dir: ./material
allowed_extensions:
  - pdf
  - pptx
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "https://legacy.example.edu", cfg.Portal.Host)
	assert.Equal(t, "./material", cfg.Output.DownloadsDir)
	assert.Equal(t, []string{"pdf", "pptx"}, cfg.Output.AllowedExtensions)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("portal: [unterminated"), 0644))

	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(path))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"relative host", func(c *Config) { c.Portal.Host = "cms.guc.edu.eg" }, "not an absolute URL"},
		{"no downloads dir", func(c *Config) { c.Output.DownloadsDir = "" }, "downloads directory is required"},
		{"zero workers", func(c *Config) { c.Download.ConcurrentDownloads = 0 }, "concurrent downloads must be positive"},
		{"zero retries", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry max attempts must be positive"},
		{"unknown backend", func(c *Config) { c.Credentials.Backend = "vault" }, "invalid credentials backend"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"burst without size", func(c *Config) {
			c.RateLimit.RequestsPerMinute = 30
			c.RateLimit.BurstSize = 0
		}, "burst size must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
output:
  downloads_dir: ./from-file
download:
  concurrent_downloads: 2
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("CMSDL_CONCURRENT_DOWNLOADS", "6")
	t.Setenv("CMSDL_LOG_LEVEL", "error")

	cfg, err := Load(path, map[string]interface{}{
		"log-level": "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, "./from-file", cfg.Output.DownloadsDir)
	assert.Equal(t, 6, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Output.AllowedExtensions = []string{"pdf"}
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, cfg, loaded)
}

func TestExtensionAllowed(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.ExtensionAllowed("exe"))

	cfg.Output.AllowedExtensions = []string{"pdf", ".PPTX"}
	assert.True(t, cfg.ExtensionAllowed("pdf"))
	assert.True(t, cfg.ExtensionAllowed("PDF"))
	assert.True(t, cfg.ExtensionAllowed("pptx"))
	assert.False(t, cfg.ExtensionAllowed("zip"))
}
