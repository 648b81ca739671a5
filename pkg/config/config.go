package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "CMSDL_"

// Config holds all configuration options for the CMS downloader
type Config struct {
	// Portal connection settings
	Portal PortalConfig `yaml:"portal" json:"portal"`

	// Where and what to download
	Output OutputConfig `yaml:"output" json:"output"`

	// Download worker settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Retry policy for file downloads
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Course catalog cache
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Credential storage
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PortalConfig describes the remote CMS
type PortalConfig struct {
	Host               string        `yaml:"host" json:"host"`
	CoursesPath        string        `yaml:"courses_path" json:"courses_path"`
	CoursesTableID     string        `yaml:"courses_table_id" json:"courses_table_id"`
	UserAgent          string        `yaml:"user_agent" json:"user_agent"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
	RequestTimeout     time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// OutputConfig holds the local download layout
type OutputConfig struct {
	DownloadsDir      string   `yaml:"downloads_dir" json:"downloads_dir"`
	AllowedExtensions []string `yaml:"allowed_extensions" json:"allowed_extensions"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	// Timeout bounds a single file download. Zero disables it.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RetryConfig controls the exponential backoff used for downloads
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
}

// RateLimitConfig holds rate limiting configuration.
// RequestsPerMinute of zero disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// CacheConfig holds catalog cache settings
type CacheConfig struct {
	CoursesFile string `yaml:"courses_file" json:"courses_file"`
}

// CredentialsConfig selects where the portal login is kept
type CredentialsConfig struct {
	// Backend is one of file, keyring, encrypted, env
	Backend         string `yaml:"backend" json:"backend"`
	File            string `yaml:"file" json:"file"`
	MaxAuthAttempts int    `yaml:"max_auth_attempts" json:"max_auth_attempts"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	OnComplete bool `yaml:"on_complete" json:"on_complete"`
	OnError    bool `yaml:"on_error" json:"on_error"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// legacyConfig mirrors the flat config.yml used by earlier releases.
type legacyConfig struct {
	Host              string   `yaml:"host"`
	DownloadsDir      string   `yaml:"downloads_dir"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			Host:               "https://cms.guc.edu.eg",
			CoursesPath:        "/",
			CoursesTableID:     "ContentPlaceHolderright_ContentPlaceHoldercontent_GridViewcourses",
			UserAgent:          "Mozilla/5.0",
			InsecureSkipVerify: true,
			RequestTimeout:     60 * time.Second,
		},
		Output: OutputConfig{
			DownloadsDir:      "./downloads",
			AllowedExtensions: nil,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 4,
			Timeout:             0,
		},
		Retry: RetryConfig{
			MaxAttempts:    5,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
			Multiplier:     2.0,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 0,
			BurstSize:         1,
		},
		Cache: CacheConfig{
			CoursesFile: ".courses.json",
		},
		Credentials: CredentialsConfig{
			Backend:         "file",
			File:            ".cms_credentials",
			MaxAuthAttempts: 3,
		},
		Notifications: NotificationConfig{
			Enabled:    false,
			OnComplete: true,
			OnError:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if host := os.Getenv(EnvPrefix + "HOST"); host != "" {
		c.Portal.Host = host
	}
	if ua := os.Getenv(EnvPrefix + "USER_AGENT"); ua != "" {
		c.Portal.UserAgent = ua
	}
	if v := os.Getenv(EnvPrefix + "INSECURE_SKIP_VERIFY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sINSECURE_SKIP_VERIFY: %w", EnvPrefix, err)
		}
		c.Portal.InsecureSkipVerify = b
	}

	if dir := os.Getenv(EnvPrefix + "DOWNLOADS_DIR"); dir != "" {
		c.Output.DownloadsDir = dir
	}
	if exts := os.Getenv(EnvPrefix + "ALLOWED_EXTENSIONS"); exts != "" {
		c.Output.AllowedExtensions = splitList(exts)
	}

	if v := os.Getenv(EnvPrefix + "CONCURRENT_DOWNLOADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCONCURRENT_DOWNLOADS: %w", EnvPrefix, err)
		}
		c.Download.ConcurrentDownloads = n
	}
	if v := os.Getenv(EnvPrefix + "REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREQUESTS_PER_MINUTE: %w", EnvPrefix, err)
		}
		c.RateLimit.RequestsPerMinute = n
	}

	if f := os.Getenv(EnvPrefix + "CACHE_FILE"); f != "" {
		c.Cache.CoursesFile = f
	}
	if b := os.Getenv(EnvPrefix + "CREDENTIALS_BACKEND"); b != "" {
		c.Credentials.Backend = b
	}
	if f := os.Getenv(EnvPrefix + "CREDENTIALS_FILE"); f != "" {
		c.Credentials.File = f
	}

	if v := os.Getenv(EnvPrefix + "NOTIFICATIONS_ENABLED"); v != "" {
		c.Notifications.Enabled = strings.ToLower(v) == "true"
	}
	if level := os.Getenv(EnvPrefix + "LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if f := os.Getenv(EnvPrefix + "LOG_FILE"); f != "" {
		c.Logging.File = f
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file.
// An empty path searches the default locations and is not an error when none exist.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return c.parse(data)
}

func (c *Config) parse(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	var legacy legacyConfig
	if err := yaml.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if legacy.Host != "" {
		c.Portal.Host = legacy.Host
	}
	if legacy.DownloadsDir != "" {
		c.Output.DownloadsDir = legacy.DownloadsDir
	}
	if len(legacy.AllowedExtensions) > 0 {
		c.Output.AllowedExtensions = legacy.AllowedExtensions
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"config.yml",
		"config.yaml",
		".cmsdl.yaml",
		".cmsdl.yml",
		filepath.Join(home, ".config", "cmsdl", "config.yaml"),
		filepath.Join(home, ".config", "cmsdl", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Portal.Host == "" {
		errs = append(errs, errors.New("portal host is required"))
	} else if u, err := url.Parse(c.Portal.Host); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("portal host %q is not an absolute URL", c.Portal.Host))
	}
	if c.Portal.CoursesTableID == "" {
		errs = append(errs, errors.New("courses table id is required"))
	}
	if c.Portal.RequestTimeout < 0 {
		errs = append(errs, errors.New("request timeout cannot be negative"))
	}

	if c.Output.DownloadsDir == "" {
		errs = append(errs, errors.New("downloads directory is required"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 32 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 32"))
	}
	if c.Download.Timeout < 0 {
		errs = append(errs, errors.New("download timeout cannot be negative"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < 0 {
		errs = append(errs, errors.New("retry backoff cannot be negative"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.RateLimit.RequestsPerMinute > 0 && c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Cache.CoursesFile == "" {
		errs = append(errs, errors.New("courses cache file is required"))
	}

	validBackends := map[string]bool{
		"file": true, "keyring": true, "encrypted": true, "env": true,
	}
	if !validBackends[strings.ToLower(c.Credentials.Backend)] {
		errs = append(errs, fmt.Errorf("invalid credentials backend %q", c.Credentials.Backend))
	}
	if strings.EqualFold(c.Credentials.Backend, "file") && c.Credentials.File == "" {
		errs = append(errs, errors.New("credentials file is required for the file backend"))
	}
	if c.Credentials.MaxAuthAttempts <= 0 {
		errs = append(errs, errors.New("max auth attempts must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Keys match the long flag names registered on the root command.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if host, ok := flags["host"].(string); ok && host != "" {
		c.Portal.Host = host
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.DownloadsDir = outputDir
	}
	if exts, ok := flags["extensions"].([]string); ok && len(exts) > 0 {
		c.Output.AllowedExtensions = exts
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if rpm, ok := flags["rate-limit"].(int); ok && rpm >= 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if backend, ok := flags["credentials-backend"].(string); ok && backend != "" {
		c.Credentials.Backend = backend
	}
	if enabled, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = enabled
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// ExtensionAllowed reports whether files with ext should be downloaded.
// An empty allow-list permits everything.
func (c *Config) ExtensionAllowed(ext string) bool {
	if len(c.Output.AllowedExtensions) == 0 {
		return true
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	for _, allowed := range c.Output.AllowedExtensions {
		if strings.TrimPrefix(strings.ToLower(allowed), ".") == ext {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".cmsdl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
