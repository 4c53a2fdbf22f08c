package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quantmind-br/ghsnap/pkg/version"
)

// Config represents the application configuration
type Config struct {
	GitHub  GitHubConfig  `mapstructure:"github" yaml:"github"`
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
	Retry   RetryConfig   `mapstructure:"retry" yaml:"retry"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// GitHubConfig contains GitHub API settings
type GitHubConfig struct {
	Token      string        `mapstructure:"token" yaml:"token"`
	APIURL     string        `mapstructure:"api_url" yaml:"api_url"`
	WebHost    string        `mapstructure:"web_host" yaml:"web_host"`
	UserAgent  string        `mapstructure:"user_agent" yaml:"user_agent"`
	APIVersion string        `mapstructure:"api_version" yaml:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	TagWorkers int           `mapstructure:"tag_workers" yaml:"tag_workers"`
	// MaxTagPeels bounds annotated tag lookups during tag discovery; 0 disables them
	MaxTagPeels int `mapstructure:"max_tag_peels" yaml:"max_tag_peels"`
}

// ArchiveConfig contains archive download and extraction settings
type ArchiveConfig struct {
	TempDir string `mapstructure:"temp_dir" yaml:"temp_dir"`
	MaxSize string `mapstructure:"max_size" yaml:"max_size"`
}

// RetryConfig contains the caller-level retry policy. MaxRetries of 0 disables retries.
type RetryConfig struct {
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	c.GitHub.APIURL = strings.TrimRight(strings.TrimSpace(c.GitHub.APIURL), "/")
	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = DefaultAPIURL
	}
	if !strings.HasPrefix(c.GitHub.APIURL, "http://") && !strings.HasPrefix(c.GitHub.APIURL, "https://") {
		return fmt.Errorf("invalid github.api_url %q: must be an http(s) URL", c.GitHub.APIURL)
	}
	c.GitHub.WebHost = strings.ToLower(strings.TrimSpace(c.GitHub.WebHost))
	if c.GitHub.WebHost == "" {
		c.GitHub.WebHost = DefaultWebHost
	}
	if c.GitHub.UserAgent == "" {
		c.GitHub.UserAgent = version.UserAgent()
	}
	if c.GitHub.APIVersion == "" {
		c.GitHub.APIVersion = DefaultAPIVersion
	}
	if c.GitHub.Timeout < time.Second {
		c.GitHub.Timeout = DefaultTimeout
	}
	if c.GitHub.TagWorkers < 1 {
		c.GitHub.TagWorkers = DefaultTagWorkers
	}
	if c.GitHub.MaxTagPeels < 0 {
		c.GitHub.MaxTagPeels = 0
	}

	if c.Archive.MaxSize == "" {
		c.Archive.MaxSize = DefaultArchiveMaxSize
	} else if _, err := ParseSize(c.Archive.MaxSize); err != nil {
		return fmt.Errorf("invalid archive.max_size: %w", err)
	}

	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	if c.Retry.InitialInterval <= 0 {
		c.Retry.InitialInterval = DefaultRetryInitialInterval
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		c.Retry.MaxInterval = DefaultRetryMaxInterval
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	return nil
}

// MaxArchiveBytes returns archive.max_size in bytes, or 0 when it cannot be parsed
func (c *Config) MaxArchiveBytes() int64 {
	n, err := ParseSize(c.Archive.MaxSize)
	if err != nil {
		return 0
	}
	return n
}

// ParseSize parses a human size such as "512KB", "100MB" or "1GB" into bytes
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	var multiplier int64 = 1
	if strings.HasSuffix(s, "GB") {
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	} else if strings.HasSuffix(s, "MB") {
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	} else if strings.HasSuffix(s, "KB") {
		multiplier = 1024
		s = strings.TrimSuffix(s, "KB")
	} else if strings.HasSuffix(s, "B") {
		s = strings.TrimSuffix(s, "B")
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("no numeric value in size string")
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value: %w", err)
	}

	if n < 0 {
		return 0, fmt.Errorf("negative size not allowed")
	}

	return n * multiplier, nil
}
