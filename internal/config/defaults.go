package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/quantmind-br/ghsnap/pkg/version"
)

// Default values
const (
	// GitHub defaults
	DefaultAPIURL      = "https://api.github.com"
	DefaultWebHost     = "github.com"
	DefaultAPIVersion  = "2022-11-28"
	DefaultTimeout     = 10 * time.Minute
	DefaultTagWorkers  = 4
	DefaultMaxTagPeels = 0

	// Archive defaults
	DefaultArchiveMaxSize = "1GB"

	// Retry defaults
	DefaultMaxRetries           = 0
	DefaultRetryInitialInterval = 1 * time.Second
	DefaultRetryMaxInterval     = 30 * time.Second

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"
)

// Configuration keys read through Store
const (
	KeyGitHubToken = "github.token"
)

// EnvPrefix is the prefix of environment variable overrides (GHSNAP_GITHUB_TIMEOUT, ...)
const EnvPrefix = "GHSNAP"

// TokenEnvFallbacks are consulted for github.token after GHSNAP_GITHUB_TOKEN
var TokenEnvFallbacks = []string{"GITHUB_TOKEN", "GH_TOKEN"}

// ConfigDir returns the config directory path
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ghsnap"
	}
	return filepath.Join(home, ".ghsnap")
}

// ConfigFilePath returns the config file path
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{
			APIURL:      DefaultAPIURL,
			WebHost:     DefaultWebHost,
			UserAgent:   version.UserAgent(),
			APIVersion:  DefaultAPIVersion,
			Timeout:     DefaultTimeout,
			TagWorkers:  DefaultTagWorkers,
			MaxTagPeels: DefaultMaxTagPeels,
		},
		Archive: ArchiveConfig{
			MaxSize: DefaultArchiveMaxSize,
		},
		Retry: RetryConfig{
			MaxRetries:      DefaultMaxRetries,
			InitialInterval: DefaultRetryInitialInterval,
			MaxInterval:     DefaultRetryMaxInterval,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
