package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadOptions controls where configuration is read from
type LoadOptions struct {
	// ConfigFile is an explicit config file. When empty, config.yaml is
	// searched in ConfigDir() and the working directory.
	ConfigFile string
	// Viper is the instance to load into, typically one with CLI flags bound.
	// A fresh instance is used when nil.
	Viper *viper.Viper
}

// Load loads configuration from file, environment, and defaults
func Load() (*Config, error) {
	cfg, _, err := LoadWithViper(LoadOptions{})
	return cfg, err
}

// LoadWithViper loads configuration and returns the viper instance backing it.
// The instance serves key lookups through NewStore.
func LoadWithViper(opts LoadOptions) (*Config, *viper.Viper, error) {
	v := opts.Viper
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	// Read config file. Only a searched-for file may be missing.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, nil, err
		}
	}

	// Environment variables (GHSNAP_*)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	tokenEnv := append([]string{EnvPrefix + "_GITHUB_TOKEN"}, TokenEnvFallbacks...)
	if err := v.BindEnv(append([]string{KeyGitHubToken}, tokenEnv...)...); err != nil {
		return nil, nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, v, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	// GitHub defaults
	v.SetDefault("github.api_url", DefaultAPIURL)
	v.SetDefault("github.web_host", DefaultWebHost)
	v.SetDefault("github.user_agent", "")
	v.SetDefault("github.api_version", DefaultAPIVersion)
	v.SetDefault("github.timeout", DefaultTimeout)
	v.SetDefault("github.tag_workers", DefaultTagWorkers)
	v.SetDefault("github.max_tag_peels", DefaultMaxTagPeels)

	// Archive defaults
	v.SetDefault("archive.temp_dir", "")
	v.SetDefault("archive.max_size", DefaultArchiveMaxSize)

	// Retry defaults
	v.SetDefault("retry.max_retries", DefaultMaxRetries)
	v.SetDefault("retry.initial_interval", DefaultRetryInitialInterval)
	v.SetDefault("retry.max_interval", DefaultRetryMaxInterval)

	// Logging defaults
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0755)
}
