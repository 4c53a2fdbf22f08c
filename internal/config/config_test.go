package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv clears every variable that could leak into Load from the host.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{
		"GHSNAP_GITHUB_TOKEN", "GITHUB_TOKEN", "GH_TOKEN",
		"GHSNAP_GITHUB_API_URL", "GHSNAP_GITHUB_TIMEOUT", "GHSNAP_GITHUB_TAG_WORKERS",
		"GHSNAP_GITHUB_MAX_TAG_PEELS", "GHSNAP_ARCHIVE_MAX_SIZE", "GHSNAP_RETRY_MAX_RETRIES",
		"GHSNAP_LOGGING_LEVEL",
	} {
		t.Setenv(name, "")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		check   func(*testing.T, *Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			modify: func(c *Config) {},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, Default(), c)
			},
		},
		{
			name: "empty config is filled with defaults",
			modify: func(c *Config) {
				*c = Config{}
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, Default(), c)
			},
		},
		{
			name: "api url trailing slash trimmed",
			modify: func(c *Config) {
				c.GitHub.APIURL = "https://ghe.example.com/api/v3/"
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "https://ghe.example.com/api/v3", c.GitHub.APIURL)
			},
		},
		{
			name: "non http api url rejected",
			modify: func(c *Config) {
				c.GitHub.APIURL = "ftp://api.github.com"
			},
			wantErr: true,
		},
		{
			name: "web host lowercased",
			modify: func(c *Config) {
				c.GitHub.WebHost = " GitHub.COM "
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "github.com", c.GitHub.WebHost)
			},
		},
		{
			name: "timeout below minimum defaults to 10m",
			modify: func(c *Config) {
				c.GitHub.Timeout = 10 * time.Millisecond
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, DefaultTimeout, c.GitHub.Timeout)
			},
		},
		{
			name: "tag workers below minimum defaults to 4",
			modify: func(c *Config) {
				c.GitHub.TagWorkers = 0
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, DefaultTagWorkers, c.GitHub.TagWorkers)
			},
		},
		{
			name: "invalid max size",
			modify: func(c *Config) {
				c.Archive.MaxSize = "lots"
			},
			wantErr: true,
		},
		{
			name: "negative retries clamp to zero",
			modify: func(c *Config) {
				c.Retry.MaxRetries = -3
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 0, c.Retry.MaxRetries)
			},
		},
		{
			name: "max interval below initial interval reset",
			modify: func(c *Config) {
				c.Retry.InitialInterval = time.Minute
				c.Retry.MaxInterval = time.Second
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, time.Minute, c.Retry.InitialInterval)
				assert.Equal(t, DefaultRetryMaxInterval, c.Retry.MaxInterval)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"1GB", 1024 * 1024 * 1024, false},
		{"100MB", 100 * 1024 * 1024, false},
		{"512kb", 512 * 1024, false},
		{"2048", 2048, false},
		{"64B", 64, false},
		{" 10 MB ", 10 * 1024 * 1024, false},
		{"", 0, true},
		{"GB", 0, true},
		{"abc", 0, true},
		{"-1MB", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_MaxArchiveBytes(t *testing.T) {
	cfg := Default()
	assert.Equal(t, int64(1024*1024*1024), cfg.MaxArchiveBytes())

	cfg.Archive.MaxSize = "bogus"
	assert.Equal(t, int64(0), cfg.MaxArchiveBytes())
}

func TestDefaultPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, ".ghsnap"), ConfigDir())
	assert.Equal(t, filepath.Join(home, ".ghsnap", "config.yaml"), ConfigFilePath())

	require.NoError(t, EnsureConfigDir())
	info, err := os.Stat(ConfigDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 0, cfg.GitHub.MaxTagPeels)
}

func TestLoadWithViper_ConfigFile(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "ghsnap.yaml")
	content := `github:
  token: file-token
  api_url: https://ghe.example.com/api/v3
  timeout: 45s
  tag_workers: 2
archive:
  max_size: 50MB
retry:
  max_retries: 3
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, v, err := LoadWithViper(LoadOptions{ConfigFile: path})
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "file-token", cfg.GitHub.Token)
	assert.Equal(t, "https://ghe.example.com/api/v3", cfg.GitHub.APIURL)
	assert.Equal(t, 45*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, 2, cfg.GitHub.TagWorkers)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxArchiveBytes())
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	token, ok := NewStore(v).String(KeyGitHubToken)
	assert.True(t, ok)
	assert.Equal(t, "file-token", token)
}

func TestLoadWithViper_MissingExplicitFile(t *testing.T) {
	isolateEnv(t)

	_, _, err := LoadWithViper(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestLoadWithViper_InvalidFile(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("archive:\n  max_size: huge\n"), 0644))

	_, _, err := LoadWithViper(LoadOptions{ConfigFile: path})
	assert.ErrorContains(t, err, "archive.max_size")
}

func TestLoadWithViper_Environment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GHSNAP_GITHUB_TIMEOUT", "30s")
	t.Setenv("GHSNAP_GITHUB_TAG_WORKERS", "8")
	t.Setenv("GHSNAP_RETRY_MAX_RETRIES", "2")
	t.Setenv("GHSNAP_GITHUB_MAX_TAG_PEELS", "16")

	cfg, _, err := LoadWithViper(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.GitHub.MaxTagPeels)

	assert.Equal(t, 30*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, 8, cfg.GitHub.TagWorkers)
	assert.Equal(t, 2, cfg.Retry.MaxRetries)
}

func TestLoadWithViper_TokenFallbacks(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"no token", map[string]string{}, ""},
		{"GH_TOKEN", map[string]string{"GH_TOKEN": "gh"}, "gh"},
		{"GITHUB_TOKEN over GH_TOKEN", map[string]string{"GITHUB_TOKEN": "github", "GH_TOKEN": "gh"}, "github"},
		{"prefixed wins", map[string]string{"GHSNAP_GITHUB_TOKEN": "prefixed", "GITHUB_TOKEN": "github"}, "prefixed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, v, err := LoadWithViper(LoadOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.GitHub.Token)

			token, ok := NewStore(v).String(KeyGitHubToken)
			assert.Equal(t, tt.want != "", ok)
			assert.Equal(t, tt.want, token)
		})
	}
}

func TestLoadWithViper_FlagOverrides(t *testing.T) {
	isolateEnv(t)

	v := viper.New()
	v.Set("github.token", "from-flag")
	v.Set("retry.max_retries", 5)

	cfg, got, err := LoadWithViper(LoadOptions{Viper: v})
	require.NoError(t, err)
	assert.Same(t, v, got)
	assert.Equal(t, "from-flag", cfg.GitHub.Token)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
}
