// Package config loads, validates, and writes the credsync configuration.
//
// Configuration is a YAML file, by default at ~/.config/credsync/config.yaml.
// Environment variables override the file: CREDSYNC_CREDENTIALS_PATH,
// CREDSYNC_SECRET_NAME, CREDSYNC_TRANSPORT, CREDSYNC_DEBOUNCE, and the token
// from whatever variable GitHub.TokenEnv names (GITHUB_TOKEN by default).
// All values travel explicitly through constructors; nothing in the rest of
// the program reads ambient process-wide state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport kinds selectable in configuration.
const (
	TransportGH  = "gh"
	TransportAPI = "api"
)

var secretNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config is the complete credsync configuration.
type Config struct {
	Version     int               `yaml:"version"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Targets     []string          `yaml:"targets"`
	Transport   TransportConfig   `yaml:"transport"`
	GitHub      GitHubConfig      `yaml:"github"`
	Watch       WatchConfig       `yaml:"watch"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CredentialsConfig names the watched file and the secret it becomes.
type CredentialsConfig struct {
	// Path is the credential file to watch.
	Path string `yaml:"path"`
	// SecretName is the repository secret the file content is stored under.
	SecretName string `yaml:"secret_name"`
}

// TransportConfig selects the delivery mechanism.
type TransportConfig struct {
	// Kind is "gh" (GitHub CLI) or "api" (direct REST API).
	Kind string `yaml:"kind"`
	// GHBinary overrides the gh executable path for the gh transport.
	GHBinary string `yaml:"gh_binary,omitempty"`
}

// GitHubConfig configures API authentication.
type GitHubConfig struct {
	// Token is the API token. Usually left empty in the file and supplied
	// through TokenEnv instead.
	Token string `yaml:"token,omitempty"`
	// TokenEnv is the environment variable the token is read from when Token
	// is empty. Default: GITHUB_TOKEN.
	TokenEnv string `yaml:"token_env"`
	// APIBaseURL overrides the API endpoint (GitHub Enterprise).
	APIBaseURL string `yaml:"api_base_url,omitempty"`
}

// WatchConfig tunes change detection. Durations are strings ("500ms", "2s")
// so the file stays hand-editable.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
	Settle   string `yaml:"settle"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Version: 1,
		Credentials: CredentialsConfig{
			SecretName: "CLAUDE_CREDENTIALS",
		},
		Transport: TransportConfig{
			Kind: TransportGH,
		},
		GitHub: GitHubConfig{
			TokenEnv: "GITHUB_TOKEN",
		},
		Watch: WatchConfig{
			Debounce: "500ms",
			Settle:   "50ms",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "credsync", "config.yaml")
	}
	return filepath.Join(os.TempDir(), "credsync", "config.yaml")
}

// StateDir returns the directory holding the state database, instance lock,
// and logs.
func StateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".credsync")
	}
	return filepath.Join(home, ".credsync")
}

// Load reads the config file at path, applies environment overrides, and
// validates the result. A missing file is an error; callers route that to
// `credsync setup`.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CREDSYNC_CREDENTIALS_PATH"); v != "" {
		c.Credentials.Path = v
	}
	if v := os.Getenv("CREDSYNC_SECRET_NAME"); v != "" {
		c.Credentials.SecretName = v
	}
	if v := os.Getenv("CREDSYNC_TRANSPORT"); v != "" {
		c.Transport.Kind = v
	}
	if v := os.Getenv("CREDSYNC_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Credentials.Path == "" {
		return fmt.Errorf("credentials.path is required")
	}
	if !secretNameRe.MatchString(c.Credentials.SecretName) {
		return fmt.Errorf("credentials.secret_name %q is not a valid secret name", c.Credentials.SecretName)
	}

	switch c.Transport.Kind {
	case TransportGH, TransportAPI:
	default:
		return fmt.Errorf("transport.kind must be %q or %q, got %q", TransportGH, TransportAPI, c.Transport.Kind)
	}

	for _, target := range c.Targets {
		if err := ValidateTarget(target); err != nil {
			return err
		}
	}

	if _, err := c.DebounceWindow(); err != nil {
		return err
	}
	if _, err := c.SettleWindow(); err != nil {
		return err
	}
	return nil
}

// ValidateTarget checks an owner/repo target identifier.
func ValidateTarget(target string) error {
	owner, repo, ok := strings.Cut(target, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return fmt.Errorf("target %q is not an owner/repo identifier", target)
	}
	return nil
}

// DebounceWindow parses the configured debounce duration.
func (c *Config) DebounceWindow() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, fmt.Errorf("watch.debounce: %w", err)
	}
	return d, nil
}

// SettleWindow parses the configured settle duration.
func (c *Config) SettleWindow() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Settle)
	if err != nil {
		return 0, fmt.Errorf("watch.settle: %w", err)
	}
	return d, nil
}

// ResolveToken returns the API token: the explicit value when set, otherwise
// the TokenEnv environment variable. Empty means not configured.
func (c *Config) ResolveToken() string {
	if c.GitHub.Token != "" {
		return c.GitHub.Token
	}
	if c.GitHub.TokenEnv != "" {
		return os.Getenv(c.GitHub.TokenEnv)
	}
	return ""
}
