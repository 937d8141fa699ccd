package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"
	"github.com/yaklabco/snowhook/internal/env"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "SNOWHOOK_"

// Config holds all snowhook configuration values.
type Config struct {
	// RepoDir is the Git working copy logs are committed into.
	RepoDir string `mapstructure:"repo_dir"`

	// URLPrefix is the public address RepoDir is served from.
	URLPrefix string `mapstructure:"url_prefix"`

	// CommitMessage is the message of each log commit.
	CommitMessage string `mapstructure:"commit_message"`

	// RequireClean refuses to publish from a working copy with pending changes.
	RequireClean bool `mapstructure:"require_clean"`

	// SyncBeforeWrite pulls with rebase before writing each log.
	SyncBeforeWrite bool `mapstructure:"sync_before_write"`

	// PushAttempts is how often a rejected push is retried after a rebase.
	PushAttempts int `mapstructure:"push_attempts"`

	// LockTimeout bounds the wait for concurrent publishers.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`

	// Fetch configures log downloads.
	Fetch FetchConfig `mapstructure:"fetch"`

	// Debug enables debug messages.
	Debug bool `mapstructure:"debug"`

	// configFile is the path to the config file that was loaded (if any).
	configFile string
}

// FetchConfig holds the log download settings.
type FetchConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	Attempts   int           `mapstructure:"attempts"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Username   string        `mapstructure:"username"`
	Token      string        `mapstructure:"token"`
}

// ConfigFile returns the path to the configuration file that was loaded,
// or an empty string if no file was loaded.
func (c *Config) ConfigFile() string {
	return c.configFile
}

// LoadOptions configures how configuration is loaded.
type LoadOptions struct {
	// ConfigFile is an explicit configuration file. When set it replaces
	// the project config file and must exist.
	ConfigFile string

	// ProjectDir is the directory to search for project-level config.
	// If empty, the current working directory is used.
	ProjectDir string

	// Stderr is where warnings are written.
	// If nil, os.Stderr is used.
	Stderr io.Writer

	// SkipProjectConfig skips loading project-level configuration.
	SkipProjectConfig bool

	// SkipUserConfig skips loading user-level configuration.
	SkipUserConfig bool

	// SkipEnv skips reading environment variables.
	SkipEnv bool

	// SkipValidation returns the configuration without running Validate.
	// The caller is expected to validate before using the values.
	SkipValidation bool
}

// Load reads configuration from all sources and returns a Config struct.
// Configuration is loaded in the following order (later sources override earlier):
//  1. Defaults
//  2. User config file (~/.config/snowhook/config.yaml)
//  3. Project config file (./snowhook.yaml) or LoadOptions.ConfigFile
//  4. Environment variables (SNOWHOOK_*)
//
// If opts is nil, default options are used.
func Load(opts *LoadOptions) (*Config, error) {
	if opts == nil {
		opts = &LoadOptions{}
	}

	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	viperInstance := viper.New()

	setDefaults(viperInstance)
	viperInstance.SetConfigType("yaml")

	var configFileUsed string

	if !opts.SkipUserConfig {
		paths := ResolveXDGPaths()
		viperInstance.SetConfigName(ConfigFileName)
		viperInstance.AddConfigPath(paths.ConfigDir())

		if err := viperInstance.ReadInConfig(); err != nil {
			var configFileNotFoundError viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFoundError) {
				return nil, fmt.Errorf("failed to read user config file: %w", err)
			}
		} else {
			configFileUsed = viperInstance.ConfigFileUsed()
		}
	}

	overlay, err := overlayConfigPath(opts)
	if err != nil {
		return nil, err
	}
	if overlay != "" {
		viperInstance.SetConfigFile(overlay)
		if err := viperInstance.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", overlay, err)
		}
		configFileUsed = overlay
	}

	var cfg Config
	if err := viperInstance.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if !opts.SkipEnv {
		if err := applyEnvironmentOverrides(&cfg); err != nil {
			return nil, err
		}
	}

	cfg.configFile = configFileUsed

	if strings.HasPrefix(cfg.RepoDir, "~/") {
		cfg.RepoDir = filepath.Join(userHomeDir(), cfg.RepoDir[2:])
	}

	if !opts.SkipValidation {
		if err := cfg.Check(opts.Stderr); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// overlayConfigPath returns the file merged over the user config: the
// explicit ConfigFile, else ./snowhook.yaml when present.
func overlayConfigPath(opts *LoadOptions) (string, error) {
	if opts.ConfigFile != "" {
		if _, err := os.Stat(opts.ConfigFile); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return opts.ConfigFile, nil
	}
	if opts.SkipProjectConfig {
		return "", nil
	}

	projectDir := opts.ProjectDir
	if projectDir == "" {
		var err error
		projectDir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	projectConfigPath := filepath.Join(projectDir, ProjectConfigFileName+".yaml")
	if _, err := os.Stat(projectConfigPath); err != nil {
		return "", nil //nolint:nilerr // a missing project config is not an error
	}
	return projectConfigPath, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// Environment variables take precedence over config file values; a value
// that does not parse is an error rather than silently ignored.
func applyEnvironmentOverrides(cfg *Config) error {
	strs := map[string]*string{
		"REPO_DIR":       &cfg.RepoDir,
		"URL_PREFIX":     &cfg.URLPrefix,
		"COMMIT_MESSAGE": &cfg.CommitMessage,
		"FETCH_USERNAME": &cfg.Fetch.Username,
		"FETCH_TOKEN":    &cfg.Fetch.Token,
	}
	bools := map[string]*bool{
		"REQUIRE_CLEAN":     &cfg.RequireClean,
		"SYNC_BEFORE_WRITE": &cfg.SyncBeforeWrite,
		"DEBUG":             &cfg.Debug,
	}
	ints := map[string]*int{
		"PUSH_ATTEMPTS":  &cfg.PushAttempts,
		"FETCH_ATTEMPTS": &cfg.Fetch.Attempts,
	}
	durations := map[string]*time.Duration{
		"LOCK_TIMEOUT":      &cfg.LockTimeout,
		"FETCH_TIMEOUT":     &cfg.Fetch.Timeout,
		"FETCH_RETRY_DELAY": &cfg.Fetch.RetryDelay,
	}

	for _, name := range sortedKeys(strs) {
		dst := strs[name]
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	var errs []error
	for _, name := range sortedKeys(bools) {
		dst := bools[name]
		if v := os.Getenv(EnvPrefix + name); v != "" {
			parsed, err := env.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				continue
			}
			*dst = parsed
		}
	}
	for _, name := range sortedKeys(ints) {
		dst := ints[name]
		if v := os.Getenv(EnvPrefix + name); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				continue
			}
			*dst = parsed
		}
	}
	for _, name := range sortedKeys(durations) {
		dst := durations[name]
		if v := os.Getenv(EnvPrefix + name); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				continue
			}
			*dst = parsed
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		RepoDir:         DefaultRepoDir,
		URLPrefix:       DefaultURLPrefix,
		CommitMessage:   DefaultCommitMessage,
		RequireClean:    DefaultRequireClean,
		SyncBeforeWrite: DefaultSyncBeforeWrite,
		PushAttempts:    DefaultPushAttempts,
		LockTimeout:     DefaultLockTimeout,
		Fetch: FetchConfig{
			Timeout:    DefaultFetchTimeout,
			Attempts:   DefaultFetchAttempts,
			RetryDelay: DefaultFetchRetryDelay,
		},
		Debug: DefaultDebug,
	}
}

// Redacted returns a copy of c with secrets masked, for display.
func (c *Config) Redacted() *Config {
	clone := *c
	if clone.Fetch.Token != "" {
		clone.Fetch.Token = "********"
	}
	return &clone
}

// displayConfig mirrors Config for YAML output, with durations in their
// string form.
type displayConfig struct {
	RepoDir         string       `yaml:"repo_dir"`
	URLPrefix       string       `yaml:"url_prefix"`
	CommitMessage   string       `yaml:"commit_message"`
	RequireClean    bool         `yaml:"require_clean"`
	SyncBeforeWrite bool         `yaml:"sync_before_write"`
	PushAttempts    int          `yaml:"push_attempts"`
	LockTimeout     string       `yaml:"lock_timeout"`
	Fetch           displayFetch `yaml:"fetch"`
	Debug           bool         `yaml:"debug"`
}

type displayFetch struct {
	Timeout    string `yaml:"timeout"`
	Attempts   int    `yaml:"attempts"`
	RetryDelay string `yaml:"retry_delay"`
	Username   string `yaml:"username,omitempty"`
	Token      string `yaml:"token,omitempty"`
}

// MarshalYAML implements yaml.Marshaler using the same keys Load reads.
func (c *Config) MarshalYAML() (any, error) {
	return displayConfig{
		RepoDir:         c.RepoDir,
		URLPrefix:       c.URLPrefix,
		CommitMessage:   c.CommitMessage,
		RequireClean:    c.RequireClean,
		SyncBeforeWrite: c.SyncBeforeWrite,
		PushAttempts:    c.PushAttempts,
		LockTimeout:     c.LockTimeout.String(),
		Fetch: displayFetch{
			Timeout:    c.Fetch.Timeout.String(),
			Attempts:   c.Fetch.Attempts,
			RetryDelay: c.Fetch.RetryDelay.String(),
			Username:   c.Fetch.Username,
			Token:      c.Fetch.Token,
		},
		Debug: c.Debug,
	}, nil
}

// WriteDefaultConfig writes a default configuration file to the user's config directory.
func WriteDefaultConfig() (string, error) {
	paths := ResolveXDGPaths()
	configDir := paths.ConfigDir()

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := paths.ConfigFilePath()

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	// 0600: the file may end up holding fetch.token
	if err := os.WriteFile(configPath, []byte(defaultConfigYAML()), 0o600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, nil
}

// defaultConfigYAML returns the default configuration as YAML.
func defaultConfigYAML() string {
	return `# snowhook configuration

# Git working copy the republish hook commits logs into.
repo_dir: ` + DefaultRepoDir + `

# Public address the working copy is served from once pushed.
url_prefix: ` + DefaultURLPrefix + `

# Message of every log commit (a Signed-off-by trailer is added).
commit_message: ` + DefaultCommitMessage + `

# Refuse to publish when the working copy has uncommitted changes.
require_clean: true

# Pull with rebase before writing each log.
sync_before_write: true

# Pushes tried when the remote moved underneath us, rebasing in between.
push_attempts: 1

# Longest wait for another republish on the same working copy.
lock_timeout: 5m

fetch:
  timeout: 30s
  attempts: 1
  retry_delay: 1s
  # Basic auth for CI servers that require it.
  # username: snowpatch
  # token: ""

# Enable debug messages.
debug: false
`
}
