package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	// DefaultRepoDir is the working copy logs are committed into.
	DefaultRepoDir = "logs"

	// DefaultURLPrefix is where DefaultRepoDir is served once pushed.
	DefaultURLPrefix = "https://ajdlinux.github.io/snowpatch-ozlabs-logs"

	// DefaultCommitMessage is the message of every log commit.
	DefaultCommitMessage = "Add logs"

	// DefaultRequireClean refuses to publish from a dirty working copy.
	DefaultRequireClean = true

	// DefaultSyncBeforeWrite pulls before writing a log.
	DefaultSyncBeforeWrite = true

	// DefaultPushAttempts disables push retries unless configured.
	DefaultPushAttempts = 1

	// DefaultLockTimeout bounds the wait for the working copy lock.
	DefaultLockTimeout = 5 * time.Minute

	// DefaultFetchTimeout bounds each log download attempt.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultFetchAttempts is the number of download tries.
	DefaultFetchAttempts = 1

	// DefaultFetchRetryDelay is the pause between download tries.
	DefaultFetchRetryDelay = time.Second

	// DefaultDebug is the default debug setting.
	DefaultDebug = false
)

// setDefaults configures default values in the viper instance.
func setDefaults(viperInstance *viper.Viper) {
	viperInstance.SetDefault("repo_dir", DefaultRepoDir)
	viperInstance.SetDefault("url_prefix", DefaultURLPrefix)
	viperInstance.SetDefault("commit_message", DefaultCommitMessage)
	viperInstance.SetDefault("require_clean", DefaultRequireClean)
	viperInstance.SetDefault("sync_before_write", DefaultSyncBeforeWrite)
	viperInstance.SetDefault("push_attempts", DefaultPushAttempts)
	viperInstance.SetDefault("lock_timeout", DefaultLockTimeout)
	viperInstance.SetDefault("fetch.timeout", DefaultFetchTimeout)
	viperInstance.SetDefault("fetch.attempts", DefaultFetchAttempts)
	viperInstance.SetDefault("fetch.retry_delay", DefaultFetchRetryDelay)
	viperInstance.SetDefault("fetch.username", "")
	viperInstance.SetDefault("fetch.token", "")
	viperInstance.SetDefault("debug", DefaultDebug)
}
