package snowhook

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/yaklabco/snowhook/config"
	"github.com/yaklabco/snowhook/pkg/fetch"
	"github.com/yaklabco/snowhook/pkg/republish"
)

type republishFlags struct {
	repoDir       string
	urlPrefix     string
	pushAttempts  int
	fetchTimeout  time.Duration
	fetchAttempts int
}

func (a *app) newRepublishCmd() *cobra.Command {
	var flags republishFlags

	cmd := &cobra.Command{
		Use:   "republish",
		Short: "Copy the CI log into the log repository and point target_url at it",
		Long: `Downloads the log behind target_url, commits it under a random name in
the log repository, pushes, and rewrites target_url to the published copy.
A result without target_url is consumed silently.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{deferValidationAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			flags.apply(cmd, cfg)

			fetcher := fetch.New(fetch.Options{
				Timeout:    cfg.Fetch.Timeout,
				Attempts:   cfg.Fetch.Attempts,
				RetryDelay: cfg.Fetch.RetryDelay,
				Username:   cfg.Fetch.Username,
				Token:      cfg.Fetch.Token,
			})
			r := republish.New(republishConfig(cfg), fetcher)
			// A record without target_url stays a silent no-op even when
			// the settings it would need are invalid.
			r.Preflight = func() error {
				return cfg.Check(cmd.ErrOrStderr())
			}

			warnIfTerminal(cmd.InOrStdin())
			return r.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&flags.repoDir, "repo-dir", "", "log repository working copy (default from config)")
	cmd.Flags().StringVar(&flags.urlPrefix, "url-prefix", "", "public URL the log repository is served from")
	cmd.Flags().IntVar(&flags.pushAttempts, "push-attempts", 0, "pushes to try when the remote moved")
	cmd.Flags().DurationVar(&flags.fetchTimeout, "fetch-timeout", 0, "timeout for each log download")
	cmd.Flags().IntVar(&flags.fetchAttempts, "fetch-attempts", 0, "log download tries")

	return cmd
}

// apply copies explicitly set flags over cfg.
func (f *republishFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("repo-dir") {
		cfg.RepoDir = f.repoDir
	}
	if changed("url-prefix") {
		cfg.URLPrefix = f.urlPrefix
	}
	if changed("push-attempts") {
		cfg.PushAttempts = f.pushAttempts
	}
	if changed("fetch-timeout") {
		cfg.Fetch.Timeout = f.fetchTimeout
	}
	if changed("fetch-attempts") {
		cfg.Fetch.Attempts = f.fetchAttempts
	}
}

func republishConfig(cfg *config.Config) republish.Config {
	return republish.Config{
		RepoDir:         cfg.RepoDir,
		URLPrefix:       cfg.URLPrefix,
		CommitMessage:   cfg.CommitMessage,
		RequireClean:    cfg.RequireClean,
		SyncBeforeWrite: cfg.SyncBeforeWrite,
		PushAttempts:    cfg.PushAttempts,
		LockTimeout:     cfg.LockTimeout,
	}
}
