// Package snowhook wires the snowhook hook filters into a cobra command tree.
package snowhook

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"github.com/yaklabco/snowhook/cmd/snowhook/version"
	"github.com/yaklabco/snowhook/config"
	"github.com/yaklabco/snowhook/internal/log"
	"github.com/yaklabco/snowhook/pkg/fetch"
	"github.com/yaklabco/snowhook/pkg/prettylog"
	"github.com/yaklabco/snowhook/pkg/republish"
	"github.com/yaklabco/snowhook/pkg/testresult"
)

const (
	shortDescription = "snowhook filters CI test results on their way to Patchwork."
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitMalformed = 2
	ExitFetch     = 3
	ExitPublish   = 4
)

// Command annotations read by setup.
const (
	// skipConfigAnnotation marks commands that run without loading config.
	skipConfigAnnotation = "snowhook/skip-config"

	// deferValidationAnnotation marks commands that validate config
	// themselves, once they know they need it.
	deferValidationAnnotation = "snowhook/defer-validation"
)

// app carries state shared by the subcommands of one invocation.
type app struct {
	configFile string
	debug      bool
	cfg        *config.Config
}

// NewRootCmd builds the snowhook command tree.
func NewRootCmd(_ context.Context) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "snowhook",
		Short: shortDescription,
		Long: shortDescription + `

Each hook reads one JSON test result on stdin and writes the rewritten
result on stdout. Diagnostics go to stderr.`,
		Example: `	# Add an encouraging note to the description
	snowhook annotate < result.json

	# Copy the CI log into the published log repository
	snowhook republish --repo-dir /srv/snowpatch/logs < result.json

	# Inspect the effective configuration
	snowhook config show`,
		Version:           version.Resolve().Colorized(),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	rootCmd.PersistentFlags().BoolVarP(&a.debug, "debug", "d", false, "turn on debug messages")
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "read configuration from this file instead of ./snowhook.yaml")

	rootCmd.AddCommand(
		a.newAnnotateCmd(),
		a.newRepublishCmd(),
		a.newConfigCmd(),
	)

	return rootCmd
}

// setup loads configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipConfigAnnotation] != "" {
		prettylog.SetupPrettyLogger(cmd.ErrOrStderr(), a.debug)
		return nil
	}

	cfg, err := config.Load(&config.LoadOptions{
		ConfigFile:     a.configFile,
		Stderr:         cmd.ErrOrStderr(),
		SkipValidation: cmd.Annotations[deferValidationAnnotation] != "",
	})
	if err != nil {
		return err //nolint:wrapcheck // config errors name the offending key
	}
	a.cfg = cfg

	prettylog.SetupPrettyLogger(cmd.ErrOrStderr(), a.debug || cfg.Debug)
	return nil
}

// warnIfTerminal tells an interactive user the hook is waiting for input.
func warnIfTerminal(in io.Reader) {
	f, ok := in.(*os.File)
	if ok && term.IsTerminal(f.Fd()) {
		log.SimpleConsoleLogger().Println("reading a test result from the terminal, end it with Ctrl-D")
	}
}

// ExitCode maps an error returned by the command tree to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, testresult.ErrMalformed):
		return ExitMalformed
	case errors.Is(err, fetch.ErrFetch):
		return ExitFetch
	case errors.Is(err, republish.ErrPublish):
		return ExitPublish
	default:
		return ExitFailure
	}
}

// ExecuteWithFang runs the root Cobra command with Fang-specific options.
func ExecuteWithFang(ctx context.Context, rootCmd *cobra.Command) error {
	//nolint:wrapcheck // top-level error from cobra, wrapping not needed
	return fang.Execute(
		ctx, rootCmd, fang.WithVersion(rootCmd.Version), fang.WithoutManpage())
}
