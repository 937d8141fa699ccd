package snowhook

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yaklabco/snowhook/config"
	"github.com/yaklabco/snowhook/pkg/ui"
	"gopkg.in/yaml.v3"
)

func (a *app) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage snowhook configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				source := a.cfg.ConfigFile()
				if source == "" {
					source = "defaults"
				}
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), ui.GetTitleStyle().Render("Configuration from "+source))

				out, err := yaml.Marshal(a.cfg.Redacted())
				if err != nil {
					return fmt.Errorf("rendering configuration: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err //nolint:wrapcheck // plain write to stdout
			},
		},
		&cobra.Command{
			Use:         "init",
			Short:       "Write a commented default configuration file",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{skipConfigAnnotation: "true"},
			RunE: func(cmd *cobra.Command, _ []string) error {
				path, err := config.WriteDefaultConfig()
				if err != nil {
					return err //nolint:wrapcheck // already descriptive
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
	)

	return cmd
}
