package snowhook

import (
	"github.com/spf13/cobra"
	"github.com/yaklabco/snowhook/pkg/annotate"
)

func (a *app) newAnnotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "annotate",
		Short: "Append a celebratory or encouraging message to the description",
		Long: `Reads a test result and appends "Woooooooooo!" to its description
when the state is "success", or "We believe in you! Go respin!" otherwise.`,
		Args: cobra.NoArgs,
		// The annotator reads no settings; a broken republish config must
		// not stop it.
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			warnIfTerminal(cmd.InOrStdin())
			return annotate.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
