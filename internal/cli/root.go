package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/noodlebox/vclock/internal/telemetry"
)

// NewRootCmd returns the vclock-replay command tree. Output and logs go to
// the command's configured out and err writers.
func NewRootCmd(version string) *cobra.Command {
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "vclock-replay",
		Short:         "Replay timed scenarios on a virtual clock",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	outputFn := func() *Output {
		return NewOutput(jsonOutput, rootCmd.OutOrStdout(), rootCmd.ErrOrStderr())
	}
	loggerFn := func() *slog.Logger { return telemetry.NewLogger(rootCmd.ErrOrStderr()) }

	rootCmd.AddCommand(
		NewReplayCmd(outputFn, loggerFn),
		NewValidateCmd(outputFn),
	)

	return rootCmd
}
