package cmd

import (
	"github.com/spf13/cobra"

	"github.com/NvTimLiu/spark-rapids-tools/client/cmd/qualification"
	"github.com/NvTimLiu/spark-rapids-tools/client/cmd/version"
)

// New constructs the root command with every client sub command attached.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spark-rapids-tools <command>",
		Short: "Estimate GPU acceleration potential from execution-event logs",
		Long: "spark-rapids-tools analyzes execution-event logs produced by CPU runs " +
			"and estimates, per application, how much faster each would run on " +
			"GPU-accelerated hardware.",
		SilenceUsage: true,
	}

	cmd.AddCommand(
		qualification.NewQualificationCommand(),
		version.NewVersionCommand(),
	)
	return cmd
}
