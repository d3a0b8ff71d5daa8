package version

import (
	"github.com/spf13/cobra"

	"github.com/NvTimLiu/spark-rapids-tools/client/cmd/internal/logger"
)

// BuildVersion is stamped by the release pipeline via ldflags.
var BuildVersion = "dev"

// NewVersionCommand initializes command to get version
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version information",
		RunE: func(_ *cobra.Command, _ []string) error {
			logger.NewClientLogger().Info("Client: %s", BuildVersion)
			return nil
		},
	}
}
