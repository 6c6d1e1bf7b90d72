package commands

import (
	"github.com/spf13/cobra"
)

var (
	// configPath is the node config YAML read by every command that
	// needs to open storage directly (there is no running daemon to
	// dial — see client.go).
	configPath string

	// outputFormat holds the --format flag value. No command reads it;
	// all output is plain text.
	outputFormat string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "veridianctl",
	Short: "veridian node control CLI",
	Long: `veridianctl drives a veridian node's pipeline lifecycle and
discovery/insight sessions directly against its configured storage
backends, the same facade a REST/gRPC server would sit behind. Since
that server is out of scope here, every invocation constructs its own
in-process registry rather than attaching to a running node's — so
pipeline-stop/-restart/-observe/-list and discover-stop/-query only see
state created earlier in the same invocation. pipeline-start is the
useful end-to-end demo path; the others exist for facade-surface parity.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "veridian.yaml",
		"Path to node config YAML file",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format (only text is produced)",
	)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pipelineStartCmd)
	rootCmd.AddCommand(pipelineStopCmd)
	rootCmd.AddCommand(pipelineRestartCmd)
	rootCmd.AddCommand(pipelineObserveCmd)
	rootCmd.AddCommand(pipelineListCmd)
	rootCmd.AddCommand(discoverStartCmd)
	rootCmd.AddCommand(discoverStopCmd)
	rootCmd.AddCommand(discoverQueryCmd)
}
