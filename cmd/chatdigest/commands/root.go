// Package commands implements the chatdigest CLI with cobra.
package commands

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

type globalOptions struct {
	configPath  string
	promptsPath string
	logLevel    string
}

// NewRootCmd creates the root command with every subcommand registered
func NewRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "chatdigest",
		Short: "Capture a group chat and publish a daily digest",
		Long: `chatdigest records the messages of one group chat, exports each day's
messages to text chunks and publishes an LLM-written digest back to a chat.

Examples:
  chatdigest serve --config configs/config.yaml
  chatdigest export --at "2024-03-01 21:00"
  chatdigest digest --day 2024-03-01
  chatdigest publish --day 2024-03-01`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the config file (default: "+defaultConfigPath+" when present)")
	rootCmd.PersistentFlags().StringVar(&opts.promptsPath, "prompts", "", "path to prompts.yaml (searched in default locations when empty)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newExportCmd(opts),
		newDigestCmd(opts),
		newPublishCmd(opts),
		newMCPCmd(opts),
	)

	return rootCmd
}
