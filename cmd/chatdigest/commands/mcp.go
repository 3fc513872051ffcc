package commands

import (
	"github.com/spf13/cobra"

	"github.com/devricklin/chatdigest/internal/mcpserver"
)

func newMCPCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve stored messages and digests as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			s := mcpserver.NewServer(mcpserver.Config{
				ChatID:            a.cfg.Push.TargetChatID,
				ExcludedThreadIDs: a.cfg.Push.IgnoredThreadIDs,
				Location:          a.cfg.Location(),
			}, a.repos.Event, a.repos.Artifact, a.logger)
			return s.Run(cmd.Context())
		},
	}
}
