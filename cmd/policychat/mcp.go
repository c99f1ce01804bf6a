package main

import (
	"os"

	"github.com/flemzord/policychat/internal/mcpserver"
	"github.com/spf13/cobra"
)

func mcpCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assistant as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries the protocol.
			rt, err := flags.openHeadless(cmd.Context(), os.Stderr)
			if err != nil {
				return err
			}
			if err := rt.Start(); err != nil {
				return err
			}
			defer rt.Stop()

			srv := mcpserver.New(rt.Router, version, rt.Logger.With("component", "mcp"))
			return srv.ServeStdio()
		},
	}
}
