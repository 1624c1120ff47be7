package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/afmcp"
	"pkt.systems/afmcp/mcp"
)

func newToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the canonical tools/list JSON payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			out, err := mcp.BuildToolsListResponseJSON(ctx, afmcp.Config{})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
