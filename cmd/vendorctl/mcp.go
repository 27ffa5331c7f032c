package main

import (
	"github.com/spf13/cobra"
	"github.com/syntheticfinds/vendor-software-integration/internal/mcp"
)

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve metric, health, trajectory and benchmark tools over MCP stdio.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			b, err := c.backends(ctx)
			if err != nil {
				return err
			}
			defer b.close()
			companyID, err := b.companyID(ctx, c.v)
			if err != nil {
				return err
			}
			return mcp.Serve(ctx, b.insights(), companyID, version)
		},
	}
}
