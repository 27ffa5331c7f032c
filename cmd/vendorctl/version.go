package main

import (
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("vendorctl\n")
			cmd.Printf("  Version: %s\n", version)
			cmd.Printf("  Runtime: %s\n", runtime.Version())
		},
	}
}
