package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/syntheticfinds/vendor-software-integration/internal/export"
)

func newExportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export SOFTWARE_ID",
		Short: "Write metric series and health history to parquet files.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			softwareID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid software id %q", args[0])
			}
			dir := c.v.GetString("export-dir")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}

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

			sum, err := export.Software(ctx, b.insights(), companyID, softwareID, dir)
			if err != nil {
				return err
			}
			cmd.Printf("wrote %d metric rows to %s\n", sum.MetricRows, sum.MetricsPath)
			cmd.Printf("wrote %d health rows to %s\n", sum.HealthRows, sum.HealthPath)
			return nil
		},
	}
	cmd.Flags().String("dir", ".", "Output directory")
	_ = c.v.BindPFlag("export-dir", cmd.Flags().Lookup("dir"))
	return cmd
}
