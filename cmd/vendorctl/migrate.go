package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := store.RunMigrations(cfg.Database.URL); err != nil {
				return err
			}
			v, _, err := store.MigrationVersion(cfg.Database.URL)
			if err != nil {
				return err
			}
			cmd.Printf("schema at version %d\n", v)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			v, dirty, err := store.MigrationVersion(cfg.Database.URL)
			if err != nil {
				return err
			}
			if dirty {
				cmd.Printf("schema at version %d (dirty)\n", v)
				return nil
			}
			cmd.Printf("schema at version %d\n", v)
			return nil
		},
	})
	return cmd
}
