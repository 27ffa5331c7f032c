package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/syntheticfinds/vendor-software-integration/internal/api/handler"
	mw "github.com/syntheticfinds/vendor-software-integration/internal/api/middleware"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

func newKeysCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys.",
	}

	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Mint an API key. The raw key is printed once.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scopes, _ := cmd.Flags().GetStringSlice("scope")
			valid, ok := handler.ValidateScopes(scopes)
			if !ok {
				return fmt.Errorf("invalid scope in %v; use %s, %s or %s",
					scopes, models.ScopeRead, models.ScopeIngest, models.ScopeAdmin)
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

			key, raw, err := mw.NewAPIKey(companyID, strings.TrimSpace(args[0]), valid)
			if err != nil {
				return err
			}
			if err := b.store.CreateAPIKey(ctx, key); err != nil {
				return fmt.Errorf("store api key: %w", err)
			}
			cmd.Printf("id:     %s\n", key.ID)
			cmd.Printf("scopes: %s\n", strings.Join(key.Scopes, ","))
			cmd.Printf("key:    %s\n", color.GreenString(raw))
			return nil
		},
	}
	create.Flags().StringSlice("scope", nil, "Scopes to grant (read, ingest, admin); defaults to read")

	list := &cobra.Command{
		Use:   "list",
		Short: "List active API keys.",
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
			keys, err := b.store.ListAPIKeys(ctx, companyID)
			if err != nil {
				return err
			}
			return writeKeysTable(cmd.OutOrStdout(), keys)
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke ID",
		Short: "Revoke an API key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid key id %q", args[0])
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
			if err := b.store.RevokeAPIKey(ctx, id, companyID); err != nil {
				return fmt.Errorf("revoke %s: %w", id, err)
			}
			cmd.Printf("revoked %s\n", id)
			return nil
		},
	}

	cmd.AddCommand(create, list, revoke)
	return cmd
}

func writeKeysTable(w io.Writer, keys []*models.APIKey) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "Name", "Prefix", "Scopes", "Last Used", "Created"})

	var data [][]string
	for _, k := range keys {
		lastUsed := "never"
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.Format(time.RFC3339)
		}
		data = append(data, []string{
			k.ID.String(),
			k.Name,
			k.KeyPrefix,
			strings.Join(k.Scopes, ","),
			lastUsed,
			k.CreatedAt.Format(time.RFC3339),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
