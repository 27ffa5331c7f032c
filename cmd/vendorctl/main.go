// Package main is the operator CLI for the vendor signal service: schema
// migrations, API key management, terminal reports, parquet export and the
// MCP stdio server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/syntheticfinds/vendor-software-integration/internal/cache"
	"github.com/syntheticfinds/vendor-software-integration/internal/config"
	"github.com/syntheticfinds/vendor-software-integration/internal/service"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
)

// Set by the release build.
var version = "dev"

// backends is what a command runs against once connected.
type backends struct {
	cfg   *config.Config
	store store.Store
	cache cache.Cache
	close func()
}

func (b *backends) insights() *service.InsightService {
	return service.NewInsightService(b.store, b.cache, b.cfg.Thresholds, b.cfg.Redis.MetricTTL, service.SystemClock)
}

// companyID resolves the tenant the CLI acts for: the --company flag when set,
// otherwise the default company.
func (b *backends) companyID(ctx context.Context, v *viper.Viper) (uuid.UUID, error) {
	if raw := v.GetString("company"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid company id %q", raw)
		}
		return id, nil
	}
	c, err := b.store.GetDefaultCompany(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("get default company: %w", err)
	}
	return c.ID, nil
}

type opener func(ctx context.Context, cfg *config.Config) (*backends, error)

// connect opens Postgres and Redis the same way the server does.
func connect(ctx context.Context, cfg *config.Config) (*backends, error) {
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	rc, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create redis cache: %w", err)
	}
	return &backends{
		cfg:   cfg,
		store: store.NewPostgresStore(pool),
		cache: rc,
		close: func() {
			_ = rc.Close()
			pool.Close()
		},
	}, nil
}

// cli carries the seams tests replace.
type cli struct {
	loadConfig func() (*config.Config, error)
	open       opener
	v          *viper.Viper
}

func (c *cli) backends(ctx context.Context) (*backends, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return c.open(ctx, cfg)
}

func newRootCmd(c *cli) *cobra.Command {
	if c.v == nil {
		c.v = viper.New()
	}
	c.v.SetEnvPrefix("VSICTL")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "vendorctl",
		Short:         "Operate the vendor signal service.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if c.v.GetBool("no-color") {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().String("company", "", "Company id to act for (defaults to the default company)")
	root.PersistentFlags().Bool("no-color", false, "Disable colored output")
	_ = c.v.BindPFlag("company", root.PersistentFlags().Lookup("company"))
	_ = c.v.BindPFlag("no-color", root.PersistentFlags().Lookup("no-color"))

	root.AddCommand(
		newMigrateCmd(c),
		newKeysCmd(c),
		newReportCmd(c),
		newExportCmd(c),
		newMCPCmd(c),
		newVersionCmd(),
	)
	return root
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(&cli{loadConfig: config.Load, open: connect})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func main() {
	// stdout belongs to command output and, under mcp, to the protocol.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}
