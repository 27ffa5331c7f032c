package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"github.com/syntheticfinds/vendor-software-integration/internal/api/handler"
	"github.com/syntheticfinds/vendor-software-integration/internal/metrics"
	"github.com/syntheticfinds/vendor-software-integration/internal/service"
	"github.com/syntheticfinds/vendor-software-integration/pkg/models"
)

var (
	goodColor    = color.New(color.FgGreen)
	badColor     = color.New(color.FgRed, color.Bold)
	neutralColor = color.New(color.FgYellow)
)

func newReportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "report SOFTWARE_ID",
		Short: "Print health, lifecycle stage and the latest value of every metric.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			softwareID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid software id %q", args[0])
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
			sw, err := b.store.GetSoftware(ctx, softwareID, companyID)
			if err != nil {
				return fmt.Errorf("get software: %w", err)
			}
			return writeReport(ctx, cmd.OutOrStdout(), b.insights(), companyID, sw)
		},
	}
}

func writeReport(ctx context.Context, w io.Writer, insights handler.Insights, companyID uuid.UUID, sw *models.Software) error {
	fmt.Fprintf(w, "%s (%s)\n", sw.DisplayName(), sw.ID)

	score, err := insights.LatestHealth(ctx, companyID, sw.ID)
	switch {
	case errors.Is(err, service.ErrNoScore):
		fmt.Fprintln(w, "Health: not scored yet")
	case err != nil:
		return err
	default:
		fmt.Fprintf(w, "Health: %s (%s, %d signals)\n",
			scoreColor(score.Score).Sprint(score.Score), score.ConfidenceTier, score.SignalCount)
	}

	tr, err := insights.Trajectory(ctx, companyID, sw.ID)
	if err != nil {
		return err
	}
	stage := "none"
	if tr.CurrentStage != "" {
		stage = string(tr.CurrentStage)
	}
	fmt.Fprintf(w, "Stage:  %s", stage)
	if tr.RegressionDetected {
		fmt.Fprintf(w, " %s", badColor.Sprint("(regression)"))
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Metric", "Window", "Latest", "Peer Avg", "Trend"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, name := range metrics.Names {
		res, err := insights.Metric(ctx, companyID, sw.ID, string(name), 0, "")
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		latest := "-"
		if v, ok := res.LatestValue(); ok {
			latest = strconv.FormatFloat(v, 'f', 2, 64)
		}
		peer := "-"
		if res.Peer != nil && len(res.Peer.Points) > 0 {
			peer = strconv.FormatFloat(res.Peer.Points[len(res.Peer.Points)-1].Value, 'f', 2, 64)
		}
		data = append(data, []string{
			string(name),
			strconv.Itoa(res.WindowDays) + "d",
			latest,
			peer,
			trendColor(res.Commentary.Trend).Sprint(res.Commentary.Trend),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func trendColor(t metrics.Trend) *color.Color {
	switch t {
	case metrics.TrendImproving:
		return goodColor
	case metrics.TrendWorsening:
		return badColor
	case metrics.TrendIncreasing, metrics.TrendDeclining:
		return neutralColor
	}
	return color.New(color.Reset)
}

func scoreColor(score int) *color.Color {
	switch {
	case score >= 75:
		return goodColor
	case score >= 50:
		return neutralColor
	}
	return badColor
}
