// Package mcp exposes the read side of the engine as Model Context Protocol
// tools so assistants can query vendor metrics over stdio.
package mcp

import (
	"context"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/syntheticfinds/vendor-software-integration/internal/api/handler"
	"github.com/syntheticfinds/vendor-software-integration/internal/metrics"
)

// NewMCPServer builds the server without starting it. Every tool is scoped
// to companyID.
func NewMCPServer(insights handler.Insights, companyID uuid.UUID, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Vendor Signal Server",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{insights: insights, companyID: companyID}

	names := make([]string, len(metrics.Names))
	for i, n := range metrics.Names {
		names[i] = string(n)
	}

	s.AddTool(mcp.NewTool("get_metric",
		mcp.WithDescription("Daily time series for one metric of a tracked software, with trend commentary and a peer series when enough peers exist."),
		mcp.WithString("software_id", mcp.Description("Software UUID."), mcp.Required()),
		mcp.WithString("metric", mcp.Description("Metric name."), mcp.Required(), mcp.Enum(names...)),
		mcp.WithNumber("window_days", mcp.Description("Trailing window in days. Defaults to the metric's own window.")),
		mcp.WithString("stage_topic", mcp.Description("Restrict to signals tagged with this lifecycle stage.")),
	), h.handleGetMetric)

	s.AddTool(mcp.NewTool("get_health_score",
		mcp.WithDescription("Most recent stored health score with category breakdown and summary."),
		mcp.WithString("software_id", mcp.Description("Software UUID."), mcp.Required()),
	), h.handleGetHealthScore)

	s.AddTool(mcp.NewTool("get_trajectory",
		mcp.WithDescription("Lifecycle stage classification, per-stage smoothness and regression detection."),
		mcp.WithString("software_id", mcp.Description("Software UUID."), mcp.Required()),
	), h.handleGetTrajectory)

	s.AddTool(mcp.NewTool("get_benchmarks",
		mcp.WithDescription("Anonymous peer comparison of health and trajectory scores."),
		mcp.WithString("software_id", mcp.Description("Software UUID."), mcp.Required()),
	), h.handleGetBenchmarks)

	return s
}

// Serve runs the server on stdin and stdout until the client disconnects.
func Serve(_ context.Context, insights handler.Insights, companyID uuid.UUID, version string) error {
	return server.ServeStdio(NewMCPServer(insights, companyID, version))
}
