package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/syntheticfinds/vendor-software-integration/internal/api/handler"
	"github.com/syntheticfinds/vendor-software-integration/internal/service"
	"github.com/syntheticfinds/vendor-software-integration/internal/store"
)

type toolHandler struct {
	insights  handler.Insights
	companyID uuid.UUID
}

func (h *toolHandler) softwareID(request mcp.CallToolRequest) (uuid.UUID, *mcp.CallToolResult) {
	raw := strings.TrimSpace(request.GetString("software_id", ""))
	if raw == "" {
		return uuid.Nil, mcp.NewToolResultError("software_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(fmt.Sprintf("invalid software_id %q", raw))
	}
	return id, nil
}

func (h *toolHandler) handleGetMetric(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := h.softwareID(request)
	if bad != nil {
		return bad, nil
	}
	name := request.GetString("metric", "")
	windowDays := request.GetInt("window_days", 0)
	stage := request.GetString("stage_topic", "")

	res, err := h.insights.Metric(ctx, h.companyID, id, name, windowDays, stage)
	if err != nil {
		return failure("metric", err), nil
	}
	return jsonResult(res), nil
}

func (h *toolHandler) handleGetHealthScore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := h.softwareID(request)
	if bad != nil {
		return bad, nil
	}
	score, err := h.insights.LatestHealth(ctx, h.companyID, id)
	if err != nil {
		return failure("health score", err), nil
	}
	return jsonResult(score), nil
}

func (h *toolHandler) handleGetTrajectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := h.softwareID(request)
	if bad != nil {
		return bad, nil
	}
	tr, err := h.insights.Trajectory(ctx, h.companyID, id)
	if err != nil {
		return failure("trajectory", err), nil
	}
	return jsonResult(tr), nil
}

func (h *toolHandler) handleGetBenchmarks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := h.softwareID(request)
	if bad != nil {
		return bad, nil
	}
	b, err := h.insights.Benchmarks(ctx, h.companyID, id)
	if err != nil {
		return failure("benchmarks", err), nil
	}
	return jsonResult(b), nil
}

// failure turns lookup errors into tool errors. Tool logic never returns a
// raw error so the client sees the message.
func failure(what string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return mcp.NewToolResultError("software not found")
	case errors.Is(err, service.ErrNoScore):
		return mcp.NewToolResultError("no health score has been computed yet; trigger an analysis first")
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", what, err))
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}
