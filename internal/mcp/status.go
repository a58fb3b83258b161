package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type statusParams struct{}

func (h *handler) statusHandler(ctx context.Context, req *mcp.CallToolRequest, params statusParams) (*mcp.CallToolResult, any, error) {
	rep := h.session.Report()

	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", rep.RunID)
	if rep.Environment != "" {
		fmt.Fprintf(&b, "Environment: %s\n", rep.Environment)
	}
	if rep.Type != "" {
		fmt.Fprintf(&b, "Type: %s\n", rep.Type)
	}
	fmt.Fprintf(&b, "Documents encoded: %d\n", rep.Documents)
	fmt.Fprintf(&b, "Documents shipped: %d\n", rep.Shipped())
	fmt.Fprintf(&b, "Bulk calls: %d (%d failed)\n", len(rep.Shipments), rep.Failures())
	fmt.Fprintf(&b, "Pending in batch: %d\n", h.session.Pending())
	return textResult(b.String())
}

type reportParams struct {
	RunID string `json:"run_id" jsonschema:"Run identifier from ship_status or a ship_results response."`
}

func (h *handler) reportHandler(ctx context.Context, req *mcp.CallToolRequest, params reportParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	rep, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("loading report: %v", err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", rep.RunID)
	fmt.Fprintf(&b, "Documents encoded: %d, shipped: %d\n", rep.Documents, rep.Shipped())
	fmt.Fprintln(&b)
	if len(rep.Shipments) == 0 {
		fmt.Fprintln(&b, "No bulk calls recorded.")
		return textResult(b.String())
	}
	fmt.Fprintln(&b, "Shipments:")
	for i, s := range rep.Shipments {
		if s.Error != "" {
			fmt.Fprintf(&b, "  %d. %s  %d docs  FAILED: %s\n", i+1, s.Time.Format("15:04:05"), s.Documents, s.Error)
		} else {
			fmt.Fprintf(&b, "  %d. %s  %d docs  status=%d\n", i+1, s.Time.Format("15:04:05"), s.Documents, s.StatusCode)
		}
	}
	return textResult(b.String())
}
