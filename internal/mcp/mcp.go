// Package mcp exposes a loadship session to a host over MCP,
// registering the ingest and observability tools and publishing model
// instructions.
package mcp

import (
	_ "embed"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/loadship"
	"github.com/deixis/loadship/internal/report"
	"github.com/deixis/loadship/internal/session"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	session *session.Session
	stats   *session.LatestStats // updated from snapshots delivered with ship_results
	store   report.Store
}

// NewServer creates an MCP server with all loadship tools registered.
// sess must have been created with stats as its StatsSource and store
// as its report store, so that delivered snapshots and shipped batches
// are visible through the status tools.
func NewServer(sess *session.Session, stats *session.LatestStats, store report.Store) *mcp.Server {
	h := &handler{
		session: sess,
		stats:   stats,
		store:   store,
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "loadship", Version: loadship.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "ship_results",
		Description: `Deliver one or more sample result trees for shipping.

Each tree is flattened in pre-order, encoded, and batched; full batches are
POSTed to the configured Elasticsearch bulk endpoint on this call. Include a
thread-pool snapshot when available so shipped documents carry thread counts.`,
	}, h.shipResultsHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "ship_flush",
		Description: `Ship the current partial batch immediately, regardless of the batch threshold.

Use before pausing a test run; the session performs its own final flush at shutdown.`,
	}, h.flushHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "ship_status",
		Description: "Report the session's run ID, batch fill, and shipping counters.",
	}, h.statusHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "ship_report",
		Description: `Retrieve the stored run report for a run_id: every bulk call with its
item count, HTTP status, and error, plus aggregate delivery counters.`,
	}, h.reportHandler)

	return s
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
