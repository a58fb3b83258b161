package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/loadship/internal/sample"
)

// Result trees are taken as raw JSON rather than typed params: the tree
// type is recursive, which schema inference cannot express.
type shipResultsParams struct {
	Results []json.RawMessage   `json:"results" jsonschema:"Root sample result trees to ship, in execution order. Each tree is an object with label, success, time, responseCode, responseMessage, responseBody, assertions, timestamp (epoch ms), threadName, and children (nested trees)."`
	Threads *sample.ThreadStats `json:"threads,omitempty" jsonschema:"Current thread-pool snapshot: total threads started and threads currently active. Optional; the last delivered snapshot is reused when omitted."`
}

func (h *handler) shipResultsHandler(ctx context.Context, req *mcp.CallToolRequest, params shipResultsParams) (*mcp.CallToolResult, any, error) {
	if len(params.Results) == 0 {
		return errorResult("no results supplied")
	}
	if params.Threads != nil {
		h.stats.Set(*params.Threads)
	}

	before := h.session.Report().Documents
	for i, raw := range params.Results {
		root := &sample.Result{}
		if err := json.Unmarshal(raw, root); err != nil {
			return errorResult(fmt.Sprintf("parsing result %d: %v", i, err))
		}
		if err := h.session.Handle(ctx, root); err != nil {
			return errorResult(fmt.Sprintf("handling results: %v", err))
		}
	}
	encoded := h.session.Report().Documents - before

	var b strings.Builder
	fmt.Fprintf(&b, "Accepted %d tree(s), %d document(s) encoded.\n", len(params.Results), encoded)
	fmt.Fprintf(&b, "Run: %s\n", h.session.RunID())
	fmt.Fprintf(&b, "Pending in batch: %d\n", h.session.Pending())
	return textResult(b.String())
}

type flushParams struct{}

func (h *handler) flushHandler(ctx context.Context, req *mcp.CallToolRequest, params flushParams) (*mcp.CallToolResult, any, error) {
	pending := h.session.Pending()
	h.session.Flush(ctx)

	rep := h.session.Report()
	var b strings.Builder
	fmt.Fprintf(&b, "Flushed %d document(s).\n", pending)
	fmt.Fprintf(&b, "Run: %s\n", rep.RunID)
	if n := rep.Failures(); n > 0 {
		fmt.Fprintf(&b, "Failed bulk calls so far: %d\n", n)
	}
	return textResult(b.String())
}
