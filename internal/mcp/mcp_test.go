package mcp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/loadship/internal/config"
	"github.com/deixis/loadship/internal/report"
	"github.com/deixis/loadship/internal/session"
)

// bulkBackend counts the bulk POSTs the session performs.
type bulkBackend struct {
	mu     sync.Mutex
	bodies []string
}

func (b *bulkBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.bodies = append(b.bodies, string(data))
	b.mu.Unlock()
	io.WriteString(w, `{"errors":false}`)
}

func (b *bulkBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bodies)
}

// setup creates a full loadship MCP server + client over in-memory
// transports, backed by an httptest bulk endpoint.
func setup(t *testing.T, batchSize int) (*mcp.ClientSession, *session.Session, *bulkBackend) {
	t.Helper()
	ctx := context.Background()

	backend := &bulkBackend{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		RawURL:       srv.URL,
		APIKey:       "test-key",
		Environment:  "test",
		RawBatchSize: batchSize,
	}
	stats := &session.LatestStats{}
	store := report.NewMemStore(5, report.NewDiskStore(t.TempDir()))
	sess, err := session.New(cfg, session.WithStatsSource(stats), session.WithStore(store))
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close(context.Background()) })

	server := NewServer(sess, stats, store)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})

	return cs, sess, backend
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func tree(label string, children ...map[string]any) map[string]any {
	m := map[string]any{"label": label, "success": true, "time": 10, "timestamp": 1700000000000}
	if len(children) > 0 {
		m["children"] = children
	}
	return m
}

// --- ship_results ---

func TestShipResults_EncodesAndShips(t *testing.T) {
	cs, sess, backend := setup(t, 3)

	res := callTool(t, cs, "ship_results", map[string]any{
		"results": []any{tree("TC_Flow", tree("step1"), tree("step2"))},
		"threads": map[string]any{"started": 4, "active": 2},
	})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "3 document(s) encoded") {
		t.Errorf("expected 3 documents encoded, got:\n%s", text)
	}
	if !strings.Contains(text, "Run: "+sess.RunID()) {
		t.Errorf("expected run ID in output, got:\n%s", text)
	}
	// Three documents at threshold 3: one bulk call.
	if backend.calls() != 1 {
		t.Errorf("bulk calls = %d, want 1", backend.calls())
	}
}

func TestShipResults_NoResults(t *testing.T) {
	cs, _, _ := setup(t, 3)
	res := callTool(t, cs, "ship_results", map[string]any{"results": []any{}})
	if !res.IsError {
		t.Error("expected IsError for empty results")
	}
}

// --- ship_flush ---

func TestShipFlush_ShipsPartialBatch(t *testing.T) {
	cs, _, backend := setup(t, 10)

	callTool(t, cs, "ship_results", map[string]any{
		"results": []any{tree("only")},
	})
	if backend.calls() != 0 {
		t.Fatal("shipped before flush")
	}

	res := callTool(t, cs, "ship_flush", nil)
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "Flushed 1 document(s)") {
		t.Errorf("expected flush count in output, got:\n%s", text)
	}
	if backend.calls() != 1 {
		t.Errorf("bulk calls = %d, want 1", backend.calls())
	}
}

// --- ship_status ---

func TestShipStatus(t *testing.T) {
	cs, sess, _ := setup(t, 10)

	callTool(t, cs, "ship_results", map[string]any{
		"results": []any{tree("a"), tree("b")},
	})

	res := callTool(t, cs, "ship_status", nil)
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "Run: "+sess.RunID()) {
		t.Errorf("expected run ID, got:\n%s", text)
	}
	if !strings.Contains(text, "Documents encoded: 2") {
		t.Errorf("expected 2 documents encoded, got:\n%s", text)
	}
	if !strings.Contains(text, "Pending in batch: 2") {
		t.Errorf("expected 2 pending, got:\n%s", text)
	}
}

// --- ship_report ---

func TestShipReport_AfterFlush(t *testing.T) {
	cs, sess, _ := setup(t, 10)

	callTool(t, cs, "ship_results", map[string]any{
		"results": []any{tree("a")},
	})
	callTool(t, cs, "ship_flush", nil)

	res := callTool(t, cs, "ship_report", map[string]any{"run_id": sess.RunID()})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "Shipments:") {
		t.Errorf("expected shipments section, got:\n%s", text)
	}
	if !strings.Contains(text, "1 docs") {
		t.Errorf("expected shipment detail, got:\n%s", text)
	}
}

func TestShipReport_UnknownRunID(t *testing.T) {
	cs, _, _ := setup(t, 10)
	res := callTool(t, cs, "ship_report", map[string]any{"run_id": "nonexistent"})
	if !res.IsError {
		t.Error("expected IsError for unknown run_id")
	}
}
