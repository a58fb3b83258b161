// Package shipper sends document batches to the Elasticsearch bulk
// endpoint.
package shipper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/deixis/loadship/internal/document"
)

// indexAction is the bulk-API framing line emitted before each document.
const indexAction = `{"index":{}}`

// Shipper performs bulk POSTs to a fixed endpoint with ApiKey
// authorization. The underlying client is created once and reused for
// every call; it is safe for concurrent use.
type Shipper struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// New validates the endpoint and constructs the HTTP client with the
// given overall request timeout. An invalid endpoint is a fatal setup
// error: there is no point starting a session that can never ship.
func New(endpoint, apiKey string, timeout time.Duration) (*Shipper, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing bulk endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("bulk endpoint %q: scheme must be http or https", endpoint)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Shipper{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Result describes one completed ship call.
type Result struct {
	Documents  int
	StatusCode int
	Body       string
}

// Ship serialises docs into the bulk wire format and performs a single
// POST. An empty batch is a no-op that returns without a network call.
//
// Any transport failure or non-2xx status is returned as an error; the
// caller logs and discards — the batch was already cleared at drain
// time, and there is no retry. A 2xx response is not inspected for
// per-item failures; that is a known limitation of the protocol use,
// kept for parity with the destination's bulk semantics.
func (s *Shipper) Ship(ctx context.Context, docs []document.Document) (*Result, error) {
	if len(docs) == 0 {
		return &Result{}, nil
	}

	payload := Payload(docs)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building bulk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	req.Header.Set("Authorization", "ApiKey "+s.apiKey)

	log.Printf("sending bulk payload with %d items", len(docs))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting bulk payload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading bulk response: %w", err)
	}

	res := &Result{
		Documents:  len(docs),
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, fmt.Errorf("bulk endpoint returned status %d: %s", resp.StatusCode, body)
	}

	log.Printf("bulk response: status=%d body=%s", res.StatusCode, res.Body)
	return res, nil
}

// Payload renders docs as the newline-delimited bulk body: an index
// action line followed by the document line, per document, each
// terminated with a newline.
func Payload(docs []document.Document) []byte {
	var buf bytes.Buffer
	for _, doc := range docs {
		buf.WriteString(indexAction)
		buf.WriteByte('\n')
		buf.Write(doc.MarshalLine())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Close releases pooled connections. Safe to call more than once.
func (s *Shipper) Close() {
	s.client.CloseIdleConnections()
}
