package shipper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deixis/loadship/internal/document"
)

func TestNew_InvalidEndpoint(t *testing.T) {
	if _, err := New("not a url\x7f", "key", time.Second); err == nil {
		t.Error("expected error for unparseable endpoint")
	}
	if _, err := New("ftp://example.com/_bulk", "key", time.Second); err == nil {
		t.Error("expected error for non-http scheme")
	}
}

func TestShip_EmptyBatchIsNoOp(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	s, err := New(srv.URL, "key", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Ship(context.Background(), nil); err != nil {
		t.Fatalf("Ship(nil): %v", err)
	}
	if calls != 0 {
		t.Errorf("server received %d calls for empty batch, want 0", calls)
	}
}

func TestShip_PayloadAndHeaders(t *testing.T) {
	var gotBody string
	var gotContentType, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"errors":false}`)
	}))
	defer srv.Close()

	s, err := New(srv.URL, "secret-key", time.Second)
	if err != nil {
		t.Fatal(err)
	}

	docs := []document.Document{
		{Label: "D1"},
		{Label: "D2"},
		{Label: "D3"},
	}
	res, err := s.Ship(context.Background(), docs)
	if err != nil {
		t.Fatalf("Ship: %v", err)
	}

	if gotContentType != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotAuth != "ApiKey secret-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	// Exactly two lines per document, action line first, trailing newline.
	want := ""
	for _, d := range docs {
		want += "{\"index\":{}}\n" + string(d.MarshalLine()) + "\n"
	}
	if gotBody != want {
		t.Errorf("payload =\n%q\nwant\n%q", gotBody, want)
	}
	if n := strings.Count(gotBody, "\n"); n != 6 {
		t.Errorf("payload has %d newlines, want 6", n)
	}

	if res.Documents != 3 {
		t.Errorf("res.Documents = %d, want 3", res.Documents)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("res.StatusCode = %d", res.StatusCode)
	}
	if res.Body != `{"errors":false}` {
		t.Errorf("res.Body = %q", res.Body)
	}
}

func TestShip_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mapping conflict", http.StatusBadRequest)
	}))
	defer srv.Close()

	s, err := New(srv.URL, "key", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Ship(context.Background(), []document.Document{{Label: "d"}})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error = %q, want to mention the status", err)
	}
	if res == nil || res.StatusCode != http.StatusBadRequest {
		t.Errorf("res = %+v, want StatusCode 400", res)
	}
}

func TestShip_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	s, err := New(srv.URL, "key", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Ship(context.Background(), []document.Document{{Label: "d"}}); err == nil {
		t.Error("expected error for refused connection")
	}
}

func TestClose_Idempotent(t *testing.T) {
	s, err := New("http://localhost:9200/_bulk", "key", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	s.Close()
}
