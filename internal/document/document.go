// Package document converts flattened sample records into the canonical
// JSON documents shipped to Elasticsearch.
package document

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/deixis/loadship/internal/config"
	"github.com/deixis/loadship/internal/sample"
)

// Document is one shipped record. Field names and order are the wire
// contract; downstream dashboards key on them.
type Document struct {
	ThreadName              string `json:"threadName"`
	Label                   string `json:"label"`
	ParentLabel             string `json:"parentLabel"`
	IsTransactionController bool   `json:"isTransactionController"`
	Success                 bool   `json:"success"`
	ResponseTime            int64  `json:"responseTime"`
	ResponseCode            string `json:"responseCode"`
	ResponseMessage         string `json:"responseMessage"`
	ResponseBody            string `json:"responseBody"`
	Assertions              string `json:"assertions"`
	Timestamp               string `json:"time_stamp"`
	ActiveThreads           int    `json:"activeThreads"`
	StartedThreads          int    `json:"startedThreads"`
	FinishedThreads         int    `json:"finishedThreads"`
	Environment             string `json:"environment"`
	Type                    string `json:"type"`
	RunID                   string `json:"run_id"`
}

// MarshalLine renders the document as a single JSON line for the bulk
// payload. encoding/json escapes quotes, newlines, and control
// characters, so the line is well-formed regardless of payload content.
func (d Document) MarshalLine() []byte {
	data, err := json.Marshal(d)
	if err != nil {
		// Document contains only scalars and strings; Marshal cannot fail.
		panic(err)
	}
	return data
}

// Encoder turns sample records into documents. It is immutable after
// construction and safe for concurrent use.
type Encoder struct {
	Environment       string
	Type              string
	RunID             string
	TransactionPrefix string
	BodyPolicy        config.BodyPolicy
	BodyLimit         int // truncation length in characters
}

// Encode builds the document for one record using the given thread-pool
// snapshot. It is a pure function of its inputs.
//
// FinishedThreads is Started-Active passed through unclamped: a negative
// value means the engine reported an inconsistent snapshot, and hiding
// that would mask an engine bug.
func (e *Encoder) Encode(rec sample.Record, stats sample.ThreadStats) Document {
	r := rec.Result

	return Document{
		ThreadName:              r.ThreadName,
		Label:                   r.Label,
		ParentLabel:             rec.ParentLabel,
		IsTransactionController: strings.HasPrefix(r.Label, e.TransactionPrefix),
		Success:                 r.Success,
		ResponseTime:            r.Time,
		ResponseCode:            r.ResponseCode,
		ResponseMessage:         r.ResponseMessage,
		ResponseBody:            e.responseBody(r),
		Assertions:              summariseAssertions(r.Assertions),
		Timestamp:               time.UnixMilli(r.Timestamp).UTC().Format(time.RFC3339Nano),
		ActiveThreads:           stats.Active,
		StartedThreads:          stats.Started,
		FinishedThreads:         stats.Started - stats.Active,
		Environment:             e.Environment,
		Type:                    e.Type,
		RunID:                   e.RunID,
	}
}

// responseBody applies the body policy and truncation limit.
func (e *Encoder) responseBody(r *sample.Result) string {
	switch e.BodyPolicy {
	case config.BodyAlways:
	case config.BodyOnError:
		if r.Success {
			return ""
		}
	default:
		return ""
	}
	return truncate(r.ResponseBody, e.BodyLimit)
}

// truncate cuts s to at most limit characters and appends a
// continuation marker. It counts runes so multi-byte text is never
// split mid-character.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// summariseAssertions concatenates every failed or errored assertion as
// "<name>: <message>; " in original order. Passing assertions are
// omitted entirely.
func summariseAssertions(assertions []sample.Assertion) string {
	var b strings.Builder
	for _, a := range assertions {
		if !a.Failed() {
			continue
		}
		b.WriteString(a.Name)
		b.WriteString(": ")
		b.WriteString(a.Message)
		b.WriteString("; ")
	}
	return b.String()
}
