// Package sample models the result trees delivered by a load-test
// engine and provides the pre-order traversal that linearises them.
package sample

// Result is one sample result as reported by the host engine. Results
// nest: a transaction controller carries its child samples in Children,
// in execution order. The core never mutates a Result.
type Result struct {
	Label           string      `json:"label"`
	ThreadName      string      `json:"threadName,omitempty"`
	Success         bool        `json:"success"`
	Time            int64       `json:"time"` // elapsed milliseconds
	ResponseCode    string      `json:"responseCode,omitempty"`
	ResponseMessage string      `json:"responseMessage,omitempty"`
	ResponseBody    string      `json:"responseBody,omitempty"`
	Assertions      []Assertion `json:"assertions,omitempty"`
	Timestamp       int64       `json:"timestamp"` // start time, epoch milliseconds
	Children        []*Result   `json:"children,omitempty"`
}

// Assertion is the outcome of a single assertion attached to a sample.
type Assertion struct {
	Name    string `json:"name"`
	Failure bool   `json:"failure,omitempty"`
	Error   bool   `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Failed reports whether the assertion should appear in the shipped
// assertion summary.
func (a Assertion) Failed() bool {
	return a.Failure || a.Error
}

// ThreadStats is a point-in-time snapshot of the engine's thread pool.
type ThreadStats struct {
	Started int `json:"started"` // total threads started so far
	Active  int `json:"active"`  // threads currently running
}

// Record pairs a visited result with the label of its direct parent.
// ParentLabel is empty for root results.
type Record struct {
	Result      *Result
	ParentLabel string
}
