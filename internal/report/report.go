// Package report records what a run actually shipped: how many
// documents were encoded and the outcome of every bulk call. Reports
// are persisted through a Store so they can be inspected after the run.
package report

import "time"

// Store persists and retrieves run reports.
type Store interface {
	Save(report *RunReport) error
	Load(runID string) (*RunReport, error)
}

// RunReport summarises one session, keyed by its run identifier.
type RunReport struct {
	RunID       string     `json:"run_id"`
	Environment string     `json:"environment,omitempty"`
	Type        string     `json:"type,omitempty"`
	Documents   int        `json:"documents"` // total documents encoded
	Shipments   []Shipment `json:"shipments,omitempty"`
}

// Shipment is the outcome of one bulk call.
type Shipment struct {
	Documents  int       `json:"documents"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

// Shipped returns the number of documents delivered by successful
// bulk calls.
func (r *RunReport) Shipped() int {
	n := 0
	for _, s := range r.Shipments {
		if s.Error == "" {
			n += s.Documents
		}
	}
	return n
}

// Failures returns the number of failed bulk calls.
func (r *RunReport) Failures() int {
	n := 0
	for _, s := range r.Shipments {
		if s.Error != "" {
			n++
		}
	}
	return n
}
