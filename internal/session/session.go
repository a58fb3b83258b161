// Package session owns the lifetime of one shipping run: it wires the
// flattener, encoder, accumulator, and shipper together and carries the
// run-scoped context (configuration and run identifier) across them.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deixis/loadship/internal/batch"
	"github.com/deixis/loadship/internal/config"
	"github.com/deixis/loadship/internal/document"
	"github.com/deixis/loadship/internal/report"
	"github.com/deixis/loadship/internal/sample"
	"github.com/deixis/loadship/internal/shipper"
)

// ErrClosed is returned by Handle after the session has been torn down.
var ErrClosed = errors.New("session is closed")

// StatsSource supplies the engine's thread-pool snapshot. It is queried
// once per encoded record, so counters reflect the producer's view at
// encode time, not at flush time.
type StatsSource interface {
	ThreadStats() sample.ThreadStats
}

// LatestStats is a StatsSource fed by external snapshots. Surfaces that
// receive snapshots alongside result trees (MCP, replay) update it
// before handling the trees.
type LatestStats struct {
	mu  sync.Mutex
	cur sample.ThreadStats
}

// Set records the most recent snapshot.
func (l *LatestStats) Set(s sample.ThreadStats) {
	l.mu.Lock()
	l.cur = s
	l.mu.Unlock()
}

// ThreadStats returns the most recent snapshot.
func (l *LatestStats) ThreadStats() sample.ThreadStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cur
}

// Session is the process-wide shipping pipeline for one run. Handle may
// be called concurrently from any number of producer goroutines; Close
// must be called once the host has stopped producing.
type Session struct {
	runID string
	enc   *document.Encoder
	acc   *batch.Accumulator
	ship  *shipper.Shipper
	stats StatsSource
	store report.Store

	mu     sync.Mutex // guards closed and rep
	closed bool
	rep    *report.RunReport
}

// Option configures a Session.
type Option func(*Session)

// WithStatsSource supplies the thread-pool snapshot accessor. Without
// it, all thread counters ship as zero.
func WithStatsSource(src StatsSource) Option {
	return func(s *Session) { s.stats = src }
}

// WithStore persists the session's run report as shipments complete and
// at teardown.
func WithStore(store report.Store) Option {
	return func(s *Session) { s.store = store }
}

// New validates cfg, generates the run identifier, and constructs the
// HTTP client. Any failure here aborts session start; there is no
// partially-started session.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()

	ship, err := shipper.New(cfg.URL(), cfg.APIKey, cfg.Timeout())
	if err != nil {
		return nil, err
	}

	s := &Session{
		runID: runID,
		ship:  ship,
		rep: &report.RunReport{
			RunID:       runID,
			Environment: cfg.Environment,
			Type:        cfg.Type,
		},
		enc: &document.Encoder{
			Environment:       cfg.Environment,
			Type:              cfg.Type,
			RunID:             runID,
			TransactionPrefix: cfg.TransactionPrefix(),
			BodyPolicy:        cfg.BodyPolicy(),
			BodyLimit:         cfg.BodyLimit(),
		},
	}
	s.acc = batch.New(cfg.BatchSize(), s.flush)

	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// RunID returns the run correlation identifier.
func (s *Session) RunID() string {
	return s.runID
}

// Pending reports the current batch fill.
func (s *Session) Pending() int {
	return s.acc.Len()
}

// Report returns a snapshot of the session's run report.
func (s *Session) Report() report.RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := *s.rep
	snap.Shipments = append([]report.Shipment(nil), s.rep.Shipments...)
	return snap
}

// Handle flattens root, encodes every node, and appends the documents
// to the shared batch. All work, including a threshold-triggered bulk
// POST, runs synchronously on the calling goroutine.
func (s *Session) Handle(ctx context.Context, root *sample.Result) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	sample.Walk(root, func(rec sample.Record) {
		var stats sample.ThreadStats
		if s.stats != nil {
			stats = s.stats.ThreadStats()
		}
		doc := s.enc.Encode(rec, stats)

		s.mu.Lock()
		s.rep.Documents++
		s.mu.Unlock()

		s.acc.Append(ctx, doc)
	})
	return nil
}

// Flush drains the batch and ships whatever it holds, regardless of
// the threshold.
func (s *Session) Flush(ctx context.Context) {
	s.flush(ctx, s.acc.DrainAll())
}

// flush ships drained documents and records the outcome. Shipping
// failures are logged and swallowed: the batch is already empty, and
// one lost delivery must not halt the run.
func (s *Session) flush(ctx context.Context, docs []document.Document) {
	if len(docs) == 0 {
		return
	}

	res, err := s.ship.Ship(ctx, docs)

	shipment := report.Shipment{Documents: len(docs), Time: time.Now().UTC()}
	if res != nil {
		shipment.StatusCode = res.StatusCode
	}
	if err != nil {
		shipment.Error = err.Error()
		log.Printf("shipping batch of %d documents: %v", len(docs), err)
	}

	s.mu.Lock()
	s.rep.Shipments = append(s.rep.Shipments, shipment)
	rep := *s.rep
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Save(&rep); err != nil {
			log.Printf("saving run report %s: %v", s.runID, err)
		}
	}
}

// Close performs the final flush, releases the HTTP client, and
// persists the run report. It is idempotent: a second Close is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Flush(ctx)
	s.ship.Close()

	if s.store != nil {
		rep := s.Report()
		if err := s.store.Save(&rep); err != nil {
			log.Printf("saving run report %s: %v", s.runID, err)
		}
	}
	return nil
}
