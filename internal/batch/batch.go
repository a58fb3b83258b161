// Package batch provides the size-bounded document buffer shared by all
// producer goroutines.
package batch

import (
	"context"
	"sync"

	"github.com/deixis/loadship/internal/document"
)

// FlushFunc receives the drained documents of a triggered flush. It is
// called synchronously on the appending goroutine, while the
// accumulator's lock is still held, so no concurrent append can observe
// a batch at or above the threshold. The batch is already empty when
// the callback runs; delivery failures must not re-queue.
type FlushFunc func(ctx context.Context, docs []document.Document)

// Accumulator buffers encoded documents up to a threshold. All mutation
// happens under one mutex: an append and the flush it triggers are a
// single atomic step with respect to other appends and drains.
type Accumulator struct {
	mu        sync.Mutex
	threshold int
	docs      []document.Document
	flush     FlushFunc
}

// New creates an accumulator that calls flush whenever an append fills
// the batch to threshold documents. Threshold must be >= 1.
func New(threshold int, flush FlushFunc) *Accumulator {
	if threshold < 1 {
		threshold = 1
	}
	return &Accumulator{
		threshold: threshold,
		docs:      make([]document.Document, 0, threshold),
		flush:     flush,
	}
}

// Append adds doc to the batch and, when the threshold is reached,
// drains and flushes in the same critical section. The flush (including
// its network call) runs on the calling goroutine; a slow destination
// stalls the producer rather than growing the batch.
func (a *Accumulator) Append(ctx context.Context, doc document.Document) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.docs = append(a.docs, doc)
	if len(a.docs) >= a.threshold {
		a.flush(ctx, a.drainLocked())
	}
}

// DrainAll atomically removes and returns every buffered document.
// Used for the final flush at session teardown.
func (a *Accumulator) DrainAll() []document.Document {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.drainLocked()
}

// Len reports the current batch size.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.docs)
}

func (a *Accumulator) drainLocked() []document.Document {
	drained := a.docs
	a.docs = make([]document.Document, 0, a.threshold)
	return drained
}
