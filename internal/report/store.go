package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MemStore is a bounded in-memory cache over an optional backing Store.
// Once capacity is exceeded the oldest run is evicted from memory; it
// remains loadable from the backing store. A session writes its report
// repeatedly as shipments complete, so Save must handle updates to an
// existing run.
type MemStore struct {
	mu    sync.Mutex
	cap   int
	back  Store    // nil for memory-only storage
	order []string // run IDs, oldest first
	items map[string]*RunReport
}

// NewMemStore creates a MemStore holding at most cap reports in memory,
// delegating to back for persistence and cache misses. Pass nil for a
// memory-only store. Capacity must be >= 1.
func NewMemStore(cap int, back Store) *MemStore {
	if cap < 1 {
		cap = 1
	}
	return &MemStore{
		cap:   cap,
		back:  back,
		items: make(map[string]*RunReport, cap),
	}
}

// Save stores or replaces a report in memory and delegates to the
// backing store.
func (s *MemStore) Save(report *RunReport) error {
	s.mu.Lock()
	s.insertLocked(report)
	s.mu.Unlock()

	if s.back == nil {
		return nil
	}
	return s.back.Save(report)
}

// Load retrieves a report by run ID, checking memory first. On a miss
// it loads from the backing store and promotes the result into memory.
func (s *MemStore) Load(runID string) (*RunReport, error) {
	s.mu.Lock()
	if r, ok := s.items[runID]; ok {
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	if s.back == nil {
		return nil, fmt.Errorf("no report for run %s", runID)
	}

	report, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.insertLocked(report)
	s.mu.Unlock()
	return report, nil
}

// insertLocked stores or replaces a report and evicts the oldest entry
// when capacity is exceeded. Caller holds s.mu.
func (s *MemStore) insertLocked(report *RunReport) {
	if _, ok := s.items[report.RunID]; !ok {
		s.order = append(s.order, report.RunID)
		if len(s.order) > s.cap {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.items, oldest)
		}
	}
	s.items[report.RunID] = report
}

// DiskStore writes run reports as JSON files to a directory, created
// lazily on the first Save. With an empty dir a temp directory is used.
type DiskStore struct {
	mu  sync.Mutex
	dir string
}

// NewDiskStore creates a DiskStore rooted at dir. Pass "" to use a
// lazily-created temp directory.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Save writes the report as <run_id>.json.
func (s *DiskStore) Save(report *RunReport) error {
	dir, err := s.ensureDir()
	if err != nil {
		return err
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshalling report %s: %w", report.RunID, err)
	}
	path := filepath.Join(dir, report.RunID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", report.RunID, err)
	}
	return nil
}

// Load reads a report from disk.
func (s *DiskStore) Load(runID string) (*RunReport, error) {
	dir, err := s.ensureDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, runID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", runID, err)
	}
	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshalling report %s: %w", runID, err)
	}
	return &report, nil
}

func (s *DiskStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return "", fmt.Errorf("creating report directory: %w", err)
		}
		return s.dir, nil
	}
	dir, err := os.MkdirTemp("", "loadship-runs-*")
	if err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	s.dir = dir
	return dir, nil
}
