package qualification

import "sync"

// Outcome is the per-log result of an ingestion attempt.
type Outcome string

const (
	StatusSuccess Outcome = "SUCCESS"
	StatusFailure Outcome = "FAILURE"
	StatusUnknown Outcome = "UNKNOWN"
)

// StatusRecord is one input log's outcome.
type StatusRecord struct {
	Path    string
	Outcome Outcome
	Detail  string
}

// StatusTracker records one outcome per input log across a batch run.
// Workers record concurrently; records keep arrival order.
type StatusTracker struct {
	mu      sync.Mutex
	records []StatusRecord
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{}
}

func (t *StatusTracker) Record(path string, outcome Outcome, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, StatusRecord{Path: path, Outcome: outcome, Detail: detail})
}

func (t *StatusTracker) Counts() (success, failure, unknown int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, record := range t.records {
		switch record.Outcome {
		case StatusSuccess:
			success++
		case StatusFailure:
			failure++
		case StatusUnknown:
			unknown++
		}
	}
	return success, failure, unknown
}

// Records returns a copy of all recorded outcomes.
func (t *StatusTracker) Records() []StatusRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StatusRecord, len(t.records))
	copy(out, t.records)
	return out
}

// AllFailed reports whether every recorded log failed, which callers use
// to distinguish total failure from partial success.
func (t *StatusTracker) AllFailed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.records) == 0 {
		return false
	}
	for _, record := range t.records {
		if record.Outcome != StatusFailure {
			return false
		}
	}
	return true
}
