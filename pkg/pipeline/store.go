package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrRecordNotFound is returned for lookups of unknown run IDs.
var ErrRecordNotFound = errors.New("run record not found")

// RunRecord is the journal entry written when a run finishes. It is
// history, not resumable state: the pipeline never reads records back
// to continue a run.
type RunRecord struct {
	ID               string    `json:"id"`
	SessionTimestamp string    `json:"session_timestamp"`
	StoryID          string    `json:"story_id"`
	EpisodeNumber    int       `json:"episode_number"`
	TotalBeats       int       `json:"total_beats"`
	FinalPhase       Phase     `json:"final_phase"`
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// RunStore is the append-only run history journal.
type RunStore interface {
	Append(ctx context.Context, record RunRecord) error
	Get(ctx context.Context, id string) (RunRecord, error)
	List(ctx context.Context, limit int) ([]RunRecord, error)
}

// MemoryRunStore keeps history in memory. Used in tests and when
// history persistence is disabled.
type MemoryRunStore struct {
	mu      sync.RWMutex
	records map[string]RunRecord
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{records: make(map[string]RunRecord)}
}

func (s *MemoryRunStore) Append(ctx context.Context, record RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

func (s *MemoryRunStore) Get(ctx context.Context, id string) (RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[id]
	if !exists {
		return RunRecord{}, ErrRecordNotFound
	}
	return record, nil
}

// List returns records newest first, at most limit (0 means all).
func (s *MemoryRunStore) List(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	records := make([]RunRecord, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	s.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

var _ RunStore = (*MemoryRunStore)(nil)
