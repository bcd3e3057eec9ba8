package store

import (
	"context"
	"sort"
	"sync"

	"github.com/dunamismax/levelforge/internal/domain"
)

type MemoryManifestStore struct {
	mu   sync.RWMutex
	runs map[string]map[int]domain.LevelRecord
}

func NewMemoryManifestStore() *MemoryManifestStore {
	return &MemoryManifestStore{
		runs: make(map[string]map[int]domain.LevelRecord),
	}
}

func (s *MemoryManifestStore) RecordLevel(_ context.Context, record domain.LevelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	levels, ok := s.runs[record.RunID]
	if !ok {
		levels = make(map[int]domain.LevelRecord)
		s.runs[record.RunID] = levels
	}
	record.Outputs = append([]domain.Output(nil), record.Outputs...)
	levels[record.Level] = record
	return nil
}

func (s *MemoryManifestStore) ListLevels(_ context.Context, runID string) ([]domain.LevelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	levels := s.runs[runID]
	out := make([]domain.LevelRecord, 0, len(levels))
	for _, record := range levels {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}
