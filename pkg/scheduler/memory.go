package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process ResumeStore for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time)}
}

func (s *MemoryStore) Schedule(_ context.Context, executionID string, resumeAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[executionID] = resumeAt

	return nil
}

func (s *MemoryStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type entry struct {
		id string
		at time.Time
	}

	var due []entry
	for id, at := range s.entries {
		if !at.After(now) {
			due = append(due, entry{id: id, at: at})
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].id < due[j].id
		}

		return due[i].at.Before(due[j].at)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	ids := make([]string, 0, len(due))
	for _, e := range due {
		delete(s.entries, e.id)
		ids = append(ids, e.id)
	}

	return ids, nil
}

func (s *MemoryStore) Remove(_ context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, executionID)

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
