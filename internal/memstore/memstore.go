// Package memstore is an in-process task store for tests and ephemeral runs.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"worklist/internal/domain"
)

// Store keeps tasks and history in maps guarded by one mutex. Values are
// copied on the way in and out so callers never share memory with it.
type Store struct {
	mu      sync.RWMutex
	tasks   map[string]domain.Task
	order   []string
	history map[string][]domain.HistoryEntry
}

func New() *Store {
	return &Store{
		tasks:   map[string]domain.Task{},
		history: map[string][]domain.HistoryEntry{},
	}
}

func (s *Store) InsertTask(ctx context.Context, t domain.Task, h domain.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkEntry(t, h); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	s.order = append(s.order, t.ID)
	s.history[t.ID] = append(s.history[t.ID], h)
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, t domain.Task, h domain.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkEntry(t, h); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return domain.ErrNoRecord
	}
	s.tasks[t.ID] = t.Clone()
	s.history[t.ID] = append(s.history[t.ID], h)
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return domain.Task{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrNoRecord
	}
	return t.Clone(), nil
}

// ListTasks returns matches in insertion order.
func (s *Store) ListTasks(ctx context.Context, q domain.TaskQuery) ([]domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Task{}
	for _, id := range s.order {
		t := s.tasks[id]
		if q.Matches(t) {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (s *Store) ListHistory(ctx context.Context, taskID string) ([]domain.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.history[taskID]
	out := make([]domain.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Len reports how many tasks are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func checkEntry(t domain.Task, h domain.HistoryEntry) error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if h.TaskID != t.ID {
		return fmt.Errorf("history entry task %q does not match task %q", h.TaskID, t.ID)
	}
	if !h.Action.Valid() {
		return fmt.Errorf("invalid history action %q", h.Action)
	}
	return nil
}
