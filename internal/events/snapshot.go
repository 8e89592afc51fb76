// Package events builds and persists task history entries.
package events

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"worklist/internal/domain"
)

// Snapshot serializes v as the previous/new value of a history entry.
func Snapshot(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal history snapshot: %w", err)
	}
	return string(data), nil
}

// AssigneeSet serializes assignees as a sorted JSON array; empty sets become "[]".
func AssigneeSet(ids []string) string {
	sorted := append([]string{}, ids...)
	sort.Strings(sorted)
	data, _ := json.Marshal(sorted)
	return string(data)
}

// Entry builds an entry with snapshot values already serialized.
func Entry(id, taskID string, action domain.HistoryAction, prev, next, actorID string, at time.Time) domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:            id,
		TaskID:        taskID,
		Action:        action,
		PreviousValue: prev,
		NewValue:      next,
		PerformedBy:   actorID,
		PerformedAt:   at.UTC(),
	}
}
