package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"worklist/internal/domain"
)

func sample(id string) (domain.Task, domain.HistoryEntry) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	t := domain.Task{
		ID: id, TenantID: "t1", LocationID: "l1", Type: domain.TypeTodo, Status: domain.StatusOpen,
		Title: "Mop floor", Priority: domain.PriorityMedium, CreatedBy: "alice",
		AssigneeIDs: []string{"bob"}, CreatedAt: now, UpdatedAt: now,
	}
	h := domain.HistoryEntry{ID: "h-" + id, TaskID: id, Action: domain.ActionCreated, PerformedBy: "alice", PerformedAt: now}
	return t, h
}

func TestInsertGetCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	task, h := sample("a")
	if err := s.InsertTask(ctx, task, h); err != nil {
		t.Fatal(err)
	}
	task.AssigneeIDs[0] = "mallory"
	got, err := s.GetTask(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.AssigneeIDs[0] != "bob" {
		t.Fatalf("store aliased caller slice: %v", got.AssigneeIDs)
	}
	got.Title = "changed"
	again, _ := s.GetTask(ctx, "a")
	if again.Title != "Mop floor" {
		t.Fatalf("store returned shared value")
	}
	if err := s.InsertTask(ctx, task, h); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestMissingRecords(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.GetTask(ctx, "nope"); !errors.Is(err, domain.ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
	task, h := sample("nope")
	h.Action = domain.ActionUpdated
	if err := s.UpdateTask(ctx, task, h); !errors.Is(err, domain.ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord on update, got %v", err)
	}
	entries, err := s.ListHistory(ctx, "nope")
	if err != nil || len(entries) != 0 {
		t.Fatalf("history = %v, %v", entries, err)
	}
}

func TestListAndHistoryOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, id := range []string{"b", "a", "c"} {
		task, h := sample(id)
		if id == "c" {
			task.LocationID = "l2"
		}
		if err := s.InsertTask(ctx, task, h); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListTasks(ctx, domain.TaskQuery{TenantID: "t1", LocationID: "l1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("unexpected list %+v", got)
	}
	task, _ := s.GetTask(ctx, "a")
	task.Status = domain.StatusDone
	upd := domain.HistoryEntry{ID: "h2", TaskID: "a", Action: domain.ActionCompleted, PerformedBy: "bob"}
	if err := s.UpdateTask(ctx, task, upd); err != nil {
		t.Fatal(err)
	}
	entries, _ := s.ListHistory(ctx, "a")
	if len(entries) != 2 || entries[0].Action != domain.ActionCreated || entries[1].Action != domain.ActionCompleted {
		t.Fatalf("history not in append order: %+v", entries)
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestRejectsMismatchedEntry(t *testing.T) {
	s := New()
	task, h := sample("a")
	h.TaskID = "other"
	if err := s.InsertTask(context.Background(), task, h); err == nil {
		t.Fatalf("expected mismatch error")
	}
	if s.Len() != 0 {
		t.Fatalf("rejected insert left a record")
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().ListTasks(ctx, domain.TaskQuery{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
