package repo

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"worklist/internal/db"
	"worklist/internal/domain"
	"worklist/internal/migrate"
)

func newRepo(t *testing.T) Repo {
	t.Helper()
	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return Repo{DB: conn}
}

func shoppingTask(id string, at time.Time) domain.Task {
	qty := 2
	target := "Aisle 4"
	due := at.Add(48 * time.Hour)
	return domain.Task{
		ID: id, TenantID: "t1", LocationID: "l1", Type: domain.TypeShopping, Status: domain.StatusOpen,
		Title: "Oat milk", Description: "barista edition", Priority: domain.PriorityHigh,
		Quantity: &qty, TargetLocation: &target, CreatedBy: "alice",
		AssigneeIDs: []string{"carol", "bob"}, DueDate: &due, CreatedAt: at, UpdatedAt: at,
	}
}

func created(id string, at time.Time) domain.HistoryEntry {
	return domain.HistoryEntry{ID: "h-" + id, TaskID: id, Action: domain.ActionCreated, NewValue: `{"id":"` + id + `"}`, PerformedBy: "alice", PerformedAt: at}
}

func TestTaskRoundTrip(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 2, 8, 30, 15, 123456789, time.UTC)
	want := shoppingTask("task-1", at)
	if err := r.InsertTask(ctx, want, created("task-1", at)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := r.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
	if _, err := r.GetTask(ctx, "missing"); !errors.Is(err, domain.ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
}

func TestUpdateReplacesAssigneesAndAppendsHistory(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	task := shoppingTask("task-1", at)
	if err := r.InsertTask(ctx, task, created("task-1", at)); err != nil {
		t.Fatal(err)
	}
	done := at.Add(time.Hour)
	by := "bob"
	task.Status = domain.StatusDone
	task.CompletedAt = &done
	task.CompletedBy = &by
	task.AssigneeIDs = []string{"dave"}
	task.TargetLocation = nil
	task.UpdatedAt = done
	h := domain.HistoryEntry{ID: "h-2", TaskID: "task-1", Action: domain.ActionCompleted, PreviousValue: "OPEN", NewValue: "DONE", PerformedBy: "bob", PerformedAt: done}
	if err := r.UpdateTask(ctx, task, h); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := r.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, task) {
		t.Fatalf("update mismatch:\n got %+v\nwant %+v", got, task)
	}
	entries, err := r.ListHistory(ctx, "task-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Action != domain.ActionCreated || entries[1] != h {
		t.Fatalf("unexpected history %+v", entries)
	}

	missing := shoppingTask("nope", at)
	if err := r.UpdateTask(ctx, missing, domain.HistoryEntry{ID: "h-3", TaskID: "nope", Action: domain.ActionUpdated, PerformedAt: at}); !errors.Is(err, domain.ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
}

func TestInsertRollsBackOnHistoryFailure(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	bad := created("task-1", at)
	bad.Action = "DELETED"
	if err := r.InsertTask(ctx, shoppingTask("task-1", at), bad); err == nil {
		t.Fatalf("expected history error")
	}
	if _, err := r.GetTask(ctx, "task-1"); !errors.Is(err, domain.ErrNoRecord) {
		t.Fatalf("task row survived a failed history append: %v", err)
	}
}

func TestListTasksScope(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	seed := []struct {
		id       string
		tenant   string
		location string
		typ      domain.TaskType
		status   domain.Status
	}{
		{"a", "t1", "l1", domain.TypeShopping, domain.StatusOpen},
		{"b", "t1", "l1", domain.TypeShopping, domain.StatusDone},
		{"c", "t1", "l2", domain.TypeShopping, domain.StatusInProgress},
		{"d", "t2", "l1", domain.TypeShopping, domain.StatusOpen},
		{"e", "t1", "l1", domain.TypeTodo, domain.StatusOpen},
	}
	for i, s := range seed {
		at := base.Add(time.Duration(i) * time.Minute)
		task := shoppingTask(s.id, at)
		task.TenantID, task.LocationID, task.Status = s.tenant, s.location, s.status
		if s.typ != domain.TypeShopping {
			task.Type, task.Quantity, task.TargetLocation = s.typ, nil, nil
			task.AssigneeIDs = []string{}
		}
		if err := r.InsertTask(ctx, task, created(s.id, at)); err != nil {
			t.Fatalf("seed %s: %v", s.id, err)
		}
	}
	ids := func(q domain.TaskQuery) []string {
		t.Helper()
		tasks, err := r.ListTasks(ctx, q)
		if err != nil {
			t.Fatal(err)
		}
		out := []string{}
		for _, task := range tasks {
			if !q.Matches(task) {
				t.Fatalf("task %s outside query %+v", task.ID, q)
			}
			out = append(out, task.ID)
		}
		return out
	}
	if got := ids(domain.TaskQuery{TenantID: "t1"}); !reflect.DeepEqual(got, []string{"e", "c", "b", "a"}) {
		t.Fatalf("tenant scope = %v", got)
	}
	active := domain.TaskQuery{TenantID: "t1", LocationID: "l1", Type: domain.TypeShopping, Statuses: []domain.Status{domain.StatusOpen, domain.StatusInProgress}}
	if got := ids(active); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("active scope = %v", got)
	}
	tasks, err := r.ListTasks(ctx, domain.TaskQuery{TenantID: "t1", LocationID: "l1"})
	if err != nil {
		t.Fatal(err)
	}
	for _, task := range tasks {
		switch task.ID {
		case "a", "b":
			if !reflect.DeepEqual(task.AssigneeIDs, []string{"carol", "bob"}) {
				t.Fatalf("assignees of %s = %v", task.ID, task.AssigneeIDs)
			}
		case "e":
			if task.AssigneeIDs == nil || len(task.AssigneeIDs) != 0 {
				t.Fatalf("assignees of e = %#v", task.AssigneeIDs)
			}
		}
	}
}
