package worklistsdk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"worklist/internal/config"
	"worklist/internal/domain"
	"worklist/internal/engine"
	"worklist/internal/memstore"
	"worklist/internal/server"
)

const secret = "sdk-secret"

func startServer(t *testing.T) string {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := engine.New(memstore.New(), config.Default())
	e.Logger = logger
	handler, err := server.New(server.Config{Engine: e, Auth: server.AuthConfig{JWTSecret: secret}, Logger: logger})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
	})
	return "http://" + ln.Addr().String()
}

func clientFor(t *testing.T, baseURL, user string) *Client {
	t.Helper()
	token, err := server.IssueToken(secret, domain.PermissionContext{UserID: user, TenantID: "t1", LocationID: "l1"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return New(baseURL, token)
}

func TestClientRoundTrip(t *testing.T) {
	baseURL := startServer(t)
	ctx := context.Background()
	c := clientFor(t, baseURL, "alice")

	qty := 4
	created, err := c.CreateTask(ctx, NewTask{Type: "SHOPPING", Title: "Lemons", Quantity: &qty})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Quantity == nil || *created.Quantity != 4 || created.CreatedBy != "alice" {
		t.Fatalf("unexpected task: %+v", created)
	}

	updated, err := c.UpdateTask(ctx, created.ID, map[string]any{"quantity": nil, "priority": "HIGH"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if *updated.Quantity != 1 || updated.Priority != "HIGH" {
		t.Fatalf("update not applied: %+v", updated)
	}

	assigned, err := c.Assign(ctx, created.ID, []string{"bob"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(assigned.Added) != 1 || assigned.Added[0] != "bob" {
		t.Fatalf("assign diff: %+v", assigned)
	}

	bob := clientFor(t, baseURL, "bob")
	if _, err := bob.Complete(ctx, created.ID); err != nil {
		t.Fatalf("assignee should be able to complete: %v", err)
	}
	st, err := bob.Statistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.ByStatus["DONE"] != 1 || st.AssignedToMe != 1 || st.CompletedToday != 1 {
		t.Fatalf("unexpected statistics: %+v", st)
	}

	page, err := c.ListTasks(ctx, ListOptions{Status: "DONE"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Tasks[0].ID != created.ID {
		t.Fatalf("list: %+v", page)
	}

	history, err := c.History(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 4 || history[0].Action != "COMPLETED" || history[3].Action != "CREATED" {
		t.Fatalf("history: %+v", history)
	}
}

func TestClientErrors(t *testing.T) {
	baseURL := startServer(t)
	ctx := context.Background()
	c := clientFor(t, baseURL, "alice")

	if _, err := c.CreateTask(ctx, NewTask{Type: "TODO", Title: "Wipe tables"}); err != nil {
		t.Fatal(err)
	}
	_, err := c.CreateTask(ctx, NewTask{Type: "TODO", Title: "Wipe tables"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, ok := apiErr.Details["similar_tasks"]; !ok {
		t.Fatalf("conflict details missing similar_tasks: %+v", apiErr.Details)
	}

	check, err := c.CheckDuplicates(ctx, "wipe tables", "TODO")
	if err != nil || !check.IsDuplicate {
		t.Fatalf("check duplicates: %+v, %v", check, err)
	}

	_, err = c.GetTask(ctx, "missing")
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "not_found" {
		t.Fatalf("expected not_found, got %v", err)
	}

	anon := New(baseURL, "")
	_, err = anon.ListTasks(ctx, ListOptions{})
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}
