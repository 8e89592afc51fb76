package migrate

import (
	"context"
	"testing"

	"worklist/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()

	if v, err := Version(ctx, conn); err != nil || v != 0 {
		t.Fatalf("fresh version = %d, %v", v, err)
	}
	for i := 0; i < 2; i++ {
		if err := Migrate(conn); err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
	}
	latest, err := Latest()
	if err != nil {
		t.Fatal(err)
	}
	v, err := Version(ctx, conn)
	if err != nil || v != latest || v < 1 {
		t.Fatalf("version = %d (latest %d), %v", v, latest, err)
	}
	for _, table := range []string{"tasks", "task_assignees", "task_history"} {
		var n int
		if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n); err != nil || n != 1 {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}
