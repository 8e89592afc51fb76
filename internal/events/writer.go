package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"worklist/internal/domain"
)

// Writer appends history rows inside the caller's transaction.
type Writer struct{}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, h domain.HistoryEntry) error {
	if h.ID == "" || h.TaskID == "" {
		return fmt.Errorf("history entry requires id and task_id")
	}
	if !h.Action.Valid() {
		return fmt.Errorf("invalid history action %q", h.Action)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO task_history(id,task_id,action,previous_value,new_value,performed_by,performed_at) VALUES (?,?,?,?,?,?,?)`,
		h.ID, h.TaskID, string(h.Action), nullable(h.PreviousValue), nullable(h.NewValue), h.PerformedBy, h.PerformedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
