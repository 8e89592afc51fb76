// Package repo is the SQLite task store.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"worklist/internal/domain"
	"worklist/internal/events"
)

type Repo struct {
	DB     *sql.DB
	Events events.Writer
}

// ErrNotFound is the store's missing-record signal.
var ErrNotFound = domain.ErrNoRecord

const taskColumns = `tasks.id,tasks.tenant_id,tasks.location_id,tasks.type,tasks.status,tasks.title,tasks.description,tasks.priority,tasks.quantity,tasks.target_location,tasks.created_by,tasks.is_personal,tasks.due_date,tasks.completed_at,tasks.completed_by,tasks.created_at,tasks.updated_at`

func (r Repo) InsertTask(ctx context.Context, t domain.Task, h domain.HistoryEntry) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO tasks(id,tenant_id,location_id,type,status,title,description,priority,quantity,target_location,created_by,is_personal,due_date,completed_at,completed_by,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.TenantID, t.LocationID, string(t.Type), string(t.Status), t.Title, nullable(t.Description), string(t.Priority),
		nullableIntPtr(t.Quantity), nullableStringPtr(t.TargetLocation), t.CreatedBy, t.IsPersonal,
		nullableTime(t.DueDate), nullableTime(t.CompletedAt), nullableStringPtr(t.CompletedBy),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	if err := replaceAssignees(ctx, tx, t.ID, t.AssigneeIDs); err != nil {
		return err
	}
	if err := r.Events.Append(ctx, tx, h); err != nil {
		return err
	}
	return tx.Commit()
}

func (r Repo) UpdateTask(ctx context.Context, t domain.Task, h domain.HistoryEntry) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, title=?, description=?, priority=?, quantity=?, target_location=?, due_date=?, completed_at=?, completed_by=?, updated_at=? WHERE id=?`,
		string(t.Status), t.Title, nullable(t.Description), string(t.Priority), nullableIntPtr(t.Quantity), nullableStringPtr(t.TargetLocation),
		nullableTime(t.DueDate), nullableTime(t.CompletedAt), nullableStringPtr(t.CompletedBy), formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := replaceAssignees(ctx, tx, t.ID, t.AssigneeIDs); err != nil {
		return err
	}
	if err := r.Events.Append(ctx, tx, h); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceAssignees(ctx context.Context, tx *sql.Tx, taskID string, ids []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id=?`, taskID); err != nil {
		return fmt.Errorf("clear assignees: %w", err)
	}
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT INTO task_assignees(task_id,user_id,position) VALUES (?,?,?)`, taskID, id, i); err != nil {
			return fmt.Errorf("insert assignee %s: %w", id, err)
		}
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE tasks.id=?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, ErrNotFound
	}
	if err != nil {
		return domain.Task{}, err
	}
	assignees, err := r.loadAssignees(ctx, `WHERE tasks.id=?`, []any{id})
	if err != nil {
		return domain.Task{}, err
	}
	t.AssigneeIDs = assigneesOf(assignees, t.ID)
	return t, nil
}

// ListTasks returns tasks newest first. Assignees are loaded in a second
// query after the task rows are closed, so only one connection is needed.
func (r Repo) ListTasks(ctx context.Context, q domain.TaskQuery) ([]domain.Task, error) {
	where, args := taskWhere(q)
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks `+where+` ORDER BY tasks.created_at DESC, tasks.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(res) == 0 {
		return res, nil
	}
	assignees, err := r.loadAssignees(ctx, where, args)
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].AssigneeIDs = assigneesOf(assignees, res[i].ID)
	}
	return res, nil
}

func taskWhere(q domain.TaskQuery) (string, []any) {
	var clauses []string
	var args []any
	if q.TenantID != "" {
		clauses = append(clauses, "tasks.tenant_id=?")
		args = append(args, q.TenantID)
	}
	if q.LocationID != "" {
		clauses = append(clauses, "tasks.location_id=?")
		args = append(args, q.LocationID)
	}
	if q.Type != "" {
		clauses = append(clauses, "tasks.type=?")
		args = append(args, string(q.Type))
	}
	if len(q.Statuses) > 0 {
		marks := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		clauses = append(clauses, "tasks.status IN ("+strings.Join(marks, ",")+")")
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (r Repo) loadAssignees(ctx context.Context, where string, args []any) (map[string][]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT task_assignees.task_id, task_assignees.user_id FROM task_assignees JOIN tasks ON tasks.id = task_assignees.task_id `+where+` ORDER BY task_assignees.task_id, task_assignees.position`, args...)
	if err != nil {
		return nil, fmt.Errorf("load assignees: %w", err)
	}
	defer rows.Close()
	out := map[string][]string{}
	for rows.Next() {
		var taskID, userID string
		if err := rows.Scan(&taskID, &userID); err != nil {
			return nil, err
		}
		out[taskID] = append(out[taskID], userID)
	}
	return out, rows.Err()
}

func assigneesOf(m map[string][]string, id string) []string {
	if ids, ok := m[id]; ok {
		return ids
	}
	return []string{}
}

// ListHistory returns entries in append order.
func (r Repo) ListHistory(ctx context.Context, taskID string) ([]domain.HistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,task_id,action,previous_value,new_value,performed_by,performed_at FROM task_history WHERE task_id=? ORDER BY rowid ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.HistoryEntry{}
	for rows.Next() {
		var h domain.HistoryEntry
		var action, performedAt string
		var prev, next sql.NullString
		if err := rows.Scan(&h.ID, &h.TaskID, &action, &prev, &next, &h.PerformedBy, &performedAt); err != nil {
			return nil, err
		}
		h.Action = domain.HistoryAction(action)
		h.PreviousValue = prev.String
		h.NewValue = next.String
		if h.PerformedAt, err = parseTime(performedAt); err != nil {
			return nil, fmt.Errorf("history %s performed_at: %w", h.ID, err)
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (domain.Task, error) {
	var t domain.Task
	var typ, status, priority, createdAt, updatedAt string
	var description, targetLocation, dueDate, completedAt, completedBy sql.NullString
	var quantity sql.NullInt64
	if err := s.Scan(&t.ID, &t.TenantID, &t.LocationID, &typ, &status, &t.Title, &description, &priority, &quantity,
		&targetLocation, &t.CreatedBy, &t.IsPersonal, &dueDate, &completedAt, &completedBy, &createdAt, &updatedAt); err != nil {
		return t, err
	}
	t.Type = domain.TaskType(typ)
	t.Status = domain.Status(status)
	t.Priority = domain.Priority(priority)
	if description.Valid {
		t.Description = description.String
	}
	if quantity.Valid {
		q := int(quantity.Int64)
		t.Quantity = &q
	}
	if targetLocation.Valid {
		t.TargetLocation = &targetLocation.String
	}
	if completedBy.Valid {
		t.CompletedBy = &completedBy.String
	}
	var err error
	if t.DueDate, err = parseNullTime(dueDate); err != nil {
		return t, fmt.Errorf("task %s due_date: %w", t.ID, err)
	}
	if t.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return t, fmt.Errorf("task %s completed_at: %w", t.ID, err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return t, fmt.Errorf("task %s created_at: %w", t.ID, err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return t, fmt.Errorf("task %s updated_at: %w", t.ID, err)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return formatTime(*v)
}
