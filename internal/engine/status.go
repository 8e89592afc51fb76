package engine

import (
	"context"
	"fmt"

	"worklist/internal/domain"
	"worklist/internal/engine/auth"
	"worklist/internal/events"
)

// ValidateTransition rejects status moves outside the lifecycle:
//
//	OPEN        -> IN_PROGRESS, DONE, ARCHIVED
//	IN_PROGRESS -> OPEN, DONE, ARCHIVED
//	DONE        -> OPEN, ARCHIVED
//	ARCHIVED    -> (terminal)
func ValidateTransition(from, to domain.Status) error {
	if !to.Valid() {
		return domain.Validation("status", fmt.Sprintf("unknown status %q", to))
	}
	if !from.CanTransition(to) {
		return domain.Conflict(fmt.Sprintf("Invalid status transition: %s -> %s", from, to))
	}
	return nil
}

// StatusInput requests a lifecycle move for one task.
type StatusInput struct {
	TaskID string
	Status domain.Status
}

func (e Engine) ChangeStatus(ctx context.Context, in StatusInput, pc domain.PermissionContext) (domain.Task, error) {
	if err := requireContext(pc); err != nil {
		return domain.Task{}, err
	}
	if !in.Status.Valid() {
		return domain.Task{}, domain.Validation("status", fmt.Sprintf("unknown status %q", in.Status))
	}
	t, err := e.load(ctx, in.TaskID, pc)
	if err != nil {
		return domain.Task{}, err
	}
	if err := auth.RequireMutate(pc, t); err != nil {
		return domain.Task{}, err
	}
	return e.transition(ctx, t, in.Status, domain.ActionStatusChanged, pc.UserID)
}

// Complete moves a task to DONE and records who finished it.
func (e Engine) Complete(ctx context.Context, id string, pc domain.PermissionContext) (domain.Task, error) {
	if err := requireContext(pc); err != nil {
		return domain.Task{}, err
	}
	t, err := e.load(ctx, id, pc)
	if err != nil {
		return domain.Task{}, err
	}
	if err := auth.RequireMutate(pc, t); err != nil {
		return domain.Task{}, err
	}
	return e.transition(ctx, t, domain.StatusDone, domain.ActionCompleted, pc.UserID)
}

func (e Engine) transition(ctx context.Context, old domain.Task, to domain.Status, action domain.HistoryAction, actorID string) (domain.Task, error) {
	if err := ValidateTransition(old.Status, to); err != nil {
		return domain.Task{}, err
	}
	now := e.now()
	t := old.Clone()
	t.Status = to
	t.UpdatedAt = now
	if to == domain.StatusDone {
		actor := actorID
		t.CompletedAt = &now
		t.CompletedBy = &actor
	}
	h := events.Entry(e.newID(), t.ID, action, string(old.Status), string(to), actorID, now)
	if err := e.Store.UpdateTask(ctx, t, h); err != nil {
		return domain.Task{}, fmt.Errorf("update task %s status: %w", t.ID, err)
	}
	e.log().Debug("task status changed", "task_id", t.ID, "from", old.Status, "to", to, "actor", actorID)
	return t, nil
}
