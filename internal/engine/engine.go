package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"worklist/internal/config"
	"worklist/internal/domain"
	"worklist/internal/engine/auth"
	"worklist/internal/engine/duplicates"
	"worklist/internal/events"
)

// Store persists tasks and their history. InsertTask and UpdateTask write
// the task row and the history entry atomically. ListHistory returns
// entries in append order. Missing tasks are reported as domain.ErrNoRecord.
type Store interface {
	InsertTask(ctx context.Context, t domain.Task, h domain.HistoryEntry) error
	UpdateTask(ctx context.Context, t domain.Task, h domain.HistoryEntry) error
	GetTask(ctx context.Context, id string) (domain.Task, error)
	ListTasks(ctx context.Context, q domain.TaskQuery) ([]domain.Task, error)
	ListHistory(ctx context.Context, taskID string) ([]domain.HistoryEntry, error)
}

type Engine struct {
	Store    Store
	Detector duplicates.Detector
	Config   *config.Config
	Now      func() time.Time
	NewID    func() string
	// Location sets the calendar day used by statistics.
	Location *time.Location
	Logger   *slog.Logger
}

func New(store Store, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	loc, err := cfg.TimeLocation()
	if err != nil {
		loc = time.Local
	}
	return Engine{
		Store: store,
		Detector: duplicates.Detector{
			Source:     store,
			Threshold:  cfg.Duplicates.SimilarityThreshold,
			MaxMatches: cfg.Duplicates.MaxMatches,
		},
		Config:   cfg,
		Now:      time.Now,
		NewID:    uuid.NewString,
		Location: loc,
		Logger:   slog.Default(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e Engine) location() *time.Location {
	if e.Location != nil {
		return e.Location
	}
	return time.Local
}

func (e Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// CreateInput are parameters for creating a task.
type CreateInput struct {
	Type           domain.TaskType
	Title          string
	Description    string
	Priority       domain.Priority
	Quantity       *int
	TargetLocation *string
	AssigneeIDs    []string
	IsPersonal     bool
	DueDate        *time.Time
}

// Create validates in, rejects duplicates of active tasks and stores the
// new task as OPEN together with its CREATED history entry.
func (e Engine) Create(ctx context.Context, in CreateInput, pc domain.PermissionContext) (domain.Task, error) {
	if err := requireContext(pc); err != nil {
		return domain.Task{}, err
	}
	task, err := e.buildTask(in, pc)
	if err != nil {
		return domain.Task{}, err
	}
	dup, err := e.Detector.Check(ctx, duplicates.Query{
		Title:      task.Title,
		Type:       task.Type,
		TenantID:   pc.TenantID,
		LocationID: pc.LocationID,
		Visible:    visibleTo(pc),
	})
	if err != nil {
		return domain.Task{}, err
	}
	if dup.IsDuplicate {
		return domain.Task{}, domain.ConflictError{Message: dup.Message, SimilarTasks: dup.SimilarTasks}
	}
	snap, err := events.Snapshot(task)
	if err != nil {
		return domain.Task{}, err
	}
	h := events.Entry(e.newID(), task.ID, domain.ActionCreated, "", snap, pc.UserID, task.CreatedAt)
	if err := e.Store.InsertTask(ctx, task, h); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	e.log().Debug("task created", "task_id", task.ID, "type", task.Type, "tenant_id", task.TenantID, "actor", pc.UserID)
	return task, nil
}

func (e Engine) buildTask(in CreateInput, pc domain.PermissionContext) (domain.Task, error) {
	if !in.Type.Valid() {
		return domain.Task{}, domain.Validation("type", fmt.Sprintf("unknown task type %q", in.Type))
	}
	if err := validateTitle(in.Title); err != nil {
		return domain.Task{}, err
	}
	if err := validateDescription(in.Description); err != nil {
		return domain.Task{}, err
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return domain.Task{}, domain.Validation("priority", fmt.Sprintf("unknown priority %q", priority))
	}
	assignees, err := normalizeAssignees(in.AssigneeIDs)
	if err != nil {
		return domain.Task{}, err
	}
	if in.IsPersonal && len(assignees) > 0 {
		return domain.Task{}, domain.Conflict("Personal tasks cannot be assigned to other users")
	}
	now := e.now()
	t := domain.Task{
		ID:          e.newID(),
		TenantID:    pc.TenantID,
		LocationID:  pc.LocationID,
		Type:        in.Type,
		Status:      domain.StatusOpen,
		Title:       in.Title,
		Description: in.Description,
		Priority:    priority,
		CreatedBy:   pc.UserID,
		AssigneeIDs: assignees,
		IsPersonal:  in.IsPersonal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.DueDate != nil {
		due := in.DueDate.UTC()
		t.DueDate = &due
	}
	if in.Type == domain.TypeShopping {
		qty := domain.DefaultQuantity
		if in.Quantity != nil {
			qty = *in.Quantity
		}
		if err := validateQuantity(qty); err != nil {
			return domain.Task{}, err
		}
		t.Quantity = &qty
		t.TargetLocation = optionalString(in.TargetLocation)
		return t, nil
	}
	if in.Quantity != nil {
		return domain.Task{}, domain.Validation("quantity", "only shopping tasks carry a quantity")
	}
	if optionalString(in.TargetLocation) != nil {
		return domain.Task{}, domain.Validation("target_location", "only shopping tasks carry a target location")
	}
	return t, nil
}

// UpdateInput carries a partial update; absent fields are left untouched.
type UpdateInput struct {
	Title          domain.Field[string]
	Description    domain.Field[string]
	Priority       domain.Field[domain.Priority]
	Quantity       domain.Field[int]
	TargetLocation domain.Field[string]
	DueDate        domain.Field[time.Time]
}

func (in UpdateInput) empty() bool {
	return !in.Title.Present && !in.Description.Present && !in.Priority.Present &&
		!in.Quantity.Present && !in.TargetLocation.Present && !in.DueDate.Present
}

// Update applies the present fields of in. Status, assignees and the
// personal flag have their own operations.
func (e Engine) Update(ctx context.Context, id string, in UpdateInput, pc domain.PermissionContext) (domain.Task, error) {
	if err := requireContext(pc); err != nil {
		return domain.Task{}, err
	}
	old, err := e.load(ctx, id, pc)
	if err != nil {
		return domain.Task{}, err
	}
	if err := auth.RequireMutate(pc, old); err != nil {
		return domain.Task{}, err
	}
	if in.empty() {
		return old, nil
	}
	t := old.Clone()
	if err := applyUpdate(&t, in); err != nil {
		return domain.Task{}, err
	}
	t.UpdatedAt = e.now()
	prev, err := events.Snapshot(old)
	if err != nil {
		return domain.Task{}, err
	}
	next, err := events.Snapshot(t)
	if err != nil {
		return domain.Task{}, err
	}
	h := events.Entry(e.newID(), t.ID, domain.ActionUpdated, prev, next, pc.UserID, t.UpdatedAt)
	if err := e.Store.UpdateTask(ctx, t, h); err != nil {
		return domain.Task{}, fmt.Errorf("update task %s: %w", t.ID, err)
	}
	e.log().Debug("task updated", "task_id", t.ID, "actor", pc.UserID)
	return t, nil
}

func applyUpdate(t *domain.Task, in UpdateInput) error {
	if in.Title.Present {
		title, ok := in.Title.Get()
		if !ok {
			return domain.Validation("title", "title is required")
		}
		if err := validateTitle(title); err != nil {
			return err
		}
		t.Title = title
	}
	if in.Description.Present {
		desc, _ := in.Description.Get()
		if err := validateDescription(desc); err != nil {
			return err
		}
		t.Description = desc
	}
	if in.Priority.Present {
		p, ok := in.Priority.Get()
		if !ok || p == "" {
			p = domain.PriorityMedium
		}
		if !p.Valid() {
			return domain.Validation("priority", fmt.Sprintf("unknown priority %q", p))
		}
		t.Priority = p
	}
	shopping := t.Type == domain.TypeShopping
	if in.Quantity.Present {
		qty, ok := in.Quantity.Get()
		switch {
		case ok && !shopping:
			return domain.Validation("quantity", "only shopping tasks carry a quantity")
		case ok:
			if err := validateQuantity(qty); err != nil {
				return err
			}
			t.Quantity = &qty
		case shopping:
			reset := domain.DefaultQuantity
			t.Quantity = &reset
		}
	}
	if in.TargetLocation.Present {
		loc, ok := in.TargetLocation.Get()
		target := optionalString(&loc)
		if !ok {
			target = nil
		}
		if target != nil && !shopping {
			return domain.Validation("target_location", "only shopping tasks carry a target location")
		}
		t.TargetLocation = target
	}
	if in.DueDate.Present {
		if due, ok := in.DueDate.Get(); ok {
			due = due.UTC()
			t.DueDate = &due
		} else {
			t.DueDate = nil
		}
	}
	return nil
}

// AssignInput replaces the assignee set of a task.
type AssignInput struct {
	TaskID      string
	AssigneeIDs []string
}

// AssignResult reports the stored task and how its assignee set changed.
type AssignResult struct {
	Task    domain.Task `json:"task"`
	Added   []string    `json:"added"`
	Removed []string    `json:"removed"`
}

func (e Engine) Assign(ctx context.Context, in AssignInput, pc domain.PermissionContext) (AssignResult, error) {
	if err := requireContext(pc); err != nil {
		return AssignResult{}, err
	}
	old, err := e.load(ctx, in.TaskID, pc)
	if err != nil {
		return AssignResult{}, err
	}
	if err := auth.RequireAssign(pc, old); err != nil {
		return AssignResult{}, err
	}
	assignees, err := normalizeAssignees(in.AssigneeIDs)
	if err != nil {
		return AssignResult{}, err
	}
	t := old.Clone()
	t.AssigneeIDs = assignees
	t.UpdatedAt = e.now()
	h := events.Entry(e.newID(), t.ID, domain.ActionAssigned, events.AssigneeSet(old.AssigneeIDs), events.AssigneeSet(assignees), pc.UserID, t.UpdatedAt)
	if err := e.Store.UpdateTask(ctx, t, h); err != nil {
		return AssignResult{}, fmt.Errorf("assign task %s: %w", t.ID, err)
	}
	added, removed := diffSets(old.AssigneeIDs, assignees)
	e.log().Debug("task assigned", "task_id", t.ID, "added", len(added), "removed", len(removed), "actor", pc.UserID)
	return AssignResult{Task: t, Added: added, Removed: removed}, nil
}

// Delete archives the task; nothing is ever physically removed.
func (e Engine) Delete(ctx context.Context, id string, pc domain.PermissionContext) (domain.Task, error) {
	if err := requireContext(pc); err != nil {
		return domain.Task{}, err
	}
	t, err := e.load(ctx, id, pc)
	if err != nil {
		return domain.Task{}, err
	}
	if err := auth.RequireDelete(pc, t); err != nil {
		return domain.Task{}, err
	}
	return e.transition(ctx, t, domain.StatusArchived, domain.ActionArchived, pc.UserID)
}

// GetHistory returns the history of a visible task, newest first.
func (e Engine) GetHistory(ctx context.Context, id string, pc domain.PermissionContext) ([]domain.HistoryEntry, error) {
	if err := requireContext(pc); err != nil {
		return nil, err
	}
	if _, err := e.load(ctx, id, pc); err != nil {
		return nil, err
	}
	entries, err := e.Store.ListHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list history %s: %w", id, err)
	}
	out := make([]domain.HistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

// load fetches a task and applies direct-fetch visibility.
func (e Engine) load(ctx context.Context, id string, pc domain.PermissionContext) (domain.Task, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Task{}, domain.Validation("id", "task id is required")
	}
	t, err := e.Store.GetTask(ctx, id)
	if errors.Is(err, domain.ErrNoRecord) {
		return domain.Task{}, domain.NotFound("task", id)
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	if err := auth.RequireVisible(pc, t); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// visibleTo hides other users' personal tasks from duplicate matches.
func visibleTo(pc domain.PermissionContext) func(domain.Task) bool {
	return func(t domain.Task) bool {
		return !t.IsPersonal || t.CreatedBy == pc.UserID
	}
}

func optionalString(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}

// diffSets returns the members of next missing from prev, then the reverse.
func diffSets(prev, next []string) (added, removed []string) {
	in := func(set []string, id string) bool {
		for _, v := range set {
			if v == id {
				return true
			}
		}
		return false
	}
	added, removed = []string{}, []string{}
	for _, id := range next {
		if !in(prev, id) {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if !in(next, id) {
			removed = append(removed, id)
		}
	}
	return added, removed
}
