package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"worklist/internal/domain"
	"worklist/internal/engine/auth"
	"worklist/internal/engine/duplicates"
)

// Filter narrows FindMany. Zero values do not filter.
type Filter struct {
	Type            domain.TaskType
	Status          domain.Status
	AssigneeID      string
	CreatedBy       string
	Priority        domain.Priority
	DueDateFrom     *time.Time
	DueDateTo       *time.Time
	Search          string
	IncludePersonal bool
	Page            int
	PageSize        int
}

// Page is one slice of a sorted result set. Total counts every match
// before pagination.
type Page struct {
	Tasks    []domain.Task `json:"tasks"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	HasMore  bool          `json:"has_more"`
}

func (e Engine) FindByID(ctx context.Context, id string, pc domain.PermissionContext) (domain.Task, error) {
	if err := requireContext(pc); err != nil {
		return domain.Task{}, err
	}
	return e.load(ctx, id, pc)
}

func (e Engine) FindMany(ctx context.Context, f Filter, pc domain.PermissionContext) (Page, error) {
	if err := requireContext(pc); err != nil {
		return Page{}, err
	}
	if err := validateFilter(f); err != nil {
		return Page{}, err
	}
	all, err := e.Store.ListTasks(ctx, scopeQuery(pc))
	if err != nil {
		return Page{}, fmt.Errorf("list tasks: %w", err)
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	matched := make([]domain.Task, 0, len(all))
	for _, t := range all {
		if !auth.Listable(pc, t, f.IncludePersonal) {
			continue
		}
		if !f.matches(t, search) {
			continue
		}
		matched = append(matched, t)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	page, size := e.pageBounds(f.Page, f.PageSize)
	total := len(matched)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return Page{
		Tasks:    matched[start:end:end],
		Total:    total,
		Page:     page,
		PageSize: size,
		HasMore:  page*size < total,
	}, nil
}

func validateFilter(f Filter) error {
	if f.Type != "" && !f.Type.Valid() {
		return domain.Validation("type", fmt.Sprintf("unknown task type %q", f.Type))
	}
	if f.Status != "" && !f.Status.Valid() {
		return domain.Validation("status", fmt.Sprintf("unknown status %q", f.Status))
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return domain.Validation("priority", fmt.Sprintf("unknown priority %q", f.Priority))
	}
	if f.DueDateFrom != nil && f.DueDateTo != nil && f.DueDateFrom.After(*f.DueDateTo) {
		return domain.Conflict("dueDateFrom must not be after dueDateTo")
	}
	return nil
}

func (f Filter) matches(t domain.Task, search string) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.AssigneeID != "" && !t.HasAssignee(f.AssigneeID) {
		return false
	}
	if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.DueDateFrom != nil || f.DueDateTo != nil {
		if t.DueDate == nil {
			return false
		}
		if f.DueDateFrom != nil && t.DueDate.Before(*f.DueDateFrom) {
			return false
		}
		if f.DueDateTo != nil && t.DueDate.After(*f.DueDateTo) {
			return false
		}
	}
	if search != "" {
		if !strings.Contains(strings.ToLower(t.Title), search) && !strings.Contains(strings.ToLower(t.Description), search) {
			return false
		}
	}
	return true
}

func (e Engine) pageBounds(page, size int) (int, int) {
	def, limit := 20, 100
	if e.Config != nil {
		def, limit = e.Config.Listing.DefaultPageSize, e.Config.Listing.MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = def
	}
	if size > limit {
		size = limit
	}
	return page, size
}

// scopeQuery narrows the store read to the requester's tenant and, without
// view-all, location. Every candidate is still checked by auth.
func scopeQuery(pc domain.PermissionContext) domain.TaskQuery {
	q := domain.TaskQuery{TenantID: pc.TenantID}
	if !pc.CanViewAll {
		q.LocationID = pc.LocationID
	}
	return q
}

// CheckDuplicates reports active tasks of type at the requester's tenant
// and location whose title collides with title.
func (e Engine) CheckDuplicates(ctx context.Context, title string, typ domain.TaskType, pc domain.PermissionContext) (duplicates.Result, error) {
	if err := requireContext(pc); err != nil {
		return duplicates.Result{}, err
	}
	if err := validateTitle(title); err != nil {
		return duplicates.Result{}, err
	}
	if !typ.Valid() {
		return duplicates.Result{}, domain.Validation("type", fmt.Sprintf("unknown task type %q", typ))
	}
	return e.Detector.Check(ctx, duplicates.Query{
		Title:      title,
		Type:       typ,
		TenantID:   pc.TenantID,
		LocationID: pc.LocationID,
		Visible:    visibleTo(pc),
	})
}
