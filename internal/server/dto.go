package server

import (
	"time"

	"worklist/internal/domain"
	"worklist/internal/engine"
	"worklist/internal/engine/duplicates"
)

// Request payloads

type CreateTaskRequest struct {
	Type           string   `json:"type" enum:"SHOPPING,TODO,NOTE"`
	Title          string   `json:"title"`
	Description    *string  `json:"description,omitempty"`
	Priority       *string  `json:"priority,omitempty" enum:"LOW,MEDIUM,HIGH,URGENT"`
	Quantity       *int     `json:"quantity,omitempty"`
	TargetLocation *string  `json:"target_location,omitempty"`
	AssigneeIDs    []string `json:"assignee_ids,omitempty"`
	IsPersonal     bool     `json:"is_personal,omitempty"`
	DueDate        *string  `json:"due_date,omitempty" format:"date-time"`
}

// UpdateTaskRequest documents the PATCH body. Presence and explicit nulls
// are read from the raw body.
type UpdateTaskRequest struct {
	Title          *string `json:"title,omitempty" nullable:"true"`
	Description    *string `json:"description,omitempty" nullable:"true"`
	Priority       *string `json:"priority,omitempty" nullable:"true" enum:"LOW,MEDIUM,HIGH,URGENT"`
	Quantity       *int    `json:"quantity,omitempty" nullable:"true"`
	TargetLocation *string `json:"target_location,omitempty" nullable:"true"`
	DueDate        *string `json:"due_date,omitempty" nullable:"true" format:"date-time"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" enum:"OPEN,IN_PROGRESS,DONE,ARCHIVED"`
}

type AssignRequest struct {
	AssigneeIDs []string `json:"assignee_ids"`
}

// Response payloads

type TaskResponse struct {
	ID             string   `json:"id"`
	TenantID       string   `json:"tenant_id"`
	LocationID     string   `json:"location_id"`
	Type           string   `json:"type" enum:"SHOPPING,TODO,NOTE"`
	Status         string   `json:"status" enum:"OPEN,IN_PROGRESS,DONE,ARCHIVED"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Priority       string   `json:"priority" enum:"LOW,MEDIUM,HIGH,URGENT"`
	Quantity       *int     `json:"quantity,omitempty"`
	TargetLocation *string  `json:"target_location,omitempty"`
	CreatedBy      string   `json:"created_by"`
	AssigneeIDs    []string `json:"assignee_ids"`
	IsPersonal     bool     `json:"is_personal"`
	DueDate        *string  `json:"due_date,omitempty" format:"date-time"`
	CompletedAt    *string  `json:"completed_at,omitempty" format:"date-time"`
	CompletedBy    *string  `json:"completed_by,omitempty"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
	UpdatedAt      string   `json:"updated_at" format:"date-time"`
}

type TaskPageResponse struct {
	Tasks    []TaskResponse `json:"tasks"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	HasMore  bool           `json:"has_more"`
}

type DuplicateCheckResponse struct {
	IsDuplicate  bool           `json:"is_duplicate"`
	SimilarTasks []TaskResponse `json:"similar_tasks"`
	Message      string         `json:"message,omitempty"`
}

type AssignResponse struct {
	Task    TaskResponse `json:"task"`
	Added   []string     `json:"added"`
	Removed []string     `json:"removed"`
}

type HistoryEntryResponse struct {
	ID            string `json:"id"`
	TaskID        string `json:"task_id"`
	Action        string `json:"action" enum:"CREATED,UPDATED,STATUS_CHANGED,ASSIGNED,COMPLETED,ARCHIVED"`
	PreviousValue string `json:"previous_value,omitempty"`
	NewValue      string `json:"new_value,omitempty"`
	PerformedBy   string `json:"performed_by"`
	PerformedAt   string `json:"performed_at" format:"date-time"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func taskResponse(t domain.Task) TaskResponse {
	assignees := t.AssigneeIDs
	if assignees == nil {
		assignees = []string{}
	}
	return TaskResponse{
		ID:             t.ID,
		TenantID:       t.TenantID,
		LocationID:     t.LocationID,
		Type:           string(t.Type),
		Status:         string(t.Status),
		Title:          t.Title,
		Description:    t.Description,
		Priority:       string(t.Priority),
		Quantity:       t.Quantity,
		TargetLocation: t.TargetLocation,
		CreatedBy:      t.CreatedBy,
		AssigneeIDs:    assignees,
		IsPersonal:     t.IsPersonal,
		DueDate:        formatTimePtr(t.DueDate),
		CompletedAt:    formatTimePtr(t.CompletedAt),
		CompletedBy:    t.CompletedBy,
		CreatedAt:      formatTime(t.CreatedAt),
		UpdatedAt:      formatTime(t.UpdatedAt),
	}
}

func mapTasks(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskResponse(t))
	}
	return out
}

func pageResponse(p engine.Page) TaskPageResponse {
	return TaskPageResponse{
		Tasks:    mapTasks(p.Tasks),
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
		HasMore:  p.HasMore,
	}
}

func duplicateResponse(r duplicates.Result) DuplicateCheckResponse {
	return DuplicateCheckResponse{
		IsDuplicate:  r.IsDuplicate,
		SimilarTasks: mapTasks(r.SimilarTasks),
		Message:      r.Message,
	}
}

func assignResponse(r engine.AssignResult) AssignResponse {
	return AssignResponse{
		Task:    taskResponse(r.Task),
		Added:   nonNil(r.Added),
		Removed: nonNil(r.Removed),
	}
}

func historyResponse(entries []domain.HistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, HistoryEntryResponse{
			ID:            h.ID,
			TaskID:        h.TaskID,
			Action:        string(h.Action),
			PreviousValue: h.PreviousValue,
			NewValue:      h.NewValue,
			PerformedBy:   h.PerformedBy,
			PerformedAt:   formatTime(h.PerformedAt),
		})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
