package domain

import (
	"fmt"
	"time"
)

type TaskType string

const (
	TypeShopping TaskType = "SHOPPING"
	TypeTodo     TaskType = "TODO"
	TypeNote     TaskType = "NOTE"
)

// TaskTypes lists every task type in display order.
var TaskTypes = []TaskType{TypeShopping, TypeTodo, TypeNote}

func (t TaskType) Valid() bool {
	switch t {
	case TypeShopping, TypeTodo, TypeNote:
		return true
	}
	return false
}

func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(s)
	if !t.Valid() {
		return "", Validation("type", fmt.Sprintf("unknown task type %q", s))
	}
	return t, nil
}

type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusArchived   Status = "ARCHIVED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusDone, StatusArchived}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone, StatusArchived:
		return true
	}
	return false
}

// Active reports whether tasks in this status take part in duplicate detection.
func (s Status) Active() bool {
	return s == StatusOpen || s == StatusInProgress
}

// CanTransition reports whether a task may move from s to to.
// ARCHIVED is terminal.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusOpen:
		return to == StatusInProgress || to == StatusDone || to == StatusArchived
	case StatusInProgress:
		return to == StatusOpen || to == StatusDone || to == StatusArchived
	case StatusDone:
		return to == StatusOpen || to == StatusArchived
	case StatusArchived:
		return false
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", Validation("status", fmt.Sprintf("unknown status %q", s))
	}
	return st, nil
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", Validation("priority", fmt.Sprintf("unknown priority %q", s))
	}
	return p, nil
}

type HistoryAction string

const (
	ActionCreated       HistoryAction = "CREATED"
	ActionUpdated       HistoryAction = "UPDATED"
	ActionStatusChanged HistoryAction = "STATUS_CHANGED"
	ActionAssigned      HistoryAction = "ASSIGNED"
	ActionCompleted     HistoryAction = "COMPLETED"
	ActionArchived      HistoryAction = "ARCHIVED"
)

func (a HistoryAction) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionStatusChanged, ActionAssigned, ActionCompleted, ActionArchived:
		return true
	}
	return false
}

const (
	MaxTitleLength       = 500
	MaxDescriptionLength = 5000
	DefaultQuantity      = 1
)

type Task struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	LocationID     string     `json:"location_id"`
	Type           TaskType   `json:"type" enum:"SHOPPING,TODO,NOTE"`
	Status         Status     `json:"status" enum:"OPEN,IN_PROGRESS,DONE,ARCHIVED"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Priority       Priority   `json:"priority" enum:"LOW,MEDIUM,HIGH,URGENT"`
	Quantity       *int       `json:"quantity,omitempty"`
	TargetLocation *string    `json:"target_location,omitempty"`
	CreatedBy      string     `json:"created_by"`
	AssigneeIDs    []string   `json:"assignee_ids"`
	IsPersonal     bool       `json:"is_personal"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CompletedBy    *string    `json:"completed_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasAssignee reports whether userID is one of the task's assignees.
func (t Task) HasAssignee(userID string) bool {
	for _, id := range t.AssigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate it without aliasing the source.
func (t Task) Clone() Task {
	c := t
	if t.AssigneeIDs != nil {
		c.AssigneeIDs = append([]string(nil), t.AssigneeIDs...)
	}
	c.Quantity = clonePtr(t.Quantity)
	c.TargetLocation = clonePtr(t.TargetLocation)
	c.DueDate = clonePtr(t.DueDate)
	c.CompletedAt = clonePtr(t.CompletedAt)
	c.CompletedBy = clonePtr(t.CompletedBy)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type HistoryEntry struct {
	ID            string        `json:"id"`
	TaskID        string        `json:"task_id"`
	Action        HistoryAction `json:"action" enum:"CREATED,UPDATED,STATUS_CHANGED,ASSIGNED,COMPLETED,ARCHIVED"`
	PreviousValue string        `json:"previous_value,omitempty"`
	NewValue      string        `json:"new_value,omitempty"`
	PerformedBy   string        `json:"performed_by"`
	PerformedAt   time.Time     `json:"performed_at"`
}

// PermissionContext describes the requester; it is built per request and never stored.
type PermissionContext struct {
	UserID       string
	TenantID     string
	LocationID   string
	IsManager    bool
	CanViewAll   bool
	CanManageAll bool
}

// TaskQuery narrows what a store returns. Empty fields do not filter.
// Stores may return a superset; the engine re-checks every candidate.
type TaskQuery struct {
	TenantID   string
	LocationID string
	Type       TaskType
	Statuses   []Status
}

// Matches reports whether t falls inside the query scope.
func (q TaskQuery) Matches(t Task) bool {
	if q.TenantID != "" && t.TenantID != q.TenantID {
		return false
	}
	if q.LocationID != "" && t.LocationID != q.LocationID {
		return false
	}
	if q.Type != "" && t.Type != q.Type {
		return false
	}
	if len(q.Statuses) > 0 {
		for _, s := range q.Statuses {
			if t.Status == s {
				return true
			}
		}
		return false
	}
	return true
}
