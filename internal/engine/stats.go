package engine

import (
	"context"
	"fmt"
	"time"

	"worklist/internal/domain"
	"worklist/internal/engine/auth"
)

type StatusCounts struct {
	Open       int `json:"OPEN"`
	InProgress int `json:"IN_PROGRESS"`
	Done       int `json:"DONE"`
	Archived   int `json:"ARCHIVED"`
}

func (c *StatusCounts) add(s domain.Status) error {
	switch s {
	case domain.StatusOpen:
		c.Open++
	case domain.StatusInProgress:
		c.InProgress++
	case domain.StatusDone:
		c.Done++
	case domain.StatusArchived:
		c.Archived++
	default:
		return fmt.Errorf("unknown status %q", s)
	}
	return nil
}

type TypeCounts struct {
	Shopping int `json:"SHOPPING"`
	Todo     int `json:"TODO"`
	Note     int `json:"NOTE"`
}

func (c *TypeCounts) add(t domain.TaskType) error {
	switch t {
	case domain.TypeShopping:
		c.Shopping++
	case domain.TypeTodo:
		c.Todo++
	case domain.TypeNote:
		c.Note++
	default:
		return fmt.Errorf("unknown task type %q", t)
	}
	return nil
}

type PriorityCounts struct {
	Low    int `json:"LOW"`
	Medium int `json:"MEDIUM"`
	High   int `json:"HIGH"`
	Urgent int `json:"URGENT"`
}

func (c *PriorityCounts) add(p domain.Priority) error {
	switch p {
	case domain.PriorityLow:
		c.Low++
	case domain.PriorityMedium:
		c.Medium++
	case domain.PriorityHigh:
		c.High++
	case domain.PriorityUrgent:
		c.Urgent++
	default:
		return fmt.Errorf("unknown priority %q", p)
	}
	return nil
}

type Statistics struct {
	Total          int            `json:"total"`
	ByStatus       StatusCounts   `json:"by_status"`
	ByType         TypeCounts     `json:"by_type"`
	ByPriority     PriorityCounts `json:"by_priority"`
	OverdueTasks   int            `json:"overdue_tasks"`
	CompletedToday int            `json:"completed_today"`
	AssignedToMe   int            `json:"assigned_to_me"`
}

// GetStatistics aggregates every task the requester may list, including
// their own personal tasks.
func (e Engine) GetStatistics(ctx context.Context, pc domain.PermissionContext) (Statistics, error) {
	if err := requireContext(pc); err != nil {
		return Statistics{}, err
	}
	all, err := e.Store.ListTasks(ctx, scopeQuery(pc))
	if err != nil {
		return Statistics{}, fmt.Errorf("list tasks: %w", err)
	}
	now := e.now()
	dayStart := startOfDay(now, e.location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var st Statistics
	for _, t := range all {
		if !auth.Listable(pc, t, true) {
			continue
		}
		if err := st.ByStatus.add(t.Status); err != nil {
			return Statistics{}, fmt.Errorf("task %s: %w", t.ID, err)
		}
		if err := st.ByType.add(t.Type); err != nil {
			return Statistics{}, fmt.Errorf("task %s: %w", t.ID, err)
		}
		if err := st.ByPriority.add(t.Priority); err != nil {
			return Statistics{}, fmt.Errorf("task %s: %w", t.ID, err)
		}
		st.Total++
		if t.Status != domain.StatusDone && t.DueDate != nil && t.DueDate.Before(now) {
			st.OverdueTasks++
		}
		if t.CompletedAt != nil && !t.CompletedAt.Before(dayStart) && t.CompletedAt.Before(dayEnd) {
			st.CompletedToday++
		}
		if t.HasAssignee(pc.UserID) {
			st.AssignedToMe++
		}
	}
	return st, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
