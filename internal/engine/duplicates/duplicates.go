// Package duplicates decides whether a proposed task collides with an
// active task of the same type at the same tenant and location.
package duplicates

import (
	"context"
	"fmt"
	"strings"

	"worklist/internal/domain"
	"worklist/internal/engine/similarity"
)

const (
	DefaultThreshold  = 0.95
	DefaultMaxMatches = 3
)

// Source lists candidate tasks.
type Source interface {
	ListTasks(ctx context.Context, q domain.TaskQuery) ([]domain.Task, error)
}

type Detector struct {
	Source     Source
	Threshold  float64
	MaxMatches int
}

type Query struct {
	Title      string
	Type       domain.TaskType
	TenantID   string
	LocationID string
	// Visible, when set, drops candidates the requester may not see.
	Visible func(domain.Task) bool
}

type Result struct {
	IsDuplicate  bool          `json:"is_duplicate"`
	SimilarTasks []domain.Task `json:"similar_tasks"`
	Message      string        `json:"message,omitempty"`
}

func (d Detector) threshold() float64 {
	if d.Threshold > 0 {
		return d.Threshold
	}
	return DefaultThreshold
}

func (d Detector) maxMatches() int {
	if d.MaxMatches > 0 {
		return d.MaxMatches
	}
	return DefaultMaxMatches
}

// Check is read-only; turning a positive result into a rejection is the caller's job.
func (d Detector) Check(ctx context.Context, q Query) (Result, error) {
	candidates, err := d.Source.ListTasks(ctx, domain.TaskQuery{
		TenantID:   q.TenantID,
		LocationID: q.LocationID,
		Type:       q.Type,
		Statuses:   []domain.Status{domain.StatusOpen, domain.StatusInProgress},
	})
	if err != nil {
		return Result{}, fmt.Errorf("list duplicate candidates: %w", err)
	}
	res := Result{SimilarTasks: []domain.Task{}}
	want := normalize(q.Title)
	for _, t := range candidates {
		if t.TenantID != q.TenantID || t.LocationID != q.LocationID || t.Type != q.Type || !t.Status.Active() {
			continue
		}
		if q.Visible != nil && !q.Visible(t) {
			continue
		}
		if !d.matches(want, q.Title, t.Title) {
			continue
		}
		res.IsDuplicate = true
		if len(res.SimilarTasks) < d.maxMatches() {
			res.SimilarTasks = append(res.SimilarTasks, t)
		}
	}
	if res.IsDuplicate {
		res.Message = fmt.Sprintf("A similar %s task already exists: %q", strings.ToLower(string(q.Type)), res.SimilarTasks[0].Title)
	}
	return res, nil
}

func (d Detector) matches(normalized, raw, candidate string) bool {
	if normalize(candidate) == normalized {
		return true
	}
	return similarity.Score(raw, candidate) > d.threshold()
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
