package worklistsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Worklist HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BasePath:    "/v1",
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
}

// Task represents the API task model.
type Task struct {
	ID             string   `json:"id"`
	TenantID       string   `json:"tenant_id"`
	LocationID     string   `json:"location_id"`
	Type           string   `json:"type"`
	Status         string   `json:"status"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Priority       string   `json:"priority"`
	Quantity       *int     `json:"quantity,omitempty"`
	TargetLocation *string  `json:"target_location,omitempty"`
	CreatedBy      string   `json:"created_by"`
	AssigneeIDs    []string `json:"assignee_ids"`
	IsPersonal     bool     `json:"is_personal"`
	DueDate        *string  `json:"due_date,omitempty"`
	CompletedAt    *string  `json:"completed_at,omitempty"`
	CompletedBy    *string  `json:"completed_by,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// NewTask is the create payload.
type NewTask struct {
	Type           string   `json:"type"`
	Title          string   `json:"title"`
	Description    *string  `json:"description,omitempty"`
	Priority       *string  `json:"priority,omitempty"`
	Quantity       *int     `json:"quantity,omitempty"`
	TargetLocation *string  `json:"target_location,omitempty"`
	AssigneeIDs    []string `json:"assignee_ids,omitempty"`
	IsPersonal     bool     `json:"is_personal,omitempty"`
	DueDate        *string  `json:"due_date,omitempty"`
}

// TaskPage wraps list responses.
type TaskPage struct {
	Tasks    []Task `json:"tasks"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	HasMore  bool   `json:"has_more"`
}

// ListOptions are passed as query parameters; zero values are omitted.
type ListOptions struct {
	Type            string
	Status          string
	AssigneeID      string
	CreatedBy       string
	Priority        string
	DueDateFrom     string
	DueDateTo       string
	Search          string
	IncludePersonal bool
	Page            int
	PageSize        int
}

// DuplicateCheck is the result of CheckDuplicates.
type DuplicateCheck struct {
	IsDuplicate  bool   `json:"is_duplicate"`
	SimilarTasks []Task `json:"similar_tasks"`
	Message      string `json:"message,omitempty"`
}

// Assignment reports how an assignee set changed.
type Assignment struct {
	Task    Task     `json:"task"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// HistoryEntry is one recorded task mutation.
type HistoryEntry struct {
	ID            string `json:"id"`
	TaskID        string `json:"task_id"`
	Action        string `json:"action"`
	PreviousValue string `json:"previous_value,omitempty"`
	NewValue      string `json:"new_value,omitempty"`
	PerformedBy   string `json:"performed_by"`
	PerformedAt   string `json:"performed_at"`
}

// Statistics keys counts by enum value.
type Statistics struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	ByType         map[string]int `json:"by_type"`
	ByPriority     map[string]int `json:"by_priority"`
	OverdueTasks   int            `json:"overdue_tasks"`
	CompletedToday int            `json:"completed_today"`
	AssignedToMe   int            `json:"assigned_to_me"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, in NewTask) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", in, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, taskPath(id, ""), nil, &resp)
	return resp, err
}

// UpdateTask sends a partial update. A nil map value clears that field.
func (c *Client) UpdateTask(ctx context.Context, id string, fields map[string]any) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, taskPath(id, ""), fields, &resp)
	return resp, err
}

// ListTasks returns one page of tasks.
func (c *Client) ListTasks(ctx context.Context, opts ListOptions) (TaskPage, error) {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("type", opts.Type)
	set("status", opts.Status)
	set("assignee_id", opts.AssigneeID)
	set("created_by", opts.CreatedBy)
	set("priority", opts.Priority)
	set("due_date_from", opts.DueDateFrom)
	set("due_date_to", opts.DueDateTo)
	set("search", opts.Search)
	if opts.IncludePersonal {
		q.Set("include_personal", "true")
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	endpoint := "tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp TaskPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ChangeStatus moves a task to status.
func (c *Client) ChangeStatus(ctx context.Context, id, status string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(id, "status"), map[string]string{"status": status}, &resp)
	return resp, err
}

// Complete marks a task done.
func (c *Client) Complete(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, taskPath(id, "complete"), nil, &resp)
	return resp, err
}

// Assign replaces the assignee set.
func (c *Client) Assign(ctx context.Context, id string, assignees []string) (Assignment, error) {
	if assignees == nil {
		assignees = []string{}
	}
	var resp Assignment
	err := c.do(ctx, http.MethodPut, taskPath(id, "assignees"), map[string]any{"assignee_ids": assignees}, &resp)
	return resp, err
}

// Delete archives a task.
func (c *Client) Delete(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodDelete, taskPath(id, ""), nil, &resp)
	return resp, err
}

// History returns the task history, newest first.
func (c *Client) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	var resp []HistoryEntry
	err := c.do(ctx, http.MethodGet, taskPath(id, "history"), nil, &resp)
	return resp, err
}

// CheckDuplicates reports active tasks similar to title.
func (c *Client) CheckDuplicates(ctx context.Context, title, taskType string) (DuplicateCheck, error) {
	q := url.Values{"title": {title}, "type": {taskType}}
	var resp DuplicateCheck
	err := c.do(ctx, http.MethodGet, "tasks/duplicates?"+q.Encode(), nil, &resp)
	return resp, err
}

// Statistics returns counts for the caller's scope.
func (c *Client) Statistics(ctx context.Context) (Statistics, error) {
	var resp Statistics
	err := c.do(ctx, http.MethodGet, "tasks/statistics", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string         `json:"code"`
				Message string         `json:"message"`
				Details map[string]any `json:"details"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func taskPath(id, sub string) string {
	p := "tasks/" + url.PathEscape(id)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if c.BasePath != "" {
		base += "/" + strings.Trim(c.BasePath, "/")
	}
	return base
}
