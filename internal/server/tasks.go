package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"worklist/internal/domain"
	"worklist/internal/engine"
)

type taskBody struct {
	Body TaskResponse `json:"body"`
}

func registerTasks(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*taskBody, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		pc, authErr := requester(ctx)
		if authErr != nil {
			return nil, authErr
		}
		typ, err := domain.ParseTaskType(input.Body.Type)
		if err != nil {
			return nil, h.handleError(err)
		}
		in := engine.CreateInput{
			Type:           typ,
			Title:          input.Body.Title,
			Quantity:       input.Body.Quantity,
			TargetLocation: input.Body.TargetLocation,
			AssigneeIDs:    input.Body.AssigneeIDs,
			IsPersonal:     input.Body.IsPersonal,
		}
		if input.Body.Description != nil {
			in.Description = *input.Body.Description
		}
		if input.Body.Priority != nil {
			p, err := domain.ParsePriority(*input.Body.Priority)
			if err != nil {
				return nil, h.handleError(err)
			}
			in.Priority = p
		}
		if input.Body.DueDate != nil {
			due, err := parseTimeParam("due_date", *input.Body.DueDate)
			if err != nil {
				return nil, h.handleError(err)
			}
			in.DueDate = due
		}
		t, err := h.e.Create(ctx, in, pc)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &taskBody{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Type            string `query:"type"`
		Status          string `query:"status"`
		AssigneeID      string `query:"assignee_id"`
		CreatedBy       string `query:"created_by"`
		Priority        string `query:"priority"`
		DueDateFrom     string `query:"due_date_from"`
		DueDateTo       string `query:"due_date_to"`
		Search          string `query:"search"`
		IncludePersonal bool   `query:"include_personal"`
		Page            int    `query:"page"`
		PageSize        int    `query:"page_size"`
	}) (*struct {
		Body TaskPageResponse `json:"body"`
	}, error) {
		pc, authErr := requester(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f := engine.Filter{
			Type:            domain.TaskType(input.Type),
			Status:          domain.Status(input.Status),
			AssigneeID:      input.AssigneeID,
			CreatedBy:       input.CreatedBy,
			Priority:        domain.Priority(input.Priority),
			Search:          input.Search,
			IncludePersonal: input.IncludePersonal,
			Page:            input.Page,
			PageSize:        input.PageSize,
		}
		var err error
		if input.DueDateFrom != "" {
			if f.DueDateFrom, err = parseTimeParam("due_date_from", input.DueDateFrom); err != nil {
				return nil, h.handleError(err)
			}
		}
		if input.DueDateTo != "" {
			if f.DueDateTo, err = parseTimeParam("due_date_to", input.DueDateTo); err != nil {
				return nil, h.handleError(err)
			}
		}
		page, err := h.e.FindMany(ctx, f, pc)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body TaskPageResponse `json:"body"`
		}{Body: pageResponse(page)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-duplicates",
		Method:      http.MethodGet,
		Path:        "/tasks/duplicates",
		Summary:     "Check for similar active tasks",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Title string `query:"title"`
		Type  string `query:"type"`
	}) (*struct {
		Body DuplicateCheckResponse `json:"body"`
	}, error) {
		pc, authErr := requester(ctx)
		if authErr != nil {
			return nil, authErr
		}
		typ, err := domain.ParseTaskType(input.Type)
		if err != nil {
			return nil, h.handleError(err)
		}
		res, err := h.e.CheckDuplicates(ctx, input.Title, typ, pc)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body DuplicateCheckResponse `json:"body"`
		}{Body: duplicateResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-statistics",
		Method:      http.MethodGet,
		Path:        "/tasks/statistics",
		Summary:     "Task statistics",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Statistics `json:"body"`
	}, error) {
		pc, authErr := requester(ctx)
		if authErr != nil {
			return nil, authErr
		}
		st, err := h.e.GetStatistics(ctx, pc)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body engine.Statistics `json:"body"`
		}{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*taskBody, error) {
		pc, authErr := requester(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := h.e.FindByID(ctx, input.ID, pc)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &taskBody{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task fields",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*taskBody, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		pc, authErr := requester(ctx)
		if authErr != nil {
			return nil, authErr
		}
		in, err := updateInput(rawBodyMap(ctx))
		if err != nil {
			return nil, h.handleError(err)
		}
		t, err := h.e.Update(ctx, input.ID, in, pc)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &taskBody{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Archive task",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*taskBody, error) {
		pc, authErr := requester(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := h.e.Delete(ctx, input.ID, pc)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &taskBody{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-task-status",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/status",
		Summary:     "Change task status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body ChangeStatusRequest `json:"body"`
	}) (*taskBody, error) {
		pc, authErr := requester(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := h.e.ChangeStatus(ctx, engine.StatusInput{TaskID: input.ID, Status: domain.Status(input.Body.Status)}, pc)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &taskBody{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/complete",
		Summary:     "Complete task",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*taskBody, error) {
		pc, authErr := requester(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := h.e.Complete(ctx, input.ID, pc)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &taskBody{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}/assignees",
		Summary:     "Replace task assignees",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body AssignRequest `json:"body"`
	}) (*struct {
		Body AssignResponse `json:"body"`
	}, error) {
		pc, authErr := requester(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if isNullRaw(rawBodyMap(ctx)["assignee_ids"]) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "assignee_ids must be array", map[string]any{"field": "assignee_ids"})
		}
		res, err := h.e.Assign(ctx, engine.AssignInput{TaskID: input.ID, AssigneeIDs: input.Body.AssigneeIDs}, pc)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body AssignResponse `json:"body"`
		}{Body: assignResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-history",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/history",
		Summary:     "Task history, newest first",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []HistoryEntryResponse `json:"body"`
	}, error) {
		pc, authErr := requester(ctx)
		if authErr != nil {
			return nil, authErr
		}
		entries, err := h.e.GetHistory(ctx, input.ID, pc)
		if err != nil {
			return nil, h.handleError(err)
		}
		return &struct {
			Body []HistoryEntryResponse `json:"body"`
		}{Body: historyResponse(entries)}, nil
	})
}

func parseTimeParam(field, raw string) (*time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return nil, domain.Validation(field, "must be an RFC3339 timestamp")
	}
	return &t, nil
}

// updateInput turns a PATCH body into field slots: absent keys stay
// absent, explicit nulls clear.
func updateInput(body map[string]json.RawMessage) (engine.UpdateInput, error) {
	var in engine.UpdateInput
	var err error
	if in.Title, err = rawField[string](body, "title"); err != nil {
		return in, err
	}
	if in.Description, err = rawField[string](body, "description"); err != nil {
		return in, err
	}
	if in.Quantity, err = rawField[int](body, "quantity"); err != nil {
		return in, err
	}
	if in.TargetLocation, err = rawField[string](body, "target_location"); err != nil {
		return in, err
	}
	priority, err := rawField[string](body, "priority")
	if err != nil {
		return in, err
	}
	if v, ok := priority.Get(); ok {
		p, err := domain.ParsePriority(v)
		if err != nil {
			return in, err
		}
		in.Priority = domain.Set(p)
	} else if priority.Present {
		in.Priority = domain.Clear[domain.Priority]()
	}
	due, err := rawField[string](body, "due_date")
	if err != nil {
		return in, err
	}
	if v, ok := due.Get(); ok {
		t, err := parseTimeParam("due_date", v)
		if err != nil {
			return in, err
		}
		in.DueDate = domain.Set(*t)
	} else if due.Present {
		in.DueDate = domain.Clear[time.Time]()
	}
	return in, nil
}

func rawField[T any](body map[string]json.RawMessage, key string) (domain.Field[T], error) {
	raw, ok := body[key]
	if !ok {
		return domain.Field[T]{}, nil
	}
	if isNullRaw(raw) {
		return domain.Clear[T](), nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.Field[T]{}, domain.Validation(key, fmt.Sprintf("invalid value: %v", err))
	}
	return domain.Set(v), nil
}
