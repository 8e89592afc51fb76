package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"worklist/internal/app"
	"worklist/internal/domain"
	"worklist/internal/engine"
)

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks are scoped to your tenant and location. Creators, assignees and managers may edit a task; only the creator or a manage-all user may archive it.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskStatusCmd())
	task.AddCommand(taskCompleteCmd())
	task.AddCommand(taskAssignCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskHistoryCmd())
	task.AddCommand(taskDupesCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var in engine.CreateInput
	var typ, priority, target, due string
	var quantity int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				var err error
				if in.Type, err = domain.ParseTaskType(strings.ToUpper(typ)); err != nil {
					return err
				}
				if priority != "" {
					if in.Priority, err = domain.ParsePriority(strings.ToUpper(priority)); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("quantity") {
					in.Quantity = &quantity
				}
				if cmd.Flags().Changed("target") {
					in.TargetLocation = &target
				}
				if due != "" {
					if in.DueDate, err = parseDue(due, rt.Engine.Location); err != nil {
						return err
					}
				}
				t, err := rt.Engine.Create(ctx, in, permissionContext())
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "TODO", "task type (SHOPPING, TODO, NOTE)")
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (LOW, MEDIUM, HIGH, URGENT)")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "quantity (shopping only)")
	cmd.Flags().StringVar(&target, "target", "", "where to buy or deliver (shopping only)")
	cmd.Flags().StringArrayVar(&in.AssigneeIDs, "assignee", nil, "assignee user id (repeatable)")
	cmd.Flags().BoolVar(&in.IsPersonal, "personal", false, "visible to you only")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339 or YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f engine.Filter
	var typ, status, priority, from, to string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				f.Type = domain.TaskType(strings.ToUpper(typ))
				f.Status = domain.Status(strings.ToUpper(status))
				f.Priority = domain.Priority(strings.ToUpper(priority))
				var err error
				if from != "" {
					if f.DueDateFrom, err = parseDue(from, rt.Engine.Location); err != nil {
						return err
					}
				}
				if to != "" {
					if f.DueDateTo, err = parseDue(to, rt.Engine.Location); err != nil {
						return err
					}
				}
				page, err := rt.Engine.FindMany(ctx, f, permissionContext())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(page)
				}
				renderTasks(page.Tasks)
				more := ""
				if page.HasMore {
					more = fmt.Sprintf(", next: --page %d", page.Page+1)
				}
				fmt.Printf("page %d, %d of %d%s\n", page.Page, len(page.Tasks), page.Total, more)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "type filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&f.AssigneeID, "assignee", "", "assignee filter")
	cmd.Flags().StringVar(&f.CreatedBy, "created-by", "", "creator filter")
	cmd.Flags().StringVar(&from, "due-from", "", "due on or after")
	cmd.Flags().StringVar(&to, "due-to", "", "due on or before")
	cmd.Flags().StringVar(&f.Search, "search", "", "case-insensitive title/description search")
	cmd.Flags().BoolVar(&f.IncludePersonal, "include-personal", false, "include your personal tasks")
	cmd.Flags().IntVar(&f.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&f.PageSize, "page-size", 0, "page size (config default when 0)")
	return cmd
}

func taskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				t, err := rt.Engine.FindByID(ctx, args[0], permissionContext())
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var title, description, priority, target, due string
	var quantity int
	var clearFields []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields",
		Long:  "Only flags you pass are changed. --clear resets a field: description, priority, quantity, target or due.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				var in engine.UpdateInput
				flags := cmd.Flags()
				if flags.Changed("title") {
					in.Title = domain.Set(title)
				}
				if flags.Changed("description") {
					in.Description = domain.Set(description)
				}
				if flags.Changed("priority") {
					p, err := domain.ParsePriority(strings.ToUpper(priority))
					if err != nil {
						return err
					}
					in.Priority = domain.Set(p)
				}
				if flags.Changed("quantity") {
					in.Quantity = domain.Set(quantity)
				}
				if flags.Changed("target") {
					in.TargetLocation = domain.Set(target)
				}
				if flags.Changed("due") {
					d, err := parseDue(due, rt.Engine.Location)
					if err != nil {
						return err
					}
					in.DueDate = domain.Set(*d)
				}
				for _, field := range clearFields {
					switch field {
					case "title":
						in.Title = domain.Clear[string]()
					case "description":
						in.Description = domain.Clear[string]()
					case "priority":
						in.Priority = domain.Clear[domain.Priority]()
					case "quantity":
						in.Quantity = domain.Clear[int]()
					case "target":
						in.TargetLocation = domain.Clear[string]()
					case "due":
						in.DueDate = domain.Clear[time.Time]()
					default:
						return fmt.Errorf("cannot clear %q", field)
					}
				}
				t, err := rt.Engine.Update(ctx, args[0], in, permissionContext())
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "quantity (shopping only)")
	cmd.Flags().StringVar(&target, "target", "", "target location (shopping only)")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&clearFields, "clear", nil, "fields to clear")
	return cmd
}

func taskStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <OPEN|IN_PROGRESS|DONE|ARCHIVED>",
		Short: "Move a task to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				in := engine.StatusInput{TaskID: args[0], Status: domain.Status(strings.ToUpper(args[1]))}
				t, err := rt.Engine.ChangeStatus(ctx, in, permissionContext())
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
}

func taskCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a task done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				t, err := rt.Engine.Complete(ctx, args[0], permissionContext())
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
}

func taskAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <id> [user...]",
		Short: "Replace the assignees of a task (no users clears them)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				res, err := rt.Engine.Assign(ctx, engine.AssignInput{TaskID: args[0], AssigneeIDs: args[1:]}, permissionContext())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				renderTasks([]domain.Task{res.Task})
				fmt.Printf("added: %s\nremoved: %s\n", strings.Join(res.Added, ", "), strings.Join(res.Removed, ", "))
				return nil
			})
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Archive a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				t, err := rt.Engine.Delete(ctx, args[0], permissionContext())
				if err != nil {
					return err
				}
				return printTask(t)
			})
		},
	}
}

func taskHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show task history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				entries, err := rt.Engine.GetHistory(ctx, args[0], permissionContext())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Action", "By", "From", "To"})
				for _, h := range entries {
					tw.AppendRow(table.Row{h.PerformedAt.In(rt.Engine.Location).Format(time.RFC3339), h.Action, h.PerformedBy, abbreviate(h.PreviousValue), abbreviate(h.NewValue)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func taskDupesCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "dupes <title>",
		Short: "Check for similar active tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				t, err := domain.ParseTaskType(strings.ToUpper(typ))
				if err != nil {
					return err
				}
				res, err := rt.Engine.CheckDuplicates(ctx, args[0], t, permissionContext())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if !res.IsDuplicate {
					fmt.Println("no similar tasks")
					return nil
				}
				fmt.Println(res.Message)
				renderTasks(res.SimilarTasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "TODO", "task type")
	return cmd
}

func printTask(t domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(t)
	}
	renderTasks([]domain.Task{t})
	return nil
}

func renderTasks(tasks []domain.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Type", "Status", "Priority", "Title", "Assignees", "Due"})
	for _, t := range tasks {
		title := t.Title
		if t.IsPersonal {
			title += " (personal)"
		}
		if t.Quantity != nil && *t.Quantity > 1 {
			title = fmt.Sprintf("%s x%d", title, *t.Quantity)
		}
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02 15:04")
		}
		tw.AppendRow(table.Row{t.ID, t.Type, t.Status, t.Priority, title, strings.Join(t.AssigneeIDs, ","), due})
	}
	tw.Render()
}

// parseDue accepts RFC3339 or a bare date, read in loc.
func parseDue(raw string, loc *time.Location) (*time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return nil, domain.Validation("due", fmt.Sprintf("cannot parse %q as RFC3339 or YYYY-MM-DD", raw))
	}
	return &t, nil
}

func abbreviate(s string) string {
	const limit = 60
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
