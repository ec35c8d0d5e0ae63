package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"north/internal/model"
	"north/internal/mutate"
	"north/internal/service"
	"north/internal/titletoken"
	"north/internal/view"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "t"},
		Short:   "Task commands",
	}

	cmd.AddCommand(newTasksAddCmd(app))
	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksShowCmd(app))
	cmd.AddCommand(newTasksEditCmd(app))
	cmd.AddCommand(newTasksDoneCmd(app))
	cmd.AddCommand(newTasksReopenCmd(app))
	cmd.AddCommand(newTasksReviewCmd(app))
	cmd.AddCommand(newTasksReviewAllCmd(app))
	cmd.AddCommand(newTasksRemoveCmd(app))
	cmd.AddCommand(newTasksMoveCmd(app))
	cmd.AddCommand(newTasksIndentCmd(app, mutate.Indent))
	cmd.AddCommand(newTasksIndentCmd(app, mutate.Unindent))
	cmd.AddCommand(newTasksSetParentCmd(app))
	cmd.AddCommand(newTasksTokensCmd(app))

	return cmd
}

func projectRef(ctx context.Context, svc *service.Service, ref string) (*int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	p, err := svc.ResolveProject(ctx, ref)
	if err != nil {
		return nil, err
	}
	return model.Ref(p.ID), nil
}

func newTasksAddCmd(app *App) *cobra.Command {
	var (
		body       string
		parent     string
		project    string
		above      string
		below      string
		start      string
		due        string
		someday    bool
		sequential int
		tags       []string
		repeat     string
		repeatType string
	)

	cmd := &cobra.Command{
		Use:   "add <title...>",
		Short: "Create a task (@project and #tag tokens in the title are applied)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				in := service.CreateTaskInput{
					Title:           strings.Join(args, " "),
					Body:            body,
					Someday:         someday,
					SequentialLimit: sequential,
					Tags:            tags,
					Repeat:          repeat,
					RepeatType:      repeatType,
				}
				var err error
				if in.StartAt, err = optionalDate(start, cmd.Flags().Changed("start")); err != nil {
					return err
				}
				if in.DueDate, err = optionalDate(due, cmd.Flags().Changed("due")); err != nil {
					return err
				}
				if in.ProjectID, err = projectRef(ctx, svc, project); err != nil {
					return err
				}
				if parent != "" {
					id, err := parseID("parent", parent)
					if err != nil {
						return err
					}
					in.ParentID = model.Ref(id)
				}
				switch {
				case above != "" && below != "":
					return errors.New("provide at most one of --above or --below")
				case above != "":
					in.Position = mutate.InsertAbove
					if in.AnchorID, err = parseID("above", above); err != nil {
						return err
					}
				case below != "":
					in.Position = mutate.InsertBelow
					if in.AnchorID, err = parseID("below", below); err != nil {
						return err
					}
				}

				t, err := svc.CreateTask(ctx, in)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, taskList{t})
			})
		},
	}

	cmd.Flags().StringVar(&body, "body", "", "Notes (markdown)")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent task id")
	cmd.Flags().StringVar(&project, "project", "", "Project id or title (overrides @project in the title)")
	cmd.Flags().StringVar(&above, "above", "", "Insert above this task (in its list)")
	cmd.Flags().StringVar(&below, "below", "", "Insert below this task (in its list)")
	cmd.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD[ HH:MM])")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD[ HH:MM])")
	cmd.Flags().BoolVar(&someday, "someday", false, "Defer to someday")
	cmd.Flags().IntVar(&sequential, "sequential", 0, "Only the first N open children are actionable (0 = all)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().StringVar(&repeat, "repeat", "", "Repeat rule: daily, weekly, monthly, yearly or an RRULE like FREQ=WEEKLY;BYDAY=MO,TH")
	cmd.Flags().StringVar(&repeatType, "repeat-type", "", "scheduled (default) or after_completion")
	return cmd
}

func newTasksListCmd(app *App) *cobra.Command {
	var (
		page       string
		project    string
		actionable bool
		completed  bool
		reviewed   bool
	)

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tasks on a page (all, inbox, today, someday, project, review, archive)",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := view.ParsePage(page)
			if err != nil {
				return writeErr(cmd, err)
			}
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				req := service.ListRequest{
					Page:                 p,
					HideNonActionable:    actionable,
					ShowCompleted:        completed,
					ShowRecentlyReviewed: reviewed,
				}
				if req.ProjectID, err = projectRef(ctx, svc, project); err != nil {
					return err
				}
				if req.ProjectID != nil && page == "" {
					req.Page = view.PageProject
				}
				out, err := svc.List(ctx, req)
				if err != nil {
					return err
				}
				return writeOutMeta(cmd, app, taskList(out), map[string]any{"page": req.Page, "count": len(out)})
			})
		},
	}

	cmd.Flags().StringVar(&page, "page", "", "Page (default all; project when --project is set)")
	cmd.Flags().StringVar(&project, "project", "", "Project id or title")
	cmd.Flags().BoolVar(&actionable, "actionable", false, "Hide tasks that are not actionable")
	cmd.Flags().BoolVar(&completed, "completed", false, "Include completed tasks")
	cmd.Flags().BoolVar(&reviewed, "reviewed", false, "Review page: include recently reviewed tasks")
	return cmd
}

func newTasksShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its ancestors and children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				id, err := parseID("task", args[0])
				if err != nil {
					return err
				}
				d, err := svc.Task(ctx, id)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, taskDetail(d))
			})
		},
	}
}

func newTasksEditCmd(app *App) *cobra.Command {
	var (
		title      string
		body       string
		project    string
		noProject  bool
		start      string
		noStart    bool
		due        string
		noDue      bool
		someday    bool
		sequential int
		tags       []string
		addTags    []string
		rmTags     []string
		repeat     string
		repeatType string
		noRepeat   bool
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				id, err := parseID("task", args[0])
				if err != nil {
					return err
				}
				f := cmd.Flags()
				patch := service.TaskPatch{
					ClearProject: noProject,
					ClearStartAt: noStart,
					ClearDueDate: noDue,
					AddTags:      addTags,
					RemoveTags:   rmTags,
					ClearRepeat:  noRepeat,
				}
				if f.Changed("title") {
					patch.Title = &title
				}
				if f.Changed("body") {
					patch.Body = &body
				}
				if f.Changed("someday") {
					patch.Someday = &someday
				}
				if f.Changed("sequential") {
					patch.SequentialLimit = &sequential
				}
				if f.Changed("tags") {
					patch.Tags = &tags
				}
				if f.Changed("repeat") {
					patch.Repeat = &repeat
				}
				if f.Changed("repeat-type") {
					patch.RepeatType = &repeatType
				}
				if patch.StartAt, err = optionalDate(start, f.Changed("start")); err != nil {
					return err
				}
				if patch.DueDate, err = optionalDate(due, f.Changed("due")); err != nil {
					return err
				}
				if f.Changed("project") {
					if patch.ProjectID, err = projectRef(ctx, svc, project); err != nil {
						return err
					}
				}

				t, err := svc.UpdateTask(ctx, id, patch)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, taskList{t})
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&body, "body", "", "New notes (markdown)")
	cmd.Flags().StringVar(&project, "project", "", "Move to project (id or title)")
	cmd.Flags().BoolVar(&noProject, "no-project", false, "Move to the inbox")
	cmd.Flags().StringVar(&start, "start", "", "Start date")
	cmd.Flags().BoolVar(&noStart, "no-start", false, "Clear the start date")
	cmd.Flags().StringVar(&due, "due", "", "Due date")
	cmd.Flags().BoolVar(&noDue, "no-due", false, "Clear the due date")
	cmd.Flags().BoolVar(&someday, "someday", false, "Defer to someday (--someday=false to undo)")
	cmd.Flags().IntVar(&sequential, "sequential", 0, "Only the first N open children are actionable (0 = all)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Replace all tags (comma separated)")
	cmd.Flags().StringArrayVar(&addTags, "add-tag", nil, "Add a tag (repeatable)")
	cmd.Flags().StringArrayVar(&rmTags, "rm-tag", nil, "Remove a tag (repeatable)")
	cmd.Flags().StringVar(&repeat, "repeat", "", "Repeat rule (daily, weekly, ... or an RRULE)")
	cmd.Flags().StringVar(&repeatType, "repeat-type", "", "scheduled or after_completion")
	cmd.Flags().BoolVar(&noRepeat, "no-repeat", false, "Stop repeating")
	return cmd
}

// newTasksEachCmd builds a command applying fn to every id argument. fn returns the
// tasks to print for that id.
func newTasksEachCmd(app *App, use, short string, fn func(context.Context, *service.Service, int64) ([]service.TaskView, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id...>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				out := make(taskList, 0, len(args))
				for _, a := range args {
					id, err := parseID("task", a)
					if err != nil {
						return err
					}
					ts, err := fn(ctx, svc, id)
					if err != nil {
						return err
					}
					out = append(out, ts...)
				}
				return writeOut(cmd, app, out)
			})
		},
	}
}

func newTasksDoneCmd(app *App) *cobra.Command {
	return newTasksEachCmd(app, "done", "Complete tasks and their open subtasks; recurring tasks spawn their next instance",
		func(ctx context.Context, svc *service.Service, id int64) ([]service.TaskView, error) {
			r, err := svc.CompleteTask(ctx, id)
			if err != nil {
				return nil, err
			}
			if r.Next != nil {
				return []service.TaskView{r.TaskView, *r.Next}, nil
			}
			return []service.TaskView{r.TaskView}, nil
		})
}

func newTasksReopenCmd(app *App) *cobra.Command {
	return newTasksEachCmd(app, "reopen", "Reopen completed tasks",
		func(ctx context.Context, svc *service.Service, id int64) ([]service.TaskView, error) {
			t, err := svc.ReopenTask(ctx, id)
			return []service.TaskView{t}, err
		})
}

func newTasksReviewCmd(app *App) *cobra.Command {
	return newTasksEachCmd(app, "review", "Mark tasks as reviewed now",
		func(ctx context.Context, svc *service.Service, id int64) ([]service.TaskView, error) {
			t, err := svc.ReviewTask(ctx, id)
			return []service.TaskView{t}, err
		})
}

func newTasksReviewAllCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "review-all",
		Short: "Mark every task that is due for review as reviewed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				n, err := svc.ReviewAll(ctx)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"reviewed": n})
			})
		},
	}
}

func newTasksRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task and its subtasks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
				id, err := parseID("task", args[0])
				if err != nil {
					return err
				}
				removed, err := svc.DeleteTask(ctx, id)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"deleted": removed})
			})
		},
	}
}

func newTasksMoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> up|down",
		Short: "Move a task one place among its siblings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind mutate.Kind
			switch strings.ToLower(args[1]) {
			case "up":
				kind = mutate.MoveUp
			case "down":
				kind = mutate.MoveDown
			default:
				return writeErr(cmd, errors.New("direction must be up or down"))
			}
			return runMove(cmd, app, args[0], mutate.Request{Kind: kind})
		},
	}
}

func newTasksIndentCmd(app *App, kind mutate.Kind) *cobra.Command {
	short := "Make a task the last child of the sibling above it"
	if kind == mutate.Unindent {
		short = "Move a task out of its parent, right below it"
	}
	return &cobra.Command{
		Use:   string(kind) + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(cmd, app, args[0], mutate.Request{Kind: kind})
		},
	}
}

func newTasksSetParentCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set-parent <id> [<parent-id>]",
		Short: "Move a task under a new parent (top level when omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := mutate.Request{Kind: mutate.Reparent}
			if len(args) == 2 {
				pid, err := parseID("parent", args[1])
				if err != nil {
					return writeErr(cmd, err)
				}
				req.ParentID = model.Ref(pid)
			}
			return runMove(cmd, app, args[0], req)
		},
	}
}

func runMove(cmd *cobra.Command, app *App, idArg string, req mutate.Request) error {
	id, err := parseID("task", idArg)
	if err != nil {
		return writeErr(cmd, err)
	}
	req.TaskID = id
	return withService(cmd, app, func(ctx context.Context, svc *service.Service) error {
		p, err := svc.Move(ctx, req)
		if err != nil {
			return err
		}
		return writeOut(cmd, app, p)
	})
}

func newTasksTokensCmd(app *App) *cobra.Command {
	var segments bool
	cmd := &cobra.Command{
		Use:   "tokens <title...>",
		Short: "Show how a title is tokenized (no changes are made)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			if segments {
				return writeOut(cmd, app, segmentList(titletoken.Collect(title)))
			}
			return writeOut(cmd, app, titletoken.Extract(title))
		},
	}
	cmd.Flags().BoolVar(&segments, "segments", false, "Print every segment instead of the extracted intake")
	return cmd
}
