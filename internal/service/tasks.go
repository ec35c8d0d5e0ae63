package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"north/internal/actionable"
	"north/internal/model"
	"north/internal/mutate"
	"north/internal/recurrence"
	"north/internal/store"
	"north/internal/tasktree"
	"north/internal/titletoken"
)

// TaskView is a task as shown in a list: with its project title, tree depth and
// actionability resolved.
type TaskView struct {
	model.Task
	ProjectTitle string `json:"projectTitle,omitempty"`
	Depth        int    `json:"depth"`
	Actionable   bool   `json:"actionable"`
}

type TaskDetail struct {
	TaskView
	// Ancestors runs from the root down to the direct parent.
	Ancestors []TaskView `json:"ancestors"`
	Children  []TaskView `json:"children"`
}

type CreateTaskInput struct {
	// Title may carry @project and #tag tokens; they are stripped from the stored title.
	Title string
	Body  string

	ParentID  *int64
	ProjectID *int64

	// Position is Append (default), InsertAbove or InsertBelow. The insert kinds place
	// the task next to AnchorID, in the anchor's scope.
	Position mutate.Kind
	AnchorID int64

	StartAt         *time.Time
	DueDate         *time.Time
	Someday         bool
	SequentialLimit int
	Tags            []string

	// Repeat is a repeat rule such as "weekly" or "FREQ=MONTHLY;BYMONTHDAY=1".
	// RepeatType is "scheduled" (default) or "after_completion".
	Repeat     string
	RepeatType string
}

// CreateTask tokenizes the title, resolves @project among active projects by
// case-insensitive title, and appends the task to its sibling set.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (TaskView, error) {
	intake := titletoken.Extract(in.Title)
	if intake.Title == "" {
		return TaskView{}, &ValidationError{Field: "title", Message: "is required"}
	}
	if in.SequentialLimit < 0 {
		return TaskView{}, &ValidationError{Field: "sequentialLimit", Message: "must not be negative"}
	}
	kind := in.Position
	switch kind {
	case "":
		kind = mutate.Append
	case mutate.Append, mutate.InsertAbove, mutate.InsertBelow:
	default:
		return TaskView{}, &ValidationError{Field: "position", Message: fmt.Sprintf("%q cannot place a new task", kind)}
	}
	var repeatRule, repeatType string
	if strings.TrimSpace(in.Repeat) != "" {
		var err error
		if repeatRule, repeatType, err = recurrenceOf(in.Repeat, in.RepeatType); err != nil {
			return TaskView{}, err
		}
	}

	now := s.now()
	var out TaskView
	err := s.st.Update(ctx, func(st *store.State) error {
		project := in.ProjectID
		if project == nil && intake.Project != "" {
			if p, ok := findProjectByTitle(st, intake.Project, false); ok {
				project = model.Ref(p.ID)
			} else {
				s.log.WithField("project", intake.Project).Warn("title names an unknown project; task goes to the inbox")
			}
		}
		if project != nil {
			if _, ok := st.Project(*project); !ok {
				return &NotFoundError{Kind: "project", ID: fmt.Sprint(*project)}
			}
		}

		p, err := s.plan(tasktree.New(st.Tasks), mutate.Request{
			Kind:      kind,
			AnchorID:  in.AnchorID,
			ParentID:  in.ParentID,
			ProjectID: project,
		})
		if err != nil {
			return err
		}
		applyPlacement(st, p, now)

		tags := append(append([]string{}, intake.Tags...), in.Tags...)
		task := model.Task{
			ID:              st.NewTaskID(),
			Title:           intake.Title,
			Body:            strings.TrimSpace(in.Body),
			ParentID:        p.ParentID,
			ProjectID:       p.ProjectID,
			SortKey:         p.SortKey,
			SequentialLimit: in.SequentialLimit,
			Someday:         in.Someday,
			StartAt:         in.StartAt,
			DueDate:         in.DueDate,
			Tags:            model.NormalizeTags(tags),
			RecurrenceType:  repeatType,
			RecurrenceRule:  repeatRule,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		st.Tasks = append(st.Tasks, task)
		out = viewOf(st, tasktree.New(st.Tasks), task.ID)
		return nil
	})
	if err != nil {
		return TaskView{}, err
	}
	s.log.WithFields(log.Fields{"task": out.ID, "sortKey": out.SortKey, "url": intake.URL}).Debug("task created")
	return out, nil
}

func viewOf(st *store.State, a *tasktree.Arena, id int64) TaskView {
	t, _ := a.Get(id)
	return TaskView{
		Task:         *t,
		ProjectTitle: st.ProjectTitle(t.ProjectID),
		Depth:        a.Depth(id),
		Actionable:   actionable.IsActionable(a, id),
	}
}

func (s *Service) Task(ctx context.Context, id int64) (TaskDetail, error) {
	st, err := s.st.Load(ctx)
	if err != nil {
		return TaskDetail{}, err
	}
	a := tasktree.New(st.Tasks)
	if _, ok := a.Get(id); !ok {
		return TaskDetail{}, &NotFoundError{Kind: "task", ID: fmt.Sprint(id)}
	}
	act := actionable.Evaluate(a)
	view := func(id int64) TaskView {
		t, _ := a.Get(id)
		return TaskView{Task: *t, ProjectTitle: st.ProjectTitle(t.ProjectID), Depth: a.Depth(id), Actionable: act[id]}
	}
	out := TaskDetail{TaskView: view(id), Ancestors: []TaskView{}, Children: []TaskView{}}
	for cur, ok := a.Parent(id); ok; cur, ok = a.Parent(cur) {
		out.Ancestors = append([]TaskView{view(cur)}, out.Ancestors...)
	}
	for _, c := range a.Children(id) {
		out.Children = append(out.Children, view(c))
	}
	return out, nil
}

// TaskPatch changes selected fields of a task. Nil fields are left alone; the Clear
// flags remove optional values.
type TaskPatch struct {
	Title *string
	Body  *string

	// ProjectID moves the task (with its subtree) to the end of that project's root
	// list. ClearProject moves it to the inbox the same way.
	ProjectID    *int64
	ClearProject bool

	StartAt      *time.Time
	ClearStartAt bool
	DueDate      *time.Time
	ClearDueDate bool

	Someday         *bool
	SequentialLimit *int

	// Tags replaces the tag set; AddTags and RemoveTags adjust it afterwards.
	Tags       *[]string
	AddTags    []string
	RemoveTags []string

	// Repeat sets the repeat rule. RepeatType alone switches the type of an existing
	// rule. ClearRepeat stops the task from recurring.
	Repeat      *string
	RepeatType  *string
	ClearRepeat bool
}

func (s *Service) UpdateTask(ctx context.Context, id int64, patch TaskPatch) (TaskView, error) {
	if patch.SequentialLimit != nil && *patch.SequentialLimit < 0 {
		return TaskView{}, &ValidationError{Field: "sequentialLimit", Message: "must not be negative"}
	}
	if patch.ProjectID != nil && patch.ClearProject {
		return TaskView{}, &ValidationError{Field: "project", Message: "cannot set and clear the project at once"}
	}
	if patch.ClearRepeat && (patch.Repeat != nil || patch.RepeatType != nil) {
		return TaskView{}, &ValidationError{Field: "repeat", Message: "cannot set and clear the repeat rule at once"}
	}

	now := s.now()
	var out TaskView
	err := s.st.Update(ctx, func(st *store.State) error {
		t, ok := st.Task(id)
		if !ok {
			return &NotFoundError{Kind: "task", ID: fmt.Sprint(id)}
		}
		project, moveProject := t.ProjectID, false
		if patch.Title != nil {
			intake := titletoken.Extract(*patch.Title)
			if intake.Title == "" {
				return &ValidationError{Field: "title", Message: "is required"}
			}
			t.Title = intake.Title
			t.Tags = model.NormalizeTags(append(t.Tags, intake.Tags...))
			if intake.Project != "" && patch.ProjectID == nil && !patch.ClearProject {
				if p, ok := findProjectByTitle(st, intake.Project, false); ok {
					project, moveProject = model.Ref(p.ID), true
				}
			}
		}
		if patch.Body != nil {
			t.Body = strings.TrimSpace(*patch.Body)
		}
		if patch.ProjectID != nil {
			if _, ok := st.Project(*patch.ProjectID); !ok {
				return &NotFoundError{Kind: "project", ID: fmt.Sprint(*patch.ProjectID)}
			}
			project, moveProject = patch.ProjectID, true
		}
		if patch.ClearProject {
			project, moveProject = nil, true
		}
		switch {
		case patch.ClearStartAt:
			t.StartAt = nil
		case patch.StartAt != nil:
			t.StartAt = patch.StartAt
		}
		switch {
		case patch.ClearDueDate:
			t.DueDate = nil
		case patch.DueDate != nil:
			t.DueDate = patch.DueDate
		}
		if patch.Someday != nil {
			t.Someday = *patch.Someday
		}
		if patch.SequentialLimit != nil {
			t.SequentialLimit = *patch.SequentialLimit
		}
		if patch.Tags != nil {
			t.Tags = model.NormalizeTags(*patch.Tags)
		}
		if len(patch.AddTags) > 0 {
			t.Tags = model.NormalizeTags(append(t.Tags, patch.AddTags...))
		}
		if len(patch.RemoveTags) > 0 {
			t.Tags = removeTags(t.Tags, patch.RemoveTags)
		}
		if err := patchRecurrence(t, patch); err != nil {
			return err
		}
		t.UpdatedAt = now

		if moveProject && !model.SameRef(project, t.ProjectID) {
			p, err := s.plan(tasktree.New(st.Tasks), mutate.Request{Kind: mutate.Append, TaskID: id, ProjectID: project})
			if err != nil {
				return err
			}
			applyPlacement(st, p, now)
		}
		out = viewOf(st, tasktree.New(st.Tasks), id)
		return nil
	})
	if err != nil {
		return TaskView{}, err
	}
	return out, nil
}

// recurrenceOf validates a repeat rule and type and returns their stored forms.
func recurrenceOf(rule, typ string) (string, string, error) {
	r, err := recurrence.Parse(rule)
	if err != nil {
		return "", "", &ValidationError{Field: "repeat", Message: err.Error(), Err: err}
	}
	rt, err := recurrence.ParseType(typ)
	if err != nil {
		return "", "", &ValidationError{Field: "repeatType", Message: err.Error(), Err: err}
	}
	return r.String(), string(rt), nil
}

func patchRecurrence(t *model.Task, patch TaskPatch) error {
	switch {
	case patch.ClearRepeat:
		t.RecurrenceType, t.RecurrenceRule = "", ""
	case patch.Repeat != nil:
		typ := t.RecurrenceType
		if patch.RepeatType != nil {
			typ = *patch.RepeatType
		}
		rule, rt, err := recurrenceOf(*patch.Repeat, typ)
		if err != nil {
			return err
		}
		t.RecurrenceRule, t.RecurrenceType = rule, rt
	case patch.RepeatType != nil:
		if t.RecurrenceRule == "" {
			return &ValidationError{Field: "repeatType", Message: "task has no repeat rule"}
		}
		rt, err := recurrence.ParseType(*patch.RepeatType)
		if err != nil {
			return &ValidationError{Field: "repeatType", Message: err.Error(), Err: err}
		}
		t.RecurrenceType = string(rt)
	}
	return nil
}

func removeTags(tags, remove []string) []string {
	drop := map[string]bool{}
	for _, r := range remove {
		drop[model.NormalizeTag(r)] = true
	}
	var out []string
	for _, t := range tags {
		if !drop[t] {
			out = append(out, t)
		}
	}
	return out
}

// CompleteTask completes the task and every open descendant. Completing a completed
// task is a no-op. Cascaded descendants stop recurring; a recurring task itself
// spawns its next instance, whose id is returned in CompleteResult.Next.
func (s *Service) CompleteTask(ctx context.Context, id int64) (CompleteResult, error) {
	now := s.now()
	var out CompleteResult
	var cascaded int
	err := s.st.Update(ctx, func(st *store.State) error {
		a := tasktree.New(st.Tasks)
		t, ok := a.Get(id)
		if !ok {
			return &NotFoundError{Kind: "task", ID: fmt.Sprint(id)}
		}
		if t.Completed() {
			out.TaskView = viewOf(st, a, id)
			return nil
		}
		done := now
		for _, sub := range a.Subtree(id) {
			d, _ := a.Get(sub)
			if d.Completed() {
				continue
			}
			d.CompletedAt = &done
			d.UpdatedAt = now
			if sub != id {
				d.RecurrenceType, d.RecurrenceRule = "", ""
				cascaded++
			}
		}
		completed := *t
		if completed.Recurring() {
			next, err := s.spawnNext(st, completed, now)
			if err != nil {
				return err
			}
			nv := viewOf(st, tasktree.New(st.Tasks), next)
			out.Next = &nv
		}
		out.TaskView = viewOf(st, tasktree.New(st.Tasks), id)
		return nil
	})
	if err != nil {
		return CompleteResult{}, err
	}
	fields := log.Fields{"task": id, "descendants": cascaded}
	if out.Next != nil {
		fields["next"] = out.Next.ID
	}
	s.log.WithFields(fields).Debug("task completed")
	return out, nil
}

type CompleteResult struct {
	TaskView
	// Next is the spawned instance of a recurring task.
	Next *TaskView `json:"next,omitempty"`
}

// spawnNext appends the next instance of a completed recurring task to the end of
// its sibling set and clones the task's direct children under it. The start moves
// to the next occurrence; a due date keeps its distance from the start.
func (s *Service) spawnNext(st *store.State, done model.Task, now time.Time) (int64, error) {
	rule, err := recurrence.Parse(done.RecurrenceRule)
	if err != nil {
		return 0, &ValidationError{Field: "repeat", Message: fmt.Sprintf("task %d: %v", done.ID, err), Err: err}
	}
	typ, err := recurrence.ParseType(done.RecurrenceType)
	if err != nil {
		return 0, &ValidationError{Field: "repeatType", Message: fmt.Sprintf("task %d: %v", done.ID, err), Err: err}
	}
	start, err := recurrence.Next(typ, rule, done.StartAt, done.DueDate, now)
	if err != nil {
		return 0, &ValidationError{Field: "repeat", Message: fmt.Sprintf("task %d: %v", done.ID, err), Err: err}
	}
	var due *time.Time
	switch {
	case done.StartAt != nil && done.DueDate != nil:
		d := start.Add(done.DueDate.Sub(*done.StartAt))
		due = &d
	case done.DueDate != nil:
		d := *done.DueDate
		due = &d
	}

	next, err := s.appendTask(st, model.Task{
		Title:           done.Title,
		Body:            done.Body,
		ParentID:        done.ParentID,
		ProjectID:       done.ProjectID,
		SequentialLimit: done.SequentialLimit,
		StartAt:         &start,
		DueDate:         due,
		Tags:            append([]string(nil), done.Tags...),
		RecurrenceType:  done.RecurrenceType,
		RecurrenceRule:  done.RecurrenceRule,
	}, now)
	if err != nil {
		return 0, err
	}

	a := tasktree.New(st.Tasks)
	var children []model.Task
	for _, c := range a.Children(done.ID) {
		ct, _ := a.Get(c)
		children = append(children, *ct)
	}
	for _, c := range children {
		if _, err := s.appendTask(st, model.Task{
			Title:           c.Title,
			Body:            c.Body,
			ParentID:        model.Ref(next),
			ProjectID:       done.ProjectID,
			SequentialLimit: c.SequentialLimit,
			Tags:            append([]string(nil), c.Tags...),
		}, now); err != nil {
			return 0, err
		}
	}
	s.log.WithFields(log.Fields{"task": done.ID, "next": next, "start": start, "subtasks": len(children)}).Info("recurring task spawned")
	return next, nil
}

// appendTask places t at the end of the sibling set named by its ParentID and
// ProjectID and stores it under a fresh id.
func (s *Service) appendTask(st *store.State, t model.Task, now time.Time) (int64, error) {
	p, err := s.plan(tasktree.New(st.Tasks), mutate.Request{Kind: mutate.Append, ParentID: t.ParentID, ProjectID: t.ProjectID})
	if err != nil {
		return 0, err
	}
	applyPlacement(st, p, now)
	t.ID = st.NewTaskID()
	t.ParentID, t.ProjectID, t.SortKey = p.ParentID, p.ProjectID, p.SortKey
	t.CreatedAt, t.UpdatedAt = now, now
	st.Tasks = append(st.Tasks, t)
	return t.ID, nil
}

// ReopenTask clears the completion and moves the task to the end of its sibling set.
func (s *Service) ReopenTask(ctx context.Context, id int64) (TaskView, error) {
	now := s.now()
	var out TaskView
	err := s.st.Update(ctx, func(st *store.State) error {
		a := tasktree.New(st.Tasks)
		t, ok := a.Get(id)
		if !ok {
			return &NotFoundError{Kind: "task", ID: fmt.Sprint(id)}
		}
		if t.Completed() {
			t.CompletedAt = nil
			t.UpdatedAt = now
			req := mutate.Request{Kind: mutate.Append, TaskID: id, ProjectID: t.ProjectID}
			if parent, ok := a.Parent(id); ok {
				req.ParentID = model.Ref(parent)
			}
			p, err := s.plan(a, req)
			if err != nil {
				return err
			}
			applyPlacement(st, p, now)
		}
		out = viewOf(st, tasktree.New(st.Tasks), id)
		return nil
	})
	if err != nil {
		return TaskView{}, err
	}
	return out, nil
}

func (s *Service) ReviewTask(ctx context.Context, id int64) (TaskView, error) {
	now := s.now()
	var out TaskView
	err := s.st.Update(ctx, func(st *store.State) error {
		t, ok := st.Task(id)
		if !ok {
			return &NotFoundError{Kind: "task", ID: fmt.Sprint(id)}
		}
		reviewed := now
		t.ReviewedAt = &reviewed
		t.UpdatedAt = now
		out = viewOf(st, tasktree.New(st.Tasks), id)
		return nil
	})
	if err != nil {
		return TaskView{}, err
	}
	return out, nil
}

// DeleteTask removes the task and its whole subtree and returns the removed ids.
func (s *Service) DeleteTask(ctx context.Context, id int64) ([]int64, error) {
	var removed []int64
	err := s.st.Update(ctx, func(st *store.State) error {
		a := tasktree.New(st.Tasks)
		removed = a.Subtree(id)
		if len(removed) == 0 {
			return &NotFoundError{Kind: "task", ID: fmt.Sprint(id)}
		}
		drop := make(map[int64]bool, len(removed))
		for _, r := range removed {
			drop[r] = true
		}
		kept := st.Tasks[:0]
		for _, t := range st.Tasks {
			if !drop[t.ID] {
				kept = append(kept, t)
			}
		}
		st.Tasks = kept
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(log.Fields{"task": id, "removed": len(removed)}).Info("task deleted")
	return removed, nil
}

// Move applies an ordering request and returns the resulting placement.
func (s *Service) Move(ctx context.Context, req mutate.Request) (mutate.Placement, error) {
	if req.TaskID == 0 {
		return mutate.Placement{}, &ValidationError{Field: "task", Message: "is required"}
	}
	now := s.now()
	var out mutate.Placement
	err := s.st.Update(ctx, func(st *store.State) error {
		p, err := s.plan(tasktree.New(st.Tasks), req)
		if err != nil {
			return err
		}
		applyPlacement(st, p, now)
		out = p
		return nil
	})
	if err != nil {
		return mutate.Placement{}, err
	}
	s.log.WithFields(log.Fields{
		"kind":       req.Kind,
		"task":       req.TaskID,
		"changed":    out.Changed,
		"rebalanced": len(out.Rebalanced),
	}).Debug("task moved")
	return out, nil
}
