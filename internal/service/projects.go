package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"north/internal/model"
	"north/internal/mutate"
	"north/internal/store"
	"north/internal/tasktree"
)

type ProjectView struct {
	model.Project
	OpenTasks int `json:"openTasks"`
}

func (s *Service) CreateProject(ctx context.Context, title, color string) (model.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Project{}, &ValidationError{Field: "title", Message: "is required"}
	}
	now := s.now()
	var out model.Project
	err := s.st.Update(ctx, func(st *store.State) error {
		if _, ok := findProjectByTitle(st, title, true); ok {
			return &ValidationError{Field: "title", Message: fmt.Sprintf("a project named %q already exists", title)}
		}
		out = model.Project{
			ID:        st.NewProjectID(),
			Title:     title,
			Status:    model.ProjectActive,
			Color:     strings.TrimSpace(color),
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.Projects = append(st.Projects, out)
		return nil
	})
	if err != nil {
		return model.Project{}, err
	}
	s.log.WithFields(log.Fields{"project": out.ID, "title": out.Title}).Info("project created")
	return out, nil
}

// Projects lists projects by title, with their open task counts.
func (s *Service) Projects(ctx context.Context, includeArchived bool) ([]ProjectView, error) {
	st, err := s.st.Load(ctx)
	if err != nil {
		return nil, err
	}
	open := map[int64]int{}
	for _, t := range st.Tasks {
		if t.ProjectID != nil && !t.Completed() {
			open[*t.ProjectID]++
		}
	}
	out := []ProjectView{}
	for _, p := range st.Projects {
		if p.Archived() && !includeArchived {
			continue
		}
		out = append(out, ProjectView{Project: p, OpenTasks: open[p.ID]})
	}
	sortProjects(out)
	return out, nil
}

// ResolveProject finds a project by numeric id or case-insensitive title.
func (s *Service) ResolveProject(ctx context.Context, ref string) (model.Project, error) {
	st, err := s.st.Load(ctx)
	if err != nil {
		return model.Project{}, err
	}
	p, ok := resolveProject(st, ref)
	if !ok {
		return model.Project{}, &NotFoundError{Kind: "project", ID: ref}
	}
	return *p, nil
}

func (s *Service) UpdateProject(ctx context.Context, id int64, title, color *string) (model.Project, error) {
	now := s.now()
	var out model.Project
	err := s.st.Update(ctx, func(st *store.State) error {
		p, ok := st.Project(id)
		if !ok {
			return &NotFoundError{Kind: "project", ID: fmt.Sprint(id)}
		}
		if title != nil {
			t := strings.TrimSpace(*title)
			if t == "" {
				return &ValidationError{Field: "title", Message: "is required"}
			}
			if other, ok := findProjectByTitle(st, t, true); ok && other.ID != id {
				return &ValidationError{Field: "title", Message: fmt.Sprintf("a project named %q already exists", t)}
			}
			p.Title = t
		}
		if color != nil {
			p.Color = strings.TrimSpace(*color)
		}
		p.UpdatedAt = now
		out = *p
		return nil
	})
	return out, err
}

func (s *Service) ArchiveProject(ctx context.Context, id int64) (model.Project, error) {
	return s.setProjectStatus(ctx, id, model.ProjectArchived)
}

func (s *Service) UnarchiveProject(ctx context.Context, id int64) (model.Project, error) {
	return s.setProjectStatus(ctx, id, model.ProjectActive)
}

func (s *Service) setProjectStatus(ctx context.Context, id int64, status model.ProjectStatus) (model.Project, error) {
	now := s.now()
	var out model.Project
	err := s.st.Update(ctx, func(st *store.State) error {
		p, ok := st.Project(id)
		if !ok {
			return &NotFoundError{Kind: "project", ID: fmt.Sprint(id)}
		}
		if p.Status != status {
			p.Status = status
			p.UpdatedAt = now
		}
		out = *p
		return nil
	})
	if err != nil {
		return model.Project{}, err
	}
	s.log.WithFields(log.Fields{"project": id, "status": status}).Info("project status changed")
	return out, nil
}

// DeleteProject removes a project. Its root tasks are appended to the inbox, in their
// current order, and their subtrees follow.
func (s *Service) DeleteProject(ctx context.Context, id int64) (int, error) {
	now := s.now()
	moved := 0
	err := s.st.Update(ctx, func(st *store.State) error {
		if _, ok := st.Project(id); !ok {
			return &NotFoundError{Kind: "project", ID: fmt.Sprint(id)}
		}
		roots := tasktree.New(st.Tasks).Scope(nil, model.Ref(id))
		for _, tid := range roots {
			p, err := s.plan(tasktree.New(st.Tasks), mutate.Request{Kind: mutate.Append, TaskID: tid})
			if err != nil {
				return err
			}
			applyPlacement(st, p, now)
			moved++
		}
		// Children whose parent sits in another project are not reachable from the
		// project's roots; detach them too.
		for i := range st.Tasks {
			if model.SameRef(st.Tasks[i].ProjectID, model.Ref(id)) {
				st.Tasks[i].ProjectID = nil
				st.Tasks[i].UpdatedAt = now
			}
		}
		kept := st.Projects[:0]
		for _, p := range st.Projects {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		st.Projects = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.WithFields(log.Fields{"project": id, "movedTasks": moved}).Info("project deleted")
	return moved, nil
}

func sortProjects(ps []ProjectView) {
	sort.SliceStable(ps, func(i, j int) bool {
		ti, tj := strings.ToLower(ps[i].Title), strings.ToLower(ps[j].Title)
		if ti != tj {
			return ti < tj
		}
		return ps[i].ID < ps[j].ID
	})
}

func findProjectByTitle(st *store.State, title string, includeArchived bool) (*model.Project, bool) {
	for i := range st.Projects {
		p := &st.Projects[i]
		if p.Archived() && !includeArchived {
			continue
		}
		if strings.EqualFold(p.Title, title) {
			return p, true
		}
	}
	return nil, false
}

func resolveProject(st *store.State, ref string) (*model.Project, bool) {
	ref = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ref), "@"))
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if p, ok := st.Project(id); ok {
			return p, true
		}
	}
	return findProjectByTitle(st, ref, true)
}
