package service

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"north/internal/actionable"
	"north/internal/filter"
	"north/internal/store"
	"north/internal/tasktree"
	"north/internal/view"
)

type ListRequest struct {
	Page      view.Page
	ProjectID *int64

	HideNonActionable    bool
	ShowCompleted        bool
	ShowRecentlyReviewed bool
}

// List renders a page.
func (s *Service) List(ctx context.Context, req ListRequest) ([]TaskView, error) {
	if req.Page == view.PageProject && req.ProjectID == nil {
		return nil, &ValidationError{Field: "project", Message: "the project page needs a project"}
	}
	st, err := s.st.Load(ctx)
	if err != nil {
		return nil, err
	}
	if req.ProjectID != nil {
		if _, ok := st.Project(*req.ProjectID); !ok {
			return nil, &NotFoundError{Kind: "project", ID: fmt.Sprint(*req.ProjectID)}
		}
	}
	ids := view.Render(snapshotOf(st), view.Request{
		Page:                 req.Page,
		ProjectID:            req.ProjectID,
		HideNonActionable:    req.HideNonActionable,
		ShowCompleted:        req.ShowCompleted,
		ShowRecentlyReviewed: req.ShowRecentlyReviewed,
		Now:                  s.now(),
		ReviewInterval:       s.settings(st).ReviewIntervalDays,
	})
	return views(st, ids), nil
}

// RunFilter parses text and returns the matching root tasks. Parse failures are
// returned as *filter.ParseError.
func (s *Service) RunFilter(ctx context.Context, text string) ([]TaskView, error) {
	q, err := filter.Parse(text)
	if err != nil {
		return nil, err
	}
	st, err := s.st.Load(ctx)
	if err != nil {
		return nil, err
	}
	ids := view.Filter(snapshotOf(st), q)
	s.log.WithFields(log.Fields{"query": q.String(), "matches": len(ids)}).Debug("filter executed")
	return views(st, ids), nil
}

// CheckFilter validates text and returns its canonical form.
func (s *Service) CheckFilter(text string) (string, error) {
	q, err := filter.Parse(text)
	if err != nil {
		return "", err
	}
	return q.String(), nil
}

// SuggestFilter completes the filter text at cursor (a rune offset) using the active
// project titles and the tags in use.
func (s *Service) SuggestFilter(ctx context.Context, text string, cursor int) ([]filter.Suggestion, error) {
	vocab, err := s.Vocabulary(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Suggest(text, cursor, vocab), nil
}

func (s *Service) Vocabulary(ctx context.Context) (filter.Vocabulary, error) {
	st, err := s.st.Load(ctx)
	if err != nil {
		return filter.Vocabulary{}, err
	}
	var vocab filter.Vocabulary
	for _, p := range st.Projects {
		if !p.Archived() {
			vocab.Projects = append(vocab.Projects, p.Title)
		}
	}
	sort.Strings(vocab.Projects)
	for _, tc := range tagCounts(st) {
		vocab.Tags = append(vocab.Tags, tc.Name)
	}
	return vocab, nil
}

func snapshotOf(st *store.State) view.Snapshot {
	return view.Snapshot{Tasks: st.Tasks, Projects: st.Projects}
}

func views(st *store.State, ids []int64) []TaskView {
	a := tasktree.New(st.Tasks)
	act := actionable.Evaluate(a)
	out := make([]TaskView, 0, len(ids))
	for _, id := range ids {
		t, ok := a.Get(id)
		if !ok {
			continue
		}
		out = append(out, TaskView{
			Task:         *t,
			ProjectTitle: st.ProjectTitle(t.ProjectID),
			Depth:        a.Depth(id),
			Actionable:   act[id],
		})
	}
	return out
}
