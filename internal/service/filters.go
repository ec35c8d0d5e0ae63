package service

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"

	"north/internal/filter"
	"north/internal/model"
	"north/internal/store"
)

func newFilterID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// SaveFilter stores a named query. The query must parse; it is stored as typed.
func (s *Service) SaveFilter(ctx context.Context, title, query string) (model.SavedFilter, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.SavedFilter{}, &ValidationError{Field: "title", Message: "is required"}
	}
	if _, err := filter.Parse(query); err != nil {
		return model.SavedFilter{}, err
	}
	now := s.now()
	id, err := newFilterID(now)
	if err != nil {
		return model.SavedFilter{}, err
	}
	var out model.SavedFilter
	err = s.st.Update(ctx, func(st *store.State) error {
		if _, ok := findFilter(st, title); ok {
			return &ValidationError{Field: "title", Message: "a saved filter named " + title + " already exists"}
		}
		pos := 0
		for _, f := range st.Filters {
			if f.Position >= pos {
				pos = f.Position + 1
			}
		}
		out = model.SavedFilter{
			ID:        id,
			Title:     title,
			Query:     strings.TrimSpace(query),
			Position:  pos,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.Filters = append(st.Filters, out)
		return nil
	})
	if err != nil {
		return model.SavedFilter{}, err
	}
	s.log.WithFields(log.Fields{"filter": out.ID, "title": out.Title}).Info("filter saved")
	return out, nil
}

// UpdateFilter renames a saved filter and/or replaces its query.
func (s *Service) UpdateFilter(ctx context.Context, ref string, title, query *string) (model.SavedFilter, error) {
	if query != nil {
		if _, err := filter.Parse(*query); err != nil {
			return model.SavedFilter{}, err
		}
	}
	now := s.now()
	var out model.SavedFilter
	err := s.st.Update(ctx, func(st *store.State) error {
		f, ok := findFilter(st, ref)
		if !ok {
			return &NotFoundError{Kind: "saved filter", ID: ref}
		}
		if title != nil {
			t := strings.TrimSpace(*title)
			if t == "" {
				return &ValidationError{Field: "title", Message: "is required"}
			}
			if other, ok := findFilter(st, t); ok && other.ID != f.ID {
				return &ValidationError{Field: "title", Message: "a saved filter named " + t + " already exists"}
			}
			f.Title = t
		}
		if query != nil {
			f.Query = strings.TrimSpace(*query)
		}
		f.UpdatedAt = now
		out = *f
		return nil
	})
	if err != nil {
		return model.SavedFilter{}, err
	}
	return out, nil
}

func (s *Service) Filters(ctx context.Context) ([]model.SavedFilter, error) {
	st, err := s.st.Load(ctx)
	if err != nil {
		return nil, err
	}
	return st.Filters, nil
}

// Filter resolves a saved filter by id or case-insensitive title.
func (s *Service) Filter(ctx context.Context, ref string) (model.SavedFilter, error) {
	st, err := s.st.Load(ctx)
	if err != nil {
		return model.SavedFilter{}, err
	}
	f, ok := findFilter(st, ref)
	if !ok {
		return model.SavedFilter{}, &NotFoundError{Kind: "saved filter", ID: ref}
	}
	return *f, nil
}

func (s *Service) DeleteFilter(ctx context.Context, ref string) error {
	return s.st.Update(ctx, func(st *store.State) error {
		f, ok := findFilter(st, ref)
		if !ok {
			return &NotFoundError{Kind: "saved filter", ID: ref}
		}
		id := f.ID
		kept := st.Filters[:0]
		for _, x := range st.Filters {
			if x.ID != id {
				kept = append(kept, x)
			}
		}
		st.Filters = kept
		return nil
	})
}

// RunSavedFilter executes a saved filter's query.
func (s *Service) RunSavedFilter(ctx context.Context, ref string) (model.SavedFilter, []TaskView, error) {
	f, err := s.Filter(ctx, ref)
	if err != nil {
		return model.SavedFilter{}, nil, err
	}
	tasks, err := s.RunFilter(ctx, f.Query)
	if err != nil {
		return f, nil, err
	}
	return f, tasks, nil
}

func findFilter(st *store.State, ref string) (*model.SavedFilter, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, false
	}
	if f, ok := st.Filter(ref); ok {
		return f, true
	}
	for i := range st.Filters {
		if strings.EqualFold(st.Filters[i].Title, ref) {
			return &st.Filters[i], true
		}
	}
	return nil, false
}
