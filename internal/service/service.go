// Package service implements north's use cases on top of the store and the pure
// ordering, actionability, filter and tokenizer packages.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"north/internal/model"
	"north/internal/mutate"
	"north/internal/rank"
	"north/internal/store"
	"north/internal/tasktree"
)

type Options struct {
	Logger *log.Logger

	// ReviewIntervalDays applies when the database has no stored interval.
	ReviewIntervalDays int

	Now func() time.Time
}

type Service struct {
	st             *store.Store
	log            *log.Logger
	now            func() time.Time
	reviewInterval int
}

func New(st *store.Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.New()
		logger.SetOutput(io.Discard)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{st: st, log: logger, now: now, reviewInterval: opts.ReviewIntervalDays}
}

func (s *Service) Logger() *log.Logger { return s.log }

// Settings returns the effective settings: stored values first, then the configured
// fallback, then the defaults.
func (s *Service) Settings(ctx context.Context) (model.Settings, error) {
	st, err := s.st.Load(ctx)
	if err != nil {
		return model.Settings{}, err
	}
	return s.settings(st), nil
}

func (s *Service) settings(st *store.State) model.Settings {
	out := model.DefaultSettings()
	if s.reviewInterval > 0 {
		out.ReviewIntervalDays = s.reviewInterval
	}
	if st.Settings.ReviewIntervalDays > 0 {
		out.ReviewIntervalDays = st.Settings.ReviewIntervalDays
	}
	return out
}

func (s *Service) SetReviewInterval(ctx context.Context, days int) (model.Settings, error) {
	if days < 1 {
		return model.Settings{}, &ValidationError{Field: "reviewIntervalDays", Message: "must be at least 1"}
	}
	var out model.Settings
	err := s.st.Update(ctx, func(st *store.State) error {
		st.Settings.ReviewIntervalDays = days
		out = s.settings(st)
		return nil
	})
	if err != nil {
		return model.Settings{}, err
	}
	s.log.WithField("days", days).Info("review interval updated")
	return out, nil
}

// plan runs the ordering intake and classifies its failures. Sort key invariant
// failures mean stored data is corrupt: they are logged and reported as internal.
func (s *Service) plan(a *tasktree.Arena, req mutate.Request) (mutate.Placement, error) {
	p, err := mutate.Plan(a, req)
	if err == nil {
		return p, nil
	}
	var nf mutate.NotFoundError
	switch {
	case errors.As(err, &nf):
		return p, &NotFoundError{Kind: nf.Kind, ID: fmt.Sprint(nf.ID)}
	case errors.Is(err, mutate.ErrCycle), errors.Is(err, mutate.ErrInvalidRequest):
		return p, &ValidationError{Field: "move", Message: err.Error(), Err: err}
	case errors.Is(err, rank.ErrOrderingInvariant), errors.Is(err, rank.ErrInvalidKey):
		s.log.WithFields(log.Fields{
			"kind":   req.Kind,
			"task":   req.TaskID,
			"anchor": req.AnchorID,
		}).WithError(err).Error("sort key invariant violated")
		return p, &IntegrityError{Op: string(req.Kind), Err: err}
	}
	return p, err
}

// applyPlacement writes p into st. A changed project is carried down the subtree so
// every descendant stays in its parent's project.
func applyPlacement(st *store.State, p mutate.Placement, now time.Time) {
	var projectChanged bool
	for i := range st.Tasks {
		t := &st.Tasks[i]
		if t.ID == p.TaskID && p.Changed {
			projectChanged = !model.SameRef(t.ProjectID, p.ProjectID)
			t.ParentID = p.ParentID
			t.ProjectID = p.ProjectID
			t.SortKey = p.SortKey
			t.UpdatedAt = now
		}
		if k, ok := p.Rebalanced[t.ID]; ok {
			t.SortKey = k
			t.UpdatedAt = now
		}
	}
	if !projectChanged {
		return
	}
	a := tasktree.New(st.Tasks)
	ids := a.Subtree(p.TaskID)
	if len(ids) < 2 {
		return
	}
	for _, id := range ids[1:] {
		t, _ := a.Get(id)
		t.ProjectID = p.ProjectID
		t.UpdatedAt = now
	}
}
