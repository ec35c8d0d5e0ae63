package service

import (
	"context"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"north/internal/model"
	"north/internal/store"
	"north/internal/tasktree"
	"north/internal/view"
)

// TagCount is a tag with the number of tasks carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Open  int    `json:"open"`
}

func (s *Service) Tags(ctx context.Context) ([]TagCount, error) {
	st, err := s.st.Load(ctx)
	if err != nil {
		return nil, err
	}
	return tagCounts(st), nil
}

// tagCounts derives tags from task references, most used first.
func tagCounts(st *store.State) []TagCount {
	byName := map[string]*TagCount{}
	for _, t := range st.Tasks {
		for _, name := range model.NormalizeTags(t.Tags) {
			tc, ok := byName[name]
			if !ok {
				tc = &TagCount{Name: name}
				byName[name] = tc
			}
			tc.Count++
			if !t.Completed() {
				tc.Open++
			}
		}
	}
	out := make([]TagCount, 0, len(byName))
	for _, tc := range byName {
		out = append(out, *tc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ReviewAll marks every review-due root task as reviewed now and returns how many
// were marked.
func (s *Service) ReviewAll(ctx context.Context) (int, error) {
	now := s.now()
	n := 0
	err := s.st.Update(ctx, func(st *store.State) error {
		interval := s.settings(st).ReviewIntervalDays
		a := tasktree.New(st.Tasks)
		for _, id := range a.Roots() {
			t, _ := a.Get(id)
			if !view.ReviewDue(t, now, interval) {
				continue
			}
			reviewed := now
			t.ReviewedAt = &reviewed
			t.UpdatedAt = now
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.WithField("tasks", n).Info("review pass recorded")
	return n, nil
}

type Stats struct {
	CreatedToday   int `json:"createdToday"`
	CompletedToday int `json:"completedToday"`
	CreatedWeek    int `json:"createdWeek"`
	CompletedWeek  int `json:"completedWeek"`
	TotalOpen      int `json:"totalOpen"`
	TotalCompleted int `json:"totalCompleted"`
	ReviewDue      int `json:"reviewDue"`
}

// Stats counts activity for today and the current week (weeks start on Monday).
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.st.Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	now := s.now()
	today := model.Day(now)
	week := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	interval := s.settings(st).ReviewIntervalDays

	since := func(t *time.Time, from time.Time) bool {
		return t != nil && !t.In(now.Location()).Before(from)
	}
	var out Stats
	for i := range st.Tasks {
		t := &st.Tasks[i]
		created := t.CreatedAt
		if since(&created, today) {
			out.CreatedToday++
		}
		if since(&created, week) {
			out.CreatedWeek++
		}
		if since(t.CompletedAt, today) {
			out.CompletedToday++
		}
		if since(t.CompletedAt, week) {
			out.CompletedWeek++
		}
		if t.Completed() {
			out.TotalCompleted++
		} else {
			out.TotalOpen++
		}
		if view.ReviewDue(t, now, interval) {
			out.ReviewDue++
		}
	}
	s.log.WithFields(log.Fields{"open": out.TotalOpen, "completed": out.TotalCompleted}).Debug("stats computed")
	return out, nil
}
