// Package view turns a task snapshot into the ordered list of task ids a page shows.
package view

import (
	"fmt"
	"sort"
	"time"

	"north/internal/actionable"
	"north/internal/filter"
	"north/internal/model"
	"north/internal/tasktree"
)

type Page string

const (
	PageAll     Page = "all"
	PageInbox   Page = "inbox"
	PageToday   Page = "today"
	PageSomeday Page = "someday"
	PageProject Page = "project"
	PageReview  Page = "review"
	PageArchive Page = "archive"
)

func ParsePage(s string) (Page, error) {
	switch p := Page(s); p {
	case PageAll, PageInbox, PageToday, PageSomeday, PageProject, PageReview, PageArchive:
		return p, nil
	case "":
		return PageAll, nil
	}
	return "", fmt.Errorf("unknown page %q (want all, inbox, today, someday, project, review or archive)", s)
}

type Snapshot struct {
	Tasks    []model.Task
	Projects []model.Project
}

type Request struct {
	Page      Page
	ProjectID *int64

	HideNonActionable    bool
	ShowCompleted        bool
	ShowRecentlyReviewed bool

	Now            time.Time
	ReviewInterval int // days; 0 uses the default
}

// Render returns the ids to show, in display order.
//
// Tree pages (all, inbox, project) render pre-order and only show a child beneath a
// rendered parent. List pages (today, someday, review, archive) are flat.
func Render(s Snapshot, req Request) []int64 {
	if req.Page == "" {
		req.Page = PageAll
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	a := tasktree.New(s.Tasks)
	act := actionable.Evaluate(a)
	archived := map[int64]bool{}
	for _, p := range s.Projects {
		if p.Archived() {
			archived[p.ID] = true
		}
	}

	visible := func(t *model.Task) bool {
		if req.Page != PageArchive && req.Page != PageProject && t.ProjectID != nil && archived[*t.ProjectID] {
			return false
		}
		if t.Completed() && !req.ShowCompleted && req.Page != PageArchive {
			return false
		}
		if req.HideNonActionable && !act[t.ID] {
			return false
		}
		return true
	}

	var out []int64
	switch req.Page {
	case PageAll, PageInbox, PageProject:
		a.Walk(func(t *model.Task, depth int) bool {
			if depth == 0 && !rootOnPage(t, req) {
				return false
			}
			if !visible(t) {
				return false
			}
			out = append(out, t.ID)
			return true
		})
	default:
		a.Walk(func(t *model.Task, _ int) bool {
			if visible(t) && onListPage(t, req) {
				out = append(out, t.ID)
			}
			return true
		})
		if req.Page == PageArchive {
			sortByCompletion(a, out)
		}
	}
	return out
}

func rootOnPage(t *model.Task, req Request) bool {
	switch req.Page {
	case PageInbox:
		return t.ProjectID == nil
	case PageProject:
		return req.ProjectID != nil && model.SameRef(t.ProjectID, req.ProjectID)
	}
	return true
}

func onListPage(t *model.Task, req Request) bool {
	switch req.Page {
	case PageToday:
		if t.Completed() {
			return false
		}
		today := model.Day(req.Now)
		return onOrBefore(t.StartAt, today) || onOrBefore(t.DueDate, today)
	case PageSomeday:
		return t.Someday && !t.Completed()
	case PageReview:
		if ReviewDue(t, req.Now, req.ReviewInterval) {
			return true
		}
		return req.ShowRecentlyReviewed && RecentlyReviewed(t, req.Now, req.ReviewInterval)
	case PageArchive:
		return t.Completed()
	}
	return false
}

func onOrBefore(t *time.Time, day time.Time) bool {
	if t == nil {
		return false
	}
	return !model.Day(t.In(day.Location())).After(day)
}

func sortByCompletion(a *tasktree.Arena, ids []int64) {
	sort.SliceStable(ids, func(i, j int) bool {
		ti, _ := a.Get(ids[i])
		tj, _ := a.Get(ids[j])
		return ti.CompletedAt.After(*tj.CompletedAt)
	})
}

func interval(days int) int {
	if days <= 0 {
		return model.DefaultReviewIntervalDays
	}
	return days
}

// ReviewDue reports whether an open task needs review: it was never reviewed, or its
// last review is at least the interval's number of days old.
func ReviewDue(t *model.Task, now time.Time, intervalDays int) bool {
	if t.Completed() {
		return false
	}
	if t.ReviewedAt == nil {
		return true
	}
	cutoff := model.Day(now).AddDate(0, 0, -interval(intervalDays))
	return !model.Day(t.ReviewedAt.In(now.Location())).After(cutoff)
}

// RecentlyReviewed reports whether an open task was reviewed within the interval.
func RecentlyReviewed(t *model.Task, now time.Time, intervalDays int) bool {
	return !t.Completed() && t.ReviewedAt != nil && !ReviewDue(t, now, intervalDays)
}

// Filter returns the root tasks matching q in the query's order. Tasks of archived
// projects are included: a filter is an explicit request.
func Filter(s Snapshot, q *filter.Query) []int64 {
	titles := make(map[int64]string, len(s.Projects))
	for _, p := range s.Projects {
		titles[p.ID] = p.Title
	}
	a := tasktree.New(s.Tasks)
	var recs []filter.Record
	for _, id := range a.Roots() {
		t, _ := a.Get(id)
		title := ""
		if t.ProjectID != nil {
			title = titles[*t.ProjectID]
		}
		r := filter.RecordOf(*t, title)
		if q.Match(r) {
			recs = append(recs, r)
		}
	}
	q.Sort(recs)
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}
