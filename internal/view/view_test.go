package view

import (
	"reflect"
	"testing"
	"time"

	"north/internal/filter"
	"north/internal/model"
)

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func at(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
	return &t
}

func snapshot() Snapshot {
	return Snapshot{
		Projects: []model.Project{
			{ID: 10, Title: "Work", Status: model.ProjectActive},
			{ID: 11, Title: "Old", Status: model.ProjectArchived},
		},
		Tasks: []model.Task{
			{ID: 1, Title: "Inbox parent", SortKey: "a", SequentialLimit: 1},
			{ID: 2, Title: "First step", SortKey: "a", ParentID: model.Ref(1), DueDate: at(2026, 10, 16)},
			{ID: 3, Title: "Second step", SortKey: "b", ParentID: model.Ref(1)},
			{ID: 4, Title: "Done thing", SortKey: "b", CompletedAt: at(2026, 10, 1), ReviewedAt: at(2026, 10, 1)},
			{ID: 5, Title: "Work task", SortKey: "a", ProjectID: model.Ref(10), StartAt: at(2026, 10, 20), ReviewedAt: at(2026, 10, 12)},
			{ID: 6, Title: "Old task", SortKey: "b", ProjectID: model.Ref(11)},
			{ID: 7, Title: "Someday idea", SortKey: "c", Someday: true, ReviewedAt: at(2026, 10, 9)},
			{ID: 8, Title: "Also done", SortKey: "d", CompletedAt: at(2026, 10, 5)},
		},
	}
}

func render(req Request) []int64 {
	req.Now = now
	return Render(snapshot(), req)
}

func TestRender_AllPageInPreOrder(t *testing.T) {
	got := render(Request{Page: PageAll})
	if want := []int64{1, 2, 3, 5, 7}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	got = render(Request{Page: PageAll, ShowCompleted: true})
	if want := []int64{1, 2, 3, 5, 4, 7, 8}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
}

func TestRender_HideNonActionable(t *testing.T) {
	got := render(Request{Page: PageAll, HideNonActionable: true})
	if want := []int64{1, 2, 5}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
}

func TestRender_InboxAndProjectPages(t *testing.T) {
	if got, want := render(Request{Page: PageInbox}), []int64{1, 2, 3, 7}; !reflect.DeepEqual(got, want) {
		t.Fatalf("inbox = %v, want %v", got, want)
	}
	if got, want := render(Request{Page: PageProject, ProjectID: model.Ref(10)}), []int64{5}; !reflect.DeepEqual(got, want) {
		t.Fatalf("project = %v, want %v", got, want)
	}
	if got, want := render(Request{Page: PageProject, ProjectID: model.Ref(11)}), []int64{6}; !reflect.DeepEqual(got, want) {
		t.Fatalf("archived project page = %v, want %v", got, want)
	}
}

func TestRender_ListPages(t *testing.T) {
	if got, want := render(Request{Page: PageToday}), []int64{2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("today = %v, want %v", got, want)
	}
	if got, want := render(Request{Page: PageSomeday}), []int64{7}; !reflect.DeepEqual(got, want) {
		t.Fatalf("someday = %v, want %v", got, want)
	}
	if got, want := render(Request{Page: PageArchive}), []int64{8, 4}; !reflect.DeepEqual(got, want) {
		t.Fatalf("archive = %v, want %v", got, want)
	}
}

func TestRender_ReviewPage(t *testing.T) {
	// Never reviewed counts as due; 7 was reviewed exactly a week ago.
	if got, want := render(Request{Page: PageReview}), []int64{1, 2, 3, 7}; !reflect.DeepEqual(got, want) {
		t.Fatalf("review = %v, want %v", got, want)
	}
	if got, want := render(Request{Page: PageReview, ShowRecentlyReviewed: true}), []int64{1, 2, 3, 5, 7}; !reflect.DeepEqual(got, want) {
		t.Fatalf("review with recent = %v, want %v", got, want)
	}
	if got, want := render(Request{Page: PageReview, ReviewInterval: 3}), []int64{1, 2, 3, 5, 7}; !reflect.DeepEqual(got, want) {
		t.Fatalf("review with 3 day interval = %v, want %v", got, want)
	}
}

func TestFilter_RootTasksInQueryOrder(t *testing.T) {
	q, err := filter.Parse("status = active ORDER BY title DESC")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := Filter(snapshot(), q)
	if want := []int64{5, 7, 6, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	q, _ = filter.Parse("project = work")
	if got, want := Filter(snapshot(), q), []int64{5}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
}
