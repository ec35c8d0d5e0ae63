package publish

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"north/internal/service"
	"north/internal/store"
)

func newService(t *testing.T) *service.Service {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "north.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	logger, _ := test.NewNullLogger()
	now := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)
	return service.New(st, service.Options{Logger: logger, Now: func() time.Time { return now }})
}

func TestRenderTaskMarkdown_IncludesNotesAndSubtasks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t)
	if _, err := svc.CreateProject(ctx, "Home", ""); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	parent, err := svc.CreateTask(ctx, service.CreateTaskInput{Title: "Fix sink @home #diy", Body: "Some **markdown**."})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := svc.CreateTask(ctx, service.CreateTaskInput{Title: "Buy washer", ParentID: &parent.ID}); err != nil {
		t.Fatalf("CreateTask child: %v", err)
	}

	d, err := svc.Task(ctx, parent.ID)
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	md := RenderTaskMarkdown(d)
	for _, want := range []string{"# Fix sink", "- Project: Home", "- Tags: diy", "## Notes", "Some **markdown**.", "## Subtasks", "- [ ] [Buy washer](2.md)"} {
		if !strings.Contains(md, want) {
			t.Fatalf("expected %q in:\n%s", want, md)
		}
	}
}

func TestWriteProject_WritesIndexAndTasks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newService(t)
	p, err := svc.CreateProject(ctx, "Garden Work", "")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := svc.CreateTask(ctx, service.CreateTaskInput{Title: "Weed beds", ProjectID: &p.ID}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	dir := t.TempDir()
	res, err := WriteProject(ctx, svc, "Garden Work", dir, WriteOptions{})
	if err != nil {
		t.Fatalf("WriteProject: %v", err)
	}
	if len(res.Written) != 2 {
		t.Fatalf("expected index plus one task page, got %v", res.Written)
	}

	index, err := os.ReadFile(filepath.Join(dir, "garden-work", "index.md"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if !strings.Contains(string(index), "# Garden Work") || !strings.Contains(string(index), "[Weed beds](tasks/1.md)") {
		t.Fatalf("unexpected index:\n%s", index)
	}
	if _, err := os.Stat(filepath.Join(dir, "garden-work", "tasks", "1.md")); err != nil {
		t.Fatalf("expected task page: %v", err)
	}

	if _, err := WriteProject(ctx, svc, "Garden Work", dir, WriteOptions{}); err == nil {
		t.Fatalf("expected existing files to be refused without overwrite")
	}
	if _, err := WriteProject(ctx, svc, "Garden Work", dir, WriteOptions{Overwrite: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestSlug(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Garden Work":   "garden-work",
		"  Q3 / Plans!": "q3-plans",
		"???":           "project-7",
	}
	for in, want := range cases {
		if got := slug(in, 7); got != want {
			t.Fatalf("slug(%q) = %q, want %q", in, got, want)
		}
	}
}
