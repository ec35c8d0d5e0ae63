package mutate

import (
	"errors"
	"testing"

	"north/internal/model"
	"north/internal/tasktree"
)

// apply writes a placement back into tasks, like the store does.
func apply(tasks []model.Task, p Placement) []model.Task {
	out := append([]model.Task(nil), tasks...)
	for i := range out {
		if out[i].ID == p.TaskID {
			out[i].ParentID = p.ParentID
			out[i].ProjectID = p.ProjectID
			out[i].SortKey = p.SortKey
		}
		if k, ok := p.Rebalanced[out[i].ID]; ok {
			out[i].SortKey = k
		}
	}
	return out
}

func mustPlan(t *testing.T, tasks []model.Task, req Request) Placement {
	t.Helper()
	p, err := Plan(tasktree.New(tasks), req)
	if err != nil {
		t.Fatalf("Plan(%+v): unexpected err: %v", req, err)
	}
	return p
}

func order(tasks []model.Task, parent *int64) []int64 {
	a := tasktree.New(tasks)
	if parent == nil {
		return a.Scope(nil, nil)
	}
	return a.Children(*parent)
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func flat() []model.Task {
	return []model.Task{
		{ID: 1, SortKey: "a"},
		{ID: 2, SortKey: "c"},
		{ID: 3, SortKey: "e"},
	}
}

func TestPlan_AppendNewTask(t *testing.T) {
	p := mustPlan(t, flat(), Request{Kind: Append})
	if p.TaskID != 0 || !p.Changed || !(p.SortKey > "e") {
		t.Fatalf("unexpected placement: %+v", p)
	}
	empty := mustPlan(t, nil, Request{Kind: Append})
	if empty.SortKey != "i" {
		t.Fatalf("first key = %q, want canonical midpoint", empty.SortKey)
	}
}

func TestPlan_InsertAboveAndBelow(t *testing.T) {
	tasks := flat()
	p := mustPlan(t, tasks, Request{Kind: InsertAbove, TaskID: 3, AnchorID: 1})
	if got, want := order(apply(tasks, p), nil), []int64{3, 1, 2}; !equalIDs(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	p = mustPlan(t, tasks, Request{Kind: InsertBelow, TaskID: 1, AnchorID: 2})
	if got, want := order(apply(tasks, p), nil), []int64{2, 1, 3}; !equalIDs(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	p = mustPlan(t, tasks, Request{Kind: InsertBelow, AnchorID: 2})
	if !("c" < p.SortKey && p.SortKey < "e") {
		t.Fatalf("new key %q not between anchors", p.SortKey)
	}
}

func TestPlan_MoveUpDownAndEdges(t *testing.T) {
	tasks := flat()
	p := mustPlan(t, tasks, Request{Kind: MoveUp, TaskID: 2})
	if got, want := order(apply(tasks, p), nil), []int64{2, 1, 3}; !equalIDs(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	p = mustPlan(t, tasks, Request{Kind: MoveDown, TaskID: 2})
	if got, want := order(apply(tasks, p), nil), []int64{1, 3, 2}; !equalIDs(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if p := mustPlan(t, tasks, Request{Kind: MoveUp, TaskID: 1}); p.Changed {
		t.Fatalf("moving the first task up should be a no-op: %+v", p)
	}
	if p := mustPlan(t, tasks, Request{Kind: MoveDown, TaskID: 3}); p.Changed {
		t.Fatalf("moving the last task down should be a no-op: %+v", p)
	}
}

func TestPlan_IndentAndUnindent(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, SortKey: "a"},
		{ID: 2, SortKey: "b", ParentID: model.Ref(1)},
		{ID: 3, SortKey: "c"},
		{ID: 4, SortKey: "d"},
	}
	if p := mustPlan(t, tasks, Request{Kind: Indent, TaskID: 1}); p.Changed {
		t.Fatalf("indenting the first sibling should be a no-op")
	}

	p := mustPlan(t, tasks, Request{Kind: Indent, TaskID: 3})
	if p.ParentID == nil || *p.ParentID != 1 {
		t.Fatalf("expected new parent 1, got %+v", p)
	}
	tasks = apply(tasks, p)
	if got, want := order(tasks, model.Ref(1)), []int64{2, 3}; !equalIDs(got, want) {
		t.Fatalf("children = %v, want %v (last child)", got, want)
	}

	p = mustPlan(t, tasks, Request{Kind: Unindent, TaskID: 2})
	if p.ParentID != nil {
		t.Fatalf("expected root placement, got %+v", p)
	}
	tasks = apply(tasks, p)
	if got, want := order(tasks, nil), []int64{1, 2, 4}; !equalIDs(got, want) {
		t.Fatalf("roots = %v, want %v (right after former parent)", got, want)
	}
	if p := mustPlan(t, tasks, Request{Kind: Unindent, TaskID: 4}); p.Changed {
		t.Fatalf("unindenting a root should be a no-op")
	}
}

func TestPlan_ReparentRejectsCycles(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, SortKey: "a"},
		{ID: 2, SortKey: "a", ParentID: model.Ref(1)},
		{ID: 3, SortKey: "b"},
	}
	a := tasktree.New(tasks)
	for _, parent := range []int64{1, 2} {
		if _, err := Plan(a, Request{Kind: Reparent, TaskID: 1, ParentID: model.Ref(parent)}); !errors.Is(err, ErrCycle) {
			t.Fatalf("reparent under %d: expected ErrCycle, got %v", parent, err)
		}
	}
	p := mustPlan(t, tasks, Request{Kind: Reparent, TaskID: 3, ParentID: model.Ref(1)})
	if got, want := order(apply(tasks, p), model.Ref(1)), []int64{2, 3}; !equalIDs(got, want) {
		t.Fatalf("children = %v, want %v", got, want)
	}
}

func TestPlan_NotFound(t *testing.T) {
	_, err := Plan(tasktree.New(flat()), Request{Kind: MoveUp, TaskID: 42})
	var nf NotFoundError
	if !errors.As(err, &nf) || nf.ID != 42 {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := Plan(tasktree.New(flat()), Request{Kind: Indent}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestPlan_DuplicateKeysAreRebalanced(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, SortKey: "m"},
		{ID: 2, SortKey: "m"},
		{ID: 3, SortKey: "m"},
	}
	p := mustPlan(t, tasks, Request{Kind: InsertBelow, AnchorID: 1})
	if len(p.Rebalanced) == 0 {
		t.Fatalf("expected neighbours to be rekeyed: %+v", p)
	}
	tasks = apply(tasks, p)
	tasks = append(tasks, model.Task{ID: 9, SortKey: p.SortKey})
	if got, want := order(tasks, nil), []int64{1, 9, 2, 3}; !equalIDs(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for _, tk := range tasks[:len(tasks)-1] {
		if tk.SortKey == p.SortKey {
			t.Fatalf("new key %q collides with task %d", p.SortKey, tk.ID)
		}
	}
}
