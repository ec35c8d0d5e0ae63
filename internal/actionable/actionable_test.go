package actionable

import (
	"testing"
	"time"

	"north/internal/model"
	"north/internal/tasktree"
)

func child(id, parent int64, key string) model.Task {
	return model.Task{ID: id, ParentID: model.Ref(parent), SortKey: key}
}

func assertActionable(t *testing.T, a *tasktree.Arena, got map[int64]bool, want map[int64]bool) {
	t.Helper()
	for id, w := range want {
		if got[id] != w {
			t.Fatalf("task %d: Evaluate = %v, want %v", id, got[id], w)
		}
		if IsActionable(a, id) != w {
			t.Fatalf("task %d: IsActionable = %v, want %v", id, !w, w)
		}
	}
}

func TestEvaluate_SequentialLimitCapsChildren(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, SortKey: "i", SequentialLimit: 2},
		child(2, 1, "a"),
		child(3, 1, "b"),
		child(4, 1, "c"),
	}
	a := tasktree.New(tasks)
	assertActionable(t, a, Evaluate(a), map[int64]bool{1: true, 2: true, 3: true, 4: false})
}

func TestEvaluate_CompletedAndSomedaySiblingsDoNotConsumeSlots(t *testing.T) {
	done := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{ID: 1, SortKey: "i", SequentialLimit: 1},
		child(2, 1, "a"),
		child(3, 1, "b"),
		child(4, 1, "c"),
		child(5, 1, "d"),
	}
	tasks[1].CompletedAt = &done
	tasks[2].Someday = true
	a := tasktree.New(tasks)
	assertActionable(t, a, Evaluate(a), map[int64]bool{2: false, 3: false, 4: true, 5: false})
}

func TestEvaluate_UnlimitedWhenLimitIsZero(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, SortKey: "i"},
		child(2, 1, "a"),
		child(3, 1, "b"),
		child(4, 1, "c"),
	}
	a := tasktree.New(tasks)
	assertActionable(t, a, Evaluate(a), map[int64]bool{2: true, 3: true, 4: true})
}

func TestEvaluate_NonActionableParentBlocksSubtree(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, SortKey: "i", SequentialLimit: 1},
		child(2, 1, "a"),
		child(3, 1, "b"),
		child(4, 3, "a"),
		{ID: 5, SortKey: "j", Someday: true},
		child(6, 5, "a"),
	}
	a := tasktree.New(tasks)
	assertActionable(t, a, Evaluate(a), map[int64]bool{2: true, 3: false, 4: false, 5: false, 6: false})
}
