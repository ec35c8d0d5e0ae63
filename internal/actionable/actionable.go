// Package actionable decides which tasks can be worked on right now.
//
// A task is actionable when it is open, not deferred to someday, and either a root or
// the child of an actionable parent that ranks within the parent's sequential limit.
// Only open, non-someday siblings consume a slot of the limit.
package actionable

import (
	"north/internal/model"
	"north/internal/tasktree"
)

// Evaluate computes actionability for every task in the arena.
func Evaluate(a *tasktree.Arena) map[int64]bool {
	out := make(map[int64]bool, a.Len())
	var visit func(ids []int64, parentOK bool, limit int)
	visit = func(ids []int64, parentOK bool, limit int) {
		rank := 0
		for _, id := range ids {
			t, _ := a.Get(id)
			ok := false
			if eligible(t) {
				ok = parentOK && (limit <= 0 || rank < limit)
				rank++
			}
			out[id] = ok
			visit(a.Children(id), ok, t.SequentialLimit)
		}
	}
	visit(a.Roots(), true, 0)
	return out
}

// IsActionable evaluates a single task by walking its ancestor chain.
func IsActionable(a *tasktree.Arena, id int64) bool {
	t, ok := a.Get(id)
	if !ok || !eligible(t) {
		return false
	}
	parentID, ok := a.Parent(id)
	if !ok {
		return true
	}
	parent, _ := a.Get(parentID)
	if !IsActionable(a, parentID) {
		return false
	}
	if parent.SequentialLimit <= 0 {
		return true
	}
	rank := 0
	for _, sib := range a.Children(parentID) {
		if sib == id {
			break
		}
		if s, _ := a.Get(sib); eligible(s) {
			rank++
		}
	}
	return rank < parent.SequentialLimit
}

func eligible(t *model.Task) bool {
	return !t.Completed() && !t.Someday
}
