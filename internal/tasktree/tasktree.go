// Package tasktree indexes tasks by id and answers structural questions about the
// hierarchy. Parent links are plain ids: a task whose parent is missing is a root, and
// a parent chain that loops back on itself is cut where the loop closes.
package tasktree

import (
	"sort"

	"north/internal/model"
)

type Arena struct {
	byID     map[int64]*model.Task
	parent   map[int64]int64 // effective parent; absent for roots
	children map[int64][]int64
	roots    []int64
}

// New builds an arena over tasks. The slice elements are referenced, not copied.
func New(tasks []model.Task) *Arena {
	a := &Arena{
		byID:     make(map[int64]*model.Task, len(tasks)),
		parent:   make(map[int64]int64, len(tasks)),
		children: map[int64][]int64{},
	}
	for i := range tasks {
		a.byID[tasks[i].ID] = &tasks[i]
	}
	for id, t := range a.byID {
		if t.ParentID == nil {
			continue
		}
		if _, ok := a.byID[*t.ParentID]; !ok || *t.ParentID == id {
			continue
		}
		a.parent[id] = *t.ParentID
	}
	a.breakLoops()
	for id := range a.byID {
		if p, ok := a.parent[id]; ok {
			a.children[p] = append(a.children[p], id)
		} else {
			a.roots = append(a.roots, id)
		}
	}
	for p := range a.children {
		a.sortIDs(a.children[p])
	}
	a.sortIDs(a.roots)
	return a
}

// breakLoops detaches the task that closes each parent cycle, making it a root.
func (a *Arena) breakLoops() {
	ids := make([]int64, 0, len(a.byID))
	for id := range a.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[int64]int, len(ids))
	for _, start := range ids {
		if state[start] != unvisited {
			continue
		}
		var path []int64
		cur := start
		for {
			if state[cur] == done {
				break
			}
			if state[cur] == visiting {
				// The last task on the path points back into it.
				delete(a.parent, path[len(path)-1])
				break
			}
			state[cur] = visiting
			path = append(path, cur)
			p, ok := a.parent[cur]
			if !ok {
				break
			}
			cur = p
		}
		for _, id := range path {
			state[id] = done
		}
	}
}

func (a *Arena) sortIDs(ids []int64) {
	sort.SliceStable(ids, func(i, j int) bool {
		ki, kj := a.byID[ids[i]].SortKey, a.byID[ids[j]].SortKey
		if ki != kj {
			return ki < kj
		}
		return ids[i] < ids[j]
	})
}

func (a *Arena) Len() int { return len(a.byID) }

func (a *Arena) Get(id int64) (*model.Task, bool) {
	t, ok := a.byID[id]
	return t, ok
}

// Parent returns the effective parent id of id.
func (a *Arena) Parent(id int64) (int64, bool) {
	p, ok := a.parent[id]
	return p, ok
}

func (a *Arena) IsRoot(id int64) bool {
	_, ok := a.parent[id]
	return !ok
}

// Children returns the children of id ordered by sort key, then id.
func (a *Arena) Children(id int64) []int64 {
	return append([]int64(nil), a.children[id]...)
}

// Roots returns all root tasks ordered by sort key, then id.
func (a *Arena) Roots() []int64 {
	return append([]int64(nil), a.roots...)
}

// Siblings returns the tasks sharing t's effective parent and project scope, including
// t, in order.
func (a *Arena) Siblings(t *model.Task) []int64 {
	if p, ok := a.parent[t.ID]; ok {
		return a.Scope(&p, t.ProjectID)
	}
	return a.Scope(nil, t.ProjectID)
}

// Scope returns the ordered members of the sibling set (parent, project). A nil parent
// means the root list of that project (or of the inbox when project is nil).
func (a *Arena) Scope(parent, project *int64) []int64 {
	var pool []int64
	if parent != nil {
		if _, ok := a.byID[*parent]; ok {
			pool = a.children[*parent]
		}
	} else {
		pool = a.roots
	}
	out := make([]int64, 0, len(pool))
	for _, id := range pool {
		if model.SameRef(a.byID[id].ProjectID, project) {
			out = append(out, id)
		}
	}
	return out
}

// IsAncestor reports whether anc is a proper ancestor of id.
func (a *Arena) IsAncestor(anc, id int64) bool {
	cur, ok := a.parent[id]
	for ok {
		if cur == anc {
			return true
		}
		cur, ok = a.parent[cur]
	}
	return false
}

// Depth returns the number of ancestors of id.
func (a *Arena) Depth(id int64) int {
	n := 0
	cur, ok := a.parent[id]
	for ok {
		n++
		cur, ok = a.parent[cur]
	}
	return n
}

// Walk visits every task in pre-order, siblings in sort-key order. Returning false from
// fn skips the task's subtree.
func (a *Arena) Walk(fn func(t *model.Task, depth int) bool) {
	var visit func(ids []int64, depth int)
	visit = func(ids []int64, depth int) {
		for _, id := range ids {
			if fn(a.byID[id], depth) {
				visit(a.children[id], depth+1)
			}
		}
	}
	visit(a.roots, 0)
}

// Subtree returns id followed by all of its descendants in pre-order.
func (a *Arena) Subtree(id int64) []int64 {
	if _, ok := a.byID[id]; !ok {
		return nil
	}
	out := []int64{id}
	var visit func(id int64)
	visit = func(id int64) {
		for _, c := range a.children[id] {
			out = append(out, c)
			visit(c)
		}
	}
	visit(id)
	return out
}
