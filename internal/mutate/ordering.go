package mutate

import (
	"fmt"

	"north/internal/model"
	"north/internal/rank"
	"north/internal/tasktree"
)

type Kind string

const (
	InsertAbove Kind = "insert-above"
	InsertBelow Kind = "insert-below"
	Append      Kind = "append"
	MoveUp      Kind = "move-up"
	MoveDown    Kind = "move-down"
	Indent      Kind = "indent"
	Unindent    Kind = "unindent"
	Reparent    Kind = "reparent"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case InsertAbove, InsertBelow, Append, MoveUp, MoveDown, Indent, Unindent, Reparent:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown move %q", ErrInvalidRequest, s)
}

// Request asks for a task to be placed. TaskID 0 plans the position of a task that
// does not exist yet (Append, InsertAbove and InsertBelow only).
//
// AnchorID is the reference task for InsertAbove/InsertBelow. ParentID and ProjectID
// name the target scope for Append; ParentID alone is the new parent for Reparent.
type Request struct {
	Kind      Kind
	TaskID    int64
	AnchorID  int64
	ParentID  *int64
	ProjectID *int64
}

// Placement is the outcome of a Request. Rebalanced holds new keys for other
// siblings when the insertion point had to be renormalized.
type Placement struct {
	TaskID     int64            `json:"taskId,omitempty"`
	ParentID   *int64           `json:"parentId,omitempty"`
	ProjectID  *int64           `json:"projectId,omitempty"`
	SortKey    string           `json:"sortKey"`
	Rebalanced map[int64]string `json:"rebalanced,omitempty"`
	Changed    bool             `json:"changed"`
}

// newTaskID stands in for a task without an id while planning.
const newTaskID int64 = -1

// Plan computes where a task goes and which sort keys change. It does not modify the
// arena.
func Plan(a *tasktree.Arena, req Request) (Placement, error) {
	var task *model.Task
	if req.TaskID != 0 {
		t, ok := a.Get(req.TaskID)
		if !ok {
			return Placement{}, NotFoundError{Kind: "task", ID: req.TaskID}
		}
		task = t
	} else {
		switch req.Kind {
		case Append, InsertAbove, InsertBelow:
		default:
			return Placement{}, fmt.Errorf("%w: %s needs an existing task", ErrInvalidRequest, req.Kind)
		}
	}

	switch req.Kind {
	case Append:
		parent, project := req.ParentID, req.ProjectID
		if parent != nil {
			p, err := checkParent(a, task, *parent)
			if err != nil {
				return Placement{}, err
			}
			project = p.ProjectID
		}
		return place(a, task, parent, project, atEnd)

	case InsertAbove, InsertBelow:
		anchor, ok := a.Get(req.AnchorID)
		if !ok {
			return Placement{}, NotFoundError{Kind: "task", ID: req.AnchorID}
		}
		if task != nil && (anchor.ID == task.ID || a.IsAncestor(task.ID, anchor.ID)) {
			return Placement{}, fmt.Errorf("%w: cannot place task %d next to %d", ErrCycle, task.ID, anchor.ID)
		}
		parent := effectiveParent(a, anchor.ID)
		at := before(anchor.ID)
		if req.Kind == InsertBelow {
			at = after(anchor.ID)
		}
		return place(a, task, parent, anchor.ProjectID, at)

	case MoveUp, MoveDown:
		sibs := a.Siblings(task)
		idx := indexOf(sibs, task.ID)
		if (req.Kind == MoveUp && idx <= 0) || (req.Kind == MoveDown && idx >= len(sibs)-1) {
			return unchanged(a, task), nil
		}
		// Positions are relative to the sibling list without the task.
		to := idx - 1
		if req.Kind == MoveDown {
			to = idx + 1
		}
		return place(a, task, effectiveParent(a, task.ID), task.ProjectID, func([]int64) int { return to })

	case Indent:
		sibs := a.Siblings(task)
		idx := indexOf(sibs, task.ID)
		if idx <= 0 {
			return unchanged(a, task), nil
		}
		prev, _ := a.Get(sibs[idx-1])
		return place(a, task, model.Ref(prev.ID), prev.ProjectID, atEnd)

	case Unindent:
		parentID, ok := a.Parent(task.ID)
		if !ok {
			return unchanged(a, task), nil
		}
		return place(a, task, effectiveParent(a, parentID), task.ProjectID, after(parentID))

	case Reparent:
		if req.ParentID == nil {
			return place(a, task, nil, task.ProjectID, atEnd)
		}
		p, err := checkParent(a, task, *req.ParentID)
		if err != nil {
			return Placement{}, err
		}
		if cur, ok := a.Parent(task.ID); ok && cur == p.ID {
			return unchanged(a, task), nil
		}
		return place(a, task, model.Ref(p.ID), p.ProjectID, atEnd)
	}
	return Placement{}, fmt.Errorf("%w: unknown move %q", ErrInvalidRequest, req.Kind)
}

func checkParent(a *tasktree.Arena, task *model.Task, parentID int64) (*model.Task, error) {
	p, ok := a.Get(parentID)
	if !ok {
		return nil, NotFoundError{Kind: "parent task", ID: parentID}
	}
	if task != nil && (p.ID == task.ID || a.IsAncestor(task.ID, p.ID)) {
		return nil, fmt.Errorf("%w: task %d cannot become a child of %d", ErrCycle, task.ID, p.ID)
	}
	return p, nil
}

func effectiveParent(a *tasktree.Arena, id int64) *int64 {
	if p, ok := a.Parent(id); ok {
		return model.Ref(p)
	}
	return nil
}

func unchanged(a *tasktree.Arena, t *model.Task) Placement {
	return Placement{
		TaskID:    t.ID,
		ParentID:  effectiveParent(a, t.ID),
		ProjectID: t.ProjectID,
		SortKey:   t.SortKey,
	}
}

func indexOf(ids []int64, id int64) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}

func atEnd(rest []int64) int { return len(rest) }

func before(anchor int64) func([]int64) int {
	return func(rest []int64) int { return indexOf(rest, anchor) }
}

func after(anchor int64) func([]int64) int {
	return func(rest []int64) int {
		if i := indexOf(rest, anchor); i >= 0 {
			return i + 1
		}
		return len(rest)
	}
}

// place positions task in the (parent, project) sibling set. at receives the ordered
// sibling ids without the task and returns the insertion index.
func place(a *tasktree.Arena, task *model.Task, parent, project *int64, at func(rest []int64) int) (Placement, error) {
	movedID := newTaskID
	if task != nil {
		movedID = task.ID
	}

	var items []rank.Item
	for _, id := range a.Scope(parent, project) {
		t, _ := a.Get(id)
		items = append(items, rank.Item{ID: id, Key: rank.Normalize(t.SortKey)})
	}
	rank.Sort(items)
	rest := make([]int64, 0, len(items))
	for _, it := range items {
		if it.ID != movedID {
			rest = append(rest, it.ID)
		}
	}
	insertAt := at(rest)
	if insertAt < 0 {
		insertAt = len(rest)
	}

	plan, err := rank.PlanReorder(items, movedID, insertAt)
	if err != nil {
		return Placement{}, fmt.Errorf("plan sort key: %w", err)
	}

	out := Placement{ParentID: parent, ProjectID: project}
	if task != nil {
		out.TaskID = task.ID
		out.SortKey = task.SortKey
		out.Changed = !model.SameRef(effectiveParent(a, task.ID), parent) || !model.SameRef(task.ProjectID, project)
	}
	for id, k := range plan.Keys {
		if id == movedID {
			if task == nil || k != task.SortKey {
				out.Changed = true
			}
			out.SortKey = k
			continue
		}
		if out.Rebalanced == nil {
			out.Rebalanced = map[int64]string{}
		}
		out.Rebalanced[id] = k
		out.Changed = true
	}
	if out.SortKey == "" {
		// Same position, but the task never had a usable key.
		lower, upper := neighbourKeys(items, rest, insertAt)
		k, err := rank.KeyBetweenUnique(keySet(items, movedID), lower, upper)
		if err != nil {
			return Placement{}, fmt.Errorf("plan sort key: %w", err)
		}
		out.SortKey = k
		out.Changed = true
	}
	return out, nil
}

func keySet(items []rank.Item, exclude int64) map[string]bool {
	out := map[string]bool{}
	for _, it := range items {
		if it.ID != exclude && it.Key != "" {
			out[it.Key] = true
		}
	}
	return out
}

func neighbourKeys(items []rank.Item, rest []int64, insertAt int) (string, string) {
	keyOf := func(id int64) string {
		for _, it := range items {
			if it.ID == id {
				return it.Key
			}
		}
		return ""
	}
	lower, upper := "", ""
	if insertAt > 0 && insertAt-1 < len(rest) {
		lower = keyOf(rest[insertAt-1])
	}
	if insertAt < len(rest) {
		upper = keyOf(rest[insertAt])
	}
	return lower, upper
}
