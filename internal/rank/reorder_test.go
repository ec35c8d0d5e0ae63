package rank

import "testing"

func applyPlan(sibs []Item, p Plan) []Item {
	out := append([]Item{}, sibs...)
	for i := range out {
		if k, ok := p.Keys[out[i].ID]; ok {
			out[i].Key = k
		}
	}
	Sort(out)
	return out
}

func ids(items []Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
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

func TestPlanReorder_FastPathOnlyRekeysMovedItem(t *testing.T) {
	sibs := []Item{{1, "a"}, {2, "c"}, {3, "e"}}
	p, err := PlanReorder(sibs, 3, 0)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p.UsedFallback {
		t.Fatalf("expected fast path")
	}
	if len(p.Keys) != 1 {
		t.Fatalf("expected one key update, got %v", p.Keys)
	}
	got := ids(applyPlan(sibs, p))
	if want := []int64{3, 1, 2}; !equalIDs(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestPlanReorder_NoOpWhenPositionUnchanged(t *testing.T) {
	sibs := []Item{{1, "a"}, {2, "c"}}
	p, err := PlanReorder(sibs, 2, 1)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(p.Keys) != 0 {
		t.Fatalf("expected no updates, got %v", p.Keys)
	}
}

func TestPlanReorder_InsertsNewItem(t *testing.T) {
	sibs := []Item{{1, "a"}, {2, "c"}}
	p, err := PlanReorder(sibs, 9, 1)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	k, ok := p.Keys[9]
	if !ok || !("a" < k && k < "c") {
		t.Fatalf("expected key between a and c, got %q", k)
	}
}

func TestPlanReorder_DuplicateNeighborsRebalanceWindow(t *testing.T) {
	// Items 2 and 3 collide; inserting between them has no usable bounds.
	sibs := []Item{{1, "a"}, {2, "m"}, {3, "m"}, {4, "x"}}
	p, err := PlanReorder(sibs, 9, 2)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !p.UsedFallback {
		t.Fatalf("expected fallback rebalance")
	}
	all := append(append([]Item{}, sibs...), Item{ID: 9})
	got := applyPlan(all, p)
	if want := []int64{1, 2, 9, 3, 4}; !equalIDs(ids(got), want) {
		t.Fatalf("order = %v, want %v", ids(got), want)
	}
	seen := map[string]bool{}
	for _, it := range got {
		if seen[it.Key] {
			t.Fatalf("duplicate key after rebalance: %q", it.Key)
		}
		seen[it.Key] = true
	}
	if p.Keys[1] != "" || p.Keys[4] != "" {
		t.Fatalf("expected outer siblings untouched, got %v", p.Keys)
	}
}
