package rank

import (
	"errors"
	"sort"
)

// Item is one member of a sibling set.
type Item struct {
	ID  int64
	Key string
}

// Plan describes the key updates needed to place an item in a sibling set.
// Keys includes only items whose keys should change.
type Plan struct {
	Keys         map[int64]string
	WindowIDs    []int64 // IDs rekeyed by the fallback path, in final order
	UsedFallback bool
}

// Sort orders items by key, then id.
func Sort(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Key != items[j].Key {
			return items[i].Key < items[j].Key
		}
		return items[i].ID < items[j].ID
	})
}

// PlanReorder plans key updates for placing movedID at index insertAt of the sibling
// list *without* the moved item. movedID does not need to be a current member: new or
// reparented items are inserted the same way.
//
// It prefers changing only the moved item's key. When its immediate neighbors are not
// usable bounds (duplicate keys, or keys that cannot be bisected) the smallest
// contiguous window around the insertion point is rekeyed instead.
func PlanReorder(sibs []Item, movedID int64, insertAt int) (Plan, error) {
	if movedID == 0 {
		return Plan{}, errors.New("missing moved id")
	}
	cur := append([]Item{}, sibs...)
	for i := range cur {
		cur[i].Key = Normalize(cur[i].Key)
	}
	Sort(cur)

	movedIdx := -1
	moved := Item{ID: movedID}
	rest := make([]Item, 0, len(cur))
	for i, it := range cur {
		if it.ID == movedID {
			movedIdx = i
			moved = it
			continue
		}
		rest = append(rest, it)
	}

	if insertAt < 0 {
		insertAt = 0
	}
	if insertAt > len(rest) {
		insertAt = len(rest)
	}
	if movedIdx >= 0 && movedIdx == insertAt {
		return Plan{Keys: map[int64]string{}}, nil
	}
	// When moving up, rebalance towards the displaced neighbor(s) on the right.
	preferRight := movedIdx < 0 || insertAt < movedIdx

	final := make([]Item, 0, len(rest)+1)
	final = append(final, rest[:insertAt]...)
	final = append(final, moved)
	final = append(final, rest[insertAt:]...)

	existing := existingKeys(final, map[int64]bool{movedID: true})
	if k, ok := keyBetweenNeighbors(existing, final, insertAt); ok {
		if k == moved.Key {
			return Plan{Keys: map[int64]string{}}, nil
		}
		return Plan{Keys: map[int64]string{movedID: k}}, nil
	}

	lo, hi := minimalValidWindow(final, insertAt, preferRight)
	lower, upper := "", ""
	if lo > 0 {
		lower = final[lo-1].Key
	}
	if hi+1 < len(final) {
		upper = final[hi+1].Key
	}

	keys, err := KeysBetween(lower, upper, hi-lo+1)
	if err != nil {
		return Plan{}, err
	}
	res := Plan{
		Keys:         map[int64]string{},
		WindowIDs:    make([]int64, 0, hi-lo+1),
		UsedFallback: true,
	}
	for i := lo; i <= hi; i++ {
		res.Keys[final[i].ID] = keys[i-lo]
		res.WindowIDs = append(res.WindowIDs, final[i].ID)
	}
	return res, nil
}

func usable(k string) bool {
	return k != "" && Validate(k) == nil
}

func existingKeys(items []Item, exclude map[int64]bool) map[string]bool {
	out := map[string]bool{}
	for _, it := range items {
		if exclude[it.ID] || it.Key == "" {
			continue
		}
		out[it.Key] = true
	}
	return out
}

// keyBetweenNeighbors computes a key for final[idx] from its immediate neighbors.
// ok is false when the neighbors cannot serve as bounds.
func keyBetweenNeighbors(existing map[string]bool, final []Item, idx int) (string, bool) {
	lower, upper := "", ""
	if idx > 0 {
		lower = final[idx-1].Key
		if !usable(lower) {
			return "", false
		}
	}
	if idx+1 < len(final) {
		upper = final[idx+1].Key
		if !usable(upper) {
			return "", false
		}
	}
	if lower != "" && upper != "" && lower >= upper {
		return "", false
	}
	k, err := KeyBetweenUnique(existing, lower, upper)
	if err != nil {
		return "", false
	}
	return k, true
}

// minimalValidWindow finds the smallest window [lo, hi] containing idx whose outer
// bounds are open-ended or strictly increasing usable keys.
//
// Among windows of equal size, preferRight tries windows extending right of idx first.
func minimalValidWindow(final []Item, idx int, preferRight bool) (lo, hi int) {
	valid := func(lo, hi int) bool {
		lower, upper := "", ""
		if lo > 0 {
			lower = final[lo-1].Key
			if !usable(lower) {
				return false
			}
		}
		if hi+1 < len(final) {
			upper = final[hi+1].Key
			if !usable(upper) {
				return false
			}
		}
		if lower == "" || upper == "" {
			return true
		}
		return lower < upper
	}

	for size := 1; size <= len(final); size++ {
		startMin := idx - (size - 1)
		if startMin < 0 {
			startMin = 0
		}
		startMax := idx
		if startMax+size > len(final) {
			startMax = len(final) - size
		}
		if preferRight {
			for lo := startMax; lo >= startMin; lo-- {
				if valid(lo, lo+size-1) {
					return lo, lo + size - 1
				}
			}
		} else {
			for lo := startMin; lo <= startMax; lo++ {
				if valid(lo, lo+size-1) {
					return lo, lo + size - 1
				}
			}
		}
	}
	return 0, len(final) - 1
}
