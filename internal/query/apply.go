package query

import (
	"slices"

	"github.com/zulandar/opsdeck/internal/rollup"
	"github.com/zulandar/opsdeck/internal/tasktree"
)

// Apply filters and sorts the root tasks of t. Subtasks are never matched
// or reordered here; a surviving root keeps its subtree as is. A nil
// predicate keeps every root and a nil comparator keeps the input order.
func Apply(t tasktree.Tree, pred rollup.Predicate, less Comparator) tasktree.Tree {
	out := make(tasktree.Tree, 0, len(t))
	for _, r := range t {
		if pred == nil || pred(r.Task) {
			out = append(out, r)
		}
	}
	if less != nil {
		slices.SortStableFunc(out, func(a, b tasktree.Root) int { return less(a.Task, b.Task) })
	}
	return out
}

// Run validates the specs and applies them to the roots of t.
func Run(t tasktree.Tree, filter FilterSpec, sort SortSpec, env Env) (tasktree.Tree, error) {
	pred, err := BuildFilter(filter, env)
	if err != nil {
		return nil, err
	}
	less, err := BuildSort(sort.Field, sort.Direction, env)
	if err != nil {
		return nil, err
	}
	return Apply(t, pred, less), nil
}

// Subtasks is the expanded view of one node: its direct children filtered
// and sorted on their own, independent of the top-level order.
func Subtasks(n tasktree.Node, pred rollup.Predicate, less Comparator) []tasktree.Node {
	var out []tasktree.Node
	for _, c := range n.Children() {
		if pred == nil || pred(c.Data()) {
			out = append(out, c)
		}
	}
	if less != nil {
		slices.SortStableFunc(out, func(a, b tasktree.Node) int { return less(a.Data(), b.Data()) })
	}
	return out
}
