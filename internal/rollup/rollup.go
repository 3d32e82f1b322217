// Package rollup computes counts and statistics over a task tree. Every
// reducer is pure and walks the tree once, depth first.
package rollup

import (
	"github.com/zulandar/opsdeck/internal/tasktree"
)

// Predicate tests a single task.
type Predicate func(tasktree.Task) bool

// CountNode returns 1 if pred holds at n, plus the counts of n's children.
func CountNode(n tasktree.Node, pred Predicate) int {
	c := 0
	if pred(n.Data()) {
		c = 1
	}
	for _, child := range n.Children() {
		c += CountNode(child, pred)
	}
	return c
}

// Count sums CountNode over every root of the tree.
func Count(t tasktree.Tree, pred Predicate) int {
	c := 0
	for _, r := range t {
		c += CountNode(r, pred)
	}
	return c
}

// Any matches every task.
func Any() Predicate {
	return func(tasktree.Task) bool { return true }
}

// HasStatus matches tasks in status s.
func HasStatus(s tasktree.Status) Predicate {
	return func(t tasktree.Task) bool { return t.Status == s }
}

// HasPriority matches tasks with priority p.
func HasPriority(p tasktree.Priority) Predicate {
	return func(t tasktree.Task) bool { return t.Priority == p }
}

// Unassigned matches tasks with no assignee.
func Unassigned() Predicate {
	return func(t tasktree.Task) bool { return t.Unassigned() }
}

// DueIn matches open tasks whose due date falls in bucket b.
func DueIn(cal Calendar, b Bucket) Predicate {
	return func(t tasktree.Task) bool {
		if b == BucketNone {
			return false
		}
		return cal.InBucket(b, t.DueDate, t.Status == tasktree.StatusCompleted)
	}
}

// DueToday matches open tasks due today.
func DueToday(cal Calendar) Predicate { return DueIn(cal, BucketToday) }

// DueThisWeek matches open tasks due between today and the end of the week.
func DueThisWeek(cal Calendar) Predicate { return DueIn(cal, BucketThisWeek) }

// Overdue matches open tasks due before today.
func Overdue(cal Calendar) Predicate { return DueIn(cal, BucketOverdue) }

// And combines predicates; an empty list matches everything.
func And(preds ...Predicate) Predicate {
	return func(t tasktree.Task) bool {
		for _, p := range preds {
			if !p(t) {
				return false
			}
		}
		return true
	}
}

// Stats holds the dashboard tiles.
type Stats struct {
	Total       int                     `json:"total"`
	ByStatus    map[tasktree.Status]int `json:"by_status"`
	DueToday    int                     `json:"due_today"`
	DueThisWeek int                     `json:"due_this_week"`
	Overdue     int                     `json:"overdue"`
	Unassigned  int                     `json:"unassigned"`
}

// Compute returns the statistics of every node in the tree.
func Compute(t tasktree.Tree, cal Calendar) Stats {
	s := Stats{
		Total:       t.Len(),
		ByStatus:    make(map[tasktree.Status]int, len(tasktree.Statuses)),
		DueToday:    Count(t, DueToday(cal)),
		DueThisWeek: Count(t, DueThisWeek(cal)),
		Overdue:     Count(t, Overdue(cal)),
		Unassigned:  Count(t, Unassigned()),
	}
	for _, st := range tasktree.Statuses {
		s.ByStatus[st] = Count(t, HasStatus(st))
	}
	return s
}
