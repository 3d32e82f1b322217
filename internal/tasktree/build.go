package tasktree

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTooDeep is returned when a task would sit below level 2.
	ErrTooDeep = errors.New("tree deeper than three levels")
	// ErrUnreachable is returned when a task's parent chain never reaches a
	// root (unknown parent or a cycle).
	ErrUnreachable = errors.New("task not reachable from a root")
	// ErrDuplicateID is returned when two items share an id.
	ErrDuplicateID = errors.New("duplicate task id")
)

// Item is a flat task record linked to its parent by id, as stored
// remotely. An empty ParentID marks a root.
type Item struct {
	Task
	ParentID string
}

// Build assembles a tree from flat items. Sibling order follows the input
// order. Every item must be reachable from a root within three levels.
func Build(items []Item) (Tree, error) {
	children := make(map[string][]Task)
	var roots []Task
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("tasktree: task %s: %w", it.ID, ErrDuplicateID)
		}
		seen[it.ID] = struct{}{}
		if !it.Status.Valid() {
			return nil, fmt.Errorf("tasktree: task %s: %w: %q", it.ID, ErrInvalidStatus, it.Status)
		}
		if !it.Priority.Valid() {
			return nil, fmt.Errorf("tasktree: task %s: %w: %q", it.ID, ErrInvalidPriority, it.Priority)
		}
		if it.ParentID == "" {
			roots = append(roots, it.Task)
			continue
		}
		children[it.ParentID] = append(children[it.ParentID], it.Task)
	}

	built := 0
	tree := make(Tree, 0, len(roots))
	for _, rt := range roots {
		root := Root{Task: rt}
		built++
		for _, bt := range children[rt.ID] {
			branch := Branch{Task: bt}
			built++
			for _, lt := range children[bt.ID] {
				if len(children[lt.ID]) > 0 {
					return nil, fmt.Errorf("tasktree: task %s: %w", children[lt.ID][0].ID, ErrTooDeep)
				}
				branch.Subtasks = append(branch.Subtasks, Leaf{Task: lt})
				built++
			}
			root.Subtasks = append(root.Subtasks, branch)
		}
		tree = append(tree, root)
	}

	if built != len(items) {
		return nil, fmt.Errorf("tasktree: %d of %d tasks: %w", len(items)-built, len(items), ErrUnreachable)
	}
	return tree, nil
}

// Items is the inverse of Build: it flattens a tree into parent-linked
// items in pre-order.
func Items(t Tree) []Item {
	var out []Item
	for _, r := range t {
		out = append(out, Item{Task: r.Task})
		for _, b := range r.Subtasks {
			out = append(out, Item{Task: b.Task, ParentID: r.ID})
			for _, l := range b.Subtasks {
				out = append(out, Item{Task: l.Task, ParentID: b.ID})
			}
		}
	}
	return out
}

// Progress values used when a task has neither stored progress nor children.
const (
	ProgressInProgress = 50
	ProgressInReview   = 90
)

// Progress returns the task's completion percentage. Stored progress wins.
// Otherwise a node with children reports the rounded share of its direct
// children that are completed, and a childless node maps its status.
func Progress(n Node) int {
	t := n.Data()
	if t.Progress != nil {
		return clampPercent(*t.Progress)
	}
	if kids := n.Children(); len(kids) > 0 {
		done := 0
		for _, k := range kids {
			if k.Data().Status == StatusCompleted {
				done++
			}
		}
		return int(math.Round(float64(done) * 100 / float64(len(kids))))
	}
	switch t.Status {
	case StatusCompleted:
		return 100
	case StatusInProgress:
		return ProgressInProgress
	case StatusInReview:
		return ProgressInReview
	default:
		return 0
	}
}

func clampPercent(p int) int {
	return max(0, min(100, p))
}
