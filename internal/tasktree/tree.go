package tasktree

import (
	"iter"
	"slices"
)

// Level is the depth of a node: 0 for root tasks, 1 for subtasks, 2 for
// sub-subtasks.
type Level int

const (
	LevelRoot   Level = 0
	LevelBranch Level = 1
	LevelLeaf   Level = 2
)

// MaxDepth is the number of levels a tree may have.
const MaxDepth = 3

// Node is one of Root, Branch or Leaf. The level is fixed by the variant,
// so a leaf cannot own children and a root cannot have a parent.
type Node interface {
	Data() Task
	Level() Level
	Children() []Node
	isNode()
}

// Root is a level-0 task. Only roots are placed on the board.
type Root struct {
	Task
	Subtasks []Branch `json:"subtasks,omitempty"`
}

// Branch is a level-1 subtask.
type Branch struct {
	Task
	Subtasks []Leaf `json:"subtasks,omitempty"`
}

// Leaf is a level-2 sub-subtask.
type Leaf struct {
	Task
}

func (r Root) Data() Task   { return r.Task }
func (b Branch) Data() Task { return b.Task }
func (l Leaf) Data() Task   { return l.Task }

func (Root) Level() Level   { return LevelRoot }
func (Branch) Level() Level { return LevelBranch }
func (Leaf) Level() Level   { return LevelLeaf }

func (Root) isNode()   {}
func (Branch) isNode() {}
func (Leaf) isNode()   {}

func (r Root) Children() []Node {
	out := make([]Node, len(r.Subtasks))
	for i, b := range r.Subtasks {
		out[i] = b
	}
	return out
}

func (b Branch) Children() []Node {
	out := make([]Node, len(b.Subtasks))
	for i, l := range b.Subtasks {
		out[i] = l
	}
	return out
}

func (Leaf) Children() []Node { return nil }

// Tree is an ordered forest of root tasks. A Tree value is never mutated
// in place; every operation returns a new Tree that shares the subtrees it
// did not touch.
type Tree []Root

// All yields every node in pre-order, parents before their children. The
// sequence can be ranged over any number of times.
func (t Tree) All() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for _, r := range t {
			if !walk(r, yield) {
				return
			}
		}
	}
}

func walk(n Node, yield func(Node) bool) bool {
	if !yield(n) {
		return false
	}
	for _, c := range n.Children() {
		if !walk(c, yield) {
			return false
		}
	}
	return true
}

// Len returns the total number of nodes in the tree.
func (t Tree) Len() int {
	n := 0
	for range t.All() {
		n++
	}
	return n
}

// Flatten returns the task data of every node in pre-order.
func Flatten(t Tree) []Task {
	out := make([]Task, 0, len(t))
	for n := range t.All() {
		out = append(out, n.Data())
	}
	return out
}

// FindByID returns the first node with the given id in pre-order.
func FindByID(t Tree, id string) (Node, bool) {
	for n := range t.All() {
		if n.Data().ID == id {
			return n, true
		}
	}
	return nil, false
}

// FindRoot returns the root task with the given id. Subtasks are not
// considered.
func FindRoot(t Tree, id string) (Root, bool) {
	for _, r := range t {
		if r.ID == id {
			return r, true
		}
	}
	return Root{}, false
}

// Replace returns a tree in which the task with the given id is replaced by
// updater(task). Only the path from the root to the task is copied. An
// unknown id returns t unchanged.
func Replace(t Tree, id string, updater func(Task) Task) Tree {
	out, _ := ReplaceChecked(t, id, updater)
	return out
}

// ReplaceChecked is Replace that also reports whether a task was found.
// The updater cannot change the task id.
func ReplaceChecked(t Tree, id string, updater func(Task) Task) (Tree, bool) {
	for i, r := range t {
		nr, ok := r.replace(id, updater)
		if !ok {
			continue
		}
		out := slices.Clone(t)
		out[i] = nr
		return out, true
	}
	return t, false
}

func apply(t Task, updater func(Task) Task) Task {
	id := t.ID
	t = updater(t)
	t.ID = id
	return t
}

func (r Root) replace(id string, updater func(Task) Task) (Root, bool) {
	if r.ID == id {
		r.Task = apply(r.Task, updater)
		return r, true
	}
	for i, b := range r.Subtasks {
		nb, ok := b.replace(id, updater)
		if !ok {
			continue
		}
		subs := slices.Clone(r.Subtasks)
		subs[i] = nb
		r.Subtasks = subs
		return r, true
	}
	return r, false
}

func (b Branch) replace(id string, updater func(Task) Task) (Branch, bool) {
	if b.ID == id {
		b.Task = apply(b.Task, updater)
		return b, true
	}
	for i, l := range b.Subtasks {
		if l.ID != id {
			continue
		}
		subs := slices.Clone(b.Subtasks)
		subs[i] = Leaf{Task: apply(l.Task, updater)}
		b.Subtasks = subs
		return b, true
	}
	return b, false
}

// Remove returns a tree without the task with the given id and without its
// subtree. The remote store is not touched.
func Remove(t Tree, id string) (Tree, bool) {
	for i, r := range t {
		if r.ID == id {
			out := make(Tree, 0, len(t)-1)
			out = append(out, t[:i]...)
			return append(out, t[i+1:]...), true
		}
		nr, ok := r.remove(id)
		if !ok {
			continue
		}
		out := slices.Clone(t)
		out[i] = nr
		return out, true
	}
	return t, false
}

func (r Root) remove(id string) (Root, bool) {
	for i, b := range r.Subtasks {
		if b.ID == id {
			r.Subtasks = slices.Concat(r.Subtasks[:i], r.Subtasks[i+1:])
			return r, true
		}
		nb, ok := b.remove(id)
		if !ok {
			continue
		}
		subs := slices.Clone(r.Subtasks)
		subs[i] = nb
		r.Subtasks = subs
		return r, true
	}
	return r, false
}

func (b Branch) remove(id string) (Branch, bool) {
	for i, l := range b.Subtasks {
		if l.ID == id {
			b.Subtasks = slices.Concat(b.Subtasks[:i], b.Subtasks[i+1:])
			return b, true
		}
	}
	return b, false
}
