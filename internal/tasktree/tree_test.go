package tasktree

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

// sampleTree builds:
//
//	t1 ─┬─ t1.1 ─┬─ t1.1.1
//	    │        └─ t1.1.2
//	    └─ t1.2
//	t2
func sampleTree() Tree {
	return Tree{
		{
			Task: Task{ID: "t1", Name: "Launch", Status: StatusInProgress, Priority: PriorityHigh},
			Subtasks: []Branch{
				{
					Task: Task{ID: "t1.1", Name: "Design", Status: StatusCompleted, Priority: PriorityMedium},
					Subtasks: []Leaf{
						{Task: Task{ID: "t1.1.1", Name: "Wireframes", Status: StatusCompleted, Priority: PriorityLow}},
						{Task: Task{ID: "t1.1.2", Name: "Review", Status: StatusNotStarted, Priority: PriorityLow}},
					},
				},
				{Task: Task{ID: "t1.2", Name: "Build", Status: StatusNotStarted, Priority: PriorityUrgent}},
			},
		},
		{Task: Task{ID: "t2", Name: "Payroll", Status: StatusBlocked, Priority: PriorityLow}},
	}
}

func ids(tasks []Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestFlatten_PreOrder(t *testing.T) {
	got := ids(Flatten(sampleTree()))
	want := []string{"t1", "t1.1", "t1.1.1", "t1.1.2", "t1.2", "t2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Flatten() = %v, want %v", got, want)
	}
}

func TestTreeAll_Restartable(t *testing.T) {
	tree := sampleTree()
	seq := tree.All()

	first, second := 0, 0
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	if first != 6 || second != 6 {
		t.Errorf("two passes yielded %d and %d nodes, want 6 and 6", first, second)
	}
}

func TestTreeAll_EarlyBreak(t *testing.T) {
	n := 0
	for range sampleTree().All() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}
}

func TestFindByID(t *testing.T) {
	tree := sampleTree()
	tests := []struct {
		id        string
		wantFound bool
		wantLevel Level
	}{
		{"t1", true, LevelRoot},
		{"t1.1", true, LevelBranch},
		{"t1.1.2", true, LevelLeaf},
		{"t2", true, LevelRoot},
		{"missing", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			n, ok := FindByID(tree, tt.id)
			if ok != tt.wantFound {
				t.Fatalf("FindByID(%q) found = %v, want %v", tt.id, ok, tt.wantFound)
			}
			if !ok {
				return
			}
			if n.Data().ID != tt.id {
				t.Errorf("ID = %q, want %q", n.Data().ID, tt.id)
			}
			if n.Level() != tt.wantLevel {
				t.Errorf("Level = %d, want %d", n.Level(), tt.wantLevel)
			}
		})
	}
}

func TestReplace_Leaf(t *testing.T) {
	tree := sampleTree()
	got := Replace(tree, "t1.1.2", func(task Task) Task {
		task.Status = StatusCompleted
		return task
	})

	n, ok := FindByID(got, "t1.1.2")
	if !ok {
		t.Fatal("t1.1.2 missing after Replace")
	}
	if n.Data().Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", n.Data().Status)
	}

	// The original is untouched.
	orig, _ := FindByID(tree, "t1.1.2")
	if orig.Data().Status != StatusNotStarted {
		t.Errorf("original mutated: Status = %q", orig.Data().Status)
	}
}

func TestReplace_SharesUntouchedSubtrees(t *testing.T) {
	tree := sampleTree()
	got := Replace(tree, "t1.2", func(task Task) Task {
		task.Name = "Build v2"
		return task
	})

	// Sibling subtree t1.1 keeps its backing array.
	if &got[0].Subtasks[0].Subtasks[0] != &tree[0].Subtasks[0].Subtasks[0] {
		t.Error("untouched subtree t1.1 was copied")
	}
	// Path to the target is rebuilt.
	if &got[0].Subtasks[0] == &tree[0].Subtasks[0] {
		t.Error("branch slice on the replaced path was not copied")
	}
}

func TestReplace_UnknownIDReturnsSameTree(t *testing.T) {
	tree := sampleTree()
	got, ok := ReplaceChecked(tree, "nope", func(task Task) Task {
		task.Name = "changed"
		return task
	})
	if ok {
		t.Error("ReplaceChecked reported a match for an unknown id")
	}
	if !reflect.DeepEqual(got, tree) {
		t.Error("tree changed after replacing an unknown id")
	}
}

func TestReplace_CannotChangeID(t *testing.T) {
	got := Replace(sampleTree(), "t2", func(task Task) Task {
		task.ID = "hijacked"
		return task
	})
	if _, ok := FindByID(got, "t2"); !ok {
		t.Error("t2 disappeared after updater changed the id")
	}
	if _, ok := FindByID(got, "hijacked"); ok {
		t.Error("updater was able to change the id")
	}
}

func TestRemove(t *testing.T) {
	tests := []struct {
		id   string
		want []string
	}{
		{"t1", []string{"t2"}},
		{"t1.1", []string{"t1", "t1.2", "t2"}},
		{"t1.1.1", []string{"t1", "t1.1", "t1.1.2", "t1.2", "t2"}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			tree := sampleTree()
			got, ok := Remove(tree, tt.id)
			if !ok {
				t.Fatalf("Remove(%q) reported not found", tt.id)
			}
			if gotIDs := ids(Flatten(got)); !reflect.DeepEqual(gotIDs, tt.want) {
				t.Errorf("after Remove(%q) = %v, want %v", tt.id, gotIDs, tt.want)
			}
			if tree.Len() != 6 {
				t.Errorf("original tree mutated: Len = %d", tree.Len())
			}
		})
	}
}

func TestRemove_Unknown(t *testing.T) {
	tree := sampleTree()
	got, ok := Remove(tree, "missing")
	if ok {
		t.Error("Remove reported success for unknown id")
	}
	if !reflect.DeepEqual(got, tree) {
		t.Error("tree changed")
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want int
	}{
		{"stored wins", Leaf{Task: Task{Status: StatusCompleted, Progress: intPtr(30)}}, 30},
		{"stored clamped", Leaf{Task: Task{Progress: intPtr(130)}}, 100},
		{"completed", Leaf{Task: Task{Status: StatusCompleted}}, 100},
		{"in progress", Leaf{Task: Task{Status: StatusInProgress}}, ProgressInProgress},
		{"in review", Leaf{Task: Task{Status: StatusInReview}}, ProgressInReview},
		{"blocked", Leaf{Task: Task{Status: StatusBlocked}}, 0},
		{"not started", Leaf{Task: Task{Status: StatusNotStarted}}, 0},
		{
			"half of children done",
			Root{
				Task: Task{Status: StatusInProgress},
				Subtasks: []Branch{
					{Task: Task{ID: "a", Status: StatusCompleted}},
					{Task: Task{ID: "b", Status: StatusNotStarted}},
				},
			},
			50,
		},
		{
			"one third rounds",
			Branch{
				Task: Task{Status: StatusNotStarted},
				Subtasks: []Leaf{
					{Task: Task{Status: StatusCompleted}},
					{Task: Task{Status: StatusBlocked}},
					{Task: Task{Status: StatusInReview}},
				},
			},
			33,
		},
		{
			"two thirds rounds up",
			Branch{
				Subtasks: []Leaf{
					{Task: Task{Status: StatusCompleted}},
					{Task: Task{Status: StatusCompleted}},
					{Task: Task{Status: StatusInReview}},
				},
			},
			67,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Progress(tt.node); got != tt.want {
				t.Errorf("Progress() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWithStatus_AdvancesUpdatedAt(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	task := Task{Status: StatusNotStarted, UpdatedAt: base}
	later := task.WithStatus(StatusCompleted, base.Add(time.Minute))
	if !later.UpdatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("UpdatedAt = %v, want %v", later.UpdatedAt, base.Add(time.Minute))
	}

	// A clock that stands still or runs backwards still advances.
	stale := task.WithStatus(StatusBlocked, base.Add(-time.Hour))
	if !stale.UpdatedAt.After(base) {
		t.Errorf("UpdatedAt = %v, want after %v", stale.UpdatedAt, base)
	}
	if task.Status != StatusNotStarted {
		t.Error("WithStatus mutated the receiver")
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses {
		got, err := ParseStatus(string(s))
		if err != nil || got != s {
			t.Errorf("ParseStatus(%q) = %q, %v", s, got, err)
		}
	}
	for _, raw := range []string{"", "done", "Completed", "in_progress"} {
		if _, err := ParseStatus(raw); !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("ParseStatus(%q) error = %v, want ErrInvalidStatus", raw, err)
		}
	}
}

func TestParsePriority(t *testing.T) {
	for i, p := range Priorities {
		if p.Rank() != i {
			t.Errorf("%q.Rank() = %d, want %d", p, p.Rank(), i)
		}
	}
	if _, err := ParsePriority("critical"); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("ParsePriority(critical) error = %v, want ErrInvalidPriority", err)
	}
}

func TestBuild(t *testing.T) {
	items := Items(sampleTree())
	got, err := Build(items)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !reflect.DeepEqual(got, sampleTree()) {
		t.Errorf("Build(Items(tree)) != tree")
	}
}

func TestBuild_Errors(t *testing.T) {
	ok := Task{Status: StatusNotStarted, Priority: PriorityLow}
	with := func(id string) Task {
		task := ok
		task.ID = id
		return task
	}

	tests := []struct {
		name  string
		items []Item
		want  error
	}{
		{
			name: "four levels",
			items: []Item{
				{Task: with("a")},
				{Task: with("b"), ParentID: "a"},
				{Task: with("c"), ParentID: "b"},
				{Task: with("d"), ParentID: "c"},
			},
			want: ErrTooDeep,
		},
		{
			name:  "unknown parent",
			items: []Item{{Task: with("a")}, {Task: with("b"), ParentID: "ghost"}},
			want:  ErrUnreachable,
		},
		{
			name:  "cycle",
			items: []Item{{Task: with("a"), ParentID: "b"}, {Task: with("b"), ParentID: "a"}},
			want:  ErrUnreachable,
		},
		{
			name:  "duplicate id",
			items: []Item{{Task: with("a")}, {Task: with("b"), ParentID: "a"}, {Task: with("b"), ParentID: "a"}},
			want:  ErrDuplicateID,
		},
		{
			name:  "duplicate root",
			items: []Item{{Task: with("a")}, {Task: with("a")}},
			want:  ErrDuplicateID,
		},
		{
			name:  "bad status",
			items: []Item{{Task: Task{ID: "a", Status: "done", Priority: PriorityLow}}},
			want:  ErrInvalidStatus,
		},
		{
			name:  "bad priority",
			items: []Item{{Task: Task{ID: "a", Status: StatusBlocked, Priority: "p0"}}},
			want:  ErrInvalidPriority,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.items)
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
		})
	}
}
