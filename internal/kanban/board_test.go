package kanban

import (
	"errors"
	"testing"

	"github.com/zulandar/opsdeck/internal/tasktree"
)

func TestBoard_Bijection(t *testing.T) {
	b := DefaultBoard()
	cols := b.Columns()
	if len(cols) != len(tasktree.Statuses) {
		t.Fatalf("columns = %d, want %d", len(cols), len(tasktree.Statuses))
	}
	seen := map[tasktree.Status]bool{}
	for i, col := range cols {
		if col.Status != tasktree.Statuses[i] {
			t.Errorf("column %d status = %q, want %q", i, col.Status, tasktree.Statuses[i])
		}
		if seen[col.Status] {
			t.Errorf("status %q mapped twice", col.Status)
		}
		seen[col.Status] = true

		s, err := b.StatusFor(col.ID)
		if err != nil || s != col.Status {
			t.Errorf("StatusFor(%q) = %q, %v", col.ID, s, err)
		}
		c, err := b.ColumnFor(col.Status)
		if err != nil || c != col.ID {
			t.Errorf("ColumnFor(%q) = %q, %v", col.Status, c, err)
		}
	}
}

func TestBoard_Unknown(t *testing.T) {
	b := DefaultBoard()
	if _, err := b.StatusFor("archived"); !errors.Is(err, ErrInvalidColumn) {
		t.Errorf("StatusFor(archived) err = %v, want ErrInvalidColumn", err)
	}
	if _, err := b.ColumnFor("done"); !errors.Is(err, tasktree.ErrInvalidStatus) {
		t.Errorf("ColumnFor(done) err = %v, want ErrInvalidStatus", err)
	}
}

func TestNewBoard_Titles(t *testing.T) {
	b, err := NewBoard(map[tasktree.Status]string{tasktree.StatusInReview: "QA"})
	if err != nil {
		t.Fatalf("NewBoard: %v", err)
	}
	for _, col := range b.Columns() {
		if col.Status == tasktree.StatusInReview && col.Title != "QA" {
			t.Errorf("in-review title = %q, want QA", col.Title)
		}
		if col.Status == tasktree.StatusBlocked && col.Title != "Blocked" {
			t.Errorf("blocked title = %q, want default", col.Title)
		}
	}

	if _, err := NewBoard(map[tasktree.Status]string{"done": "Done"}); !errors.Is(err, tasktree.ErrInvalidStatus) {
		t.Errorf("NewBoard(done) err = %v, want ErrInvalidStatus", err)
	}
}

func TestBoard_Lanes(t *testing.T) {
	tree := tasktree.Tree{
		{Task: tasktree.Task{ID: "a", Status: tasktree.StatusBlocked}, Subtasks: []tasktree.Branch{
			{Task: tasktree.Task{ID: "a.1", Status: tasktree.StatusCompleted}},
		}},
		{Task: tasktree.Task{ID: "b", Status: tasktree.StatusNotStarted}},
		{Task: tasktree.Task{ID: "c", Status: tasktree.StatusBlocked}},
	}
	lanes := DefaultBoard().Lanes(tree)

	got := map[tasktree.Status][]string{}
	total := 0
	for _, l := range lanes {
		if l.Tasks == nil {
			t.Errorf("lane %q has nil tasks", l.Column.ID)
		}
		for _, r := range l.Tasks {
			got[l.Column.Status] = append(got[l.Column.Status], r.ID)
			total++
		}
	}
	if total != 3 {
		t.Errorf("placed %d tasks, want 3 roots only", total)
	}
	if ids := got[tasktree.StatusBlocked]; len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
		t.Errorf("blocked lane = %v, want [a c]", ids)
	}
	if len(got[tasktree.StatusCompleted]) != 0 {
		t.Errorf("subtask placed on board: %v", got[tasktree.StatusCompleted])
	}
}
