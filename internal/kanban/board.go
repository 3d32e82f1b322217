// Package kanban projects root tasks onto board columns and mediates
// drag-and-drop status changes against a remote store with optimistic
// local updates.
package kanban

import (
	"errors"
	"fmt"

	"github.com/zulandar/opsdeck/internal/tasktree"
)

var (
	// ErrInvalidColumn is returned for a column that maps to no status.
	ErrInvalidColumn = errors.New("invalid column")
	// ErrTaskNotFound is returned when a move names a task that is not a
	// root of the current snapshot. Nothing is mutated.
	ErrTaskNotFound = errors.New("task not on board")
)

// Column identifies a board lane.
type Column string

// ColumnInfo describes one lane.
type ColumnInfo struct {
	ID     Column          `json:"id"`
	Title  string          `json:"title"`
	Status tasktree.Status `json:"status"`
}

// Board is the ordered, one-to-one mapping between columns and statuses.
// Column order follows status order.
type Board struct {
	columns []ColumnInfo
}

var defaultTitles = map[tasktree.Status]string{
	tasktree.StatusNotStarted: "Not Started",
	tasktree.StatusInProgress: "In Progress",
	tasktree.StatusInReview:   "In Review",
	tasktree.StatusBlocked:    "Blocked",
	tasktree.StatusCompleted:  "Completed",
}

// DefaultBoard has one column per status, identified by the status value.
func DefaultBoard() Board {
	b, _ := NewBoard(nil)
	return b
}

// NewBoard builds a board with optional custom titles. Column ids are
// always the status values, which keeps the mapping a bijection.
func NewBoard(titles map[tasktree.Status]string) (Board, error) {
	for s := range titles {
		if !s.Valid() {
			return Board{}, fmt.Errorf("kanban: title for %w: %q", tasktree.ErrInvalidStatus, s)
		}
	}
	cols := make([]ColumnInfo, len(tasktree.Statuses))
	for i, s := range tasktree.Statuses {
		title := titles[s]
		if title == "" {
			title = defaultTitles[s]
		}
		cols[i] = ColumnInfo{ID: Column(s), Title: title, Status: s}
	}
	return Board{columns: cols}, nil
}

// Columns returns the lanes in display order.
func (b Board) Columns() []ColumnInfo {
	out := make([]ColumnInfo, len(b.columns))
	copy(out, b.columns)
	return out
}

// StatusFor resolves a column to its status.
func (b Board) StatusFor(c Column) (tasktree.Status, error) {
	for _, col := range b.columns {
		if col.ID == c {
			return col.Status, nil
		}
	}
	return "", fmt.Errorf("kanban: %w: %q", ErrInvalidColumn, c)
}

// ColumnFor resolves a status to its column.
func (b Board) ColumnFor(s tasktree.Status) (Column, error) {
	for _, col := range b.columns {
		if col.Status == s {
			return col.ID, nil
		}
	}
	return "", fmt.Errorf("kanban: no column for %w: %q", tasktree.ErrInvalidStatus, s)
}

// Lane is one column and the root tasks placed in it.
type Lane struct {
	Column ColumnInfo      `json:"column"`
	Tasks  []tasktree.Root `json:"tasks"`
}

// Lanes places every root task in the column of its status. Placement is a
// pure function of status; subtasks are never placed. Within a lane the
// tree order is kept.
func (b Board) Lanes(t tasktree.Tree) []Lane {
	lanes := make([]Lane, len(b.columns))
	idx := make(map[tasktree.Status]int, len(b.columns))
	for i, col := range b.columns {
		lanes[i] = Lane{Column: col, Tasks: []tasktree.Root{}}
		idx[col.Status] = i
	}
	for _, r := range t {
		i, ok := idx[r.Status]
		if !ok {
			continue
		}
		lanes[i].Tasks = append(lanes[i].Tasks, r)
	}
	return lanes
}
