package query

import (
	"cmp"
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/opsdeck/internal/tasktree"
)

// ErrInvalidSort is returned for an unknown sort field or direction.
var ErrInvalidSort = errors.New("invalid sort")

// SortField names a sortable task attribute.
type SortField string

const (
	SortNone      SortField = ""
	SortName      SortField = "name"
	SortDueDate   SortField = "due_date"
	SortPriority  SortField = "priority"
	SortStatus    SortField = "status"
	SortAssignee  SortField = "assignee"
	SortCreatedAt SortField = "created_at"
	SortUpdatedAt SortField = "updated_at"
)

// SortFields lists every sortable field.
var SortFields = []SortField{SortName, SortDueDate, SortPriority, SortStatus, SortAssignee, SortCreatedAt, SortUpdatedAt}

// Direction is ascending or descending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortSpec is a field and a direction. The zero value keeps the input
// order.
type SortSpec struct {
	Field     SortField `json:"field,omitempty" form:"sort"`
	Direction Direction `json:"direction,omitempty" form:"dir"`
}

// Comparator orders two tasks the way slices.SortFunc expects.
type Comparator func(a, b tasktree.Task) int

// BuildSort returns the comparator for field and direction. An empty
// direction is ascending. Ties fall back to the task id so the order is
// total. Tasks without a due date sort after dated ones in both
// directions.
func BuildSort(field SortField, dir Direction, env Env) (Comparator, error) {
	if dir == "" {
		dir = Asc
	}
	if dir != Asc && dir != Desc {
		return nil, fmt.Errorf("query: %w: direction %q", ErrInvalidSort, dir)
	}

	var key Comparator
	switch field {
	case SortNone:
		return nil, nil
	case SortName:
		key = func(a, b tasktree.Task) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	case SortDueDate:
		return withMissingLast(dir), nil
	case SortPriority:
		key = func(a, b tasktree.Task) int { return cmp.Compare(a.Priority.Rank(), b.Priority.Rank()) }
	case SortStatus:
		key = func(a, b tasktree.Task) int { return cmp.Compare(a.Status.Rank(), b.Status.Rank()) }
	case SortAssignee:
		key = func(a, b tasktree.Task) int {
			return cmp.Compare(strings.ToLower(env.AssigneeName(a)), strings.ToLower(env.AssigneeName(b)))
		}
	case SortCreatedAt:
		key = func(a, b tasktree.Task) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case SortUpdatedAt:
		key = func(a, b tasktree.Task) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	default:
		return nil, fmt.Errorf("query: %w: field %q", ErrInvalidSort, field)
	}

	return func(a, b tasktree.Task) int {
		c := key(a, b)
		if dir == Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}, nil
}

func withMissingLast(dir Direction) Comparator {
	return func(a, b tasktree.Task) int {
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return cmp.Compare(a.ID, b.ID)
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		c := a.DueDate.Compare(*b.DueDate)
		if dir == Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}
}
