// Package query builds task predicates and comparators from filter and
// sort specifications and applies them to the root level of a tree.
package query

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zulandar/opsdeck/internal/rollup"
	"github.com/zulandar/opsdeck/internal/tasktree"
)

// ErrInvalidFilter is returned for a malformed FilterSpec.
var ErrInvalidFilter = errors.New("invalid filter")

// MinSearchLen is the shortest search query that filters anything.
const MinSearchLen = 2

// FilterSpec selects tasks. Empty fields do not filter.
type FilterSpec struct {
	Search      string              `json:"search,omitempty" form:"q"`
	Statuses    []tasktree.Status   `json:"statuses,omitempty" form:"status"`
	Priorities  []tasktree.Priority `json:"priorities,omitempty" form:"priority"`
	AssigneeIDs []string            `json:"assignee_ids,omitempty" form:"assignee"`
	ProjectIDs  []string            `json:"project_ids,omitempty" form:"project"`
	Due         rollup.Bucket       `json:"due,omitempty" form:"due"`
}

// Validate rejects enum values outside their closed sets.
func (f FilterSpec) Validate() error {
	var errs []string
	for _, s := range f.Statuses {
		if !s.Valid() {
			errs = append(errs, fmt.Sprintf("unknown status %q", s))
		}
	}
	for _, p := range f.Priorities {
		if !p.Valid() {
			errs = append(errs, fmt.Sprintf("unknown priority %q", p))
		}
	}
	if !f.Due.Valid() {
		errs = append(errs, fmt.Sprintf("unknown due bucket %q", f.Due))
	}
	if len(errs) > 0 {
		return fmt.Errorf("query: %w: %s", ErrInvalidFilter, strings.Join(errs, "; "))
	}
	return nil
}

// SearchTerm returns the normalized search query, or "" when the query is
// too short to filter.
func (f FilterSpec) SearchTerm() string {
	q := strings.TrimSpace(f.Search)
	if len([]rune(q)) < MinSearchLen {
		return ""
	}
	return strings.ToLower(q)
}

// IsZero reports whether the spec filters nothing.
func (f FilterSpec) IsZero() bool {
	return f.SearchTerm() == "" && len(f.Statuses) == 0 && len(f.Priorities) == 0 &&
		len(f.AssigneeIDs) == 0 && len(f.ProjectIDs) == 0 && f.Due == rollup.BucketNone
}

// Directory resolves assignee ids to display names.
type Directory interface {
	DisplayName(assigneeID string) (string, bool)
}

// DirectoryMap is a Directory backed by a map.
type DirectoryMap map[string]string

// DisplayName implements Directory.
func (d DirectoryMap) DisplayName(id string) (string, bool) {
	name, ok := d[id]
	return name, ok
}

// Env is everything a filter or sort depends on besides the tasks
// themselves. It is passed explicitly so results depend only on inputs.
type Env struct {
	Calendar  rollup.Calendar
	Directory Directory
}

// AssigneeName is the display name of the task's assignee: the directory
// entry when there is one, otherwise the name carried on the task.
func (e Env) AssigneeName(t tasktree.Task) string {
	if t.Unassigned() {
		return ""
	}
	if e.Directory != nil {
		if name, ok := e.Directory.DisplayName(t.Assignee.ID); ok {
			return name
		}
	}
	return t.Assignee.Name
}

// BuildFilter returns the conjunction of every predicate the spec enables.
func BuildFilter(spec FilterSpec, env Env) (rollup.Predicate, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var preds []rollup.Predicate
	if q := spec.SearchTerm(); q != "" {
		preds = append(preds, func(t tasktree.Task) bool {
			return strings.Contains(strings.ToLower(t.Name), q) ||
				strings.Contains(strings.ToLower(t.Description), q) ||
				strings.Contains(strings.ToLower(env.AssigneeName(t)), q)
		})
	}
	if len(spec.Statuses) > 0 {
		set := slices.Clone(spec.Statuses)
		preds = append(preds, func(t tasktree.Task) bool { return slices.Contains(set, t.Status) })
	}
	if len(spec.Priorities) > 0 {
		set := slices.Clone(spec.Priorities)
		preds = append(preds, func(t tasktree.Task) bool { return slices.Contains(set, t.Priority) })
	}
	if len(spec.AssigneeIDs) > 0 {
		set := slices.Clone(spec.AssigneeIDs)
		preds = append(preds, func(t tasktree.Task) bool {
			return !t.Unassigned() && slices.Contains(set, t.Assignee.ID)
		})
	}
	if len(spec.ProjectIDs) > 0 {
		set := slices.Clone(spec.ProjectIDs)
		preds = append(preds, func(t tasktree.Task) bool { return slices.Contains(set, t.ProjectID) })
	}
	if spec.Due != rollup.BucketNone {
		preds = append(preds, rollup.DueIn(env.Calendar, spec.Due))
	}
	return rollup.And(preds...), nil
}
