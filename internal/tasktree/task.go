// Package tasktree holds the three-level task tree (task, subtask,
// sub-subtask) and its pure, non-mutating operations.
package tasktree

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidStatus is returned when a status value is outside the closed set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidPriority is returned when a priority value is outside the closed set.
	ErrInvalidPriority = errors.New("invalid priority")
)

// Status is the workflow state of a task.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusInReview   Status = "in-review"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
)

// Statuses lists every status in board order.
var Statuses = []Status{
	StatusNotStarted,
	StatusInProgress,
	StatusInReview,
	StatusBlocked,
	StatusCompleted,
}

// Valid reports whether s is one of the five known statuses.
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Rank is the presentation order of s, or -1 for an unknown status.
func (s Status) Rank() int {
	for i, v := range Statuses {
		if v == s {
			return i
		}
	}
	return -1
}

// ParseStatus converts a raw value to a Status. Unknown values are a
// data-integrity error.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("tasktree: %w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is one of the four known priorities.
func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// Rank orders priorities low < medium < high < urgent. Unknown is -1.
func (p Priority) Rank() int {
	for i, v := range Priorities {
		if v == p {
			return i
		}
	}
	return -1
}

// ParsePriority converts a raw value to a Priority.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(raw)
	if !p.Valid() {
		return "", fmt.Errorf("tasktree: %w: %q", ErrInvalidPriority, raw)
	}
	return p, nil
}

// Assignee is the person a task is assigned to.
type Assignee struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Task is the data carried by every node of the tree. Children live on the
// node variants, never on Task itself.
type Task struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Status          Status     `json:"status"`
	Priority        Priority   `json:"priority"`
	ProjectID       string     `json:"project_id,omitempty"`
	Assignee        *Assignee  `json:"assignee,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Progress        *int       `json:"progress,omitempty"`
	ExternalLink    string     `json:"external_link,omitempty"`
	AttachmentCount int        `json:"attachment_count"`
	CommentCount    int        `json:"comment_count"`
}

// Unassigned reports whether the task has no assignee.
func (t Task) Unassigned() bool {
	return t.Assignee == nil || t.Assignee.ID == ""
}

// WithStatus returns a copy of t with status s. UpdatedAt moves to now, or
// one nanosecond past the previous value if the clock has not advanced.
func (t Task) WithStatus(s Status, now time.Time) Task {
	t.Status = s
	t.UpdatedAt = Advance(t.UpdatedAt, now)
	return t
}

// Advance returns now if it is after prev, otherwise prev plus one
// nanosecond, so that timestamps never stand still or go backwards.
func Advance(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Nanosecond)
}
