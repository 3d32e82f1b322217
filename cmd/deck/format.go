package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/zulandar/opsdeck/internal/models"
	"github.com/zulandar/opsdeck/internal/rollup"
	"github.com/zulandar/opsdeck/internal/tasktree"
)

// writeTaskRow writes one tab-separated row, indenting subtasks by level.
func writeTaskRow(w io.Writer, n tasktree.Node, cal rollup.Calendar) {
	t := n.Data()
	indent := strings.Repeat("  ", int(n.Level()))
	fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\t%s\t%d%%\n",
		indent, t.ID,
		truncate(t.Name, 40),
		t.Status,
		t.Priority,
		assigneeName(t),
		formatDue(t, cal),
		tasktree.Progress(n),
	)
}

func writeTaskDetail(out io.Writer, n tasktree.Node, cal rollup.Calendar, history []models.StatusChange) {
	t := n.Data()
	fmt.Fprintf(out, "ID:          %s\n", t.ID)
	fmt.Fprintf(out, "Name:        %s\n", t.Name)
	fmt.Fprintf(out, "Level:       %d\n", n.Level())
	fmt.Fprintf(out, "Status:      %s\n", t.Status)
	fmt.Fprintf(out, "Priority:    %s\n", t.Priority)
	fmt.Fprintf(out, "Assignee:    %s\n", orDash(assigneeName(t)))
	fmt.Fprintf(out, "Project:     %s\n", orDash(t.ProjectID))
	fmt.Fprintf(out, "Due:         %s\n", formatDue(t, cal))
	fmt.Fprintf(out, "Progress:    %d%%\n", tasktree.Progress(n))
	fmt.Fprintf(out, "Created:     %s\n", t.CreatedAt.Format(time.DateTime))
	fmt.Fprintf(out, "Updated:     %s\n", t.UpdatedAt.Format(time.DateTime))
	if t.ExternalLink != "" {
		fmt.Fprintf(out, "Link:        %s\n", t.ExternalLink)
	}
	if t.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n  %s\n", t.Description)
	}

	if kids := n.Children(); len(kids) > 0 {
		fmt.Fprintf(out, "\nSubtasks (%d):\n", len(kids))
		for _, k := range kids {
			d := k.Data()
			fmt.Fprintf(out, "  %s  [%s]  %s\n", d.ID, d.Status, d.Name)
		}
	}

	if len(history) > 0 {
		fmt.Fprintln(out, "\nHistory:")
		for _, h := range history {
			fmt.Fprintf(out, "  %s  %s -> %s\n", h.CreatedAt.Format(time.DateTime), h.FromStatus, h.ToStatus)
		}
	}
}

func assigneeName(t tasktree.Task) string {
	if t.Unassigned() {
		return ""
	}
	if t.Assignee.Name != "" {
		return t.Assignee.Name
	}
	return t.Assignee.ID
}

// formatDue renders the due date with its bucket, e.g. "2026-10-12 (overdue)".
func formatDue(t tasktree.Task, cal rollup.Calendar) string {
	if t.DueDate == nil {
		return "-"
	}
	s := t.DueDate.Format(time.DateOnly)
	if b := cal.Classify(t.DueDate, t.Status == tasktree.StatusCompleted); b != rollup.BucketNone {
		s += " (" + string(b) + ")"
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to max runes, ending with an ellipsis when cut.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
