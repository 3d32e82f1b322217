package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/opsdeck/internal/query"
	"github.com/zulandar/opsdeck/internal/rollup"
	"github.com/zulandar/opsdeck/internal/store"
	"github.com/zulandar/opsdeck/internal/tasktree"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
	}

	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskStatusCmd())
	cmd.AddCommand(newTaskUpdateCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var (
		opts     store.CreateOpts
		status   string
		priority string
		due      string
		start    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new task",
		Long:  "Creates a task at the end of its siblings. Use --parent to add a subtask; trees are at most three levels deep.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			opts.Status = tasktree.Status(status)
			opts.Priority = tasktree.Priority(priority)
			if opts.DueDate, err = parseDay(due); err != nil {
				return err
			}
			if opts.StartDate, err = parseDay(start); err != nil {
				return err
			}
			_, st, err := openStore(cmd)
			if err != nil {
				return err
			}
			t, err := st.Create(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created task %s\n", t.ID)
			if opts.ParentID != "" {
				fmt.Fprintf(out, "Parent: %s\n", opts.ParentID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "task name (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "task description")
	cmd.Flags().StringVar(&status, "status", "", "status (not-started, in-progress, in-review, blocked, completed)")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (low, medium, high, urgent)")
	cmd.Flags().StringVar(&opts.ParentID, "parent", "", "parent task ID")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project ID")
	cmd.Flags().StringVar(&opts.AssigneeID, "assignee", "", "assignee member ID")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.ExternalLink, "link", "", "external link")
	cmd.MarkFlagRequired("name")
	return cmd
}

// queryOpts holds the filter and sort flags shared by list and board.
type queryOpts struct {
	search     string
	statuses   []string
	priorities []string
	assignees  []string
	projects   []string
	due        string
	sort       string
	dir        string
}

func (o *queryOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.search, "search", "q", "", "search name, description and assignee")
	cmd.Flags().StringSliceVar(&o.statuses, "status", nil, "filter by status (repeatable)")
	cmd.Flags().StringSliceVar(&o.priorities, "priority", nil, "filter by priority (repeatable)")
	cmd.Flags().StringSliceVar(&o.assignees, "assignee", nil, "filter by assignee ID (repeatable)")
	cmd.Flags().StringSliceVar(&o.projects, "project", nil, "filter by project ID (repeatable)")
	cmd.Flags().StringVar(&o.due, "due", "", "due bucket (today, this-week, overdue)")
	cmd.Flags().StringVar(&o.sort, "sort", "", "sort field (name, due_date, priority, status, assignee, created_at, updated_at)")
	cmd.Flags().StringVar(&o.dir, "dir", "", "sort direction (asc, desc)")
}

func (o *queryOpts) specs() (query.FilterSpec, query.SortSpec) {
	f := query.FilterSpec{
		Search:      o.search,
		AssigneeIDs: o.assignees,
		ProjectIDs:  o.projects,
		Due:         rollup.Bucket(o.due),
	}
	for _, s := range o.statuses {
		f.Statuses = append(f.Statuses, tasktree.Status(s))
	}
	for _, p := range o.priorities {
		f.Priorities = append(f.Priorities, tasktree.Priority(p))
	}
	return f, query.SortSpec{Field: query.SortField(o.sort), Direction: query.Direction(o.dir)}
}

func newTaskListCmd() *cobra.Command {
	var q queryOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long:  "Lists root tasks with their subtasks. Filters and sorting apply to root tasks only.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(cmd)
			if err != nil {
				return err
			}
			filter, sort := q.specs()
			tree, err := st.ListTasks(cmd.Context(), filter, sort)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tree) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPRIORITY\tASSIGNEE\tDUE\tPROGRESS")
			for n := range tree.All() {
				writeTaskRow(w, n, st.Calendar())
			}
			return w.Flush()
		},
	}

	q.register(cmd)
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			n, err := st.Get(ctx, args[0])
			if err != nil {
				return err
			}
			history, err := st.StatusHistory(ctx, args[0])
			if err != nil {
				return err
			}
			writeTaskDetail(cmd.OutOrStdout(), n, st.Calendar(), history)
			return nil
		},
	}
}

func newTaskStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change a task's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := tasktree.ParseStatus(args[1])
			if err != nil {
				return err
			}
			_, st, err := openStore(cmd)
			if err != nil {
				return err
			}
			if err := st.SetStatus(cmd.Context(), args[0], status); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", args[0], status)
			return nil
		},
	}
}

func newTaskUpdateCmd() *cobra.Command {
	var (
		name, description, status, priority string
		project, assignee, due              string
		progress                            int
		clearDue                            bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit task fields",
		Long:  "Changes only the fields whose flags are given. --assignee \"\" unassigns.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts store.UpdateOpts
			flags := cmd.Flags()
			if flags.Changed("name") {
				opts.Name = &name
			}
			if flags.Changed("description") {
				opts.Description = &description
			}
			if flags.Changed("status") {
				s, err := tasktree.ParseStatus(status)
				if err != nil {
					return err
				}
				opts.Status = &s
			}
			if flags.Changed("priority") {
				p, err := tasktree.ParsePriority(priority)
				if err != nil {
					return err
				}
				opts.Priority = &p
			}
			if flags.Changed("project") {
				opts.ProjectID = &project
			}
			if flags.Changed("assignee") {
				opts.AssigneeID = &assignee
			}
			if flags.Changed("due") {
				d, err := parseDay(due)
				if err != nil {
					return err
				}
				opts.DueDate = d
			}
			opts.ClearDueDate = clearDue
			if flags.Changed("progress") {
				opts.Progress = &progress
			}

			_, st, err := openStore(cmd)
			if err != nil {
				return err
			}
			if err := st.UpdateFields(cmd.Context(), args[0], opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&project, "project", "", "new project ID")
	cmd.Flags().StringVar(&assignee, "assignee", "", "new assignee member ID")
	cmd.Flags().StringVar(&due, "due", "", "new due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.Flags().IntVar(&progress, "progress", 0, "stored progress percentage (0-100)")
	return cmd
}

func newTaskDeleteCmd() *cobra.Command {
	var (
		orphan bool
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Long:  "Deletes a task and its subtasks. With --orphan the subtasks move up to the deleted task's parent instead.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(cmd)
			if err != nil {
				return err
			}
			policy := store.Cascade
			if orphan {
				policy = store.Orphan
			}
			return runTaskDelete(cmd, st, args[0], policy, yes)
		},
	}

	cmd.Flags().BoolVar(&orphan, "orphan", false, "keep subtasks by promoting them one level")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runTaskDelete(cmd *cobra.Command, st *store.Store, id string, policy store.DeletePolicy, yes bool) error {
	ctx := cmd.Context()
	n, err := st.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("task %s not found", id)
	}
	if err != nil {
		return err
	}
	if !yes {
		warning := fmt.Sprintf("Task %q will be deleted.", n.Data().Name)
		if kids := rollup.CountNode(n, rollup.Any()) - 1; kids > 0 && policy == store.Cascade {
			warning = fmt.Sprintf("Task %q and %d subtasks will be deleted.", n.Data().Name, kids)
		}
		if !confirm(cmd, warning) {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}
	deleted, err := st.Delete(ctx, id, policy)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", strings.Join(deleted, ", "))
	return nil
}
