package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/zulandar/opsdeck/internal/kanban"
	"github.com/zulandar/opsdeck/internal/logging"
	"github.com/zulandar/opsdeck/internal/store"
	"github.com/zulandar/opsdeck/internal/tasktree"
)

func newBoardCmd() *cobra.Command {
	var (
		q     queryOpts
		width int
	)

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the Kanban board",
		Long:  "Renders one column per status with the root tasks placed by their status.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := openStore(cmd)
			if err != nil {
				return err
			}
			board, err := kanban.NewBoard(cfg.BoardTitles())
			if err != nil {
				return err
			}
			filter, sort := q.specs()
			tree, err := st.ListTasks(cmd.Context(), filter, sort)
			if err != nil {
				return err
			}
			lanes := board.Lanes(tree)
			out := cmd.OutOrStdout()
			if !colorEnabled(cmd) {
				writeBoardPlain(out, lanes)
				return nil
			}
			fmt.Fprintln(out, renderBoard(lipgloss.NewRenderer(out), lanes, width))
			return nil
		},
	}

	q.register(cmd)
	cmd.Flags().IntVar(&width, "width", 24, "column width")
	cmd.AddCommand(newBoardMoveCmd())
	return cmd
}

func newBoardMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <column>",
		Short: "Move a root task to another column",
		Long:  "Moves a card the way the dashboard does: the board updates first, then the store is asked to confirm. A rejected move is rolled back.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := openStore(cmd)
			if err != nil {
				return err
			}
			board, err := kanban.NewBoard(cfg.BoardTitles())
			if err != nil {
				return err
			}
			return runBoardMove(cmd, st, kanban.Options{
				Board:         board,
				RemoteTimeout: cfg.RemoteTimeout(),
				Logger:        logging.Discard(),
			}, args[0], kanban.Column(args[1]))
		},
	}
}

func runBoardMove(cmd *cobra.Command, st *store.Store, opts kanban.Options, id string, to kanban.Column) error {
	ctx := cmd.Context()
	ctrl := kanban.New(st, opts)
	if err := ctrl.Refresh(ctx); err != nil {
		return err
	}
	root, ok := tasktree.FindRoot(ctrl.Snapshot().Tree, id)
	if !ok {
		return fmt.Errorf("task %s is not on the board", id)
	}
	from, err := ctrl.Board().ColumnFor(root.Status)
	if err != nil {
		return err
	}
	p, err := ctrl.Move(ctx, id, from, to)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if p == nil {
		fmt.Fprintf(out, "Task %s is already in %s\n", id, to)
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.RemoteTimeout+time.Second)
	defer cancel()
	outcome, err := p.Wait(waitCtx)
	ctrl.Wait()
	if err != nil {
		return fmt.Errorf("move %s: %s: %w", id, outcome, err)
	}
	fmt.Fprintf(out, "Moved %s: %s -> %s (%s)\n", id, from, to, outcome)
	return nil
}

func writeBoardPlain(out io.Writer, lanes []kanban.Lane) {
	for i, l := range lanes {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s (%d)\n", l.Column.Title, len(l.Tasks))
		for _, r := range l.Tasks {
			fmt.Fprintf(out, "  %s  %s  [%s]\n", r.ID, r.Name, r.Priority)
		}
	}
}

var laneColors = map[tasktree.Status]lipgloss.Color{
	tasktree.StatusNotStarted: lipgloss.Color("245"),
	tasktree.StatusInProgress: lipgloss.Color("226"),
	tasktree.StatusInReview:   lipgloss.Color("141"),
	tasktree.StatusBlocked:    lipgloss.Color("196"),
	tasktree.StatusCompleted:  lipgloss.Color("46"),
}

var priorityColors = map[tasktree.Priority]lipgloss.Color{
	tasktree.PriorityUrgent: lipgloss.Color("196"),
	tasktree.PriorityHigh:   lipgloss.Color("208"),
	tasktree.PriorityMedium: lipgloss.Color("69"),
	tasktree.PriorityLow:    lipgloss.Color("241"),
}

// renderBoard lays the lanes out side by side.
func renderBoard(r *lipgloss.Renderer, lanes []kanban.Lane, width int) string {
	if width < 12 {
		width = 12
	}
	cols := make([]string, len(lanes))
	for i, l := range lanes {
		color := laneColors[l.Column.Status]
		header := r.NewStyle().Bold(true).Foreground(color).
			Render(fmt.Sprintf("%s (%d)", l.Column.Title, len(l.Tasks)))

		var cards []string
		for _, t := range l.Tasks {
			prio := r.NewStyle().Foreground(priorityColors[t.Priority]).Render(string(t.Priority))
			cards = append(cards, truncate(t.Name, width-2)+"\n"+prio+" "+t.ID)
		}
		body := strings.Join(cards, "\n\n")
		if body == "" {
			body = r.NewStyle().Faint(true).Render("empty")
		}

		cols[i] = r.NewStyle().
			Width(width).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(color).
			Padding(0, 1).
			Render(header + "\n\n" + body)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}
