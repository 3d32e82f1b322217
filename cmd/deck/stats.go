package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/opsdeck/internal/rollup"
	"github.com/zulandar/opsdeck/internal/tasktree"
)

func newStatsCmd() *cobra.Command {
	var record bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics and analytics",
		Long: `Prints the stat tiles for every task in the tree, then the status, priority
and assignee analytics. Analytics come from the stored snapshot when it is
fresh and matches the tree, otherwise they are computed locally.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := openStore(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if record {
				if _, err := st.RecordAnalytics(ctx); err != nil {
					return err
				}
			}
			tree, err := st.Tree(ctx)
			if err != nil {
				return err
			}
			remote, err := st.Analytics(ctx)
			if err != nil {
				return err
			}
			cal := st.Calendar()
			a, src := rollup.Resolve(remote, cfg.AnalyticsMaxAge(), time.Now(), tree)

			out := cmd.OutOrStdout()
			writeStats(out, rollup.Compute(tree, cal))
			fmt.Fprintln(out)
			writeAnalytics(out, a, src)
			return nil
		},
	}

	cmd.Flags().BoolVar(&record, "record", false, "store a fresh analytics snapshot first")
	return cmd
}

func writeStats(out io.Writer, s rollup.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Total\t%d\n", s.Total)
	fmt.Fprintf(w, "Due today\t%d\n", s.DueToday)
	fmt.Fprintf(w, "Due this week\t%d\n", s.DueThisWeek)
	fmt.Fprintf(w, "Overdue\t%d\n", s.Overdue)
	fmt.Fprintf(w, "Unassigned\t%d\n", s.Unassigned)
	for _, st := range tasktree.Statuses {
		fmt.Fprintf(w, "%s\t%d\n", st, s.ByStatus[st])
	}
	w.Flush()
}

func writeAnalytics(out io.Writer, a rollup.Analytics, src rollup.Source) {
	fmt.Fprintf(out, "Analytics (%s, computed %s)\n", src, a.ComputedAt.Format(time.DateTime))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRIORITY\tCOUNT")
	for _, p := range tasktree.Priorities {
		fmt.Fprintf(w, "%s\t%d\n", p, a.ByPriority[p])
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "ASSIGNEE\tDONE\tTOTAL\tRATE")
	for _, r := range a.Assignees {
		name := r.Name
		if name == "" {
			name = r.AssigneeID
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.0f%%\n", name, r.Completed, r.Total, r.Rate*100)
	}
	w.Flush()
}
