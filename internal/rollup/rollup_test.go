package rollup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/opsdeck/internal/tasktree"
)

// Wednesday 2026-10-14, mid-afternoon.
var wednesday = time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCalendar_TodayAndWeekEnd(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		wantEnd time.Time
	}{
		{"wednesday", wednesday, *day(2026, 10, 17)},
		{"sunday starts the week", time.Date(2026, 10, 11, 9, 0, 0, 0, time.UTC), *day(2026, 10, 17)},
		{"saturday ends the week", time.Date(2026, 10, 17, 23, 59, 0, 0, time.UTC), *day(2026, 10, 17)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := FixedCalendar(tt.now)
			assert.Equal(t, 0, cal.Today().Hour())
			assert.True(t, cal.WeekEnd().Equal(tt.wantEnd), "WeekEnd = %v, want %v", cal.WeekEnd(), tt.wantEnd)
		})
	}
}

func TestCalendar_Classify(t *testing.T) {
	cal := FixedCalendar(wednesday)
	tests := []struct {
		name      string
		due       *time.Time
		completed bool
		want      Bucket
	}{
		{"no due date", nil, false, BucketNone},
		{"yesterday", day(2026, 10, 13), false, BucketOverdue},
		{"last month", day(2026, 9, 1), false, BucketOverdue},
		{"today", day(2026, 10, 14), false, BucketToday},
		{"today late evening", ptr(time.Date(2026, 10, 14, 23, 0, 0, 0, time.UTC)), false, BucketToday},
		{"thursday", day(2026, 10, 15), false, BucketThisWeek},
		{"saturday inclusive", day(2026, 10, 17), false, BucketThisWeek},
		{"next sunday", day(2026, 10, 18), false, BucketNone},
		{"completed overdue", day(2026, 10, 1), true, BucketNone},
		{"completed today", day(2026, 10, 14), true, BucketNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.Classify(tt.due, tt.completed))
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestCalendar_ThisWeekIncludesToday(t *testing.T) {
	cal := FixedCalendar(wednesday)
	assert.True(t, cal.InBucket(BucketThisWeek, day(2026, 10, 14), false))
	assert.False(t, cal.InBucket(BucketThisWeek, day(2026, 10, 13), false), "overdue wins over this week")
}

func TestScenario_DueTodayDropsWhenCompleted(t *testing.T) {
	cal := FixedCalendar(wednesday)
	tree := tasktree.Tree{
		{Task: tasktree.Task{ID: "r1", Status: tasktree.StatusInProgress, Priority: tasktree.PriorityMedium, DueDate: day(2026, 10, 14)}},
	}
	require.Equal(t, 1, Count(tree, DueToday(cal)))

	done := tasktree.Replace(tree, "r1", func(task tasktree.Task) tasktree.Task {
		return task.WithStatus(tasktree.StatusCompleted, wednesday)
	})
	assert.Equal(t, 0, Count(done, DueToday(cal)))
	assert.Equal(t, 1, Count(tree, DueToday(cal)), "original snapshot unchanged")
}

func TestCompute(t *testing.T) {
	cal := FixedCalendar(wednesday)
	alice := &tasktree.Assignee{ID: "u1", Name: "Alice"}
	tree := tasktree.Tree{
		{
			Task: tasktree.Task{ID: "a", Status: tasktree.StatusInProgress, DueDate: day(2026, 10, 14), Assignee: alice},
			Subtasks: []tasktree.Branch{
				{
					Task: tasktree.Task{ID: "a1", Status: tasktree.StatusCompleted, DueDate: day(2026, 10, 1)},
					Subtasks: []tasktree.Leaf{
						{Task: tasktree.Task{ID: "a1x", Status: tasktree.StatusBlocked, DueDate: day(2026, 10, 2), Assignee: alice}},
					},
				},
				{Task: tasktree.Task{ID: "a2", Status: tasktree.StatusNotStarted, DueDate: day(2026, 10, 16)}},
			},
		},
		{Task: tasktree.Task{ID: "b", Status: tasktree.StatusInReview, Assignee: &tasktree.Assignee{ID: ""}}},
	}

	s := Compute(tree, cal)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 1, s.ByStatus[tasktree.StatusInProgress])
	assert.Equal(t, 1, s.ByStatus[tasktree.StatusCompleted])
	assert.Equal(t, 1, s.ByStatus[tasktree.StatusBlocked])
	assert.Equal(t, 1, s.ByStatus[tasktree.StatusNotStarted])
	assert.Equal(t, 1, s.ByStatus[tasktree.StatusInReview])
	assert.Equal(t, 1, s.DueToday)
	assert.Equal(t, 2, s.DueThisWeek, "today and thursday")
	assert.Equal(t, 1, s.Overdue, "completed a1 excluded, blocked a1x counted")
	assert.Equal(t, 3, s.Unassigned, "empty assignee id counts as unassigned")
}

func TestCompute_EmptyTree(t *testing.T) {
	s := Compute(nil, FixedCalendar(wednesday))
	assert.Zero(t, s.Total)
	assert.Len(t, s.ByStatus, len(tasktree.Statuses))
}
