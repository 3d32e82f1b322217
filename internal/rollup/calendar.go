package rollup

import "time"

// Calendar resolves the date buckets against a clock and a location. The
// zero value uses time.Now in time.Local.
type Calendar struct {
	Now      func() time.Time
	Location *time.Location
}

// FixedCalendar returns a Calendar whose clock always reads now, in now's
// location.
func FixedCalendar(now time.Time) Calendar {
	return Calendar{
		Now:      func() time.Time { return now },
		Location: now.Location(),
	}
}

func (c Calendar) loc() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.Local
}

// Today is the current wall-clock date at midnight.
func (c Calendar) Today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return midnight(now(), c.loc())
}

// WeekEnd is the Saturday that closes the current Sunday-first week, at
// midnight. When today is Saturday it is today.
func (c Calendar) WeekEnd() time.Time {
	today := c.Today()
	return today.AddDate(0, 0, int(time.Saturday-today.Weekday()))
}

// Day maps a due date onto the calendar. Due dates are calendar dates:
// the year, month and day are taken as stored, whatever t's location.
func (c Calendar) Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc())
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Bucket is a due-date window.
type Bucket string

const (
	BucketNone     Bucket = ""
	BucketToday    Bucket = "today"
	BucketThisWeek Bucket = "this-week"
	BucketOverdue  Bucket = "overdue"
)

// Valid reports whether b is a known bucket or none.
func (b Bucket) Valid() bool {
	switch b {
	case BucketNone, BucketToday, BucketThisWeek, BucketOverdue:
		return true
	}
	return false
}

// Classify places a due date relative to the calendar. Completed tasks
// never fall in a bucket and a missing due date is BucketNone. Overdue
// takes precedence, so the result is never both overdue and this week.
// Today is a subset of this week; Classify reports the narrower one.
func (c Calendar) Classify(due *time.Time, completed bool) Bucket {
	if due == nil || completed {
		return BucketNone
	}
	day := c.Day(*due)
	today := c.Today()
	switch {
	case day.Before(today):
		return BucketOverdue
	case day.Equal(today):
		return BucketToday
	case !day.After(c.WeekEnd()):
		return BucketThisWeek
	}
	return BucketNone
}

// InBucket reports whether a due date falls in b. BucketThisWeek includes
// today.
func (c Calendar) InBucket(b Bucket, due *time.Time, completed bool) bool {
	got := c.Classify(due, completed)
	switch b {
	case BucketNone:
		return true
	case BucketThisWeek:
		return got == BucketThisWeek || got == BucketToday
	}
	return got == b
}
