package rollup

import (
	"cmp"
	"slices"
	"time"

	"github.com/zulandar/opsdeck/internal/tasktree"
)

// AssigneeRate is the completion rate of one assignee's tasks.
type AssigneeRate struct {
	AssigneeID string  `json:"assignee_id"`
	Name       string  `json:"name,omitempty"`
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Rate       float64 `json:"rate"`
}

// Analytics is the rollup the remote store may precompute.
type Analytics struct {
	ByStatus   map[tasktree.Status]int   `json:"by_status"`
	ByPriority map[tasktree.Priority]int `json:"by_priority"`
	Assignees  []AssigneeRate            `json:"assignees"`
	ComputedAt time.Time                 `json:"computed_at"`
}

// Source tells where an Analytics value came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// FromTree computes Analytics over every node of the tree.
func FromTree(t tasktree.Tree, now time.Time) Analytics {
	a := Analytics{
		ByStatus:   make(map[tasktree.Status]int, len(tasktree.Statuses)),
		ByPriority: make(map[tasktree.Priority]int, len(tasktree.Priorities)),
		ComputedAt: now,
	}
	for _, s := range tasktree.Statuses {
		a.ByStatus[s] = Count(t, HasStatus(s))
	}
	for _, p := range tasktree.Priorities {
		a.ByPriority[p] = Count(t, HasPriority(p))
	}

	rates := make(map[string]*AssigneeRate)
	for n := range t.All() {
		task := n.Data()
		if task.Unassigned() {
			continue
		}
		r, ok := rates[task.Assignee.ID]
		if !ok {
			r = &AssigneeRate{AssigneeID: task.Assignee.ID, Name: task.Assignee.Name}
			rates[task.Assignee.ID] = r
		}
		r.Total++
		if task.Status == tasktree.StatusCompleted {
			r.Completed++
		}
	}
	for _, r := range rates {
		r.Rate = float64(r.Completed) / float64(r.Total)
		a.Assignees = append(a.Assignees, *r)
	}
	SortAssignees(a.Assignees)
	return a
}

// SortAssignees orders rates by assignee id.
func SortAssignees(rs []AssigneeRate) {
	slices.SortFunc(rs, func(x, y AssigneeRate) int {
		return cmp.Compare(x.AssigneeID, y.AssigneeID)
	})
}

// Mismatch is a metric on which a precomputed rollup disagrees with the
// local tree.
type Mismatch struct {
	Metric string `json:"metric"`
	Key    string `json:"key"`
	Remote int    `json:"remote"`
	Local  int    `json:"local"`
}

// Verify compares precomputed analytics with the tree and returns every
// disagreeing count.
func Verify(remote Analytics, t tasktree.Tree) []Mismatch {
	local := FromTree(t, remote.ComputedAt)
	var out []Mismatch
	for _, s := range tasktree.Statuses {
		if r, l := remote.ByStatus[s], local.ByStatus[s]; r != l {
			out = append(out, Mismatch{Metric: "status", Key: string(s), Remote: r, Local: l})
		}
	}
	for _, p := range tasktree.Priorities {
		if r, l := remote.ByPriority[p], local.ByPriority[p]; r != l {
			out = append(out, Mismatch{Metric: "priority", Key: string(p), Remote: r, Local: l})
		}
	}

	remoteRates := make(map[string]AssigneeRate, len(remote.Assignees))
	for _, r := range remote.Assignees {
		remoteRates[r.AssigneeID] = r
	}
	for _, l := range local.Assignees {
		r := remoteRates[l.AssigneeID]
		delete(remoteRates, l.AssigneeID)
		if r.Total != l.Total {
			out = append(out, Mismatch{Metric: "assignee_total", Key: l.AssigneeID, Remote: r.Total, Local: l.Total})
		}
		if r.Completed != l.Completed {
			out = append(out, Mismatch{Metric: "assignee_completed", Key: l.AssigneeID, Remote: r.Completed, Local: l.Completed})
		}
	}
	extra := make([]string, 0, len(remoteRates))
	for id := range remoteRates {
		extra = append(extra, id)
	}
	slices.Sort(extra)
	for _, id := range extra {
		out = append(out, Mismatch{Metric: "assignee_total", Key: id, Remote: remoteRates[id].Total})
	}
	return out
}

// Resolve picks the analytics to show. The precomputed value is used only
// when present, no older than maxAge, and consistent with the tree;
// otherwise the local computation is returned.
func Resolve(remote *Analytics, maxAge time.Duration, now time.Time, t tasktree.Tree) (Analytics, Source) {
	if remote == nil {
		return FromTree(t, now), SourceLocal
	}
	if maxAge > 0 && now.Sub(remote.ComputedAt) > maxAge {
		return FromTree(t, now), SourceLocal
	}
	if len(Verify(*remote, t)) > 0 {
		return FromTree(t, now), SourceLocal
	}
	return *remote, SourceRemote
}
