package kanban

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/opsdeck/internal/query"
	"github.com/zulandar/opsdeck/internal/tasktree"
)

// Store is the remote side of the board.
type Store interface {
	ListTasks(ctx context.Context, filter query.FilterSpec, sort query.SortSpec) (tasktree.Tree, error)
	SetStatus(ctx context.Context, taskID string, status tasktree.Status) error
}

// Snapshot is one immutable version of the visible tree. Epoch counts the
// refetches the snapshot descends from.
type Snapshot struct {
	Version   uint64        `json:"version"`
	Epoch     uint64        `json:"epoch"`
	Tree      tasktree.Tree `json:"tree"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Options configures a Controller.
type Options struct {
	Board Board
	// Now is the clock used for updatedAt. Defaults to time.Now.
	Now func() time.Time
	// RemoteTimeout bounds each SetStatus and reconciliation call.
	RemoteTimeout time.Duration
	Logger        logrus.FieldLogger
	// OnError is told about every failure the user should see.
	OnError func(error)
	// OnSettle is told how every move settled, for metrics.
	OnSettle func(Outcome)
}

// Controller owns the visible snapshot and the optimistic move protocol.
// Snapshots are replaced, never mutated, so concurrent readers always see
// a whole version. All methods are safe for concurrent use.
type Controller struct {
	store   Store
	board   Board
	now     func() time.Time
	timeout time.Duration
	log     logrus.FieldLogger
	onError func(error)
	settled func(Outcome)

	snap atomic.Pointer[Snapshot]

	mu        sync.Mutex
	filter    query.FilterSpec
	sort      query.SortSpec
	seq       uint64
	inflight  map[string]*Pending // latest unsettled move per task
	confirmed map[string]confirmedMove
	fetchSeq  uint64
	fetchDone uint64
	subs      map[int]chan Event
	nextSub   int

	wg sync.WaitGroup
}

// confirmedMove is a status the store accepted while fetch ticket fetch
// was the newest issued. Fetches with that ticket or older may have read
// the store before the write.
type confirmedMove struct {
	status tasktree.Status
	seq    uint64
	fetch  uint64
}

// New returns a Controller with an empty snapshot. Call Refresh to load.
func New(store Store, opts Options) *Controller {
	if opts.Board.columns == nil {
		opts.Board = DefaultBoard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		opts.Logger = l
	}
	c := &Controller{
		store:     store,
		board:     opts.Board,
		now:       opts.Now,
		timeout:   opts.RemoteTimeout,
		log:       opts.Logger,
		onError:   opts.OnError,
		settled:   opts.OnSettle,
		inflight:  make(map[string]*Pending),
		confirmed: make(map[string]confirmedMove),
		subs:      make(map[int]chan Event),
	}
	c.snap.Store(&Snapshot{})
	return c
}

// Board returns the column mapping.
func (c *Controller) Board() Board { return c.board }

// Snapshot returns the current version of the tree.
func (c *Controller) Snapshot() *Snapshot { return c.snap.Load() }

// Lanes projects the current snapshot onto the board.
func (c *Controller) Lanes() []Lane { return c.board.Lanes(c.Snapshot().Tree) }

// Query returns the filter and sort used by Refresh.
func (c *Controller) Query() (query.FilterSpec, query.SortSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter, c.sort
}

// SetQuery validates and stores the filter and sort for later refetches.
func (c *Controller) SetQuery(filter query.FilterSpec, sort query.SortSpec) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	if _, err := query.BuildSort(sort.Field, sort.Direction, query.Env{}); err != nil {
		return err
	}
	c.mu.Lock()
	c.filter, c.sort = filter, sort
	c.mu.Unlock()
	return nil
}

// Refresh fetches the tree from the store and replaces the snapshot. A
// fetch that started before a newer one finished is dropped. Moves that
// were confirmed after the fetch started, and moves still awaiting
// confirmation, are re-applied on top of the fetched tree.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.fetchSeq++
	ticket := c.fetchSeq
	filter, sort := c.filter, c.sort
	c.mu.Unlock()

	tree, err := c.store.ListTasks(ctx, filter, sort)
	if err != nil {
		return &RemoteError{Op: "list", Err: err}
	}

	c.mu.Lock()
	if ticket < c.fetchDone {
		c.mu.Unlock()
		c.log.WithField("ticket", ticket).Debug("dropping stale fetch")
		return nil
	}
	c.fetchDone = ticket
	now := c.now()
	for id, m := range c.confirmed {
		if m.fetch < ticket {
			delete(c.confirmed, id)
			continue
		}
		tree = withStatus(tree, id, m.status, now)
	}
	for id, p := range c.inflight {
		root, ok := tasktree.FindRoot(tree, id)
		if !ok {
			continue
		}
		p.prev = root.Status
		tree = withStatus(tree, id, p.Status, now)
	}
	cur := c.Snapshot()
	next := &Snapshot{
		Version:   cur.Version + 1,
		Epoch:     cur.Epoch + 1,
		Tree:      tree,
		FetchedAt: now,
	}
	c.snap.Store(next)
	c.publish(Event{Type: EventRefreshed, Version: next.Version})
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"version": next.Version, "roots": len(tree)}).Debug("snapshot refreshed")
	return nil
}

// withStatus sets a root's status unless it already has it.
func withStatus(tree tasktree.Tree, id string, status tasktree.Status, now time.Time) tasktree.Tree {
	root, ok := tasktree.FindRoot(tree, id)
	if !ok || root.Status == status {
		return tree
	}
	return tasktree.Replace(tree, id, func(t tasktree.Task) tasktree.Task {
		return t.WithStatus(status, now)
	})
}

// Invalidate records that a task was created or deleted elsewhere and
// refetches.
func (c *Controller) Invalidate(ctx context.Context, reason string) error {
	c.log.WithField("reason", reason).Debug("snapshot invalidated")
	return c.Refresh(ctx)
}

// Forget drops deleted tasks, with their subtrees, from the snapshot so
// they leave the board even if the following refetch fails. Fetches
// already under way are dropped when they answer. It reports whether the
// snapshot changed.
func (c *Controller) Forget(ids ...string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchSeq++
	c.fetchDone = c.fetchSeq

	cur := c.Snapshot()
	tree, changed := cur.Tree, false
	for _, id := range ids {
		var ok bool
		tree, ok = tasktree.Remove(tree, id)
		changed = changed || ok
		delete(c.confirmed, id)
	}
	if !changed {
		return false
	}
	next := &Snapshot{
		Version:   cur.Version + 1,
		Epoch:     cur.Epoch,
		Tree:      tree,
		FetchedAt: cur.FetchedAt,
	}
	c.snap.Store(next)
	c.publish(Event{Type: EventRemoved, Version: next.Version, TaskIDs: ids})
	c.log.WithFields(logrus.Fields{"version": next.Version, "tasks": len(ids)}).Debug("tasks forgotten")
	return true
}

// Move drags a root task from one column to another. The visible snapshot
// is updated before Move returns; the returned Pending settles when the
// store answers. Moving to the same column is a no-op and returns a nil
// Pending. An unknown column fails with ErrInvalidColumn and a task that
// is not a root of the snapshot with ErrTaskNotFound; neither mutates
// anything.
//
// The target status comes from the column alone. Whatever status the task
// had before is ignored for placement.
func (c *Controller) Move(ctx context.Context, taskID string, from, to Column) (*Pending, error) {
	if from == to {
		return nil, nil
	}
	if _, err := c.board.StatusFor(from); err != nil {
		return nil, err
	}
	target, err := c.board.StatusFor(to)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	cur := c.Snapshot()
	root, ok := tasktree.FindRoot(cur.Tree, taskID)
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("kanban: move %s: %w", taskID, ErrTaskNotFound)
	}

	now := c.now()
	tree := tasktree.Replace(cur.Tree, taskID, func(t tasktree.Task) tasktree.Task {
		return t.WithStatus(target, now)
	})
	c.seq++
	p := newPending(taskID, root.Status, target, c.seq, c.inflight[taskID])
	c.inflight[taskID] = p
	next := &Snapshot{
		Version:   cur.Version + 1,
		Epoch:     cur.Epoch,
		Tree:      tree,
		FetchedAt: cur.FetchedAt,
	}
	c.snap.Store(next)
	c.publish(Event{Type: EventMoved, Version: next.Version, TaskID: taskID, Status: target})
	c.wg.Add(1)
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"task_id": taskID,
		"from":    root.Status,
		"to":      target,
		"seq":     p.Seq,
	}).Info("optimistic move applied")

	go c.persist(context.WithoutCancel(ctx), p)
	return p, nil
}

// persist sends the status change once the previous move on the same task
// has settled, so the store sees moves in the order the user made them.
func (c *Controller) persist(ctx context.Context, p *Pending) {
	defer c.wg.Done()
	if p.after != nil {
		<-p.after.done
		p.after = nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.store.SetStatus(ctx, p.TaskID, p.Status)
	c.settle(p, err)
}

func (c *Controller) settle(p *Pending, err error) {
	fields := logrus.Fields{"task_id": p.TaskID, "status": p.Status, "seq": p.Seq}

	c.mu.Lock()
	latest := c.inflight[p.TaskID] == p
	if latest {
		delete(c.inflight, p.TaskID)
	}

	if err == nil {
		if m, ok := c.confirmed[p.TaskID]; !ok || m.seq < p.Seq {
			c.confirmed[p.TaskID] = confirmedMove{status: p.Status, seq: p.Seq, fetch: c.fetchSeq}
		}
		c.mu.Unlock()
		c.log.WithFields(fields).Debug("move confirmed")
		c.finish(p, OutcomeConfirmed, nil)
		return
	}

	rerr := &RemoteError{Op: "set_status", TaskID: p.TaskID, Status: p.Status, Err: err}
	if !latest {
		c.mu.Unlock()
		c.log.WithFields(fields).WithError(err).Info("superseded move failed; keeping newer move")
		c.finish(p, OutcomeSuperseded, rerr)
		return
	}

	cur := c.Snapshot()
	now := c.now()
	tree, applied := tasktree.ReplaceChecked(cur.Tree, p.TaskID, func(t tasktree.Task) tasktree.Task {
		if t.Status == p.prev {
			return t
		}
		return t.WithStatus(p.prev, now)
	})
	if applied {
		next := &Snapshot{
			Version:   cur.Version + 1,
			Epoch:     cur.Epoch,
			Tree:      tree,
			FetchedAt: cur.FetchedAt,
		}
		c.snap.Store(next)
		c.publish(Event{Type: EventRolledBack, Version: next.Version, TaskID: p.TaskID, Status: p.prev, Error: rerr.Error()})
	}
	c.wg.Add(1)
	c.mu.Unlock()

	c.log.WithFields(fields).WithError(err).Warn("move failed; rolled back")
	if c.onError != nil {
		c.onError(rerr)
	}
	c.finish(p, OutcomeRolledBack, rerr)

	go c.reconcile()
}

func (c *Controller) finish(p *Pending, o Outcome, err error) {
	p.finish(o, err)
	if c.settled != nil {
		c.settled(o)
	}
}

// reconcile refetches after a failed move.
func (c *Controller) reconcile() {
	defer c.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.Refresh(ctx); err != nil {
		c.log.WithError(err).Warn("reconcile after failed move")
		if c.onError != nil {
			c.onError(err)
		}
	}
}

// Wait blocks until every in-flight request and reconciliation has
// finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}
