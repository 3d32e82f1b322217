package kanban

import (
	"context"
	"fmt"

	"github.com/zulandar/opsdeck/internal/tasktree"
)

// Outcome is how a move's remote request settled.
type Outcome string

const (
	OutcomePending    Outcome = "pending"
	OutcomeConfirmed  Outcome = "confirmed"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeSuperseded Outcome = "superseded"
)

// RemoteError wraps a failed call to the remote store.
type RemoteError struct {
	Op     string
	TaskID string
	Status tasktree.Status
	Err    error
}

func (e *RemoteError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("kanban: remote %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("kanban: remote %s %s -> %s: %v", e.Op, e.TaskID, e.Status, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Pending tracks one move's remote confirmation. Done is closed once the
// request has settled; Outcome and Err are final after that.
type Pending struct {
	TaskID string
	From   tasktree.Status
	Status tasktree.Status
	Seq    uint64

	// prev is the status to restore on failure. A refetch replaces it with
	// what the store reported.
	prev  tasktree.Status
	after *Pending
	done  chan struct{}

	outcome Outcome
	err     error
}

func newPending(taskID string, from, to tasktree.Status, seq uint64, after *Pending) *Pending {
	return &Pending{
		TaskID:  taskID,
		From:    from,
		Status:  to,
		Seq:     seq,
		prev:    from,
		after:   after,
		done:    make(chan struct{}),
		outcome: OutcomePending,
	}
}

// Done is closed when the remote request settles.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Outcome returns how the move settled, or OutcomePending.
func (p *Pending) Outcome() Outcome {
	select {
	case <-p.done:
		return p.outcome
	default:
		return OutcomePending
	}
}

// Err returns the remote failure, if any, once settled.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the move settles or ctx is done.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, p.err
	case <-ctx.Done():
		return OutcomePending, ctx.Err()
	}
}

func (p *Pending) finish(o Outcome, err error) {
	p.outcome = o
	p.err = err
	close(p.done)
}
