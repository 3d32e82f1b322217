package kanban

import "github.com/zulandar/opsdeck/internal/tasktree"

// EventType names a snapshot change.
type EventType string

const (
	EventRefreshed  EventType = "refreshed"
	EventMoved      EventType = "moved"
	EventRolledBack EventType = "rolled_back"
	EventRemoved    EventType = "removed"
)

// Event announces a new snapshot version.
type Event struct {
	Type    EventType       `json:"type"`
	Version uint64          `json:"version"`
	TaskID  string          `json:"task_id,omitempty"`
	TaskIDs []string        `json:"task_ids,omitempty"`
	Status  tasktree.Status `json:"status,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// subscriberBuffer is how many events a slow subscriber may fall behind
// before events are dropped for it.
const subscriberBuffer = 32

// Subscribe returns a channel of snapshot events and a function that
// unsubscribes and closes it. Slow subscribers miss events rather than
// block the controller; every event carries the version, so a subscriber
// can always re-read the latest Snapshot.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once bool
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if once {
			return
		}
		once = true
		delete(c.subs, id)
		close(ch)
	}
}

// publish must be called with c.mu held, in the same critical section that
// stored the snapshot, so subscribers see versions in order.
func (c *Controller) publish(e Event) {
	for _, ch := range c.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
