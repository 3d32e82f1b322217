// Package notify tells people about failures they would otherwise only see
// as a task snapping back on the board.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zulandar/opsdeck/internal/kanban"
)

// Event is one notification.
type Event struct {
	Title    string
	Body     string
	Severity string // "info", "warning", "error"
	Color    string // sidebar color hint, e.g. "#d93f0b"
	Fields   []Field
	At       time.Time
}

// Field is a key-value pair shown with an event.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Notifier delivers events to one destination.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

const colorError = "#d93f0b"

// FromError builds the event for a failed board operation.
func FromError(tenant string, err error, at time.Time) Event {
	evt := Event{
		Title:    "Board update failed",
		Body:     err.Error(),
		Severity: "error",
		Color:    colorError,
		At:       at,
		Fields:   []Field{{Name: "Tenant", Value: tenant, Short: true}},
	}
	var rerr *kanban.RemoteError
	if errors.As(err, &rerr) {
		evt.Body = rerr.Err.Error()
		if rerr.TaskID != "" {
			evt.Title = fmt.Sprintf("Moving %s to %s failed", rerr.TaskID, rerr.Status)
			evt.Fields = append(evt.Fields,
				Field{Name: "Task", Value: rerr.TaskID, Short: true},
				Field{Name: "Status", Value: string(rerr.Status), Short: true},
			)
		} else {
			evt.Title = fmt.Sprintf("Store %s failed", rerr.Op)
		}
	}
	return evt
}

// Multi sends each event to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, evt Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes events to a logger. It is always part of the chain.
type Log struct {
	Logger logrus.FieldLogger
}

// Notify implements Notifier.
func (l Log) Notify(_ context.Context, evt Event) error {
	fields := logrus.Fields{"title": evt.Title, "severity": evt.Severity}
	for _, f := range evt.Fields {
		fields["field_"+f.Name] = f.Value
	}
	entry := l.Logger.WithFields(fields)
	if evt.Severity == "error" {
		entry.Error(evt.Body)
	} else {
		entry.Warn(evt.Body)
	}
	return nil
}

// Hook adapts a Notifier into an error callback. Delivery runs in the
// background with its own timeout; delivery failures are logged.
func Hook(n Notifier, tenant string, log logrus.FieldLogger, timeout time.Duration) func(error) {
	return func(err error) {
		evt := FromError(tenant, err, time.Now())
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if nerr := n.Notify(ctx, evt); nerr != nil {
				log.WithError(nerr).Warn("notify: delivery failed")
			}
		}()
	}
}
