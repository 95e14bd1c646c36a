// Package history records supervision lifecycle events so that status can
// show what happened across restarts. Recording is best-effort: a broken
// history store must never interfere with supervision itself.
package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStarted EventType = "started"
	EventExited  EventType = "exited"
)

// Event is one observation of the supervised child.
type Event struct {
	Type       EventType
	OccurredAt time.Time
	ChildPID   int
	Detail     string // exit status text for EventExited, empty otherwise
}

// Sink is a destination for lifecycle events. Implementations must be safe
// for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
	Close() error
}

// Nop discards events. Used when history is disabled or failed to open.
type Nop struct{}

func (Nop) Send(context.Context, Event) error { return nil }

func (Nop) Recent(context.Context, int) ([]Event, error) { return nil, nil }

func (Nop) Close() error { return nil }
