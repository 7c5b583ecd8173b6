package gesture

import (
	"time"

	"github.com/verte-zerg/cardstack/internal/cardstack"
)

// EventKind identifies what happened on the stack.
type EventKind string

const (
	EventDown     EventKind = "down"
	EventMove     EventKind = "move"
	EventUp       EventKind = "up"
	EventFling    EventKind = "fling"
	EventJump     EventKind = "jump"
	EventCycle    EventKind = "cycle"
	EventThrow    EventKind = "throw"
	EventSnapBack EventKind = "snapback"
	EventRecycled EventKind = "recycled"
)

// Input reports whether the kind is caller input (as opposed to an outcome
// the controller produced). Only input events are needed to replay a trace.
func (k EventKind) Input() bool {
	switch k {
	case EventDown, EventMove, EventUp, EventFling, EventJump, EventCycle:
		return true
	default:
		return false
	}
}

// Event is a single notification from a Controller.
type Event struct {
	Kind     EventKind
	CardID   int
	Pos      cardstack.Vec2
	Velocity cardstack.Vec2
	At       time.Duration
}

// Observer receives controller events. Observers are called with the
// controller lock held and must not call back into the controller.
type Observer func(Event)
