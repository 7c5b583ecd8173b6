package gesture

import (
	"time"

	"github.com/verte-zerg/cardstack/internal/cardstack"
)

// Session is the state of one in-progress drag. ActiveID is zero when no
// card is being dragged.
type Session struct {
	ActiveID int
	Start    cardstack.Vec2
	Last     cardstack.Vec2
	LastAt   time.Duration
	// Velocity is in units/ms.
	Velocity cardstack.Vec2
}

// Active reports whether a drag is in progress.
func (s Session) Active() bool { return s.ActiveID != 0 }

// Tracker derives drag offsets and release velocity from pointer samples.
// It supports one gesture at a time; a second pointer-down while a gesture
// is active is rejected.
type Tracker struct {
	stack   *cardstack.Stack
	tuning  Tuning
	session Session
}

// NewTracker returns a tracker driving the given stack.
func NewTracker(stack *cardstack.Stack, tuning Tuning) *Tracker {
	return &Tracker{stack: stack, tuning: tuning}
}

// Session returns a copy of the current gesture session.
func (t *Tracker) Session() Session { return t.session }

// PointerDown starts a drag on id. It reports false, leaving the session
// untouched, when id is not the top card, the top card is mid-throw, or a
// drag is already in progress.
func (t *Tracker) PointerDown(id int, pos cardstack.Vec2, now time.Duration) bool {
	if t.session.Active() {
		return false
	}
	if !t.stack.Draggable(id) {
		return false
	}
	t.session = Session{
		ActiveID: id,
		Start:    pos,
		Last:     pos,
		LastAt:   now,
	}
	return true
}

// PointerMove samples the pointer and drags the active card. A sample with
// no elapsed time keeps the previous velocity.
func (t *Tracker) PointerMove(pos cardstack.Vec2, now time.Duration) {
	if !t.session.Active() {
		return
	}
	dt := float64(now-t.session.LastAt) / float64(time.Millisecond)
	if dt > 0 {
		d := pos.Sub(t.session.Last)
		t.session.Velocity = cardstack.Vec2{X: d.X / dt, Y: d.Y / dt}
	}
	t.session.Last = pos
	t.session.LastAt = now

	delta := pos.Sub(t.session.Start)
	t.stack.UpdateDrag(t.session.ActiveID, delta, delta.X*t.tuning.DragRotation)
}

// PointerUp ends the gesture and returns the card and its release velocity.
// The session is cleared whatever the caller does with the result.
func (t *Tracker) PointerUp() (int, cardstack.Vec2, bool) {
	s := t.session
	t.session = Session{}
	if !s.Active() {
		return 0, cardstack.Vec2{}, false
	}
	return s.ActiveID, s.Velocity, true
}

// Cancel drops the current gesture without a release.
func (t *Tracker) Cancel() {
	t.session = Session{}
}
