package gesture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/cardstack/internal/cardstack"
	"github.com/verte-zerg/cardstack/internal/schedule"
)

var (
	ErrClosed        = errors.New("controller is closed")
	ErrGestureActive = errors.New("a drag is in progress")
)

// Release describes how a gesture ended.
type Release struct {
	CardID   int
	Velocity cardstack.Vec2
	Decision Decision
}

// Controller wires a Tracker to a Stack, classifies releases and schedules
// the recycle that follows a throw. All methods are safe for concurrent
// use; scheduled completions run under the same lock as pointer input.
type Controller struct {
	mu      sync.Mutex
	stack   *cardstack.Stack
	tracker *Tracker
	tuning  Tuning

	sched      schedule.Scheduler
	clock      schedule.Clock
	ownedSched *schedule.Real

	log       *zap.Logger
	observers []Observer

	pending schedule.Timer
	cycle   []int
	closed  bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithTuning overrides the default tuning.
func WithTuning(t Tuning) ControllerOption {
	return func(c *Controller) { c.tuning = t }
}

// WithScheduler sets the scheduler used for throw completions. If it also
// implements schedule.Clock it becomes the controller clock.
func WithScheduler(s schedule.Scheduler) ControllerOption {
	return func(c *Controller) {
		c.sched = s
		if clock, ok := s.(schedule.Clock); ok && c.clock == nil {
			c.clock = clock
		}
	}
}

// WithClock sets the clock used to stamp events that carry no timestamp.
func WithClock(clock schedule.Clock) ControllerOption {
	return func(c *Controller) { c.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) ControllerOption {
	return func(c *Controller) { c.log = log }
}

// WithObserver registers an observer.
func WithObserver(o Observer) ControllerOption {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// NewController returns a controller for an initialized stack.
func NewController(stack *cardstack.Stack, opts ...ControllerOption) *Controller {
	c := &Controller{
		stack:  stack,
		tuning: DefaultTuning(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sched == nil {
		c.ownedSched = schedule.NewReal()
		c.sched = c.ownedSched
		if c.clock == nil {
			c.clock = c.ownedSched
		}
	}
	if c.clock == nil {
		c.clock = schedule.NewReal()
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.tracker = NewTracker(stack, c.tuning)
	return c
}

// Stack returns the controlled stack.
func (c *Controller) Stack() *cardstack.Stack { return c.stack }

// Tuning returns the active tuning.
func (c *Controller) Tuning() Tuning { return c.tuning }

// Now returns the controller clock reading.
func (c *Controller) Now() time.Duration { return c.clock.Now() }

// Session returns the current drag session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.Session()
}

// Busy reports whether a throw or a cycle is still running.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil || len(c.cycle) > 0
}

// Down starts dragging id. It reports whether the drag was accepted.
func (c *Controller) Down(id int, pos cardstack.Vec2, now time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if !c.tracker.PointerDown(id, pos, now) {
		c.log.Debug("pointer down ignored", zap.Int("card", id))
		return false
	}
	c.emit(Event{Kind: EventDown, CardID: id, Pos: pos, At: now})
	return true
}

// Move feeds a pointer sample to the active drag.
func (c *Controller) Move(pos cardstack.Vec2, now time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	s := c.tracker.Session()
	if !s.Active() {
		return
	}
	c.tracker.PointerMove(pos, now)
	c.emit(Event{Kind: EventMove, CardID: s.ActiveID, Pos: pos, At: now})
}

// Up ends the drag and either throws the card or snaps it back. It reports
// false when no drag was active.
func (c *Controller) Up(now time.Duration) (Release, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Release{}, false
	}
	id, v, ok := c.tracker.PointerUp()
	if !ok {
		return Release{}, false
	}
	c.emit(Event{Kind: EventUp, CardID: id, Velocity: v, At: now})

	rel := Release{CardID: id, Velocity: v, Decision: Classify(c.tuning, v)}
	if rel.Decision == Throw {
		if err := c.throwLocked(id, v, now); err != nil {
			c.log.Warn("throw rejected, snapping back", zap.Int("card", id), zap.Error(err))
			rel.Decision = SnapBack
		}
	}
	if rel.Decision == SnapBack {
		c.snapBackLocked(id, v, now)
	}
	return rel, true
}

// Fling throws the top card with velocity v, as if it had been released
// mid-drag.
func (c *Controller) Fling(v cardstack.Vec2) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	top, err := c.stack.TopCard()
	if err != nil {
		return err
	}
	now := c.clock.Now()
	c.emit(Event{Kind: EventFling, CardID: top.ID, Velocity: v, At: now})
	return c.throwLocked(top.ID, v, now)
}

// JumpTo brings id to the top in a single reorder, without animation.
func (c *Controller) JumpTo(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	if err := c.stack.JumpToFront(id); err != nil {
		return err
	}
	c.emit(Event{Kind: EventJump, CardID: id, At: c.clock.Now()})
	c.log.Debug("jumped to card", zap.Int("card", id))
	return nil
}

// CycleTo brings id to the top by throwing every card above it in turn.
func (c *Controller) CycleTo(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	if c.pending != nil {
		return cardstack.ErrThrowInFlight
	}
	path, err := c.stack.CyclePath(id)
	if err != nil {
		return err
	}
	now := c.clock.Now()
	c.emit(Event{Kind: EventCycle, CardID: id, At: now})
	if len(path) == 0 {
		return nil
	}
	if err := c.throwLocked(path[0], c.flingVelocity(), now); err != nil {
		return err
	}
	c.cycle = path[1:]
	return nil
}

// Close cancels any scheduled completion. A completion that fires anyway
// is ignored. Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.cycle = nil
	c.tracker.Cancel()
	if c.ownedSched != nil {
		c.ownedSched.Close()
	}
}

func (c *Controller) readyLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.tracker.Session().Active() {
		return ErrGestureActive
	}
	return nil
}

func (c *Controller) flingVelocity() cardstack.Vec2 {
	return cardstack.Vec2{X: c.tuning.ThrowSpeed * 2}
}

func (c *Controller) throwLocked(id int, v cardstack.Vec2, now time.Duration) error {
	card, ok := c.stack.Card(id)
	if !ok {
		return fmt.Errorf("%w: %d", cardstack.ErrUnknownCard, id)
	}
	offset, rotation := Project(c.tuning, card, v)
	if err := c.stack.BeginThrow(id, offset, rotation); err != nil {
		return err
	}
	c.emit(Event{Kind: EventThrow, CardID: id, Velocity: v, At: now})
	c.log.Debug("card thrown",
		zap.Int("card", id),
		zap.Float64("speed", v.Len()),
		zap.Float64("dest_x", offset.X),
		zap.Float64("dest_y", offset.Y))
	c.pending = c.sched.AfterFunc(c.tuning.ThrowDuration, func() { c.complete(id) })
	return nil
}

func (c *Controller) snapBackLocked(id int, v cardstack.Vec2, now time.Duration) {
	if err := c.stack.SnapBack(id); err != nil {
		c.log.Warn("snap back failed", zap.Int("card", id), zap.Error(err))
		return
	}
	c.emit(Event{Kind: EventSnapBack, CardID: id, Velocity: v, At: now})
}

func (c *Controller) complete(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pending = nil
	if err := c.stack.CompleteThrow(id); err != nil {
		c.log.Error("recycle failed", zap.Int("card", id), zap.Error(err))
		c.cycle = nil
		return
	}
	now := c.clock.Now()
	c.emit(Event{Kind: EventRecycled, CardID: id, At: now})
	if len(c.cycle) == 0 {
		return
	}
	next := c.cycle[0]
	c.cycle = c.cycle[1:]
	if err := c.throwLocked(next, c.flingVelocity(), now); err != nil {
		c.log.Warn("cycle stopped", zap.Int("card", next), zap.Error(err))
		c.cycle = nil
	}
}

func (c *Controller) emit(ev Event) {
	for _, o := range c.observers {
		o(ev)
	}
}
