package gesture

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/verte-zerg/cardstack/internal/cardstack"
	"github.com/verte-zerg/cardstack/internal/schedule"
)

func newController(t *testing.T, n int) (*Controller, *schedule.Manual, *[]Event) {
	t.Helper()
	clock := schedule.NewManual()
	events := &[]Event{}
	c := NewController(newStack(t, n),
		WithScheduler(clock),
		WithObserver(func(ev Event) { *events = append(*events, ev) }),
	)
	t.Cleanup(c.Close)
	return c, clock, events
}

func ranksOf(s *cardstack.Stack) map[int]int {
	out := map[int]int{}
	for _, c := range s.Cards() {
		out[c.ID] = c.Z
	}
	return out
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

// drag moves the top card from the origin by dx over two samples, so the
// release velocity is (dx/2)/dt units/ms.
func drag(c *Controller, id int, dx float64, dt time.Duration, start time.Duration) (Release, bool) {
	c.Down(id, cardstack.Vec2{}, start)
	c.Move(cardstack.Vec2{X: dx / 2}, start+dt)
	c.Move(cardstack.Vec2{X: dx}, start+2*dt)
	return c.Up(start + 2*dt)
}

func TestControllerSnapBack(t *testing.T) {
	c, clock, events := newController(t, 4)
	// 3 units per 10ms = 0.3 units/ms.
	rel, ok := drag(c, 1, 6, ms(10), 0)
	if !ok {
		t.Fatalf("expected a release")
	}
	if rel.Decision != SnapBack {
		t.Fatalf("expected snapback, got %s", rel.Decision)
	}
	c1, _ := c.Stack().Card(1)
	if !c1.AtRest() {
		t.Fatalf("expected card at rest after snapback: %+v", c1)
	}
	if diff := cmp.Diff(map[int]int{1: 4, 2: 3, 3: 2, 4: 1}, ranksOf(c.Stack())); diff != "" {
		t.Fatalf("snapback changed ranks:\n%s", diff)
	}
	if clock.Pending() != 0 {
		t.Fatalf("snapback must not schedule anything")
	}
	want := []EventKind{EventDown, EventMove, EventMove, EventUp, EventSnapBack}
	if diff := cmp.Diff(want, kinds(*events)); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestControllerThrowRecyclesAfterDuration(t *testing.T) {
	c, clock, events := newController(t, 4)
	// 7 units per 10ms = 0.7 units/ms.
	rel, ok := drag(c, 1, 14, ms(10), 0)
	if !ok || rel.Decision != Throw {
		t.Fatalf("expected a throw, got %+v ok=%v", rel, ok)
	}
	c1, _ := c.Stack().Card(1)
	if !c1.Thrown {
		t.Fatalf("expected card 1 to be mid-throw")
	}
	wantDest := 14 + 0.7*DefaultProjection
	if diff := c1.Offset.X - wantDest; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected destination x %v, got %v", wantDest, c1.Offset.X)
	}
	if !c.Busy() {
		t.Fatalf("expected controller busy mid-throw")
	}

	clock.Advance(399 * time.Millisecond)
	c1, _ = c.Stack().Card(1)
	if !c1.Thrown {
		t.Fatalf("card recycled too early")
	}

	clock.Advance(time.Millisecond)
	want := map[int]int{1: 1, 2: 4, 3: 3, 4: 2}
	if diff := cmp.Diff(want, ranksOf(c.Stack())); diff != "" {
		t.Fatalf("ranks mismatch (-want +got):\n%s", diff)
	}
	top, _ := c.Stack().TopCard()
	if top.ID != 2 {
		t.Fatalf("expected card 2 on top, got %d", top.ID)
	}
	if c.Busy() {
		t.Fatalf("expected controller idle after recycle")
	}
	last := (*events)[len(*events)-1]
	if last.Kind != EventRecycled || last.CardID != 1 || last.At != 400*time.Millisecond {
		t.Fatalf("unexpected final event %+v", last)
	}
}

func TestControllerRecycledCardRefusesDragUntilComplete(t *testing.T) {
	c, clock, _ := newController(t, 2)
	drag(c, 1, 20, ms(10), 0)
	if c.Down(1, cardstack.Vec2{}, ms(30)) {
		t.Fatalf("expected thrown card to refuse a drag")
	}
	if c.Down(2, cardstack.Vec2{}, ms(30)) {
		t.Fatalf("expected card 2 to wait until the recycle lands")
	}
	clock.Advance(DefaultThrowDuration)
	if !c.Down(2, cardstack.Vec2{}, clock.Now()) {
		t.Fatalf("expected new top card to accept a drag")
	}
}

func TestControllerCloseCancelsCompletion(t *testing.T) {
	c, clock, _ := newController(t, 3)
	drag(c, 1, 20, ms(10), 0)
	c.Close()
	clock.Advance(time.Second)
	c1, _ := c.Stack().Card(1)
	if c1.Z != 3 {
		t.Fatalf("completion ran after Close: %+v", c1)
	}
	if c.Down(1, cardstack.Vec2{}, clock.Now()) {
		t.Fatalf("closed controller accepted input")
	}
	if err := c.Fling(cardstack.Vec2{X: 1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestControllerStaleCompletionIgnored(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := newStack(t, 3)
	c := NewController(s, WithTuning(func() Tuning {
		tt := DefaultTuning()
		tt.ThrowDuration = 20 * time.Millisecond
		return tt
	}()))
	if err := c.Fling(cardstack.Vec2{X: 2}); err != nil {
		t.Fatalf("fling: %v", err)
	}
	c.Close()
	time.Sleep(60 * time.Millisecond)
	c1, _ := s.Card(1)
	if c1.Z != 3 || !c1.Thrown {
		t.Fatalf("stale completion mutated the stack: %+v", c1)
	}
}

func TestControllerRealSchedulerRecycles(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := newStack(t, 2)
	done := make(chan struct{}, 1)
	tuning := DefaultTuning()
	tuning.ThrowDuration = 5 * time.Millisecond
	c := NewController(s, WithTuning(tuning), WithObserver(func(ev Event) {
		if ev.Kind == EventRecycled {
			done <- struct{}{}
		}
	}))
	defer c.Close()
	if err := c.Fling(cardstack.Vec2{X: 2}); err != nil {
		t.Fatalf("fling: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("recycle did not happen")
	}
	top, _ := s.TopCard()
	if top.ID != 2 {
		t.Fatalf("expected card 2 on top, got %d", top.ID)
	}
}

func TestControllerJumpTo(t *testing.T) {
	c, clock, _ := newController(t, 4)
	if err := c.JumpTo(4); err != nil {
		t.Fatalf("jump: %v", err)
	}
	if clock.Pending() != 0 {
		t.Fatalf("jump must not schedule anything")
	}
	top, _ := c.Stack().TopCard()
	if top.ID != 4 {
		t.Fatalf("expected card 4 on top, got %d", top.ID)
	}
	if err := c.Stack().Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	c.Down(4, cardstack.Vec2{}, 0)
	if err := c.JumpTo(2); !errors.Is(err, ErrGestureActive) {
		t.Fatalf("expected ErrGestureActive, got %v", err)
	}
}

func TestControllerCycleTo(t *testing.T) {
	c, clock, events := newController(t, 4)
	if err := c.CycleTo(3); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	clock.Advance(DefaultThrowDuration)
	top, _ := c.Stack().TopCard()
	if top.ID != 2 || !top.Thrown {
		t.Fatalf("expected card 2 mid-throw after first recycle, got %+v", top)
	}
	if err := c.Stack().Validate(); err != nil {
		t.Fatalf("validate mid-cycle: %v", err)
	}
	clock.Advance(DefaultThrowDuration)
	top, _ = c.Stack().TopCard()
	if top.ID != 3 || top.Thrown {
		t.Fatalf("expected card 3 on top at rest, got %+v", top)
	}
	want := map[int]int{1: 2, 2: 1, 3: 4, 4: 3}
	if diff := cmp.Diff(want, ranksOf(c.Stack())); diff != "" {
		t.Fatalf("ranks mismatch (-want +got):\n%s", diff)
	}
	recycled := 0
	for _, ev := range *events {
		if ev.Kind == EventRecycled {
			recycled++
		}
	}
	if recycled != 2 {
		t.Fatalf("expected 2 recycles, got %d", recycled)
	}
}

func TestControllerAtMostOneThrown(t *testing.T) {
	c, clock, _ := newController(t, 3)
	if err := c.Fling(cardstack.Vec2{X: 1}); err != nil {
		t.Fatalf("fling: %v", err)
	}
	if err := c.Fling(cardstack.Vec2{X: 1}); !errors.Is(err, cardstack.ErrThrowInFlight) {
		t.Fatalf("expected ErrThrowInFlight, got %v", err)
	}
	if err := c.CycleTo(3); !errors.Is(err, cardstack.ErrThrowInFlight) {
		t.Fatalf("expected ErrThrowInFlight, got %v", err)
	}
	clock.Drain()
	if err := c.Stack().Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
