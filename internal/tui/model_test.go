package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/cardstack/internal/cardstack"
	"github.com/verte-zerg/cardstack/internal/gesture"
	"github.com/verte-zerg/cardstack/internal/schedule"
)

type fixture struct {
	m     *Model
	ctrl  *gesture.Controller
	stack *cardstack.Stack
	clock *schedule.Manual
	n     *Notifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stack := cardstack.New(cardstack.WithRNG(cardstack.NewSeededRand(1)))
	if err := stack.Initialize([]string{"https://example.com/a.jpg", "b.jpg", "c.jpg", "d.jpg"}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	clock := schedule.NewManual()
	n := NewNotifier()
	ctrl := gesture.NewController(stack, gesture.WithScheduler(clock), gesture.WithObserver(n.Observe))
	m := NewModel(ctrl, n, Options{})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	t.Cleanup(func() {
		ctrl.Close()
		n.Close()
	})
	return &fixture{m: m, ctrl: ctrl, stack: stack, clock: clock, n: n}
}

func (f *fixture) topCenter(t *testing.T) (int, int) {
	t.Helper()
	top, err := f.stack.TopCard()
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	r := f.m.cardRect(f.m.layout(len(f.m.footer())), top, 0)
	return r.x + r.w/2, r.y + r.h/2
}

func (f *fixture) drainKinds() []gesture.EventKind {
	var kinds []gesture.EventKind
	for {
		select {
		case ev := <-f.n.ch:
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

func mouse(x, y int, action tea.MouseAction) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: action, Button: tea.MouseButtonLeft}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestDragAndFastReleaseThrows(t *testing.T) {
	f := newFixture(t)
	x, y := f.topCenter(t)

	f.m.Update(mouse(x, y, tea.MouseActionPress))
	if got := f.ctrl.Session().ActiveID; got != 1 {
		t.Fatalf("expected drag on card 1, got %d", got)
	}
	f.clock.Advance(10 * time.Millisecond)
	f.m.Update(mouse(x+10, y, tea.MouseActionMotion))
	f.m.Update(mouse(x+10, y, tea.MouseActionRelease))

	thrown, ok := f.stack.Thrown()
	if !ok || thrown.ID != 1 {
		t.Fatalf("expected card 1 thrown, got %+v ok=%v", thrown, ok)
	}
	f.clock.Advance(gesture.DefaultThrowDuration)
	card, _ := f.stack.Card(1)
	if card.Z != 1 || card.Thrown {
		t.Fatalf("expected card 1 recycled to the bottom, got %+v", card)
	}
	want := []gesture.EventKind{gesture.EventDown, gesture.EventMove, gesture.EventUp, gesture.EventThrow, gesture.EventRecycled}
	got := f.drainKinds()
	if strings.Join(kindStrings(got), ",") != strings.Join(kindStrings(want), ",") {
		t.Fatalf("expected events %v, got %v", want, got)
	}
}

func TestSlowReleaseSnapsBack(t *testing.T) {
	f := newFixture(t)
	x, y := f.topCenter(t)
	f.m.Update(mouse(x, y, tea.MouseActionPress))
	f.clock.Advance(500 * time.Millisecond)
	f.m.Update(mouse(x+2, y, tea.MouseActionMotion))
	f.m.Update(mouse(x+2, y, tea.MouseActionRelease))
	card, _ := f.stack.Card(1)
	if card.Thrown || card.Offset != (cardstack.Vec2{}) || card.Z != 4 {
		t.Fatalf("expected card 1 back at rest on top, got %+v", card)
	}
}

func TestPressOutsideTopCardIgnored(t *testing.T) {
	f := newFixture(t)
	f.m.Update(mouse(0, 0, tea.MouseActionPress))
	if f.ctrl.Session().Active() {
		t.Fatalf("press outside the card must not start a drag")
	}
}

func TestDotClickJumps(t *testing.T) {
	f := newFixture(t)
	area := f.m.layout(len(f.m.footer()))
	xs, _ := dotColumns(f.m.width, 4)
	f.m.Update(mouse(xs[2], area.height, tea.MouseActionPress))
	top, _ := f.stack.TopCard()
	if top.ID != 3 {
		t.Fatalf("expected card 3 on top, got %d", top.ID)
	}
}

func TestDigitKeys(t *testing.T) {
	f := newFixture(t)
	f.m.Update(runes("2"))
	if top, _ := f.stack.TopCard(); top.ID != 2 {
		t.Fatalf("expected card 2 on top, got %d", top.ID)
	}
	f.m.Update(runes("9"))
	if f.m.notice == "" {
		t.Fatalf("jump to a missing card should leave a notice")
	}
}

func TestShiftDigitCycles(t *testing.T) {
	f := newFixture(t)
	f.m.Update(runes("#"))
	if _, ok := f.stack.Thrown(); !ok {
		t.Fatalf("cycle should start by throwing the top card")
	}
	f.clock.Drain()
	if top, _ := f.stack.TopCard(); top.ID != 3 {
		t.Fatalf("expected card 3 on top, got %d", top.ID)
	}
	if err := f.stack.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestSpaceFlingsTopCard(t *testing.T) {
	f := newFixture(t)
	_, cmd := f.m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	thrown, ok := f.stack.Thrown()
	if !ok || thrown.ID != 1 || thrown.Offset.X <= 0 {
		t.Fatalf("expected card 1 thrown to the right, got %+v ok=%v", thrown, ok)
	}
	if cmd == nil {
		t.Fatalf("expected an animation frame to be scheduled")
	}
	f.m.Update(runes(" "))
	if !strings.Contains(f.m.notice, "throw") {
		t.Fatalf("second fling mid-throw should be reported, got %q", f.m.notice)
	}
}

func TestFramesEaseTowardThrowDestination(t *testing.T) {
	f := newFixture(t)
	f.m.Update(runes(" "))
	thrown, _ := f.stack.Thrown()
	f.m.Update(frameMsg(time.Now()))
	first := f.m.springs.get(thrown).offset().X
	if first <= 0 || first >= thrown.Offset.X {
		t.Fatalf("expected first frame between rest and destination, got %v", first)
	}
	f.clock.Drain()
	var cmd tea.Cmd
	for i := 0; i < 600; i++ {
		_, cmd = f.m.Update(frameMsg(time.Now()))
		if cmd == nil {
			break
		}
	}
	if cmd != nil || f.m.animating {
		t.Fatalf("springs should settle once the card is recycled")
	}
	card, _ := f.stack.Card(thrown.ID)
	if got := f.m.springs.get(card).offset(); got != card.Offset {
		t.Fatalf("settled offset %+v differs from model %+v", got, card.Offset)
	}
}

func TestQuitClosesController(t *testing.T) {
	f := newFixture(t)
	_, cmd := f.m.Update(runes("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if f.ctrl.Down(1, cardstack.Vec2{}, 0) {
		t.Fatalf("controller should be closed after quit")
	}
}

func TestStatusLineToggle(t *testing.T) {
	f := newFixture(t)
	f.m.Update(runes("r"))
	if !strings.Contains(f.m.View(), "not recording") {
		t.Fatalf("expected status line in view")
	}
	f.m.Update(runes("r"))
	if strings.Contains(f.m.View(), "not recording") {
		t.Fatalf("expected status line hidden")
	}
}

func TestViewShowsTopCard(t *testing.T) {
	f := newFixture(t)
	view := f.m.View()
	if !strings.Contains(view, "a.jpg") || !strings.Contains(view, "#1  rank 4/4") {
		t.Fatalf("expected top card label in view:\n%s", view)
	}
	if lines := strings.Count(view, "\n") + 1; lines != 30 {
		t.Fatalf("expected view to fill 30 rows, got %d", lines)
	}
}

func TestNotifierNeverBlocks(t *testing.T) {
	n := NewNotifier()
	for i := 0; i < notifyBuffer*2; i++ {
		n.Observe(gesture.Event{Kind: gesture.EventMove})
	}
	n.Close()
	n.Close()
	n.Observe(gesture.Event{Kind: gesture.EventMove})
	count := 0
	for range n.ch {
		count++
	}
	if count != notifyBuffer {
		t.Fatalf("expected %d buffered events, got %d", notifyBuffer, count)
	}
	if msg := listen(n.ch)(); msg != nil {
		t.Fatalf("listen on a closed notifier should yield nil, got %v", msg)
	}
}

func kindStrings(kinds []gesture.EventKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
