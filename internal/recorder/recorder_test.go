package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/verte-zerg/cardstack/internal/cardstack"
	"github.com/verte-zerg/cardstack/internal/gesture"
	"github.com/verte-zerg/cardstack/internal/model"
	"github.com/verte-zerg/cardstack/internal/schedule"
)

type fakeStore struct {
	trace  model.Trace
	events []model.TraceEvent
	err    error
}

func (f *fakeStore) InsertTrace(_ context.Context, trace model.Trace, events []model.TraceEvent) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.trace = trace
	f.events = events
	return "trace-1", nil
}

func TestRecorderCapturesControllerEvents(t *testing.T) {
	stack := cardstack.New(cardstack.WithRNG(cardstack.NewSeededRand(7)))
	if err := stack.Initialize([]string{"a", "b", "c"}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	rec := New([]string{"a", "b", "c"}, 7, gesture.DefaultTuning(), 8, 16)
	clock := schedule.NewManual()
	ctrl := gesture.NewController(stack, gesture.WithScheduler(clock), gesture.WithObserver(rec.Observe))
	defer ctrl.Close()

	ctrl.Down(1, cardstack.Vec2{}, 0)
	clock.AdvanceTo(20 * time.Millisecond)
	ctrl.Move(cardstack.Vec2{X: 40}, 20*time.Millisecond)
	ctrl.Up(20 * time.Millisecond)
	clock.Advance(time.Second)
	if err := ctrl.JumpTo(3); err != nil {
		t.Fatalf("jump: %v", err)
	}

	throws, snaps, jumps := rec.Counts()
	if throws != 1 || snaps != 0 || jumps != 1 {
		t.Fatalf("unexpected counts throws=%d snaps=%d jumps=%d", throws, snaps, jumps)
	}

	st := &fakeStore{}
	id, err := rec.Flush(context.Background(), st)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if id != "trace-1" {
		t.Fatalf("unexpected id %q", id)
	}
	kinds := make([]string, len(st.events))
	for i, ev := range st.events {
		kinds[i] = ev.Kind
		if ev.Seq != i {
			t.Fatalf("event %d has seq %d", i, ev.Seq)
		}
	}
	want := []string{"down", "move", "up", "throw", "recycled", "jump"}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, kinds)
		}
	}
	if st.events[1].AtMs != 20 || st.events[1].X != 40 {
		t.Fatalf("unexpected move event %+v", st.events[1])
	}
	if st.events[4].AtMs != 420 {
		t.Fatalf("expected recycle at 420ms, got %v", st.events[4].AtMs)
	}
	if st.trace.Seed != 7 || len(st.trace.Deck) != 3 || st.trace.EndedAt.IsZero() {
		t.Fatalf("unexpected trace header %+v", st.trace)
	}
	if st.trace.Physics != gesture.DefaultTuning().Physics() {
		t.Fatalf("expected recorded tuning, got %+v", st.trace.Physics)
	}
}

func TestRecorderFlushEmpty(t *testing.T) {
	rec := New(nil, 0, gesture.DefaultTuning(), 8, 16)
	st := &fakeStore{err: errors.New("should not be called")}
	id, err := rec.Flush(context.Background(), st)
	if err != nil || id != "" {
		t.Fatalf("expected empty flush to be a no-op, got id=%q err=%v", id, err)
	}
}

func TestRecorderFlushError(t *testing.T) {
	rec := New(nil, 0, gesture.DefaultTuning(), 8, 16)
	rec.Observe(gesture.Event{Kind: gesture.EventDown, CardID: 1})
	boom := errors.New("disk full")
	if _, err := rec.Flush(context.Background(), &fakeStore{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
