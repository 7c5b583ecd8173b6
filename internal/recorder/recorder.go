// Package recorder buffers controller events into a replayable trace.
package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/verte-zerg/cardstack/internal/gesture"
	"github.com/verte-zerg/cardstack/internal/model"
)

// Store is the persistence the recorder flushes into.
type Store interface {
	InsertTrace(ctx context.Context, trace model.Trace, events []model.TraceEvent) (string, error)
}

// Recorder collects events from a gesture.Controller.
type Recorder struct {
	mu     sync.Mutex
	trace  model.Trace
	events []model.TraceEvent
	now    func() time.Time
}

// New starts a trace for the given deck, stack seed and tuning. Cell sizes
// are stored so replays can report the terminal scale the positions were
// recorded at.
func New(deck []string, seed int64, tuning gesture.Tuning, cellWidth, cellHeight float64) *Recorder {
	r := &Recorder{now: time.Now}
	r.trace = model.Trace{
		StartedAt:  r.now(),
		Deck:       append([]string(nil), deck...),
		Seed:       seed,
		CellWidth:  cellWidth,
		CellHeight: cellHeight,
		Physics:    tuning.Physics(),
	}
	return r
}

// Observe implements gesture.Observer.
func (r *Recorder) Observe(ev gesture.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev.Kind {
	case gesture.EventThrow:
		r.trace.Throws++
	case gesture.EventSnapBack:
		r.trace.SnapBacks++
	case gesture.EventJump:
		r.trace.Jumps++
	}
	r.events = append(r.events, model.TraceEvent{
		Seq:    len(r.events),
		Kind:   string(ev.Kind),
		CardID: ev.CardID,
		X:      ev.Pos.X,
		Y:      ev.Pos.Y,
		VX:     ev.Velocity.X,
		VY:     ev.Velocity.Y,
		AtMs:   float64(ev.At) / float64(time.Millisecond),
	})
}

// Len returns the number of buffered events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Counts returns throws, snap-backs and jumps seen so far.
func (r *Recorder) Counts() (throws, snapBacks, jumps int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trace.Throws, r.trace.SnapBacks, r.trace.Jumps
}

// Flush writes the trace and returns its id. A trace with no events is not
// written and yields an empty id.
func (r *Recorder) Flush(ctx context.Context, st Store) (string, error) {
	r.mu.Lock()
	trace := r.trace
	events := append([]model.TraceEvent(nil), r.events...)
	r.mu.Unlock()

	if len(events) == 0 {
		return "", nil
	}
	trace.EndedAt = r.now()
	id, err := st.InsertTrace(ctx, trace, events)
	if err != nil {
		return "", fmt.Errorf("failed to save trace: %w", err)
	}
	return id, nil
}
