// Package replay re-runs a recorded trace against a fresh stack on a
// virtual clock.
package replay

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/cardstack/internal/cardstack"
	"github.com/verte-zerg/cardstack/internal/gesture"
	"github.com/verte-zerg/cardstack/internal/model"
	"github.com/verte-zerg/cardstack/internal/schedule"
)

// Options controls a replay.
type Options struct {
	// Tuning is used only for traces recorded without their tuning.
	Tuning gesture.Tuning
	// Check validates stack invariants after every event.
	Check  bool
	Logger *zap.Logger
}

// Result is the final state of a replay.
type Result struct {
	Cards     []cardstack.Card
	Throws    int
	SnapBacks int
	Jumps     int
	Recycles  int
	Inputs    int
	Duration  time.Duration
	// Tuning is the tuning the replay ran with.
	Tuning gesture.Tuning
	// Diverged is set when the replayed outcome counts differ from the
	// counts stored with the trace.
	Diverged bool
}

// Run replays the input events of a trace with the tuning it was recorded
// with.
func Run(trace model.Trace, events []model.TraceEvent, opts Options) (Result, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	tuning, err := traceTuning(trace, opts.Tuning)
	if err != nil {
		return Result{}, err
	}
	stack := cardstack.New(append(tuning.StackOptions(),
		cardstack.WithRNG(cardstack.NewSeededRand(trace.Seed)))...)
	if err := stack.Initialize(trace.Deck); err != nil {
		return Result{}, fmt.Errorf("failed to initialize stack: %w", err)
	}

	res := Result{Tuning: tuning}
	clock := schedule.NewManual()
	ctrl := gesture.NewController(stack,
		gesture.WithScheduler(clock),
		gesture.WithTuning(tuning),
		gesture.WithLogger(opts.Logger),
		gesture.WithObserver(func(ev gesture.Event) {
			switch ev.Kind {
			case gesture.EventThrow:
				res.Throws++
			case gesture.EventSnapBack:
				res.SnapBacks++
			case gesture.EventJump:
				res.Jumps++
			case gesture.EventRecycled:
				res.Recycles++
			}
		}),
	)
	defer ctrl.Close()

	for _, ev := range events {
		kind := gesture.EventKind(ev.Kind)
		if !kind.Input() {
			continue
		}
		at := time.Duration(ev.AtMs * float64(time.Millisecond))
		clock.AdvanceTo(at)
		res.Inputs++
		if err := apply(ctrl, kind, ev, at); err != nil {
			return res, fmt.Errorf("event %d (%s): %w", ev.Seq, ev.Kind, err)
		}
		if opts.Check {
			if err := stack.Validate(); err != nil {
				return res, fmt.Errorf("event %d (%s): %w", ev.Seq, ev.Kind, err)
			}
		}
	}
	clock.Drain()
	if opts.Check {
		if err := stack.Validate(); err != nil {
			return res, fmt.Errorf("after drain: %w", err)
		}
	}

	res.Cards = stack.Cards()
	res.Duration = clock.Now()
	res.Diverged = res.Throws != trace.Throws || res.SnapBacks != trace.SnapBacks || res.Jumps != trace.Jumps
	return res, nil
}

// traceTuning prefers the tuning stored with the trace. Older traces carry
// none and fall back to the given tuning, then to the defaults.
func traceTuning(trace model.Trace, fallback gesture.Tuning) (gesture.Tuning, error) {
	if trace.Physics != (model.Physics{}) {
		tuning := gesture.FromPhysics(trace.Physics)
		if err := tuning.Validate(); err != nil {
			return gesture.Tuning{}, fmt.Errorf("invalid recorded tuning: %w", err)
		}
		return tuning, nil
	}
	if fallback == (gesture.Tuning{}) {
		return gesture.DefaultTuning(), nil
	}
	return fallback, nil
}

func apply(ctrl *gesture.Controller, kind gesture.EventKind, ev model.TraceEvent, at time.Duration) error {
	pos := cardstack.Vec2{X: ev.X, Y: ev.Y}
	switch kind {
	case gesture.EventDown:
		ctrl.Down(ev.CardID, pos, at)
	case gesture.EventMove:
		ctrl.Move(pos, at)
	case gesture.EventUp:
		ctrl.Up(at)
	case gesture.EventFling:
		// A recorded fling may have been refused live as well.
		if err := ctrl.Fling(cardstack.Vec2{X: ev.VX, Y: ev.VY}); err != nil && !errors.Is(err, cardstack.ErrThrowInFlight) {
			return err
		}
	case gesture.EventJump:
		return ctrl.JumpTo(ev.CardID)
	case gesture.EventCycle:
		return ctrl.CycleTo(ev.CardID)
	}
	return nil
}
