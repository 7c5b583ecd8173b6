// Package gesture turns pointer input into drags, throws and snap-backs on
// a card stack.
package gesture

import (
	"fmt"
	"time"

	"github.com/verte-zerg/cardstack/internal/cardstack"
	"github.com/verte-zerg/cardstack/internal/model"
)

const (
	DefaultDragRotation  = 0.1 // degrees per unit of horizontal drag
	DefaultThrowSpeed    = 0.6 // units/ms
	DefaultProjection    = 800.0
	DefaultRotationKick  = 50.0
	DefaultThrowDuration = 400 * time.Millisecond
)

// Tuning holds the constants that shape a gesture.
type Tuning struct {
	DragRotation float64
	// ThrowSpeed is the release speed, in units/ms, a gesture must exceed
	// to count as a throw.
	ThrowSpeed float64
	// Projection is the time window, in ms, over which the release velocity
	// is extrapolated to find the throw destination.
	Projection    float64
	RotationKick  float64
	ThrowDuration time.Duration
	ThrowScale    float64
	// RestJitter bounds the random rotation, in degrees, of a recycled card.
	RestJitter float64
}

// DefaultTuning returns the reference tuning.
func DefaultTuning() Tuning {
	return Tuning{
		DragRotation:  DefaultDragRotation,
		ThrowSpeed:    DefaultThrowSpeed,
		Projection:    DefaultProjection,
		RotationKick:  DefaultRotationKick,
		ThrowDuration: DefaultThrowDuration,
		ThrowScale:    cardstack.DefaultThrowScale,
		RestJitter:    cardstack.DefaultRestJitter,
	}
}

// FromPhysics converts config units to a Tuning.
func FromPhysics(p model.Physics) Tuning {
	return Tuning{
		DragRotation:  p.DragRotation,
		ThrowSpeed:    p.ThrowSpeed,
		Projection:    p.ProjectionMs,
		RotationKick:  p.RotationKick,
		ThrowDuration: time.Duration(p.ThrowDurationMs) * time.Millisecond,
		ThrowScale:    p.ThrowScale,
		RestJitter:    p.RestJitter,
	}
}

// Physics is the inverse of FromPhysics.
func (t Tuning) Physics() model.Physics {
	return model.Physics{
		DragRotation:    t.DragRotation,
		ThrowSpeed:      t.ThrowSpeed,
		ProjectionMs:    t.Projection,
		RotationKick:    t.RotationKick,
		ThrowDurationMs: int(t.ThrowDuration / time.Millisecond),
		ThrowScale:      t.ThrowScale,
		RestJitter:      t.RestJitter,
	}
}

// StackOptions returns the stack settings carried by the tuning.
func (t Tuning) StackOptions() []cardstack.Option {
	return []cardstack.Option{
		cardstack.WithThrowScale(t.ThrowScale),
		cardstack.WithRestJitter(t.RestJitter),
	}
}

// Validate reports the first out-of-range value. Messages name the config
// key.
func (t Tuning) Validate() error {
	if t.DragRotation < 0 {
		return fmt.Errorf("drag-rotation must be >= 0")
	}
	if t.ThrowSpeed <= 0 {
		return fmt.Errorf("throw-speed must be > 0")
	}
	if t.Projection < 0 {
		return fmt.Errorf("projection-ms must be >= 0")
	}
	if t.ThrowDuration <= 0 {
		return fmt.Errorf("throw-duration-ms must be > 0")
	}
	if t.ThrowScale <= 0 || t.ThrowScale > 1 {
		return fmt.Errorf("throw-scale must be between 0 and 1")
	}
	if t.RestJitter < 0 {
		return fmt.Errorf("rest-jitter must be >= 0")
	}
	return nil
}
