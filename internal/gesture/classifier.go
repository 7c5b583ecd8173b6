package gesture

import "github.com/verte-zerg/cardstack/internal/cardstack"

// Decision is the outcome of releasing a dragged card.
type Decision int

const (
	SnapBack Decision = iota
	Throw
)

func (d Decision) String() string {
	switch d {
	case Throw:
		return "throw"
	case SnapBack:
		return "snapback"
	default:
		return "unknown"
	}
}

// Classify decides whether a release velocity is a throw. The comparison is
// strict: a release at exactly the threshold snaps back.
func Classify(t Tuning, v cardstack.Vec2) Decision {
	if v.Len() > t.ThrowSpeed {
		return Throw
	}
	return SnapBack
}

// Project extrapolates where a thrown card lands and how far it spins,
// starting from its transform at release.
func Project(t Tuning, c cardstack.Card, v cardstack.Vec2) (cardstack.Vec2, float64) {
	offset := c.Offset.Add(v.Scale(t.Projection))
	rotation := c.Rotation + v.X*t.RotationKick
	return offset, rotation
}
