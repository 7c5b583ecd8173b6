package tui

import (
	"math"

	"github.com/charmbracelet/harmonica"

	"github.com/verte-zerg/cardstack/internal/cardstack"
)

const (
	fps             = 60
	springFrequency = 9.0
	springDamping   = 0.75

	settleDistance = 0.5
	settleOpacity  = 0.01
)

// motion is the displayed transform of one card: x, y and opacity.
type motion struct {
	pos [3]float64
	vel [3]float64
}

func (m *motion) offset() cardstack.Vec2 {
	return cardstack.Vec2{X: m.pos[0], Y: m.pos[1]}
}

func (m *motion) opacity() float64 {
	return math.Min(1, math.Max(0, m.pos[2]))
}

// springField eases each card's displayed transform toward its model
// transform.
type springField struct {
	spring harmonica.Spring
	cards  map[int]*motion
}

func newSpringField(fps int, frequency, damping float64) *springField {
	return &springField{
		spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping),
		cards:  map[int]*motion{},
	}
}

func target(c cardstack.Card) [3]float64 {
	return [3]float64{c.Offset.X, c.Offset.Y, c.Opacity}
}

// get returns the displayed transform of c. Cards seen for the first
// time start at rest on their target.
func (s *springField) get(c cardstack.Card) *motion {
	m, ok := s.cards[c.ID]
	if !ok {
		m = &motion{pos: target(c)}
		s.cards[c.ID] = m
	}
	return m
}

// snap pins c to its target with no residual velocity.
func (s *springField) snap(c cardstack.Card) {
	m := s.get(c)
	m.pos = target(c)
	m.vel = [3]float64{}
}

// step advances c by one frame and reports whether it is still moving.
func (s *springField) step(c cardstack.Card) bool {
	m := s.get(c)
	t := target(c)
	moving := false
	for i := range m.pos {
		m.pos[i], m.vel[i] = s.spring.Update(m.pos[i], m.vel[i], t[i])
		eps := settleDistance
		if i == 2 {
			eps = settleOpacity
		}
		if math.Abs(m.pos[i]-t[i]) > eps || math.Abs(m.vel[i]) > eps {
			moving = true
		}
	}
	if !moving {
		m.pos = t
		m.vel = [3]float64{}
	}
	return moving
}
