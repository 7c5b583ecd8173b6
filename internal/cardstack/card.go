// Package cardstack holds the card stack model and its reordering rules.
package cardstack

import (
	"errors"
	"math"
)

var (
	ErrEmptyStack         = errors.New("card stack is empty")
	ErrUnknownCard        = errors.New("unknown card")
	ErrAlreadyInitialized = errors.New("card stack already initialized")
	ErrNotInitialized     = errors.New("card stack not initialized")
	ErrNotTop             = errors.New("card is not on top of the stack")
	ErrThrowInFlight      = errors.New("a card is already being thrown")
)

// Vec2 is a 2D vector in position units.
type Vec2 struct {
	X float64
	Y float64
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

// Sub returns v-o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

// Scale returns v*k.
func (v Vec2) Scale(k float64) Vec2 { return Vec2{X: v.X * k, Y: v.Y * k} }

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Card is a single tile in the stack together with its transient transform.
type Card struct {
	ID       int
	ImageRef string

	Offset   Vec2
	Rotation float64
	Scale    float64
	Opacity  float64
	Thrown   bool
	// Z is the stacking rank; the card with Z == N is on top.
	Z int

	// RestRotation is the rotation the card returns to on snap-back.
	RestRotation float64
}

// AtRest reports whether the card has its rest transform.
func (c Card) AtRest() bool {
	return c.Offset == (Vec2{}) &&
		c.Rotation == c.RestRotation &&
		c.Scale == 1 &&
		c.Opacity == 1 &&
		!c.Thrown
}

func (c *Card) rest(rotation float64) {
	c.Offset = Vec2{}
	c.Rotation = rotation
	c.RestRotation = rotation
	c.Scale = 1
	c.Opacity = 1
	c.Thrown = false
}
