package cardstack

import (
	"math/rand"
	"time"
)

// RNG abstracts random number generation for deterministic testing.
type RNG interface {
	// Float64 returns a pseudo-random number in [0.0, 1.0).
	Float64() float64
}

// NewRand returns an RNG seeded with the current time.
func NewRand() RNG {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// NewSeededRand returns an RNG with a fixed seed, used for replays.
func NewSeededRand(seed int64) RNG {
	return rand.New(rand.NewSource(seed))
}
