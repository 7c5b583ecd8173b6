// Package model defines shared data structures.
package model

import "time"

// Config defines settings for an interactive session.
type Config struct {
	DeckPath   string
	Scheme     string
	Seed       int64
	Record     bool
	CellWidth  float64
	CellHeight float64
	LogLevel   string
	Physics    Physics
}

// Physics mirrors the gesture tuning in config-file friendly units.
type Physics struct {
	DragRotation    float64
	ThrowSpeed      float64
	ProjectionMs    float64
	RotationKick    float64
	ThrowDurationMs int
	ThrowScale      float64
	RestJitter      float64
}

// TraceFilter selects recorded traces.
type TraceFilter struct {
	Since *time.Time
	Last  int
}

// Trace summarises one recorded session. Physics is the tuning the session
// ran with; it is zero for traces stored before tuning was recorded.
type Trace struct {
	ID         string
	StartedAt  time.Time
	EndedAt    time.Time
	Deck       []string
	Seed       int64
	CellWidth  float64
	CellHeight float64
	Physics    Physics
	Throws     int
	SnapBacks  int
	Jumps      int
}

// TraceEvent is one recorded controller input.
type TraceEvent struct {
	Seq    int
	Kind   string
	CardID int
	X      float64
	Y      float64
	VX     float64
	VY     float64
	AtMs   float64
}

// Release is a recorded gesture release, used for speed summaries.
type Release struct {
	TraceID string
	Speed   float64
	Thrown  bool
}
