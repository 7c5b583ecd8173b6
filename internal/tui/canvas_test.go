package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/cardstack/internal/cardstack"
)

func plainPalette() []lipgloss.Style {
	styles := make([]lipgloss.Style, len(palette))
	for i := range styles {
		styles[i] = lipgloss.NewStyle()
	}
	return styles
}

func TestCanvasBoxTruncatesWideRunes(t *testing.T) {
	cv := newCanvas(10, 3, plainPalette())
	cv.box(rect{x: 0, y: 0, w: 10, h: 3}, lipgloss.RoundedBorder(), styleTopBorder, styleTopText, []string{"猫abcdef"})
	lines := strings.Split(cv.render(), "\n")
	want := []string{
		"╭────────╮",
		"│ 猫abc… │",
		"╰────────╯",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestCanvasOverwriteSplitsWideRune(t *testing.T) {
	cv := newCanvas(3, 1, plainPalette())
	cv.set(0, 0, '猫', styleTopText)
	cv.set(1, 0, 'x', styleTopText)
	if got := cv.render(); got != " x " {
		t.Fatalf("unexpected render %q", got)
	}
}

func TestCanvasClipsOutside(t *testing.T) {
	cv := newCanvas(4, 2, plainPalette())
	cv.box(rect{x: -2, y: -1, w: 5, h: 3}, lipgloss.NormalBorder(), styleCardBorder, styleCardText, nil)
	lines := strings.Split(cv.render(), "\n")
	if lines[0] != "  │ " || lines[1] != "──┘ " {
		t.Fatalf("unexpected clipped render %q", lines)
	}
}

func TestLayoutCardRect(t *testing.T) {
	l := layout{width: 80, height: 24, cellWidth: 8, cellHeight: 16}
	tests := []struct {
		name  string
		pos   cardstack.Vec2
		scale float64
		depth int
		want  rect
	}{
		{name: "centered", scale: 1, want: rect{x: 27, y: 8, w: 26, h: 9}},
		{name: "offset", pos: cardstack.Vec2{X: 80, Y: 32}, scale: 1, want: rect{x: 37, y: 10, w: 26, h: 9}},
		{name: "thrown scale", scale: 0.8, want: rect{x: 30, y: 9, w: 21, h: 7}},
		{name: "depth capped", scale: 1, depth: 7, want: rect{x: 27, y: 11, w: 26, h: 9}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := l.cardRect(tc.pos, tc.scale, tc.depth); got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestLayoutToUnits(t *testing.T) {
	l := layout{cellWidth: 8, cellHeight: 16}
	if got := l.toUnits(3, 2); got != (cardstack.Vec2{X: 24, Y: 32}) {
		t.Fatalf("unexpected units %+v", got)
	}
}

func TestDotAt(t *testing.T) {
	xs, dw := dotColumns(20, 4)
	if dw != 1 {
		t.Skipf("dot glyphs render %d cells wide in this locale", dw)
	}
	if xs[0] != 6 || xs[3] != 12 {
		t.Fatalf("unexpected dot columns %v", xs)
	}
	if got := dotAt(20, 4, 10); got != 3 {
		t.Fatalf("expected card 3, got %d", got)
	}
	if got := dotAt(20, 4, 7); got != 0 {
		t.Fatalf("gap should miss, got %d", got)
	}
}

func TestCardForKey(t *testing.T) {
	if got := cardForKey(jumpKeys, "3"); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := cardForKey(cycleKeys, "("); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
	if got := cardForKey(jumpKeys, "x"); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
