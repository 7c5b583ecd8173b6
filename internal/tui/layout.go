package tui

import (
	"math"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/cardstack/internal/cardstack"
)

const (
	cardCols    = 26
	cardRows    = 9
	minCardCols = 8
	minCardRows = 4
	// maxDepth caps how far lower cards peek out below the top card.
	maxDepth = 3

	dotOn  = "●"
	dotOff = "○"
)

type rect struct {
	x, y, w, h int
}

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

// layout maps stack units to cells of the stack area.
type layout struct {
	width, height         int
	cellWidth, cellHeight float64
}

// toUnits converts a terminal cell to stack units.
func (l layout) toUnits(x, y int) cardstack.Vec2 {
	return cardstack.Vec2{X: float64(x) * l.cellWidth, Y: float64(y) * l.cellHeight}
}

// cardRect places a card whose displayed offset is pos. depth is the number
// of cards above it.
func (l layout) cardRect(pos cardstack.Vec2, scale float64, depth int) rect {
	if scale <= 0 {
		scale = 1
	}
	w := max(minCardCols, int(math.Round(cardCols*scale)))
	h := max(minCardRows, int(math.Round(cardRows*scale)))
	depth = min(max(depth, 0), maxDepth)
	cx := float64(l.width)/2 + pos.X/l.cellWidth
	cy := float64(l.height)/2 + pos.Y/l.cellHeight + float64(depth)
	return rect{
		x: int(math.Round(cx - float64(w)/2)),
		y: int(math.Round(cy - float64(h)/2)),
		w: w,
		h: h,
	}
}

// dotColumns returns the starting column of each dot in a centered row of
// n dots, and the width of one dot.
func dotColumns(width, n int) ([]int, int) {
	dw := max(runewidth.StringWidth(dotOn), runewidth.StringWidth(dotOff))
	if n <= 0 {
		return nil, dw
	}
	total := n*dw + (n - 1)
	start := max(0, (width-total)/2)
	xs := make([]int, n)
	for i := range xs {
		xs[i] = start + i*(dw+1)
	}
	return xs, dw
}

// dotAt returns the card id of the dot under column x, or 0.
func dotAt(width, n, x int) int {
	xs, dw := dotColumns(width, n)
	for i, dx := range xs {
		if x >= dx && x < dx+dw {
			return i + 1
		}
	}
	return 0
}
