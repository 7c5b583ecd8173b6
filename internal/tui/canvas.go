package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	stylePlain = iota
	styleTopBorder
	styleDragBorder
	styleCardBorder
	styleFadedBorder
	styleTopText
	styleCardText
	styleFadedText
)

var palette = []lipgloss.Style{
	stylePlain:       lipgloss.NewStyle(),
	styleTopBorder:   lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")),
	styleDragBorder:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")),
	styleCardBorder:  lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")),
	styleFadedBorder: lipgloss.NewStyle().Foreground(lipgloss.Color("#3A3A3A")),
	styleTopText:     lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")),
	styleCardText:    lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")),
	styleFadedText:   lipgloss.NewStyle().Foreground(lipgloss.Color("#3A3A3A")),
}

type cell struct {
	r     rune
	style int
	// cont marks the trailing column of a double-width rune.
	cont bool
}

// canvas is a fixed grid of styled cells. Later writes cover earlier ones,
// so cards are painted bottom rank first.
type canvas struct {
	w, h    int
	cells   []cell
	palette []lipgloss.Style
}

func newCanvas(w, h int, styles []lipgloss.Style) *canvas {
	w, h = max(w, 0), max(h, 0)
	c := &canvas{w: w, h: h, cells: make([]cell, w*h), palette: styles}
	for i := range c.cells {
		c.cells[i] = cell{r: ' '}
	}
	return c
}

func (c *canvas) inside(x, y int) bool {
	return x >= 0 && y >= 0 && x < c.w && y < c.h
}

func (c *canvas) set(x, y int, r rune, style int) {
	if !c.inside(x, y) {
		return
	}
	rw := runewidth.RuneWidth(r)
	if rw == 0 {
		return
	}
	if rw == 2 && x+1 >= c.w {
		r, rw = ' ', 1
	}
	c.clearWide(x, y)
	c.cells[y*c.w+x] = cell{r: r, style: style}
	if rw == 2 {
		c.clearWide(x+1, y)
		c.cells[y*c.w+x+1] = cell{style: style, cont: true}
	}
}

// clearWide blanks the other half of a wide rune about to be split.
func (c *canvas) clearWide(x, y int) {
	i := y*c.w + x
	cur := c.cells[i]
	if cur.cont && x > 0 {
		c.cells[i-1] = cell{r: ' ', style: c.cells[i-1].style}
	}
	if !cur.cont && runewidth.RuneWidth(cur.r) == 2 && x+1 < c.w {
		c.cells[i+1] = cell{r: ' ', style: cur.style}
	}
}

// text writes s starting at x and returns the column after the last rune.
func (c *canvas) text(x, y int, s string, style int) int {
	for _, r := range s {
		c.set(x, y, r, style)
		x += runewidth.RuneWidth(r)
	}
	return x
}

func (c *canvas) fill(r rect, style int) {
	for y := r.y; y < r.y+r.h; y++ {
		for x := r.x; x < r.x+r.w; x++ {
			c.set(x, y, ' ', style)
		}
	}
}

// box paints a bordered rectangle with an opaque interior and the given
// lines of content, each truncated to the inner width.
func (c *canvas) box(r rect, border lipgloss.Border, borderStyle, textStyle int, lines []string) {
	if r.w < 2 || r.h < 2 {
		return
	}
	c.fill(rect{x: r.x + 1, y: r.y + 1, w: r.w - 2, h: r.h - 2}, textStyle)
	right, bottom := r.x+r.w-1, r.y+r.h-1
	top, bot := firstRune(border.Top), firstRune(border.Bottom)
	left, rgt := firstRune(border.Left), firstRune(border.Right)
	for x := r.x + 1; x < right; x++ {
		c.set(x, r.y, top, borderStyle)
		c.set(x, bottom, bot, borderStyle)
	}
	for y := r.y + 1; y < bottom; y++ {
		c.set(r.x, y, left, borderStyle)
		c.set(right, y, rgt, borderStyle)
	}
	c.set(r.x, r.y, firstRune(border.TopLeft), borderStyle)
	c.set(right, r.y, firstRune(border.TopRight), borderStyle)
	c.set(r.x, bottom, firstRune(border.BottomLeft), borderStyle)
	c.set(right, bottom, firstRune(border.BottomRight), borderStyle)

	inner := r.w - 4
	if inner <= 0 {
		return
	}
	for i, line := range lines {
		y := r.y + 1 + i
		if y >= bottom {
			break
		}
		c.text(r.x+2, y, runewidth.Truncate(line, inner, "…"), textStyle)
	}
}

func (c *canvas) render() string {
	rows := make([]string, c.h)
	for y := 0; y < c.h; y++ {
		var b, run strings.Builder
		runStyle := -1
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if runStyle <= stylePlain || runStyle >= len(c.palette) {
				b.WriteString(run.String())
			} else {
				b.WriteString(c.palette[runStyle].Render(run.String()))
			}
			run.Reset()
		}
		for x := 0; x < c.w; x++ {
			cl := c.cells[y*c.w+x]
			if cl.cont {
				continue
			}
			if cl.style != runStyle {
				flush()
				runStyle = cl.style
			}
			run.WriteRune(cl.r)
		}
		flush()
		rows[y] = b.String()
	}
	return strings.Join(rows, "\n")
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return ' '
}
