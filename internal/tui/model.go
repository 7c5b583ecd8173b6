// Package tui provides the Bubble Tea card stack interface.
package tui

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/verte-zerg/cardstack/internal/cardstack"
	"github.com/verte-zerg/cardstack/internal/gesture"
	"github.com/verte-zerg/cardstack/internal/recorder"
)

const (
	defaultCellWidth  = 8
	defaultCellHeight = 16
	// Cards fainter than this are not drawn.
	hiddenOpacity = 0.15
	fadedOpacity  = 0.6
)

var (
	dotOnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	dotOffStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

// Options configures the UI.
type Options struct {
	CellWidth  float64
	CellHeight float64
	// Recorder, when set, is reported on the status line.
	Recorder *recorder.Recorder
	Logger   *zap.Logger
}

// Model implements the Bubble Tea card stack UI.
type Model struct {
	ctrl    *gesture.Controller
	events  <-chan gesture.Event
	rec     *recorder.Recorder
	log     *zap.Logger
	keys    keyMap
	help    help.Model
	springs *springField

	cellWidth  float64
	cellHeight float64

	width  int
	height int

	animating  bool
	showStatus bool
	notice     string
	last       gesture.Event
	hasLast    bool
}

type frameMsg time.Time

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// NewModel constructs the UI for a controller whose events are forwarded
// by n.
func NewModel(ctrl *gesture.Controller, n *Notifier, opts Options) *Model {
	if opts.CellWidth <= 0 {
		opts.CellWidth = defaultCellWidth
	}
	if opts.CellHeight <= 0 {
		opts.CellHeight = defaultCellHeight
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	m := &Model{
		ctrl:       ctrl,
		events:     n.ch,
		rec:        opts.Recorder,
		log:        opts.Logger,
		keys:       defaultKeyMap(),
		help:       help.New(),
		springs:    newSpringField(fps, springFrequency, springDamping),
		cellWidth:  opts.CellWidth,
		cellHeight: opts.CellHeight,
	}
	for _, c := range ctrl.Stack().Cards() {
		m.springs.get(c)
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return listen(m.events)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		return m, m.handleMouse(msg)
	case stackEventMsg:
		m.last = gesture.Event(msg)
		m.hasLast = true
		return m, tea.Batch(listen(m.events), m.animate())
	case frameMsg:
		if m.step() {
			return m, frame()
		}
		m.animating = false
		return m, nil
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	footer := m.footer()
	area := m.layout(len(footer))
	cv := newCanvas(area.width, area.height, palette)
	m.paint(cv, area)
	return cv.render() + "\n" + strings.Join(footer, "\n")
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Status):
		m.showStatus = !m.showStatus
		return m, nil
	case key.Matches(msg, m.keys.Throw):
		v := cardstack.Vec2{X: m.ctrl.Tuning().ThrowSpeed * 2}
		m.report("throw", m.ctrl.Fling(v))
	case key.Matches(msg, m.keys.Jump):
		m.report("jump", m.ctrl.JumpTo(cardForKey(jumpKeys, msg.String())))
	case key.Matches(msg, m.keys.Cycle):
		m.report("cycle", m.ctrl.CycleTo(cardForKey(cycleKeys, msg.String())))
	default:
		return m, nil
	}
	return m, m.animate()
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	now := m.ctrl.Now()
	area := m.layout(len(m.footer()))
	pos := area.toUnits(msg.X, msg.Y)
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return nil
		}
		if msg.Y == area.height {
			if id := dotAt(m.width, m.ctrl.Stack().Len(), msg.X); id > 0 {
				m.report("jump", m.ctrl.JumpTo(id))
				return m.animate()
			}
			return nil
		}
		top, err := m.ctrl.Stack().TopCard()
		if err != nil {
			return nil
		}
		if !m.cardRect(area, top, 0).contains(msg.X, msg.Y) {
			return nil
		}
		if !m.ctrl.Down(top.ID, pos, now) {
			m.log.Debug("press ignored", zap.Int("card", top.ID))
			return nil
		}
		m.notice = ""
		return nil
	case tea.MouseActionMotion:
		if !m.ctrl.Session().Active() {
			return nil
		}
		m.ctrl.Move(pos, now)
		return m.animate()
	case tea.MouseActionRelease:
		rel, ok := m.ctrl.Up(now)
		if !ok {
			return nil
		}
		m.log.Debug("released",
			zap.Int("card", rel.CardID),
			zap.Stringer("decision", rel.Decision),
			zap.Float64("speed", rel.Velocity.Len()))
		return m.animate()
	}
	return nil
}

func (m *Model) report(op string, err error) {
	if err == nil {
		m.notice = ""
		return
	}
	m.notice = fmt.Sprintf("%s: %v", op, err)
	m.log.Debug("command rejected", zap.String("op", op), zap.Error(err))
}

func (m *Model) animate() tea.Cmd {
	if m.animating {
		return nil
	}
	m.animating = true
	return frame()
}

// step advances every card spring by one frame. The dragged card tracks the
// pointer directly.
func (m *Model) step() bool {
	active := m.ctrl.Session().ActiveID
	moving := false
	for _, c := range m.ctrl.Stack().Cards() {
		if c.ID == active {
			m.springs.snap(c)
			moving = true
			continue
		}
		if m.springs.step(c) {
			moving = true
		}
	}
	return moving
}

func (m *Model) layout(footerLines int) layout {
	return layout{
		width:      m.width,
		height:     max(0, m.height-footerLines),
		cellWidth:  m.cellWidth,
		cellHeight: m.cellHeight,
	}
}

func (m *Model) cardRect(area layout, c cardstack.Card, depth int) rect {
	return area.cardRect(m.springs.get(c).offset(), c.Scale, depth)
}

// paint draws cards from the bottom rank up.
func (m *Model) paint(cv *canvas, area layout) {
	cards := m.ctrl.Stack().Cards()
	active := m.ctrl.Session().ActiveID
	n := len(cards)
	for i := n - 1; i >= 0; i-- {
		c := cards[i]
		mo := m.springs.get(c)
		alpha := mo.opacity()
		if alpha < hiddenOpacity {
			continue
		}
		depth := n - c.Z
		if c.Thrown {
			depth = 0
		}
		borderStyle, textStyle := styleCardBorder, styleCardText
		switch {
		case alpha < fadedOpacity:
			borderStyle, textStyle = styleFadedBorder, styleFadedText
		case c.ID == active:
			borderStyle, textStyle = styleDragBorder, styleTopText
		case c.Z == n:
			borderStyle, textStyle = styleTopBorder, styleTopText
		}
		cv.box(m.cardRect(area, c, depth), lipgloss.RoundedBorder(), borderStyle, textStyle, cardLines(c, n, alpha))
	}
}

func cardLines(c cardstack.Card, n int, alpha float64) []string {
	lines := []string{
		path.Base(c.ImageRef),
		"",
		fmt.Sprintf("#%d  rank %d/%d", c.ID, c.Z, n),
		fmt.Sprintf("rot %+.1f°", c.Rotation),
	}
	if c.Thrown {
		lines = append(lines, fmt.Sprintf("thrown  α %.2f", alpha))
	}
	return lines
}

func (m *Model) footer() []string {
	lines := []string{m.renderDots()}
	if m.showStatus {
		lines = append(lines, m.center(footerStyle.Render(m.renderStatus())))
	}
	if m.notice != "" {
		lines = append(lines, m.center(noticeStyle.Render(m.notice)))
	}
	for _, line := range strings.Split(m.help.View(m.keys), "\n") {
		lines = append(lines, m.center(line))
	}
	return lines
}

func (m *Model) center(s string) string {
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Center, s)
}

func (m *Model) renderDots() string {
	n := m.ctrl.Stack().Len()
	xs, _ := dotColumns(m.width, n)
	if len(xs) == 0 {
		return ""
	}
	topID := 0
	if top, err := m.ctrl.Stack().TopCard(); err == nil {
		topID = top.ID
	}
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", xs[0]))
	for i := range xs {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i+1 == topID {
			b.WriteString(dotOnStyle.Render(dotOn))
		} else {
			b.WriteString(dotOffStyle.Render(dotOff))
		}
	}
	return b.String()
}

func (m *Model) renderStatus() string {
	segments := []string{}
	if m.rec == nil {
		segments = append(segments, "not recording")
	} else {
		throws, snaps, jumps := m.rec.Counts()
		segments = append(segments,
			fmt.Sprintf("recording %d events", m.rec.Len()),
			fmt.Sprintf("%d throws", throws),
			fmt.Sprintf("%d snap-backs", snaps),
			fmt.Sprintf("%d jumps", jumps))
	}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("last %s #%d", m.last.Kind, m.last.CardID))
	}
	return strings.Join(segments, " · ")
}
