// Package tracesui provides the Bubble Tea trace browser.
package tracesui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/verte-zerg/cardstack/internal/gesture"
	"github.com/verte-zerg/cardstack/internal/model"
	"github.com/verte-zerg/cardstack/internal/replay"
	"github.com/verte-zerg/cardstack/internal/stats"
	"github.com/verte-zerg/cardstack/internal/store"
)

const (
	tabTraces = iota
	tabOverview
	tabReplay
)

const curveWindow = 5

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Options configures the browser.
type Options struct {
	// Tuning is used to replay traces.
	Tuning gesture.Tuning
	Logger *zap.Logger
}

// Model implements the Bubble Tea trace browser.
type Model struct {
	store  *store.Store
	filter model.TraceFilter
	tuning gesture.Tuning
	log    *zap.Logger

	report stats.Report
	errMsg string

	tabs       []string
	activeTab  int
	viewports  []viewport.Model
	traceTable table.Model
	// rowIDs holds the full trace id of each table row.
	rowIDs []string

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string

	replayID string
}

type replayMsg struct {
	traceID string
	content string
	err     error
}

// NewModel constructs a trace browser model.
func NewModel(st *store.Store, filter model.TraceFilter, opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tuning == (gesture.Tuning{}) {
		opts.Tuning = gesture.DefaultTuning()
	}
	m := &Model{
		store:  st,
		filter: filter,
		tuning: opts.Tuning,
		log:    opts.Logger,
		tabs:   []string{"Traces", "Overview", "Replay"},
	}
	m.initInputs()
	m.traceTable = buildTraceTable(0, 1)
	m.initViewports()
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case replayMsg:
		if msg.traceID != m.replayID {
			return m, nil
		}
		if msg.err != nil {
			m.log.Warn("replay failed", zap.String("trace", msg.traceID), zap.Error(msg.err))
			m.viewports[tabReplay].SetContent(errorStyle.Render(fmt.Sprintf("Replay failed: %v", msg.err)))
		} else {
			m.viewports[tabReplay].SetContent(msg.content)
		}
		m.viewports[tabReplay].GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || (!m.filterMode && msg.String() == "q") {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "/":
			return m.startFilter()
		case "enter":
			if m.activeTab == tabTraces {
				return m, m.startReplay()
			}
			return m, nil
		case "g", "home":
			if m.activeTab == tabTraces {
				m.traceTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabTraces {
				m.traceTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabTraces {
				var cmd tea.Cmd
				m.traceTable, cmd = m.traceTable.Update(msg)
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
	m.viewports[tabReplay].SetContent("Select a trace and press enter to replay it.")
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Since (YYYY-MM-DD): "),
		newFilterInput("Last: "),
	}
	m.setInputsFromFilter()
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromFilter() {
	if m.filter.Since != nil {
		m.filterInputs[0].SetValue(m.filter.Since.Format("2006-01-02"))
	} else {
		m.filterInputs[0].SetValue("")
	}
	if m.filter.Last > 0 {
		m.filterInputs[1].SetValue(strconv.Itoa(m.filter.Last))
	} else {
		m.filterInputs[1].SetValue("")
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = bodyHeight
	}
	m.traceTable.SetWidth(m.width)
	m.traceTable.SetHeight(maxInt(1, bodyHeight-1))
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabTraces {
		m.traceTable.Focus()
	} else {
		m.traceTable.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	filters := padLines(m.renderFilterSummary(), m.width)
	return tabs + "\n" + filters
}

func (m *Model) renderFilterSummary() string {
	since := "any"
	if m.filter.Since != nil {
		since = m.filter.Since.Format("2006-01-02")
	}
	last := "all"
	if m.filter.Last > 0 {
		last = strconv.Itoa(m.filter.Last)
	}
	summary := fmt.Sprintf("Settings: since=%s  last=%s  traces=%d", since, last, len(m.report.Traces))
	if m.replayID != "" {
		summary += "  replay=" + stats.ShortID(m.replayID)
	}
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Settings: /  Quit: q"
	if m.activeTab == tabTraces {
		help = "Nav: left/right  Select: up/down  Replay: enter  Settings: /  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel  quit: ctrl+c")
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Settings (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	if m.activeTab == tabTraces {
		if len(m.report.Traces) == 0 {
			return fitLines("No traces found. Record one with: cardstack --record", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.traceTable.View()), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) refreshReport() {
	report, err := stats.BuildReport(context.Background(), m.store, m.filter)
	if err != nil {
		m.errMsg = err.Error()
		m.viewports[tabOverview].SetContent("Failed to load traces.")
		return
	}
	m.errMsg = ""
	m.report = report
	m.applyTraceRows()
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	if m.errMsg != "" {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.report, width, m.tuning.ThrowSpeed))
}

// applyTraceRows lists traces newest first.
func (m *Model) applyTraceRows() {
	traces := m.report.Traces
	rows := make([]table.Row, 0, len(traces))
	m.rowIDs = m.rowIDs[:0]
	for i := len(traces) - 1; i >= 0; i-- {
		rows = append(rows, table.Row(stats.TraceRow(traces[i])))
		m.rowIDs = append(m.rowIDs, traces[i].ID)
	}
	m.traceTable.SetRows(rows)
	m.traceTable.GotoTop()
}

func (m *Model) selectedTraceID() string {
	idx := m.traceTable.Cursor()
	if idx < 0 || idx >= len(m.rowIDs) {
		return ""
	}
	return m.rowIDs[idx]
}

func (m *Model) startReplay() tea.Cmd {
	id := m.selectedTraceID()
	if id == "" {
		return nil
	}
	m.replayID = id
	m.activeTab = tabReplay
	m.traceTable.Blur()
	m.viewports[tabReplay].SetContent(fmt.Sprintf("Replaying %s...", stats.ShortID(id)))
	return replayCmd(m.store, id, m.tuning, m.log)
}

func replayCmd(st *store.Store, traceID string, tuning gesture.Tuning, log *zap.Logger) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		trace, err := st.GetTrace(ctx, traceID)
		if err != nil {
			return replayMsg{traceID: traceID, err: err}
		}
		events, err := st.LoadEvents(ctx, trace.ID)
		if err != nil {
			return replayMsg{traceID: traceID, err: err}
		}
		res, err := replay.Run(trace, events, replay.Options{Tuning: tuning, Check: true, Logger: log})
		if err != nil {
			return replayMsg{traceID: traceID, err: err}
		}
		return replayMsg{traceID: traceID, content: renderReplay(trace, res)}
	}
}

func renderReplay(trace model.Trace, res replay.Result) string {
	var buf bytes.Buffer
	verdict := "matches the recording"
	if res.Diverged {
		verdict = errorStyle.Render("diverged from the recording")
	}
	lines := []string{
		fmt.Sprintf("Replay of %s: %s", stats.ShortID(trace.ID), verdict),
		fmt.Sprintf("Inputs: %d  Throws: %d (recorded %d)  Snap-backs: %d (recorded %d)  Jumps: %d (recorded %d)",
			res.Inputs, res.Throws, trace.Throws, res.SnapBacks, trace.SnapBacks, res.Jumps, trace.Jumps),
		fmt.Sprintf("Duration: %s", res.Duration.Round(time.Millisecond)),
		stats.ReplaySetup(trace, res.Tuning.ThrowSpeed),
		"",
	}
	buf.WriteString(strings.Join(lines, "\n"))
	if err := stats.RenderStack(&buf, res.Cards); err != nil {
		return fmt.Sprintf("Failed to render stack: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func renderOverview(report stats.Report, width int, threshold float64) string {
	if len(report.Traces) == 0 {
		return "No traces found."
	}
	summary := renderSummaryCards(report.Summary, width)
	var buf bytes.Buffer
	if err := stats.RenderSpeedCurve(&buf, report.Releases, curveWindow, width, threshold); err != nil {
		return fmt.Sprintf("Failed to render speed curve: %v", err)
	}
	return strings.TrimRight(summary+"\n\n"+buf.String(), "\n")
}

func renderSummaryCards(s stats.Summary, width int) string {
	cards := []string{
		metricCard("Traces", fmt.Sprintf("%d", s.Traces)),
		metricCard("Throws", fmt.Sprintf("%d", s.Throws)),
		metricCard("Snap-backs", fmt.Sprintf("%d", s.SnapBacks)),
		metricCard("Throw rate", fmt.Sprintf("%.1f%%", s.ThrowRate*100)),
		metricCard("Median speed", fmt.Sprintf("%.3f", s.MedianSpeed)),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func buildTraceTable(width, height int) table.Model {
	t := table.New(
		table.WithColumns(traceColumns()),
		table.WithHeight(maxInt(1, height-1)),
		table.WithFocused(true),
	)
	t.SetWidth(width)
	t.SetStyles(traceTableStyles())
	return t
}

func traceColumns() []table.Column {
	return []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Ended", Width: 16},
		{Title: "Cards", Width: 5},
		{Title: "Throws", Width: 6},
		{Title: "Snap-backs", Width: 10},
		{Title: "Jumps", Width: 5},
	}
}

func traceTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromFilter()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.filterIndex = idx
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	sinceInput := strings.TrimSpace(m.filterInputs[0].Value())
	var since *time.Time
	if sinceInput != "" {
		parsed, err := time.ParseInLocation("2006-01-02", sinceInput, time.Local)
		if err != nil {
			return fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		since = &parsed
	}
	lastInput := strings.TrimSpace(m.filterInputs[1].Value())
	last := 0
	if lastInput != "" {
		parsed, err := strconv.Atoi(lastInput)
		if err != nil || parsed < 0 {
			return fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		last = parsed
	}
	m.filter = model.TraceFilter{Since: since, Last: last}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
