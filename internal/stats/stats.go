// Package stats contains trace summaries and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"golang.org/x/term"

	"github.com/verte-zerg/cardstack/internal/cardstack"
	"github.com/verte-zerg/cardstack/internal/model"
)

const (
	sparkChars          = " .:-=+*#%@"
	terminalWidthBackup = 80
)

// Summary aggregates outcome counts over traces.
type Summary struct {
	Traces    int
	Throws    int
	SnapBacks int
	Jumps     int
	// ThrowRate is throws / (throws + snap-backs), or 0 without releases.
	ThrowRate   float64
	MedianSpeed float64
	P90Speed    float64
}

// Summarize computes a Summary.
func Summarize(traces []model.Trace, releases []model.Release) Summary {
	s := Summary{Traces: len(traces)}
	for _, tr := range traces {
		s.Throws += tr.Throws
		s.SnapBacks += tr.SnapBacks
		s.Jumps += tr.Jumps
	}
	if den := s.Throws + s.SnapBacks; den > 0 {
		s.ThrowRate = float64(s.Throws) / float64(den)
	}
	speeds := releaseSpeeds(releases)
	s.MedianSpeed = Percentile(speeds, 50)
	s.P90Speed = Percentile(speeds, 90)
	return s
}

// Percentile returns the p-th percentile (0-100) using nearest rank.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// Resample shrinks values to at most width points by averaging buckets.
func Resample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	for i := 0; i < width; i++ {
		start := i * len(values) / width
		end := (i + 1) * len(values) / width
		if end <= start {
			end = start + 1
		}
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

// TerminalWidth returns the width of stdout, or a fallback when stdout is
// not a terminal.
func TerminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return terminalWidthBackup
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// RenderSummary prints a summary block.
func RenderSummary(w io.Writer, s Summary) error {
	if s.Traces == 0 {
		_, err := fmt.Fprintln(w, "No traces found.")
		return err
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Traces: %d", s.Traces),
		fmt.Sprintf("Throws: %d", s.Throws),
		fmt.Sprintf("Snap-backs: %d", s.SnapBacks),
		fmt.Sprintf("Jumps: %d", s.Jumps),
		fmt.Sprintf("Throw rate: %.1f%%", s.ThrowRate*100),
		fmt.Sprintf("Median release speed: %.3f u/ms", s.MedianSpeed),
		fmt.Sprintf("P90 release speed: %.3f u/ms", s.P90Speed),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderSpeedCurve prints a sparkline of smoothed release speeds, sized to
// width columns, with the throw threshold marked in the legend.
func RenderSpeedCurve(w io.Writer, releases []model.Release, window, width int, threshold float64) error {
	speeds := releaseSpeeds(releases)
	if len(speeds) == 0 {
		return nil
	}
	label := "Release speed "
	line := Sparkline(Resample(MovingAverage(speeds, window), width-len(label)))
	if _, err := fmt.Fprintln(w, label+line); err != nil {
		return err
	}
	minVal, maxVal := speeds[0], speeds[0]
	for _, v := range speeds {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	_, err := fmt.Fprintf(w, "min %.3f  max %.3f  throw above %.3f u/ms  (window %d)\n\n", minVal, maxVal, threshold, window)
	return err
}

// RenderTraceTable prints one row per trace.
func RenderTraceTable(w io.Writer, traces []model.Trace) error {
	if len(traces) == 0 {
		_, err := fmt.Fprintln(w, "No traces found.")
		return err
	}
	headers := []string{"ID", "Ended", "Cards", "Throws", "Snap-backs", "Jumps"}
	rows := make([][]string, 0, len(traces))
	for _, tr := range traces {
		rows = append(rows, TraceRow(tr))
	}
	rightAlign := map[int]bool{2: true, 3: true, 4: true, 5: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// TraceRow formats a trace as table cells.
func TraceRow(tr model.Trace) []string {
	return []string{
		ShortID(tr.ID),
		tr.EndedAt.Local().Format("2006-01-02 15:04"),
		fmt.Sprintf("%d", len(tr.Deck)),
		fmt.Sprintf("%d", tr.Throws),
		fmt.Sprintf("%d", tr.SnapBacks),
		fmt.Sprintf("%d", tr.Jumps),
	}
}

// ShortID returns the first eight characters of a trace id.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// ReplaySetup describes the scale and tuning a replay of tr runs with.
// Positions are stored in units; the cell size is the terminal scale they
// were recorded at.
func ReplaySetup(tr model.Trace, throwSpeed float64) string {
	source := "recorded"
	if tr.Physics == (model.Physics{}) {
		source = "fallback"
	}
	return fmt.Sprintf("Cell: %gx%g units  Throw speed: %.2f units/ms (%s tuning)",
		tr.CellWidth, tr.CellHeight, throwSpeed, source)
}

func releaseSpeeds(releases []model.Release) []float64 {
	out := make([]float64, len(releases))
	for i, r := range releases {
		out[i] = r.Speed
	}
	return out
}

// RenderStack prints cards top rank first.
func RenderStack(w io.Writer, cards []cardstack.Card) error {
	headers := []string{"Rank", "Card", "Rotation", "Image"}
	rows := make([][]string, 0, len(cards))
	for _, c := range cards {
		rows = append(rows, []string{
			fmt.Sprintf("%d", c.Z),
			fmt.Sprintf("#%d", c.ID),
			fmt.Sprintf("%+.2f", c.Rotation),
			c.ImageRef,
		})
	}
	for _, line := range formatTable(headers, rows, map[int]bool{0: true, 2: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
