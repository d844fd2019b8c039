package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	styles "github.com/charmbracelet/lipgloss"
	plot "github.com/chriskim06/drawille-go"

	"github.com/keilerkonzept/tagscope/chart"
)

var (
	selectedColor = styles.AdaptiveColor{Light: "0", Dark: "9"}
	borderColor   = styles.AdaptiveColor{Light: "#555", Dark: "#555"}
	errorColor    = styles.AdaptiveColor{Light: "1", Dark: "9"}
	borderFg      = styles.NewStyle().Foreground(borderColor)
	selectedFg    = styles.NewStyle().Foreground(selectedColor)
	plotStyle     = styles.NewStyle().
			BorderStyle(styles.NormalBorder()).
			Foreground(borderColor).
			BorderForeground(borderColor)
)

// yLabelWidth is the value axis column right of the canvas.
const yLabelWidth = 9

var statsTitles = []string{
	"batches",
	"ingest rate",
	"resample latency",
	"rank refresh",
	"data freshness lag",
	"malformed lines",
	"top-1",
}

// updatePlot redraws the canvas from the current frame: value ticks as dim
// grid lines, the data line highlighted on top.
func (m *model) updatePlot() {
	var (
		values []float64
		ticks  []float64
	)
	n := max(2, 2*m.plotWidth)
	switch m.mode {
	case modeReport:
		if m.reportFrame.Empty() {
			m.resizePlot(max(1, m.plotWidth), max(1, m.plotHeight))
			return
		}
		vp := m.reportCtl.Viewport()
		values = gridSeries(m.reportFrame, vp.Start(), vp.End(), n)
		ticks = chart.ValueTicks(m.reportFrame.Values)
	default:
		if m.display.Frame.Empty() {
			m.resizePlot(max(1, m.plotWidth), max(1, m.plotHeight))
			return
		}
		values = m.display.Frame.Decimate(n).Values
		ticks = m.display.Ticks.Values
	}

	var highlight, dim plot.Color
	if styles.DefaultRenderer().HasDarkBackground() {
		highlight, dim = plot.Red, plot.DimGray
	} else {
		highlight, dim = plot.Black, plot.LightGray
	}

	lo, hi := valueRange(values, ticks)
	m.scaleLo, m.scaleHi = lo, hi
	data := make([][]float64, 0, len(ticks)+1)
	colors := make([]plot.Color, 0, len(ticks)+1)
	for _, t := range ticks {
		line := make([]float64, len(values))
		for i := range line {
			line[i] = normalize(t, lo, hi)
		}
		data = append(data, line)
		colors = append(colors, dim)
	}
	series := make([]float64, len(values))
	prev := 0.0
	for i, v := range values {
		// Gaps repeat the previous point.
		if math.IsNaN(v) || math.IsInf(v, 0) {
			series[i] = prev
			continue
		}
		series[i] = normalize(v, lo, hi)
		prev = series[i]
	}
	data = append(data, series)
	colors = append(colors, highlight)

	m.plot.NumDataPoints = len(values)
	m.plot.LineColors = colors
	m.plot.Fill(data)
}

// valueRange spans both the data and every tick so grid lines and data
// share one scale. Non-finite values are ignored.
func valueRange(values, ticks []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range [][]float64{values, ticks} {
		for _, v := range chart.Finite(s) {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 0) {
		return 0, 1
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi
}

func normalize(v, lo, hi float64) float64 {
	return (v - lo) / (hi - lo)
}

// gridSeries bins a frame with arbitrary positions into n equal columns over
// [start, end]. Each column keeps its last sample; empty columns repeat the
// neighbouring value.
func gridSeries(f chart.Frame, start, end float64, n int) []float64 {
	out := make([]float64, n)
	if f.Empty() || n < 1 || end <= start {
		return out
	}
	filled := make([]bool, n)
	for i, pos := range f.Positions {
		col := int(math.Floor((pos - start) / (end - start) * float64(n)))
		col = min(n-1, max(0, col))
		out[col] = f.Values[i]
		filled[col] = true
	}
	first := -1
	for i := range out {
		if filled[i] {
			if first < 0 {
				first = i
			}
			continue
		}
		if i > 0 && first >= 0 {
			out[i] = out[i-1]
		}
	}
	for i := 0; i < first; i++ {
		out[i] = out[first]
	}
	return out
}

// valueLabels places each tick label on the row its grid line is drawn on.
func valueLabels(ticks []float64, lo, hi float64, rows, width int) []string {
	lines := make([]string, rows)
	for i := range lines {
		lines[i] = strings.Repeat(" ", width)
	}
	if rows < 1 || hi <= lo {
		return lines
	}
	for _, t := range ticks {
		row := int(math.Round((1 - normalize(t, lo, hi)) * float64(rows-1)))
		if row < 0 || row >= rows {
			continue
		}
		label := fmt.Sprintf(" %.0f", t)
		if len(label) > width {
			label = label[:width]
		}
		lines[row] = label + strings.Repeat(" ", width-len(label))
	}
	return lines
}

// placeLabels writes each label centred on its column, dropping labels that
// would overlap the previous one.
func placeLabels(width int, ticks []chart.TimeTick, start, end float64) string {
	if width < 1 {
		return ""
	}
	line := []byte(strings.Repeat(" ", width))
	next := 0
	for _, t := range ticks {
		if len(t.Label) > width {
			continue
		}
		col := 0
		if end > start {
			col = int(math.Round((t.Position - start) / (end - start) * float64(width-1)))
		}
		at := min(width-len(t.Label), max(0, col-len(t.Label)/2))
		if at < next {
			continue
		}
		copy(line[at:], t.Label)
		next = at + len(t.Label) + 1
	}
	return string(line)
}

func (m *model) currentTicks() (values []float64, times []chart.TimeTick, start, end float64) {
	if m.mode == modeReport {
		vp := m.reportCtl.Viewport()
		return chart.ValueTicks(m.reportFrame.Values), m.report.TimeTicks(vp, config.TimeTicks), vp.Start(), vp.End()
	}
	ctl := m.controller()
	if ctl == nil {
		return nil, nil, 0, 1
	}
	vp := ctl.Viewport()
	return m.display.Ticks.Values, m.display.Ticks.Times, vp.Start(), vp.End()
}

func (m *model) statusLine() string {
	status := m.display.Message
	annotation := m.display.Annotation
	if m.mode == modeReport {
		vp := m.reportCtl.Viewport()
		status = fmt.Sprintf("Report for %s: %d values, window %s .. %s",
			m.active, m.reportFrame.Len(),
			m.report.From.Add(time.Duration(vp.Start()*float64(time.Second))).Format(time.DateTime),
			m.report.From.Add(time.Duration(vp.End()*float64(time.Second))).Format(time.DateTime))
		annotation = m.reportCtl.Annotation()
	}
	if m.isPaused() {
		status = "[paused] " + status
	}
	if annotation.Visible {
		status += "  " + selectedFg.Render(annotation.Label())
	}
	return status
}

func (m *model) View() string {
	left := m.listStyle.Render(m.list.View())

	canvas := m.plot.String()
	if canvas == "" {
		canvas = emptyPlot(m.plotWidth, m.plotHeight)
	}
	yTicks, timeTicks, start, end := m.currentTicks()
	yAxis := strings.Join(valueLabels(yTicks, m.scaleLo, m.scaleHi, m.plotHeight, yLabelWidth), "\n")
	plotArea := styles.JoinHorizontal(styles.Top, canvas, borderFg.Render(yAxis))

	timeLine := borderFg.Render(placeLabels(m.plotWidth, timeTicks, start, end))
	status := styles.NewStyle().MaxWidth(max(1, m.rightWidth()-2)).Render(m.statusLine())
	right := plotStyle.Render(styles.JoinVertical(styles.Left, plotArea, timeLine, status))
	view := styles.JoinHorizontal(styles.Top, left, right)

	if m.err != nil {
		errStyle := styles.NewStyle().Foreground(errorColor)
		return styles.JoinVertical(styles.Left, view, errStyle.Render("ERROR: "+m.err.Error()), m.help.View(keys))
	}
	if !config.StatsEnabled {
		return styles.JoinVertical(styles.Left, view, m.help.View(keys))
	}
	statsStyle := styles.NewStyle().Foreground(errorColor)
	return styles.JoinVertical(styles.Left, view, statsStyle.Render(m.statsBlock(time.Now())), m.help.View(keys))
}

func (m *model) statsBlock(now time.Time) string {
	snap := m.metrics.snapshot(now)
	title := "PERF STATS (RUNNING)"
	if m.isPaused() {
		title = "PERF STATS (PAUSED)"
	}
	top := "-"
	if len(m.activity) > 0 {
		top = fmt.Sprintf("%s (%d)", m.activity[0].Tag, m.activity[0].Count)
	}
	lag := "n/a"
	if snap.batches > 0 {
		lag = formatMetricDuration(snap.ingestLag)
	}
	values := []string{
		fmt.Sprintf("%d (%d values)", snap.batches, snap.values),
		fmt.Sprintf("%d values/s", snap.valuesPerSec),
		fmt.Sprintf("avg %s p95 %s", formatMetricDuration(snap.resample.avg), formatMetricDuration(snap.resample.p95)),
		fmt.Sprintf("p95 %s (full %d, partial %d)", formatMetricDuration(snap.rank.p95), snap.fullRefreshes, snap.partRefreshes),
		lag,
		fmt.Sprint(snap.malformed),
		top,
	}
	lines := []string{title}
	for i, name := range statsTitles {
		lines = append(lines, name+": "+values[i])
	}
	return strings.Join(lines, "\n")
}

func emptyPlot(w, h int) string {
	if w < 1 || h < 1 {
		return ""
	}
	row := strings.Repeat(" ", w)
	rows := make([]string, h)
	for i := range rows {
		rows[i] = row
	}
	return strings.Join(rows, "\n")
}

func formatMetricDuration(d time.Duration) string {
	if d <= 0 {
		return "0.000ms"
	}
	return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
}

func computePaneWidths(totalWidth int, splitPercent int) (left, right int) {
	if totalWidth <= 1 {
		return 1, 1
	}
	left = min(totalWidth-1, max(1, totalWidth*splitPercent/100))
	right = totalWidth - left

	// Keep panes readable when the terminal is wide enough.
	const minPane = 18
	if totalWidth >= minPane*2 {
		if left < minPane {
			left = minPane
			right = totalWidth - left
		}
		if right < minPane {
			right = minPane
			left = totalWidth - right
		}
	}
	return max(1, left), max(1, right)
}

type listItem struct {
	Rank  int
	Tag   string
	Count uint32
}

func (i listItem) Title() string {
	if i.Rank == 0 {
		return "    " + i.Tag
	}
	return fmt.Sprintf("#%-3d%s", i.Rank, i.Tag)
}

func (i listItem) Description() string {
	if i.Rank == 0 {
		return "    quiet"
	}
	return fmt.Sprintf("    %d values", i.Count)
}

func (i listItem) FilterValue() string { return i.Tag }

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Pause  key.Binding
	Reset  key.Binding
	Report key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Up, k.Down, k.Pause, k.Reset, k.Report}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Quit, k.Pause},
		{k.Up, k.Down, k.Reset, k.Report},
	}
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "prev tag"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "next tag"),
	),
	Pause: key.NewBinding(
		key.WithKeys("p", " "),
		key.WithHelp("p/space", "pause"),
	),
	Reset: key.NewBinding(
		key.WithKeys("0", "home"),
		key.WithHelp("0", "reset zoom"),
	),
	Report: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "report"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q/ctrl+c", "quit"),
	),
}
