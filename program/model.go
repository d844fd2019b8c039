package main

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tui "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	plot "github.com/chriskim06/drawille-go"

	"github.com/keilerkonzept/tagscope/chart"
	"github.com/keilerkonzept/tagscope/history"
	"github.com/keilerkonzept/tagscope/ingest"
	"github.com/keilerkonzept/tagscope/live"
	"github.com/keilerkonzept/tagscope/logging"
	"github.com/keilerkonzept/tagscope/rank"
)

type viewMode int

const (
	modeLive viewMode = iota
	modeReport
)

type model struct {
	ctx  context.Context
	send func(tui.Msg)

	width, height  int
	leftPaneWidth  int
	rightPaneWidth int
	plotWidth      int
	plotHeight     int
	scaleLo        float64
	scaleHi        float64

	err error

	paused    bool
	pauseMu   sync.Mutex
	pauseCond *sync.Cond

	list      list.Model
	listStyle styles.Style
	help      help.Model
	plot      *plot.Canvas

	store    history.Store
	registry *live.Registry
	ranker   *rank.Ranker
	reader   *ingest.Reader
	metrics  *latencyMetrics

	known    map[string]bool
	activity []rank.Activity
	active   string
	display  live.Display

	mode        viewMode
	report      *history.Report
	reportCtl   *chart.Controller
	reportFrame chart.Frame
}

func newModel(ctx context.Context, store history.Store, ranker *rank.Ranker) *model {
	const (
		defaultWidth  = 80
		defaultHeight = 20
	)

	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = styles.NewStyle().
		Border(styles.NormalBorder(), false, false, false, true).
		BorderForeground(borderColor).
		Foreground(selectedColor).
		Bold(true).
		Padding(0, 0, 0, 1)
	d.Styles.SelectedDesc = d.Styles.SelectedTitle.
		Foreground(selectedColor)
	d.ShowDescription = true

	l := list.New(make([]list.Item, 0), d, defaultWidth/2-2, defaultHeight)
	l.Styles.NoItems = l.Styles.NoItems.
		Padding(0, 2)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)

	p := plot.NewCanvas(defaultWidth, defaultHeight)
	p.ShowAxis = false

	metrics := newLatencyMetrics(config.StatsWindow)
	metrics.setEnabled(config.StatsEnabled)

	m := &model{
		ctx:     ctx,
		help:    help.New(),
		list:    l,
		plot:    &p,
		store:   store,
		ranker:  ranker,
		metrics: metrics,
		known:   make(map[string]bool),
		display: live.NoSelection(),
	}
	m.registry = live.NewRegistry(config.Project, store, live.Options{
		Capacity:  config.BufferCapacity,
		Density:   config.Density,
		Interval:  config.RefreshInterval,
		TimeTicks: config.TimeTicks,
		OnRefresh: m.requestRefresh,
	})
	format, _ := ingest.ParseFormat(config.InputFormat)
	m.reader = &ingest.Reader{
		Format:   format,
		MaxLines: config.MaxLines,
		Pace:     config.Pace,
		Hold:     m.waitIfPaused,
	}
	for _, tag := range config.tagList() {
		m.known[tag] = true
	}
	m.leftPaneWidth, m.rightPaneWidth = computePaneWidths(defaultWidth, config.ViewSplit)
	m.pauseCond = sync.NewCond(&m.pauseMu)
	return m
}

type batchMsg struct{ batch ingest.Batch }

type refreshMsg struct{ tag string }

type tagsMsg struct{ tags []string }

type reportMsg struct {
	report *history.Report
	tag    string
}

type ingestDoneMsg struct{}

type errMsg struct{ err error }

type ItemsTickMsg time.Time

func doItemsTick() tui.Cmd {
	return tui.Every(time.Second/time.Duration(config.ItemsFPS), func(t time.Time) tui.Msg {
		return ItemsTickMsg(t)
	})
}

func (m *model) Init() tui.Cmd {
	return tui.Batch(m.loadTags(), m.readInput(), doItemsTick())
}

// requestRefresh runs on a scheduler goroutine.
func (m *model) requestRefresh(tag string) {
	if m.send != nil {
		m.send(refreshMsg{tag})
	}
}

func (m *model) loadTags() tui.Cmd {
	return func() tui.Msg {
		tags, err := m.store.Tags(m.ctx, config.Project)
		if err != nil {
			return errMsg{err}
		}
		return tagsMsg{tags}
	}
}

func (m *model) readInput() tui.Cmd {
	return func() tui.Msg {
		if config.Simulate {
			err := newSimulator().Run(m.ctx, m.ingest)
			if err != nil && !errors.Is(err, context.Canceled) {
				return errMsg{err}
			}
			return ingestDoneMsg{}
		}
		r, ok, err := openInput()
		if err != nil {
			return errMsg{err}
		}
		if !ok {
			return nil
		}
		defer func() { _ = r.Close() }()
		err = m.reader.Run(m.ctx, r, m.ingest)
		m.metrics.observeMalformed(m.reader.Malformed())
		if err != nil && !errors.Is(err, context.Canceled) {
			return errMsg{err}
		}
		return ingestDoneMsg{}
	}
}

func openInput() (io.ReadCloser, bool, error) {
	if config.InputPath != "" {
		f, err := os.Open(config.InputPath)
		if err != nil {
			return nil, false, err
		}
		return f, true, nil
	}
	if term.IsTerminal(os.Stdin.Fd()) {
		return nil, false, nil
	}
	return io.NopCloser(os.Stdin), true, nil
}

// ingest runs on the input goroutine: it persists and counts the batch and
// hands it to the UI goroutine for the live buffers.
func (m *model) ingest(b ingest.Batch) {
	entry := history.Entry{Timestamp: history.FormatTimestamp(b.Time), Values: b.Values}
	if err := m.store.Append(m.ctx, config.Project, b.Tag, entry); err != nil {
		logging.Errorf("Storing batch for %s: %v", b.Tag, err)
	}
	m.ranker.Observe(b.Tag, len(b.Values))
	m.metrics.observeIngest(time.Now(), len(b.Values))
	m.metrics.observeMalformed(m.reader.Malformed())
	if m.send != nil {
		m.send(batchMsg{b})
	}
}

func (m *model) Update(msg tui.Msg) (tui.Model, tui.Cmd) {
	switch msg := msg.(type) {
	case errMsg:
		m.err = msg.err
		logging.Errorf("%v", msg.err)
		return m, nil
	case tagsMsg:
		for _, tag := range msg.tags {
			m.known[tag] = true
		}
		cmd := m.updateList(msg)
		if m.active == "" {
			m.activate(m.preferredTag())
		}
		return m, cmd
	case batchMsg:
		b := msg.batch
		if !m.known[b.Tag] {
			m.known[b.Tag] = true
			logging.Infof("New tag %s", b.Tag)
		}
		m.registry.OnDataReceived(b.Tag, b.Values, b.Time)
		if m.active == "" {
			m.activate(b.Tag)
		}
		return m, nil
	case refreshMsg:
		if msg.tag != m.active || m.isPaused() || m.mode != modeLive {
			return m, nil
		}
		m.refreshLive()
		return m, nil
	case ItemsTickMsg:
		now := time.Time(msg)
		start := time.Now()
		m.ranker.Advance(now)
		var full bool
		m.activity, full = m.ranker.Top(now, m.list.Height())
		m.metrics.observeRank(time.Since(start), full)
		return m, tui.Batch(m.updateList(msg), doItemsTick())
	case reportMsg:
		if msg.tag != m.active {
			return m, nil
		}
		m.mode = modeReport
		m.report = msg.report
		m.reportCtl = chart.NewController(msg.report.Viewport())
		m.refreshReport()
		return m, nil
	case ingestDoneMsg:
		logging.Infof("Input finished")
		return m, nil
	case tui.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tui.MouseMsg:
		m.handleMouse(msg)
		return m, nil
	case tui.KeyMsg:
		if m.list.SettingFilter() {
			break
		}
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tui.Quit
		case key.Matches(msg, keys.Up):
			m.list.CursorUp()
			m.followSelection()
			return m, nil
		case key.Matches(msg, keys.Down):
			m.list.CursorDown()
			m.followSelection()
			return m, nil
		case key.Matches(msg, keys.Pause):
			m.togglePause()
			return m, nil
		case key.Matches(msg, keys.Reset):
			m.resetView()
			return m, nil
		case key.Matches(msg, keys.Report):
			if m.mode == modeReport {
				m.leaveReport()
				return m, nil
			}
			return m, m.buildReport(m.active)
		}
	}
	var cmd tui.Cmd
	m.list, cmd = m.list.Update(msg)
	m.followSelection()
	return m, cmd
}

// preferredTag is the first configured tag, else the first listed one.
func (m *model) preferredTag() string {
	if tags := config.tagList(); len(tags) > 0 {
		return tags[0]
	}
	if it, ok := m.list.SelectedItem().(listItem); ok {
		return it.Tag
	}
	return ""
}

func (m *model) followSelection() {
	if m.list.FilterState() == list.Filtering {
		return
	}
	it, ok := m.list.SelectedItem().(listItem)
	if !ok || it.Tag == m.active {
		return
	}
	m.activate(it.Tag)
}

// activate swaps the live channel to tag. A failed open leaves no tag
// active.
func (m *model) activate(tag string) {
	if tag == "" {
		return
	}
	m.leaveReport()
	_, err := m.registry.Switch(m.ctx, m.active, tag)
	if err != nil {
		m.active = ""
		m.display = live.NoSelection()
		if !errors.Is(err, chart.ErrInvalidSelection) {
			m.err = err
		}
		return
	}
	m.active = tag
	m.selectActive()
	m.refreshLive()
}

func (m *model) refreshLive() {
	ch, ok := m.registry.Channel(m.active)
	if !ok {
		m.display = live.NoSelection()
		return
	}
	start := time.Now()
	m.display = ch.Refresh()
	m.metrics.observeResample(time.Since(start))
	m.updatePlot()
}

func (m *model) buildReport(tag string) tui.Cmd {
	if tag == "" {
		return nil
	}
	return func() tui.Msg {
		from, to, err := parseReportRange(config.ReportFrom, config.ReportTo, time.Now())
		if err != nil {
			return errMsg{err}
		}
		r, err := history.BuildReport(m.ctx, m.store, config.Project, []string{tag}, from, to)
		if err != nil {
			return errMsg{err}
		}
		return reportMsg{report: r, tag: tag}
	}
}

func (m *model) leaveReport() {
	if m.mode != modeReport {
		return
	}
	m.mode = modeLive
	m.report = nil
	m.reportCtl = nil
	m.reportFrame = chart.Frame{}
	m.refreshLive()
}

func (m *model) refreshReport() {
	m.reportFrame = m.report.Frame(m.active, m.reportCtl.Viewport())
	m.updatePlot()
}

// controller is the interaction state of whatever the plot shows.
func (m *model) controller() *chart.Controller {
	if m.mode == modeReport {
		return m.reportCtl
	}
	if ch, ok := m.registry.Channel(m.active); ok {
		return ch.Controller()
	}
	return nil
}

func (m *model) redraw() {
	if m.mode == modeReport {
		m.refreshReport()
		return
	}
	m.refreshLive()
}

func (m *model) resetView() {
	ctl := m.controller()
	if ctl == nil {
		return
	}
	ctl.Viewport().Reset()
	logging.Debugf("Time View reset to default window")
	m.redraw()
}

// plotPosition maps a terminal cell to a horizontal chart position.
func (m *model) plotPosition(vp *chart.Viewport, x, y int) (float64, bool) {
	x0, y0 := m.leftWidth()+1, 1
	inside := x >= x0 && x < x0+m.plotWidth && y >= y0 && y < y0+m.plotHeight
	if m.plotWidth < 1 {
		return 0, false
	}
	frac := (float64(x-x0) + 0.5) / float64(m.plotWidth)
	return vp.Start() + frac*vp.Span(), inside
}

func (m *model) handleMouse(msg tui.MouseMsg) {
	ctl := m.controller()
	if ctl == nil {
		return
	}
	vp := ctl.Viewport()
	pos, inside := m.plotPosition(vp, msg.X, msg.Y)

	switch msg.Action {
	case tui.MouseActionPress:
		switch msg.Button {
		case tui.MouseButtonWheelUp, tui.MouseButtonWheelDown:
			if !inside {
				return
			}
			dir := chart.ZoomIn
			if msg.Button == tui.MouseButtonWheelDown {
				dir = chart.ZoomOut
			}
			ctl.Scroll(dir, &pos)
			logging.Debugf("Zoomed: new window size %.2fs", vp.Span())
			m.redraw()
		case tui.MouseButtonLeft:
			if inside {
				ctl.Press(chart.ButtonPrimary, pos)
			}
		}
	case tui.MouseActionRelease:
		ctl.Release()
	case tui.MouseActionMotion:
		if ctl.State() == chart.Dragging {
			if inside && ctl.Drag(pos) {
				logging.Debugf("Panned: new xlim [%.2f, %.2f]", vp.Start(), vp.End())
				m.redraw()
			}
			return
		}
		if !inside {
			ctl.HoverOut()
			m.display.Annotation = ctl.Annotation()
			return
		}
		if m.mode == modeReport {
			ctl.HoverNearest(pos, m.reportFrame)
			return
		}
		if ch, ok := m.registry.Channel(m.active); ok {
			m.display.Annotation = ch.Hover(pos)
		}
	}
}

func (m *model) togglePause() {
	m.pauseMu.Lock()
	m.paused = !m.paused
	m.pauseMu.Unlock()
	m.pauseCond.Broadcast()
}

func (m *model) isPaused() bool {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()
	return m.paused
}

func (m *model) waitIfPaused() {
	m.pauseMu.Lock()
	for m.paused {
		m.pauseCond.Wait()
	}
	m.pauseMu.Unlock()
}

func (m *model) shutdown() {
	m.pauseMu.Lock()
	m.paused = false
	m.pauseMu.Unlock()
	m.pauseCond.Broadcast()
	m.registry.CloseAll()
}

// orderedTags lists active tags by recent activity, then the quiet ones by
// name.
func orderedTags(activity []rank.Activity, known map[string]bool) []listItem {
	items := make([]listItem, 0, len(known))
	seen := make(map[string]bool, len(activity))
	for _, a := range activity {
		seen[a.Tag] = true
		items = append(items, listItem{Rank: len(items) + 1, Tag: a.Tag, Count: a.Count})
	}
	quiet := make([]string, 0, len(known))
	for tag := range known {
		if !seen[tag] {
			quiet = append(quiet, tag)
		}
	}
	sort.Strings(quiet)
	for _, tag := range quiet {
		items = append(items, listItem{Tag: tag})
	}
	return items
}

func (m *model) updateList(msg tui.Msg) tui.Cmd {
	ordered := orderedTags(m.activity, m.known)
	items := make([]list.Item, len(ordered))
	for i, it := range ordered {
		items[i] = it
	}
	set := m.list.SetItems(items)
	m.selectActive()
	var cmd tui.Cmd
	m.list, cmd = m.list.Update(msg)
	return tui.Batch(set, cmd)
}

// selectActive keeps the cursor on the open tag when the list reorders.
func (m *model) selectActive() {
	for i, it := range m.list.Items() {
		if li, ok := it.(listItem); ok && li.Tag == m.active {
			m.list.Select(i)
			return
		}
	}
}

func (m *model) resize(width, height int) {
	m.width, m.height = width, height
	m.leftPaneWidth, m.rightPaneWidth = computePaneWidths(m.width, config.ViewSplit)
	statsLines := 0
	if config.StatsEnabled {
		statsLines = len(statsTitles) + 1
	}
	helpLines := 1
	available := max(1, m.height-statsLines-helpLines)

	leftW := max(1, m.leftWidth())
	rightW := max(1, m.rightWidth())

	m.list.SetSize(leftW, available)
	m.list.Styles.Title = styles.NewStyle()
	m.list.Styles.PaginationStyle = styles.NewStyle()
	m.list.Styles.HelpStyle = styles.NewStyle()
	m.listStyle = styles.NewStyle().Width(leftW).Height(available)

	// Right side is: plot + time labels + status + annotation, in a border.
	m.plotHeight = max(1, available-5)
	m.plotWidth = max(1, rightW-2-yLabelWidth)
	m.resizePlot(m.plotWidth, m.plotHeight)
	m.redraw()
}

func (m *model) resizePlot(w int, h int) {
	p := plot.NewCanvas(w, h)
	p.ShowAxis = m.plot.ShowAxis
	p.LineColors = m.plot.LineColors
	m.plot = &p
}

func (m *model) leftWidth() int {
	if m.leftPaneWidth > 0 {
		return m.leftPaneWidth
	}
	left, _ := computePaneWidths(m.width, config.ViewSplit)
	return left
}

func (m *model) rightWidth() int {
	if m.rightPaneWidth > 0 {
		return m.rightPaneWidth
	}
	_, right := computePaneWidths(m.width, config.ViewSplit)
	return right
}
