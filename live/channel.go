package live

import (
	"fmt"
	"time"

	"github.com/keilerkonzept/tagscope/chart"
)

type State int

const (
	StateNoSelection State = iota
	StateWaiting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateReady:
		return "ready"
	}
	return "no-selection"
}

// Display is everything a render surface needs for one redraw.
type Display struct {
	Tag        string
	State      State
	Frame      chart.Frame
	Ticks      chart.TickSet
	Annotation chart.Annotation
	BufferLen  int
	Capacity   int
	Span       float64
	// Err is the non-fatal reason nothing is drawn: ErrInvalidSelection or
	// ErrInsufficientData. Nil when State is StateReady.
	Err     error
	Message string
}

// NoSelection is shown when no channel is open.
func NoSelection() Display {
	return Display{
		State:   StateNoSelection,
		Err:     chart.ErrInvalidSelection,
		Message: "No project or tag selected for Time View.",
	}
}

// Channel owns the buffer, viewport and controller of one tag. It is not
// safe for concurrent use; all calls happen on the UI goroutine.
type Channel struct {
	tag        string
	buf        *chart.Buffer
	vp         *chart.Viewport
	ctl        *chart.Controller
	sched      Scheduler
	timeTicks  int
	lastFrame  chart.Frame
	lastUpdate time.Time
}

func newChannel(tag string, capacity, density, timeTicks int, sched Scheduler) *Channel {
	vp := chart.NewLiveViewport().WithDensity(density)
	if timeTicks <= 0 {
		timeTicks = chart.DefaultTimeTickCount
	}
	return &Channel{
		tag:       tag,
		buf:       chart.NewBuffer(capacity),
		vp:        vp,
		ctl:       chart.NewController(vp),
		sched:     sched,
		timeTicks: timeTicks,
	}
}

func (c *Channel) Tag() string                   { return c.tag }
func (c *Channel) Buffer() *chart.Buffer         { return c.buf }
func (c *Channel) Viewport() *chart.Viewport     { return c.vp }
func (c *Channel) Controller() *chart.Controller { return c.ctl }
func (c *Channel) LastUpdate() time.Time         { return c.lastUpdate }

// LastFrame is the frame produced by the most recent Refresh.
func (c *Channel) LastFrame() chart.Frame { return c.lastFrame }

func (c *Channel) Append(values []float64, ts time.Time) {
	c.buf.Push(values, ts)
	c.lastUpdate = ts
}

// Hover updates the annotation against the last drawn frame.
func (c *Channel) Hover(pos float64) chart.Annotation {
	return c.ctl.Hover(pos, c.lastFrame)
}

func (c *Channel) Reset() { c.vp.Reset() }

func (c *Channel) Refresh() Display {
	d := Display{
		Tag:       c.tag,
		BufferLen: c.buf.Len(),
		Capacity:  c.buf.Capacity(),
		Span:      c.vp.Span(),
	}
	f := c.vp.Resample(c.buf)
	c.lastFrame = f
	if f.Empty() {
		d.State = StateWaiting
		d.Err = chart.ErrInsufficientData
		d.Message = fmt.Sprintf("Waiting for sufficient data for %s (Current buffer: %d/%d).", c.tag, d.BufferLen, d.Capacity)
		return d
	}
	latest, _ := f.Latest()
	d.State = StateReady
	d.Frame = f
	d.Ticks = chart.PlanTicks(f, c.vp.Start(), c.vp.End(), c.timeTicks)
	d.Annotation = c.ctl.Annotation()
	d.Message = fmt.Sprintf("Time View Data for %s, Latest value: %v, Window: %.2fs, Buffer: %d", c.tag, latest.Value, d.Span, d.BufferLen)
	return d
}
