package chart

import (
	"math"
	"time"
)

// Span limits of the live viewport.
const (
	MinLiveSpan = 0.1
	MaxLiveSpan = 10.0

	zoomOutFactor = 1.1
	zoomInFactor  = 0.9
)

// ZoomDirection selects the zoom factor: 0.9 of the span for ZoomIn, 1.1
// for ZoomOut.
type ZoomDirection int

const (
	ZoomIn ZoomDirection = iota
	ZoomOut
)

func (d ZoomDirection) String() string {
	if d == ZoomOut {
		return "out"
	}
	return "in"
}

// Viewport is the visible span over the horizontal domain. For the live
// view the unit is "seconds of buffer replay"; for historical reports it is
// seconds since the start of the report range.
//
// The window is kept as start and span, so panning and clamping never
// perturb the span through rounding.
type Viewport struct {
	start, span float64

	live      bool
	homeStart float64
	homeSpan  float64
	minSpan   float64
	maxSpan   float64
	density   int
}

// NewLiveViewport returns the [0,1] window with span clamped to
// [MinLiveSpan, MaxLiveSpan] and start clamped to >= 0.
func NewLiveViewport() *Viewport {
	return &Viewport{
		start:     0,
		span:      1,
		live:      true,
		homeStart: 0,
		homeSpan:  1,
		minSpan:   MinLiveSpan,
		maxSpan:   MaxLiveSpan,
	}
}

// NewReportViewport returns an unclamped viewport over [start, end].
func NewReportViewport(start, end float64) *Viewport {
	span := end - start
	if !(span > 0) {
		span = 1
	}
	return &Viewport{start: start, span: span, homeStart: start, homeSpan: span}
}

// WithDensity sets how many buffered samples fill one window unit.
// Zero means "buffer capacity".
func (v *Viewport) WithDensity(samplesPerUnit int) *Viewport {
	v.density = max(0, samplesPerUnit)
	return v
}

func (v *Viewport) Start() float64  { return v.start }
func (v *Viewport) End() float64    { return v.start + v.span }
func (v *Viewport) Span() float64   { return v.span }
func (v *Viewport) Center() float64 { return v.start + v.span/2 }
func (v *Viewport) Live() bool      { return v.live }

// Set moves the window to [start, end]. A window with end <= start is
// ignored. Live viewports clamp the span and keep start >= 0.
func (v *Viewport) Set(start, end float64) {
	if !(end > start) {
		return
	}
	v.start, v.span = start, end-start
	if v.live {
		v.span = clampSpan(v.span, v.minSpan, v.maxSpan)
		v.clampStart()
	}
}

// Reset restores the home window: [0, 1] for the live view, the full
// range for a report.
func (v *Viewport) Reset() {
	v.start, v.span = v.homeStart, v.homeSpan
}

// Zoom scales the span around anchor, keeping anchor at the same relative
// position inside the window.
func (v *Viewport) Zoom(dir ZoomDirection, anchor float64) {
	scale := zoomInFactor
	if dir == ZoomOut {
		scale = zoomOutFactor
	}
	newSpan := v.span * scale
	if v.live {
		newSpan = clampSpan(newSpan, v.minSpan, v.maxSpan)
	}
	frac := 0.5
	if v.span > 0 && anchor >= v.start && anchor <= v.End() {
		frac = (anchor - v.start) / v.span
	}
	v.start = anchor - frac*newSpan
	v.span = newSpan
	if v.live {
		v.clampStart()
	}
}

// Pan shifts the window by delta; the span is unchanged.
func (v *Viewport) Pan(delta float64) {
	v.start += delta
	if v.live {
		v.clampStart()
	}
}

func (v *Viewport) clampStart() {
	v.start = math.Max(0, v.start)
}

func clampSpan(span, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, span))
}

// Resample maps the most recent buffered samples onto evenly spaced
// positions across the window. Fewer than two buffered samples yields an
// empty frame.
func (v *Viewport) Resample(buf *Buffer) Frame {
	available := buf.Len()
	if available < 2 {
		return Frame{}
	}
	density := v.density
	if density == 0 {
		density = buf.Capacity()
	}
	desired := min(available, int(math.Floor(float64(density)*v.Span())))
	desired = max(2, desired)

	samples := buf.Snapshot(desired)
	positions := Linspace(v.start, v.End(), len(samples))
	f := Frame{
		Positions:  positions,
		Values:     make([]float64, len(samples)),
		Timestamps: make([]time.Time, len(samples)),
	}
	for i, s := range samples {
		f.Values[i] = s.Value
		f.Timestamps[i] = s.Timestamp
	}
	return f
}

// Linspace returns n evenly spaced values over [a, b]; the last one is b.
func Linspace(a, b float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{a}
	}
	out := make([]float64, n)
	step := (b - a) / float64(n-1)
	for i := range out {
		out[i] = a + float64(i)*step
	}
	out[n-1] = b
	return out
}
