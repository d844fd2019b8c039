package chart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fivePointFrame() Frame {
	return Frame{
		Positions:  Linspace(0, 1, 5),
		Values:     []float64{10, 20, 30, 40, 50},
		Timestamps: make([]time.Time, 5),
	}
}

func TestControllerDragPans(t *testing.T) {
	vp := NewLiveViewport()
	vp.Set(2, 3)
	c := NewController(vp)

	assert.False(t, c.Drag(2.2), "drag without press must be ignored")
	assert.Equal(t, Idle, c.State())

	c.Press(ButtonSecondary, 2.5)
	assert.Equal(t, Idle, c.State())

	c.Press(ButtonPrimary, 2.5)
	require.Equal(t, Dragging, c.State())
	assert.True(t, c.Drag(2.25))
	assert.InDelta(t, 2.25, vp.Start(), 1e-12)
	assert.InDelta(t, 3.25, vp.End(), 1e-12)

	// press position follows the pointer
	c.Drag(2.0)
	assert.InDelta(t, 2.5, vp.Start(), 1e-12)

	c.Release()
	assert.Equal(t, Idle, c.State())
	c.Drag(0)
	assert.InDelta(t, 2.5, vp.Start(), 1e-12)
}

func TestControllerDragClampsAtZero(t *testing.T) {
	vp := NewLiveViewport()
	c := NewController(vp)
	c.Press(ButtonPrimary, 0.2)
	c.Drag(0.9)
	assert.Equal(t, 0.0, vp.Start())
	assert.InDelta(t, 1.0, vp.End(), 1e-12)
}

func TestControllerScroll(t *testing.T) {
	vp := NewLiveViewport()
	c := NewController(vp)

	c.Scroll(ZoomOut, nil)
	assert.InDelta(t, 1.1, vp.Span(), 1e-12)

	pos := 0.5
	c.Scroll(ZoomIn, &pos)
	assert.InDelta(t, 0.99, vp.Span(), 1e-12)

	// scroll works mid-drag too
	c.Press(ButtonPrimary, 0.5)
	c.Scroll(ZoomIn, &pos)
	assert.Equal(t, Dragging, c.State())
	assert.InDelta(t, 0.891, vp.Span(), 1e-12)
}

func TestControllerHover(t *testing.T) {
	c := NewController(NewLiveViewport())
	f := fivePointFrame()

	a := c.Hover(0.5, f)
	assert.True(t, a.Visible)
	assert.Equal(t, 30.0, a.Value)
	assert.Equal(t, 0.5, a.Position)
	assert.Equal(t, "Value: 30.00", a.Label())

	a = c.Hover(0.95, f)
	assert.Equal(t, 50.0, a.Value)

	c.HoverOut()
	assert.False(t, c.Annotation().Visible)
}

func TestControllerHoverOutOfRange(t *testing.T) {
	c := NewController(NewLiveViewport())
	f := fivePointFrame()

	c.Hover(0.5, f)
	a := c.Hover(1.5, f)
	assert.False(t, a.Visible)
	assert.False(t, c.Annotation().Visible)

	assert.False(t, c.Hover(-0.5, f).Visible)
	assert.False(t, c.Hover(0.5, Frame{}).Visible)
}

func TestControllerLookup(t *testing.T) {
	vp := NewLiveViewport()
	c := NewController(vp)
	f := fivePointFrame()

	idx, ok := c.Lookup(f, 0.3)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = c.Lookup(f, 1.0)
	require.True(t, ok)
	assert.Equal(t, 4, idx)

	_, ok = c.Lookup(f, 1.2)
	assert.False(t, ok)
}

func TestControllerNearestUnevenPositions(t *testing.T) {
	c := NewController(NewReportViewport(0, 10))
	f := Frame{
		Positions:  []float64{0, 0, 0, 9},
		Values:     []float64{1, 2, 3, 100},
		Timestamps: make([]time.Time, 4),
	}

	// the evenly spaced index formula would land on 3 here
	idx, ok := c.Nearest(f, 8)
	require.True(t, ok)
	assert.Equal(t, 3, idx)

	idx, ok = c.Nearest(f, 4)
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	idx, _ = c.Nearest(f, 10)
	assert.Equal(t, 3, idx)

	// equal distance goes to the later position
	idx, _ = c.Nearest(f, 4.5)
	assert.Equal(t, 3, idx)

	_, ok = c.Nearest(f, -1)
	assert.False(t, ok)
	_, ok = c.Nearest(Frame{}, 1)
	assert.False(t, ok)

	a := c.HoverNearest(8, f)
	assert.Equal(t, 100.0, a.Value)
	assert.False(t, c.HoverNearest(12, f).Visible)
	assert.False(t, c.Annotation().Visible)
}
