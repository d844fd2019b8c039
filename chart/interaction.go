package chart

import (
	"fmt"
	"math"
	"sort"
)

// DragState is the state of a Controller.
type DragState int

const (
	Idle DragState = iota
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Button identifies the pointer button of a press. Only ButtonPrimary
// starts a drag.
type Button int

const (
	ButtonNone Button = iota
	ButtonPrimary
	ButtonSecondary
	ButtonMiddle
)

// Annotation is the hover marker. There is at most one.
type Annotation struct {
	Position float64
	Value    float64
	Visible  bool
}

func (a Annotation) Label() string { return fmt.Sprintf("Value: %.2f", a.Value) }

// Controller turns pointer gestures into viewport changes and hover lookups.
// Positions are already in viewport coordinates.
type Controller struct {
	vp         *Viewport
	state      DragState
	pressPos   float64
	annotation Annotation
}

func NewController(vp *Viewport) *Controller {
	return &Controller{vp: vp}
}

func (c *Controller) Viewport() *Viewport    { return c.vp }
func (c *Controller) State() DragState       { return c.state }
func (c *Controller) Annotation() Annotation { return c.annotation }

// Press starts a drag at pos when b is the primary button; other buttons
// are ignored.
func (c *Controller) Press(b Button, pos float64) {
	if b != ButtonPrimary {
		return
	}
	c.state = Dragging
	c.pressPos = pos
}

// Drag pans by the distance moved since the previous press/drag position.
// It reports whether the viewport moved.
func (c *Controller) Drag(pos float64) bool {
	if c.state != Dragging {
		return false
	}
	c.vp.Pan(c.pressPos - pos)
	c.pressPos = pos
	return true
}

// Release ends a drag. It is a no-op when idle.
func (c *Controller) Release() {
	c.state = Idle
}

// Scroll zooms around pos, or around the window centre when pos is nil.
func (c *Controller) Scroll(dir ZoomDirection, pos *float64) {
	anchor := c.vp.Center()
	if pos != nil {
		anchor = *pos
	}
	c.vp.Zoom(dir, anchor)
}

// Lookup maps a horizontal position to the index of the frame point under
// it. Positions outside the window are a miss rather than being clamped.
func (c *Controller) Lookup(f Frame, pos float64) (int, bool) {
	n := f.Len()
	span := c.vp.Span()
	if n == 0 || span <= 0 {
		return 0, false
	}
	idx := int(math.Round((pos - c.vp.Start()) / span * float64(n-1)))
	if idx < 0 || idx > n-1 {
		return 0, false
	}
	return idx, true
}

// Hover shows the value of the evenly spaced frame point under pos, or
// hides the annotation when pos misses the frame.
func (c *Controller) Hover(pos float64, f Frame) Annotation {
	idx, ok := c.Lookup(f, pos)
	if !ok {
		c.annotation = Annotation{}
		return c.annotation
	}
	c.annotation = Annotation{Position: pos, Value: f.Values[idx], Visible: true}
	return c.annotation
}

// Nearest finds the point whose position is closest to pos, for frames
// whose positions are not evenly spaced, such as report frames where a
// whole batch shares one position. Positions must be sorted; pos outside
// the window is a miss.
func (c *Controller) Nearest(f Frame, pos float64) (int, bool) {
	n := len(f.Positions)
	if n == 0 || n != f.Len() || pos < c.vp.Start() || pos > c.vp.End() {
		return 0, false
	}
	i := sort.SearchFloat64s(f.Positions, pos)
	if i == n || (i > 0 && pos-f.Positions[i-1] < f.Positions[i]-pos) {
		i--
	}
	// Several values can share a position; the last one arrived latest.
	for i+1 < n && f.Positions[i+1] == f.Positions[i] {
		i++
	}
	return i, true
}

// HoverNearest is Hover for frames with uneven positions.
func (c *Controller) HoverNearest(pos float64, f Frame) Annotation {
	idx, ok := c.Nearest(f, pos)
	if !ok {
		c.annotation = Annotation{}
		return c.annotation
	}
	c.annotation = Annotation{Position: f.Positions[idx], Value: f.Values[idx], Visible: true}
	return c.annotation
}

// HoverOut hides the annotation.
func (c *Controller) HoverOut() {
	c.annotation = Annotation{}
}
