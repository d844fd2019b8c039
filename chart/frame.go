package chart

import "time"

// Frame is one refresh worth of display points. Positions, Values and
// Timestamps are parallel and ordered oldest first.
type Frame struct {
	Positions  []float64
	Values     []float64
	Timestamps []time.Time
}

func (f Frame) Len() int    { return len(f.Values) }
func (f Frame) Empty() bool { return len(f.Values) == 0 }

func (f Frame) Latest() (Sample, bool) {
	if f.Empty() {
		return Sample{}, false
	}
	n := len(f.Values) - 1
	return Sample{Value: f.Values[n], Timestamp: f.Timestamps[n]}, true
}

// Bounds returns the min and max value in the frame.
func (f Frame) Bounds() (lo, hi float64) {
	if f.Empty() {
		return 0, 0
	}
	lo, hi = f.Values[0], f.Values[0]
	for _, v := range f.Values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

// Decimate picks n evenly spaced points, always keeping the first and the
// last one. Frames with n or fewer points are returned as is.
func (f Frame) Decimate(n int) Frame {
	if n >= f.Len() || n < 2 {
		return f
	}
	out := Frame{
		Positions:  make([]float64, n),
		Values:     make([]float64, n),
		Timestamps: make([]time.Time, n),
	}
	last := f.Len() - 1
	for i := 0; i < n; i++ {
		j := i * last / (n - 1)
		out.Positions[i] = f.Positions[j]
		out.Values[i] = f.Values[j]
		out.Timestamps[i] = f.Timestamps[j]
	}
	return out
}
