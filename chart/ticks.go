package chart

import (
	"fmt"
	"math"
	"time"
)

// Known sensor range used when there is nothing to scale against.
const (
	fallbackTickMin  = 16390
	fallbackTickMax  = 46537
	fallbackTickStep = 5000

	flatPadding  = 5000
	tickGrid     = 500
	targetTicks  = 10
	maxTicks     = 4 * targetTicks
	paddingRatio = 0.1

	DefaultTimeTickCount = 10
)

// TimeTick is a label for a horizontal position.
type TimeTick struct {
	Position float64
	Time     time.Time
	Label    string
}

type TickSet struct {
	Values []float64
	Times  []TimeTick
}

// ValuePadding returns the padded y-range for values: 10% of the range on
// both sides, or a fixed pad when every value is equal.
// Non-finite values are ignored.
func ValuePadding(values []float64) (lo, hi float64) {
	values = Finite(values)
	if len(values) == 0 {
		return fallbackTickMin, fallbackTickMax
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * paddingRatio
	if hi == lo {
		pad = flatPadding
	}
	return lo - pad, hi + pad
}

// ValueTicks snaps the padded value range to a grid of multiples of 500,
// aiming for about ten ticks. Non-finite values are ignored; with no finite
// value left the fixed sensor range is returned.
func ValueTicks(values []float64) []float64 {
	values = Finite(values)
	if len(values) == 0 {
		return fallbackTicks()
	}
	lo, hi := ValuePadding(values)
	step := math.Max((hi-lo)/targetTicks, 1)
	step = math.Ceil(step/tickGrid) * tickGrid
	first := math.Floor(lo/step) * step
	// Padding can overflow near the float64 limits.
	if math.IsInf(step, 0) || math.IsNaN(first) || math.IsInf(first, 0) {
		return fallbackTicks()
	}

	var ticks []float64
	for i := 0; i <= maxTicks; i++ {
		v := first + float64(i)*step
		if v > hi {
			break
		}
		ticks = append(ticks, v)
	}
	return ticks
}

func fallbackTicks() []float64 {
	var ticks []float64
	for v := fallbackTickMin; v <= fallbackTickMax; v += fallbackTickStep {
		ticks = append(ticks, float64(v))
	}
	return ticks
}

// Finite returns values without NaN and infinities. The input is returned
// as is when it has none.
func Finite(values []float64) []float64 {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out := append(make([]float64, 0, len(values)-1), values[:i]...)
			for _, w := range values[i+1:] {
				if !math.IsNaN(w) && !math.IsInf(w, 0) {
					out = append(out, w)
				}
			}
			return out
		}
	}
	return values
}

// TimeTicks labels count evenly spaced positions across [start, end],
// treating end as the moment of the latest sample.
func TimeTicks(start, end float64, latest time.Time, count int) []TimeTick {
	positions := Linspace(start, end, count)
	ticks := make([]TimeTick, len(positions))
	for i, pos := range positions {
		offset := time.Duration((pos - end) * float64(time.Second))
		t := latest.Add(offset)
		ticks[i] = TimeTick{Position: pos, Time: t, Label: FormatTickTime(t)}
	}
	return ticks
}

// FormatTickTime renders HH:MM: followed by zero-padded milliseconds.
func FormatTickTime(t time.Time) string {
	return fmt.Sprintf("%s%03d", t.Format("15:04:"), t.Nanosecond()/int(time.Millisecond))
}

// PlanTicks computes both axes for a frame drawn over [start, end]. Time
// ticks are left empty when the frame is.
func PlanTicks(f Frame, start, end float64, count int) TickSet {
	ts := TickSet{Values: ValueTicks(f.Values)}
	if latest, ok := f.Latest(); ok {
		ts.Times = TimeTicks(start, end, latest.Timestamp, count)
	}
	return ts
}
