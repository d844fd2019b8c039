package chart

import "time"

// DefaultCapacity is the number of samples kept per tag.
const DefaultCapacity = 8192

// Sample is one buffered value and the arrival time of the batch it came
// with. All values of a batch share the timestamp.
type Sample struct {
	Value     float64
	Timestamp time.Time
}

// Buffer is a fixed-capacity ring of samples. Pushing past capacity
// silently evicts the oldest samples.
type Buffer struct {
	samples []Sample
	start   int
	count   int
}

// NewBuffer returns an empty buffer. Capacities below 1 are raised to 1.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{samples: make([]Sample, capacity)}
}

func (b *Buffer) Capacity() int { return len(b.samples) }
func (b *Buffer) Len() int      { return b.count }

// Push appends every value with the same timestamp.
func (b *Buffer) Push(values []float64, ts time.Time) {
	n := len(b.samples)
	// Only the tail of an oversized batch can survive.
	if len(values) > n {
		values = values[len(values)-n:]
	}
	for _, v := range values {
		idx := (b.start + b.count) % n
		b.samples[idx] = Sample{Value: v, Timestamp: ts}
		if b.count < n {
			b.count++
			continue
		}
		b.start = (b.start + 1) % n
	}
}

// Clear drops every sample; capacity is kept.
func (b *Buffer) Clear() {
	clear(b.samples)
	b.start = 0
	b.count = 0
}

// Latest returns the newest sample, if any.
func (b *Buffer) Latest() (Sample, bool) {
	if b.count == 0 {
		return Sample{}, false
	}
	return b.samples[(b.start+b.count-1)%len(b.samples)], true
}

// Snapshot returns a copy of the most recent count samples, oldest first.
func (b *Buffer) Snapshot(count int) []Sample {
	if count <= 0 || b.count == 0 {
		return []Sample{}
	}
	count = min(count, b.count)
	out := make([]Sample, count)
	first := b.start + b.count - count
	for i := range out {
		out[i] = b.samples[(first+i)%len(b.samples)]
	}
	return out
}
