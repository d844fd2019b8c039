package main

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type durationRing struct {
	mu    sync.Mutex
	buf   []time.Duration
	idx   int
	count int
}

func newDurationRing(n int) *durationRing {
	return &durationRing{buf: make([]time.Duration, max(1, n))}
}

func (r *durationRing) add(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.idx] = d
	r.idx = (r.idx + 1) % len(r.buf)
	r.count = min(r.count+1, len(r.buf))
}

type durationStats struct {
	last time.Duration
	avg  time.Duration
	p95  time.Duration
	max  time.Duration
	n    int
}

func (r *durationRing) snapshot() durationStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return durationStats{}
	}
	sorted := make([]time.Duration, r.count)
	copy(sorted, r.buf[:r.count])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	last := r.buf[(r.idx-1+len(r.buf))%len(r.buf)]
	return durationStats{
		last: last,
		avg:  sum / time.Duration(r.count),
		p95:  sorted[(r.count-1)*95/100],
		max:  sorted[r.count-1],
		n:    r.count,
	}
}

// latencyMetrics counts ingested batches and times the per-frame work.
// Counters are atomics since ingestion runs off the UI goroutine.
type latencyMetrics struct {
	enabled atomic.Bool

	batches       atomic.Uint64
	values        atomic.Uint64
	malformed     atomic.Int64
	firstIngestNs atomic.Int64
	lastIngestNs  atomic.Int64

	resample      *durationRing
	rank          *durationRing
	fullRefreshes atomic.Uint64
	partRefreshes atomic.Uint64
}

func newLatencyMetrics(window int) *latencyMetrics {
	return &latencyMetrics{
		resample: newDurationRing(window),
		rank:     newDurationRing(window),
	}
}

func (m *latencyMetrics) setEnabled(v bool) { m.enabled.Store(v) }
func (m *latencyMetrics) isEnabled() bool   { return m.enabled.Load() }

func (m *latencyMetrics) observeIngest(now time.Time, values int) {
	if !m.isEnabled() {
		return
	}
	nowNs := now.UnixNano()
	m.firstIngestNs.CompareAndSwap(0, nowNs)
	m.lastIngestNs.Store(nowNs)
	m.batches.Add(1)
	m.values.Add(uint64(values))
}

func (m *latencyMetrics) observeMalformed(total int64) { m.malformed.Store(total) }

func (m *latencyMetrics) observeResample(d time.Duration) {
	if m.isEnabled() {
		m.resample.add(d)
	}
}

func (m *latencyMetrics) observeRank(d time.Duration, full bool) {
	if !m.isEnabled() {
		return
	}
	m.rank.add(d)
	if full {
		m.fullRefreshes.Add(1)
		return
	}
	m.partRefreshes.Add(1)
}

type metricsSnapshot struct {
	batches       uint64
	values        uint64
	malformed     int64
	valuesPerSec  uint64
	ingestLag     time.Duration
	resample      durationStats
	rank          durationStats
	fullRefreshes uint64
	partRefreshes uint64
}

func (m *latencyMetrics) snapshot(now time.Time) metricsSnapshot {
	if !m.isEnabled() {
		return metricsSnapshot{}
	}
	s := metricsSnapshot{
		batches:       m.batches.Load(),
		values:        m.values.Load(),
		malformed:     m.malformed.Load(),
		resample:      m.resample.snapshot(),
		rank:          m.rank.snapshot(),
		fullRefreshes: m.fullRefreshes.Load(),
		partRefreshes: m.partRefreshes.Load(),
	}
	first, last := m.firstIngestNs.Load(), m.lastIngestNs.Load()
	if last != 0 {
		s.ingestLag = now.Sub(time.Unix(0, last))
	}
	if first != 0 && last > first {
		active := time.Duration(last - first)
		s.valuesPerSec = uint64(float64(s.values)/active.Seconds() + 0.5)
	}
	return s
}
