// Package live keeps one chart channel per open tag and routes incoming
// batches to it.
package live

import (
	"context"
	"fmt"
	"time"

	"github.com/keilerkonzept/tagscope/chart"
	"github.com/keilerkonzept/tagscope/history"
	"github.com/keilerkonzept/tagscope/logging"
)

// seedEntries is how many stored batches prime a newly opened channel.
const seedEntries = 2

type Options struct {
	Capacity int
	// Density is samples per window unit; zero means Capacity.
	Density   int
	Interval  time.Duration
	TimeTicks int

	// NewScheduler builds the refresh scheduler of a channel. Nil means a
	// TickerScheduler with Interval.
	NewScheduler func(tag string) Scheduler
	// OnRefresh runs on the scheduler goroutine. It must not touch the
	// channel; hand the tag to the UI goroutine instead.
	OnRefresh func(tag string)
}

func DefaultOptions() Options {
	return Options{
		Capacity:  chart.DefaultCapacity,
		Interval:  DefaultRefreshInterval,
		TimeTicks: chart.DefaultTimeTickCount,
	}
}

// Registry holds the open channels of one project.
type Registry struct {
	project  string
	store    history.Store
	opts     Options
	channels map[string]*Channel
}

// NewRegistry returns an empty registry. store may be nil, in which case
// channels start empty.
func NewRegistry(project string, store history.Store, opts Options) *Registry {
	if opts.Capacity <= 0 {
		opts.Capacity = chart.DefaultCapacity
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultRefreshInterval
	}
	return &Registry{
		project:  project,
		store:    store,
		opts:     opts,
		channels: make(map[string]*Channel),
	}
}

func (r *Registry) Project() string { return r.project }

func (r *Registry) Channel(tag string) (*Channel, bool) {
	c, ok := r.channels[tag]
	return c, ok
}

func (r *Registry) Len() int { return len(r.channels) }

// Open creates the channel for tag, seeds it from the store and starts its
// refresh. Opening an already open tag restarts it from scratch.
func (r *Registry) Open(ctx context.Context, tag string) (*Channel, error) {
	if r.project == "" || !history.ValidSelection([]string{tag}) {
		logging.Warnf("No project or valid tag selected for Time View!")
		return nil, chart.ErrInvalidSelection
	}
	r.Close(tag)

	sched := r.newScheduler(tag)
	c := newChannel(tag, r.opts.Capacity, r.opts.Density, r.opts.TimeTicks, sched)
	if err := r.seed(ctx, c); err != nil {
		return nil, err
	}
	r.channels[tag] = c

	onRefresh := r.opts.OnRefresh
	sched.Start(func() {
		if onRefresh != nil {
			onRefresh(tag)
		}
	})
	logging.Debugf("Time View opened for %s/%s with %d seeded values", r.project, tag, c.buf.Len())
	return c, nil
}

func (r *Registry) newScheduler(tag string) Scheduler {
	if r.opts.NewScheduler != nil {
		return r.opts.NewScheduler(tag)
	}
	return NewTickerScheduler(r.opts.Interval)
}

func (r *Registry) seed(ctx context.Context, c *Channel) error {
	if r.store == nil {
		return nil
	}
	entries, err := r.store.Tail(ctx, r.project, c.tag, seedEntries)
	if err != nil {
		return fmt.Errorf("seed %s: %w", c.tag, err)
	}
	for _, e := range entries {
		ts, err := history.ParseTimestamp(e.Timestamp)
		if err != nil {
			logging.Warnf("Skipping seed entry for %s: %v", c.tag, err)
			continue
		}
		c.Append(e.Values, ts)
	}
	return nil
}

// Close stops the tag's scheduler and drops its channel.
func (r *Registry) Close(tag string) {
	c, ok := r.channels[tag]
	if !ok {
		return
	}
	c.sched.Stop()
	delete(r.channels, tag)
	logging.Debugf("Time View closed for %s", tag)
}

// Switch closes old before opening next so one view never runs two timers.
func (r *Registry) Switch(ctx context.Context, old, next string) (*Channel, error) {
	if old != "" {
		r.Close(old)
	}
	return r.Open(ctx, next)
}

// OnDataReceived appends values to the channel of tag. Batches for tags
// without an open channel are ignored.
func (r *Registry) OnDataReceived(tag string, values []float64, ts time.Time) bool {
	c, ok := r.channels[tag]
	if !ok {
		return false
	}
	c.Append(values, ts)
	logging.Debugf("Time View - Received %d values for %s", len(values), tag)
	return true
}

func (r *Registry) CloseAll() {
	for tag := range r.channels {
		r.Close(tag)
	}
}
