// Package rank orders tags by how many values they delivered recently,
// using a sliding-window top-K sketch.
package rank

import (
	"fmt"
	"sync"
	"time"

	"github.com/keilerkonzept/topk/heap"
	"github.com/keilerkonzept/topk/sliding"
)

type Config struct {
	K            int
	Width        int
	Depth        int
	Decay        float64
	DecayLUTSize int
	Tick         time.Duration
	Window       time.Duration
	// FullRefresh is how often the whole ranking is rebuilt; zero rebuilds
	// on every call to Top.
	FullRefresh time.Duration
	PartialSize int
}

func DefaultConfig() Config {
	return Config{
		K:            50,
		Width:        3000,
		Depth:        3,
		Decay:        0.9,
		DecayLUTSize: 8192,
		Tick:         time.Second,
		Window:       10 * time.Second,
		FullRefresh:  2 * time.Second,
	}
}

func (c Config) Validate() error {
	switch {
	case c.K < 1:
		return fmt.Errorf("rank: k must be >= 1")
	case c.Width < 1 || c.Depth < 1:
		return fmt.Errorf("rank: sketch width and depth must be >= 1")
	case c.Decay < 0 || c.Decay > 1:
		return fmt.Errorf("rank: decay must be in [0,1]")
	case c.DecayLUTSize < 1:
		return fmt.Errorf("rank: decay LUT size must be >= 1")
	case c.Tick <= 0 || c.Window <= 0:
		return fmt.Errorf("rank: tick and window must be > 0")
	case c.Window < c.Tick:
		return fmt.Errorf("rank: window must be >= tick")
	case c.Window%c.Tick != 0:
		return fmt.Errorf("rank: window must be a multiple of tick (got window=%s tick=%s)", c.Window, c.Tick)
	case c.FullRefresh < 0 || c.PartialSize < 0:
		return fmt.Errorf("rank: full refresh and partial size must be >= 0")
	}
	return nil
}

type Activity struct {
	Tag   string
	Count uint32
}

// Ranker is safe for concurrent use: ingestion observes while the UI reads.
type Ranker struct {
	tick time.Duration

	mu       sync.Mutex
	sketch   *sliding.Sketch
	ranking  *incremental
	lastTick time.Time
}

func New(cfg Config) (*Ranker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sketch := sliding.New(cfg.K,
		int(cfg.Window/cfg.Tick),
		sliding.WithWidth(cfg.Width),
		sliding.WithDepth(cfg.Depth),
		sliding.WithDecay(float32(cfg.Decay)),
		sliding.WithDecayLUTSize(cfg.DecayLUTSize),
	)
	return &Ranker{
		tick:    cfg.Tick,
		sketch:  sketch,
		ranking: newIncremental(cfg.K, cfg.FullRefresh, cfg.PartialSize),
	}, nil
}

// Observe credits tag with n values.
func (r *Ranker) Observe(tag string, n int) {
	if n < 1 {
		return
	}
	r.mu.Lock()
	r.sketch.Add(tag, uint32(n))
	r.mu.Unlock()
}

// Advance moves the window forward to now in whole ticks.
func (r *Ranker) Advance(now time.Time) {
	now = now.Truncate(r.tick)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastTick.IsZero() {
		r.lastTick = now
		return
	}
	if ticks := int(now.Sub(r.lastTick) / r.tick); ticks > 0 {
		r.sketch.Ticks(ticks)
		r.lastTick = now
	}
}

func (r *Ranker) Count(tag string) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sketch.Count(tag)
}

// Top returns the most active tags, busiest first, and whether the ranking
// was rebuilt. Between full refreshes only the first visible entries are
// recounted and re-sorted.
func (r *Ranker) Top(now time.Time, visible int) ([]Activity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, full := r.ranking.refresh(now, visible,
		r.sketch.SortedSlice,
		func(items []heap.Item, limit int) {
			for i := 0; i < limit; i++ {
				items[i].Count = r.sketch.Count(items[i].Item)
			}
		},
	)
	out := make([]Activity, 0, len(items))
	for _, it := range items {
		if it.Count == 0 {
			continue
		}
		out = append(out, Activity{Tag: it.Item, Count: it.Count})
	}
	return out, full
}
