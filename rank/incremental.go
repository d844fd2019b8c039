package rank

import (
	"sort"
	"time"

	"github.com/keilerkonzept/topk/heap"
)

// incremental caches the top-K list between full refreshes and only
// re-reads the counts of the leading entries in between.
type incremental struct {
	k           int
	fullRefresh time.Duration
	partialSize int

	lastFull time.Time
	items    []heap.Item
}

func newIncremental(k int, fullRefresh time.Duration, partialSize int) *incremental {
	return &incremental{
		k:           max(1, k),
		fullRefresh: max(0, fullRefresh),
		partialSize: max(0, partialSize),
	}
}

// refresh returns the current ranking. sorted yields a full ranking from the
// sketch; recount rewrites Count of the first limit items in place.
func (r *incremental) refresh(now time.Time, visible int, sorted func() []heap.Item, recount func(items []heap.Item, limit int)) (items []heap.Item, full bool) {
	needFull := len(r.items) == 0 || r.lastFull.IsZero() ||
		r.fullRefresh == 0 || now.Sub(r.lastFull) >= r.fullRefresh
	if needFull {
		r.items = sorted()
		if len(r.items) > r.k {
			r.items = r.items[:r.k]
		}
		r.lastFull = now
		return clone(r.items), true
	}

	limit := len(r.items)
	if visible > 0 && visible < limit {
		limit = visible
	}
	if r.partialSize > 0 && r.partialSize < limit {
		limit = r.partialSize
	}
	recount(r.items, limit)
	sort.SliceStable(r.items[:limit], func(i, j int) bool {
		if r.items[i].Count != r.items[j].Count {
			return r.items[i].Count > r.items[j].Count
		}
		return r.items[i].Item < r.items[j].Item
	})
	return clone(r.items), false
}

func clone(in []heap.Item) []heap.Item {
	out := make([]heap.Item, len(in))
	copy(out, in)
	return out
}
