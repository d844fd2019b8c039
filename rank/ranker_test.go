package rank

import (
	"testing"
	"time"

	"github.com/keilerkonzept/topk/heap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := []func(*Config){
		func(c *Config) { c.K = 0 },
		func(c *Config) { c.Width = 0 },
		func(c *Config) { c.Decay = 1.5 },
		func(c *Config) { c.DecayLUTSize = 0 },
		func(c *Config) { c.Tick = 0 },
		func(c *Config) { c.Window = 500 * time.Millisecond },
		func(c *Config) { c.Window = 2500 * time.Millisecond },
		func(c *Config) { c.FullRefresh = -time.Second },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), "case %d", i)
		_, err := New(cfg)
		assert.Error(t, err, "case %d", i)
	}
}

func TestTopOrdersByActivity(t *testing.T) {
	r, err := New(DefaultConfig())
	require.NoError(t, err)
	r.Observe("b", 50)
	r.Observe("a", 100)
	r.Observe("c", 10)
	r.Observe("ignored", 0)

	top, full := r.Top(time.Now(), 0)
	assert.True(t, full)
	require.Len(t, top, 3)
	assert.Equal(t, "a", top[0].Tag)
	assert.Equal(t, uint32(100), top[0].Count)
	assert.Equal(t, "b", top[1].Tag)
	assert.Equal(t, "c", top[2].Tag)
	assert.Equal(t, uint32(50), r.Count("b"))
}

func TestTopRespectsK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.K = 2
	r, err := New(cfg)
	require.NoError(t, err)
	for i, tag := range []string{"a", "b", "c", "d"} {
		r.Observe(tag, 10*(i+1))
	}
	top, _ := r.Top(time.Now(), 0)
	require.Len(t, top, 2)
	assert.Equal(t, "d", top[0].Tag)
	assert.Equal(t, "c", top[1].Tag)
}

func TestTopPartialRefreshRecounts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FullRefresh = time.Hour
	r, err := New(cfg)
	require.NoError(t, err)
	now := time.Now()

	r.Observe("a", 100)
	r.Observe("b", 50)
	top, _ := r.Top(now, 0)
	require.Equal(t, "a", top[0].Tag)

	r.Observe("b", 100)
	r.Observe("new", 1000)
	top, full := r.Top(now.Add(time.Second), 0)
	assert.False(t, full)
	require.Len(t, top, 2, "membership is fixed until the next full refresh")
	assert.Equal(t, "b", top[0].Tag)
	assert.Equal(t, uint32(150), top[0].Count)

	top, full = r.Top(now.Add(2*time.Hour), 0)
	assert.True(t, full)
	assert.Equal(t, "new", top[0].Tag)
}

func TestAdvanceFirstCallOnlyAnchors(t *testing.T) {
	r, err := New(DefaultConfig())
	require.NoError(t, err)
	r.Observe("a", 5)
	now := time.Now()
	r.Advance(now)
	r.Advance(now)
	assert.Equal(t, uint32(5), r.Count("a"))
}

func TestIncrementalPartialLimit(t *testing.T) {
	inc := newIncremental(3, time.Hour, 1)
	now := time.Now()
	items := []heap.Item{{Item: "a", Count: 3}, {Item: "b", Count: 2}, {Item: "c", Count: 1}}
	got, full := inc.refresh(now, 0, func() []heap.Item { return items }, nil)
	assert.True(t, full)
	assert.Len(t, got, 3)

	var limits []int
	got, full = inc.refresh(now, 2, func() []heap.Item { t.Fatal("unexpected full refresh"); return nil },
		func(items []heap.Item, limit int) {
			limits = append(limits, limit)
			items[0].Count = 0
		})
	assert.False(t, full)
	assert.Equal(t, []int{1}, limits)
	assert.Equal(t, uint32(0), got[0].Count)
}
