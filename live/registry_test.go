package live

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilerkonzept/tagscope/chart"
	"github.com/keilerkonzept/tagscope/history"
)

type manualScheduler struct {
	fn      func()
	started int
	stopped int
}

func (m *manualScheduler) Start(fn func()) { m.fn = fn; m.started++ }
func (m *manualScheduler) Stop()           { m.fn = nil; m.stopped++ }

func (m *manualScheduler) fire() {
	if m.fn != nil {
		m.fn()
	}
}

type testEnv struct {
	reg       *Registry
	scheds    map[string][]*manualScheduler
	refreshed []string
}

func newTestEnv(t *testing.T, store history.Store, capacity int) *testEnv {
	t.Helper()
	env := &testEnv{scheds: map[string][]*manualScheduler{}}
	opts := DefaultOptions()
	opts.Capacity = capacity
	opts.NewScheduler = func(tag string) Scheduler {
		s := &manualScheduler{}
		env.scheds[tag] = append(env.scheds[tag], s)
		return s
	}
	opts.OnRefresh = func(tag string) { env.refreshed = append(env.refreshed, tag) }
	env.reg = NewRegistry("plant", store, opts)
	return env
}

func memStore(t *testing.T) *history.BadgerStore {
	t.Helper()
	s, err := history.OpenBadger(history.Config{InMemory: true, CompressionLevel: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenInvalidSelection(t *testing.T) {
	env := newTestEnv(t, nil, 16)
	for _, tag := range []string{"", history.NoTagsPlaceholder} {
		_, err := env.reg.Open(context.Background(), tag)
		assert.ErrorIs(t, err, chart.ErrInvalidSelection)
	}
	assert.Equal(t, 0, env.reg.Len())
	assert.Empty(t, env.scheds)

	noProject := NewRegistry("", nil, DefaultOptions())
	_, err := noProject.Open(context.Background(), "a")
	assert.ErrorIs(t, err, chart.ErrInvalidSelection)
}

func TestOpenSeedsFromLastTwoEntries(t *testing.T) {
	ctx := context.Background()
	store := memStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	for i := 0; i < 4; i++ {
		require.NoError(t, store.Append(ctx, "plant", "a", history.Entry{
			Timestamp: history.FormatTimestamp(base.Add(time.Duration(i) * time.Second)),
			Values:    []float64{float64(10 * i), float64(10*i + 1)},
		}))
	}

	env := newTestEnv(t, store, 16)
	c, err := env.reg.Open(ctx, "a")
	require.NoError(t, err)
	samples := c.Buffer().Snapshot(16)
	require.Len(t, samples, 4)
	assert.Equal(t, []float64{20, 21, 30, 31}, []float64{samples[0].Value, samples[1].Value, samples[2].Value, samples[3].Value})
	assert.True(t, samples[3].Timestamp.Equal(base.Add(3*time.Second)))
}

func TestSwitchStopsOldScheduler(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, 16)

	_, err := env.reg.Open(ctx, "a")
	require.NoError(t, err)
	_, err = env.reg.Switch(ctx, "a", "b")
	require.NoError(t, err)

	_, ok := env.reg.Channel("a")
	assert.False(t, ok)
	assert.Equal(t, 1, env.reg.Len())
	assert.Equal(t, 1, env.scheds["a"][0].stopped)
	assert.Equal(t, 0, env.scheds["b"][0].stopped)

	env.scheds["a"][0].fire()
	env.scheds["b"][0].fire()
	assert.Equal(t, []string{"b"}, env.refreshed)
}

func TestReopenRestartsChannel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, 16)
	c1, err := env.reg.Open(ctx, "a")
	require.NoError(t, err)
	c1.Append([]float64{1, 2, 3}, time.Now())

	c2, err := env.reg.Open(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, c2.Buffer().Len())
	require.Len(t, env.scheds["a"], 2)
	assert.Equal(t, 1, env.scheds["a"][0].stopped)
}

func TestOnDataReceivedRoutesByTag(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, 16)
	c, err := env.reg.Open(ctx, "a")
	require.NoError(t, err)

	now := time.Now()
	assert.True(t, env.reg.OnDataReceived("a", []float64{1, 2}, now))
	assert.False(t, env.reg.OnDataReceived("b", []float64{3}, now))
	assert.Equal(t, 2, c.Buffer().Len())
	assert.Equal(t, now, c.LastUpdate())
}

func TestRefreshStates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, 8)
	c, err := env.reg.Open(ctx, "a")
	require.NoError(t, err)

	d := c.Refresh()
	assert.Equal(t, StateWaiting, d.State)
	assert.Equal(t, "Waiting for sufficient data for a (Current buffer: 0/8).", d.Message)
	assert.ErrorIs(t, d.Err, chart.ErrInsufficientData)

	c.Append([]float64{1}, time.Now())
	assert.Equal(t, StateWaiting, c.Refresh().State)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	c.Append([]float64{2, 3, 4.5}, ts)
	d = c.Refresh()
	require.Equal(t, StateReady, d.State)
	assert.NoError(t, d.Err)
	assert.Equal(t, 4, d.Frame.Len())
	assert.Equal(t, "Time View Data for a, Latest value: 4.5, Window: 1.00s, Buffer: 4", d.Message)
	assert.Len(t, d.Ticks.Times, chart.DefaultTimeTickCount)
	assert.Equal(t, "12:00:000", d.Ticks.Times[chart.DefaultTimeTickCount-1].Label)
	assert.NotEmpty(t, d.Ticks.Values)

	a := c.Hover(1.0)
	assert.True(t, a.Visible)
	assert.Equal(t, 4.5, a.Value)
	assert.Equal(t, a, c.Refresh().Annotation)
}

func TestRefreshWithNonFiniteValues(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, 8)
	c, err := env.reg.Open(ctx, "a")
	require.NoError(t, err)

	ts := time.Now()
	require.True(t, env.reg.OnDataReceived("a", []float64{1, math.NaN(), 2, math.Inf(1)}, ts))
	d := c.Refresh()
	require.Equal(t, StateReady, d.State)
	assert.Equal(t, chart.ValueTicks([]float64{1, 2}), d.Ticks.Values)

	c.Buffer().Clear()
	env.reg.OnDataReceived("a", []float64{math.NaN(), math.Inf(-1)}, ts)
	assert.Equal(t, chart.ValueTicks(nil), c.Refresh().Ticks.Values)
}

func TestNoSelectionDisplay(t *testing.T) {
	d := NoSelection()
	assert.Equal(t, StateNoSelection, d.State)
	assert.ErrorIs(t, d.Err, chart.ErrInvalidSelection)
	assert.Equal(t, "No project or tag selected for Time View.", d.Message)
}

func TestCloseAll(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, 8)
	for _, tag := range []string{"a", "b", "c"} {
		_, err := env.reg.Open(ctx, tag)
		require.NoError(t, err)
	}
	env.reg.CloseAll()
	assert.Equal(t, 0, env.reg.Len())
	for _, s := range env.scheds {
		assert.Equal(t, 1, s[0].stopped)
	}
	env.reg.Close("a")
}

func TestTickerScheduler(t *testing.T) {
	s := NewTickerScheduler(5 * time.Millisecond)
	ticks := make(chan struct{}, 16)
	s.Start(func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})
	assert.True(t, s.Running())

	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("scheduler never fired")
	}
	s.Stop()
	s.Wait()
	assert.False(t, s.Running())

	for len(ticks) > 0 {
		<-ticks
	}
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, ticks)
}

func TestTickerSchedulerDefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultRefreshInterval, NewTickerScheduler(0).Interval())
	s := NewTickerScheduler(time.Hour)
	s.Stop()
	s.Wait()
}
