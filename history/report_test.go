package history

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilerkonzept/tagscope/chart"
)

type memStore struct {
	entries map[string][]Entry
}

func (m *memStore) GetTagValues(_ context.Context, _, tag string) ([]Entry, error) {
	return m.entries[tag], nil
}

func (m *memStore) Tail(_ context.Context, _, tag string, n int) ([]Entry, error) {
	return tail(m.entries[tag], n), nil
}

func (m *memStore) Append(_ context.Context, _, tag string, e Entry) error {
	m.entries[tag] = append(m.entries[tag], e)
	return nil
}

func (m *memStore) Tags(context.Context, string) ([]string, error) { return nil, nil }
func (m *memStore) Close() error                                   { return nil }

var reportBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)

func at(sec int) string { return FormatTimestamp(reportBase.Add(time.Duration(sec) * time.Second)) }

func reportStore() *memStore {
	return &memStore{entries: map[string][]Entry{
		"a": {
			{Timestamp: at(-10), Values: []float64{1}},
			{Timestamp: at(0), Values: []float64{10, 11}},
			{Timestamp: "not-a-time", Values: []float64{99}},
			{Timestamp: at(30), Values: []float64{20, 21, 22}},
			{Timestamp: at(60), Values: []float64{30}},
			{Timestamp: at(61), Values: []float64{40}},
		},
		"b": {
			{Timestamp: at(500), Values: []float64{5}},
		},
	}}
}

func TestBuildReportFiltersRange(t *testing.T) {
	r, err := BuildReport(context.Background(), reportStore(), "plant", []string{"a", "b"}, reportBase, reportBase.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, r.Tags, 2)

	a, ok := r.Tag("a")
	require.True(t, ok)
	assert.Len(t, a.Entries, 3, "bounds are inclusive")
	assert.Equal(t, 1, a.Skipped)
	assert.Len(t, a.Samples, 6)
	assert.Equal(t, 30.0, a.Samples[5].Value)

	b, _ := r.Tag("b")
	assert.Empty(t, b.Entries)
	assert.Equal(t, 60.0, r.Span())
}

func TestBuildReportInvalidSelection(t *testing.T) {
	for _, tags := range [][]string{nil, {}, {""}, {NoTagsPlaceholder}} {
		_, err := BuildReport(context.Background(), reportStore(), "plant", tags, reportBase, reportBase)
		assert.ErrorIs(t, err, chart.ErrInvalidSelection)
	}
}

func TestReportText(t *testing.T) {
	r, err := BuildReport(context.Background(), reportStore(), "plant", []string{"a", "b"}, reportBase, reportBase.Add(time.Minute))
	require.NoError(t, err)
	text := r.Text()
	assert.Contains(t, text, "Selected Tags: a, b")
	assert.Contains(t, text, "Messages in Range: 3")
	assert.Contains(t, text, "Latest Value: 30")
	assert.Contains(t, text, at(30)+": [20 21 22]")
	assert.Contains(t, text, "Tag: b\n  No data in selected time range.")
	assert.False(t, strings.Contains(text, "99"))
}

func TestReportFrameFollowsViewport(t *testing.T) {
	r, err := BuildReport(context.Background(), reportStore(), "plant", []string{"a"}, reportBase, reportBase.Add(time.Minute))
	require.NoError(t, err)

	vp := r.Viewport()
	f := r.Frame("a", vp)
	require.Equal(t, 6, f.Len())
	assert.Equal(t, 0.0, f.Positions[0])
	assert.Equal(t, 60.0, f.Positions[5])

	vp.Set(10, 40)
	f = r.Frame("a", vp)
	assert.Equal(t, []float64{20, 21, 22}, f.Values)
	assert.Equal(t, 30.0, f.Positions[0])

	vp.Reset()
	assert.Equal(t, 6, r.Frame("a", vp).Len())
	assert.True(t, r.Frame("missing", vp).Empty())
}

func TestReportTimeTicks(t *testing.T) {
	r, err := BuildReport(context.Background(), reportStore(), "plant", []string{"a"}, reportBase, reportBase.Add(time.Minute))
	require.NoError(t, err)
	ticks := r.TimeTicks(r.Viewport(), 3)
	require.Len(t, ticks, 3)
	assert.Equal(t, "12:00:000", ticks[0].Label)
	assert.Equal(t, 30.0, ticks[1].Position)
	assert.True(t, ticks[2].Time.Equal(reportBase.Add(time.Minute)))
}

func TestRenderPNG(t *testing.T) {
	r, err := BuildReport(context.Background(), reportStore(), "plant", []string{"a"}, reportBase, reportBase.Add(time.Minute))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPNG(&buf, 800, 400))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestRenderPNGNothingToDraw(t *testing.T) {
	r, err := BuildReport(context.Background(), reportStore(), "plant", []string{"b"}, reportBase, reportBase.Add(time.Minute))
	require.NoError(t, err)
	err = r.RenderPNG(&bytes.Buffer{}, 800, 400)
	assert.ErrorIs(t, err, chart.ErrInsufficientData)
	assert.True(t, IsNoData(err))
}

func TestReportHoverPicksNearestSample(t *testing.T) {
	store := &memStore{entries: map[string][]Entry{
		"a": {
			{Timestamp: at(0), Values: []float64{1, 2, 3}},
			{Timestamp: at(9), Values: []float64{100}},
		},
	}}
	r, err := BuildReport(context.Background(), store, "plant", []string{"a"}, reportBase, reportBase.Add(10*time.Second))
	require.NoError(t, err)

	ctl := chart.NewController(r.Viewport())
	f := r.Frame("a", ctl.Viewport())
	require.Equal(t, 4, f.Len())

	a := ctl.HoverNearest(8.0, f)
	require.True(t, a.Visible)
	assert.Equal(t, 100.0, a.Value)
	assert.Equal(t, 9.0, a.Position)

	// the latest value of a shared position wins
	a = ctl.HoverNearest(1.0, f)
	assert.Equal(t, 3.0, a.Value)
	assert.Equal(t, 0.0, a.Position)

	assert.False(t, ctl.HoverNearest(11, f).Visible)
}

func TestBuildReportOrdersSamplesByTime(t *testing.T) {
	store := &memStore{entries: map[string][]Entry{
		"a": {
			{Timestamp: at(20), Values: []float64{2}},
			{Timestamp: at(5), Values: []float64{1, 1.5}},
			{Timestamp: at(40), Values: []float64{3}},
		},
	}}
	r, err := BuildReport(context.Background(), store, "plant", []string{"a"}, reportBase, reportBase.Add(time.Minute))
	require.NoError(t, err)

	f := r.Frame("a", r.Viewport())
	assert.Equal(t, []float64{5, 5, 20, 40}, f.Positions)
	assert.Equal(t, []float64{1, 1.5, 2, 3}, f.Values)
	tr, _ := r.Tag("a")
	assert.Equal(t, at(20), tr.Entries[0].Timestamp, "entries keep store order")
}
