package main

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilerkonzept/tagscope/chart"
	"github.com/keilerkonzept/tagscope/rank"
)

func TestComputePaneWidths(t *testing.T) {
	left, right := computePaneWidths(100, 30)
	assert.Equal(t, 30, left)
	assert.Equal(t, 70, right)

	left, right = computePaneWidths(50, 20)
	assert.Equal(t, 18, left, "narrow panes grow to the minimum")
	assert.Equal(t, 32, right)

	left, right = computePaneWidths(1, 50)
	assert.Equal(t, 1, left)
	assert.Equal(t, 1, right)
}

func TestPlaceLabels(t *testing.T) {
	ticks := []chart.TimeTick{
		{Position: 0, Label: "aa"},
		{Position: 0.5, Label: "bb"},
		{Position: 1, Label: "cc"},
	}
	assert.Equal(t, "aa        bb         cc", placeLabels(23, ticks, 0, 1))

	// overlapping labels are dropped
	line := placeLabels(5, ticks, 0, 1)
	assert.Equal(t, "aa cc", line)

	assert.Equal(t, "", placeLabels(0, ticks, 0, 1))
}

func TestGridSeries(t *testing.T) {
	f := chart.Frame{
		Positions:  []float64{2.5, 6, 6.5},
		Values:     []float64{1, 2, 3},
		Timestamps: make([]time.Time, 3),
	}
	got := gridSeries(f, 0, 10, 5)
	assert.Equal(t, []float64{1, 1, 1, 3, 3}, got)

	assert.Equal(t, []float64{0, 0}, gridSeries(chart.Frame{}, 0, 1, 2))
}

func TestValueRangeAndLabels(t *testing.T) {
	lo, hi := valueRange([]float64{10, 20}, []float64{0, 30})
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 30.0, hi)

	lo, hi = valueRange([]float64{10, math.NaN(), math.Inf(1)}, []float64{0, 30})
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 30.0, hi)

	lo, hi = valueRange(nil, nil)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)

	lines := valueLabels([]float64{0, 30}, 0, 30, 4, 6)
	require.Len(t, lines, 4)
	assert.Equal(t, " 30   ", lines[0])
	assert.Equal(t, "      ", lines[1])
	assert.Equal(t, " 0    ", lines[3])

	for _, l := range valueLabels([]float64{5}, 0, 0, 3, 4) {
		assert.Equal(t, "    ", l)
	}
}

func TestOrderedTags(t *testing.T) {
	activity := []rank.Activity{{Tag: "busy", Count: 9}, {Tag: "mid", Count: 3}}
	known := map[string]bool{"zzz": true, "busy": true, "aaa": true, "mid": true}

	items := orderedTags(activity, known)
	tags := make([]string, len(items))
	for i, it := range items {
		tags[i] = it.Tag
	}
	assert.Equal(t, []string{"busy", "mid", "aaa", "zzz"}, tags)
	assert.Equal(t, 1, items[0].Rank)
	assert.Equal(t, 0, items[2].Rank)
	assert.True(t, strings.HasPrefix(items[0].Title(), "#1"))
	assert.Equal(t, "    quiet", items[3].Description())
	assert.Equal(t, "mid", items[1].FilterValue())
}

func TestFormatMetricDuration(t *testing.T) {
	assert.Equal(t, "0.000ms", formatMetricDuration(0))
	assert.Equal(t, "1.500ms", formatMetricDuration(1500*time.Microsecond))
}

func TestParseReportRange(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	from, to, err := parseReportRange("", "", now)
	require.NoError(t, err)
	assert.Equal(t, now, to)
	assert.Equal(t, now.Add(-time.Hour), from)

	from, to, err = parseReportRange("2024-03-01T10:00:00", "2024-03-01T11:30:00.500000", now)
	require.NoError(t, err)
	assert.Equal(t, 10, from.Hour())
	assert.Equal(t, 500*time.Millisecond, time.Duration(to.Nanosecond()))

	_, _, err = parseReportRange("2024-03-01T13:00:00", "", now)
	assert.Error(t, err)
	_, _, err = parseReportRange("noon", "", now)
	assert.Error(t, err)
}
