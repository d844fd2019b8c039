package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/keilerkonzept/tagscope/chart"
	"github.com/keilerkonzept/tagscope/logging"
)

// NoTagsPlaceholder is what the tag pickers show when a project has no tags.
const NoTagsPlaceholder = "No Tags Available"

// b, r, g, y, m, c
var seriesColors = []drawing.Color{
	{R: 0, G: 0, B: 255, A: 255},
	{R: 255, G: 0, B: 0, A: 255},
	{R: 0, G: 128, B: 0, A: 255},
	{R: 191, G: 191, B: 0, A: 255},
	{R: 191, G: 0, B: 191, A: 255},
	{R: 0, G: 191, B: 191, A: 255},
}

type TagReport struct {
	Tag     string
	Entries []Entry
	Samples []chart.Sample
	// Skipped counts entries dropped for unparseable timestamps.
	Skipped int
}

type Report struct {
	Project  string
	From, To time.Time
	Tags     []TagReport
}

// ValidSelection reports whether tags names at least one real tag.
func ValidSelection(tags []string) bool {
	if len(tags) == 0 {
		return false
	}
	for _, t := range tags {
		if t == "" || t == NoTagsPlaceholder {
			return false
		}
	}
	return true
}

// BuildReport collects every entry of the selected tags whose timestamp lies
// in [from, to]. Entries with malformed timestamps are logged and skipped.
func BuildReport(ctx context.Context, store Store, project string, tags []string, from, to time.Time) (*Report, error) {
	if !ValidSelection(tags) {
		return nil, chart.ErrInvalidSelection
	}
	r := &Report{Project: project, From: from, To: to}
	for _, tag := range tags {
		entries, err := store.GetTagValues(ctx, project, tag)
		if err != nil {
			return nil, fmt.Errorf("report %s: %w", tag, err)
		}
		tr := TagReport{Tag: tag}
		for _, e := range entries {
			ts, err := ParseTimestamp(e.Timestamp)
			if err != nil {
				logging.Errorf("Error parsing timestamp for tag %s: %v", tag, err)
				tr.Skipped++
				continue
			}
			if ts.Before(from) || ts.After(to) {
				continue
			}
			tr.Entries = append(tr.Entries, e)
			for _, v := range e.Values {
				tr.Samples = append(tr.Samples, chart.Sample{Value: v, Timestamp: ts})
			}
		}
		// Samples are kept in time order for nearest-point lookups; values
		// of one entry stay in arrival order.
		slices.SortStableFunc(tr.Samples, func(a, b chart.Sample) int {
			return a.Timestamp.Compare(b.Timestamp)
		})
		r.Tags = append(r.Tags, tr)
	}
	logging.Debugf("Time report built for tags: %v", tags)
	return r, nil
}

func (r *Report) Tag(name string) (TagReport, bool) {
	for _, tr := range r.Tags {
		if tr.Tag == name {
			return tr, true
		}
	}
	return TagReport{}, false
}

// Span is the report range in seconds; it is the home window of the report
// viewport.
func (r *Report) Span() float64 {
	return r.To.Sub(r.From).Seconds()
}

func (r *Report) Viewport() *chart.Viewport {
	return chart.NewReportViewport(0, r.Span())
}

// Frame selects the samples of tag whose timestamps fall inside the
// viewport window. Positions are seconds since the report start.
func (r *Report) Frame(tag string, vp *chart.Viewport) chart.Frame {
	tr, ok := r.Tag(tag)
	if !ok {
		return chart.Frame{}
	}
	var f chart.Frame
	for _, s := range tr.Samples {
		pos := s.Timestamp.Sub(r.From).Seconds()
		if pos < vp.Start() || pos > vp.End() {
			continue
		}
		f.Positions = append(f.Positions, pos)
		f.Values = append(f.Values, s.Value)
		f.Timestamps = append(f.Timestamps, s.Timestamp)
	}
	return f
}

// TimeTicks labels count evenly spaced positions of vp with the wall-clock
// time they stand for.
func (r *Report) TimeTicks(vp *chart.Viewport, count int) []chart.TimeTick {
	positions := chart.Linspace(vp.Start(), vp.End(), count)
	ticks := make([]chart.TimeTick, len(positions))
	for i, pos := range positions {
		t := r.From.Add(time.Duration(pos * float64(time.Second)))
		ticks[i] = chart.TimeTick{Position: pos, Time: t, Label: chart.FormatTickTime(t)}
	}
	return ticks
}

func (r *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Time Report for %s (%s to %s):\n", r.Project, r.From.Format(time.RFC3339), r.To.Format(time.RFC3339))
	names := make([]string, len(r.Tags))
	for i, tr := range r.Tags {
		names[i] = tr.Tag
	}
	fmt.Fprintf(&b, "Selected Tags: %s\n\n", strings.Join(names, ", "))

	for _, tr := range r.Tags {
		fmt.Fprintf(&b, "Tag: %s\n", tr.Tag)
		if len(tr.Entries) == 0 {
			b.WriteString("  No data in selected time range.\n")
			continue
		}
		last := tr.Entries[len(tr.Entries)-1]
		fmt.Fprintf(&b, "  Messages in Range: %d\n", len(tr.Entries))
		if len(last.Values) > 0 {
			fmt.Fprintf(&b, "  Latest Value: %v\n", last.Values[len(last.Values)-1])
		}
		if tr.Skipped > 0 {
			fmt.Fprintf(&b, "  Skipped (bad timestamp): %d\n", tr.Skipped)
		}
		b.WriteString("  Sample Data (last 5 entries):\n")
		for _, e := range tail(tr.Entries, 5) {
			fmt.Fprintf(&b, "    %s: %v\n", e.Timestamp, tail(e.Values, 5))
		}
	}
	return b.String()
}

func tail[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// RenderPNG draws one line per tag that has at least two samples.
func (r *Report) RenderPNG(w io.Writer, width, height int) error {
	var series []gochart.Series
	for i, tr := range r.Tags {
		if len(tr.Samples) < 2 {
			continue
		}
		xs := make([]time.Time, len(tr.Samples))
		ys := make([]float64, len(tr.Samples))
		for j, s := range tr.Samples {
			xs[j] = s.Timestamp
			ys[j] = s.Value
		}
		series = append(series, gochart.TimeSeries{
			Name:    tr.Tag,
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: seriesColors[i%len(seriesColors)],
				StrokeWidth: 1.5,
			},
		})
	}
	if len(series) == 0 {
		return fmt.Errorf("render report: %w", chart.ErrInsufficientData)
	}
	graph := gochart.Chart{
		Title:  fmt.Sprintf("Time Report for %s", r.Project),
		Width:  width,
		Height: height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: gochart.XAxis{
			Name:           "Time",
			ValueFormatter: gochart.TimeValueFormatterWithFormat("01-02 15:04:05"),
		},
		YAxis:  gochart.YAxis{Name: "Values"},
		Series: series,
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}
	if err := graph.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// IsNoData reports whether err means there was nothing to draw.
func IsNoData(err error) bool {
	return errors.Is(err, chart.ErrInsufficientData)
}
