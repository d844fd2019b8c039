// Package ingest turns line-oriented input and the built-in simulator into
// tag batches.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/keilerkonzept/tagscope/history"
)

var ErrMalformedLine = errors.New("malformed input line")

// Batch is one published message: a tag and the values that arrived with it.
type Batch struct {
	Tag    string
	Values []float64
	// Time is zero when the source carried no timestamp.
	Time time.Time
}

// ParseLine reads "<tag> <v1,v2,...>". The tag is everything before the last
// space so topics with spaces survive.
func ParseLine(line string) (Batch, error) {
	line = strings.TrimSpace(line)
	i := strings.LastIndexByte(line, ' ')
	if i <= 0 {
		return Batch{}, fmt.Errorf("%w: want \"<tag> <values>\"", ErrMalformedLine)
	}
	tag := strings.TrimSpace(line[:i])
	values, err := ParseValues(line[i+1:])
	if err != nil {
		return Batch{}, err
	}
	return Batch{Tag: tag, Values: values}, nil
}

// ParseValues reads a comma separated list of finite floats.
func ParseValues(payload string) ([]float64, error) {
	fields := strings.Split(payload, ",")
	values := make([]float64, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: value %q", ErrMalformedLine, f)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no values", ErrMalformedLine)
	}
	return values, nil
}

type jsonBatch struct {
	Tag       string    `json:"tag"`
	Values    []float64 `json:"values"`
	Timestamp any       `json:"timestamp"`
}

// ParseJSONLine reads {"tag":..., "values":[...], "timestamp":...}. The
// timestamp may be unix seconds, RFC 3339 or the history layout.
func ParseJSONLine(line []byte) (Batch, error) {
	var jb jsonBatch
	if err := json.Unmarshal(line, &jb); err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	if jb.Tag == "" || len(jb.Values) == 0 {
		return Batch{}, fmt.Errorf("%w: missing tag or values", ErrMalformedLine)
	}
	b := Batch{Tag: jb.Tag, Values: jb.Values}
	switch ts := jb.Timestamp.(type) {
	case nil:
	case float64:
		sec, frac := math.Modf(ts)
		b.Time = time.Unix(int64(sec), int64(frac*1e9))
	case string:
		t, err := parseTime(ts)
		if err != nil {
			return Batch{}, err
		}
		b.Time = t
	default:
		return Batch{}, fmt.Errorf("%w: timestamp of type %T", ErrMalformedLine, ts)
	}
	return b, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := history.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	return t, nil
}

// FormatLine is the inverse of ParseLine.
func FormatLine(b Batch) string {
	var sb strings.Builder
	sb.WriteString(b.Tag)
	sb.WriteByte(' ')
	for i, v := range b.Values {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return sb.String()
}
