package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/keilerkonzept/tagscope/logging"
)

type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown input format %q (want text or json)", s)
}

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// Reader feeds batches from a line stream to a sink.
type Reader struct {
	Format Format
	// MaxLines stops after that many lines; zero reads to EOF.
	MaxLines int
	// Pace sleeps between lines.
	Pace time.Duration
	// Hold, if set, is called before each line and may block, e.g. while
	// the UI is paused.
	Hold func()
	// Now stamps batches that carry no timestamp. Defaults to time.Now.
	Now func() time.Time

	lines     atomic.Int64
	malformed atomic.Int64
}

func (r *Reader) Lines() int64     { return r.lines.Load() }
func (r *Reader) Malformed() int64 { return r.malformed.Load() }

// Run reads until EOF, MaxLines or ctx is done. Malformed lines are counted,
// logged and skipped.
func (r *Reader) Run(ctx context.Context, in io.Reader, sink func(Batch)) error {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	parse := func(line []byte) (Batch, error) { return ParseLine(string(line)) }
	if r.Format == FormatJSON {
		parse = ParseJSONLine
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.Hold != nil {
			r.Hold()
		}
		if r.MaxLines > 0 && n >= r.MaxLines {
			return nil
		}
		n++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		r.lines.Add(1)
		b, err := parse(line)
		if err != nil {
			r.malformed.Add(1)
			logging.Warnf("Skipping input line %d: %v", n, err)
			continue
		}
		if b.Time.IsZero() {
			b.Time = now()
		}
		sink(b)
		if r.Pace > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.Pace):
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
