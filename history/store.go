// Package history persists ingested tag batches and builds the historical
// report over a date range.
package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/keilerkonzept/tagscope/chart"
)

// TimestampLayout is how entry timestamps are written: local time with
// microseconds, no zone.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// parseLayout also accepts timestamps without a fractional part.
const parseLayout = "2006-01-02T15:04:05.999999999"

// Entry is one ingested batch: all values share one arrival time.
type Entry struct {
	Timestamp string
	Values    []float64
}

func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(parseLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", chart.ErrMalformedTimestamp, s)
	}
	return t, nil
}

type Store interface {
	// GetTagValues returns every entry of a tag in insertion order.
	GetTagValues(ctx context.Context, project, tag string) ([]Entry, error)
	// Tail returns the last n entries of a tag, oldest first.
	Tail(ctx context.Context, project, tag string, n int) ([]Entry, error)
	Append(ctx context.Context, project, tag string, e Entry) error
	Tags(ctx context.Context, project string) ([]string, error)
	Close() error
}

type Config struct {
	Path             string
	InMemory         bool
	CompressionLevel int
}

func DefaultConfig() Config {
	return Config{Path: "./data", CompressionLevel: 2}
}

type payload struct {
	Timestamp string `json:"ts"`
	Count     int    `json:"n"`
	Values    []byte `json:"v"`
}

// BadgerStore keeps entries under v/<project>\x00<tag>\x00<seq> and a tag
// index under t/<project>\x00<tag>.
type BadgerStore struct {
	db    *badger.DB
	seq   *badger.Sequence
	codec *codec
}

var _ Store = (*BadgerStore)(nil)

func OpenBadger(cfg Config) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}
	seq, err := db.GetSequence([]byte("seq/entries"), 256)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("entry sequence: %w", err)
	}
	c, err := newCodec(cfg.CompressionLevel)
	if err != nil {
		_ = seq.Release()
		db.Close()
		return nil, err
	}
	return &BadgerStore{db: db, seq: seq, codec: c}, nil
}

func entryPrefix(project, tag string) []byte {
	return []byte("v/" + project + "\x00" + tag + "\x00")
}

func tagPrefix(project string) []byte {
	return []byte("t/" + project + "\x00")
}

func (s *BadgerStore) Append(ctx context.Context, project, tag string, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("next entry id: %w", err)
	}
	data, err := json.Marshal(payload{
		Timestamp: e.Timestamp,
		Count:     len(e.Values),
		Values:    s.codec.encodeValues(e.Values),
	})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	key := binary.BigEndian.AppendUint64(entryPrefix(project, tag), id)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(append(tagPrefix(project), tag...), nil)
	})
}

func (s *BadgerStore) GetTagValues(ctx context.Context, project, tag string) ([]Entry, error) {
	return s.scan(ctx, project, tag, 0)
}

func (s *BadgerStore) Tail(ctx context.Context, project, tag string, n int) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}
	return s.scan(ctx, project, tag, n)
}

// scan walks a tag's entries; limit > 0 walks backwards from the newest
// and stops after limit entries.
func (s *BadgerStore) scan(ctx context.Context, project, tag string, limit int) ([]Entry, error) {
	prefix := entryPrefix(project, tag)
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = limit > 0
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		if opts.Reverse {
			seek = append(append([]byte{}, prefix...), 0xFF)
		}
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			e, err := s.decode(raw)
			if err != nil {
				return fmt.Errorf("entry %x: %w", it.Item().Key(), err)
			}
			entries = append(entries, e)
			if limit > 0 && len(entries) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", project, tag, err)
	}
	if limit > 0 {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (s *BadgerStore) decode(raw []byte) (Entry, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Entry{}, fmt.Errorf("unmarshal entry: %w", err)
	}
	values, err := s.codec.decodeValues(p.Values, p.Count)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Timestamp: p.Timestamp, Values: values}, nil
}

func (s *BadgerStore) Tags(ctx context.Context, project string) ([]string, error) {
	prefix := tagPrefix(project)
	tags := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			tags = append(tags, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tags of %s: %w", project, err)
	}
	return tags, nil
}

func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("release entry sequence: %w", err)
	}
	s.codec.close()
	return s.db.Close()
}
