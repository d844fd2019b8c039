package ingest

import (
	"context"
	"math"
	"time"

	"github.com/keilerkonzept/tagscope/logging"
)

// Default sine parameters span the sensor range 16390..46537.
const (
	DefaultSimFrequency  = 7
	DefaultSimAmplitude  = (46537 - 16390) / 2.0
	DefaultSimOffset     = (46537 + 16390) / 2.0
	DefaultSimSampleRate = 4096
	DefaultSimInterval   = time.Second
	DefaultSimMessages   = 50
)

// Simulator publishes one sine segment per topic every Interval. Segment n
// covers [n, n+1) seconds of signal time.
type Simulator struct {
	Topics     []string
	Frequency  float64
	Amplitude  float64
	Offset     float64
	SampleRate int
	Interval   time.Duration
	// Messages stops the run after that many rounds; zero runs until ctx
	// is done.
	Messages int
	Now      func() time.Time
}

func NewSimulator(topics ...string) *Simulator {
	return &Simulator{
		Topics:     topics,
		Frequency:  DefaultSimFrequency,
		Amplitude:  DefaultSimAmplitude,
		Offset:     DefaultSimOffset,
		SampleRate: DefaultSimSampleRate,
		Interval:   DefaultSimInterval,
		Messages:   DefaultSimMessages,
	}
}

// Segment returns the values of message n, rounded to two decimals.
func (s *Simulator) Segment(n int) []float64 {
	values := make([]float64, s.SampleRate)
	for i := range values {
		t := float64(n) + float64(i)/float64(s.SampleRate)
		v := s.Offset + s.Amplitude*math.Sin(math.Pi*s.Frequency*t)
		values[i] = math.Round(v*100) / 100
	}
	return values
}

// Run emits rounds until Messages is reached or ctx is done. The first
// round goes out after one Interval.
func (s *Simulator) Run(ctx context.Context, sink func(Batch)) error {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSimInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 0; s.Messages <= 0 || n < s.Messages; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		values := s.Segment(n)
		ts := now()
		for _, topic := range s.Topics {
			sink(Batch{Tag: topic, Values: values, Time: ts})
			logging.Infof("[%d] Published to %s (%d values)", n, topic, len(values))
		}
	}
	logging.Infof("Publishing stopped after %d messages.", s.Messages)
	return nil
}
