package live

import (
	"context"
	"sync"
	"time"
)

// DefaultRefreshInterval is how often an open channel is redrawn.
const DefaultRefreshInterval = 100 * time.Millisecond

// Scheduler drives a channel's periodic refresh. Stop must return without
// waiting on an in-flight fn, since fn may be blocked handing a message to
// the goroutine that is calling Stop.
type Scheduler interface {
	Start(fn func())
	Stop()
}

// TickerScheduler runs fn on its own goroutine every interval.
type TickerScheduler struct {
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &TickerScheduler{interval: interval}
}

func (s *TickerScheduler) Interval() time.Duration { return s.interval }

// Start replaces any running ticker.
func (s *TickerScheduler) Start(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *TickerScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Wait blocks until every goroutine started by Start has returned.
func (s *TickerScheduler) Wait() { s.wg.Wait() }
