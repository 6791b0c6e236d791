// Package scheduler drives the periodic simulation tick. One goroutine
// owns the timer; frequency changes are handed to it over a channel and
// applied with ticker.Reset, so there is never a moment with two timers
// running or none.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"marketsimv1/internal/engine"
	"marketsimv1/internal/market"
	"marketsimv1/internal/model"
)

// DefaultInterval is the tick period used when none is configured.
const DefaultInterval = 5000 * time.Millisecond

// Scheduler fires a simulation tick for every registered stock on a
// fixed interval. Start and Stop are idempotent; Stop cancels the timer
// but lets an already dispatched tick finish naturally.
type Scheduler struct {
	market *market.Market
	rng    engine.Rand

	// OnCycle is called after each completed tick cycle with its duration
	// and the number of stocks updated/skipped. Metrics hook, optional.
	OnCycle func(dur time.Duration, updated, skipped int)

	mu       sync.Mutex
	interval time.Duration
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	freqCh   chan time.Duration
}

// New creates a Scheduler. interval <= 0 falls back to DefaultInterval.
func New(m *market.Market, interval time.Duration, rng engine.Rand) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		market:   m,
		rng:      rng,
		interval: interval,
	}
}

// Start begins firing ticks. No-op if already running. The context
// bounds store and broadcast I/O for the lifetime of the run; cancelling
// it stops the scheduler as Stop would.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.freqCh = make(chan time.Duration, 1)

	go s.run(ctx, s.interval, s.stopCh, s.doneCh, s.freqCh)
	log.Printf("[scheduler] started (interval=%v)", s.interval)
}

// Stop cancels the timer. No-op if already stopped. Returns once the
// loop goroutine has exited; an in-flight tick completes first.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	log.Println("[scheduler] stopped")
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Interval returns the current tick period.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetUpdateFrequency changes the tick period. If running, the new
// interval takes effect on the very next wait; the swap happens inside
// the loop goroutine so no tick is double-fired or skipped.
func (s *Scheduler) SetUpdateFrequency(d time.Duration) error {
	if d <= 0 {
		ve := &model.ValidationError{}
		ve.Addf("update_frequency", "must be > 0, got %v", d)
		return ve
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	if !s.running {
		return nil
	}

	// Replace any pending change so the loop only sees the latest value.
	select {
	case <-s.freqCh:
	default:
	}
	s.freqCh <- d
	log.Printf("[scheduler] update frequency set to %v", d)
	return nil
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration, stopCh <-chan struct{}, doneCh chan<- struct{}, freqCh <-chan time.Duration) {
	defer close(doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case d := <-freqCh:
			ticker.Reset(d)
		case <-ticker.C:
			s.tickAll(ctx)
		}
	}
}

// tickAll runs one simulation cycle over a fresh snapshot of the
// registry. A failure on one stock is logged and skipped; the rest of
// the cycle proceeds and the stock retries on the next tick.
func (s *Scheduler) tickAll(ctx context.Context) {
	start := time.Now()
	updated, skipped := 0, 0

	for _, id := range s.market.IDs() {
		applied, err := s.market.ApplyRandomTick(ctx, id, s.rng)
		switch {
		case err == nil && applied:
			updated++
		case err == nil:
			skipped++
		case errors.Is(err, model.ErrNotFound):
			// Deleted mid-cycle; nothing to retry.
			skipped++
		default:
			skipped++
			log.Printf("[scheduler] tick failed for %s (skipping this cycle): %v", id, err)
		}
	}

	if s.OnCycle != nil {
		s.OnCycle(time.Since(start), updated, skipped)
	}
}
