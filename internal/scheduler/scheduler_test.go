package scheduler

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"marketsimv1/internal/broadcast"
	"marketsimv1/internal/market"
	"marketsimv1/internal/model"
	"marketsimv1/internal/store/memory"
)

type cycle struct {
	updated int
	skipped int
}

func newTestScheduler(t *testing.T, interval time.Duration) (*Scheduler, *market.Market, *memory.Store, chan cycle) {
	t.Helper()
	st := memory.New()
	m := market.New(st, broadcast.Nop{})

	cycles := make(chan cycle, 64)
	s := New(m, interval, rand.New(rand.NewSource(1)))
	s.OnCycle = func(_ time.Duration, updated, skipped int) {
		select {
		case cycles <- cycle{updated, skipped}:
		default:
		}
	}
	return s, m, st, cycles
}

func create(t *testing.T, m *market.Market, symbol string) model.Stock {
	t.Helper()
	st, err := m.CreateStock(context.Background(), model.StockSpec{Symbol: symbol, SeedPrice: 100})
	if err != nil {
		t.Fatalf("create %s: %v", symbol, err)
	}
	return st
}

func waitCycle(t *testing.T, cycles chan cycle) cycle {
	t.Helper()
	select {
	case c := <-cycles:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a tick cycle")
		return cycle{}
	}
}

func TestSchedulerTicks(t *testing.T) {
	s, m, st, cycles := newTestScheduler(t, 5*time.Millisecond)
	created := create(t, m, "AAPL")

	s.Start(context.Background())
	defer s.Stop()

	c := waitCycle(t, cycles)
	if c.updated != 1 || c.skipped != 0 {
		t.Fatalf("cycle = %+v, want 1 updated / 0 skipped", c)
	}
	if st.TickCount(created.ID) < 2 {
		t.Errorf("no tick appended: count %d", st.TickCount(created.ID))
	}
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, time.Hour)

	if s.Running() {
		t.Fatal("running before Start")
	}
	s.Start(context.Background())
	s.Start(context.Background())
	if !s.Running() {
		t.Fatal("not running after Start")
	}

	s.Stop()
	s.Stop()
	if s.Running() {
		t.Fatal("still running after Stop")
	}

	// A stopped scheduler can start again.
	s.Start(context.Background())
	if !s.Running() {
		t.Fatal("restart failed")
	}
	s.Stop()
}

func TestSchedulerStopFreezesTicks(t *testing.T) {
	s, m, st, cycles := newTestScheduler(t, 5*time.Millisecond)
	created := create(t, m, "AAPL")

	s.Start(context.Background())
	waitCycle(t, cycles)
	s.Stop()

	n := st.TickCount(created.ID)
	time.Sleep(25 * time.Millisecond)
	if got := st.TickCount(created.ID); got != n {
		t.Errorf("ticks continued after Stop: %d -> %d", n, got)
	}
}

func TestSchedulerContextCancel(t *testing.T) {
	s, m, st, cycles := newTestScheduler(t, 5*time.Millisecond)
	created := create(t, m, "AAPL")

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	waitCycle(t, cycles)
	cancel()

	time.Sleep(25 * time.Millisecond)
	n := st.TickCount(created.ID)
	time.Sleep(25 * time.Millisecond)
	if got := st.TickCount(created.ID); got != n {
		t.Errorf("ticks continued after context cancel: %d -> %d", n, got)
	}
	s.Stop()
}

func TestSetUpdateFrequency(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, time.Hour)

	if err := s.SetUpdateFrequency(0); !model.IsValidation(err) {
		t.Errorf("frequency 0: expected validation error, got %v", err)
	}
	if err := s.SetUpdateFrequency(-time.Second); !model.IsValidation(err) {
		t.Errorf("negative frequency: expected validation error, got %v", err)
	}
	if got := s.Interval(); got != time.Hour {
		t.Errorf("rejected change altered interval: %v", got)
	}

	if err := s.SetUpdateFrequency(250 * time.Millisecond); err != nil {
		t.Fatalf("set frequency: %v", err)
	}
	if got := s.Interval(); got != 250*time.Millisecond {
		t.Errorf("interval = %v, want 250ms", got)
	}
}

func TestSetUpdateFrequencyWhileRunning(t *testing.T) {
	s, m, _, cycles := newTestScheduler(t, time.Hour)
	create(t, m, "AAPL")

	// At a one-hour interval no cycle would fire in this test on its own.
	s.Start(context.Background())
	defer s.Stop()

	if err := s.SetUpdateFrequency(5 * time.Millisecond); err != nil {
		t.Fatalf("set frequency: %v", err)
	}
	waitCycle(t, cycles)
}

func TestSchedulerSkipsInactive(t *testing.T) {
	s, m, _, cycles := newTestScheduler(t, 5*time.Millisecond)
	create(t, m, "AAPL")
	paused := create(t, m, "TSLA")

	if err := m.ToggleActive(context.Background(), paused.ID, false); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	c := waitCycle(t, cycles)
	if c.updated != 1 || c.skipped != 1 {
		t.Fatalf("cycle = %+v, want 1 updated / 1 skipped", c)
	}

	snap, err := m.Snapshot(paused.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.CurrentPrice != 100 {
		t.Errorf("paused stock moved: %v", snap.CurrentPrice)
	}
}

func TestSchedulerSurvivesStoreError(t *testing.T) {
	s, m, st, cycles := newTestScheduler(t, 5*time.Millisecond)
	a := create(t, m, "AAPL")
	b := create(t, m, "TSLA")

	st.FailNext = true
	s.Start(context.Background())
	defer s.Stop()

	// First cycle: one stock hits the injected failure, the other proceeds.
	c := waitCycle(t, cycles)
	if c.updated+c.skipped != 2 {
		t.Fatalf("cycle covered %d stocks, want 2", c.updated+c.skipped)
	}
	if c.skipped < 1 {
		t.Fatalf("cycle = %+v, expected the failing stock to be skipped", c)
	}

	// Later cycles recover fully.
	for i := 0; i < 3; i++ {
		c = waitCycle(t, cycles)
	}
	if c.updated != 2 || c.skipped != 0 {
		t.Fatalf("recovery cycle = %+v, want 2 updated / 0 skipped", c)
	}
	for _, id := range []string{a.ID, b.ID} {
		if st.TickCount(id) < 2 {
			t.Errorf("stock %s never ticked after recovery", id)
		}
	}
}

func TestDefaultInterval(t *testing.T) {
	m := market.New(memory.New(), broadcast.Nop{})
	s := New(m, 0, rand.New(rand.NewSource(1)))
	if s.Interval() != DefaultInterval {
		t.Errorf("interval = %v, want %v", s.Interval(), DefaultInterval)
	}
}
