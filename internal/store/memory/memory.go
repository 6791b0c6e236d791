// Package memory implements store.Store in process memory. It backs unit
// tests and runs without a SQLITE_PATH configured.
package memory

import (
	"context"
	"sync"
	"time"

	"marketsimv1/internal/model"
	"marketsimv1/internal/store"
)

// Store is an in-memory store.Store.
type Store struct {
	mu     sync.RWMutex
	stocks map[string]model.Stock
	ticks  map[string][]model.PricePoint

	// FailNext makes the next mutating call return ErrStoreUnavailable.
	// Test hook for outage behavior.
	FailNext bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		stocks: make(map[string]model.Stock),
		ticks:  make(map[string][]model.PricePoint),
	}
}

func (s *Store) failNow() bool {
	if s.FailNext {
		s.FailNext = false
		return true
	}
	return false
}

func (s *Store) LoadStocks(ctx context.Context) ([]model.Stock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Stock, 0, len(s.stocks))
	for _, st := range s.stocks {
		out = append(out, st)
	}
	return out, nil
}

func (s *Store) CreateStock(ctx context.Context, st model.Stock, seed model.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNow() {
		return model.ErrStoreUnavailable
	}
	s.stocks[st.ID] = st
	s.ticks[st.ID] = append(s.ticks[st.ID], seed)
	return nil
}

func (s *Store) ApplyPrice(ctx context.Context, id string, upd store.PriceUpdate, tick model.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNow() {
		return model.ErrStoreUnavailable
	}
	st, ok := s.stocks[id]
	if !ok {
		return model.ErrNotFound
	}
	st.CurrentPrice = upd.CurrentPrice
	st.PreviousPrice = upd.PreviousPrice
	st.DayHigh = upd.DayHigh
	st.DayLow = upd.DayLow
	st.Volume = upd.Volume
	st.UpdatedAt = upd.UpdatedAt
	s.stocks[id] = st
	s.ticks[id] = append(s.ticks[id], tick)
	return nil
}

func (s *Store) UpdateSettings(ctx context.Context, id string, jumpProbability, jumpMin, jumpMax float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNow() {
		return model.ErrStoreUnavailable
	}
	st, ok := s.stocks[id]
	if !ok {
		return model.ErrNotFound
	}
	st.JumpProbability = jumpProbability
	st.JumpMultiplierMin = jumpMin
	st.JumpMultiplierMax = jumpMax
	s.stocks[id] = st
	return nil
}

func (s *Store) UpdateActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNow() {
		return model.ErrStoreUnavailable
	}
	st, ok := s.stocks[id]
	if !ok {
		return model.ErrNotFound
	}
	st.RandomUpdateActive = active
	s.stocks[id] = st
	return nil
}

func (s *Store) ListTicks(ctx context.Context, id string) ([]model.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points := s.ticks[id]
	out := make([]model.PricePoint, len(points))
	copy(out, points)
	return out, nil
}

func (s *Store) ListTicksSince(ctx context.Context, id string, since time.Time) ([]model.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.PricePoint
	for _, p := range s.ticks[id] {
		if !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) DeleteStockCascade(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNow() {
		return model.ErrStoreUnavailable
	}
	if _, ok := s.stocks[id]; !ok {
		return model.ErrNotFound
	}
	delete(s.stocks, id)
	delete(s.ticks, id)
	return nil
}

func (s *Store) Close() error { return nil }

// TickCount returns the number of stored points for a stock. Test helper.
func (s *Store) TickCount(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ticks[id])
}
