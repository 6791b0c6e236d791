package market

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"marketsimv1/internal/broadcast"
	"marketsimv1/internal/engine"
	"marketsimv1/internal/model"
)

// Default simulation parameters for newly created stocks.
const (
	defaultJumpProbability   = 0.05
	defaultJumpMultiplierMin = 0.7
	defaultJumpMultiplierMax = 1.5
)

// CreateStock registers a new stock. All price fields start at the seed
// price and the first PricePoint is appended in the same transaction.
func (m *Market) CreateStock(ctx context.Context, spec model.StockSpec) (model.Stock, error) {
	symbol := strings.ToUpper(strings.TrimSpace(spec.Symbol))

	ve := &model.ValidationError{}
	if !model.ValidSymbol(symbol) {
		ve.Addf("symbol", "must be 1-5 uppercase letters, got %q", spec.Symbol)
	}
	if spec.SeedPrice <= 0 {
		ve.Addf("seed_price", "must be > 0, got %v", spec.SeedPrice)
	}
	if err := ve.Err(); err != nil {
		return model.Stock{}, err
	}

	// Check-and-reserve under one lock: a concurrent create for the same
	// symbol fails validation here instead of racing to the store.
	if err := m.reserveSymbol(symbol); err != nil {
		return model.Stock{}, err
	}
	defer m.releaseSymbol(symbol)

	now := m.Now()
	seed := engine.RoundCents(spec.SeedPrice)
	st := model.Stock{
		ID:                 newID(now),
		Symbol:             symbol,
		Name:               spec.Name,
		MarketCap:          spec.MarketCap,
		CurrentPrice:       seed,
		PreviousPrice:      seed,
		DayOpen:            seed,
		DayHigh:            seed,
		DayLow:             seed,
		Volume:             1,
		JumpProbability:    defaultJumpProbability,
		JumpMultiplierMin:  defaultJumpMultiplierMin,
		JumpMultiplierMax:  defaultJumpMultiplierMax,
		RandomUpdateActive: true,
		UpdatedAt:          now,
	}
	point := model.PricePoint{StockID: st.ID, Price: seed, Timestamp: now}

	if err := m.store.CreateStock(ctx, st, point); err != nil {
		if m.OnStoreError != nil {
			m.OnStoreError()
		}
		return model.Stock{}, fmt.Errorf("%w: create %s: %v", model.ErrStoreUnavailable, symbol, err)
	}

	m.mu.Lock()
	m.slots[st.ID] = &slot{stock: st}
	m.mu.Unlock()

	m.pub.Publish(broadcast.EventStockCreated, st)
	return st, nil
}

// DeleteStock removes a stock and purges its tick history as one unit,
// then emits the deletion event. An in-flight tick holding the stock
// lock finishes first; later writers see the slot as deleted. The
// registry is only touched after the cascade commits, so a failed
// delete leaves the stock fully intact and retryable.
func (m *Market) DeleteStock(ctx context.Context, id string) error {
	sl, ok := m.slot(id)
	if !ok {
		return model.ErrNotFound
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.deleted {
		return model.ErrNotFound
	}

	if err := m.store.DeleteStockCascade(ctx, id); err != nil {
		if m.OnStoreError != nil {
			m.OnStoreError()
		}
		return fmt.Errorf("%w: delete %s: %v", model.ErrStoreUnavailable, sl.stock.Symbol, err)
	}

	sl.deleted = true
	m.mu.Lock()
	delete(m.slots, id)
	m.mu.Unlock()

	m.pub.Publish(broadcast.EventStockDeleted, DeletedEvent{ID: id})
	return nil
}

// reserveSymbol claims a symbol for an in-flight create. The registered
// slot takes over ownership before the reservation is released.
func (m *Market) reserveSymbol(symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	taken := m.reserved[symbol]
	if !taken {
		for _, sl := range m.slots {
			if sl.stock.Symbol == symbol {
				taken = true
				break
			}
		}
	}
	if taken {
		ve := &model.ValidationError{}
		ve.Addf("symbol", "%s already exists", symbol)
		return ve
	}
	m.reserved[symbol] = true
	return nil
}

func (m *Market) releaseSymbol(symbol string) {
	m.mu.Lock()
	delete(m.reserved, symbol)
	m.mu.Unlock()
}

var idSeq atomic.Int64

// newID builds a unique stock id. The sequence suffix keeps ids distinct
// even under a frozen test clock.
func newID(now time.Time) string {
	return fmt.Sprintf("stk_%d_%d", now.UnixNano(), idSeq.Add(1))
}
