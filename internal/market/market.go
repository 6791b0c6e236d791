// Package market is the single ownership point for all mutable stock
// state. Every mutation — scheduled random ticks and control-plane
// commands alike — goes through one per-stock lock, so an observer never
// sees a current price without its matching trailing history entry.
package market

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"marketsimv1/internal/broadcast"
	"marketsimv1/internal/engine"
	"marketsimv1/internal/model"
	"marketsimv1/internal/store"
)

// slot pairs one stock's state with the lock that serializes its writers.
type slot struct {
	mu      sync.Mutex
	stock   model.Stock
	deleted bool
}

// Market holds the process-wide stock registry and implements the
// control plane. Reads of the append-only history go straight to the
// store and never take stock locks.
type Market struct {
	store store.Store
	pub   broadcast.Publisher

	// Now is the clock seam. Tests may replace it.
	Now func() time.Time

	// Metrics hooks (optional, set externally)
	OnStoreError     func()
	OnManualOverride func()

	mu    sync.RWMutex
	slots map[string]*slot

	// reserved holds symbols claimed by an in-flight CreateStock, so two
	// concurrent creates for the same symbol cannot both pass validation.
	reserved map[string]bool
}

// New creates a Market over the given store and publisher.
func New(st store.Store, pub broadcast.Publisher) *Market {
	if pub == nil {
		pub = broadcast.Nop{}
	}
	return &Market{
		store:    st,
		pub:      pub,
		Now:      func() time.Time { return time.Now().UTC() },
		slots:    make(map[string]*slot),
		reserved: make(map[string]bool),
	}
}

// SetPublisher swaps the event publisher. Wiring-time only: the gateway
// hub needs the market to exist before it can be constructed, so the
// publisher is attached after the fact, before anything ticks.
func (m *Market) SetPublisher(pub broadcast.Publisher) {
	if pub == nil {
		pub = broadcast.Nop{}
	}
	m.pub = pub
}

// Load populates the registry from the store. Called once at startup.
func (m *Market) Load(ctx context.Context) error {
	stocks, err := m.store.LoadStocks(ctx)
	if err != nil {
		return fmt.Errorf("load stocks: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range stocks {
		m.slots[st.ID] = &slot{stock: st}
	}
	return nil
}

// IDs returns all registered stock ids, sorted for stable iteration.
// The scheduler snapshots this at the start of each tick, so stocks
// added or removed mid-tick take effect on the next tick.
func (m *Market) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.slots))
	for id := range m.slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a copy of one stock's current state.
func (m *Market) Snapshot(id string) (model.Stock, error) {
	sl, ok := m.slot(id)
	if !ok {
		return model.Stock{}, model.ErrNotFound
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.deleted {
		return model.Stock{}, model.ErrNotFound
	}
	return sl.stock, nil
}

// Snapshots returns copies of every stock's current state, sorted by symbol.
func (m *Market) Snapshots() []model.Stock {
	ids := m.IDs()
	out := make([]model.Stock, 0, len(ids))
	for _, id := range ids {
		if st, err := m.Snapshot(id); err == nil {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (m *Market) slot(id string) (*slot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sl, ok := m.slots[id]
	return sl, ok
}

// ApplyRandomTick runs one simulation step for a stock: next price from
// the engine, then the atomic update+append+broadcast sequence. Stocks
// with random updates toggled off are skipped (nil error). The store
// write happening before the in-memory mutation means a failed append
// leaves the stock in its prior, fully consistent state.
// The boolean result reports whether a price was actually applied;
// inactive stocks return (false, nil).
func (m *Market) ApplyRandomTick(ctx context.Context, id string, rng engine.Rand) (bool, error) {
	sl, ok := m.slot(id)
	if !ok {
		return false, model.ErrNotFound
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.deleted {
		return false, model.ErrNotFound
	}
	if !sl.stock.RandomUpdateActive {
		return false, nil
	}

	next := engine.NextPrice(sl.stock.CurrentPrice, engine.Params{
		JumpProbability:   sl.stock.JumpProbability,
		JumpMultiplierMin: sl.stock.JumpMultiplierMin,
		JumpMultiplierMax: sl.stock.JumpMultiplierMax,
	}, rng)

	if err := m.applyPriceLocked(ctx, sl, next); err != nil {
		return false, err
	}
	return true, nil
}

// SetManualPrice overrides a stock's price outside the scheduled tick.
// The override goes through the same atomic sequence as a tick, so it
// becomes the previousPrice baseline for the next scheduled update.
// Prices are rounded to cents first; anything that rounds below the
// 0.01 floor is rejected, keeping the floor invariant that the
// generated path already enforces.
func (m *Market) SetManualPrice(ctx context.Context, id string, price float64) error {
	rounded := engine.RoundCents(price)
	if price <= 0 || rounded < 0.01 {
		ve := &model.ValidationError{}
		ve.Addf("price", "must be at least 0.01 after rounding to cents, got %v", price)
		return ve
	}

	sl, ok := m.slot(id)
	if !ok {
		return model.ErrNotFound
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.deleted {
		return model.ErrNotFound
	}

	if err := m.applyPriceLocked(ctx, sl, rounded); err != nil {
		return err
	}
	if m.OnManualOverride != nil {
		m.OnManualOverride()
	}
	return nil
}

// applyPriceLocked commits one price movement. Caller holds sl.mu.
func (m *Market) applyPriceLocked(ctx context.Context, sl *slot, next float64) error {
	st := sl.stock
	now := m.Now()

	upd := store.PriceUpdate{
		CurrentPrice:  next,
		PreviousPrice: st.CurrentPrice,
		DayHigh:       max(st.DayHigh, next),
		DayLow:        min(st.DayLow, next),
		Volume:        st.Volume + 1,
		UpdatedAt:     now,
	}
	tick := model.PricePoint{StockID: st.ID, Price: next, Timestamp: now}

	if err := m.store.ApplyPrice(ctx, st.ID, upd, tick); err != nil {
		if m.OnStoreError != nil {
			m.OnStoreError()
		}
		return fmt.Errorf("%w: apply price for %s: %v", model.ErrStoreUnavailable, st.Symbol, err)
	}

	sl.stock.PreviousPrice = upd.PreviousPrice
	sl.stock.CurrentPrice = upd.CurrentPrice
	sl.stock.DayHigh = upd.DayHigh
	sl.stock.DayLow = upd.DayLow
	sl.stock.Volume = upd.Volume
	sl.stock.UpdatedAt = now

	m.pub.Publish(broadcast.EventStockUpdate, sl.stock)
	return nil
}

// ToggleActive flips a stock's random-update flag.
func (m *Market) ToggleActive(ctx context.Context, id string, active bool) error {
	sl, ok := m.slot(id)
	if !ok {
		return model.ErrNotFound
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.deleted {
		return model.ErrNotFound
	}

	if err := m.store.UpdateActive(ctx, id, active); err != nil {
		if m.OnStoreError != nil {
			m.OnStoreError()
		}
		return fmt.Errorf("%w: update active for %s: %v", model.ErrStoreUnavailable, sl.stock.Symbol, err)
	}

	sl.stock.RandomUpdateActive = active
	m.pub.Publish(broadcast.EventStockUpdateStatus, StatusEvent{ID: id, Active: active})
	return nil
}

// UpdateSettings applies a partial simulation-parameter update. All
// supplied fields are validated against the merged result before
// anything is written: one bad field rejects the whole patch.
func (m *Market) UpdateSettings(ctx context.Context, id string, patch model.Settings) error {
	sl, ok := m.slot(id)
	if !ok {
		return model.ErrNotFound
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.deleted {
		return model.ErrNotFound
	}

	prob := sl.stock.JumpProbability
	jmin := sl.stock.JumpMultiplierMin
	jmax := sl.stock.JumpMultiplierMax
	if patch.JumpProbability != nil {
		prob = *patch.JumpProbability
	}
	if patch.JumpMultiplierMin != nil {
		jmin = *patch.JumpMultiplierMin
	}
	if patch.JumpMultiplierMax != nil {
		jmax = *patch.JumpMultiplierMax
	}

	ve := &model.ValidationError{}
	if prob < 0 || prob > 1 {
		ve.Addf("jump_probability", "must be in [0,1], got %v", prob)
	}
	if jmin <= 0 {
		ve.Addf("jump_multiplier_min", "must be > 0, got %v", jmin)
	}
	if jmax <= jmin {
		ve.Addf("jump_multiplier_max", "must be > jump_multiplier_min (%v), got %v", jmin, jmax)
	}
	if err := ve.Err(); err != nil {
		return err
	}

	if err := m.store.UpdateSettings(ctx, id, prob, jmin, jmax); err != nil {
		if m.OnStoreError != nil {
			m.OnStoreError()
		}
		return fmt.Errorf("%w: update settings for %s: %v", model.ErrStoreUnavailable, sl.stock.Symbol, err)
	}

	sl.stock.JumpProbability = prob
	sl.stock.JumpMultiplierMin = jmin
	sl.stock.JumpMultiplierMax = jmax
	m.pub.Publish(broadcast.EventStockSettingsUpdated, SettingsEvent{
		ID: id,
		Settings: model.Settings{
			JumpProbability:   &prob,
			JumpMultiplierMin: &jmin,
			JumpMultiplierMax: &jmax,
		},
	})
	return nil
}

// StatusEvent is the stock-update-status payload.
type StatusEvent struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

// SettingsEvent is the stock-settings-updated payload.
type SettingsEvent struct {
	ID       string         `json:"id"`
	Settings model.Settings `json:"settings"`
}

// DeletedEvent is the stock-deleted payload.
type DeletedEvent struct {
	ID string `json:"id"`
}
