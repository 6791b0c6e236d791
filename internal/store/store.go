// Package store defines the persistence port for the simulation engine.
// The engine depends only on these contracts; sqlite provides the durable
// implementation and memory backs tests and ephemeral runs.
package store

import (
	"context"
	"time"

	"marketsimv1/internal/model"
)

// PriceUpdate carries the stock price fields written by one tick or
// manual override. The matching PricePoint append and this update are
// committed as a single unit.
type PriceUpdate struct {
	CurrentPrice  float64
	PreviousPrice float64
	DayHigh       float64
	DayLow        float64
	Volume        int64
	UpdatedAt     time.Time
}

// Store is the persistence collaborator for stocks and their tick history.
//
// ApplyPrice must be atomic: the stock row update and the PricePoint
// append either both happen or neither does. DeleteStockCascade removes
// the stock and its entire history as one unit.
type Store interface {
	// LoadStocks returns all stocks, for registry initialization.
	LoadStocks(ctx context.Context) ([]model.Stock, error)

	// CreateStock inserts a new stock and its seed PricePoint atomically.
	CreateStock(ctx context.Context, s model.Stock, seed model.PricePoint) error

	// ApplyPrice updates a stock's price fields and appends a PricePoint
	// in one transaction. Returns model.ErrNotFound for unknown ids.
	ApplyPrice(ctx context.Context, id string, upd PriceUpdate, tick model.PricePoint) error

	// UpdateSettings persists new simulation parameters.
	UpdateSettings(ctx context.Context, id string, jumpProbability, jumpMin, jumpMax float64) error

	// UpdateActive persists the random-update flag.
	UpdateActive(ctx context.Context, id string, active bool) error

	// ListTicks returns a stock's full history in ascending timestamp order.
	ListTicks(ctx context.Context, id string) ([]model.PricePoint, error)

	// ListTicksSince returns history at or after the given time, ascending.
	ListTicksSince(ctx context.Context, id string, since time.Time) ([]model.PricePoint, error)

	// DeleteStockCascade removes the stock and all its PricePoints atomically.
	DeleteStockCascade(ctx context.Context, id string) error

	// Close releases underlying resources.
	Close() error
}
